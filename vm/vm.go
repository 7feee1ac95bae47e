// Copyright (c) 2026 WJQserver, Kamihama Railway Group. All rights reserved.
// Licensed under the GNU Affero General Public License, version 3.0 (the "AGPL").

package vm

import (
	"errors"
	"fmt"
	"math"

	"github.com/kamihama-railway/stellar/abi"
	"github.com/kamihama-railway/stellar/bytecode"
	"github.com/kamihama-railway/stellar/types"
)

const StackSize = 64

var ErrStackOverflow = errors.New("vm: stack overflow")

// derivative step per order; larger orders divide by h^n and need a wider h
var steps = [...]float64{1: 1e-5, 2: 1e-4, 3: 1e-3, 4: 1e-2}

// Run evaluates one serialized channel against the default ABI. An empty
// channel evaluates to 0.
func Run(opcodes []int32, constants []float32, state State) (float64, error) {
	return RunWith(abi.Default(), opcodes, constants, state)
}

func RunWith(table *abi.Table, opcodes []int32, constants []float32, state State) (float64, error) {
	if len(opcodes) == 0 {
		return 0, nil
	}
	prog, err := bytecode.Decode(table, opcodes)
	if err != nil {
		return 0, err
	}
	return exec(prog, constants, state)
}

// RunChannel is Run for a SerializedChannel.
func RunChannel(ch types.SerializedChannel, state State) (float64, error) {
	return Run(ch.Opcodes, ch.Constants, state)
}

func exec(prog []bytecode.Instruction, consts []float32, state State) (float64, error) {
	var stack [StackSize]float64
	sp := -1

	push := func(v float64) error {
		if sp+1 >= StackSize {
			return ErrStackOverflow
		}
		sp++
		stack[sp] = v
		return nil
	}

	for i := 0; i < len(prog); i++ {
		ins := prog[i]
		kind := ins.Kind

		switch kind {
		case types.TokenNumber:
			idx := ins.Operands[0]
			if idx < 0 || int(idx) >= len(consts) {
				return 0, fmt.Errorf("vm: constant #%d out of range at pc %d", idx, ins.PC)
			}
			if err := push(float64(consts[idx])); err != nil {
				return 0, err
			}
			continue

		case types.TokenVariable:
			v, ok := state.Variable(ins.Operands[0])
			if !ok {
				return 0, fmt.Errorf("vm: variable %d unbound: %w", ins.Operands[0], types.ErrUnknownVariableName)
			}
			if err := push(v); err != nil {
				return 0, err
			}
			continue

		case types.TokenObjectRef:
			v, ok := state.Property(ins.Operands[0], ins.Operands[1])
			if !ok {
				return 0, fmt.Errorf("vm: object %d property %d unbound: %w",
					ins.Operands[0], ins.Operands[1], types.ErrUnknownPropertyName)
			}
			if err := push(v); err != nil {
				return 0, err
			}
			continue

		case types.TokenDerivative:
			end := bodyEnd(prog, i)
			v, err := derive(prog[i+1:end], consts, state, ins.Operands[0], int(ins.Operands[1]))
			if err != nil {
				return 0, err
			}
			if err := push(v); err != nil {
				return 0, err
			}
			i = end - 1
			continue
		}

		n := 2
		if !kind.IsBinaryOperator() {
			n = types.Arity[kind]
		}
		if sp+1 < n {
			return 0, types.Errorf(types.ErrStackUnderflow, ins.PC, "%s needs %d operands", kind, n)
		}
		args := stack[sp-n+1 : sp+1]
		v, err := apply(kind, args)
		if err != nil {
			return 0, err
		}
		sp -= n - 1
		stack[sp] = v
	}

	if sp != 0 {
		if sp < 0 {
			return 0, types.Errorf(types.ErrStackUnderflow, -1, "program left no result")
		}
		return 0, types.Errorf(types.ErrDanglingOperand, -1, "program left %d values", sp+1)
	}
	return stack[0], nil
}

// bodyEnd returns the index just past the body of the derivative at i.
func bodyEnd(prog []bytecode.Instruction, i int) int {
	limit := prog[i].PC + bytecode.Width(types.TokenDerivative) + int(prog[i].Operands[3])
	j := i + 1
	for j < len(prog) && prog[j].PC < limit {
		j++
	}
	return j
}

// derive takes the order-th central difference of body with respect to
// the variable wrt.
func derive(body []bytecode.Instruction, consts []float32, state State, wrt int32, order int) (float64, error) {
	if order < 1 || order >= len(steps) {
		return 0, fmt.Errorf("vm: derivative order %d: %w", order, types.ErrInvalidDerivOrder)
	}
	base, ok := state.Variable(wrt)
	if !ok {
		return 0, fmt.Errorf("vm: derivative variable %d unbound: %w", wrt, types.ErrUnknownVariableName)
	}
	h := steps[order]
	sum := 0.0
	coeff := 1.0 // binomial(order, k) with alternating sign
	for k := 0; k <= order; k++ {
		x := base + (float64(order)/2-float64(k))*h
		v, err := exec(body, consts, shifted{State: state, code: wrt, value: x})
		if err != nil {
			return 0, err
		}
		sum += coeff * v
		coeff = -coeff * float64(order-k) / float64(k+1)
	}
	return sum / math.Pow(h, float64(order)), nil
}

func apply(kind types.TokenKind, a []float64) (float64, error) {
	switch kind {
	case types.TokenAdd:
		return a[0] + a[1], nil
	case types.TokenSub:
		return a[0] - a[1], nil
	case types.TokenMul:
		return a[0] * a[1], nil
	case types.TokenDiv:
		return a[0] / a[1], nil
	case types.TokenPow:
		return math.Pow(a[0], a[1]), nil
	case types.TokenNeg:
		return -a[0], nil
	case types.TokenSin:
		return math.Sin(a[0]), nil
	case types.TokenCos:
		return math.Cos(a[0]), nil
	case types.TokenTan:
		return math.Tan(a[0]), nil
	case types.TokenSqrt:
		return math.Sqrt(a[0]), nil
	case types.TokenLog:
		return math.Log(a[0]), nil
	case types.TokenExp:
		return math.Exp(a[0]), nil
	case types.TokenAbs:
		return math.Abs(a[0]), nil
	case types.TokenMin:
		return math.Min(a[0], a[1]), nil
	case types.TokenMax:
		return math.Max(a[0], a[1]), nil
	case types.TokenClamp:
		return math.Min(math.Max(a[0], a[1]), a[2]), nil
	case types.TokenFloor:
		return math.Floor(a[0]), nil
	case types.TokenCeil:
		return math.Ceil(a[0]), nil
	case types.TokenFrac:
		return a[0] - math.Floor(a[0]), nil
	case types.TokenMod:
		return a[0] - a[1]*math.Floor(a[0]/a[1]), nil
	case types.TokenAtan2:
		return math.Atan2(a[0], a[1]), nil
	case types.TokenReal, types.TokenConj:
		return a[0], nil
	case types.TokenImag:
		return 0, nil
	case types.TokenArg:
		if a[0] < 0 {
			return math.Pi, nil
		}
		return 0, nil
	case types.TokenSign:
		switch {
		case a[0] > 0:
			return 1, nil
		case a[0] < 0:
			return -1, nil
		}
		return 0, nil
	case types.TokenStep:
		if a[0] >= 0 {
			return 1, nil
		}
		return 0, nil
	}
	return 0, types.Errorf(types.ErrUnknownTokenKind, -1, "vm cannot execute %s", kind)
}
