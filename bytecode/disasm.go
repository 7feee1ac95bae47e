// Copyright (c) 2026 WJQserver, Kamihama Railway Group. All rights reserved.
// Licensed under the GNU Affero General Public License, version 3.0 (the "AGPL").

package bytecode

import (
	"fmt"
	"strings"

	"github.com/kamihama-railway/stellar/abi"
	"github.com/kamihama-railway/stellar/types"
)

// Width is the number of words an instruction occupies, opcode included.
// A derivative's body follows its five-word header inline and is not
// counted.
func Width(kind types.TokenKind) int {
	switch kind {
	case types.TokenNumber, types.TokenVariable:
		return 2
	case types.TokenObjectRef:
		return 3
	case types.TokenDerivative:
		return 5
	default:
		return 1
	}
}

// Instruction is one decoded opcode with its inline operands.
type Instruction struct {
	PC       int
	Kind     types.TokenKind
	Operands []int32
	Depth    int // derivative nesting
}

// Decode splits an opcode stream into instructions, checking that every
// opcode is known, every operand is present and every derivative body
// ends inside its parent.
func Decode(table *abi.Table, opcodes []int32) ([]Instruction, error) {
	var out []Instruction
	var ends []int
	for pc := 0; pc < len(opcodes); {
		for len(ends) > 0 && pc >= ends[len(ends)-1] {
			ends = ends[:len(ends)-1]
		}
		kind, ok := table.Kind(opcodes[pc])
		if !ok {
			return nil, types.Errorf(types.ErrUnknownTokenKind, pc, "opcode %d", opcodes[pc])
		}
		w := Width(kind)
		if pc+w > len(opcodes) {
			return nil, types.Errorf(types.ErrUnknownTokenKind, pc, "%s truncated", kind)
		}
		ins := Instruction{PC: pc, Kind: kind, Operands: opcodes[pc+1 : pc+w], Depth: len(ends)}
		out = append(out, ins)
		pc += w
		if kind == types.TokenDerivative {
			body := int(ins.Operands[3])
			end := pc + body
			if body < 0 || end > len(opcodes) || (len(ends) > 0 && end > ends[len(ends)-1]) {
				return nil, types.Errorf(types.ErrUnknownTokenKind, ins.PC, "derivative body of %d words overruns stream", body)
			}
			ends = append(ends, end)
		}
	}
	return out, nil
}

func walk(table *abi.Table, opcodes []int32, fn func(pc int, op int32)) error {
	prog, err := Decode(table, opcodes)
	if err != nil {
		return err
	}
	for _, ins := range prog {
		fn(ins.PC, opcodes[ins.PC])
	}
	return nil
}

// Disassemble renders a channel one instruction per line.
func Disassemble(table *abi.Table, ch types.SerializedChannel) (string, error) {
	prog, err := Decode(table, ch.Opcodes)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, ins := range prog {
		fmt.Fprintf(&sb, "%04d %s%s", ins.PC, strings.Repeat("  ", ins.Depth), strings.ToUpper(abi.OpcodeName(ins.Kind)))
		switch ins.Kind {
		case types.TokenNumber:
			idx := ins.Operands[0]
			if idx >= 0 && int(idx) < len(ch.Constants) {
				fmt.Fprintf(&sb, " #%d (%g)", idx, ch.Constants[idx])
			} else {
				fmt.Fprintf(&sb, " #%d (out of range)", idx)
			}
		case types.TokenVariable:
			name, _ := table.VariableName(ins.Operands[0])
			fmt.Fprintf(&sb, " %d (%s)", ins.Operands[0], name)
		case types.TokenObjectRef:
			prop, _ := table.PropertyName("", ins.Operands[1])
			fmt.Fprintf(&sb, " [%d] %d (%s)", ins.Operands[0], ins.Operands[1], prop)
		case types.TokenDerivative:
			wrt, _ := table.VariableName(ins.Operands[0])
			method, _ := table.Method(ins.Operands[2])
			fmt.Fprintf(&sb, " wrt=%s order=%d method=%s len=%d", wrt, ins.Operands[1], method, ins.Operands[3])
		}
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
