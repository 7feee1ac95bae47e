// Copyright (c) 2026 WJQserver, Kamihama Railway Group. All rights reserved.
// Licensed under the GNU Affero General Public License, version 3.0 (the "AGPL").

package rpn

import (
	"github.com/kamihama-railway/stellar/types"
)

const (
	_ int = iota
	LOWEST
	SUM
	PRODUCT
	PREFIX
	POWER
)

type operatorInfo struct {
	precedence int
	rightAssoc bool
}

var operators = map[types.TokenKind]operatorInfo{
	types.TokenAdd: {SUM, false},
	types.TokenSub: {SUM, false},
	types.TokenMul: {PRODUCT, false},
	types.TokenDiv: {PRODUCT, false},
	types.TokenNeg: {PREFIX, true},
	types.TokenPow: {POWER, true}, // 2^3^2 = 2^(3^2)
}

func Precedence(k types.TokenKind) int {
	if op, ok := operators[k]; ok {
		return op.precedence
	}
	return LOWEST
}

// ToPostfix reorders an infix token sequence into postfix with the
// shunting-yard algorithm. Argument counts are not checked here.
func ToPostfix(infix []types.Token) ([]types.Token, error) {
	output := make([]types.Token, 0, len(infix))
	stack := make([]types.Token, 0, 8)

	for i, tok := range infix {
		switch {
		case tok.Kind.IsOperand():
			output = append(output, tok)

		case tok.Kind.IsFunction():
			stack = append(stack, tok)

		case tok.Kind == types.TokenComma:
			for len(stack) > 0 && stack[len(stack)-1].Kind != types.TokenLParen {
				output = append(output, stack[len(stack)-1])
				stack = stack[:len(stack)-1]
			}
			if len(stack) == 0 {
				return nil, types.Errorf(types.ErrMisplacedComma, -1, "comma outside of a call (token %d)", i)
			}

		case tok.Kind == types.TokenLParen:
			stack = append(stack, tok)

		case tok.Kind == types.TokenRParen:
			for len(stack) > 0 && stack[len(stack)-1].Kind != types.TokenLParen {
				output = append(output, stack[len(stack)-1])
				stack = stack[:len(stack)-1]
			}
			if len(stack) == 0 {
				return nil, types.Errorf(types.ErrMismatchedParens, -1, "unexpected ')' (token %d)", i)
			}
			stack = stack[:len(stack)-1]
			if len(stack) > 0 && stack[len(stack)-1].Kind.IsFunction() {
				output = append(output, stack[len(stack)-1])
				stack = stack[:len(stack)-1]
			}

		default:
			cur, ok := operators[tok.Kind]
			if !ok {
				return nil, types.Errorf(types.ErrUnknownTokenKind, -1, "%s", tok.Kind)
			}
			for len(stack) > 0 {
				top, ok := operators[stack[len(stack)-1].Kind]
				if !ok {
					break
				}
				if cur.rightAssoc {
					if top.precedence <= cur.precedence {
						break
					}
				} else if top.precedence < cur.precedence {
					break
				}
				output = append(output, stack[len(stack)-1])
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, tok)
		}
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.Kind == types.TokenLParen {
			return nil, types.Errorf(types.ErrMismatchedParens, -1, "unclosed '('")
		}
		output = append(output, top)
		stack = stack[:len(stack)-1]
	}
	return output, nil
}

// operands returns how many stack slots a postfix token pops.
func operands(k types.TokenKind) int {
	if k.IsBinaryOperator() {
		return 2
	}
	if n, ok := types.Arity[k]; ok {
		return n
	}
	return 0
}

// CheckStack simulates a stack machine over a postfix sequence and returns
// the deepest stack reached. An empty sequence is valid and has depth 0.
// Derivative sub-expressions are checked recursively.
func CheckStack(postfix []types.Token) (int, error) {
	depth, peak := 0, 0
	for i, tok := range postfix {
		switch {
		case tok.Kind == types.TokenDerivative:
			if tok.Deriv != nil {
				inner, err := CheckStack(tok.Deriv.Sub)
				if err != nil {
					return 0, err
				}
				if inner == 0 {
					return 0, types.Errorf(types.ErrStackUnderflow, -1, "empty expression inside D()")
				}
				if depth+inner > peak {
					peak = depth + inner
				}
			}
			depth++
		case tok.Kind.IsOperand():
			depth++
		default:
			n := operands(tok.Kind)
			if n == 0 {
				return 0, types.Errorf(types.ErrUnknownTokenKind, -1, "%s in postfix output", tok.Kind)
			}
			if depth < n {
				return 0, types.Errorf(types.ErrStackUnderflow, -1, "%s needs %d operand(s) (token %d)", tok.Kind, n, i)
			}
			depth = depth - n + 1
		}
		if depth > peak {
			peak = depth
		}
	}
	if depth > 1 {
		return 0, types.Errorf(types.ErrDanglingOperand, -1, "%d values left on the stack", depth)
	}
	return peak, nil
}
