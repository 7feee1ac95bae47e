// Copyright (c) 2026 WJQserver, Kamihama Railway Group. All rights reserved.
// Licensed under the GNU Affero General Public License, version 3.0 (the "AGPL").

package types

import (
	"fmt"
	"strconv"
	"strings"
)

type TokenKind byte

const (
	TokenNumber TokenKind = iota
	TokenVariable
	TokenObjectRef
	TokenAdd
	TokenSub
	TokenMul
	TokenDiv
	TokenNeg
	TokenPow
	TokenSin
	TokenCos
	TokenTan
	TokenSqrt
	TokenLog
	TokenExp
	TokenAbs
	TokenMin
	TokenMax
	TokenClamp
	TokenFloor
	TokenCeil
	TokenFrac
	TokenMod
	TokenAtan2
	TokenReal
	TokenImag
	TokenConj
	TokenArg
	TokenSign
	TokenStep
	TokenLParen
	TokenRParen
	TokenComma
	TokenDerivative
)

var kindNames = [...]string{
	TokenNumber:     "NUMBER",
	TokenVariable:   "VARIABLE",
	TokenObjectRef:  "OBJECT_REF",
	TokenAdd:        "+",
	TokenSub:        "-",
	TokenMul:        "*",
	TokenDiv:        "/",
	TokenNeg:        "neg",
	TokenPow:        "^",
	TokenSin:        "sin",
	TokenCos:        "cos",
	TokenTan:        "tan",
	TokenSqrt:       "sqrt",
	TokenLog:        "log",
	TokenExp:        "exp",
	TokenAbs:        "abs",
	TokenMin:        "min",
	TokenMax:        "max",
	TokenClamp:      "clamp",
	TokenFloor:      "floor",
	TokenCeil:       "ceil",
	TokenFrac:       "frac",
	TokenMod:        "mod",
	TokenAtan2:      "atan2",
	TokenReal:       "real",
	TokenImag:       "imag",
	TokenConj:       "conj",
	TokenArg:        "arg",
	TokenSign:       "sign",
	TokenStep:       "step",
	TokenLParen:     "(",
	TokenRParen:     ")",
	TokenComma:      ",",
	TokenDerivative: "D",
}

func (k TokenKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("UNKNOWN(%d)", k)
}

// IsOperand reports whether tokens of this kind go straight to the output
// queue of the shunting-yard stage.
func (k TokenKind) IsOperand() bool {
	switch k {
	case TokenNumber, TokenVariable, TokenObjectRef, TokenDerivative:
		return true
	}
	return false
}

// IsBinaryOperator covers the infix arithmetic operators only.
func (k TokenKind) IsBinaryOperator() bool {
	switch k {
	case TokenAdd, TokenSub, TokenMul, TokenDiv, TokenPow:
		return true
	}
	return false
}

// Functions maps source spellings to their function kinds.
var Functions = map[string]TokenKind{
	"sin":   TokenSin,
	"cos":   TokenCos,
	"tan":   TokenTan,
	"sqrt":  TokenSqrt,
	"log":   TokenLog,
	"exp":   TokenExp,
	"abs":   TokenAbs,
	"min":   TokenMin,
	"max":   TokenMax,
	"clamp": TokenClamp,
	"floor": TokenFloor,
	"ceil":  TokenCeil,
	"frac":  TokenFrac,
	"mod":   TokenMod,
	"atan2": TokenAtan2,
	"real":  TokenReal,
	"imag":  TokenImag,
	"conj":  TokenConj,
	"arg":   TokenArg,
	"sign":  TokenSign,
	"step":  TokenStep,
}

// Arity holds the operand count of every function-like kind, unary
// negation included.
var Arity = map[TokenKind]int{
	TokenNeg:   1,
	TokenSin:   1,
	TokenCos:   1,
	TokenTan:   1,
	TokenSqrt:  1,
	TokenLog:   1,
	TokenExp:   1,
	TokenAbs:   1,
	TokenFloor: 1,
	TokenCeil:  1,
	TokenFrac:  1,
	TokenSign:  1,
	TokenStep:  1,
	TokenReal:  1,
	TokenImag:  1,
	TokenConj:  1,
	TokenArg:   1,
	TokenMin:   2,
	TokenMax:   2,
	TokenMod:   2,
	TokenAtan2: 2,
	TokenClamp: 3,
}

// IsFunction reports whether k is pushed onto the operator stack as a
// function call (unary negation counts).
func (k TokenKind) IsFunction() bool {
	_, ok := Arity[k]
	return ok
}

type DerivativeMethod byte

const (
	DerivNumerical DerivativeMethod = iota
	DerivSymbolic
)

func (m DerivativeMethod) String() string {
	switch m {
	case DerivNumerical:
		return "numerical"
	case DerivSymbolic:
		return "symbolic"
	default:
		return fmt.Sprintf("method(%d)", m)
	}
}

// Derivative is the payload of a TokenDerivative. Sub is always postfix.
type Derivative struct {
	Wrt    string
	Order  int
	Method DerivativeMethod
	Sub    []Token
}

// Token is a closed sum over TokenKind. Only the fields belonging to Kind
// are meaningful.
type Token struct {
	Kind TokenKind

	Value float32 // TokenNumber
	Name  string  // TokenVariable, object type for TokenObjectRef

	Index    int    // TokenObjectRef
	Property string // TokenObjectRef

	Deriv *Derivative // TokenDerivative
}

func Number(v float32) Token { return Token{Kind: TokenNumber, Value: v} }

func Variable(name string) Token { return Token{Kind: TokenVariable, Name: name} }

func ObjectRef(object string, index int, property string) Token {
	return Token{Kind: TokenObjectRef, Name: object, Index: index, Property: property}
}

func Op(kind TokenKind) Token { return Token{Kind: kind} }

func NewDerivative(wrt string, order int, method DerivativeMethod, sub []Token) Token {
	return Token{Kind: TokenDerivative, Deriv: &Derivative{Wrt: wrt, Order: order, Method: method, Sub: sub}}
}

func (t Token) String() string {
	switch t.Kind {
	case TokenNumber:
		return strconv.FormatFloat(float64(t.Value), 'g', -1, 32)
	case TokenVariable:
		return t.Name
	case TokenObjectRef:
		obj := t.Name
		if obj == "" {
			obj = "p"
		}
		return fmt.Sprintf("%s[%d].%s", obj, t.Index, t.Property)
	case TokenDerivative:
		if t.Deriv == nil {
			return "D(?)"
		}
		return fmt.Sprintf("D[%s](%s, %s, %d)", t.Deriv.Method, Join(t.Deriv.Sub), t.Deriv.Wrt, t.Deriv.Order)
	default:
		return t.Kind.String()
	}
}

// Join renders a token sequence space separated, the way postfix listings
// are printed in tests and by the CLI.
func Join(tokens []Token) string {
	var sb strings.Builder
	for i, t := range tokens {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.String())
	}
	return sb.String()
}

// Equal compares two token sequences structurally, descending into
// derivative sub-expressions.
func Equal(a, b []Token) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.Kind != y.Kind {
			return false
		}
		switch x.Kind {
		case TokenNumber:
			if x.Value != y.Value {
				return false
			}
		case TokenVariable:
			if x.Name != y.Name {
				return false
			}
		case TokenObjectRef:
			if x.Index != y.Index || x.Property != y.Property {
				return false
			}
		case TokenDerivative:
			if x.Deriv == nil || y.Deriv == nil {
				if x.Deriv != y.Deriv {
					return false
				}
				continue
			}
			if x.Deriv.Wrt != y.Deriv.Wrt || x.Deriv.Order != y.Deriv.Order || x.Deriv.Method != y.Deriv.Method {
				return false
			}
			if !Equal(x.Deriv.Sub, y.Deriv.Sub) {
				return false
			}
		}
	}
	return true
}
