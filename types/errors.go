// Copyright (c) 2026 WJQserver, Kamihama Railway Group. All rights reserved.
// Licensed under the GNU Affero General Public License, version 3.0 (the "AGPL").

package types

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	LexError
	SyntaxError
	SemanticError
	CapacityError
)

func (k ErrorKind) String() string {
	switch k {
	case LexError:
		return "lex error"
	case SyntaxError:
		return "syntax error"
	case SemanticError:
		return "semantic error"
	case CapacityError:
		return "capacity error"
	default:
		return "error"
	}
}

// Sentinel codes. Match with errors.Is.
var (
	ErrUnknownToken     = errors.New("unknown token")
	ErrBadObjectIndex   = errors.New("invalid object index")
	ErrUnclosedBracket  = errors.New("unclosed bracket in object reference")
	ErrMissingProperty  = errors.New("missing property in object reference")
	ErrMismatchedParens = errors.New("mismatched parentheses")
	ErrMisplacedComma   = errors.New("misplaced comma")
	ErrUnclosedDeriv    = errors.New("unclosed derivative call")
	ErrDerivDepth       = errors.New("derivative nesting too deep")
	ErrTooManyChannels  = errors.New("too many channels")
	ErrStackUnderflow   = errors.New("operator is missing operands")
	ErrDanglingOperand  = errors.New("expression leaves extra operands")

	ErrUnknownVariableName = errors.New("unknown variable name")
	ErrUnknownPropertyName = errors.New("unknown property name")
	ErrUnknownTokenKind    = errors.New("unknown token kind")
	ErrInvalidDerivVar     = errors.New("cannot take derivative with respect to variable")
	ErrInvalidDerivOrder   = errors.New("invalid derivative order")

	ErrNoFreeSlot = errors.New("max equations reached")
)

var codeKinds = map[error]ErrorKind{
	ErrUnknownToken:        LexError,
	ErrBadObjectIndex:      LexError,
	ErrUnclosedBracket:     SyntaxError,
	ErrMissingProperty:     SyntaxError,
	ErrMismatchedParens:    SyntaxError,
	ErrMisplacedComma:      SyntaxError,
	ErrUnclosedDeriv:       SyntaxError,
	ErrDerivDepth:          SyntaxError,
	ErrTooManyChannels:     SyntaxError,
	ErrStackUnderflow:      SyntaxError,
	ErrDanglingOperand:     SyntaxError,
	ErrUnknownVariableName: SemanticError,
	ErrUnknownPropertyName: SemanticError,
	ErrUnknownTokenKind:    SemanticError,
	ErrInvalidDerivVar:     SemanticError,
	ErrInvalidDerivOrder:   SemanticError,
	ErrNoFreeSlot:          CapacityError,
}

// Error is the single failure type returned by every compile stage.
// Pos is a byte offset into the source, or -1 when not applicable.
type Error struct {
	Kind   ErrorKind
	Code   error
	Detail string
	Pos    int
}

func (e *Error) Error() string {
	msg := e.Code.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Pos >= 0 {
		return fmt.Sprintf("%s at %d: %s", e.Kind, e.Pos, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Code }

// Errorf builds an *Error for a sentinel code; the kind follows from the code.
func Errorf(code error, pos int, format string, args ...any) *Error {
	return &Error{Kind: codeKinds[code], Code: code, Detail: fmt.Sprintf(format, args...), Pos: pos}
}

// KindOf classifies any error returned by this module.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
