// Copyright (c) 2026 WJQserver, Kamihama Railway Group. All rights reserved.
// Licensed under the GNU Affero General Public License, version 3.0 (the "AGPL").

package lexer

import (
	"errors"
	"strings"
	"testing"

	"github.com/kamihama-railway/stellar/abi"
	"github.com/kamihama-railway/stellar/types"
)

var ctx = abi.Default().Context()

func TestTokenize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"vx", "vx"},
		{"-k*x/mass", "neg k * x / mass"},
		{"2^3^2", "2 ^ 3 ^ 2"},
		{"x - 1", "x - 1"},
		{"x-1", "x - 1"},
		{"(x)-1", "( x ) - 1"},
		{"sin(-t)", "sin ( neg t )"},
		{"max(a, -b)", "max ( a , neg b )"},
		{"x*-y", "x * neg y"},
		{"--x", "neg neg x"},
		{"0.5*p[3].x", "0.5 * p[3].x"},
		{"p[ 12 ].data.x + 1", "p[12].data.x + 1"},
		{"p[0].color.r", "p[0].color.r"},
		{"  .25\t+\n3 ", "0.25 + 3"},
		{"exp(-1*(x*x+y*y))", "exp ( neg 1 * ( x * x + y * y ) )"},
	}

	for _, tt := range tests {
		toks, err := Tokenize(tt.input, ctx)
		if err != nil {
			t.Errorf("input %q: Tokenize error: %v", tt.input, err)
			continue
		}
		if got := types.Join(toks); got != tt.expected {
			t.Errorf("input %q: expected %q, got %q", tt.input, tt.expected, got)
		}
	}
}

func TestTokenizeObjectRef(t *testing.T) {
	toks, err := Tokenize("p[7].data.y", ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 1 {
		t.Fatalf("expected one token, got %d", len(toks))
	}
	tok := toks[0]
	if tok.Kind != types.TokenObjectRef || tok.Index != 7 || tok.Property != "data.y" || tok.Name != "p" {
		t.Errorf("unexpected token %+v", tok)
	}
}

func TestTokenizeDerivative(t *testing.T) {
	toks, err := Tokenize("D(x^2 + 5, x) + 5", ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 3 {
		t.Fatalf("expected 3 tokens, got %s", types.Join(toks))
	}
	d := toks[0]
	if d.Kind != types.TokenDerivative {
		t.Fatalf("first token is %s", d.Kind)
	}
	if d.Deriv.Wrt != "x" || d.Deriv.Order != 1 || d.Deriv.Method != types.DerivNumerical {
		t.Errorf("unexpected metadata %+v", d.Deriv)
	}
	if got := types.Join(d.Deriv.Sub); got != "x 2 ^ 5 +" {
		t.Errorf("sub-expression not postfix: %q", got)
	}
}

func TestTokenizeDerivativeOrderAndNesting(t *testing.T) {
	toks, err := Tokenize("D(D(sin(t), t), t, 3)", ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 1 {
		t.Fatalf("expected one token, got %s", types.Join(toks))
	}
	outer := toks[0].Deriv
	if outer.Order != 3 || outer.Wrt != "t" {
		t.Errorf("outer %+v", outer)
	}
	if len(outer.Sub) != 1 || outer.Sub[0].Kind != types.TokenDerivative {
		t.Fatalf("inner derivative missing: %s", types.Join(outer.Sub))
	}
	if got := types.Join(outer.Sub[0].Deriv.Sub); got != "t sin" {
		t.Errorf("inner sub = %q", got)
	}
}

func TestTokenizeNegatedDerivative(t *testing.T) {
	toks, err := Tokenize("-D(x*x, x)", ctx)
	if err != nil {
		t.Fatal(err)
	}
	kinds := []types.TokenKind{types.TokenLParen, types.TokenNumber, types.TokenSub, types.TokenDerivative, types.TokenRParen}
	if len(toks) != len(kinds) {
		t.Fatalf("got %s", types.Join(toks))
	}
	for i, k := range kinds {
		if toks[i].Kind != k {
			t.Errorf("token %d: expected %s, got %s", i, k, toks[i].Kind)
		}
	}
	if toks[1].Value != 0 {
		t.Errorf("synthesized operand should be 0, got %v", toks[1].Value)
	}
}

func TestDerivativeInsideIdentifier(t *testing.T) {
	// "myD(" is not a derivative call; the lexeme fails classification.
	_, err := Tokenize("myD(x, x)", ctx)
	if !errors.Is(err, types.ErrUnknownToken) {
		t.Fatalf("expected unknown token, got %v", err)
	}
	if !strings.Contains(err.Error(), "myD") {
		t.Errorf("error should name the lexeme: %v", err)
	}
}

func TestTokenizeErrors(t *testing.T) {
	tests := []struct {
		input string
		code  error
		kind  types.ErrorKind
	}{
		{"foo + 1", types.ErrUnknownToken, types.LexError},
		{"1.2.3", types.ErrUnknownToken, types.LexError},
		{"inf", types.ErrUnknownToken, types.LexError},
		{"q[0].x", types.ErrUnknownToken, types.LexError},
		{"p[0.x", types.ErrUnclosedBracket, types.SyntaxError},
		{"p[a].x", types.ErrBadObjectIndex, types.LexError},
		{"p[-1].x", types.ErrBadObjectIndex, types.LexError},
		{"p[0]", types.ErrMissingProperty, types.SyntaxError},
		{"p[0]. + 1", types.ErrMissingProperty, types.SyntaxError},
		{"D(x, t_unregistered)", types.ErrInvalidDerivVar, types.SemanticError},
		{"D(x, k)", types.ErrInvalidDerivVar, types.SemanticError},
		{"D(x, x, 5)", types.ErrInvalidDerivOrder, types.SemanticError},
		{"D(x, x, 0)", types.ErrInvalidDerivOrder, types.SemanticError},
		{"D(x, x, two)", types.ErrInvalidDerivOrder, types.SemanticError},
		{"D(x, x", types.ErrUnclosedDeriv, types.SyntaxError},
		{"D(x*x", types.ErrUnclosedDeriv, types.SyntaxError},
		{"D(x)", types.ErrUnclosedDeriv, types.SyntaxError},
		{"D(sin(x, x)", types.ErrUnclosedDeriv, types.SyntaxError},
		{"D(foo, x)", types.ErrUnknownToken, types.LexError},
	}

	for _, tt := range tests {
		_, err := Tokenize(tt.input, ctx)
		if !errors.Is(err, tt.code) {
			t.Errorf("input %q: expected %v, got %v", tt.input, tt.code, err)
			continue
		}
		if k := types.KindOf(err); k != tt.kind {
			t.Errorf("input %q: kind %s, want %s", tt.input, k, tt.kind)
		}
	}
}

func TestDerivativeNestingLimit(t *testing.T) {
	src := "x"
	for i := 0; i <= MaxDerivativeDepth; i++ {
		src = "D(" + src + ", x)"
	}
	_, err := Tokenize(src, ctx)
	if !errors.Is(err, types.ErrDerivDepth) {
		t.Fatalf("expected depth error, got %v", err)
	}
}

func TestNestedErrorPosition(t *testing.T) {
	_, err := Tokenize("1 + D(foo, x)", ctx)
	var e *types.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *types.Error, got %v", err)
	}
	if e.Pos != 6 {
		t.Errorf("pos = %d, want 6", e.Pos)
	}
}

func TestLexerPoolReuse(t *testing.T) {
	for i := 0; i < 100; i++ {
		toks, err := Tokenize("vx + 1", ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(toks) != 3 {
			t.Fatalf("iteration %d: stale state, got %s", i, types.Join(toks))
		}
	}
}
