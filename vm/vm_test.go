// Copyright (c) 2026 WJQserver, Kamihama Railway Group. All rights reserved.
// Licensed under the GNU Affero General Public License, version 3.0 (the "AGPL").

package vm

import (
	"errors"
	"math"
	"testing"

	"github.com/kamihama-railway/stellar/abi"
	"github.com/kamihama-railway/stellar/bytecode"
	"github.com/kamihama-railway/stellar/parser"
	"github.com/kamihama-railway/stellar/types"
)

var table = abi.Default()

func eval(t *testing.T, expr string, state State) float64 {
	t.Helper()
	postfix, err := parser.ParseExpression(expr, table.Context())
	if err != nil {
		t.Fatalf("input %q: parse: %v", expr, err)
	}
	ch, err := bytecode.Serialize(postfix)
	if err != nil {
		t.Fatalf("input %q: serialize: %v", expr, err)
	}
	v, err := RunChannel(ch, state)
	if err != nil {
		t.Fatalf("input %q: run: %v", expr, err)
	}
	return v
}

func testState(t *testing.T) *MapState {
	t.Helper()
	s, err := Bind(table,
		map[string]float64{"x": 3, "y": 4, "vx": 0.5, "t": 2, "k": 2, "mass": 4, "pi": math.Pi},
		map[string]float64{"x": 10, "y": 20},
		map[string]float64{"x": -1, "color.a": 0.25},
	)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRun(t *testing.T) {
	s := testState(t)
	tests := []struct {
		input    string
		expected float64
	}{
		{"2^3^2", 512},
		{"-k*x/mass", -1.5},
		{"-x^2", -9},
		{"(-x)^2", 9},
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"10 / 4 - 1", 1.5},
		{"sqrt(x*x + y*y)", 5},
		{"max(min(x, 1), 0)", 1},
		{"clamp(x, 0, 2)", 2},
		{"clamp(-x, 0, 2)", 0},
		{"mod(-1, 3)", 2},
		{"frac(2.75)", 0.75},
		{"floor(-0.5) + ceil(0.5)", 0},
		{"sign(-y) + step(0) + step(-1)", 0},
		{"abs(-vx)", 0.5},
		{"atan2(1, 0)", math.Pi / 2},
		{"real(x) + imag(x) + conj(y)", 7},
		{"arg(-1)", math.Pi},
		{"exp(0) + log(1)", 1},
		{"p[0].x + p[1].x", 9},
		{"p[1].color.a", 0.25},
		{"cos(pi)", -1},
	}
	for _, tt := range tests {
		if got := eval(t, tt.input, s); math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("input %q: expected %v, got %v", tt.input, tt.expected, got)
		}
	}
}

func TestRunDerivatives(t *testing.T) {
	s := testState(t)
	tests := []struct {
		input    string
		expected float64
		tol      float64
	}{
		{"D(x^2 + 5, x) + 5", 11, 1e-4},
		{"D(x^3, x, 2)", 18, 1e-3},
		{"D(x^4, x, 3)", 72, 1e-2},
		{"D(x^4, x, 4)", 24, 1e-2},
		{"D(sin(t), t)", math.Cos(2), 1e-5},
		{"-D(x*x, x)", -6, 1e-4},
		{"D(D(x^3, x), x)", 18, 1e-2},
		{"D(y*x, x)", 4, 1e-5},
		{"D(k, x)", 0, 1e-9},
	}
	for _, tt := range tests {
		if got := eval(t, tt.input, s); math.Abs(got-tt.expected) > tt.tol {
			t.Errorf("input %q: expected %v, got %v", tt.input, tt.expected, got)
		}
	}
}

func TestEmptyChannel(t *testing.T) {
	v, err := Run(nil, nil, &MapState{})
	if err != nil || v != 0 {
		t.Errorf("empty channel = %v, %v", v, err)
	}
}

func TestRunErrors(t *testing.T) {
	s := testState(t)
	tests := []struct {
		name    string
		opcodes []int32
		consts  []float32
		code    error
	}{
		{"underflow", []int32{3}, nil, types.ErrStackUnderflow},
		{"dangling", []int32{0, 0, 0, 0}, []float32{1}, types.ErrDanglingOperand},
		{"unbound variable", []int32{1, 20}, nil, types.ErrUnknownVariableName},
		{"unbound property", []int32{2, 5, 1}, nil, types.ErrUnknownPropertyName},
		{"unknown opcode", []int32{99}, nil, types.ErrUnknownTokenKind},
		{"paren opcode", []int32{0, 0, 30}, []float32{1}, types.ErrUnknownTokenKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(tt.opcodes, tt.consts, s)
			if !errors.Is(err, tt.code) {
				t.Errorf("expected %v, got %v", tt.code, err)
			}
		})
	}

	deep := make([]int32, 0, 2*(StackSize+1))
	for i := 0; i <= StackSize; i++ {
		deep = append(deep, 0, 0)
	}
	if _, err := Run(deep, []float32{1}, s); !errors.Is(err, ErrStackOverflow) {
		t.Errorf("expected overflow, got %v", err)
	}
}

func TestBindUnknownNames(t *testing.T) {
	if _, err := Bind(table, map[string]float64{"radius": 1}); !errors.Is(err, types.ErrUnknownVariableName) {
		t.Errorf("radius has no slot, got %v", err)
	}
	if _, err := Bind(table, nil, map[string]float64{"spin": 1}); !errors.Is(err, types.ErrUnknownPropertyName) {
		t.Errorf("spin is not a property, got %v", err)
	}
}

func BenchmarkRun(b *testing.B) {
	postfix, _ := parser.ParseExpression("exp(-1*(x*x+y*y)*(1 + 0.5*sin(0.3*t)))", table.Context())
	ch, _ := bytecode.Serialize(postfix)
	s, _ := Bind(table, map[string]float64{"x": 0.3, "y": 0.4, "t": 1})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		RunChannel(ch, s)
	}
}
