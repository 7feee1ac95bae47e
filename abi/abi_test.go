// Copyright (c) 2026 WJQserver, Kamihama Railway Group. All rights reserved.
// Licensed under the GNU Affero General Public License, version 3.0 (the "AGPL").

package abi

import (
	"strings"
	"testing"

	"github.com/kamihama-railway/stellar/types"
)

func TestDefaultTableCodes(t *testing.T) {
	tab := Default()

	ops := []struct {
		kind types.TokenKind
		code int32
	}{
		{types.TokenNumber, 0},
		{types.TokenVariable, 1},
		{types.TokenObjectRef, 2},
		{types.TokenAdd, 3},
		{types.TokenNeg, 7},
		{types.TokenPow, 8},
		{types.TokenClamp, 18},
		{types.TokenStep, 29},
		{types.TokenDerivative, 33},
	}
	for _, tt := range ops {
		got, ok := tab.Opcode(tt.kind)
		if !ok || got != tt.code {
			t.Errorf("Opcode(%s) = %d, %v; want %d", tt.kind, got, ok, tt.code)
		}
		back, ok := tab.Kind(tt.code)
		if !ok || back != tt.kind {
			t.Errorf("Kind(%d) = %s; want %s", tt.code, back, tt.kind)
		}
	}

	vars := []struct {
		name string
		code int32
	}{
		{"x", 1}, {"vy", 4}, {"t", 7}, {"damping", 20}, {"gravity", 21}, {"omega", 27}, {"alpha", 28},
	}
	for _, tt := range vars {
		got, ok := tab.VariableCode(tt.name)
		if !ok || got != tt.code {
			t.Errorf("VariableCode(%q) = %d, %v; want %d", tt.name, got, ok, tt.code)
		}
	}

	if _, ok := tab.VariableCode("radius"); ok {
		t.Errorf("radius has no kernel slot and must not resolve")
	}
	if c, ok := tab.PropertyCode("", "data.x"); !ok || c != 9 {
		t.Errorf("PropertyCode(data.x) = %d, %v", c, ok)
	}
	if c, ok := tab.PropertyCode("p", "color.a"); !ok || c != 16 {
		t.Errorf("PropertyCode(color.a) = %d, %v", c, ok)
	}
	if _, ok := tab.PropertyCode("p", "spin"); ok {
		t.Errorf("unknown property resolved")
	}
}

func TestContextFromTable(t *testing.T) {
	ctx := Default().Context()
	if !ctx.IsValidVariable("radius") {
		t.Errorf("radius should be a known variable")
	}
	if !ctx.IsValidDerivativeWRT("x") {
		t.Errorf("x should be differentiable")
	}
	if ctx.IsValidDerivativeWRT("k") {
		t.Errorf("k should not be differentiable")
	}
	if ctx.VariableDomain("theta") != types.DomainRotational {
		t.Errorf("theta domain = %s", ctx.VariableDomain("theta"))
	}
	if !ctx.IsObjectType("p") {
		t.Errorf("p should be an object type")
	}
}

func TestParseRejectsBadTables(t *testing.T) {
	base := string(defaultTable)
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"duplicate opcode", strings.Replace(base, "sub: 4", "sub: 3", 1), "opcode 3"},
		{"unknown opcode", strings.Replace(base, "number: 0", "bogus: 99\n  number: 0", 1), "bogus"},
		{"duplicate variable code", strings.Replace(base, "{name: y, code: 2", "{name: y, code: 1", 1), "variable code 1"},
		{"bad domain", strings.Replace(base, "{name: t, code: 7, domain: time", "{name: t, code: 7, domain: warp", 1), "unknown domain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestGLSLHeader(t *testing.T) {
	h := Default().GLSLHeader()
	for _, want := range []string{
		"const int TOKEN_NUMBER = 0;",
		"const int TOKEN_DERIVATIVE = 33;",
		"const int VAR_HASH_OMEGA = 27;",
		"const int PROP_HASH_DATA_X = 9;",
		"const int PROP_HASH_COLOR_A = 16;",
		"const int DERIV_METHOD_NUMERICAL = 0;",
	} {
		if !strings.Contains(h, want) {
			t.Errorf("header missing %q", want)
		}
	}
	if strings.Contains(h, "RADIUS") {
		t.Errorf("variables without a kernel slot must not be emitted")
	}
}

func TestExtend(t *testing.T) {
	base := Default()
	ext, err := base.Extend(
		[]Variable{{Name: "spin", Code: 40, Domain: "rotational", Differentiable: true}},
		[]Object{{Name: "q", Properties: []Property{{Name: "x", Code: 1}, {Name: "heat", Code: 2}}}},
	)
	if err != nil {
		t.Fatal(err)
	}
	if c, ok := ext.VariableCode("spin"); !ok || c != 40 {
		t.Errorf("spin = %d, %v", c, ok)
	}
	if c, ok := ext.PropertyCode("q", "heat"); !ok || c != 2 {
		t.Errorf("q.heat = %d, %v", c, ok)
	}
	if !ext.Context().IsValidDerivativeWRT("spin") || !ext.Context().IsObjectType("q") {
		t.Errorf("extended context incomplete")
	}
	if _, ok := base.VariableCode("spin"); ok {
		t.Errorf("Extend modified the base table")
	}
	if m, ok := ext.Method(0); !ok || m != types.DerivNumerical {
		t.Errorf("Method(0) = %v, %v", m, ok)
	}

	if _, err := base.Extend([]Variable{{Name: "x", Code: 41}}, nil); err == nil {
		t.Errorf("duplicate variable accepted")
	}
	if _, err := base.Extend([]Variable{{Name: "w", Code: 1}}, nil); err == nil {
		t.Errorf("duplicate code accepted")
	}
	if _, err := base.Extend(nil, []Object{{Name: "p"}}); err == nil {
		t.Errorf("duplicate object type accepted")
	}
}
