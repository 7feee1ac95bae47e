// Copyright (c) 2026 WJQserver, Kamihama Railway Group. All rights reserved.
// Licensed under the GNU Affero General Public License, version 3.0 (the "AGPL").

// Package abi holds the name-to-code tables shared between the compiler and
// the compute kernel that executes its bytecode. Both sides are generated
// from abi.yaml so they cannot drift apart.
package abi

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/kamihama-railway/stellar/types"
	"gopkg.in/yaml.v3"
)

//go:embed abi.yaml
var defaultTable []byte

// Variable is one entry of the variables list. Code 0 registers a name the
// compiler accepts but the kernel has no slot for.
type Variable struct {
	Name           string `yaml:"name"`
	Code           int32  `yaml:"code"`
	Domain         string `yaml:"domain"`
	Differentiable bool   `yaml:"differentiable"`
}

type Property struct {
	Name string `yaml:"name"`
	Code int32  `yaml:"code"`
}

type Object struct {
	Name       string     `yaml:"name"`
	Properties []Property `yaml:"properties"`
}

type tableFile struct {
	Version           int              `yaml:"version"`
	Opcodes           map[string]int32 `yaml:"opcodes"`
	DerivativeMethods map[string]int32 `yaml:"derivative_methods"`
	Variables         []Variable       `yaml:"variables"`
	Objects           []Object         `yaml:"objects"`
}

// opcodeNames ties table keys to token kinds.
var opcodeNames = map[string]types.TokenKind{
	"number":      types.TokenNumber,
	"variable":    types.TokenVariable,
	"object_ref":  types.TokenObjectRef,
	"add":         types.TokenAdd,
	"sub":         types.TokenSub,
	"mul":         types.TokenMul,
	"div":         types.TokenDiv,
	"neg":         types.TokenNeg,
	"pow":         types.TokenPow,
	"sin":         types.TokenSin,
	"cos":         types.TokenCos,
	"tan":         types.TokenTan,
	"sqrt":        types.TokenSqrt,
	"log":         types.TokenLog,
	"exp":         types.TokenExp,
	"abs":         types.TokenAbs,
	"min":         types.TokenMin,
	"max":         types.TokenMax,
	"clamp":       types.TokenClamp,
	"floor":       types.TokenFloor,
	"ceil":        types.TokenCeil,
	"frac":        types.TokenFrac,
	"mod":         types.TokenMod,
	"atan2":       types.TokenAtan2,
	"real":        types.TokenReal,
	"imag":        types.TokenImag,
	"conj":        types.TokenConj,
	"arg":         types.TokenArg,
	"sign":        types.TokenSign,
	"step":        types.TokenStep,
	"open_paren":  types.TokenLParen,
	"close_paren": types.TokenRParen,
	"comma":       types.TokenComma,
	"derivative":  types.TokenDerivative,
}

// Table is an immutable, validated ABI.
type Table struct {
	Version int

	opcodes  map[types.TokenKind]int32
	kinds    map[int32]types.TokenKind
	methods  map[types.DerivativeMethod]int32
	vars     map[string]int32
	varNames map[int32]string
	props    map[string]map[string]int32
	src      tableFile
}

var (
	defaultOnce sync.Once
	defaultTab  *Table
	defaultErr  error
)

// Default returns the table compiled into the binary.
func Default() *Table {
	defaultOnce.Do(func() {
		defaultTab, defaultErr = Parse(defaultTable)
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("abi: embedded table is invalid: %v", defaultErr))
	}
	return defaultTab
}

func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

func Read(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("abi: %w", err)
	}
	return build(f)
}

// Extend returns a copy of t with extra variables and object types. The
// result is validated like a loaded table.
func (t *Table) Extend(vars []Variable, objects []Object) (*Table, error) {
	f := t.src
	f.Variables = append(append([]Variable(nil), t.src.Variables...), vars...)
	f.Objects = append(append([]Object(nil), t.src.Objects...), objects...)
	return build(f)
}

func build(f tableFile) (*Table, error) {
	t := &Table{
		Version:  f.Version,
		opcodes:  make(map[types.TokenKind]int32, len(f.Opcodes)),
		kinds:    make(map[int32]types.TokenKind, len(f.Opcodes)),
		methods:  make(map[types.DerivativeMethod]int32),
		vars:     make(map[string]int32, len(f.Variables)),
		varNames: make(map[int32]string, len(f.Variables)),
		props:    make(map[string]map[string]int32, len(f.Objects)),
		src:      f,
	}

	for name, code := range f.Opcodes {
		kind, ok := opcodeNames[name]
		if !ok {
			return nil, fmt.Errorf("abi: unknown opcode name %q", name)
		}
		if prev, dup := t.kinds[code]; dup {
			return nil, fmt.Errorf("abi: opcode %d assigned to both %s and %s", code, prev, kind)
		}
		t.opcodes[kind] = code
		t.kinds[code] = kind
	}
	for name, kind := range opcodeNames {
		if _, ok := t.opcodes[kind]; !ok {
			return nil, fmt.Errorf("abi: missing opcode %q", name)
		}
	}

	for name, code := range f.DerivativeMethods {
		switch name {
		case "numerical":
			t.methods[types.DerivNumerical] = code
		case "symbolic":
			t.methods[types.DerivSymbolic] = code
		default:
			return nil, fmt.Errorf("abi: unknown derivative method %q", name)
		}
	}

	for _, v := range f.Variables {
		if v.Name == "" {
			return nil, fmt.Errorf("abi: variable without a name")
		}
		if _, dup := t.vars[v.Name]; dup {
			return nil, fmt.Errorf("abi: variable %q listed twice", v.Name)
		}
		if _, ok := types.ParseDomain(v.Domain); !ok && v.Domain != "" {
			return nil, fmt.Errorf("abi: variable %q has unknown domain %q", v.Name, v.Domain)
		}
		t.vars[v.Name] = v.Code
		if v.Code == 0 {
			continue
		}
		if prev, dup := t.varNames[v.Code]; dup {
			return nil, fmt.Errorf("abi: variable code %d assigned to both %q and %q", v.Code, prev, v.Name)
		}
		t.varNames[v.Code] = v.Name
	}

	for _, o := range f.Objects {
		if _, dup := t.props[o.Name]; dup || o.Name == "" {
			return nil, fmt.Errorf("abi: object type %q listed twice or unnamed", o.Name)
		}
		codes := make(map[string]int32, len(o.Properties))
		seen := make(map[int32]string, len(o.Properties))
		for _, p := range o.Properties {
			if p.Code == 0 {
				return nil, fmt.Errorf("abi: property %s.%s needs a non-zero code", o.Name, p.Name)
			}
			if prev, dup := seen[p.Code]; dup {
				return nil, fmt.Errorf("abi: property code %d assigned to both %q and %q", p.Code, prev, p.Name)
			}
			seen[p.Code] = p.Name
			codes[p.Name] = p.Code
		}
		t.props[o.Name] = codes
	}
	return t, nil
}

func (t *Table) Opcode(kind types.TokenKind) (int32, bool) {
	c, ok := t.opcodes[kind]
	return c, ok
}

// Kind is the inverse of Opcode.
func (t *Table) Kind(code int32) (types.TokenKind, bool) {
	k, ok := t.kinds[code]
	return k, ok
}

func (t *Table) MethodCode(m types.DerivativeMethod) (int32, bool) {
	c, ok := t.methods[m]
	return c, ok
}

func (t *Table) Method(code int32) (types.DerivativeMethod, bool) {
	for m, c := range t.methods {
		if c == code {
			return m, true
		}
	}
	return 0, false
}

// VariableCode resolves a variable to its kernel slot. Names the compiler
// accepts but the kernel has no slot for report false.
func (t *Table) VariableCode(name string) (int32, bool) {
	c, ok := t.vars[name]
	if !ok || c == 0 {
		return 0, false
	}
	return c, true
}

func (t *Table) VariableName(code int32) (string, bool) {
	n, ok := t.varNames[code]
	return n, ok
}

// PropertyCode resolves an object property. An empty object name means the
// default object type "p".
func (t *Table) PropertyCode(object, property string) (int32, bool) {
	if object == "" {
		object = "p"
	}
	props, ok := t.props[object]
	if !ok {
		return 0, false
	}
	c, ok := props[property]
	return c, ok
}

func (t *Table) PropertyName(object string, code int32) (string, bool) {
	if object == "" {
		object = "p"
	}
	for name, c := range t.props[object] {
		if c == code {
			return name, true
		}
	}
	return "", false
}

// Context builds the lexer's variable table from the ABI. Every listed
// variable is registered, including those without a kernel slot.
func (t *Table) Context() *types.Context {
	ctx := types.NewContext()
	for _, v := range t.src.Variables {
		d, _ := types.ParseDomain(v.Domain)
		ctx.RegisterVariable(v.Name, d, v.Differentiable)
	}
	for _, o := range t.src.Objects {
		names := make([]string, len(o.Properties))
		for i, p := range o.Properties {
			names[i] = p.Name
		}
		ctx.RegisterObjectType(o.Name, names)
	}
	return ctx
}

// GLSLHeader renders the kernel-side constant block for this table.
func (t *Table) GLSLHeader() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "// generated from abi.yaml, version %d. do not edit.\n", t.Version)
	fmt.Fprintf(&sb, "#define STELLAR_ABI_VERSION %d\n\n", t.Version)

	ops := make([]int32, 0, len(t.kinds))
	for code := range t.kinds {
		ops = append(ops, code)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	for _, code := range ops {
		fmt.Fprintf(&sb, "const int TOKEN_%s = %d;\n", glslName(opcodeKey(t.kinds[code])), code)
	}
	sb.WriteByte('\n')

	methods := []types.DerivativeMethod{types.DerivNumerical, types.DerivSymbolic}
	for _, m := range methods {
		if code, ok := t.methods[m]; ok {
			fmt.Fprintf(&sb, "const int DERIV_METHOD_%s = %d;\n", glslName(m.String()), code)
		}
	}
	sb.WriteByte('\n')

	for _, v := range t.src.Variables {
		if v.Code == 0 {
			continue
		}
		fmt.Fprintf(&sb, "const int VAR_HASH_%s = %d;\n", glslName(v.Name), v.Code)
	}
	for _, o := range t.src.Objects {
		sb.WriteByte('\n')
		for _, p := range o.Properties {
			fmt.Fprintf(&sb, "const int PROP_HASH_%s = %d;\n", glslName(p.Name), p.Code)
		}
	}
	return sb.String()
}

// OpcodeName is the abi.yaml key for kind, e.g. "object_ref".
func OpcodeName(kind types.TokenKind) string { return opcodeKey(kind) }

func opcodeKey(kind types.TokenKind) string {
	for name, k := range opcodeNames {
		if k == kind {
			return name
		}
	}
	return kind.String()
}

func glslName(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, ".", "_"))
}
