// Copyright (c) 2026 WJQserver, Kamihama Railway Group. All rights reserved.
// Licensed under the GNU Affero General Public License, version 3.0 (the "AGPL").

package bytecode

import (
	"sync"

	"github.com/kamihama-railway/stellar/abi"
	"github.com/kamihama-railway/stellar/types"
)

// Serializer turns one postfix channel into kernel opcodes and a
// deduplicated constant pool.
type Serializer struct {
	table *abi.Table

	opcodes   []int32
	constants []float32
	constMap  map[float32]int32
}

var serializerPool = sync.Pool{
	New: func() any {
		return &Serializer{constMap: make(map[float32]int32)}
	},
}

func newSerializer(table *abi.Table) *Serializer {
	s := serializerPool.Get().(*Serializer)
	s.table = table
	s.opcodes = nil
	s.constants = nil
	clear(s.constMap)
	return s
}

func releaseSerializer(s *Serializer) {
	s.table = nil
	s.opcodes = nil
	s.constants = nil
	serializerPool.Put(s)
}

// Serialize compiles a postfix sequence against the default ABI.
func Serialize(postfix []types.Token) (types.SerializedChannel, error) {
	return SerializeWith(abi.Default(), postfix)
}

func SerializeWith(table *abi.Table, postfix []types.Token) (types.SerializedChannel, error) {
	s := newSerializer(table)
	defer releaseSerializer(s)
	if err := s.serialize(postfix); err != nil {
		return types.SerializedChannel{}, err
	}
	return types.SerializedChannel{Opcodes: s.opcodes, Constants: s.constants}, nil
}

// SerializeEquation serializes every channel with its own constant pool.
// Nothing is returned unless all channels succeed.
func SerializeEquation(table *abi.Table, eq *types.ParsedEquation) (*types.SerializedEquation, error) {
	out := &types.SerializedEquation{}
	for _, ch := range types.Channels {
		toks := eq.Get(ch)
		if len(toks) == 0 {
			continue
		}
		sc, err := SerializeWith(table, toks)
		if err != nil {
			return nil, err
		}
		out.Channels[ch] = sc
	}
	return out, nil
}

func (s *Serializer) serialize(postfix []types.Token) error {
	for _, tok := range postfix {
		switch tok.Kind {
		case types.TokenNumber:
			s.emit(types.TokenNumber, s.addConstant(tok.Value))

		case types.TokenVariable:
			code, ok := s.table.VariableCode(tok.Name)
			if !ok {
				return types.Errorf(types.ErrUnknownVariableName, -1, "%q", tok.Name)
			}
			s.emit(types.TokenVariable, code)

		case types.TokenObjectRef:
			code, ok := s.table.PropertyCode(tok.Name, tok.Property)
			if !ok {
				return types.Errorf(types.ErrUnknownPropertyName, -1, "%q", tok.Property)
			}
			s.emit(types.TokenObjectRef, int32(tok.Index), code)

		case types.TokenDerivative:
			if err := s.derivative(tok.Deriv); err != nil {
				return err
			}

		default:
			if !tok.Kind.IsFunction() && !tok.Kind.IsBinaryOperator() {
				return types.Errorf(types.ErrUnknownTokenKind, -1, "%s", tok.Kind)
			}
			s.emit(tok.Kind)
		}
	}
	return nil
}

// derivative serializes the sub-expression with a private pool, then folds
// that pool into this one and rewrites the NUMBER operands to match.
func (s *Serializer) derivative(d *types.Derivative) error {
	if d == nil {
		return types.Errorf(types.ErrUnknownTokenKind, -1, "derivative without payload")
	}
	wrt, ok := s.table.VariableCode(d.Wrt)
	if !ok {
		return types.Errorf(types.ErrUnknownVariableName, -1, "%q", d.Wrt)
	}
	method, ok := s.table.MethodCode(d.Method)
	if !ok {
		return types.Errorf(types.ErrUnknownTokenKind, -1, "derivative method %s", d.Method)
	}

	local := newSerializer(s.table)
	defer releaseSerializer(local)
	if err := local.serialize(d.Sub); err != nil {
		return err
	}

	remap := make([]int32, len(local.constants))
	for i, v := range local.constants {
		remap[i] = s.addConstant(v)
	}
	numberOp, _ := s.table.Opcode(types.TokenNumber)
	if err := walk(s.table, local.opcodes, func(pc int, op int32) {
		if op == numberOp {
			local.opcodes[pc+1] = remap[local.opcodes[pc+1]]
		}
	}); err != nil {
		return err
	}

	s.emit(types.TokenDerivative, wrt, int32(d.Order), method, int32(len(local.opcodes)))
	s.opcodes = append(s.opcodes, local.opcodes...)
	return nil
}

func (s *Serializer) addConstant(v float32) int32 {
	if idx, ok := s.constMap[v]; ok {
		return idx
	}
	idx := int32(len(s.constants))
	s.constants = append(s.constants, v)
	s.constMap[v] = idx
	return idx
}

func (s *Serializer) emit(kind types.TokenKind, operands ...int32) {
	op, ok := s.table.Opcode(kind)
	if !ok {
		// Parse guarantees every kind has an opcode.
		panic("bytecode: no opcode for " + kind.String())
	}
	s.opcodes = append(s.opcodes, op)
	s.opcodes = append(s.opcodes, operands...)
}
