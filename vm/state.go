// Copyright (c) 2026 WJQserver, Kamihama Railway Group. All rights reserved.
// Licensed under the GNU Affero General Public License, version 3.0 (the "AGPL").

package vm

import (
	"fmt"

	"github.com/kamihama-railway/stellar/abi"
	"github.com/kamihama-railway/stellar/types"
)

// State supplies variable and object property values by ABI code.
type State interface {
	Variable(code int32) (float64, bool)
	Property(index, code int32) (float64, bool)
}

// MapState is the plain State used by tests and the CLI.
type MapState struct {
	Vars    map[int32]float64
	Objects []map[int32]float64
}

func (s *MapState) Variable(code int32) (float64, bool) {
	v, ok := s.Vars[code]
	return v, ok
}

func (s *MapState) Property(index, code int32) (float64, bool) {
	if index < 0 || int(index) >= len(s.Objects) {
		return 0, false
	}
	v, ok := s.Objects[index][code]
	return v, ok
}

// Bind resolves variable and property names through the table.
func Bind(table *abi.Table, vars map[string]float64, objects ...map[string]float64) (*MapState, error) {
	s := &MapState{Vars: make(map[int32]float64, len(vars))}
	for name, v := range vars {
		code, ok := table.VariableCode(name)
		if !ok {
			return nil, fmt.Errorf("bind %q: %w", name, types.ErrUnknownVariableName)
		}
		s.Vars[code] = v
	}
	for i, obj := range objects {
		props := make(map[int32]float64, len(obj))
		for name, v := range obj {
			code, ok := table.PropertyCode("", name)
			if !ok {
				return nil, fmt.Errorf("bind object %d %q: %w", i, name, types.ErrUnknownPropertyName)
			}
			props[code] = v
		}
		s.Objects = append(s.Objects, props)
	}
	return s, nil
}

type shifted struct {
	State
	code  int32
	value float64
}

func (s shifted) Variable(code int32) (float64, bool) {
	if code == s.code {
		return s.value, true
	}
	return s.State.Variable(code)
}
