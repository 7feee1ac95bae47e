// Copyright (c) 2026 WJQserver, Kamihama Railway Group. All rights reserved.
// Licensed under the GNU Affero General Public License, version 3.0 (the "AGPL").

// Package stellar compiles per-object motion and colour equations into
// kernel bytecode and packs them into shared buffers.
package stellar

import (
	"fmt"
	"sync"

	"github.com/kamihama-railway/stellar/abi"
	"github.com/kamihama-railway/stellar/bytecode"
	"github.com/kamihama-railway/stellar/parser"
	"github.com/kamihama-railway/stellar/registry"
	"github.com/kamihama-railway/stellar/types"
	"github.com/kamihama-railway/stellar/vm"
)

// Engine ties the compiler to one registry. All methods are safe for
// concurrent use.
type Engine struct {
	mu    sync.Mutex
	table *abi.Table
	ctx   *types.Context
	reg   *registry.Registry
}

func NewEngine(opts Options) (*Engine, error) {
	table, err := opts.table()
	if err != nil {
		return nil, err
	}
	e := &Engine{
		table: table,
		ctx:   table.Context(),
		reg: registry.New(registry.Options{
			MaxEquations: opts.MaxEquations,
			Table:        table,
			Logger:       opts.Logger,
		}),
	}
	if opts.DefaultEquation != "" {
		eq, err := e.Compile(opts.DefaultEquation)
		if err != nil {
			return nil, fmt.Errorf("default equation: %w", err)
		}
		if _, err := e.reg.AddOrGet(DefaultEquationKey, eq); err != nil {
			return nil, fmt.Errorf("default equation: %w", err)
		}
	}
	return e, nil
}

// Compile parses an equation without registering it.
func (e *Engine) Compile(text string) (*types.ParsedEquation, error) {
	return parser.ParseEquation(text, e.ctx)
}

func (e *Engine) CompileExpression(expr string) ([]types.Token, error) {
	return parser.ParseExpression(expr, e.ctx)
}

// Serialize compiles an equation down to per-channel bytecode without
// touching the registry.
func (e *Engine) Serialize(text string) (*types.SerializedEquation, error) {
	eq, err := e.Compile(text)
	if err != nil {
		return nil, err
	}
	return bytecode.SerializeEquation(e.table, eq)
}

// Register compiles text and adds it to the registry, returning the
// existing ID if the exact text was registered before.
func (e *Engine) Register(text string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id, ok := e.reg.Lookup(text); ok {
		return id, nil
	}
	eq, err := e.Compile(text)
	if err != nil {
		return registry.InvalidID, err
	}
	return e.reg.AddOrGet(text, eq)
}

func (e *Engine) Lookup(text string) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reg.Lookup(text)
}

func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reg.Len()
}

// Snapshot publishes the registry for the kernel.
func (e *Engine) Snapshot() *registry.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reg.Snapshot()
}

func (e *Engine) Table() *abi.Table { return e.table }

// Context returns a copy of the variable table the compiler uses.
func (e *Engine) Context() *types.Context { return e.ctx.Clone() }

// Evaluate runs every channel of a registered equation on the reference
// interpreter. Empty channels yield 0.
func (e *Engine) Evaluate(id int, state vm.State) ([types.NumChannels]float64, error) {
	var out [types.NumChannels]float64
	snap := e.Snapshot()
	for _, ch := range types.Channels {
		sc, err := snap.Channel(id, ch)
		if err != nil {
			return out, err
		}
		v, err := vm.RunWith(e.table, sc.Opcodes, sc.Constants, state)
		if err != nil {
			return out, fmt.Errorf("channel %s: %w", ch, err)
		}
		out[ch] = v
	}
	return out, nil
}
