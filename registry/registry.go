// Copyright (c) 2026 WJQserver, Kamihama Railway Group. All rights reserved.
// Licensed under the GNU Affero General Public License, version 3.0 (the "AGPL").

package registry

import (
	"fmt"
	"log"

	"github.com/kamihama-railway/stellar/abi"
	"github.com/kamihama-railway/stellar/bytecode"
	"github.com/kamihama-railway/stellar/types"
)

const (
	DefaultMaxEquations = 256
	InvalidID           = -1
)

// Span locates one channel of one equation inside the shared buffers.
// ConstantCount occupies the record's padding word; the kernel ignores it.
type Span struct {
	TokenOffset    int32
	TokenCount     int32
	ConstantOffset int32
	ConstantCount  int32
}

// Mapping is the per-equation record the kernel reads, one Span per channel.
type Mapping [types.NumChannels]Span

// MappingSize is the encoded size of a Mapping in bytes.
const MappingSize = types.NumChannels * 16

type Options struct {
	MaxEquations int
	Table        *abi.Table
	Logger       *log.Logger
}

// Registry packs serialized equations into seven shared buffer pairs and
// hands out stable IDs. It is not safe for concurrent use; callers
// serialize AddOrGet themselves.
type Registry struct {
	table  *abi.Table
	logger *log.Logger

	opcodes   [types.NumChannels][]int32
	constants [types.NumChannels][]float32
	mappings  []Mapping
	ids       map[string]int
	next      int
	version   uint64
}

func New(opts Options) *Registry {
	if opts.MaxEquations <= 0 {
		opts.MaxEquations = DefaultMaxEquations
	}
	if opts.Table == nil {
		opts.Table = abi.Default()
	}
	return &Registry{
		table:    opts.Table,
		logger:   opts.Logger,
		mappings: make([]Mapping, opts.MaxEquations),
		ids:      make(map[string]int),
	}
}

// AddOrGet returns the ID registered for text, serializing and appending eq
// the first time text is seen. On error nothing is modified.
func (r *Registry) AddOrGet(text string, eq *types.ParsedEquation) (int, error) {
	if id, ok := r.ids[text]; ok {
		return id, nil
	}
	if eq == nil {
		return InvalidID, fmt.Errorf("registry: no parsed equation for %q", text)
	}
	if r.next >= len(r.mappings) {
		return InvalidID, types.Errorf(types.ErrNoFreeSlot, -1, "all %d equation slots in use", len(r.mappings))
	}

	ser, err := bytecode.SerializeEquation(r.table, eq)
	if err != nil {
		return InvalidID, err
	}

	id := r.next
	var m Mapping
	for _, ch := range types.Channels {
		sc := ser.Channels[ch]
		m[ch] = Span{
			TokenOffset:    int32(len(r.opcodes[ch])),
			TokenCount:     int32(len(sc.Opcodes)),
			ConstantOffset: int32(len(r.constants[ch])),
			ConstantCount:  int32(len(sc.Constants)),
		}
		r.opcodes[ch] = append(r.opcodes[ch], sc.Opcodes...)
		r.constants[ch] = append(r.constants[ch], sc.Constants...)
	}
	r.mappings[id] = m
	r.ids[text] = id
	r.next++
	r.version++

	if r.logger != nil {
		r.logger.Printf("registry: equation %d = %q (%d opcodes)", id, text, m.tokenTotal())
	}
	return id, nil
}

// Lookup returns the ID of a previously registered text.
func (r *Registry) Lookup(text string) (int, bool) {
	id, ok := r.ids[text]
	return id, ok
}

func (r *Registry) Mapping(id int) (Mapping, bool) {
	if id < 0 || id >= r.next {
		return Mapping{}, false
	}
	return r.mappings[id], true
}

// Len is the number of registered equations.
func (r *Registry) Len() int { return r.next }

func (r *Registry) Cap() int { return len(r.mappings) }

func (r *Registry) Version() uint64 { return r.version }

func (r *Registry) Table() *abi.Table { return r.table }

// Snapshot publishes the current buffers. The snapshot shares memory with
// the registry but is capped at the current lengths, so later appends are
// never visible through it.
func (r *Registry) Snapshot() *Snapshot {
	s := &Snapshot{
		Version:  r.version,
		Mappings: r.mappings[:r.next:r.next],
		table:    r.table,
	}
	for ch := range s.Opcodes {
		ops, consts := r.opcodes[ch], r.constants[ch]
		s.Opcodes[ch] = ops[:len(ops):len(ops)]
		s.Constants[ch] = consts[:len(consts):len(consts)]
	}
	return s
}

func (m Mapping) tokenTotal() int {
	n := 0
	for _, s := range m {
		n += int(s.TokenCount)
	}
	return n
}
