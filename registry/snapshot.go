// Copyright (c) 2026 WJQserver, Kamihama Railway Group. All rights reserved.
// Licensed under the GNU Affero General Public License, version 3.0 (the "AGPL").

package registry

import (
	"encoding/binary"
	"fmt"

	"github.com/kamihama-railway/stellar/abi"
	"github.com/kamihama-railway/stellar/bytecode"
	"github.com/kamihama-railway/stellar/types"
)

// Snapshot is a read-only view of the registry at one Version. It is safe
// to share between goroutines while the registry keeps growing.
type Snapshot struct {
	Version   uint64
	Opcodes   [types.NumChannels][]int32
	Constants [types.NumChannels][]float32
	Mappings  []Mapping

	table *abi.Table
}

// Channel returns the slice of the shared buffers belonging to one
// equation channel.
func (s *Snapshot) Channel(id int, ch types.Channel) (types.SerializedChannel, error) {
	if id < 0 || id >= len(s.Mappings) {
		return types.SerializedChannel{}, fmt.Errorf("equation %d not registered", id)
	}
	sp := s.Mappings[id][ch]
	ops, consts := s.Opcodes[ch], s.Constants[ch]
	tokEnd := int(sp.TokenOffset) + int(sp.TokenCount)
	constEnd := int(sp.ConstantOffset) + int(sp.ConstantCount)
	if sp.TokenOffset < 0 || sp.TokenCount < 0 || tokEnd > len(ops) {
		return types.SerializedChannel{}, fmt.Errorf("equation %d channel %s: opcodes [%d,%d) outside buffer of %d",
			id, ch, sp.TokenOffset, tokEnd, len(ops))
	}
	if sp.ConstantOffset < 0 || sp.ConstantCount < 0 || constEnd > len(consts) {
		return types.SerializedChannel{}, fmt.Errorf("equation %d channel %s: constants [%d,%d) outside buffer of %d",
			id, ch, sp.ConstantOffset, constEnd, len(consts))
	}
	return types.SerializedChannel{
		Opcodes:   ops[sp.TokenOffset:tokEnd:tokEnd],
		Constants: consts[sp.ConstantOffset:constEnd:constEnd],
	}, nil
}

// Verify checks that every channel of an equation lies inside the buffers,
// decodes cleanly and only references its own constants.
func (s *Snapshot) Verify(id int) error {
	for _, ch := range types.Channels {
		sc, err := s.Channel(id, ch)
		if err != nil {
			return err
		}
		prog, err := bytecode.Decode(s.table, sc.Opcodes)
		if err != nil {
			return fmt.Errorf("equation %d channel %s: %w", id, ch, err)
		}
		for _, ins := range prog {
			if ins.Kind != types.TokenNumber {
				continue
			}
			if idx := ins.Operands[0]; idx < 0 || int(idx) >= len(sc.Constants) {
				return fmt.Errorf("equation %d channel %s: constant #%d at pc %d, pool holds %d",
					id, ch, idx, ins.PC, len(sc.Constants))
			}
		}
	}
	return nil
}

// MappingBytes encodes the mapping array little-endian, MappingSize bytes
// per equation, ready for upload.
func (s *Snapshot) MappingBytes() []byte {
	buf := make([]byte, 0, len(s.Mappings)*MappingSize)
	for _, m := range s.Mappings {
		buf = m.AppendBinary(buf)
	}
	return buf
}

func (m Mapping) AppendBinary(buf []byte) []byte {
	for _, sp := range m {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(sp.TokenOffset))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(sp.TokenCount))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(sp.ConstantOffset))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(sp.ConstantCount))
	}
	return buf
}

// DecodeMapping is the inverse of AppendBinary.
func DecodeMapping(b []byte) (Mapping, error) {
	var m Mapping
	if len(b) < MappingSize {
		return m, fmt.Errorf("mapping record needs %d bytes, have %d", MappingSize, len(b))
	}
	for ch := range m {
		off := ch * 16
		m[ch] = Span{
			TokenOffset:    int32(binary.LittleEndian.Uint32(b[off:])),
			TokenCount:     int32(binary.LittleEndian.Uint32(b[off+4:])),
			ConstantOffset: int32(binary.LittleEndian.Uint32(b[off+8:])),
			ConstantCount:  int32(binary.LittleEndian.Uint32(b[off+12:])),
		}
	}
	return m, nil
}
