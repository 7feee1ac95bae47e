package types

import "fmt"

// Channel is one of the seven scalar outputs an equation may define.
type Channel int

const (
	ChannelAX Channel = iota
	ChannelAY
	ChannelAngular
	ChannelR
	ChannelG
	ChannelB
	ChannelA
)

// NumChannels is fixed by the mapping record layout shared with the kernel.
const NumChannels = 7

var channelNames = [NumChannels]string{"ax", "ay", "angular", "r", "g", "b", "a"}

func (c Channel) String() string {
	if c >= 0 && int(c) < NumChannels {
		return channelNames[c]
	}
	return fmt.Sprintf("channel(%d)", int(c))
}

// Channels lists every channel in packing order.
var Channels = [NumChannels]Channel{ChannelAX, ChannelAY, ChannelAngular, ChannelR, ChannelG, ChannelB, ChannelA}

// ParsedEquation holds one postfix sequence per channel. An empty sequence
// means the channel contributes nothing.
type ParsedEquation struct {
	Channels [NumChannels][]Token
}

func (e *ParsedEquation) Get(c Channel) []Token { return e.Channels[c] }

func (e *ParsedEquation) HasAngular() bool { return len(e.Channels[ChannelAngular]) > 0 }

func (e *ParsedEquation) HasColor() bool {
	return len(e.Channels[ChannelR]) > 0 || len(e.Channels[ChannelG]) > 0 ||
		len(e.Channels[ChannelB]) > 0 || len(e.Channels[ChannelA]) > 0
}

// Constants returns the literal values of every top-level Number token in
// channel order, duplicates included.
func (e *ParsedEquation) Constants() []float32 {
	var out []float32
	for _, toks := range e.Channels {
		for _, t := range toks {
			if t.Kind == TokenNumber {
				out = append(out, t.Value)
			}
		}
	}
	return out
}

// SerializedChannel is the compiled form of one channel. Every NUMBER
// opcode is followed by an index into Constants.
type SerializedChannel struct {
	Opcodes   []int32
	Constants []float32
}

func (s SerializedChannel) Empty() bool { return len(s.Opcodes) == 0 }

type SerializedEquation struct {
	Channels [NumChannels]SerializedChannel
}
