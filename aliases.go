// Copyright (c) 2026 WJQserver, Kamihama Railway Group. All rights reserved.
// Licensed under the GNU Affero General Public License, version 3.0 (the "AGPL").

package stellar

import (
	"github.com/kamihama-railway/stellar/registry"
	"github.com/kamihama-railway/stellar/types"
)

type Token = types.Token
type TokenKind = types.TokenKind
type Context = types.Context
type Channel = types.Channel
type ParsedEquation = types.ParsedEquation
type SerializedChannel = types.SerializedChannel
type SerializedEquation = types.SerializedEquation
type Error = types.Error
type ErrorKind = types.ErrorKind

type Mapping = registry.Mapping
type Span = registry.Span
type Snapshot = registry.Snapshot

const (
	ChannelAX      = types.ChannelAX
	ChannelAY      = types.ChannelAY
	ChannelAngular = types.ChannelAngular
	ChannelR       = types.ChannelR
	ChannelG       = types.ChannelG
	ChannelB       = types.ChannelB
	ChannelA       = types.ChannelA
	NumChannels    = types.NumChannels
)

const (
	LexError      = types.LexError
	SyntaxError   = types.SyntaxError
	SemanticError = types.SemanticError
	CapacityError = types.CapacityError
)

const InvalidID = registry.InvalidID

func KindOf(err error) ErrorKind {
	return types.KindOf(err)
}
