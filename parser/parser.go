// Copyright (c) 2026 WJQserver, Kamihama Railway Group. All rights reserved.
// Licensed under the GNU Affero General Public License, version 3.0 (the "AGPL").

package parser

import (
	"fmt"
	"strings"

	"github.com/kamihama-railway/stellar/lexer"
	"github.com/kamihama-railway/stellar/rpn"
	"github.com/kamihama-railway/stellar/types"
)

type segment struct {
	text   string
	offset int
}

// SplitChannels cuts an equation string at top-level commas. Commas nested
// in parentheses or brackets belong to function calls and stay put.
func SplitChannels(equation string) []string {
	segs := split(equation)
	out := make([]string, len(segs))
	for i, s := range segs {
		out[i] = s.text
	}
	return out
}

func split(equation string) []segment {
	var segs []segment
	depth := 0
	start := 0
	for i := 0; i < len(equation); i++ {
		switch equation[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				segs = append(segs, trimmed(equation, start, i))
				start = i + 1
			}
		}
	}
	segs = append(segs, trimmed(equation, start, len(equation)))
	return segs
}

func trimmed(s string, start, end int) segment {
	raw := s[start:end]
	lead := len(raw) - len(strings.TrimLeft(raw, " \t\n\r"))
	return segment{text: strings.TrimSpace(raw), offset: start + lead}
}

// ParseEquation compiles "ax, ay, angular, r, g, b, a" into one postfix
// sequence per channel. Omitted or blank channels stay empty.
func ParseEquation(equation string, ctx *types.Context) (*types.ParsedEquation, error) {
	segs := split(equation)
	if len(segs) > types.NumChannels {
		return nil, types.Errorf(types.ErrTooManyChannels, segs[types.NumChannels].offset,
			"%d expressions, at most %d allowed", len(segs), types.NumChannels)
	}

	eq := &types.ParsedEquation{}
	for i, seg := range segs {
		if seg.text == "" {
			continue
		}
		ch := types.Channels[i]
		postfix, err := compileAt(seg.text, seg.offset, ctx)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", ch, err)
		}
		eq.Channels[ch] = postfix
	}
	return eq, nil
}

// ParseExpression compiles a single expression to postfix.
func ParseExpression(expr string, ctx *types.Context) ([]types.Token, error) {
	return compileAt(expr, 0, ctx)
}

func compileAt(expr string, offset int, ctx *types.Context) ([]types.Token, error) {
	infix, err := lexer.Tokenize(expr, ctx)
	if err != nil {
		return nil, shift(err, offset)
	}
	postfix, err := rpn.ToPostfix(infix)
	if err != nil {
		return nil, err
	}
	if _, err := rpn.CheckStack(postfix); err != nil {
		return nil, err
	}
	return postfix, nil
}

func shift(err error, offset int) error {
	if e, ok := err.(*types.Error); ok && e.Pos >= 0 {
		e.Pos += offset
	}
	return err
}
