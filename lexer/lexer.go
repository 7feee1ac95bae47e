// Copyright (c) 2026 WJQserver, Kamihama Railway Group. All rights reserved.
// Licensed under the GNU Affero General Public License, version 3.0 (the "AGPL").

package lexer

import (
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/kamihama-railway/stellar/types"
)

type Lexer struct {
	input  string
	ctx    *types.Context
	depth  int
	start  int // start of the pending lexeme, -1 if none
	tokens []types.Token
}

var LexerPool = sync.Pool{
	New: func() any {
		return &Lexer{}
	},
}

func NewLexer(input string, ctx *types.Context) *Lexer {
	l := LexerPool.Get().(*Lexer)
	l.Reset(input, ctx)
	return l
}

func (l *Lexer) Reset(input string, ctx *types.Context) {
	l.input = input
	l.ctx = ctx
	l.depth = 0
	l.start = -1
	l.tokens = nil
}

// Tokenize splits source into infix tokens, resolving identifiers against
// ctx. Derivative calls are compiled in place and arrive as a single token.
func Tokenize(source string, ctx *types.Context) ([]types.Token, error) {
	return tokenize(source, ctx, 0)
}

func tokenize(source string, ctx *types.Context, depth int) ([]types.Token, error) {
	l := NewLexer(source, ctx)
	l.depth = depth
	toks, err := l.Run()
	l.Reset("", nil)
	LexerPool.Put(l)
	return toks, err
}

func (l *Lexer) Run() ([]types.Token, error) {
	in := l.input
	for i := 0; i < len(in); i++ {
		c := in[i]

		if isSpace(c) {
			if err := l.flush(i); err != nil {
				return nil, err
			}
			continue
		}

		if c == '[' {
			end, err := l.readObjectRef(i)
			if err != nil {
				return nil, err
			}
			i = end - 1
			continue
		}

		if c == 'D' && i+1 < len(in) && in[i+1] == '(' {
			// part of a longer identifier such as "myD("
			if l.start >= 0 {
				continue
			}
			end, err := l.readDerivative(i)
			if err != nil {
				return nil, err
			}
			i = end
			continue
		}

		if kind, ok := punct(c); ok {
			if err := l.flush(i); err != nil {
				return nil, err
			}
			if kind == types.TokenSub && l.negationContext() {
				kind = types.TokenNeg
			}
			l.tokens = append(l.tokens, types.Op(kind))
			continue
		}

		if l.start < 0 {
			l.start = i
		}
	}

	if err := l.flush(len(in)); err != nil {
		return nil, err
	}
	return l.tokens, nil
}

// negationContext decides unary vs binary minus from the previous token.
func (l *Lexer) negationContext() bool {
	if len(l.tokens) == 0 {
		return true
	}
	switch l.tokens[len(l.tokens)-1].Kind {
	case types.TokenLParen, types.TokenComma,
		types.TokenAdd, types.TokenSub, types.TokenMul, types.TokenDiv, types.TokenPow, types.TokenNeg:
		return true
	}
	return false
}

// flush classifies the pending lexeme ending at end.
func (l *Lexer) flush(end int) error {
	if l.start < 0 {
		return nil
	}
	pos := l.start
	lexeme := l.input[l.start:end]
	l.start = -1

	if kind, ok := types.Functions[lexeme]; ok {
		l.tokens = append(l.tokens, types.Op(kind))
		return nil
	}
	if l.ctx != nil && l.ctx.IsValidVariable(lexeme) {
		l.tokens = append(l.tokens, types.Variable(lexeme))
		return nil
	}
	if isDigit(lexeme[0]) || lexeme[0] == '.' {
		f, err := strconv.ParseFloat(lexeme, 32)
		if err == nil {
			l.tokens = append(l.tokens, types.Number(float32(f)))
			return nil
		}
	}
	return types.Errorf(types.ErrUnknownToken, pos, "%q", lexeme)
}

// readObjectRef handles name[<int>].<prop>. The pending lexeme must be a
// registered object type. Returns the offset just past the property.
func (l *Lexer) readObjectRef(bracket int) (int, error) {
	in := l.input
	if l.start < 0 {
		return 0, types.Errorf(types.ErrUnknownToken, bracket, "unexpected '['")
	}
	object := in[l.start:bracket]
	if l.ctx == nil || !l.ctx.IsObjectType(object) {
		return 0, types.Errorf(types.ErrUnknownToken, l.start, "%q is not an object type", object)
	}
	l.start = -1

	closeIdx := strings.IndexByte(in[bracket+1:], ']')
	if closeIdx < 0 {
		return 0, types.Errorf(types.ErrUnclosedBracket, bracket, "%s[", object)
	}
	closeIdx += bracket + 1

	idxText := strings.TrimSpace(in[bracket+1 : closeIdx])
	index, err := strconv.Atoi(idxText)
	if err != nil || index < 0 {
		return 0, types.Errorf(types.ErrBadObjectIndex, bracket+1, "%q", idxText)
	}

	if closeIdx+1 >= len(in) || in[closeIdx+1] != '.' {
		return 0, types.Errorf(types.ErrMissingProperty, closeIdx, "%s[%d]", object, index)
	}
	propStart := closeIdx + 2
	propEnd := propStart
	for propEnd < len(in) && isPropChar(in[propEnd]) {
		propEnd++
	}
	if propEnd == propStart {
		return 0, types.Errorf(types.ErrMissingProperty, propStart, "%s[%d].", object, index)
	}

	l.tokens = append(l.tokens, types.ObjectRef(object, index, in[propStart:propEnd]))
	return propEnd, nil
}

// readDerivative compiles D(...) starting at pos and returns the offset of
// its closing parenthesis. A directly preceding unary minus is rewritten to
// (0 - D(...)) since the derivative token cannot carry a sign.
func (l *Lexer) readDerivative(pos int) (int, error) {
	negate := false
	if n := len(l.tokens); n > 0 && l.tokens[n-1].Kind == types.TokenNeg {
		l.tokens = l.tokens[:n-1]
		negate = true
	}

	tok, end, err := parseDerivativeCall(l.input, pos, l.ctx, l.depth+1)
	if err != nil {
		return 0, err
	}

	if negate {
		l.tokens = append(l.tokens,
			types.Op(types.TokenLParen),
			types.Number(0),
			types.Op(types.TokenSub),
			tok,
			types.Op(types.TokenRParen),
		)
	} else {
		l.tokens = append(l.tokens, tok)
	}
	return end, nil
}

func punct(c byte) (types.TokenKind, bool) {
	switch c {
	case '+':
		return types.TokenAdd, true
	case '-':
		return types.TokenSub, true
	case '*':
		return types.TokenMul, true
	case '/':
		return types.TokenDiv, true
	case '^':
		return types.TokenPow, true
	case '(':
		return types.TokenLParen, true
	case ')':
		return types.TokenRParen, true
	case ',':
		return types.TokenComma, true
	}
	return 0, false
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\v' || ch == '\f'
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isPropChar(ch byte) bool {
	return isLetter(ch) || isDigit(ch) || ch == '.'
}

// shiftPos moves the position of a nested error into the outer source.
func shiftPos(err error, offset int) error {
	var e *types.Error
	if errors.As(err, &e) && e.Pos >= 0 {
		e.Pos += offset
	}
	return err
}
