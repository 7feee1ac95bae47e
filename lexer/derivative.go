// Copyright (c) 2026 WJQserver, Kamihama Railway Group. All rights reserved.
// Licensed under the GNU Affero General Public License, version 3.0 (the "AGPL").

package lexer

import (
	"strconv"
	"strings"

	"github.com/kamihama-railway/stellar/rpn"
	"github.com/kamihama-railway/stellar/types"
)

const (
	MinDerivativeOrder = 1
	MaxDerivativeOrder = 4
	MaxDerivativeDepth = 8
)

// ParseDerivativeCall compiles the call D(expr, var[, order]) that begins at
// start. It returns the derivative token and the offset of the closing
// parenthesis.
func ParseDerivativeCall(source string, start int, ctx *types.Context) (types.Token, int, error) {
	return parseDerivativeCall(source, start, ctx, 1)
}

func parseDerivativeCall(source string, start int, ctx *types.Context, depth int) (types.Token, int, error) {
	if !strings.HasPrefix(source[start:], "D(") {
		return types.Token{}, 0, types.Errorf(types.ErrUnclosedDeriv, start, "expected 'D('")
	}
	if depth > MaxDerivativeDepth {
		return types.Token{}, 0, types.Errorf(types.ErrDerivDepth, start, "limit is %d", MaxDerivativeDepth)
	}

	exprStart := start + 2
	pos := exprStart
	parens := 1
	for ; pos < len(source); pos++ {
		c := source[pos]
		if c == '(' {
			parens++
		} else if c == ')' {
			parens--
			if parens == 0 {
				break
			}
		} else if c == ',' && parens == 1 {
			break
		}
	}
	if pos >= len(source) {
		return types.Token{}, 0, types.Errorf(types.ErrUnclosedDeriv, start, "missing ')'")
	}
	if parens == 0 {
		return types.Token{}, 0, types.Errorf(types.ErrUnclosedDeriv, pos, "missing differentiation variable")
	}
	exprText := source[exprStart:pos]

	pos++ // comma
	varStart := pos
	for pos < len(source) && source[pos] != ',' && source[pos] != ')' {
		pos++
	}
	wrt := strings.TrimSpace(source[varStart:pos])
	if ctx == nil || !ctx.IsValidDerivativeWRT(wrt) {
		return types.Token{}, 0, types.Errorf(types.ErrInvalidDerivVar, varStart, "%q", wrt)
	}

	order := MinDerivativeOrder
	if pos < len(source) && source[pos] == ',' {
		pos++
		orderStart := pos
		for pos < len(source) && source[pos] != ')' {
			pos++
		}
		orderText := strings.TrimSpace(source[orderStart:pos])
		n, err := strconv.Atoi(orderText)
		if err != nil || n < MinDerivativeOrder || n > MaxDerivativeOrder {
			return types.Token{}, 0, types.Errorf(types.ErrInvalidDerivOrder, orderStart,
				"%q, must be between %d and %d", orderText, MinDerivativeOrder, MaxDerivativeOrder)
		}
		order = n
	}

	if pos >= len(source) || source[pos] != ')' {
		return types.Token{}, 0, types.Errorf(types.ErrUnclosedDeriv, start, "missing ')'")
	}

	if strings.TrimSpace(exprText) == "" {
		return types.Token{}, 0, types.Errorf(types.ErrStackUnderflow, exprStart, "empty expression inside D()")
	}
	infix, err := tokenize(exprText, ctx, depth)
	if err != nil {
		return types.Token{}, 0, shiftPos(err, exprStart)
	}
	postfix, err := rpn.ToPostfix(infix)
	if err != nil {
		return types.Token{}, 0, err
	}

	return types.NewDerivative(wrt, order, types.DerivNumerical, postfix), pos, nil
}
