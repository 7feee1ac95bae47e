// Copyright (c) 2026 WJQserver, Kamihama Railway Group. All rights reserved.
// Licensed under the GNU Affero General Public License, version 3.0 (the "AGPL").

package types

import (
	"sort"
	"strings"
)

type Domain int

const (
	DomainScalar Domain = iota
	DomainSpatial
	DomainTime
	DomainRotational
	DomainColor
	DomainComplex
)

var domainNames = map[string]Domain{
	"scalar":     DomainScalar,
	"spatial":    DomainSpatial,
	"time":       DomainTime,
	"rotational": DomainRotational,
	"color":      DomainColor,
	"complex":    DomainComplex,
}

// ParseDomain accepts the lower-case domain names used in table files.
// Unknown names fall back to scalar.
func ParseDomain(s string) (Domain, bool) {
	d, ok := domainNames[strings.ToLower(strings.TrimSpace(s))]
	return d, ok
}

func (d Domain) String() string {
	for k, v := range domainNames {
		if v == d {
			return k
		}
	}
	return "scalar"
}

type VariableDef struct {
	Name           string
	Domain         Domain
	Differentiable bool
}

// Context is the variable table the lexer and derivative sub-compiler
// resolve identifiers against. It is read-only once compilation starts.
type Context struct {
	vars    map[string]VariableDef
	objects map[string][]string
}

func NewContext() *Context {
	return &Context{
		vars:    make(map[string]VariableDef),
		objects: make(map[string][]string),
	}
}

func (c *Context) RegisterVariable(name string, domain Domain, differentiable bool) {
	c.vars[name] = VariableDef{Name: name, Domain: domain, Differentiable: differentiable}
}

func (c *Context) RegisterObjectType(name string, properties []string) {
	c.objects[name] = append([]string(nil), properties...)
}

func (c *Context) IsValidVariable(name string) bool {
	_, ok := c.vars[name]
	return ok
}

func (c *Context) IsValidDerivativeWRT(name string) bool {
	v, ok := c.vars[name]
	return ok && v.Differentiable
}

func (c *Context) VariableDomain(name string) Domain {
	if v, ok := c.vars[name]; ok {
		return v.Domain
	}
	return DomainScalar
}

func (c *Context) IsObjectType(name string) bool {
	_, ok := c.objects[name]
	return ok
}

func (c *Context) ObjectProperties(name string) []string {
	return c.objects[name]
}

// Variables returns the registered names sorted, for listings.
func (c *Context) Variables() []VariableDef {
	out := make([]VariableDef, 0, len(c.vars))
	for _, v := range c.vars {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (c *Context) Clone() *Context {
	n := NewContext()
	for k, v := range c.vars {
		n.vars[k] = v
	}
	for k, v := range c.objects {
		n.objects[k] = append([]string(nil), v...)
	}
	return n
}
