// Copyright (c) 2026 WJQserver, Kamihama Railway Group. All rights reserved.
// Licensed under the GNU Affero General Public License, version 3.0 (the "AGPL").

package stellar

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/kamihama-railway/stellar/abi"
	"github.com/kamihama-railway/stellar/registry"
	"gopkg.in/yaml.v3"
)

// DefaultEquationKey is the registry text under which the fallback
// equation is stored. It always receives ID 0.
const DefaultEquationKey = "default_zero"

// DefaultEquation leaves objects at rest, drawn opaque white.
const DefaultEquation = "0, 0, 0, 1, 1, 1, 1"

type Options struct {
	MaxEquations    int            `yaml:"max_equations"`
	DefaultEquation string         `yaml:"default_equation"`
	ABIFile         string         `yaml:"abi_file"`
	Variables       []abi.Variable `yaml:"variables"`
	Objects         []abi.Object   `yaml:"objects"`

	Logger *log.Logger `yaml:"-"`
}

func DefaultOptions() Options {
	return Options{
		MaxEquations:    registry.DefaultMaxEquations,
		DefaultEquation: DefaultEquation,
	}
}

// LoadOptions reads a YAML config on top of DefaultOptions. A relative
// abi_file is resolved against the config's directory.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, err
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("config %s: %w", path, err)
	}
	if opts.MaxEquations < 0 {
		return opts, fmt.Errorf("config %s: max_equations must not be negative", path)
	}
	if opts.ABIFile != "" && !filepath.IsAbs(opts.ABIFile) {
		opts.ABIFile = filepath.Join(filepath.Dir(path), opts.ABIFile)
	}
	return opts, nil
}

func (o Options) table() (*abi.Table, error) {
	t := abi.Default()
	if o.ABIFile != "" {
		var err error
		if t, err = abi.Load(o.ABIFile); err != nil {
			return nil, err
		}
	}
	if len(o.Variables) == 0 && len(o.Objects) == 0 {
		return t, nil
	}
	return t.Extend(o.Variables, o.Objects)
}
