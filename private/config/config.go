// Copyright 2020 Anapaya Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config holds the building blocks of the toml configuration.
//
// A configuration is a tree of blocks. Each block implements Config:
//
//   - InitDefaults fills in the fields that were not set in the file. Fields
//     that must keep their zero value have to be set before.
//   - Validate checks the block and all blocks below it.
//   - Sample writes a commented toml sample of the block. Sample may panic.
//
// The samples double as documentation. Every block is expected to have a test
// that decodes its sample, applies the defaults and validates the result.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/scionproto/vxlan-decap/pkg/private/serrors"
)

// Config is a configuration block.
type Config interface {
	Sampler
	Validator
	Defaulter
}

// Validator checks a block.
type Validator interface {
	Validate() error
}

// Defaulter sets the defaults of a block.
type Defaulter interface {
	InitDefaults()
}

// Sampler writes the sample of a block to dst.
type Sampler interface {
	Sample(dst io.Writer, path Path, ctx CtxMap)
}

// TableSampler is a Sampler whose sample is a toml table. ConfigName is the
// key of the table.
type TableSampler interface {
	Sampler
	ConfigName() string
}

// Path is the key of a table, one element per nesting level.
type Path []string

// Extend returns a copy of the path with s appended.
func (p Path) Extend(s string) Path {
	return append(p[:len(p):len(p)], s)
}

// NoValidator can be embedded by blocks without validation.
type NoValidator struct{}

func (NoValidator) Validate() error {
	return nil
}

// NoDefaulter can be embedded by blocks without defaults.
type NoDefaulter struct{}

func (NoDefaulter) InitDefaults() {}

// StringSampler is a table with a static sample.
type StringSampler struct {
	Text string
	Name string
}

func (s StringSampler) Sample(dst io.Writer, _ Path, _ CtxMap) {
	WriteString(dst, s.Text)
}

func (s StringSampler) ConfigName() string {
	return s.Name
}

// ValidateAll validates the blocks in order and stops at the first error.
func ValidateAll(validators ...Validator) error {
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return serrors.Wrap("invalid configuration", err, "block", blockName(v))
		}
	}
	return nil
}

// InitAll sets the defaults of all blocks.
func InitAll(defaulters ...Defaulter) {
	for _, d := range defaulters {
		d.InitDefaults()
	}
}

func blockName(v any) string {
	if ts, ok := v.(TableSampler); ok && ts.ConfigName() != "" {
		return ts.ConfigName()
	}
	return fmt.Sprintf("%T", v)
}

// Decode decodes raw toml into cfg. Keys that cfg does not know are an error.
func Decode(raw []byte, cfg any) error {
	err := toml.NewDecoder(bytes.NewReader(raw)).DisallowUnknownFields().Decode(cfg)
	var strict *toml.StrictMissingError
	if errors.As(err, &strict) {
		return serrors.New("unknown configuration keys", "details", strict.String())
	}
	return err
}

// LoadFile reads the file and decodes it into cfg.
func LoadFile(file string, cfg any) error {
	raw, err := os.ReadFile(file)
	if err != nil {
		return serrors.Wrap("reading config file", err, "file", file)
	}
	if err := Decode(raw, cfg); err != nil {
		return serrors.Wrap("decoding config file", err, "file", file)
	}
	return nil
}
