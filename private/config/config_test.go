// Copyright 2019 Anapaya Systems
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

package config_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scionproto/vxlan-decap/pkg/private/xtest"
	"github.com/scionproto/vxlan-decap/private/config"
)

type block struct {
	Name  string `toml:"name"`
	Count int    `toml:"count"`
}

func TestDecode(t *testing.T) {
	t.Run("known fields", func(t *testing.T) {
		var b block
		require.NoError(t, config.Decode([]byte("name = \"x\"\ncount = 3\n"), &b))
		assert.Equal(t, block{Name: "x", Count: 3}, b)
	})
	t.Run("unknown field", func(t *testing.T) {
		var b block
		err := config.Decode([]byte("nmae = \"x\"\n"), &b)
		assert.ErrorContains(t, err, "unknown configuration keys")
		assert.ErrorContains(t, err, "nmae")
	})
}

func TestLoadFile(t *testing.T) {
	path := xtest.MustWriteTempFile(t, "cfg.toml", []byte("count = 7\n"))

	var b block
	require.NoError(t, config.LoadFile(path, &b))
	assert.Equal(t, 7, b.Count)

	err := config.LoadFile(filepath.Join(filepath.Dir(path), "missing.toml"), &b)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteSample(t *testing.T) {
	var buf bytes.Buffer
	config.WriteSample(&buf, config.Path{"root"}, nil,
		config.StringSampler{Text: "\na = 1\n\nb = 2\n", Name: "block"},
	)
	assert.Equal(t, "\n[root.block]\n    a = 1\n\n    b = 2\n", buf.String())
}

type failingValidator struct{ err error }

func (v failingValidator) Validate() error { return v.err }

func TestValidateAll(t *testing.T) {
	errBad := errors.New("bad")
	assert.NoError(t, config.ValidateAll(config.NoValidator{}, failingValidator{}))
	err := config.ValidateAll(config.NoValidator{}, failingValidator{errBad})
	assert.ErrorIs(t, err, errBad)
	assert.ErrorContains(t, err, "block=config_test.failingValidator")
}

func TestPathExtend(t *testing.T) {
	base := make(config.Path, 1, 4)
	base[0] = "log"
	a, b := base.Extend("console"), base.Extend("diagnostics")
	assert.Equal(t, config.Path{"log", "console"}, a)
	assert.Equal(t, config.Path{"log", "diagnostics"}, b)
	assert.Equal(t, config.Path{"root"}, config.Path(nil).Extend("root"))
}
