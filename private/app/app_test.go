// Copyright 2021 Anapaya Systems
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

package app_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scionproto/vxlan-decap/pkg/private/serrors"
	"github.com/scionproto/vxlan-decap/private/app"
)

func TestExitCode(t *testing.T) {
	base := errors.New("base")
	assert.Equal(t, -1, app.ExitCode(base))
	assert.Equal(t, -1, app.ExitCode(nil))
	assert.Nil(t, app.WithExitCode(nil, 3))

	withCode := app.WithExitCode(base, 3)
	assert.Equal(t, 3, app.ExitCode(withCode))
	assert.ErrorIs(t, withCode, base)
	assert.Equal(t, "base", withCode.Error())

	wrapped := serrors.Wrap("running", withCode)
	assert.Equal(t, 3, app.ExitCode(wrapped))
}
