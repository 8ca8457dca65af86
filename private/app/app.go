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

// Package app contains helpers shared by command line applications.
package app

import (
	"errors"

	"github.com/scionproto/vxlan-decap/pkg/log"
)

// LogLevelUsage is the usage string of the console log level flag.
const LogLevelUsage = "Console logging level (debug|info|error)"

// SetupLog sets up the console logger with the given level. An empty level
// leaves the logger configuration at its defaults.
func SetupLog(level string, format string) error {
	return log.Setup(log.Config{Console: log.ConsoleConfig{Level: level, Format: format}})
}

// WithExitCode wraps err so that ExitCode(err) returns code.
func WithExitCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return exitCodeError{err: err, code: code}
}

// ExitCode returns the exit code attached to err with WithExitCode, or -1 if
// there is none.
func ExitCode(err error) int {
	var e exitCodeError
	if errors.As(err, &e) {
		return e.code
	}
	return -1
}

type exitCodeError struct {
	err  error
	code int
}

func (e exitCodeError) Error() string {
	return e.err.Error()
}

func (e exitCodeError) Unwrap() error {
	return e.err
}
