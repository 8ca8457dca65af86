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

package log

import (
	"io"

	"go.uber.org/zap/zapcore"

	"github.com/scionproto/vxlan-decap/pkg/private/serrors"
	"github.com/scionproto/vxlan-decap/private/config"
)

const (
	// DefaultConsoleLevel is the default log level for the console.
	DefaultConsoleLevel = "info"
	// DefaultStacktraceLevel is the default log level for which stack traces are included.
	DefaultStacktraceLevel = "none"
	// DefaultDiagnosticsDir is where the per run diagnostic file is created.
	DefaultDiagnosticsDir = "/tmp"
)

// Config is the configuration for the logger.
type Config struct {
	// Console is the configuration for the console logging.
	Console ConsoleConfig `toml:"console,omitempty"`
	// Diagnostics is the configuration for the per run diagnostic file.
	Diagnostics DiagnosticsConfig `toml:"diagnostics,omitempty"`
}

// InitDefaults populates unset fields in cfg to their default values (if they
// have one).
func (c *Config) InitDefaults() {
	c.Console.InitDefaults()
	c.Diagnostics.InitDefaults()
}

// Validate validates the nested blocks.
func (c *Config) Validate() error {
	return config.ValidateAll(&c.Console, &c.Diagnostics)
}

// Sample writes the config sample to dst.
func (c *Config) Sample(dst io.Writer, path config.Path, _ config.CtxMap) {
	config.WriteSample(dst, path, nil,
		config.StringSampler{Text: consoleSample, Name: "console"},
		config.StringSampler{Text: diagnosticsSample, Name: "diagnostics"},
	)
}

// ConfigName returns the name this config should have in a TOML file.
func (c *Config) ConfigName() string {
	return "log"
}

// ConsoleConfig is the config for the console logger.
type ConsoleConfig struct {
	// Level of console logging (defaults to DefaultConsoleLevel).
	Level string `toml:"level,omitempty"`
	// Format of the console logging. (human|json)
	Format string `toml:"format,omitempty"`
	// StacktraceLevel sets from which level stacktraces are included.
	StacktraceLevel string `toml:"stacktrace_level,omitempty"`
	// DisableCaller stops annotating logs with the calling function's file
	// name and line number. By default, all logs are annotated.
	DisableCaller bool `toml:"disable_caller,omitempty"`
}

// InitDefaults populates unset fields in cfg to their default values (if they
// have one).
func (c *ConsoleConfig) InitDefaults() {
	if c.Level == "" {
		c.Level = DefaultConsoleLevel
	}
	if c.Format == "" {
		c.Format = "human"
	}
	if c.StacktraceLevel == "" {
		c.StacktraceLevel = DefaultStacktraceLevel
	}
}

// Validate checks that the levels and the format are known.
func (c *ConsoleConfig) Validate() error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		return serrors.Wrap("invalid console level", err, "level", c.Level)
	}
	if c.StacktraceLevel != "none" {
		if err := lvl.UnmarshalText([]byte(c.StacktraceLevel)); err != nil {
			return serrors.Wrap("invalid stacktrace level", err, "level", c.StacktraceLevel)
		}
	}
	switch c.Format {
	case "human", "json":
		return nil
	default:
		return serrors.New("invalid console format", "format", c.Format)
	}
}

// DiagnosticsConfig is the config for the diagnostic file written by every run.
type DiagnosticsConfig struct {
	config.NoValidator
	// Dir is the directory in which the file is created.
	Dir string `toml:"dir,omitempty"`
}

// InitDefaults populates unset fields in cfg to their default values (if they
// have one).
func (c *DiagnosticsConfig) InitDefaults() {
	if c.Dir == "" {
		c.Dir = DefaultDiagnosticsDir
	}
}

const consoleSample = `
# Console logging level (debug|info|error). (default info)
level = "info"

# Console logging format (human|json). (default human)
format = "human"

# Level from which stack traces are logged (debug|info|error|none). (default none)
stacktrace_level = "none"

# Do not annotate log entries with the calling file and line. (default false)
disable_caller = false
`

const diagnosticsSample = `
# Directory in which the per run diagnostic file
# vxlan_decap_test.<timestamp>.log is created. (default /tmp)
dir = "/tmp"
`
