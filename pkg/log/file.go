// Copyright 2024 Anapaya Systems
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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/scionproto/vxlan-decap/pkg/private/serrors"
)

const (
	// FileTimeLayout is the timestamp layout of every line of a diagnostic file.
	FileTimeLayout = "2006-01-02 15:04:05"
	// FileNameTimeLayout is the timestamp layout used in diagnostic file names.
	FileNameTimeLayout = "2006-01-02_15-04-05"
)

// DiagnosticsPath returns the path of the diagnostic file for a run started at t.
func DiagnosticsPath(dir string, t time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("vxlan_decap_test.%s.log", t.Format(FileNameTimeLayout)))
}

// FileLogger writes lines of the form "<timestamp> : <message>" to a file.
// Every entry is flushed to disk before the logging call returns.
type FileLogger struct {
	Logger
	file *os.File
	zap  *zap.Logger
}

// NewFileLogger creates (or truncates) the file at path and returns a logger
// writing to it. Context key value pairs are appended to the message as JSON.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, serrors.Wrap("opening diagnostics file", err, "path", path)
	}
	l := newFileZap(zapcore.AddSync(f))
	return &FileLogger{Logger: &logger{logger: l}, file: f, zap: l}, nil
}

func newFileZap(w zapcore.WriteSyncer) *zap.Logger {
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "ts",
		MessageKey:       "msg",
		StacktraceKey:    "stack",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.TimeEncoderOfLayout(FileTimeLayout),
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " : ",
	})
	return zap.New(zapcore.NewCore(enc, w, zapcore.DebugLevel))
}

// Name returns the path of the underlying file.
func (l *FileLogger) Name() string {
	return l.file.Name()
}

// Close flushes and closes the file.
func (l *FileLogger) Close() error {
	_ = l.zap.Sync()
	return l.file.Close()
}
