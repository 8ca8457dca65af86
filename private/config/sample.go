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

package config

import (
	"fmt"
	"io"
	"strings"
)

// CtxMap holds context values passed down to the samplers.
type CtxMap map[string]string

// WriteSample writes the samples to dst in the given order. The body of a
// TableSampler is indented below its [path] header. It panics if writing
// fails.
func WriteSample(dst io.Writer, path Path, ctx CtxMap, samplers ...Sampler) {
	for _, s := range samplers {
		ts, ok := s.(TableSampler)
		if !ok {
			s.Sample(mustWriter{dst}, path, ctx)
			continue
		}
		p := path.Extend(ts.ConfigName())
		var body strings.Builder
		ts.Sample(&body, p, ctx)
		WriteString(dst, "\n["+strings.Join(p, ".")+"]"+indent(body.String()))
	}
}

// WriteString writes s to dst. It panics if writing fails.
func WriteString(dst io.Writer, s string) {
	if _, err := io.WriteString(dst, s); err != nil {
		panic(fmt.Sprintf("writing sample: %s", err))
	}
}

type mustWriter struct {
	io.Writer
}

func (w mustWriter) Write(b []byte) (int, error) {
	WriteString(w.Writer, string(b))
	return len(b), nil
}

// indent prefixes every non-empty line with four spaces.
func indent(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimSuffix(s, "\n"), "\n") {
		if line != "" {
			b.WriteString("    ")
			b.WriteString(line)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
