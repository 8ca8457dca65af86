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

package runner

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v2"

	"github.com/scionproto/vxlan-decap/pkg/private/serrors"
	"github.com/scionproto/vxlan-decap/pkg/private/util"
)

// Report is the outcome of a run.
type Report struct {
	VxlanEnabled bool         `json:"vxlan_enabled" yaml:"vxlan_enabled"`
	Warmup       util.DurWrap `json:"warmup" yaml:"warmup"`
	WarmupPassed bool         `json:"warmup_passed" yaml:"warmup_passed"`
	// Entries are the scenarios that ran, in order. If the run failed, the
	// last entry is the failing scenario.
	Entries []Entry `json:"entries" yaml:"entries"`
	Passed  bool    `json:"passed" yaml:"passed"`
	Error   string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// Entry is the outcome of one scenario.
type Entry struct {
	Case     string `json:"case" yaml:"case"`
	Scenario string `json:"scenario" yaml:"scenario"`
	// Delivered reports whether every sent frame arrived.
	Delivered bool `json:"delivered" yaml:"delivered"`
	// Passed reports whether the outcome was the expected one.
	Passed   bool         `json:"passed" yaml:"passed"`
	Probes   int          `json:"probes" yaml:"probes"`
	Duration util.DurWrap `json:"duration" yaml:"duration"`
	Detail   string       `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Human writes a table of the report to w.
func (r *Report) Human(w io.Writer, colored bool) {
	pass, fail := color.New(color.FgGreen), color.New(color.FgRed)
	if !colored {
		pass.DisableColor()
		fail.DisableColor()
	}
	verdict := func(ok bool) string {
		if ok {
			return pass.Sprint("PASS")
		}
		return fail.Sprint("FAIL")
	}

	fmt.Fprintf(w, "Warm-up: %s (%s)\n", verdict(r.WarmupPassed), r.Warmup)
	if len(r.Entries) > 0 {
		table := tablewriter.NewWriter(w)
		table.SetAutoWrapText(false)
		table.SetBorder(false)
		table.SetHeaderLine(false)
		table.SetCenterSeparator("")
		table.SetColumnSeparator("")
		table.SetRowSeparator("")
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetHeader([]string{"CASE", "SCENARIO", "RESULT", "DELIVERED", "PROBES",
			"DURATION"})
		for _, e := range r.Entries {
			table.Append([]string{
				e.Case,
				e.Scenario,
				verdict(e.Passed),
				strconv.FormatBool(e.Delivered),
				strconv.Itoa(e.Probes),
				e.Duration.String(),
			})
		}
		table.Render()
	}
	for _, e := range r.Entries {
		if !e.Passed && e.Detail != "" {
			fmt.Fprintf(w, "%s %s: %s\n", e.Case, e.Scenario, e.Detail)
		}
	}
	if r.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", r.Error)
	}
	fmt.Fprintf(w, "Verdict: %s\n", verdict(r.Passed))
}

// JSON writes the report as a JSON object to w.
func (r *Report) JSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}

// YAML writes the report as a YAML document to w.
func (r *Report) YAML(w io.Writer) error {
	raw, err := yaml.Marshal(r)
	if err != nil {
		return serrors.Wrap("encoding report", err)
	}
	_, err = w.Write(raw)
	return err
}

// Write writes the report in the given format (human, json or yaml).
func (r *Report) Write(w io.Writer, format string, colored bool) error {
	switch format {
	case "human", "":
		r.Human(w, colored)
		return nil
	case "json":
		return r.JSON(w)
	case "yaml":
		return r.YAML(w)
	default:
		return serrors.New("unsupported report format", "format", format)
	}
}
