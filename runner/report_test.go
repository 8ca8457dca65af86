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

package runner_test

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/scionproto/vxlan-decap/pkg/private/util"
	"github.com/scionproto/vxlan-decap/runner"
)

func failedReport() *runner.Report {
	return &runner.Report{
		Warmup:       util.DurWrap{Duration: 12 * time.Second},
		WarmupPassed: true,
		Entries: []runner.Entry{
			{
				Case:      "Vlan1000",
				Scenario:  "RegularDUTtoVLAN",
				Delivered: true,
				Passed:    true,
				Probes:    4,
				Duration:  util.DurWrap{Duration: 1500 * time.Millisecond},
			},
			{
				Case:     "Vlan1000",
				Scenario: "RegularVLANtoDUT",
				Probes:   1,
				Duration: util.DurWrap{Duration: 20 * time.Second},
				Detail:   "sent = 1 rcvd = 0 | src_port=2 dst_ports=[0, 1]",
			},
		},
		Error: "scenario failed {case=Vlan1000}",
	}
}

func TestReportHuman(t *testing.T) {
	var buf bytes.Buffer
	failedReport().Human(&buf, false)
	out := buf.String()
	assert.Contains(t, out, "Warm-up: PASS (12s)\n")
	assert.Regexp(t, `CASE\s+SCENARIO\s+RESULT\s+DELIVERED\s+PROBES\s+DURATION`, out)
	assert.Regexp(t, `Vlan1000\s+RegularDUTtoVLAN\s+PASS\s+true\s+4\s+1500ms`, out)
	assert.Regexp(t, `Vlan1000\s+RegularVLANtoDUT\s+FAIL\s+false\s+1\s+20s`, out)
	assert.Contains(t, out,
		"Vlan1000 RegularVLANtoDUT: sent = 1 rcvd = 0 | src_port=2 dst_ports=[0, 1]\n")
	assert.Contains(t, out, "Error: scenario failed {case=Vlan1000}\n")
	assert.Contains(t, out, "Verdict: FAIL\n")
	assert.NotContains(t, out, "\x1b[")
}

func TestReportMachine(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, failedReport().Write(&buf, "json", false))
		var got map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "12s", got["warmup"])
		assert.Equal(t, false, got["passed"])
		entries := got["entries"].([]any)
		require.Len(t, entries, 2)
		first := entries[0].(map[string]any)
		assert.Equal(t, "1500ms", first["duration"])
		assert.NotContains(t, first, "detail")
	})
	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, failedReport().Write(&buf, "yaml", false))
		var got runner.Report
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		if diff := cmp.Diff(failedReport(), &got); diff != "" {
			t.Errorf("report mismatch (-want +got):\n%s", diff)
		}
	})
	t.Run("unknown", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Error(t, failedReport().Write(&buf, "xml", false))
	})
}
