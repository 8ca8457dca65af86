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

// Package metrics defines the Prometheus metrics of a run. There is no
// endpoint; the metrics are written to a node exporter textfile once the run
// is over.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/scionproto/vxlan-decap/dataplane"
	libmetrics "github.com/scionproto/vxlan-decap/pkg/metrics"
	"github.com/scionproto/vxlan-decap/pkg/private/prom"
	"github.com/scionproto/vxlan-decap/pkg/private/serrors"
	"github.com/scionproto/vxlan-decap/runner"
	"github.com/scionproto/vxlan-decap/scenario"
	"github.com/scionproto/vxlan-decap/warmup"
)

// Metrics are the metrics of all components of a run.
type Metrics struct {
	Registry  *prometheus.Registry
	Dataplane dataplane.Metrics
	Scenario  scenario.Metrics
	Warmup    warmup.Metrics
	Runner    runner.Metrics
}

// New creates the metrics in a fresh registry. If withProcess is set, the
// Go runtime and process collectors are registered too.
func New(withProcess bool) *Metrics {
	reg := prometheus.NewRegistry()
	if withProcess {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	counter := func(subsystem, name, help string, labels ...string) libmetrics.Counter {
		return libmetrics.NewPromCounter(prom.NewCounterVec(reg, subsystem, name, help, labels))
	}
	gauge := func(subsystem, name, help string, labels ...string) libmetrics.Gauge {
		return libmetrics.NewPromGauge(prom.NewGaugeVec(reg, subsystem, name, help, labels))
	}
	return &Metrics{
		Registry: reg,
		Dataplane: dataplane.Metrics{
			Captured: counter("dataplane", "captured_frames_total",
				"Total number of frames captured on a port.", prom.LabelPort),
			Dropped: counter("dataplane", "dropped_frames_total",
				"Total number of captured frames dropped from a full queue.", prom.LabelPort),
			Sent: counter("dataplane", "sent_frames_total",
				"Total number of frames sent on a port.", prom.LabelPort),
		},
		Scenario: scenario.Metrics{
			Probes: counter("scenario", "probes_total",
				"Total number of checked probes.",
				prom.LabelScenario, prom.LabelCase, prom.LabelResult),
			FramesSent: counter("scenario", "sent_frames_total",
				"Total number of frames sent by probes.", prom.LabelScenario, prom.LabelCase),
			FramesReceived: counter("scenario", "received_frames_total",
				"Total number of expected frames received by probes.",
				prom.LabelScenario, prom.LabelCase),
		},
		Warmup: warmup.Metrics{
			Checks: counter("warmup", "checks_total",
				"Total number of device table checks.", prom.LabelTable, prom.LabelResult),
			Duration: gauge("warmup", "duration_seconds",
				"Time it took a test case to become ready or to time out.", prom.LabelCase),
		},
		Runner: runner.Metrics{
			Outcomes: counter("runner", "outcomes_total",
				"Total number of scenario outcomes.",
				prom.LabelScenario, prom.LabelCase, prom.LabelResult),
			Passed: gauge("runner", "passed",
				"Whether the run passed (1) or failed (0), labeled with the deciding phase.",
				prom.LabelPhase),
		},
	}
}

// WriteTextfile writes all metrics in the Prometheus text format to path.
// The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return serrors.Wrap("writing metrics textfile", err, "path", path)
	}
	return nil
}
