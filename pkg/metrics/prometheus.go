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

package metrics

import (
	"maps"

	"github.com/prometheus/client_golang/prometheus"
)

// NewPromCounter wraps a prometheus counter vector. It returns nil if cv is
// nil.
func NewPromCounter(cv *prometheus.CounterVec) Counter {
	if cv == nil {
		return nil
	}
	return promCounter{vec: cv}
}

// NewPromGauge wraps a prometheus gauge vector. It returns nil if gv is nil.
func NewPromGauge(gv *prometheus.GaugeVec) Gauge {
	if gv == nil {
		return nil
	}
	return promGauge{vec: gv}
}

type promCounter struct {
	vec    *prometheus.CounterVec
	labels prometheus.Labels
}

func (c promCounter) With(labelValues ...string) Counter {
	return promCounter{vec: c.vec, labels: withLabels(c.labels, labelValues)}
}

// Add panics if a label of the vector is not set.
func (c promCounter) Add(delta float64) {
	c.vec.With(c.labels).Add(delta)
}

type promGauge struct {
	vec    *prometheus.GaugeVec
	labels prometheus.Labels
}

func (g promGauge) With(labelValues ...string) Gauge {
	return promGauge{vec: g.vec, labels: withLabels(g.labels, labelValues)}
}

func (g promGauge) Set(value float64) {
	g.vec.With(g.labels).Set(value)
}

func (g promGauge) Add(delta float64) {
	g.vec.With(g.labels).Add(delta)
}

// withLabels returns a copy of labels extended by the name value pairs. A
// name without value gets the value "unknown".
func withLabels(labels prometheus.Labels, pairs []string) prometheus.Labels {
	res := maps.Clone(labels)
	if res == nil {
		res = make(prometheus.Labels, len(pairs)/2+1)
	}
	for i := 0; i < len(pairs); i += 2 {
		value := "unknown"
		if i+1 < len(pairs) {
			value = pairs[i+1]
		}
		res[pairs[i]] = value
	}
	return res
}
