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

package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/scionproto/vxlan-decap/pkg/metrics"
)

func TestNilMetrics(t *testing.T) {
	assert.NotPanics(t, func() {
		metrics.CounterInc(metrics.CounterWith(nil, "port", "1"))
		metrics.GaugeSet(metrics.GaugeWith(nil, "port", "1"), 3)
	})
}

func TestTestCounter(t *testing.T) {
	c := metrics.NewTestCounter()
	metrics.CounterInc(c.With("port", "1"))
	metrics.CounterAdd(c.With("port", "1"), 2)
	metrics.CounterInc(c.With("port", "2"))

	assert.Equal(t, 3.0, metrics.CounterValue(c.With("port", "1")))
	assert.Equal(t, 1.0, metrics.CounterValue(c.With("port", "2")))
	assert.Equal(t, 0.0, metrics.CounterValue(c))
	assert.Panics(t, func() { c.Add(-1) })
}

func TestTestGauge(t *testing.T) {
	g := metrics.NewTestGauge()
	metrics.GaugeSet(g.With("a", "b"), 4)
	g.With("a", "b").Add(-1)
	assert.Equal(t, 3.0, metrics.GaugeValue(g.With("a", "b")))
}

func TestPromCounter(t *testing.T) {
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "frames_total"},
		[]string{"port", "result"})
	c := metrics.NewPromCounter(cv)
	metrics.CounterInc(c.With("port", "3").With("result", "ok"))
	metrics.CounterInc(c.With("port", "3", "result", "ok"))
	assert.Equal(t, 2.0, testutil.ToFloat64(cv.WithLabelValues("3", "ok")))
	assert.Nil(t, metrics.NewPromCounter(nil))
}

func TestPromGauge(t *testing.T) {
	gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "queued"}, []string{"port"})
	g := metrics.NewPromGauge(gv)
	g.With("port", "1").Set(5)
	g.With("port", "1").Add(1)
	assert.Equal(t, 6.0, testutil.ToFloat64(gv.WithLabelValues("1")))
}

func TestPromLabelsAreCopied(t *testing.T) {
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "probes_total"},
		[]string{"case", "result"})
	c := metrics.NewPromCounter(cv).With("case", "Vlan1000")
	metrics.CounterInc(c.With("result", "ok"))
	metrics.CounterInc(c.With("result", "err"))
	metrics.CounterInc(c.With("result"))
	assert.Equal(t, 1.0, testutil.ToFloat64(cv.WithLabelValues("Vlan1000", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(cv.WithLabelValues("Vlan1000", "err")))
	assert.Equal(t, 1.0, testutil.ToFloat64(cv.WithLabelValues("Vlan1000", "unknown")))
	assert.Panics(t, func() { c.Add(1) })
}

func TestTestCounterLabelOrder(t *testing.T) {
	c := metrics.NewTestCounter()
	metrics.CounterInc(c.With("case", "Vlan1000").With("result", "ok"))
	metrics.CounterInc(c.With("result", "ok", "case", "Vlan1000"))
	assert.Equal(t, 2.0, metrics.CounterValue(c.With("case", "Vlan1000", "result", "ok")))
	assert.Equal(t, 0.0, metrics.CounterValue(c.With("case", "Vlan1000")))
}
