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
	"sort"
	"strings"
	"sync"
)

// store holds the values of all label combinations of one fake metric.
type store struct {
	mtx    sync.Mutex
	values map[string]float64
}

func (s *store) add(key string, delta float64, canBeNegative bool) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if !canBeNegative && delta < 0 {
		panic("counter increment value is < 0")
	}
	s.values[key] += delta
}

func (s *store) set(key string, v float64) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.values[key] = v
}

func (s *store) value(key string) float64 {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.values[key]
}

func labelKey(labels map[string]string) string {
	pairs := make([]string, 0, len(labels))
	for name, value := range labels {
		pairs = append(pairs, name+"="+value)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

// TestCounter implements a counter for use in tests. Every label combination
// is tracked separately.
type TestCounter struct {
	s      *store
	labels map[string]string
}

// NewTestCounter creates a new counter for use in tests.
func NewTestCounter() *TestCounter {
	return &TestCounter{s: &store{values: map[string]float64{}}}
}

// With returns a counter with the labels added. It shares the storage with c.
func (c *TestCounter) With(labelValues ...string) Counter {
	return &TestCounter{s: c.s, labels: withLabels(c.labels, labelValues)}
}

// Add increases the value of the counter by delta. Negative values panic.
func (c *TestCounter) Add(delta float64) {
	c.s.add(labelKey(c.labels), delta, false)
}

// CounterValue extracts the value out of a TestCounter. If the argument is not
// a *TestCounter, CounterValue will panic.
func CounterValue(c Counter) float64 {
	tc := c.(*TestCounter)
	return tc.s.value(labelKey(tc.labels))
}

// TestGauge implements a gauge for use in tests.
type TestGauge struct {
	s      *store
	labels map[string]string
}

// NewTestGauge creates a new gauge for use in tests.
func NewTestGauge() *TestGauge {
	return &TestGauge{s: &store{values: map[string]float64{}}}
}

// With returns a gauge with the labels added. It shares the storage with g.
func (g *TestGauge) With(labelValues ...string) Gauge {
	return &TestGauge{s: g.s, labels: withLabels(g.labels, labelValues)}
}

// Set sets the value of the gauge.
func (g *TestGauge) Set(v float64) {
	g.s.set(labelKey(g.labels), v)
}

// Add changes the value of the gauge by delta.
func (g *TestGauge) Add(delta float64) {
	g.s.add(labelKey(g.labels), delta, true)
}

// GaugeValue extracts the value out of a TestGauge. If the argument is not a
// *TestGauge, GaugeValue will panic.
func GaugeValue(g Gauge) float64 {
	tg := g.(*TestGauge)
	return tg.s.value(labelKey(tg.labels))
}
