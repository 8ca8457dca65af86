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

// Package prom contains some utility functions for dealing with prometheus
// metrics.
package prom

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace is the namespace of all exported metrics.
const Namespace = "vxlan_decap"

// Common label values.
const (
	// LabelResult is the label for result classifications.
	LabelResult = "result"
	// LabelScenario is the label for the name of a scenario kind.
	LabelScenario = "scenario"
	// LabelCase is the label for the name of a test case.
	LabelCase = "case"
	// LabelPort is the label for a dataplane port number.
	LabelPort = "port"
	// LabelPhase is the label for the run phase.
	LabelPhase = "phase"
	// LabelTable is the label for a device table.
	LabelTable = "table"
)

// Common result values.
const (
	// Success is no error.
	Success = "ok_success"
	// ErrMismatch is used when fewer frames than sent were received.
	ErrMismatch = "err_mismatch"
	// ErrUnexpected is used when frames arrived that must not have arrived.
	ErrUnexpected = "err_unexpected"
	// ErrTimeout is a timeout error.
	ErrTimeout = "err_timeout"
	// ErrNetwork is used for errors when sending something over the network.
	ErrNetwork = "err_network"
	// ErrNotReady is used when the device has not learned all hosts yet.
	ErrNotReady = "err_not_ready"
	// ErrNotClassified is an error that is not further classified.
	ErrNotClassified = "err_not_classified"
)

// SafeRegister registers c with reg and returns the registered collector. If c
// was already registered the already registered collector is returned. In
// case of any other error this method panics (as MustRegister). A nil reg uses
// the default registerer.
func SafeRegister(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

// NewCounterVec creates a counter vec in the package namespace and registers
// it with reg.
func NewCounterVec(reg prometheus.Registerer, subsystem, name, help string,
	labelNames []string) *prometheus.CounterVec {

	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labelNames)
	return SafeRegister(reg, c).(*prometheus.CounterVec)
}

// NewGaugeVec creates a gauge vec in the package namespace and registers it
// with reg.
func NewGaugeVec(reg prometheus.Registerer, subsystem, name, help string,
	labelNames []string) *prometheus.GaugeVec {

	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labelNames)
	return SafeRegister(reg, g).(*prometheus.GaugeVec)
}
