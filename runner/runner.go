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

// Package runner runs the test matrix: the warm-up, followed by every
// scenario kind for every test case. The first failing scenario ends the run.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/scionproto/vxlan-decap/device"
	"github.com/scionproto/vxlan-decap/pkg/log"
	"github.com/scionproto/vxlan-decap/pkg/metrics"
	"github.com/scionproto/vxlan-decap/pkg/private/prom"
	"github.com/scionproto/vxlan-decap/pkg/private/serrors"
	"github.com/scionproto/vxlan-decap/pkg/private/util"
	"github.com/scionproto/vxlan-decap/scenario"
	"github.com/scionproto/vxlan-decap/topology"
)

// ErrScenarioFailed indicates that a scenario did not have the expected
// outcome.
var ErrScenarioFailed = errors.New("scenario failed")

// Warmup prepares the device for the test cases. warmup.Gate implements it.
type Warmup interface {
	Run(ctx context.Context, cases []topology.TestCase) error
}

// Scenarios runs a single scenario. scenario.Executor implements it.
type Scenarios interface {
	Run(ctx context.Context, kind scenario.Kind, tc topology.TestCase) (scenario.Result, error)
}

// Metrics are the optional metrics of the runner.
type Metrics struct {
	// Outcomes counts scenario outcomes, labeled with scenario, case and
	// result.
	Outcomes metrics.Counter
	// Passed is 1 if the last run passed and 0 otherwise, labeled with the
	// phase that decided it.
	Passed metrics.Gauge
}

// Runner runs the test matrix.
type Runner struct {
	Warmup    Warmup
	Scenarios Scenarios
	// Device is inspected when a scenario fails.
	Device device.Commander
	Cases  []topology.TestCase
	// VxlanEnabled is the expected state of VXLAN decapsulation. If false, a
	// Vxlan scenario passes only if no frame is decapsulated.
	VxlanEnabled bool
	// Logger is the diagnostic log. If nil, log.Root() is used.
	Logger  log.Logger
	Metrics Metrics
}

func (r *Runner) logger() log.Logger {
	if r.Logger == nil {
		return log.Root()
	}
	return r.Logger
}

// Run warms up the device and runs the matrix. The report is returned in any
// case. A failed warm-up is returned as is, a failing scenario as an error
// wrapping ErrScenarioFailed.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	rep := &Report{VxlanEnabled: r.VxlanEnabled}
	start := time.Now()
	err := r.Warmup.Run(ctx, r.Cases)
	rep.Warmup = util.DurWrap{Duration: time.Since(start).Truncate(time.Millisecond)}
	if err != nil {
		rep.Error = err.Error()
		r.setPassed("warmup", false)
		return rep, err
	}
	rep.WarmupPassed = true

	logger := r.logger()
	logger.Info("Testing")
	if err := r.matrix(ctx, rep); err != nil {
		logger.Info("The test failed")
		logger.Info(fmt.Sprintf("Error: %s", err))
		if st := serrors.StackTraceOf(err); len(st) > 0 {
			logger.Info(st.String())
		}
		rep.Error = err.Error()
		r.setPassed("matrix", false)
		return rep, err
	}
	logger.Info("The test was successful")
	rep.Passed = true
	r.setPassed("matrix", true)
	return rep, nil
}

func (r *Runner) matrix(ctx context.Context, rep *Report) error {
	logger := r.logger()
	for _, tc := range r.Cases {
		logger.Info(tc.Name)
		for _, kind := range scenario.Kinds {
			res, err := r.Scenarios.Run(ctx, kind, tc)
			if err != nil {
				return err
			}
			logger.Info(fmt.Sprintf("%s = %t %s", kind, res.Passed(), res.Detail()))
			failure := r.check(kind, tc, res)
			rep.Entries = append(rep.Entries, Entry{
				Case:      tc.Name,
				Scenario:  kind.String(),
				Delivered: res.Passed(),
				Passed:    failure == nil,
				Probes:    res.Probes,
				Duration:  util.DurWrap{Duration: res.Duration.Truncate(time.Millisecond)},
				Detail:    res.Detail(),
			})
			r.countOutcome(kind, tc, res, failure)
			if failure != nil {
				device.DumpStatus(ctx, r.Device, logger)
				return failure
			}
		}
	}
	return nil
}

// check returns an error if the result is not the expected one.
func (r *Runner) check(kind scenario.Kind, tc topology.TestCase, res scenario.Result) error {
	if kind == scenario.Vxlan && !r.VxlanEnabled {
		if !res.Passed() {
			return nil
		}
		return serrors.Join(ErrScenarioFailed,
			errors.New("VxlanTest: vxlan works, but it must have been disabled!"),
			"case", tc.Name)
	}
	if res.Passed() {
		return nil
	}
	name := kind.String() + " test"
	if kind == scenario.Vxlan {
		name = "VxlanTest"
	}
	return serrors.Join(ErrScenarioFailed,
		fmt.Errorf("%s failed:\n  %s", name, res.Detail()),
		"case", tc.Name)
}

func (r *Runner) countOutcome(kind scenario.Kind, tc topology.TestCase,
	res scenario.Result, failure error) {

	result := prom.Success
	switch {
	case failure == nil:
	case res.Passed():
		result = prom.ErrUnexpected
	default:
		result = prom.ErrMismatch
	}
	metrics.CounterInc(metrics.CounterWith(r.Metrics.Outcomes,
		prom.LabelScenario, kind.String(), prom.LabelCase, tc.Name, prom.LabelResult, result))
}

func (r *Runner) setPassed(phase string, passed bool) {
	v := 0.0
	if passed {
		v = 1
	}
	metrics.GaugeSet(metrics.GaugeWith(r.Metrics.Passed, prom.LabelPhase, phase), v)
}
