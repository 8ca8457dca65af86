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

// Package warmup makes sure that the switch has learned the hosts of every
// test case before any traffic is checked.
//
// For every test case, the gate sends learning traffic and then polls the ARP
// table and the MAC table of the switch until every access port host shows
// up in both, or until the timeout expires:
//
//	Sending -> Polling -> Ready
//	                   -> TimedOut
//
// A timed out case fails the warm-up with ErrNotReady.
package warmup

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/scionproto/vxlan-decap/device"
	"github.com/scionproto/vxlan-decap/pkg/log"
	"github.com/scionproto/vxlan-decap/pkg/metrics"
	"github.com/scionproto/vxlan-decap/pkg/private/prom"
	"github.com/scionproto/vxlan-decap/pkg/private/serrors"
	"github.com/scionproto/vxlan-decap/topology"
)

const (
	// DefaultInterval is the default time between two readiness checks.
	DefaultInterval = 3 * time.Second
	// DefaultTimeout is the default time a test case has to become ready.
	DefaultTimeout = 300 * time.Second
)

// ErrNotReady indicates that the switch did not learn the hosts of a test
// case in time.
var ErrNotReady = errors.New("DUT is not ready")

// State is the state of the gate for one test case.
type State int

const (
	// Sending is the state while learning traffic is sent.
	Sending State = iota
	// Polling is the state while the device tables are checked.
	Polling
	// Ready is the final state if the device learned all hosts.
	Ready
	// TimedOut is the final state if the timeout expired first.
	TimedOut
)

func (s State) String() string {
	switch s {
	case Sending:
		return "Sending"
	case Polling:
		return "Polling"
	case Ready:
		return "Ready"
	case TimedOut:
		return "TimedOut"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Learner sends the learning traffic of a test case. scenario.Executor
// implements it.
type Learner interface {
	Learn(ctx context.Context, tc topology.TestCase) error
}

// Metrics are the optional metrics of the gate.
type Metrics struct {
	// Checks counts readiness checks, labeled with the table and the result.
	Checks metrics.Counter
	// Duration is the time in seconds it took the last case to become ready
	// or to time out, labeled with the case.
	Duration metrics.Gauge
}

// Gate waits for the device to become ready.
type Gate struct {
	Learner Learner
	Device  device.Commander
	// PortMACs are the MAC addresses of the dataplane ports.
	PortMACs map[int]net.HardwareAddr
	Interval time.Duration
	Timeout  time.Duration
	// Logger is the diagnostic log. If nil, log.Root() is used.
	Logger  log.Logger
	Metrics Metrics
	// OnState is called on every state change if set.
	OnState func(tc string, s State)
}

func (g *Gate) logger() log.Logger {
	if g.Logger == nil {
		return log.Root()
	}
	return g.Logger
}

func (g *Gate) interval() time.Duration {
	if g.Interval == 0 {
		return DefaultInterval
	}
	return g.Interval
}

func (g *Gate) timeout() time.Duration {
	if g.Timeout == 0 {
		return DefaultTimeout
	}
	return g.Timeout
}

// Run warms up all test cases in order. The device status is dumped to the
// diagnostic log after every case. It stops at the first case that does not
// become ready.
func (g *Gate) Run(ctx context.Context, cases []topology.TestCase) error {
	logger := g.logger()
	logger.Info("Warming up")
	err := g.run(ctx, cases)
	if err != nil {
		logger.Info("The warmup failed")
		logger.Info(fmt.Sprintf("Error: %s", err))
		if st := serrors.StackTraceOf(err); len(st) > 0 {
			logger.Info(st.String())
		}
		return err
	}
	logger.Info("Warmup successful")
	return nil
}

func (g *Gate) run(ctx context.Context, cases []topology.TestCase) error {
	for _, tc := range cases {
		state, err := g.Wait(ctx, tc)
		if err != nil {
			return err
		}
		device.DumpStatus(ctx, g.Device, g.logger())
		if state != Ready {
			return serrors.Join(ErrNotReady, nil, "case", tc.Name, "timeout", g.timeout())
		}
	}
	return nil
}

// Wait sends the learning traffic of the test case and polls the device
// tables until the case is Ready or TimedOut. Errors are returned only for
// failures to send traffic and for a canceled context.
func (g *Gate) Wait(ctx context.Context, tc topology.TestCase) (State, error) {
	g.transition(tc, Sending)
	if err := g.Learner.Learn(ctx, tc); err != nil {
		return Sending, err
	}
	// The timeout covers polling only.
	start := time.Now()
	neighbors, err := g.neighbors(tc)
	if err != nil {
		return Sending, err
	}
	g.transition(tc, Polling)
	state := Polling
	for state == Polling {
		switch {
		case g.ready(ctx, tc, neighbors):
			state = Ready
		case time.Since(start) > g.timeout():
			state = TimedOut
		default:
			if err := sleep(ctx, g.interval()); err != nil {
				return Polling, err
			}
		}
	}
	g.transition(tc, state)
	metrics.GaugeSet(metrics.GaugeWith(g.Metrics.Duration, prom.LabelCase, tc.Name),
		time.Since(start).Seconds())
	return state, nil
}

func (g *Gate) transition(tc topology.TestCase, s State) {
	g.logger().Debug("Warm-up state", "case", tc.Name, "state", s)
	if g.OnState != nil {
		g.OnState(tc.Name, s)
	}
}

func (g *Gate) neighbors(tc topology.TestCase) ([]device.Neighbor, error) {
	neighbors := make([]device.Neighbor, 0, len(tc.AccessPorts))
	for _, a := range tc.AccessPorts {
		mac, ok := g.PortMACs[a.Index]
		if !ok {
			return nil, serrors.New("MAC address of port unknown", "port", a.Index)
		}
		neighbors = append(neighbors, device.Neighbor{IP: a.Host, MAC: mac, Alias: a.Alias})
	}
	return neighbors, nil
}

// ready checks the MAC table first and the ARP table only if all hosts are
// in the MAC table.
func (g *Gate) ready(ctx context.Context, tc topology.TestCase,
	neighbors []device.Neighbor) bool {

	return g.check(ctx, tc, "fdb", device.FDB, device.HasFDBEntries, neighbors) &&
		g.check(ctx, tc, "arp", device.ARPTable, device.HasARPEntries, neighbors)
}

func (g *Gate) check(ctx context.Context, tc topology.TestCase, table string,
	fetch func(context.Context, device.Commander) ([]string, error),
	has func([]string, []device.Neighbor) bool, neighbors []device.Neighbor) bool {

	lines, err := fetch(ctx, g.Device)
	ok := err == nil && has(lines, neighbors)
	if err != nil {
		g.logger().Info("Reading device table failed", "case", tc.Name, "table", table,
			"err", err)
	}
	result := prom.Success
	switch {
	case err != nil:
		result = prom.ErrNetwork
	case !ok:
		result = prom.ErrNotReady
	}
	metrics.CounterInc(metrics.CounterWith(g.Metrics.Checks,
		prom.LabelTable, table, prom.LabelResult, result))
	return ok
}

func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
