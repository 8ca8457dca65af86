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

// Package scenario implements the dataplane scenarios run against every test
// case.
//
// A scenario is a loop over ingress/egress port pairs. For every pair, a
// probe flushes the dataplane, sends the configured number of frames on the
// ingress port and counts the expected frames on the egress ports. The first
// probe that does not receive every frame ends the scenario with a Mismatch.
// Errors are reserved for faults of the test infrastructure.
package scenario

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/scionproto/vxlan-decap/dataplane"
	"github.com/scionproto/vxlan-decap/pkg/metrics"
	"github.com/scionproto/vxlan-decap/pkg/private/serrors"
	"github.com/scionproto/vxlan-decap/topology"
)

// Defaults of the Context timing.
const (
	DefaultPollTimeout = 20 * time.Second
	DefaultVxlanDelay  = time.Second
	DefaultLearnDelay  = 500 * time.Millisecond
)

// RandomMAC is the source MAC of frames injected on network ports.
var RandomMAC = net.HardwareAddr{0x8c, 0x01, 0x02, 0x03, 0x04, 0x05}

// Kind is a scenario kind.
type Kind int

const (
	// RegularDUTtoVLAN sends routed traffic from the network ports to the
	// hosts behind the access ports.
	RegularDUTtoVLAN Kind = iota
	// RegularVLANtoDUT sends routed traffic from the access ports to the
	// uplink peers.
	RegularVLANtoDUT
	// Vxlan sends VXLAN encapsulated frames to the loopback of the switch
	// and expects the decapsulated frame on the access port.
	Vxlan
)

// Kinds lists the scenario kinds in execution order.
var Kinds = []Kind{RegularDUTtoVLAN, RegularVLANtoDUT, Vxlan}

func (k Kind) String() string {
	switch k {
	case RegularDUTtoVLAN:
		return "RegularDUTtoVLAN"
	case RegularVLANtoDUT:
		return "RegularVLANtoDUT"
	case Vxlan:
		return "Vxlan"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Dataplane is the view of the dataplane the scenarios need.
// dataplane.Dataplane implements it.
type Dataplane interface {
	Send(port int, frame []byte) error
	Flush()
	Poll(ctx context.Context, match dataplane.MatchFunc, wait time.Duration) (
		dataplane.Frame, error)
	Pending(match dataplane.MatchFunc) []dataplane.Frame
}

// Metrics are the optional metrics of the executor.
type Metrics struct {
	// Probes counts checked probes, labeled with scenario, case and result.
	Probes metrics.Counter
	// FramesSent counts sent frames, labeled with scenario and case.
	FramesSent metrics.Counter
	// FramesReceived counts matched frames, labeled with scenario and case.
	FramesReceived metrics.Counter
}

// Context is the immutable input shared by all scenarios of a run.
type Context struct {
	Topology *topology.Topology
	// PortMACs are the MAC addresses of the dataplane ports.
	PortMACs map[int]net.HardwareAddr
	// Count is the number of frames sent per probe.
	Count     int
	RandomMAC net.HardwareAddr
	// PollTimeout is the counting window of a probe.
	PollTimeout time.Duration
	// VxlanDelay is slept before the probes of each Vxlan ingress port.
	VxlanDelay time.Duration
	// LearnDelay is slept after each learning probe.
	LearnDelay time.Duration
}

// InitDefaults sets the unset fields to their defaults.
func (c *Context) InitDefaults() {
	if c.Count == 0 {
		c.Count = 1
	}
	if c.RandomMAC == nil {
		c.RandomMAC = RandomMAC
	}
	if c.PollTimeout == 0 {
		c.PollTimeout = DefaultPollTimeout
	}
	if c.VxlanDelay == 0 {
		c.VxlanDelay = DefaultVxlanDelay
	}
	if c.LearnDelay == 0 {
		c.LearnDelay = DefaultLearnDelay
	}
}

// Validate checks that the context is usable.
func (c *Context) Validate() error {
	if c.Topology == nil {
		return serrors.New("topology not set")
	}
	if c.Count < 1 {
		return serrors.New("count must be at least 1", "count", c.Count)
	}
	if len(c.RandomMAC) != 6 {
		return serrors.New("invalid random MAC", "mac", c.RandomMAC)
	}
	if c.VxlanDelay < 0 || c.LearnDelay < 0 {
		return serrors.New("delays must not be negative",
			"vxlan_delay", c.VxlanDelay, "learn_delay", c.LearnDelay)
	}
	for _, tc := range c.Topology.Cases {
		for _, p := range tc.AccessPorts {
			if _, err := c.portMAC(p.Index); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Context) portMAC(port int) (net.HardwareAddr, error) {
	mac, ok := c.PortMACs[port]
	if !ok || len(mac) != 6 {
		return nil, serrors.New("MAC address of port unknown", "port", port)
	}
	return mac, nil
}

// Executor runs scenarios on a dataplane.
type Executor struct {
	Dataplane Dataplane
	Context   Context
	Metrics   Metrics
}

// Run runs the scenario of the given kind for the test case.
func (e *Executor) Run(ctx context.Context, kind Kind, tc topology.TestCase) (Result, error) {
	start := time.Now()
	var s *session
	var err error
	switch kind {
	case RegularDUTtoVLAN:
		s, err = e.regularDUTtoVLAN(ctx, tc, false)
	case RegularVLANtoDUT:
		s, err = e.regularVLANtoDUT(ctx, tc)
	case Vxlan:
		s, err = e.vxlan(ctx, tc)
	default:
		return Result{}, serrors.New("unknown scenario", "kind", kind)
	}
	if err != nil {
		return Result{}, serrors.Wrap("running scenario", err, "scenario", kind, "case", tc.Name)
	}
	return Result{
		Kind:     kind,
		Case:     tc.Name,
		Probes:   s.probes,
		Duration: time.Since(start),
		Mismatch: s.mismatch,
	}, nil
}

// Learn sends the RegularDUTtoVLAN frames of the first network port without
// checking the outcome, so that the switch learns the hosts.
func (e *Executor) Learn(ctx context.Context, tc topology.TestCase) error {
	if _, err := e.regularDUTtoVLAN(ctx, tc, true); err != nil {
		return serrors.Wrap("sending learning traffic", err, "case", tc.Name)
	}
	return nil
}

// sleep waits for d or until ctx is done.
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
