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

package scenario_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/scionproto/vxlan-decap/dataplane"
	"github.com/scionproto/vxlan-decap/packet"
	"github.com/scionproto/vxlan-decap/pkg/metrics"
	"github.com/scionproto/vxlan-decap/pkg/private/prom"
	"github.com/scionproto/vxlan-decap/scenario"
	"github.com/scionproto/vxlan-decap/topology"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newExecutor(t *testing.T, activeActive bool,
	count int) (*scenario.Executor, *fakeSwitch) {

	t.Helper()
	topo := testTopology(activeActive)
	sw, d := newSwitch(t, topo)
	e := &scenario.Executor{
		Dataplane: d,
		Context: scenario.Context{
			Topology:    topo,
			PortMACs:    portMACs(),
			Count:       count,
			PollTimeout: 100 * time.Millisecond,
			VxlanDelay:  time.Millisecond,
			LearnDelay:  time.Millisecond,
		},
	}
	e.Context.InitDefaults()
	require.NoError(t, e.Context.Validate())
	return e, sw
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "RegularDUTtoVLAN", scenario.RegularDUTtoVLAN.String())
	assert.Equal(t, "RegularVLANtoDUT", scenario.RegularVLANtoDUT.String())
	assert.Equal(t, "Vxlan", scenario.Vxlan.String())
	assert.Equal(t, "Kind(9)", scenario.Kind(9).String())
	assert.Equal(t, []scenario.Kind{scenario.RegularDUTtoVLAN, scenario.RegularVLANtoDUT,
		scenario.Vxlan}, scenario.Kinds)
}

func TestContext(t *testing.T) {
	var c scenario.Context
	c.InitDefaults()
	assert.Equal(t, 1, c.Count)
	assert.Equal(t, "8c:01:02:03:04:05", c.RandomMAC.String())
	assert.Equal(t, 20*time.Second, c.PollTimeout)
	assert.Equal(t, time.Second, c.VxlanDelay)
	assert.Equal(t, 500*time.Millisecond, c.LearnDelay)
	assert.Error(t, c.Validate(), "topology missing")

	c.Topology = testTopology(false)
	assert.Error(t, c.Validate(), "port MACs missing")
	c.PortMACs = portMACs()
	assert.NoError(t, c.Validate())
	c.Count = -1
	assert.Error(t, c.Validate())
}

func TestRun(t *testing.T) {
	testCases := map[string]struct {
		Kind         scenario.Kind
		ActiveActive bool
		Count        int
		Setup        func(s *fakeSwitch)
		Probes       int
		Mismatch     string
	}{
		"DUT to VLAN": {
			Kind:   scenario.RegularDUTtoVLAN,
			Probes: 4,
		},
		"DUT to VLAN count 3": {
			Kind:   scenario.RegularDUTtoVLAN,
			Count:  3,
			Probes: 4,
		},
		"DUT to VLAN egress lost": {
			Kind:   scenario.RegularDUTtoVLAN,
			Setup:  func(s *fakeSwitch) { s.drop[3] = true },
			Probes: 2,
			Mismatch: "sent = 1 rcvd = 0 | src_port=0 dst_port=3 | " +
				"src_mac=8c:01:02:03:04:05 dst_mac=00:aa:bb:cc:dd:01 " +
				"src_ip=8.8.8.8 dst_ip=192.168.0.3 | net_port_rel=0 acc_port_rel=1",
		},
		"DUT to VLAN sent three received two": {
			Kind:   scenario.RegularDUTtoVLAN,
			Count:  3,
			Setup:  func(s *fakeSwitch) { s.budget = 2 },
			Probes: 1,
			Mismatch: "sent = 3 rcvd = 2 | src_port=0 dst_port=2 | " +
				"src_mac=8c:01:02:03:04:05 dst_mac=00:aa:bb:cc:dd:01 " +
				"src_ip=8.8.8.8 dst_ip=192.168.0.2 | net_port_rel=0 acc_port_rel=0",
		},
		"VLAN to DUT": {
			Kind:   scenario.RegularVLANtoDUT,
			Probes: 4,
		},
		"VLAN to DUT active-active": {
			Kind:         scenario.RegularVLANtoDUT,
			ActiveActive: true,
			Probes:       4,
		},
		"VLAN to DUT egress lost": {
			Kind:   scenario.RegularVLANtoDUT,
			Setup:  func(s *fakeSwitch) { s.drop[1] = true },
			Probes: 3,
			Mismatch: "sent = 1 rcvd = 0 | src_port=2 dst_ports=[1] | " +
				"src_mac=02:00:00:00:00:02 dst_mac=00:aa:bb:cc:dd:02 " +
				"src_ip=192.168.0.2 dst_ip=10.0.0.59 | intf_info_rel=1 acc_port_rel=0",
		},
		"VLAN to DUT active-active standby lost": {
			Kind:         scenario.RegularVLANtoDUT,
			ActiveActive: true,
			Setup:        func(s *fakeSwitch) { s.drop[standbyPort] = true },
			Probes:       1,
			Mismatch: "sent = 1 rcvd = 0 | src_port=2 dst_ports=[0, 4, 1] | " +
				"src_mac=02:00:00:00:00:02 dst_mac=00:aa:bb:cc:dd:02 " +
				"src_ip=192.168.0.2 dst_ip=10.0.0.57 | intf_info_rel=0 acc_port_rel=0",
		},
		"Vxlan": {
			Kind:   scenario.Vxlan,
			Probes: 8,
		},
		"Vxlan active-active skips access ingress": {
			Kind:         scenario.Vxlan,
			ActiveActive: true,
			Probes:       4,
		},
		"Vxlan disabled": {
			Kind:   scenario.Vxlan,
			Setup:  func(s *fakeSwitch) { s.vxlan = false },
			Probes: 1,
			Mismatch: "sent = 1 rcvd = 0 | src_port=2 dst_port=2 | " +
				"src_mac=8c:01:02:03:04:05 dst_mac=00:aa:bb:cc:dd:02 " +
				"src_ip=8.8.8.8 dst_ip=10.1.0.32 | Inner: src_mac=00:aa:bb:cc:dd:01 " +
				"dst_mac=02:00:00:00:00:02 src_ip=192.168.0.1 dst_ip=192.168.0.2 vni=1336" +
				" | net_port_rel(acc)=0 acc_port_rel=0",
		},
		"Vxlan network ingress lost": {
			Kind:         scenario.Vxlan,
			ActiveActive: true,
			Setup:        func(s *fakeSwitch) { s.drop[3] = true },
			Probes:       2,
			Mismatch: "sent = 1 rcvd = 0 | src_port=0 dst_port=3 | " +
				"src_mac=8c:01:02:03:04:05 dst_mac=00:aa:bb:cc:dd:01 " +
				"src_ip=8.8.8.8 dst_ip=10.1.0.32 | Inner: src_mac=00:aa:bb:cc:dd:01 " +
				"dst_mac=02:00:00:00:00:03 src_ip=192.168.0.1 dst_ip=192.168.0.3 vni=1336" +
				" | net_port_rel=0 acc_port_rel=1",
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			e, sw := newExecutor(t, tc.ActiveActive, tc.Count)
			if tc.Setup != nil {
				sw.set(tc.Setup)
			}
			vlan := e.Context.Topology.Cases[0]
			res, err := e.Run(context.Background(), tc.Kind, vlan)
			require.NoError(t, err)
			assert.Equal(t, tc.Kind, res.Kind)
			assert.Equal(t, "Vlan1000", res.Case)
			assert.Equal(t, tc.Probes, res.Probes)
			assert.Equal(t, tc.Mismatch == "", res.Passed())
			assert.Equal(t, tc.Mismatch, res.Detail())
		})
	}
}

// Repeating a probe on a flushed dataplane yields the same outcome.
func TestRunIdempotent(t *testing.T) {
	e, _ := newExecutor(t, false, 2)
	vlan := e.Context.Topology.Cases[0]
	for i := 0; i < 3; i++ {
		res, err := e.Run(context.Background(), scenario.RegularDUTtoVLAN, vlan)
		require.NoError(t, err)
		assert.True(t, res.Passed(), res.Detail())
	}
}

func TestRunNearest(t *testing.T) {
	e, sw := newExecutor(t, false, 1)
	sw.set(func(s *fakeSwitch) { s.noTTL = true })
	packet.ColorTerm = false

	res, err := e.Run(context.Background(), scenario.RegularDUTtoVLAN,
		e.Context.Topology.Cases[0])
	require.NoError(t, err)
	require.False(t, res.Passed())
	assert.Equal(t, 0, res.Mismatch.Received)
	assert.Contains(t, res.Mismatch.Nearest, "Expected:")
	assert.Contains(t, res.Mismatch.Nearest, "TTL=63")
	assert.Contains(t, res.Mismatch.Nearest, "TTL=64")
}

func TestLearn(t *testing.T) {
	e, sw := newExecutor(t, false, 2)
	sw.set(func(s *fakeSwitch) { s.drop[2], s.drop[3] = true, true })

	require.NoError(t, e.Learn(context.Background(), e.Context.Topology.Cases[0]))
	assert.Len(t, sw.ports[0].Sent(), 4, "count frames for each of the two access ports")
	assert.Empty(t, sw.ports[1].Sent(), "only the first network port sends")
}

func TestRunErrors(t *testing.T) {
	t.Run("send failure", func(t *testing.T) {
		e, sw := newExecutor(t, false, 1)
		errLink := errors.New("link down")
		sw.ports[0].SetWriteError(func([]byte) error { return errLink })
		_, err := e.Run(context.Background(), scenario.RegularDUTtoVLAN,
			e.Context.Topology.Cases[0])
		assert.ErrorIs(t, err, errLink)
	})
	t.Run("canceled", func(t *testing.T) {
		e, _ := newExecutor(t, false, 1)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := e.Run(ctx, scenario.Vxlan, e.Context.Topology.Cases[0])
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, e.Learn(ctx, e.Context.Topology.Cases[0]), context.Canceled)
	})
	t.Run("invalid timeout", func(t *testing.T) {
		e, _ := newExecutor(t, false, 1)
		e.Context.PollTimeout = -time.Second
		_, err := e.Run(context.Background(), scenario.RegularVLANtoDUT,
			e.Context.Topology.Cases[0])
		assert.Error(t, err)
	})
	t.Run("unknown MAC", func(t *testing.T) {
		e, _ := newExecutor(t, false, 1)
		delete(e.Context.PortMACs, 3)
		_, err := e.Run(context.Background(), scenario.RegularDUTtoVLAN,
			e.Context.Topology.Cases[0])
		assert.Error(t, err)
	})
	t.Run("unknown kind", func(t *testing.T) {
		e, _ := newExecutor(t, false, 1)
		_, err := e.Run(context.Background(), scenario.Kind(7), topology.TestCase{})
		assert.Error(t, err)
	})
}

func TestMetrics(t *testing.T) {
	e, sw := newExecutor(t, false, 1)
	probes := metrics.NewTestCounter()
	sent := metrics.NewTestCounter()
	received := metrics.NewTestCounter()
	e.Metrics = scenario.Metrics{Probes: probes, FramesSent: sent, FramesReceived: received}
	sw.set(func(s *fakeSwitch) { s.drop[3] = true })

	vlan := e.Context.Topology.Cases[0]
	_, err := e.Run(context.Background(), scenario.RegularDUTtoVLAN, vlan)
	require.NoError(t, err)

	labels := []string{prom.LabelScenario, "RegularDUTtoVLAN", prom.LabelCase, "Vlan1000"}
	assert.Equal(t, 1.0, metrics.CounterValue(
		probes.With(append(labels, prom.LabelResult, prom.Success)...)))
	assert.Equal(t, 1.0, metrics.CounterValue(
		probes.With(append(labels, prom.LabelResult, prom.ErrMismatch)...)))
	assert.Equal(t, 2.0, metrics.CounterValue(sent.With(labels...)))
	assert.Equal(t, 1.0, metrics.CounterValue(received.With(labels...)))
}

// The dataplane implements the scenario view of it.
var _ scenario.Dataplane = (*dataplane.Dataplane)(nil)
