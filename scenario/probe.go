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

package scenario

import (
	"context"
	"fmt"
	"net"
	"slices"

	"github.com/scionproto/vxlan-decap/dataplane"
	"github.com/scionproto/vxlan-decap/match"
	"github.com/scionproto/vxlan-decap/packet"
	"github.com/scionproto/vxlan-decap/pkg/metrics"
	"github.com/scionproto/vxlan-decap/pkg/private/prom"
	"github.com/scionproto/vxlan-decap/pkg/private/serrors"
	"github.com/scionproto/vxlan-decap/topology"
)

// probe is one ingress/egress pair.
type probe struct {
	port    int
	frame   []byte
	expect  packet.Pattern
	counter match.Counter
	desc    Probe
}

// session tracks the probes of one scenario run.
type session struct {
	e        *Executor
	kind     Kind
	tc       topology.TestCase
	probes   int
	mismatch *Mismatch
}

func (e *Executor) newSession(kind Kind, tc topology.TestCase) *session {
	return &session{e: e, kind: kind, tc: tc}
}

func (s *session) labels() []string {
	return []string{prom.LabelScenario, s.kind.String(), prom.LabelCase, s.tc.Name}
}

// send flushes the dataplane and sends the probe frame Count times.
func (s *session) send(p probe) error {
	d := s.e.Dataplane
	d.Flush()
	for i := 0; i < s.e.Context.Count; i++ {
		if err := d.Send(p.port, p.frame); err != nil {
			return serrors.Wrap("sending frame", err, "port", p.port)
		}
	}
	metrics.CounterAdd(metrics.CounterWith(s.e.Metrics.FramesSent, s.labels()...),
		float64(s.e.Context.Count))
	return nil
}

// run sends the probe and counts the expected frames. It returns false and
// records the mismatch if fewer frames than sent arrived.
func (s *session) run(ctx context.Context, p probe, location string) (bool, error) {
	if err := s.send(p); err != nil {
		return false, err
	}
	sent := s.e.Context.Count
	n, err := p.counter.Count(ctx, p.expect, sent)
	if err != nil {
		return false, serrors.Wrap("counting frames", err, "location", location)
	}
	s.probes++
	m := s.e.Metrics
	metrics.CounterAdd(metrics.CounterWith(m.FramesReceived, s.labels()...), float64(n))
	result := prom.Success
	if n != sent {
		result = prom.ErrMismatch
	}
	metrics.CounterInc(metrics.CounterWith(m.Probes,
		append(s.labels(), prom.LabelResult, result)...))
	if n == sent {
		return true, nil
	}
	s.mismatch = &Mismatch{
		Sent:     sent,
		Received: n,
		Probe:    p.desc,
		Location: location,
		Nearest:  s.nearest(p),
	}
	return false, nil
}

// nearest returns a diff between the expected frame and the queued frame on
// an expected port that differs from it in the fewest bytes.
func (s *session) nearest(p probe) string {
	filter := dataplane.AnyPort(nil)
	if len(p.counter.Ports) > 0 {
		filter = dataplane.InPorts(nil, p.counter.Ports...)
	}
	var best []byte
	bestDist := -1
	for _, f := range s.e.Dataplane.Pending(filter) {
		if d := distance(p.expect, f.Data); bestDist < 0 || d < bestDist {
			best, bestDist = f.Data, d
		}
	}
	if best == nil {
		return ""
	}
	return packet.Diff(p.expect, best)
}

func distance(exp packet.Pattern, frame []byte) int {
	tmpl := exp.Template()
	masked := exp.Masked(frame)
	d := len(tmpl) - len(masked)
	for i := range masked {
		if masked[i] != tmpl[i] {
			d++
		}
	}
	return d
}

func (e *Executor) regularDUTtoVLAN(ctx context.Context, tc topology.TestCase,
	learn bool) (*session, error) {

	c, topo := &e.Context, e.Context.Topology
	s := e.newSession(RegularDUTtoVLAN, tc)
	for i, n := range topo.NetPorts {
		for j, a := range tc.AccessPorts {
			mac, err := c.portMAC(a.Index)
			if err != nil {
				return nil, err
			}
			frame, err := packet.TCP{
				EthSrc: c.RandomMAC,
				EthDst: topo.DUTMAC,
				IPSrc:  tc.SrcIP,
				IPDst:  a.Host,
			}.Serialize()
			if err != nil {
				return nil, err
			}
			if learn {
				if err := s.send(probe{port: n, frame: frame}); err != nil {
					return nil, err
				}
				if err := sleep(ctx, c.LearnDelay); err != nil {
					return nil, err
				}
				continue
			}
			exp, err := packet.TCP{
				EthSrc: topo.VLANMAC,
				EthDst: mac,
				IPSrc:  tc.SrcIP,
				IPDst:  a.Host,
				TTL:    packet.ForwardedTTL,
			}.Serialize()
			if err != nil {
				return nil, err
			}
			ok, err := s.run(ctx, probe{
				port:   n,
				frame:  frame,
				expect: packet.Exact(exp),
				counter: match.Counter{
					Poller:  e.Dataplane,
					Policy:  match.Deadline,
					Ports:   []int{a.Index},
					Timeout: c.PollTimeout,
				},
				desc: Probe{
					SrcPort: n,
					DstPort: a.Index,
					SrcMAC:  c.RandomMAC,
					DstMAC:  topo.DUTMAC,
					SrcIP:   tc.SrcIP,
					DstIP:   a.Host,
				},
			}, fmt.Sprintf(" | net_port_rel=%d acc_port_rel=%d", i, j))
			if err != nil || !ok {
				return s, err
			}
		}
		if learn {
			break
		}
	}
	return s, nil
}

func (e *Executor) regularVLANtoDUT(ctx context.Context,
	tc topology.TestCase) (*session, error) {

	c, topo := &e.Context, e.Context.Topology
	s := e.newSession(RegularVLANtoDUT, tc)
	for i, up := range topo.Uplinks {
		ports := up.Ports
		if topo.ActiveActive {
			ports = topo.ActiveNetPorts
		}
		if len(ports) == 0 {
			return nil, serrors.New("no egress ports", "uplink", up.Name)
		}
		for j, a := range tc.AccessPorts {
			mac, err := c.portMAC(a.Index)
			if err != nil {
				return nil, err
			}
			frame, err := packet.TCP{
				EthSrc: mac,
				EthDst: topo.VLANMAC,
				IPSrc:  a.Host,
				IPDst:  up.Peer,
			}.Serialize()
			if err != nil {
				return nil, err
			}
			exp, err := packet.TCP{
				EthSrc: topo.DUTMAC,
				EthDst: c.RandomMAC,
				IPSrc:  a.Host,
				IPDst:  up.Peer,
				TTL:    packet.ForwardedTTL,
			}.Serialize()
			if err != nil {
				return nil, err
			}
			pattern := packet.Exact(exp).IgnoreEthDst()
			if topo.ActiveActive {
				pattern = pattern.IgnoreEthSrc()
			}
			ok, err := s.run(ctx, probe{
				port:   a.Index,
				frame:  frame,
				expect: pattern,
				counter: match.Counter{
					Poller:  e.Dataplane,
					Policy:  match.Idle,
					Ports:   ports,
					Timeout: c.PollTimeout,
				},
				desc: Probe{
					SrcPort:  a.Index,
					DstPorts: slices.Clone(ports),
					SrcMAC:   mac,
					DstMAC:   topo.VLANMAC,
					SrcIP:    a.Host,
					DstIP:    up.Peer,
				},
			}, fmt.Sprintf(" | intf_info_rel=%d acc_port_rel=%d", i, j))
			if err != nil || !ok {
				return s, err
			}
		}
	}
	return s, nil
}

func (e *Executor) vxlan(ctx context.Context, tc topology.TestCase) (*session, error) {
	c, topo := &e.Context, e.Context.Topology
	s := e.newSession(Vxlan, tc)
	if !topo.ActiveActive {
		for i, n := range tc.AccessPorts {
			if err := sleep(ctx, c.VxlanDelay); err != nil {
				return nil, err
			}
			for j, a := range tc.AccessPorts {
				ok, err := e.vxlanProbe(ctx, s, n.Index, a, topo.VLANMAC,
					fmt.Sprintf(" | net_port_rel(acc)=%d acc_port_rel=%d", i, j))
				if err != nil || !ok {
					return s, err
				}
			}
		}
	}
	for i, n := range topo.NetPorts {
		if err := sleep(ctx, c.VxlanDelay); err != nil {
			return nil, err
		}
		for j, a := range tc.AccessPorts {
			ok, err := e.vxlanProbe(ctx, s, n, a, topo.DUTMAC,
				fmt.Sprintf(" | net_port_rel=%d acc_port_rel=%d", i, j))
			if err != nil || !ok {
				return s, err
			}
		}
	}
	return s, nil
}

// vxlanProbe sends an ARP reply for the access port host, encapsulated
// towards the loopback of the switch, on the ingress port.
func (e *Executor) vxlanProbe(ctx context.Context, s *session, ingress int,
	a topology.AccessPort, dstMAC net.HardwareAddr, location string) (bool, error) {

	c, topo, tc := &e.Context, e.Context.Topology, s.tc
	mac, err := c.portMAC(a.Index)
	if err != nil {
		return false, err
	}
	inner, err := packet.ARPReply{
		EthSrc:    topo.DUTMAC,
		EthDst:    mac,
		SenderMAC: topo.DUTMAC,
		SenderIP:  tc.Gateway,
		TargetMAC: mac,
		TargetIP:  a.Host,
	}.Serialize()
	if err != nil {
		return false, err
	}
	frame, err := packet.VXLAN{
		EthSrc: c.RandomMAC,
		EthDst: dstMAC,
		IPSrc:  tc.SrcIP,
		IPDst:  topo.Loopback,
		VNI:    tc.VNI,
		Inner:  inner,
	}.Serialize()
	if err != nil {
		return false, err
	}
	counter := match.Counter{
		Poller:  e.Dataplane,
		Policy:  match.Deadline,
		Timeout: c.PollTimeout,
	}
	if !topo.ActiveActive {
		counter.Ports = []int{a.Index}
	}
	return s.run(ctx, probe{
		port:    ingress,
		frame:   frame,
		expect:  packet.Exact(inner),
		counter: counter,
		desc: Probe{
			SrcPort: ingress,
			DstPort: a.Index,
			SrcMAC:  c.RandomMAC,
			DstMAC:  dstMAC,
			SrcIP:   tc.SrcIP,
			DstIP:   topo.Loopback,
			Inner: &InnerProbe{
				SrcMAC: topo.DUTMAC,
				DstMAC: mac,
				SrcIP:  tc.Gateway,
				DstIP:  a.Host,
				VNI:    tc.VNI,
			},
		},
	}, location)
}
