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
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"
)

// Result is the outcome of one scenario for one test case. The scenario
// passed if Mismatch is nil.
type Result struct {
	Kind Kind
	Case string
	// Probes is the number of ingress/egress pairs that were checked.
	Probes   int
	Duration time.Duration
	Mismatch *Mismatch
}

// Passed reports whether all probes received every frame.
func (r Result) Passed() bool {
	return r.Mismatch == nil
}

// Detail describes the first failing probe. It is empty if the scenario
// passed.
func (r Result) Detail() string {
	if r.Mismatch == nil {
		return ""
	}
	return r.Mismatch.String()
}

// Mismatch describes the first probe that did not receive every sent frame.
type Mismatch struct {
	Sent     int
	Received int
	Probe    Probe
	// Location is the position of the probe in the scenario loops.
	Location string
	// Nearest is a diff between the expected frame and the closest frame
	// that arrived on an expected port instead. It is empty if no frame
	// arrived there.
	Nearest string
}

func (m *Mismatch) String() string {
	return fmt.Sprintf("sent = %d rcvd = %d | %s%s", m.Sent, m.Received, m.Probe, m.Location)
}

// Probe is the addressing of an ingress/egress pair.
type Probe struct {
	SrcPort int
	DstPort int
	// DstPorts is set instead of DstPort if the frame may leave on any of
	// several ports.
	DstPorts []int
	SrcMAC   net.HardwareAddr
	DstMAC   net.HardwareAddr
	SrcIP    netip.Addr
	DstIP    netip.Addr
	// Inner is set for encapsulated probes.
	Inner *InnerProbe
}

// InnerProbe is the addressing of an encapsulated frame.
type InnerProbe struct {
	SrcMAC net.HardwareAddr
	DstMAC net.HardwareAddr
	SrcIP  netip.Addr
	DstIP  netip.Addr
	VNI    uint32
}

func (p Probe) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "src_port=%d ", p.SrcPort)
	if p.DstPorts != nil {
		fmt.Fprintf(&b, "dst_ports=%s", formatPorts(p.DstPorts))
	} else {
		fmt.Fprintf(&b, "dst_port=%d", p.DstPort)
	}
	fmt.Fprintf(&b, " | src_mac=%s dst_mac=%s src_ip=%s dst_ip=%s",
		p.SrcMAC, p.DstMAC, p.SrcIP, p.DstIP)
	if in := p.Inner; in != nil {
		fmt.Fprintf(&b, " | Inner: src_mac=%s dst_mac=%s src_ip=%s dst_ip=%s vni=%d",
			in.SrcMAC, in.DstMAC, in.SrcIP, in.DstIP, in.VNI)
	}
	return b.String()
}

func formatPorts(ports []int) string {
	s := make([]string, 0, len(ports))
	for _, p := range ports {
		s = append(s, strconv.Itoa(p))
	}
	return "[" + strings.Join(s, ", ") + "]"
}
