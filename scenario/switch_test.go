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
	"bytes"
	"net"
	"net/netip"
	"sync"
	"testing"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	"github.com/scionproto/vxlan-decap/dataplane"
	"github.com/scionproto/vxlan-decap/dataplane/memport"
	"github.com/scionproto/vxlan-decap/pkg/private/xtest"
	"github.com/scionproto/vxlan-decap/topology"
)

var (
	dutMAC      = xtest.MustParseMAC("00:aa:bb:cc:dd:01")
	vlanMAC     = xtest.MustParseMAC("00:aa:bb:cc:dd:02")
	neighborMAC = xtest.MustParseMAC("00:11:22:33:44:55")
	loopback    = netip.MustParseAddr("10.1.0.32")
)

const standbyPort = 4

// testTopology has two network ports, each an uplink, and one VLAN with the
// access ports 2 and 3. Port 4 is the standby twin of port 0.
func testTopology(activeActive bool) *topology.Topology {
	t := &topology.Topology{
		NetPorts: []int{0, 1},
		Uplinks: []topology.Uplink{
			{Name: "PortChannel0001", Peer: netip.MustParseAddr("10.0.0.57"), Ports: []int{0}},
			{Name: "Ethernet4", Peer: netip.MustParseAddr("10.0.0.59"), Ports: []int{1}},
		},
		Cases: []topology.TestCase{{
			Name:    "Vlan1000",
			VLAN:    1000,
			VNI:     1336,
			SrcIP:   topology.SourceIP,
			Gateway: netip.MustParseAddr("192.168.0.1"),
			Prefix:  netip.MustParsePrefix("192.168.0.0/24"),
			AccessPorts: []topology.AccessPort{
				{Index: 2, Alias: "Ethernet8", Host: netip.MustParseAddr("192.168.0.2")},
				{Index: 3, Alias: "Ethernet12", Host: netip.MustParseAddr("192.168.0.3")},
			},
		}},
		DUTMAC:       dutMAC,
		VLANMAC:      vlanMAC,
		Loopback:     loopback,
		ActiveActive: activeActive,
	}
	if activeActive {
		t.ActiveNetPorts = []int{0, standbyPort, 1}
	}
	return t
}

func portMACs() map[int]net.HardwareAddr {
	macs := make(map[int]net.HardwareAddr)
	for i := 0; i <= standbyPort; i++ {
		macs[i] = net.HardwareAddr{0x02, 0, 0, 0, 0, byte(i)}
	}
	return macs
}

// fakeSwitch routes frames written to the memory ports the way the switch
// under test does, and injects the results into the egress ports.
type fakeSwitch struct {
	topo  *topology.Topology
	macs  map[int]net.HardwareAddr
	ports map[int]*memport.Port

	mtx sync.Mutex
	// vxlan enables decapsulation.
	vxlan bool
	// budget limits the number of forwarded frames if non-negative.
	budget int
	// drop lists egress ports whose frames are lost.
	drop map[int]bool
	// noTTL disables the TTL decrement.
	noTTL bool
}

func newSwitch(t *testing.T, topo *topology.Topology) (*fakeSwitch, *dataplane.Dataplane) {
	t.Helper()
	dpPorts, mem := memport.NewSet(0, 1, 2, 3, standbyPort)
	s := &fakeSwitch{
		topo:   topo,
		macs:   portMACs(),
		ports:  mem,
		vxlan:  true,
		budget: -1,
		drop:   map[int]bool{},
	}
	for _, p := range mem {
		p.SetWriteHook(s.forward)
	}
	d := dataplane.New(dpPorts)
	t.Cleanup(func() { d.Close() })
	return s, d
}

func (s *fakeSwitch) set(fn func(s *fakeSwitch)) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	fn(s)
}

func (s *fakeSwitch) emit(port int, frame []byte) {
	s.mtx.Lock()
	if s.drop[port] || s.budget == 0 {
		s.mtx.Unlock()
		return
	}
	if s.budget > 0 {
		s.budget--
	}
	s.mtx.Unlock()
	s.ports[port].Inject(frame)
}

func (s *fakeSwitch) forward(_ int, frame []byte) {
	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default)
	eth, ok := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	if !ok {
		return
	}
	ip, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	if !ok {
		return
	}
	if vx, ok := pkt.Layer(layers.LayerTypeVXLAN).(*layers.VXLAN); ok {
		s.decap(eth, ip, vx)
		return
	}
	tcp, ok := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP)
	if !ok {
		return
	}
	dst, _ := netip.AddrFromSlice(ip.DstIP.To4())
	s.mtx.Lock()
	noTTL := s.noTTL
	s.mtx.Unlock()
	if !noTTL {
		ip.TTL--
	}
	if port, ok := s.hostPort(dst); ok && bytes.Equal(eth.DstMAC, s.topo.DUTMAC) {
		eth.SrcMAC, eth.DstMAC = s.topo.VLANMAC, s.macs[port]
		s.emit(port, serialize(eth, ip, tcp))
		return
	}
	for _, up := range s.topo.Uplinks {
		if up.Peer != dst || !bytes.Equal(eth.DstMAC, s.topo.VLANMAC) {
			continue
		}
		eth.SrcMAC, eth.DstMAC = s.topo.DUTMAC, neighborMAC
		port := up.Ports[0]
		if s.topo.ActiveActive {
			// The peer ToR forwards with its own MAC on the standby link.
			eth.SrcMAC = xtest.MustParseMAC("00:aa:bb:cc:dd:99")
			port = standbyPort
		}
		s.emit(port, serialize(eth, ip, tcp))
	}
}

func (s *fakeSwitch) decap(eth *layers.Ethernet, ip *layers.IPv4, vx *layers.VXLAN) {
	s.mtx.Lock()
	enabled := s.vxlan
	s.mtx.Unlock()
	dst, _ := netip.AddrFromSlice(ip.DstIP.To4())
	tc := s.topo.Cases[0]
	if !enabled || dst != s.topo.Loopback || vx.VNI != tc.VNI {
		return
	}
	if !bytes.Equal(eth.DstMAC, s.topo.DUTMAC) && !bytes.Equal(eth.DstMAC, s.topo.VLANMAC) {
		return
	}
	inner := vx.Payload
	for port, mac := range s.macs {
		if len(inner) >= 6 && bytes.Equal(inner[:6], mac) {
			s.emit(port, bytes.Clone(inner))
		}
	}
}

func (s *fakeSwitch) hostPort(addr netip.Addr) (int, bool) {
	for _, a := range s.topo.Cases[0].AccessPorts {
		if a.Host == addr {
			return a.Index, true
		}
	}
	return 0, false
}

func serialize(eth *layers.Ethernet, ip *layers.IPv4, tcp *layers.TCP) []byte {
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		panic(err)
	}
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf,
		gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true},
		eth, ip, tcp, gopacket.Payload(tcp.Payload))
	if err != nil {
		panic(err)
	}
	return buf.Bytes()
}
