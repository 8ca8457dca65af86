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

// Package topology derives the test matrix from the topology description of
// the switch under test.
//
// The description is the JSON document produced by the minigraph facts of the
// test bed. Every VLAN becomes one test case. Portchannels and routed
// interfaces become uplinks; their member ports are the network ports.
package topology

import (
	"net"
	"net/netip"
	"os"
	"slices"

	"github.com/scionproto/vxlan-decap/pkg/private/serrors"
)

const (
	// VNIBase is added to the VLAN id to obtain the VNI of a test case.
	VNIBase = 336
)

// SourceIP is the source address of the frames injected on network ports.
var SourceIP = netip.AddrFrom4([4]byte{8, 8, 8, 8})

// AccessPort is a VLAN member port.
type AccessPort struct {
	// Index is the dataplane port number.
	Index int
	// Alias is the interface name on the switch, e.g. Ethernet4.
	Alias string
	// Host is the address of the emulated host behind the port.
	Host netip.Addr
}

// Uplink is a layer 3 interface towards the network.
type Uplink struct {
	// Name is the portchannel or interface name.
	Name string
	// Peer is the address of the neighbor.
	Peer netip.Addr
	// Ports are the dataplane ports of the members.
	Ports []int
}

// TestCase is the test of one VLAN.
type TestCase struct {
	Name    string
	VLAN    int
	VNI     uint32
	SrcIP   netip.Addr
	Gateway netip.Addr
	Prefix  netip.Prefix
	// AccessPorts are in the order of the VLAN members.
	AccessPorts []AccessPort
}

// Topology is the parsed topology of the switch under test.
type Topology struct {
	// NetPorts are the portchannel members followed by the routed ports.
	NetPorts []int
	// ActiveNetPorts are the ports that may forward traffic towards the
	// network in an active-active setup: the portchannel members and their
	// standby twins. It is empty otherwise.
	ActiveNetPorts []int
	Uplinks        []Uplink
	Cases          []TestCase
	DUTMAC         net.HardwareAddr
	VLANMAC        net.HardwareAddr
	Loopback       netip.Addr
	// PortIndices maps the interface alias to the dataplane port.
	PortIndices map[string]int
	// ActiveActive indicates an active-active dual ToR setup.
	ActiveActive bool
}

// Load reads and parses the topology file.
func Load(path string, activeActive bool) (*Topology, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, serrors.Wrap("reading topology file", err, "path", path)
	}
	t, err := Parse(raw, activeActive)
	if err != nil {
		return nil, serrors.Wrap("parsing topology file", err, "path", path)
	}
	return t, nil
}

// Parse parses a topology description.
func Parse(raw []byte, activeActive bool) (*Topology, error) {
	g, err := decodeGraph(raw)
	if err != nil {
		return nil, err
	}
	t := &Topology{
		PortIndices:  g.PortIndices,
		ActiveActive: activeActive,
	}
	if err := t.addPortchannels(g); err != nil {
		return nil, err
	}
	t.addInterfaces(g)
	if err := t.addCases(g); err != nil {
		return nil, err
	}
	if len(t.NetPorts) == 0 {
		return nil, serrors.New("no network ports")
	}
	if len(t.Cases) == 0 {
		return nil, serrors.New("no test cases")
	}
	if t.DUTMAC, err = net.ParseMAC(g.DUTMAC); err != nil {
		return nil, serrors.Wrap("parsing dut_mac", err, "value", g.DUTMAC)
	}
	if t.VLANMAC, err = net.ParseMAC(g.VLANMAC); err != nil {
		return nil, serrors.Wrap("parsing vlan_mac", err, "value", g.VLANMAC)
	}
	if t.Loopback, err = g.loopback(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Topology) addPortchannels(g *graph) error {
	for _, name := range sortedKeys(g.Portchannels) {
		members, err := g.portIndices(g.Portchannels[name].Members)
		if err != nil {
			return serrors.Wrap("resolving portchannel members", err, "portchannel", name)
		}
		t.NetPorts = append(t.NetPorts, members...)
		if t.ActiveActive {
			t.ActiveNetPorts = append(t.ActiveNetPorts, members...)
			for _, m := range g.Portchannels[name].Members {
				idx, ok := g.UnselectedPortIdx[m]
				if !ok {
					return serrors.New("standby port index not found",
						"portchannel", name, "member", m)
				}
				t.ActiveNetPorts = append(t.ActiveNetPorts, idx)
			}
		}
		peer, ok := firstIPv4Peer(g.PortchannelInterfaces, name)
		if !ok {
			return serrors.New("portchannel IPv4 address not found", "portchannel", name)
		}
		t.Uplinks = append(t.Uplinks, Uplink{Name: name, Peer: peer, Ports: members})
	}
	return nil
}

func (t *Topology) addInterfaces(g *graph) {
	for _, intf := range g.Interfaces {
		if _, ok := g.Portchannels[intf.AttachTo]; ok {
			continue
		}
		idx, ok := g.PortIndices[intf.AttachTo]
		if !ok {
			continue
		}
		peer, err := netip.ParseAddr(intf.PeerAddr)
		if err != nil || !peer.Is4() {
			continue
		}
		t.Uplinks = append(t.Uplinks, Uplink{Name: intf.AttachTo, Peer: peer, Ports: []int{idx}})
		t.NetPorts = append(t.NetPorts, idx)
	}
}

func (t *Topology) addCases(g *graph) error {
	type vlan struct {
		name string
		id   int
	}
	var vlans []vlan
	for name := range g.VLANs {
		id, err := parseVLANID(name)
		if err != nil {
			return err
		}
		vlans = append(vlans, vlan{name: name, id: id})
	}
	slices.SortFunc(vlans, func(a, b vlan) int { return a.id - b.id })

	for _, v := range vlans {
		gw, prefix, err := g.vlanGateway(v.name)
		if err != nil {
			return err
		}
		var ports []AccessPort
		for _, member := range g.VLANs[v.name].Members {
			if idx, ok := g.PortIndices[member]; ok {
				ports = append(ports, AccessPort{Index: idx, Alias: member})
			}
		}
		hosts, err := HostAddrs(gw, prefix, len(ports), len(g.PortIndices), t.ActiveActive)
		if err != nil {
			return serrors.Wrap("generating host addresses", err, "vlan", v.name)
		}
		for i := range ports {
			ports[i].Host = hosts[i]
		}
		t.Cases = append(t.Cases, TestCase{
			Name:        v.name,
			VLAN:        v.id,
			VNI:         uint32(VNIBase + v.id),
			SrcIP:       SourceIP,
			Gateway:     gw,
			Prefix:      prefix,
			AccessPorts: ports,
		})
	}
	return nil
}

// AccessPortIndices returns the dataplane ports of the access ports.
func (c *TestCase) AccessPortIndices() []int {
	res := make([]int, 0, len(c.AccessPorts))
	for _, p := range c.AccessPorts {
		res = append(res, p.Index)
	}
	return res
}

// Ports returns the sorted dataplane ports the test sends or captures on.
func (t *Topology) Ports() []int {
	ports := slices.Concat(t.NetPorts, t.ActiveNetPorts)
	for _, c := range t.Cases {
		ports = append(ports, c.AccessPortIndices()...)
	}
	slices.Sort(ports)
	return slices.Compact(ports)
}
