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

package topology

// View is the printable form of a topology.
type View struct {
	DUTMAC         string       `json:"dut_mac" yaml:"dut_mac"`
	VLANMAC        string       `json:"vlan_mac" yaml:"vlan_mac"`
	Loopback       string       `json:"loopback" yaml:"loopback"`
	ActiveActive   bool         `json:"active_active" yaml:"active_active"`
	NetPorts       []int        `json:"net_ports" yaml:"net_ports"`
	ActiveNetPorts []int        `json:"active_net_ports,omitempty" yaml:"active_net_ports,omitempty"`
	Uplinks        []UplinkView `json:"uplinks" yaml:"uplinks"`
	Cases          []CaseView   `json:"test_cases" yaml:"test_cases"`
}

// UplinkView is the printable form of an uplink.
type UplinkView struct {
	Name  string `json:"name" yaml:"name"`
	Peer  string `json:"peer" yaml:"peer"`
	Ports []int  `json:"ports" yaml:"ports"`
}

// CaseView is the printable form of a test case.
type CaseView struct {
	Name        string     `json:"name" yaml:"name"`
	VLAN        int        `json:"vlan" yaml:"vlan"`
	VNI         uint32     `json:"vni" yaml:"vni"`
	SrcIP       string     `json:"src_ip" yaml:"src_ip"`
	Gateway     string     `json:"gateway" yaml:"gateway"`
	Prefix      string     `json:"prefix" yaml:"prefix"`
	AccessPorts []PortView `json:"access_ports" yaml:"access_ports"`
}

// PortView is the printable form of an access port.
type PortView struct {
	Index int    `json:"index" yaml:"index"`
	Alias string `json:"alias" yaml:"alias"`
	Host  string `json:"host" yaml:"host"`
}

// View returns the printable form of the topology.
func (t *Topology) View() View {
	v := View{
		DUTMAC:         t.DUTMAC.String(),
		VLANMAC:        t.VLANMAC.String(),
		Loopback:       t.Loopback.String(),
		ActiveActive:   t.ActiveActive,
		NetPorts:       t.NetPorts,
		ActiveNetPorts: t.ActiveNetPorts,
	}
	for _, u := range t.Uplinks {
		v.Uplinks = append(v.Uplinks,
			UplinkView{Name: u.Name, Peer: u.Peer.String(), Ports: u.Ports})
	}
	for _, c := range t.Cases {
		cv := CaseView{
			Name:    c.Name,
			VLAN:    c.VLAN,
			VNI:     c.VNI,
			SrcIP:   c.SrcIP.String(),
			Gateway: c.Gateway.String(),
			Prefix:  c.Prefix.String(),
		}
		for _, p := range c.AccessPorts {
			cv.AccessPorts = append(cv.AccessPorts,
				PortView{Index: p.Index, Alias: p.Alias, Host: p.Host.String()})
		}
		v.Cases = append(v.Cases, cv)
	}
	return v
}
