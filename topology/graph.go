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

import (
	"encoding/json"
	"net/netip"
	"slices"
	"strconv"
	"strings"

	"github.com/scionproto/vxlan-decap/pkg/private/serrors"
)

// graph is the raw topology description.
type graph struct {
	Portchannels          map[string]portchannel `json:"minigraph_portchannels"`
	PortchannelInterfaces []l3Interface          `json:"minigraph_portchannel_interfaces"`
	Interfaces            []l3Interface          `json:"minigraph_interfaces"`
	VLANs                 map[string]vlanEntry   `json:"minigraph_vlans"`
	VLANInterfaces        []l3Interface          `json:"minigraph_vlan_interfaces"`
	LoopbackInterfaces    []l3Interface          `json:"minigraph_lo_interfaces"`
	PortIndices           map[string]int         `json:"minigraph_port_indices"`
	UnselectedPortIdx     map[string]int         `json:"mg_unslctd_port_idx"`
	DUTMAC                string                 `json:"dut_mac"`
	VLANMAC               string                 `json:"vlan_mac"`
}

type portchannel struct {
	Members []string `json:"members"`
}

type vlanEntry struct {
	Members []string `json:"members"`
}

type l3Interface struct {
	AttachTo  string    `json:"attachto"`
	Addr      string    `json:"addr"`
	PrefixLen prefixLen `json:"prefixlen"`
	PeerAddr  string    `json:"peer_addr"`
}

// prefixLen accepts both a JSON number and a JSON string.
type prefixLen int

func (p *prefixLen) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	v, err := strconv.Atoi(s)
	if err != nil {
		return serrors.Wrap("parsing prefix length", err, "value", string(b))
	}
	*p = prefixLen(v)
	return nil
}

// requiredKeys lists the top-level keys every topology file must carry. An
// absent key would otherwise decode as empty and silently drop test cases.
var requiredKeys = []string{
	"minigraph_portchannels",
	"minigraph_portchannel_interfaces",
	"minigraph_interfaces",
	"minigraph_vlans",
	"minigraph_vlan_interfaces",
	"minigraph_lo_interfaces",
	"minigraph_port_indices",
	"dut_mac",
	"vlan_mac",
}

func decodeGraph(raw []byte) (*graph, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, serrors.Wrap("decoding JSON", err)
	}
	for _, k := range requiredKeys {
		if v, ok := keys[k]; !ok || string(v) == "null" {
			return nil, serrors.New("missing required key", "key", k)
		}
	}
	var g graph
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, serrors.Wrap("decoding JSON", err)
	}
	if len(g.PortIndices) == 0 {
		return nil, serrors.New("no port indices")
	}
	return &g, nil
}

func (g *graph) portIndices(aliases []string) ([]int, error) {
	res := make([]int, 0, len(aliases))
	for _, a := range aliases {
		idx, ok := g.PortIndices[a]
		if !ok {
			return nil, serrors.New("port index not found", "alias", a)
		}
		res = append(res, idx)
	}
	return res, nil
}

func (g *graph) vlanGateway(name string) (netip.Addr, netip.Prefix, error) {
	for _, intf := range g.VLANInterfaces {
		if intf.AttachTo != name {
			continue
		}
		gw, err := netip.ParseAddr(intf.Addr)
		if err != nil || !gw.Is4() {
			continue
		}
		prefix, err := gw.Prefix(int(intf.PrefixLen))
		if err != nil {
			return netip.Addr{}, netip.Prefix{}, serrors.Wrap("invalid VLAN prefix", err,
				"vlan", name, "prefixlen", int(intf.PrefixLen))
		}
		return gw, prefix, nil
	}
	return netip.Addr{}, netip.Prefix{}, serrors.New("VLAN IPv4 address not found",
		"vlan", name)
}

func (g *graph) loopback() (netip.Addr, error) {
	for _, intf := range g.LoopbackInterfaces {
		if intf.PrefixLen != 32 {
			continue
		}
		addr, err := netip.ParseAddr(intf.Addr)
		if err != nil || !addr.Is4() {
			continue
		}
		return addr, nil
	}
	return netip.Addr{}, serrors.New("IPv4 loopback with prefix length 32 not found")
}

func firstIPv4Peer(intfs []l3Interface, name string) (netip.Addr, bool) {
	for _, intf := range intfs {
		if intf.AttachTo != name {
			continue
		}
		peer, err := netip.ParseAddr(intf.PeerAddr)
		if err == nil && peer.Is4() {
			return peer, true
		}
	}
	return netip.Addr{}, false
}

func parseVLANID(name string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(name, "Vlan"))
	if err != nil || !strings.HasPrefix(name, "Vlan") || id < 1 || id > 4094 {
		return 0, serrors.New("invalid VLAN name", "vlan", name)
	}
	return id, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
