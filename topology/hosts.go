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
	"errors"
	"net/netip"

	"go4.org/netipx"

	"github.com/scionproto/vxlan-decap/pkg/private/serrors"
)

var (
	// ErrPrefixTooSmall indicates that the VLAN prefix cannot hold a host for
	// every dataplane port.
	ErrPrefixTooSmall = errors.New("the prefix len size is too small for the test")
	// ErrPrefixExhausted indicates that the host generation ran out of the
	// prefix.
	ErrPrefixExhausted = errors.New("host address leaves the prefix")
)

// HostAddrs returns n host addresses in the prefix of the gateway gw.
//
// Addresses are handed out from the first address after the network address
// on, skipping the gateway. In an active-active setup every other address is
// used; the addresses in between are taken by the cable SoCs. The prefix must be
// able to hold a host for each of the numPorts dataplane ports, besides the
// network, broadcast and gateway addresses.
func HostAddrs(gw netip.Addr, prefix netip.Prefix, n, numPorts int,
	activeActive bool) ([]netip.Addr, error) {

	if !gw.Is4() || !prefix.Addr().Is4() {
		return nil, serrors.New("IPv4 prefix required", "gateway", gw, "prefix", prefix)
	}
	prefix = prefix.Masked()
	hostBits := 32 - prefix.Bits()
	if hostBits < 2 || numPorts > (1<<hostBits)-3 {
		return nil, serrors.JoinNoStack(ErrPrefixTooSmall, nil,
			"prefix", prefix, "ports", numPorts)
	}
	step := 1
	if activeActive {
		step = 2
	}
	last := netipx.PrefixLastIP(prefix)
	res := make([]netip.Addr, 0, n)
	addr := prefix.Addr().Next()
	for len(res) < n {
		if addr == gw {
			addr = addr.Next()
		}
		if !prefix.Contains(addr) || addr == last {
			return nil, serrors.JoinNoStack(ErrPrefixExhausted, nil,
				"prefix", prefix, "hosts", len(res), "required", n)
		}
		res = append(res, addr)
		for i := 0; i < step; i++ {
			addr = addr.Next()
		}
	}
	return res, nil
}
