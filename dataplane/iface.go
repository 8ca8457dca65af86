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

package dataplane

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"

	"github.com/scionproto/vxlan-decap/pkg/private/serrors"
)

// DefaultInterfaceFormat maps a port number to the name of the host interface.
const DefaultInterfaceFormat = "eth%d"

// InterfaceNames returns the interface name of every port.
func InterfaceNames(format string, ports []int) map[int]string {
	if format == "" {
		format = DefaultInterfaceFormat
	}
	names := make(map[int]string, len(ports))
	for _, p := range ports {
		names[p] = fmt.Sprintf(format, p)
	}
	return names
}

// LinkByNameFunc looks up a link by its name. netlink.LinkByName implements it.
type LinkByNameFunc func(name string) (netlink.Link, error)

// PortMACs returns the hardware address of every port's interface.
func PortMACs(names map[int]string) (map[int]net.HardwareAddr, error) {
	return portMACs(names, netlink.LinkByName)
}

func portMACs(names map[int]string, linkByName LinkByNameFunc) (map[int]net.HardwareAddr, error) {
	macs := make(map[int]net.HardwareAddr, len(names))
	for port, name := range names {
		link, err := linkByName(name)
		if err != nil {
			return nil, serrors.Wrap("looking up interface", err, "port", port, "interface", name)
		}
		mac := link.Attrs().HardwareAddr
		if len(mac) != 6 {
			return nil, serrors.New("interface has no Ethernet address",
				"port", port, "interface", name)
		}
		macs[port] = mac
	}
	return macs, nil
}
