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

package device

import (
	"context"
	"net"
	"net/netip"
	"regexp"
	"strings"

	"github.com/scionproto/vxlan-decap/pkg/log"
	"github.com/scionproto/vxlan-decap/pkg/private/serrors"
)

// The inspection commands. All of them are read-only.
const (
	CmdARP   = "show arp"
	CmdFDB   = "fdbshow"
	CmdVXLAN = "show vxlan tunnel"
)

// ARPTable returns the output of CmdARP.
func ARPTable(ctx context.Context, c Commander) ([]string, error) {
	return c.Exec(ctx, CmdARP)
}

// FDB returns the output of CmdFDB.
func FDB(ctx context.Context, c Commander) ([]string, error) {
	return c.Exec(ctx, CmdFDB)
}

// VXLANTunnels returns the output of CmdVXLAN.
func VXLANTunnels(ctx context.Context, c Commander) ([]string, error) {
	return c.Exec(ctx, CmdVXLAN)
}

// Snapshot is the state of the device tables.
type Snapshot struct {
	ARP   []string
	FDB   []string
	VXLAN []string
}

// Status runs all inspection commands. A failing command does not prevent the
// others from running; the output collected so far is returned together with
// the combined errors.
func Status(ctx context.Context, c Commander) (Snapshot, error) {
	var s Snapshot
	var errs serrors.List
	var err error
	if s.ARP, err = ARPTable(ctx, c); err != nil {
		errs = append(errs, err)
	}
	if s.FDB, err = FDB(ctx, c); err != nil {
		errs = append(errs, err)
	}
	if s.VXLAN, err = VXLANTunnels(ctx, c); err != nil {
		errs = append(errs, err)
	}
	return s, errs.ToError()
}

// DumpStatus logs the device tables to logger. Failing commands are logged
// too, the output of the others is still written.
func DumpStatus(ctx context.Context, c Commander, logger log.Logger) {
	s, err := Status(ctx, c)
	logger.Info("ARP table on DUT \n" + strings.Join(s.ARP, "\n"))
	logger.Info("MAC table on DUT \n" + strings.Join(s.FDB, "\n"))
	logger.Info("vxlan config on DUT \n" + strings.Join(s.VXLAN, "\n"))
	if err != nil {
		logger.Error("Collecting DUT status failed", "err", err)
	}
}

// Neighbor is a host the device is expected to have learned.
type Neighbor struct {
	IP    netip.Addr
	MAC   net.HardwareAddr
	Alias string
}

// HasARPEntries reports whether every neighbor has a line in the ARP table
// that starts with its address and names its interface.
func HasARPEntries(table []string, neighbors []Neighbor) bool {
	for _, n := range neighbors {
		re := regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(n.IP.String()) + `\s.*` +
			regexp.QuoteMeta(n.Alias) + `\b`)
		if !anyMatch(re, table) {
			return false
		}
	}
	return true
}

// HasFDBEntries reports whether every neighbor has a line in the MAC table
// with its MAC address and interface.
func HasFDBEntries(table []string, neighbors []Neighbor) bool {
	for _, n := range neighbors {
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(n.MAC.String()) + `.*` +
			regexp.QuoteMeta(n.Alias) + `\b`)
		if !anyMatch(re, table) {
			return false
		}
	}
	return true
}

func anyMatch(re *regexp.Regexp, lines []string) bool {
	for _, l := range lines {
		if re.MatchString(strings.TrimSpace(l)) {
			return true
		}
	}
	return false
}
