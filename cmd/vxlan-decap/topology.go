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

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/scionproto/vxlan-decap/pkg/log"
	"github.com/scionproto/vxlan-decap/pkg/private/serrors"
	"github.com/scionproto/vxlan-decap/private/app"
	"github.com/scionproto/vxlan-decap/private/app/command"
	"github.com/scionproto/vxlan-decap/topology"
)

func newTopology(pather command.Pather) *cobra.Command {
	var flags struct {
		activeActive bool
		format       string
		logLevel     string
	}

	var cmd = &cobra.Command{
		Use:   "topology <file>",
		Short: "Display the test cases derived from a topology file",
		Example: fmt.Sprintf(`  %[1]s /tmp/vxlan_decap.json
  %[1]s /tmp/vxlan_decap.json --active-active --format yaml`,
			command.Path(pather, "topology")),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.SetupLog(flags.logLevel, "human"); err != nil {
				return serrors.Wrap("setting up logging", err)
			}
			topo, err := topology.Load(args[0], flags.activeActive)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			log.Debug("Loaded topology", "file", args[0], "ports", topo.Ports())
			return writeTopology(cmd.OutOrStdout(), topo.View(), flags.format)
		},
	}
	cmd.Flags().BoolVar(&flags.activeActive, "active-active", false,
		"Treat the device as a dual ToR in active-active mode")
	cmd.Flags().StringVar(&flags.format, "format", "human",
		"Specify the output format (human|json|yaml)")
	cmd.Flags().StringVar(&flags.logLevel, "log.level", "", app.LogLevelUsage)
	return cmd
}

func writeTopology(w io.Writer, v topology.View, format string) error {
	switch format {
	case "human":
		humanTopology(w, v)
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return serrors.New("output format not supported", "format", format)
	}
}

func humanTopology(w io.Writer, v topology.View) {
	fmt.Fprintf(w, "DUT MAC:   %s\n", v.DUTMAC)
	fmt.Fprintf(w, "VLAN MAC:  %s\n", v.VLANMAC)
	fmt.Fprintf(w, "Loopback:  %s\n", v.Loopback)
	fmt.Fprintf(w, "Net ports: %s\n", joinInts(v.NetPorts))
	if v.ActiveActive {
		fmt.Fprintf(w, "Active net ports: %s\n", joinInts(v.ActiveNetPorts))
	}

	fmt.Fprintln(w, "\nUplinks:")
	uplinks := newTable(w, "NAME", "PEER", "PORTS")
	for _, u := range v.Uplinks {
		uplinks.Append([]string{u.Name, u.Peer, joinInts(u.Ports)})
	}
	uplinks.Render()

	fmt.Fprintln(w, "\nTest cases:")
	cases := newTable(w, "CASE", "VNI", "GATEWAY", "PREFIX", "PORT", "ALIAS", "HOST")
	for _, c := range v.Cases {
		for i, p := range c.AccessPorts {
			row := []string{"", "", "", ""}
			if i == 0 {
				row = []string{c.Name, fmt.Sprint(c.VNI), c.Gateway, c.Prefix}
			}
			cases.Append(append(row, fmt.Sprint(p.Index), p.Alias, p.Host))
		}
	}
	cases.Render()
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader(header)
	return table
}

func joinInts(v []int) string {
	s := make([]string, 0, len(v))
	for _, i := range v {
		s = append(s, fmt.Sprint(i))
	}
	return strings.Join(s, ",")
}
