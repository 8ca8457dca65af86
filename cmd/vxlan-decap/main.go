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

// vxlan-decap checks that a switch forwards plain traffic between its routed
// uplinks and its VLANs, and that it decapsulates VXLAN traffic only when
// decapsulation is enabled.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/scionproto/vxlan-decap/private/app"
	"github.com/scionproto/vxlan-decap/private/app/command"
)

func main() {
	cmd := newRoot(filepath.Base(os.Args[0]))
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		if code := app.ExitCode(err); code != -1 {
			os.Exit(code)
		}
		os.Exit(exitSetup)
	}
}

func newRoot(executable string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   executable,
		Short: "VXLAN decapsulation dataplane test",
		Long: `vxlan-decap sends frames through a switch and checks where they come out.

For every VLAN of the switch, it checks that:

  - traffic from the uplinks to the VLAN hosts is forwarded,
  - traffic from the VLAN hosts to the uplinks is forwarded,
  - VXLAN encapsulated traffic sent to the loopback address is decapsulated
    and forwarded to the VLAN hosts, or dropped if decapsulation is disabled.

The device under test is inspected over SSH.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.AddCommand(
		newRun(cmd),
		newTopology(cmd),
		newSample(cmd),
		command.NewCompletion(cmd),
		command.NewGendocs(cmd),
	)
	return cmd
}
