// Copyright 2021 Anapaya Systems
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

// Package command contains helpers for cobra commands shared by the
// applications.
package command

import (
	"github.com/spf13/cobra"

	"github.com/scionproto/vxlan-decap/pkg/private/serrors"
)

// Pather returns the command path of the parent command.
type Pather interface {
	CommandPath() string
}

// StringPather implements Pather for a static string.
type StringPather string

func (s StringPather) CommandPath() string {
	return string(s)
}

// Path returns the command path of a sub command with the given name.
func Path(pather Pather, name string) string {
	if pather == nil || pather.CommandPath() == "" {
		return name
	}
	return pather.CommandPath() + " " + name
}

// NewCompletion returns a command that generates shell completion scripts.
func NewCompletion(pather Pather) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "completion [bash|zsh|fish]",
		Short:     "Generate the autocompletion script for the specified shell",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish"},
		Example: "  " + Path(pather, "completion") + " bash > /etc/bash_completion.d/" +
			"vxlan-decap",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			}
			return serrors.New("unsupported shell", "shell", args[0])
		},
	}
	return cmd
}
