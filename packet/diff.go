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

package packet

import (
	"fmt"
	"os"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/mattn/go-isatty"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// ColorTerm controls whether Diff highlights the differences with ANSI colors.
var ColorTerm = isatty.IsTerminal(os.Stdout.Fd())

// Diff renders the decoded expected frame and the decoded actual frame one
// after the other. Bytes the pattern ignores are taken from the template, so
// only relevant differences show up.
func Diff(exp Pattern, actual []byte) string {
	return stringDiffPrettyPrint(Dump(exp.Masked(actual)), Dump(exp.template))
}

// Dump decodes frame and returns the layer by layer description.
func Dump(frame []byte) string {
	return gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default).String()
}

func stringDiffPrettyPrint(actStr, expStr string) string {
	if ColorTerm {
		dmp := diffmatchpatch.New()
		diffs := dmp.DiffMain(actStr, expStr, false)
		var actDiff []diffmatchpatch.Diff
		for i := range diffs {
			// Drop insertions, so that only the deletions show.
			if diffs[i].Type != diffmatchpatch.DiffInsert {
				actDiff = append(actDiff, diffs[i])
			}
		}
		actStr = dmp.DiffPrettyText(actDiff)
		var expDiff []diffmatchpatch.Diff
		for i := range diffs {
			if diffs[i].Type != diffmatchpatch.DiffDelete {
				expDiff = append(expDiff, diffs[i])
			}
		}
		expStr = dmp.DiffPrettyText(expDiff)
	}
	return fmt.Sprintf("Expected: %s\nActual:   %s\n", expStr, actStr)
}
