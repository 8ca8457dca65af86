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

// Package afpacket implements dataplane ports on top of Linux AF_PACKET
// sockets.
package afpacket

import (
	"time"

	"github.com/scionproto/vxlan-decap/dataplane"
	"github.com/scionproto/vxlan-decap/pkg/private/serrors"
)

const (
	// FrameSize is the size of a ring buffer frame.
	FrameSize = 4096
	// PollTimeout bounds every read, so that capture goroutines notice when the
	// dataplane shuts down.
	PollTimeout = 100 * time.Millisecond
)

// OpenAll opens one port per interface. If any interface fails to open, the
// ports opened so far are closed again.
func OpenAll(names map[int]string) (map[int]dataplane.Port, error) {
	ports := make(map[int]dataplane.Port, len(names))
	for n, name := range names {
		p, err := Open(name)
		if err != nil {
			for _, opened := range ports {
				opened.Close()
			}
			return nil, serrors.Wrap("opening port", err, "port", n)
		}
		ports[n] = p
	}
	return ports, nil
}
