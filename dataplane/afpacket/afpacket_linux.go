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

//go:build linux

package afpacket

import (
	"errors"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/afpacket"

	"github.com/scionproto/vxlan-decap/dataplane"
	"github.com/scionproto/vxlan-decap/pkg/private/serrors"
)

// Port is a dataplane.Port reading from and writing to an AF_PACKET socket
// bound to one interface.
type Port struct {
	name string
	tp   *afpacket.TPacket
}

// Open binds a new AF_PACKET socket to the interface.
func Open(ifname string) (*Port, error) {
	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(ifname),
		afpacket.OptFrameSize(FrameSize),
		afpacket.OptPollTimeout(PollTimeout),
	)
	if err != nil {
		return nil, serrors.Wrap("creating TPacket", err, "interface", ifname)
	}
	return &Port{name: ifname, tp: tp}, nil
}

// ReadPacketData returns the next frame. A poll timeout is reported as
// dataplane.ErrReadTimeout.
func (p *Port) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	data, ci, err := p.tp.ReadPacketData()
	if errors.Is(err, afpacket.ErrTimeout) || errors.Is(err, afpacket.ErrPoll) {
		return nil, ci, dataplane.ErrReadTimeout
	}
	return data, ci, err
}

// WritePacketData sends a frame.
func (p *Port) WritePacketData(data []byte) error {
	return p.tp.WritePacketData(data)
}

// Close closes the socket.
func (p *Port) Close() {
	p.tp.Close()
}

// Name returns the interface name.
func (p *Port) Name() string {
	return p.name
}
