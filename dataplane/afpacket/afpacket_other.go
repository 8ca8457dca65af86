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

//go:build !linux

package afpacket

import (
	"errors"

	"github.com/gopacket/gopacket"
)

// ErrUnsupported is returned on platforms without AF_PACKET sockets.
var ErrUnsupported = errors.New("AF_PACKET sockets are only supported on linux")

// Port is not available on this platform.
type Port struct{}

// Open always fails with ErrUnsupported.
func Open(ifname string) (*Port, error) {
	return nil, ErrUnsupported
}

func (p *Port) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	return nil, gopacket.CaptureInfo{}, ErrUnsupported
}

func (p *Port) WritePacketData(data []byte) error {
	return ErrUnsupported
}

func (p *Port) Close() {}

func (p *Port) Name() string {
	return ""
}
