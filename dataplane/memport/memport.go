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

// Package memport implements in-memory dataplane ports.
//
// Frames written to a port are recorded and handed to an optional write hook.
// A test can use the hook to emulate the switch under test by injecting the
// resulting frames into other ports.
package memport

import (
	"io"
	"slices"
	"sync"
	"time"

	"github.com/gopacket/gopacket"

	"github.com/scionproto/vxlan-decap/dataplane"
)

// DefaultReadTimeout is the read timeout of a new port.
const DefaultReadTimeout = 10 * time.Millisecond

// WriteHook is called with a copy of every frame written to a port.
type WriteHook func(port int, frame []byte)

// Port is an in-memory dataplane.Port.
type Port struct {
	num         int
	readTimeout time.Duration
	in          chan []byte
	done        chan struct{}
	closeOnce   sync.Once

	mtx     sync.Mutex
	sent    [][]byte
	onWrite WriteHook
	writeFn func([]byte) error
}

// New returns a port with the given number.
func New(num int) *Port {
	return &Port{
		num:         num,
		readTimeout: DefaultReadTimeout,
		in:          make(chan []byte, 1024),
		done:        make(chan struct{}),
	}
}

// NewSet returns one port per number. The first map can be passed to
// dataplane.New.
func NewSet(nums ...int) (map[int]dataplane.Port, map[int]*Port) {
	ports := make(map[int]dataplane.Port, len(nums))
	mem := make(map[int]*Port, len(nums))
	for _, n := range nums {
		p := New(n)
		ports[n] = p
		mem[n] = p
	}
	return ports, mem
}

// SetWriteHook installs a hook that is called for every written frame.
func (p *Port) SetWriteHook(hook WriteHook) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.onWrite = hook
}

// SetWriteError makes WritePacketData fail with the error fn returns. A nil fn
// restores the default behavior.
func (p *Port) SetWriteError(fn func([]byte) error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.writeFn = fn
}

// Inject makes frame arrive at the port. It is dropped if the port is closed.
func (p *Port) Inject(frame []byte) {
	select {
	case p.in <- slices.Clone(frame):
	case <-p.done:
	}
}

// Sent returns the frames written to the port, oldest first.
func (p *Port) Sent() [][]byte {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return slices.Clone(p.sent)
}

// ReadPacketData returns the next injected frame. It returns
// dataplane.ErrReadTimeout if there is none within the read timeout and
// io.EOF once the port is closed.
func (p *Port) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	timer := time.NewTimer(p.readTimeout)
	defer timer.Stop()
	select {
	case frame := <-p.in:
		ci := gopacket.CaptureInfo{
			Timestamp:      time.Now(),
			CaptureLength:  len(frame),
			Length:         len(frame),
			InterfaceIndex: p.num,
		}
		return frame, ci, nil
	case <-timer.C:
		return nil, gopacket.CaptureInfo{}, dataplane.ErrReadTimeout
	case <-p.done:
		return nil, gopacket.CaptureInfo{}, io.EOF
	}
}

// WritePacketData records the frame and calls the write hook.
func (p *Port) WritePacketData(data []byte) error {
	select {
	case <-p.done:
		return io.ErrClosedPipe
	default:
	}
	frame := slices.Clone(data)
	p.mtx.Lock()
	if p.writeFn != nil {
		if err := p.writeFn(frame); err != nil {
			p.mtx.Unlock()
			return err
		}
	}
	p.sent = append(p.sent, frame)
	hook := p.onWrite
	p.mtx.Unlock()
	if hook != nil {
		hook(p.num, slices.Clone(frame))
	}
	return nil
}

// Close closes the port. Further reads return io.EOF.
func (p *Port) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}
