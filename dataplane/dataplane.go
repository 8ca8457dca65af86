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

// Package dataplane sends frames on, and captures frames from, the packet
// test ports wired to the switch under test.
//
// Every port is read by its own capture goroutine. Captured frames go into a
// single queue ordered by arrival, shared by all ports. Poll removes the
// oldest frame that satisfies a predicate and leaves all other frames queued,
// so frames of one probe never disturb the counting of another predicate.
package dataplane

import (
	"context"
	"errors"
	"io"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/gopacket/gopacket"
	"golang.org/x/sync/errgroup"

	"github.com/scionproto/vxlan-decap/pkg/log"
	"github.com/scionproto/vxlan-decap/pkg/metrics"
	"github.com/scionproto/vxlan-decap/pkg/private/prom"
	"github.com/scionproto/vxlan-decap/pkg/private/serrors"
)

const (
	// DefaultQueueLimit is the number of frames kept per port.
	DefaultQueueLimit = 100
)

var (
	// ErrNoFrame indicates that no matching frame arrived within the wait.
	ErrNoFrame = errors.New("no matching frame")
	// ErrReadTimeout is returned by Port.ReadPacketData if no frame arrived
	// within the port's read timeout.
	ErrReadTimeout = errors.New("read timeout")
	// ErrClosed indicates that the dataplane was closed.
	ErrClosed = errors.New("dataplane closed")
	// ErrUnknownPort indicates that a port number is not part of the dataplane.
	ErrUnknownPort = errors.New("unknown port")
)

// Port is a raw Ethernet port.
//
// ReadPacketData must return ErrReadTimeout periodically when there is no
// traffic, so that capture goroutines can observe shutdown. Close is only
// called once no goroutine reads from the port anymore.
type Port interface {
	gopacket.PacketDataSource
	WritePacketData(data []byte) error
	Close()
}

// Frame is a captured frame.
type Frame struct {
	Port      int
	Data      []byte
	Timestamp time.Time
}

// MatchFunc selects frames.
type MatchFunc func(Frame) bool

// Metrics are the metrics of the dataplane. Nil values are valid and ignored.
type Metrics struct {
	// Captured counts the captured frames, labeled with prom.LabelPort.
	Captured metrics.Counter
	// Dropped counts the frames dropped from a full queue, labeled with
	// prom.LabelPort.
	Dropped metrics.Counter
	// Sent counts the sent frames, labeled with prom.LabelPort.
	Sent metrics.Counter
}

// Option configures a Dataplane.
type Option func(*Dataplane)

// WithQueueLimit sets the number of frames kept per port.
func WithQueueLimit(n int) Option {
	return func(d *Dataplane) {
		if n > 0 {
			d.limit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(d *Dataplane) {
		d.logger = logger
	}
}

// WithMetrics sets the metrics.
func WithMetrics(m Metrics) Option {
	return func(d *Dataplane) {
		d.metrics = m
	}
}

// Dataplane multiplexes a set of ports.
type Dataplane struct {
	ports   map[int]Port
	limit   int
	logger  log.Logger
	metrics Metrics

	cancel context.CancelFunc
	group  *errgroup.Group

	mtx     sync.Mutex
	queue   []Frame
	queued  map[int]int
	arrived chan struct{}
	closed  bool
	// failed is the first capture error. Once set, Poll stops waiting.
	failed error

	closeOnce sync.Once
	closeErr  error
}

// New starts capturing on all ports. The dataplane owns the ports and closes
// them on Close.
func New(ports map[int]Port, opts ...Option) *Dataplane {
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	d := &Dataplane{
		ports:   ports,
		limit:   DefaultQueueLimit,
		logger:  log.Nop(),
		cancel:  cancel,
		group:   group,
		queued:  make(map[int]int, len(ports)),
		arrived: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	for n, p := range ports {
		group.Go(func() error {
			defer log.HandlePanic()
			return d.capture(ctx, n, p)
		})
	}
	return d
}

func (d *Dataplane) capture(ctx context.Context, n int, p Port) error {
	captured := metrics.CounterWith(d.metrics.Captured, prom.LabelPort, strconv.Itoa(n))
	for {
		data, ci, err := p.ReadPacketData()
		if ctx.Err() != nil {
			return nil
		}
		switch {
		case err == nil:
		case errors.Is(err, ErrReadTimeout):
			continue
		case errors.Is(err, io.EOF):
			d.logger.Debug("Port closed", "port", n)
			return nil
		default:
			err = serrors.Wrap("reading frame", err, "port", n)
			d.fail(err)
			return err
		}
		metrics.CounterInc(captured)
		ts := ci.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		d.push(Frame{Port: n, Data: slices.Clone(data), Timestamp: ts})
	}
}

func (d *Dataplane) push(f Frame) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if d.closed {
		return
	}
	d.queue = append(d.queue, f)
	d.queued[f.Port]++
	if d.queued[f.Port] > d.limit {
		for i, q := range d.queue {
			if q.Port == f.Port {
				d.queue = slices.Delete(d.queue, i, i+1)
				break
			}
		}
		d.queued[f.Port]--
		dropped := metrics.CounterWith(d.metrics.Dropped, prom.LabelPort, strconv.Itoa(f.Port))
		metrics.CounterInc(dropped)
		d.logger.Debug("Capture queue full, dropped oldest frame", "port", f.Port)
	}
	close(d.arrived)
	d.arrived = make(chan struct{})
}

// fail records the first capture error and wakes up pollers.
func (d *Dataplane) fail(err error) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if d.failed != nil || d.closed {
		return
	}
	d.failed = err
	d.logger.Error("Capture stopped", "err", err)
	close(d.arrived)
	d.arrived = make(chan struct{})
}

// Send writes frame to port.
func (d *Dataplane) Send(port int, frame []byte) error {
	p, ok := d.ports[port]
	if !ok {
		return serrors.JoinNoStack(ErrUnknownPort, nil, "port", port)
	}
	if err := p.WritePacketData(frame); err != nil {
		return serrors.Wrap("sending frame", err, "port", port)
	}
	metrics.CounterInc(metrics.CounterWith(d.metrics.Sent, prom.LabelPort, strconv.Itoa(port)))
	return nil
}

// Poll removes and returns the oldest queued frame for which match returns
// true. If there is none, it waits up to wait for one to arrive. ErrNoFrame is
// returned if none arrived in time. A nil match accepts any frame. Once a
// capture goroutine failed, Poll returns its error instead of waiting.
func (d *Dataplane) Poll(ctx context.Context, match MatchFunc, wait time.Duration) (Frame, error) {
	if match == nil {
		match = func(Frame) bool { return true }
	}
	timer := time.NewTimer(max(wait, 0))
	defer timer.Stop()
	for {
		d.mtx.Lock()
		if d.closed {
			d.mtx.Unlock()
			return Frame{}, ErrClosed
		}
		for i, f := range d.queue {
			if match(f) {
				d.queue = slices.Delete(d.queue, i, i+1)
				d.queued[f.Port]--
				d.mtx.Unlock()
				return f, nil
			}
		}
		if d.failed != nil {
			err := d.failed
			d.mtx.Unlock()
			return Frame{}, serrors.Wrap("capture failed", err)
		}
		arrived := d.arrived
		d.mtx.Unlock()

		select {
		case <-arrived:
		case <-timer.C:
			return Frame{}, ErrNoFrame
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		}
	}
}

// Pending returns a snapshot of the queued frames for which match returns
// true, oldest first. The frames stay queued.
func (d *Dataplane) Pending(match MatchFunc) []Frame {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	var res []Frame
	for _, f := range d.queue {
		if match == nil || match(f) {
			res = append(res, f)
		}
	}
	return res
}

// Flush drops all queued frames.
func (d *Dataplane) Flush() {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.queue = nil
	clear(d.queued)
}

// Ports returns the sorted port numbers.
func (d *Dataplane) Ports() []int {
	ports := make([]int, 0, len(d.ports))
	for n := range d.ports {
		ports = append(ports, n)
	}
	slices.Sort(ports)
	return ports
}

// Close stops the capture goroutines and closes all ports. It returns the
// first capture error, if any. Subsequent calls return the same result.
func (d *Dataplane) Close() error {
	d.closeOnce.Do(func() {
		d.cancel()
		d.closeErr = d.group.Wait()
		for _, p := range d.ports {
			p.Close()
		}
		d.mtx.Lock()
		d.closed = true
		d.queue = nil
		close(d.arrived)
		d.arrived = make(chan struct{})
		d.mtx.Unlock()
	})
	return d.closeErr
}

// InPorts returns a MatchFunc that accepts frames received on one of ports and
// accepted by match. A nil match accepts any frame.
func InPorts(match func([]byte) bool, ports ...int) MatchFunc {
	return func(f Frame) bool {
		return slices.Contains(ports, f.Port) && (match == nil || match(f.Data))
	}
}

// AnyPort returns a MatchFunc that accepts frames received on any port that
// are accepted by match.
func AnyPort(match func([]byte) bool) MatchFunc {
	return func(f Frame) bool {
		return match == nil || match(f.Data)
	}
}
