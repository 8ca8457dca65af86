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

// Package match counts the frames that match an expected pattern.
//
// Counting stops as soon as the target is reached, when the polling window
// closes, or as soon as a single poll returns no frame. The result is therefore
// an at-most-target count; it is up to the caller to decide whether a count
// below the target is a failure.
package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/scionproto/vxlan-decap/dataplane"
	"github.com/scionproto/vxlan-decap/pkg/private/serrors"
)

// ErrInvalidTimeout indicates a non-positive timeout.
var ErrInvalidTimeout = errors.New("timeout must be positive")

// Policy defines how the polling window evolves.
type Policy int

const (
	// Deadline closes the window a fixed time after counting started.
	Deadline Policy = iota
	// Idle closes the window when no match arrived for the timeout, counted
	// from the last match.
	Idle
)

func (p Policy) String() string {
	switch p {
	case Deadline:
		return "deadline"
	case Idle:
		return "idle"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Poller returns queued frames.
type Poller interface {
	Poll(ctx context.Context, match dataplane.MatchFunc, wait time.Duration) (
		dataplane.Frame, error)
}

// Matcher decides whether a frame is the expected one. packet.Pattern
// implements it.
type Matcher interface {
	Match(frame []byte) bool
}

// Counter counts matching frames.
type Counter struct {
	Poller Poller
	Policy Policy
	// Ports restricts the ports frames are accepted from. If empty, frames
	// from any port are accepted.
	Ports []int
	// Timeout is the window length. It must be positive.
	Timeout time.Duration
}

// Count polls until target matching frames were received or the window
// closes, and returns the number of matches. The returned count is never
// larger than target. If ctx is done, the count so far is returned together
// with the context error.
func (c Counter) Count(ctx context.Context, exp Matcher, target int) (int, error) {
	if c.Timeout <= 0 {
		return 0, serrors.JoinNoStack(ErrInvalidTimeout, nil,
			"timeout", c.Timeout, "policy", c.Policy)
	}
	if target <= 0 {
		return 0, nil
	}
	match := dataplane.AnyPort(exp.Match)
	if len(c.Ports) > 0 {
		match = dataplane.InPorts(exp.Match, c.Ports...)
	}

	tally := 0
	end := time.Now().Add(c.Timeout)
	for tally < target {
		wait := time.Until(end)
		if wait <= 0 {
			break
		}
		_, err := c.Poller.Poll(ctx, match, wait)
		if errors.Is(err, dataplane.ErrNoFrame) {
			break
		}
		if err != nil {
			return tally, serrors.Wrap("polling frames", err, "received", tally)
		}
		tally++
		if c.Policy == Idle {
			end = time.Now().Add(c.Timeout)
		}
	}
	return tally, nil
}
