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
	"bytes"
	"slices"
)

// Pattern is an expected frame. Bytes whose mask is zero are not compared.
// A Pattern is never transmitted.
type Pattern struct {
	template []byte
	mask     []byte
}

// Exact returns a pattern that matches frame byte by byte.
func Exact(frame []byte) Pattern {
	mask := make([]byte, len(frame))
	for i := range mask {
		mask[i] = 0xff
	}
	return Pattern{template: slices.Clone(frame), mask: mask}
}

// Ignore returns a copy of p that does not compare the n bytes starting at
// offset. Ranges beyond the template are clipped.
func (p Pattern) Ignore(offset, n int) Pattern {
	mask := slices.Clone(p.mask)
	for i := max(offset, 0); i < offset+n && i < len(mask); i++ {
		mask[i] = 0
	}
	return Pattern{template: p.template, mask: mask}
}

// IgnoreEthDst returns a copy of p that accepts any Ethernet destination.
func (p Pattern) IgnoreEthDst() Pattern {
	return p.Ignore(0, 6)
}

// IgnoreEthSrc returns a copy of p that accepts any Ethernet source.
func (p Pattern) IgnoreEthSrc() Pattern {
	return p.Ignore(6, 6)
}

// Match reports whether frame matches the pattern. A frame shorter than the
// template never matches, trailing bytes are ignored.
func (p Pattern) Match(frame []byte) bool {
	if len(frame) < len(p.template) {
		return false
	}
	for i, m := range p.mask {
		if (frame[i]^p.template[i])&m != 0 {
			return false
		}
	}
	return true
}

// Template returns a copy of the expected frame.
func (p Pattern) Template() []byte {
	return slices.Clone(p.template)
}

// Masked returns a copy of frame, cut to the template length, in which the
// ignored bytes are replaced by the template bytes. Comparing the result with
// the template shows only the differences that matter.
func (p Pattern) Masked(frame []byte) []byte {
	n := min(len(frame), len(p.template))
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = frame[i]&p.mask[i] | p.template[i]&^p.mask[i]
	}
	return out
}

// Equal reports whether both patterns compare the same bytes.
func (p Pattern) Equal(o Pattern) bool {
	return bytes.Equal(p.template, o.template) && bytes.Equal(p.mask, o.mask)
}
