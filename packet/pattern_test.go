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

package packet_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scionproto/vxlan-decap/packet"
)

func probe(t *testing.T, tmpl packet.TCP) []byte {
	t.Helper()
	raw, err := tmpl.Serialize()
	require.NoError(t, err)
	return raw
}

func TestPatternMatch(t *testing.T) {
	expected := probe(t, packet.TCP{
		EthSrc: dutMAC, EthDst: randomMAC, IPSrc: hostIP, IPDst: srcIP, TTL: 63,
	})
	otherMACs := probe(t, packet.TCP{
		EthSrc: vlanMAC, EthDst: ptfMAC, IPSrc: hostIP, IPDst: srcIP, TTL: 63,
	})
	otherTTL := probe(t, packet.TCP{
		EthSrc: dutMAC, EthDst: randomMAC, IPSrc: hostIP, IPDst: srcIP,
	})
	exact := packet.Exact(expected)

	testCases := map[string]struct {
		Pattern packet.Pattern
		Frame   []byte
		Match   bool
	}{
		"identical": {
			Pattern: exact,
			Frame:   expected,
			Match:   true,
		},
		"different macs": {
			Pattern: exact,
			Frame:   otherMACs,
			Match:   false,
		},
		"any dst different src": {
			Pattern: exact.IgnoreEthDst(),
			Frame:   otherMACs,
			Match:   false,
		},
		"any macs": {
			Pattern: exact.IgnoreEthDst().IgnoreEthSrc(),
			Frame:   otherMACs,
			Match:   true,
		},
		"any macs different ttl": {
			Pattern: exact.IgnoreEthDst().IgnoreEthSrc(),
			Frame:   otherTTL,
			Match:   false,
		},
		"shorter frame": {
			Pattern: exact,
			Frame:   expected[:len(expected)-1],
			Match:   false,
		},
		"trailing bytes": {
			Pattern: exact,
			Frame:   append(append([]byte{}, expected...), 0xde, 0xad),
			Match:   true,
		},
		"empty frame": {
			Pattern: exact.IgnoreEthDst(),
			Frame:   nil,
			Match:   false,
		},
		"ignore beyond template": {
			Pattern: exact.Ignore(len(expected)-2, 10),
			Frame:   append(append([]byte{}, expected[:len(expected)-2]...), 0, 0),
			Match:   true,
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.Match, tc.Pattern.Match(tc.Frame))
		})
	}
}

func TestPatternImmutable(t *testing.T) {
	frame := probe(t, packet.TCP{EthSrc: dutMAC, EthDst: randomMAC, IPSrc: hostIP, IPDst: srcIP})
	exact := packet.Exact(frame)
	relaxed := exact.IgnoreEthSrc()
	assert.False(t, exact.Equal(relaxed))
	assert.True(t, exact.Equal(packet.Exact(frame)))

	frame[0] ^= 0xff
	assert.False(t, exact.Match(frame), "pattern must not alias the frame")
	assert.NotEqual(t, frame, exact.Template())
}

func TestDiff(t *testing.T) {
	packet.ColorTerm = false
	expected := probe(t, packet.TCP{
		EthSrc: dutMAC, EthDst: randomMAC, IPSrc: hostIP, IPDst: srcIP, TTL: 63,
	})
	actual := probe(t, packet.TCP{
		EthSrc: vlanMAC, EthDst: ptfMAC, IPSrc: hostIP, IPDst: srcIP,
	})
	out := packet.Diff(packet.Exact(expected).IgnoreEthDst(), actual)
	lines := strings.SplitN(out, "\nActual:   ", 2)
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Expected: "))
	assert.Contains(t, lines[0], "TTL=63")
	assert.Contains(t, lines[1], "TTL=64")
	// The ignored destination is reported as expected.
	assert.Contains(t, lines[1], "DstMAC="+randomMAC.String())
	assert.Contains(t, lines[1], "SrcMAC="+vlanMAC.String())
}
