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
	"net"
	"net/netip"
	"testing"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scionproto/vxlan-decap/packet"
)

var (
	randomMAC = mustMAC("8c:01:02:03:04:05")
	dutMAC    = mustMAC("00:aa:bb:cc:dd:01")
	vlanMAC   = mustMAC("00:aa:bb:cc:dd:02")
	ptfMAC    = mustMAC("02:00:00:00:00:04")
	srcIP     = netip.MustParseAddr("8.8.8.8")
	hostIP    = netip.MustParseAddr("192.168.0.2")
	gwIP      = netip.MustParseAddr("192.168.0.1")
	loIP      = netip.MustParseAddr("10.1.0.32")
)

func mustMAC(s string) net.HardwareAddr {
	m, err := net.ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return m
}

func decode(frame []byte) gopacket.Packet {
	return gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default)
}

func TestTCP(t *testing.T) {
	raw, err := packet.TCP{
		EthSrc: randomMAC,
		EthDst: dutMAC,
		IPSrc:  srcIP,
		IPDst:  hostIP,
	}.Serialize()
	require.NoError(t, err)
	require.Len(t, raw, packet.TCPProbeLen)

	pkt := decode(raw)
	require.Nil(t, pkt.ErrorLayer())
	eth := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	assert.Equal(t, randomMAC, eth.SrcMAC)
	assert.Equal(t, dutMAC, eth.DstMAC)
	ip := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	assert.EqualValues(t, 64, ip.TTL)
	assert.EqualValues(t, 1, ip.Id)
	assert.Equal(t, srcIP.AsSlice(), []byte(ip.SrcIP.To4()))
	assert.Equal(t, hostIP.AsSlice(), []byte(ip.DstIP.To4()))
	tcp := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP)
	assert.EqualValues(t, packet.TCPSrcPort, tcp.SrcPort)
	assert.EqualValues(t, packet.TCPDstPort, tcp.DstPort)
	assert.True(t, tcp.SYN)
	assert.False(t, tcp.ACK)
	assert.EqualValues(t, packet.TCPWindow, tcp.Window)
	require.Len(t, tcp.Payload, 46)
	for i, b := range tcp.Payload {
		assert.EqualValues(t, i, b)
	}
}

// Routing a probe once rewrites both MAC addresses and decrements the TTL.
// The result must be byte identical to the expected frame.
func TestTCPForwarded(t *testing.T) {
	sent, err := packet.TCP{
		EthSrc: randomMAC,
		EthDst: dutMAC,
		IPSrc:  srcIP,
		IPDst:  hostIP,
	}.Serialize()
	require.NoError(t, err)
	exp, err := packet.TCP{
		EthSrc: vlanMAC,
		EthDst: ptfMAC,
		IPSrc:  srcIP,
		IPDst:  hostIP,
		TTL:    packet.ForwardedTTL,
	}.Serialize()
	require.NoError(t, err)

	pkt := decode(sent)
	eth := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	ip := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	tcp := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP)
	eth.SrcMAC, eth.DstMAC = vlanMAC, ptfMAC
	ip.TTL--
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf,
		gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true},
		eth, ip, tcp, gopacket.Payload(tcp.Payload)))

	assert.True(t, packet.Exact(exp).Match(buf.Bytes()))
	assert.False(t, packet.Exact(exp).Match(sent))
}

func TestARPReply(t *testing.T) {
	raw, err := packet.ARPReply{
		EthSrc:    dutMAC,
		EthDst:    ptfMAC,
		SenderMAC: dutMAC,
		SenderIP:  gwIP,
		TargetMAC: ptfMAC,
		TargetIP:  hostIP,
	}.Serialize()
	require.NoError(t, err)
	require.Len(t, raw, packet.MinFrameLen)

	pkt := decode(raw)
	a, ok := pkt.Layer(layers.LayerTypeARP).(*layers.ARP)
	require.True(t, ok)
	assert.EqualValues(t, layers.ARPReply, a.Operation)
	assert.Equal(t, []byte(dutMAC), a.SourceHwAddress)
	assert.Equal(t, gwIP.AsSlice(), a.SourceProtAddress)
	assert.Equal(t, []byte(ptfMAC), a.DstHwAddress)
	assert.Equal(t, hostIP.AsSlice(), a.DstProtAddress)
	for _, b := range raw[42:] {
		assert.Zero(t, b)
	}
}

func TestVXLAN(t *testing.T) {
	inner, err := packet.ARPReply{
		EthSrc:    dutMAC,
		EthDst:    ptfMAC,
		SenderMAC: dutMAC,
		SenderIP:  gwIP,
		TargetMAC: ptfMAC,
		TargetIP:  hostIP,
	}.Serialize()
	require.NoError(t, err)

	raw, err := packet.VXLAN{
		EthSrc: randomMAC,
		EthDst: dutMAC,
		IPSrc:  srcIP,
		IPDst:  loIP,
		VNI:    1336,
		Inner:  inner,
	}.Serialize()
	require.NoError(t, err)
	assert.Len(t, raw, 14+20+8+8+len(inner))

	pkt := decode(raw)
	udp := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
	assert.EqualValues(t, packet.UDPSrcPort, udp.SrcPort)
	assert.EqualValues(t, packet.VXLANPort, udp.DstPort)
	vx, ok := pkt.Layer(layers.LayerTypeVXLAN).(*layers.VXLAN)
	require.True(t, ok)
	assert.True(t, vx.ValidIDFlag)
	assert.EqualValues(t, 1336, vx.VNI)
	assert.Equal(t, inner, vx.LayerPayload())
	var got []gopacket.LayerType
	for _, l := range pkt.Layers() {
		got = append(got, l.LayerType())
	}
	exp := []gopacket.LayerType{
		layers.LayerTypeEthernet, layers.LayerTypeIPv4, layers.LayerTypeUDP,
		layers.LayerTypeVXLAN, layers.LayerTypeEthernet, layers.LayerTypeARP,
	}
	require.GreaterOrEqual(t, len(got), len(exp))
	assert.Equal(t, exp, got[:len(exp)])
}

func TestSerializeErrors(t *testing.T) {
	testCases := map[string]struct {
		Serialize func() ([]byte, error)
	}{
		"tcp short mac": {
			Serialize: packet.TCP{
				EthSrc: net.HardwareAddr{1, 2}, EthDst: dutMAC, IPSrc: srcIP, IPDst: hostIP,
			}.Serialize,
		},
		"tcp ipv6": {
			Serialize: packet.TCP{
				EthSrc: randomMAC, EthDst: dutMAC, IPSrc: netip.MustParseAddr("::1"),
				IPDst: hostIP,
			}.Serialize,
		},
		"arp missing ip": {
			Serialize: packet.ARPReply{
				EthSrc: dutMAC, EthDst: ptfMAC, SenderMAC: dutMAC, TargetMAC: ptfMAC,
				TargetIP: hostIP,
			}.Serialize,
		},
		"vxlan vni too large": {
			Serialize: packet.VXLAN{
				EthSrc: randomMAC, EthDst: dutMAC, IPSrc: srcIP, IPDst: loIP, VNI: 1 << 24,
			}.Serialize,
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := tc.Serialize()
			assert.Error(t, err)
		})
	}
}
