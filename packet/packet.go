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

// Package packet builds the frames injected into the switch under test and the
// patterns used to recognize the frames it emits.
//
// The frame shapes follow the packet test framework conventions, so that a
// capture taken with this tool can be compared byte by byte with one taken
// with the classic test harness.
package packet

import (
	"net"
	"net/netip"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/mdlayher/arp"
	"github.com/mdlayher/ethernet"

	"github.com/scionproto/vxlan-decap/pkg/private/serrors"
)

const (
	// TCPProbeLen is the length of a TCP probe frame, padding included.
	TCPProbeLen = 100
	// DefaultTTL is the IPv4 TTL of injected frames.
	DefaultTTL = 64
	// ForwardedTTL is the IPv4 TTL of a frame routed once by the switch.
	ForwardedTTL = DefaultTTL - 1

	TCPSrcPort  = 1234
	TCPDstPort  = 80
	TCPWindow   = 8192
	UDPSrcPort  = 1234
	VXLANPort   = 4789
	probeIPv4ID = 1
	// MinFrameLen is the minimum Ethernet frame length without FCS.
	MinFrameLen = 60
)

var serializeOpts = gopacket.SerializeOptions{
	FixLengths:       true,
	ComputeChecksums: true,
}

// TCP describes a TCP probe. Zero values select the defaults.
type TCP struct {
	EthSrc net.HardwareAddr
	EthDst net.HardwareAddr
	IPSrc  netip.Addr
	IPDst  netip.Addr
	// TTL defaults to DefaultTTL.
	TTL uint8
}

// Serialize builds the probe frame: Ethernet/IPv4/TCP SYN, padded with
// incrementing bytes to TCPProbeLen.
func (t TCP) Serialize() ([]byte, error) {
	if err := checkAddrs(t.EthSrc, t.EthDst, t.IPSrc, t.IPDst); err != nil {
		return nil, err
	}
	ttl := t.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	eth := &layers.Ethernet{
		SrcMAC:       t.EthSrc,
		DstMAC:       t.EthDst,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		Id:       probeIPv4ID,
		TTL:      ttl,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    t.IPSrc.AsSlice(),
		DstIP:    t.IPDst.AsSlice(),
	}
	tcp := &layers.TCP{
		SrcPort:    TCPSrcPort,
		DstPort:    TCPDstPort,
		SYN:        true,
		Window:     TCPWindow,
		DataOffset: 5,
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, serrors.Wrap("setting checksum layer", err)
	}
	// 14 bytes Ethernet, 20 bytes IPv4, 20 bytes TCP.
	pad := make(gopacket.Payload, TCPProbeLen-54)
	for i := range pad {
		pad[i] = byte(i)
	}
	return serialize(eth, ip, tcp, pad)
}

// ARPReply describes an ARP reply carried in an Ethernet frame.
type ARPReply struct {
	EthSrc    net.HardwareAddr
	EthDst    net.HardwareAddr
	SenderMAC net.HardwareAddr
	SenderIP  netip.Addr
	TargetMAC net.HardwareAddr
	TargetIP  netip.Addr
}

// Serialize builds the ARP reply frame, zero padded to MinFrameLen.
func (a ARPReply) Serialize() ([]byte, error) {
	if err := checkAddrs(a.EthSrc, a.EthDst, a.SenderIP, a.TargetIP); err != nil {
		return nil, err
	}
	p, err := arp.NewPacket(arp.OperationReply, a.SenderMAC, a.SenderIP, a.TargetMAC, a.TargetIP)
	if err != nil {
		return nil, serrors.Wrap("creating ARP packet", err,
			"sender", a.SenderIP, "target", a.TargetIP)
	}
	payload, err := p.MarshalBinary()
	if err != nil {
		return nil, serrors.Wrap("encoding ARP packet", err)
	}
	f := &ethernet.Frame{
		Destination: a.EthDst,
		Source:      a.EthSrc,
		EtherType:   ethernet.EtherTypeARP,
		Payload:     payload,
	}
	raw, err := f.MarshalBinary()
	if err != nil {
		return nil, serrors.Wrap("encoding Ethernet frame", err)
	}
	return raw, nil
}

// VXLAN describes a VXLAN encapsulated frame.
type VXLAN struct {
	EthSrc net.HardwareAddr
	EthDst net.HardwareAddr
	IPSrc  netip.Addr
	IPDst  netip.Addr
	VNI    uint32
	// Inner is the encapsulated Ethernet frame.
	Inner []byte
}

// Serialize builds the outer Ethernet/IPv4/UDP/VXLAN headers around the inner
// frame.
func (v VXLAN) Serialize() ([]byte, error) {
	if err := checkAddrs(v.EthSrc, v.EthDst, v.IPSrc, v.IPDst); err != nil {
		return nil, err
	}
	if v.VNI >= 1<<24 {
		return nil, serrors.New("VNI out of range", "vni", v.VNI)
	}
	eth := &layers.Ethernet{
		SrcMAC:       v.EthSrc,
		DstMAC:       v.EthDst,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      DefaultTTL,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    v.IPSrc.AsSlice(),
		DstIP:    v.IPDst.AsSlice(),
	}
	udp := &layers.UDP{
		SrcPort: UDPSrcPort,
		DstPort: VXLANPort,
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, serrors.Wrap("setting checksum layer", err)
	}
	vx := &layers.VXLAN{
		ValidIDFlag: true,
		VNI:         v.VNI,
	}
	return serialize(eth, ip, udp, vx, gopacket.Payload(v.Inner))
}

func serialize(l ...gopacket.SerializableLayer) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, serializeOpts, l...); err != nil {
		return nil, serrors.Wrap("serializing frame", err)
	}
	return buf.Bytes(), nil
}

func checkAddrs(src, dst net.HardwareAddr, ipSrc, ipDst netip.Addr) error {
	if len(src) != 6 || len(dst) != 6 {
		return serrors.New("invalid MAC address", "src", src, "dst", dst)
	}
	if !ipSrc.Is4() || !ipDst.Is4() {
		return serrors.New("IPv4 addresses required", "src", ipSrc, "dst", ipDst)
	}
	return nil
}
