package packet

import (
	"encoding/hex"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/srun-soft/hexcap/internal/codec"
	"github.com/stretchr/testify/require"
)

var (
	macA   = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	macB   = net.HardwareAddr{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb}
	tstamp = time.Date(2014, 3, 1, 12, 0, 0, 500, time.UTC)
)

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return buf.Bytes()
}

func ipv4(proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{
		Version: 4, IHL: 5, TTL: 64, Id: 7, Protocol: proto,
		SrcIP: net.IP{10, 0, 0, 1}, DstIP: net.IP{10, 0, 0, 2},
	}
}

// tcpFrame is a 70 byte Ethernet/IPv4/TCP frame with a 16 byte payload.
func tcpFrame(t *testing.T) []byte {
	t.Helper()
	ip := ipv4(layers.IPProtocolTCP)
	tcp := &layers.TCP{SrcPort: 40000, DstPort: 80, Seq: 1000, SYN: true, Window: 1024}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	return serialize(t,
		&layers.Ethernet{SrcMAC: macA, DstMAC: macB, EthernetType: layers.EthernetTypeIPv4},
		ip, tcp, gopacket.Payload("0123456789abcdef"),
	)
}

func udpPayload(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	ip := ipv4(layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: 5000, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	return serialize(t, append(ls, ip, udp, gopacket.Payload("query"))...)
}

// arpFrame is an unpadded 42 byte ARP request.
func arpFrame(t *testing.T) []byte {
	t.Helper()
	eth := &layers.Ethernet{SrcMAC: macA, DstMAC: layers.EthernetBroadcast, EthernetType: layers.EthernetTypeARP}
	arp := &layers.ARP{
		AddrType: layers.LinkTypeEthernet, Protocol: layers.EthernetTypeIPv4,
		HwAddressSize: 6, ProtAddressSize: 4, Operation: layers.ARPRequest,
		SourceHwAddress: macA, SourceProtAddress: []byte{10, 0, 0, 1},
		DstHwAddress: make([]byte, 6), DstProtAddress: []byte{10, 0, 0, 2},
	}
	return serialize(t, eth, arp)[:42]
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func decode(t *testing.T, data []byte, link layers.LinkType) *Packet {
	t.Helper()
	p, err := New(data, link, tstamp, 1, DefaultOptions())
	require.NoError(t, err)
	return p
}

func ids(p *Packet) []string {
	var out []string
	for _, l := range p.Layers() {
		out = append(out, l.ID())
	}
	return out
}

// columnValues maps layer id to the column values of every byte-producing layer.
func columnValues(p *Packet) map[string]codec.Values {
	out := make(map[string]codec.Values)
	for _, w := range p.wireLayers() {
		v := make(codec.Values)
		for _, c := range w.Columns() {
			v[c.Name] = c.Value
		}
		out[w.ID()] = v
	}
	return out
}

func value(t *testing.T, p *Packet, id, column string) string {
	t.Helper()
	l := p.Layer(id)
	require.NotNil(t, l, id)
	for _, c := range l.Columns() {
		if c.Name == column {
			return c.Value
		}
	}
	t.Fatalf("no column %s.%s", id, column)
	return ""
}
