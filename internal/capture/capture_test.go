package capture

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/srun-soft/hexcap/internal/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	macA = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	macB = net.HardwareAddr{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb}
	t0   = time.Date(2014, 3, 1, 12, 0, 0, 0, time.UTC)
)

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return buf.Bytes()
}

func frames(t *testing.T) [][]byte {
	t.Helper()
	ip := &layers.IPv4{
		Version: 4, IHL: 5, TTL: 64, Protocol: layers.IPProtocolUDP,
		SrcIP: net.IP{10, 0, 0, 1}, DstIP: net.IP{10, 0, 0, 2},
	}
	udp := &layers.UDP{SrcPort: 5000, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	arp := serialize(t,
		&layers.Ethernet{SrcMAC: macA, DstMAC: layers.EthernetBroadcast, EthernetType: layers.EthernetTypeARP},
		&layers.ARP{
			AddrType: layers.LinkTypeEthernet, Protocol: layers.EthernetTypeIPv4,
			HwAddressSize: 6, ProtAddressSize: 4, Operation: layers.ARPRequest,
			SourceHwAddress: macA, SourceProtAddress: []byte{10, 0, 0, 1},
			DstHwAddress: make([]byte, 6), DstProtAddress: []byte{10, 0, 0, 2},
		},
	)[:42]
	return [][]byte{
		serialize(t,
			&layers.Ethernet{SrcMAC: macA, DstMAC: macB, EthernetType: layers.EthernetTypeIPv4},
			ip, udp, gopacket.Payload(bytes.Repeat([]byte("dns?"), 10)),
		),
		arp,
		serialize(t,
			&layers.Ethernet{SrcMAC: macA, DstMAC: macB, EthernetType: layers.EthernetType(0x8137)},
			gopacket.Payload(make([]byte, 46)),
		),
	}
}

func pcapFile(t *testing.T, frames [][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	require.NoError(t, w.WriteFileHeader(65535, layers.LinkTypeEthernet))
	for i, f := range frames {
		ci := gopacket.CaptureInfo{Timestamp: t0.Add(time.Duration(i) * time.Second), CaptureLength: len(f), Length: len(f)}
		require.NoError(t, w.WritePacket(ci, f))
	}
	return buf.Bytes()
}

func load(t *testing.T) *Capture {
	t.Helper()
	c, err := Read(bytes.NewReader(pcapFile(t, frames(t))), packet.DefaultOptions())
	require.NoError(t, err)
	return c
}

func readBack(t *testing.T, data []byte) ([][]byte, []time.Time) {
	t.Helper()
	r, err := pcapgo.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	var (
		out [][]byte
		ts  []time.Time
	)
	for {
		d, ci, err := r.ReadPacketData()
		if err != nil {
			break
		}
		out = append(out, d)
		ts = append(ts, ci.Timestamp.UTC())
	}
	return out, ts
}

func pids(c *Capture) []uint64 {
	var out []uint64
	for _, p := range c.Packets() {
		out = append(out, p.PID())
	}
	return out
}

func TestRead(t *testing.T) {
	c := load(t)
	assert.Equal(t, layers.LinkTypeEthernet, c.Link)
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []uint64{1, 2, 3}, pids(c))

	p, err := c.Packet(2)
	require.NoError(t, err)
	assert.True(t, p.HasLayer("arp"))
	assert.Equal(t, t0.Add(time.Second), p.Timestamp().UTC())

	_, err = c.Packet(9)
	assert.ErrorIs(t, err, ErrNoSuchPacket)
}

func TestReadPcapng(t *testing.T) {
	var buf bytes.Buffer
	w, err := pcapgo.NewNgWriter(&buf, layers.LinkTypeEthernet)
	require.NoError(t, err)
	for _, f := range frames(t) {
		require.NoError(t, w.WritePacket(gopacket.CaptureInfo{Timestamp: t0, CaptureLength: len(f), Length: len(f)}, f))
	}
	require.NoError(t, w.Flush())

	c, err := Read(&buf, packet.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, layers.LinkTypeEthernet, c.Link)
}

func TestReadErrors(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("not a capture file")), packet.DefaultOptions())
	assert.Error(t, err)

	_, err = Read(bytes.NewReader(nil), packet.DefaultOptions())
	assert.Error(t, err)

	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	require.NoError(t, w.WriteFileHeader(65535, layers.LinkType(147)))
	require.NoError(t, w.WritePacket(gopacket.CaptureInfo{Timestamp: t0, CaptureLength: 4, Length: 4}, []byte{1, 2, 3, 4}))
	_, err = Read(&buf, packet.DefaultOptions())
	assert.Error(t, err)
}

func TestWriteRoundTrip(t *testing.T) {
	in := frames(t)
	c := load(t)

	var buf bytes.Buffer
	n, err := c.Write(&buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	out, ts := readBack(t, buf.Bytes())
	require.Len(t, out, 3)
	assert.Equal(t, in[0], out[0])
	assert.Equal(t, in[1], out[1])
	assert.Equal(t, in[2], out[2])
	assert.Equal(t, []time.Time{t0, t0.Add(time.Second), t0.Add(2 * time.Second)}, ts)
}

func TestWriteControlStatements(t *testing.T) {
	c := load(t)
	p, err := c.Packet(1)
	require.NoError(t, err)
	require.NoError(t, p.AddGenerator("ipv4", "ttl", 3, 1))

	sleeper, err := c.Packet(3)
	require.NoError(t, err)
	require.NoError(t, sleeper.MakeSleep(time.Second))

	_, err = c.Duplicate(2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 4, 3}, pids(c))
	require.NoError(t, c.MakeJump(4, 1))
	assert.ErrorIs(t, c.MakeJump(4, 99), ErrBadJump)

	var buf bytes.Buffer
	n, err := c.Write(&buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	out, ts := readBack(t, buf.Bytes())
	require.Len(t, out, 4)
	for i := 0; i < 3; i++ {
		assert.Equal(t, byte(64+i), out[i][14+8])
		// generated before any captured packet
		assert.Equal(t, time.Unix(0, 0).UTC(), ts[i])
	}
	assert.Len(t, out[3], 42)
}

func TestWriteDeletedGenerator(t *testing.T) {
	c := load(t)
	p, err := c.Packet(2)
	require.NoError(t, err)
	require.NoError(t, p.AddGenerator("arp", "op", 2, 1))
	assert.True(t, p.Timestamp().IsZero())
	require.NoError(t, p.DeleteLayer("cntrl"))
	assert.Equal(t, packet.ControlNone, p.Control())

	var buf bytes.Buffer
	n, err := c.Write(&buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, ts := readBack(t, buf.Bytes())
	// the packet takes the time of the one before it
	assert.Equal(t, []time.Time{t0, t0, t0.Add(2 * time.Second)}, ts)
}

func TestWriteAllOrNothing(t *testing.T) {
	t.Run("encode failure", func(t *testing.T) {
		c := load(t)
		p, err := c.Packet(1)
		require.NoError(t, err)
		require.NoError(t, p.SetColumn("ipv4", "ttl", "999"))
		assert.False(t, c.RW())

		var buf bytes.Buffer
		_, err = c.Write(&buf)
		assert.ErrorIs(t, err, ErrNotWritable)
		assert.Zero(t, buf.Len())
	})

	t.Run("size violation", func(t *testing.T) {
		c := load(t)
		p, err := c.Packet(3)
		require.NoError(t, err)
		require.NoError(t, p.SetSizeRange(10, 50))

		var buf bytes.Buffer
		_, err = c.Write(&buf)
		assert.ErrorIs(t, err, packet.ErrSizeViolation)
		assert.Zero(t, buf.Len())
	})
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.pcap")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	c := load(t)
	p, err := c.Packet(1)
	require.NoError(t, err)
	require.NoError(t, p.SetColumn("udp", "dport", "bad"))
	_, err = c.Save(path)
	assert.ErrorIs(t, err, ErrNotWritable)
	old, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(old))

	require.NoError(t, p.SetColumn("udp", "dport", "5353"))
	n, err := c.Save(path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	saved, err := Open(path, packet.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, path, saved.Path)
	assert.Equal(t, 3, saved.Len())
	q, err := saved.Packet(1)
	require.NoError(t, err)
	assert.Equal(t, "5353", q.Layer("udp").(*packet.Protocol).Column("dport").Value)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSetSizes(t *testing.T) {
	c := load(t)
	require.NoError(t, c.SetSizeRange(60, 1000))
	for _, p := range c.Packets() {
		assert.Equal(t, 60, p.MinSize())
		assert.Equal(t, 1000, p.MaxSize())
	}

	p, err := c.Packet(2)
	require.NoError(t, err)
	require.NoError(t, p.SetMaxSize(80))

	// packet 2 refuses, so nobody changes
	assert.ErrorIs(t, c.SetMinSize(90), packet.ErrInvalidEdit)
	for _, p := range c.Packets() {
		assert.Equal(t, 60, p.MinSize())
	}

	require.NoError(t, c.SetMaxSize(1200))
	require.NoError(t, c.SetMinSize(90))
	assert.ErrorIs(t, c.SetMaxSize(70), packet.ErrInvalidEdit)
}

func TestRemove(t *testing.T) {
	c := load(t)
	require.NoError(t, c.MakeJump(3, 2))
	assert.ErrorIs(t, c.Remove(2), ErrBadJump)
	assert.ErrorIs(t, c.Remove(7), ErrNoSuchPacket)

	require.NoError(t, c.Remove(1))
	assert.Equal(t, []uint64{2, 3}, pids(c))

	dup, err := c.Duplicate(3)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), dup.PID())
	assert.Equal(t, packet.ControlJump, dup.Control())
}
