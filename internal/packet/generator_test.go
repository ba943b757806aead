package packet

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/srun-soft/hexcap/internal/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddGenerator(t *testing.T) {
	p := decode(t, tcpFrame(t), layers.LinkTypeEthernet)
	before := columnValues(p)

	require.NoError(t, p.AddGenerator("ipv4", "ttl", 3, 2))
	assert.Equal(t, ControlGenerate, p.Control())
	assert.True(t, p.Timestamp().IsZero())
	assert.Equal(t, []string{"pid", "tstamp", "cntrl", "eth", "ipv4", "tcp", "data"}, ids(p))

	gl, ok := p.GenLayers()
	require.True(t, ok)
	require.Len(t, gl, 1)
	assert.Equal(t, "ipv4", gl[0].ID())

	// a second generator keeps the one control layer
	require.NoError(t, p.AddGenerator("ipv4", "ttl", 3, 2))
	assert.Len(t, p.Layers(), 7)

	variants, err := p.Expand()
	require.NoError(t, err)
	require.Len(t, variants, 3)
	for i, v := range variants {
		assert.Equal(t, ControlGenerate, v.Control())
		assert.Equal(t, fmt.Sprint(64+2*i), value(t, v, "ipv4", "ttl"))

		got := columnValues(v)
		got["ipv4"]["ttl"] = before["ipv4"]["ttl"]
		assert.Empty(t, cmp.Diff(before, got), "variant %d", i)

		gl, ok := v.GenLayers()
		assert.True(t, ok)
		assert.Empty(t, gl)
		for _, w := range v.wireLayers() {
			assert.False(t, w.hasAttachment())
		}

		out, err := v.Data()
		require.NoError(t, err)
		assert.Equal(t, byte(64+2*i), out[14+8])
	}

	// the template keeps its generator
	gl, _ = p.GenLayers()
	assert.Len(t, gl, 1)
}

func TestExpandCartesian(t *testing.T) {
	p := decode(t, tcpFrame(t), layers.LinkTypeEthernet)
	require.NoError(t, p.AddGenerator("ipv4", "ttl", 2, 1))
	require.NoError(t, p.AddGenerator("tcp", "sport", 3, 10))

	variants, err := p.Expand()
	require.NoError(t, err)
	require.Len(t, variants, 6)

	var got []string
	seen := map[string]bool{}
	for _, v := range variants {
		pair := value(t, v, "ipv4", "ttl") + "/" + value(t, v, "tcp", "sport")
		assert.False(t, seen[pair], pair)
		seen[pair] = true
		got = append(got, pair)
	}
	assert.Equal(t, []string{
		"64/40000", "64/40010", "64/40020",
		"65/40000", "65/40010", "65/40020",
	}, got)
}

func TestExpandMask(t *testing.T) {
	p := decode(t, tcpFrame(t), layers.LinkTypeEthernet)
	require.NoError(t, p.AddMask("ipv4", "dst", "0.0.0.3"))
	require.NoError(t, p.AddGenerator("ipv4", "dst", 4, 1))
	assert.Equal(t, "0.0.0.3", p.Layer("ipv4").(*Protocol).Column("dst").Mask.Value)

	variants, err := p.Expand()
	require.NoError(t, err)
	var got []string
	for _, v := range variants {
		got = append(got, value(t, v, "ipv4", "dst"))
	}
	assert.Equal(t, []string{"10.0.0.2", "10.0.0.3", "10.0.0.0", "10.0.0.1"}, got)
}

func TestExpandWraps(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		column string
		base   string
		count  int
		step   int64
		want   []string
	}{
		{"ttl up", "ipv4", "ttl", "254", 3, 1, []string{"254", "255", "0"}},
		{"ttl down", "ipv4", "ttl", "1", 3, -1, []string{"1", "0", "255"}},
		{"hex flags", "tcp", "flags", "0x1ff", 2, 1, []string{"0x1ff", "0x000"}},
		{"mac", "eth", "src", "00:11:22:33:44:ff", 2, 1, []string{"00:11:22:33:44:ff", "00:11:22:33:45:00"}},
		{"payload bytes", "data", "data", "00ff", 2, 1, []string{"00ff", "0100"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := decode(t, tcpFrame(t), layers.LinkTypeEthernet)
			require.NoError(t, p.SetColumn(tt.id, tt.column, tt.base))
			require.NoError(t, p.AddGenerator(tt.id, tt.column, tt.count, tt.step))

			variants, err := p.Expand()
			require.NoError(t, err)
			var got []string
			for _, v := range variants {
				got = append(got, value(t, v, tt.id, tt.column))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMaskOnly(t *testing.T) {
	p := decode(t, tcpFrame(t), layers.LinkTypeEthernet)
	require.NoError(t, p.AddMask("tcp", "dport", "0xff"))
	assert.Equal(t, ControlGenerate, p.Control())

	gl, ok := p.GenLayers()
	assert.True(t, ok)
	assert.Empty(t, gl)

	variants, err := p.Expand()
	require.NoError(t, err)
	require.Len(t, variants, 1)
	assert.Equal(t, "80", value(t, variants[0], "tcp", "dport"))
}

func TestGeneratorErrors(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxGeneratorCount = 100
	opts.MaxExpansion = 10

	data := serialize(t,
		&layers.Ethernet{SrcMAC: macA, DstMAC: macB, EthernetType: layers.EthernetTypeIPv4},
		ipv4(layers.IPProtocolIGMP),
		gopacket.Payload(mustHex(t, "16000000ef010101")),
	)
	p, err := New(data, layers.LinkTypeEthernet, tstamp, 1, opts)
	require.NoError(t, err)
	require.NoError(t, p.AddGenerator("ipv4", "ttl", 5, 1))

	tests := []struct {
		name   string
		id     string
		column string
		count  int
		step   int64
		err    error
	}{
		{"zero count", "ipv4", "id", 0, 1, ErrInvalidEdit},
		{"count above limit", "ipv4", "id", 101, 1, ErrInvalidEdit},
		{"zero step", "ipv4", "id", 2, 0, ErrInvalidEdit},
		{"expansion limit", "ipv4", "id", 3, 1, ErrInvalidEdit},
		{"read-only column", "igmp", "group", 2, 1, ErrInvalidEdit},
		{"missing layer", "tcp", "sport", 2, 1, ErrNoSuchLayer},
		{"missing column", "ipv4", "nope", 2, 1, ErrNoSuchColumn},
		{"marker layer", "pid", "pid", 2, 1, ErrInvalidEdit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.AddGenerator(tt.id, tt.column, tt.count, tt.step)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	// replacing the existing generator does not count it twice
	require.NoError(t, p.AddGenerator("ipv4", "ttl", 10, 1))
	require.NoError(t, p.SetColumn("ipv4", "id", "seven"))
	assert.ErrorIs(t, p.AddGenerator("ipv4", "id", 1, 1), ErrInvalidEdit)

	// a generator whose base was edited into garbage fails expansion
	require.NoError(t, p.SetColumn("ipv4", "ttl", "many"))
	_, err = p.Expand()
	assert.ErrorIs(t, err, ErrInvalidEdit)
}

func TestMaskErrors(t *testing.T) {
	p := decode(t, tcpFrame(t), layers.LinkTypeEthernet)
	assert.ErrorIs(t, p.AddMask("ipv4", "dst", "255.0.0"), ErrInvalidEdit)
	assert.ErrorIs(t, p.AddMask("data", "data", "ff"), ErrInvalidEdit)
	assert.ErrorIs(t, p.AddMask("ipv4", "ttl", "256"), ErrInvalidEdit)
	assert.Equal(t, ControlNone, p.Control())
	assert.Equal(t, tstamp, p.Timestamp())
}

func TestExpandPlainPacket(t *testing.T) {
	p := decode(t, tcpFrame(t), layers.LinkTypeEthernet)
	_, err := p.Expand()
	assert.ErrorIs(t, err, ErrInvalidEdit)

	gl, ok := p.GenLayers()
	assert.False(t, ok)
	assert.Nil(t, gl)
}

func TestNewProtocolUnknownKind(t *testing.T) {
	_, err := NewProtocol(codec.KindNone)
	assert.ErrorIs(t, err, codec.ErrUnknownKind)
}
