// Package codec decodes and encodes single protocol headers on top of gopacket.
//
// A decoded header is a Frame: the header's columns as text, its payload,
// any trailer bytes past its own length field, and the kind its payload
// decodes as. Build turns edited columns back into a gopacket
// SerializableLayer so whole packets can be serialised with
// gopacket.SerializeLayers.
package codec

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/gopacket"
)

var (
	ErrUnknownLinkType = errors.New("unknown link type")
	ErrUnsupported     = errors.New("unsupported encapsulation")
	ErrUnknownKind     = errors.New("unknown layer kind")
	ErrBadValue        = errors.New("bad column value")
	ErrSerialize       = errors.New("serialize failed")
)

// Frame is one decoded header.
type Frame struct {
	Kind    Kind
	Fields  []Field
	Payload []byte
	Trailer []byte

	next Kind
	stop string
}

// Next returns the kind the payload decodes as, and the payload.
// KindNone with a nil error means nothing is left. ErrUnsupported means the
// payload has to be kept verbatim.
func (f *Frame) Next() (Kind, []byte, error) {
	if len(f.Payload) == 0 {
		return KindNone, nil, nil
	}
	if f.next == KindNone {
		return KindNone, f.Payload, fmt.Errorf("%w: %s", ErrUnsupported, f.stop)
	}
	return f.next, f.Payload, nil
}

func (f *Frame) stopAt(format string, args ...interface{}) *Frame {
	f.next = KindNone
	f.stop = fmt.Sprintf(format, args...)
	return f
}

type handler struct {
	decode   func(data []byte) (*Frame, error)
	build    func(r *reader) gopacket.SerializableLayer
	template string // hex of a default header
	// lengthAt is the offset of a 16-bit length field that must not count
	// the trailer, or -1 when the trailer simply follows the payload.
	lengthAt int
}

var handlers = map[Kind]handler{
	KindEthernet: {decodeEthernet, buildEthernet, "ffffffffffff0000000000000800", -1},
	KindDot3:     {decodeEthernet, buildDot3, "ffffffffffff0000000000000000", 12},
	KindDot1Q:    {decodeDot1Q, buildDot1Q, "00010800", -1},
	KindDot11:    {decodeDot11, buildOpaque, "08000000" + zeroMAC + zeroMAC + zeroMAC + "0000" + "00000000", -1},
	KindPPP:      {decodePPP, buildPPP, "0021", -1},
	KindLLC:      {decodeLLC, buildLLC, "aaaa03", -1},
	KindSNAP:     {decodeSNAP, buildSNAP, "0000000800", -1},
	KindCDP:      {decodeCDP, buildOpaque, "02b40000", -1},
	KindSTP:      {decodeSTP, buildOpaque, "0000000000" + "8000000000000000" + "00000000" + "8000000000000000" + "8001000014000200" + "0f00", -1},
	KindARP:      {decodeARP, buildARP, "0001080006040001" + zeroMAC + "00000000" + zeroMAC + "00000000", -1},
	KindIPv4:     {decodeIPv4, buildIPv4, "4500001400000000400000000000000000000000", -1},
	KindIPv6:     {decodeIPv6, buildIPv6, "6000000000003b40" + zeroIPv6 + zeroIPv6, -1},
	KindICMPv4:   {decodeICMPv4, buildICMPv4, "0800000000000000", -1},
	KindICMPv6:   {decodeICMPv6, buildICMPv6, "80000000", -1},
	KindIGMP:     {decodeIGMP, buildOpaque, "1100000000000000", -1},
	KindTCP:      {decodeTCP, buildTCP, "0000000000000000000000005002ffff00000000", -1},
	KindUDP:      {decodeUDP, buildUDP, "0000000000080000", -1},
	KindPayload:  {decodePayload, buildPayload, "", -1},
}

const (
	zeroMAC  = "000000000000"
	zeroIPv6 = "00000000000000000000000000000000"
)

// Decode decodes the header of kind at the front of data. The returned
// Frame may report a more specific kind, Dot3 for a length-typed Ethernet
// header for instance. Errors wrap ErrUnsupported.
func Decode(kind Kind, data []byte) (*Frame, error) {
	h, ok := handlers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	f, err := h.decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupported, kind, err)
	}
	return f, nil
}

// Build converts columns back into a serialisable layer. trailer is
// re-emitted after the layer's payload.
func Build(kind Kind, values Values, trailer []byte) (gopacket.SerializableLayer, error) {
	h, ok := handlers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	r := &reader{v: values}
	l := h.build(r)
	if r.err != nil {
		return nil, fmt.Errorf("%s: %w", kind, r.err)
	}
	if len(trailer) == 0 {
		return l, nil
	}
	return &trailed{SerializableLayer: l, trailer: trailer, lengthAt: h.lengthAt}, nil
}

// Encode serialises one header of kind in front of payload.
func Encode(kind Kind, values Values, payload []byte, opts gopacket.SerializeOptions) ([]byte, error) {
	l, err := Build(kind, values, nil)
	if err != nil {
		return nil, err
	}
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, opts, l, gopacket.Payload(payload)); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSerialize, kind, err)
	}
	return buf.Bytes(), nil
}

// Template returns the columns of a default header of kind, used when a
// layer is added by hand.
func Template(kind Kind) ([]Field, error) {
	h, ok := handlers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if kind == KindPayload {
		return []Field{bytesField("data", nil)}, nil
	}
	data, err := hex.DecodeString(h.template)
	if err != nil {
		return nil, err
	}
	f, err := h.decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s template: %w", kind, err)
	}
	return f.Fields, nil
}

// SetPseudoHeader points the checksum of a TCP, UDP or ICMPv6 layer at the
// IP layer carrying it. Other pairs are ignored.
func SetPseudoHeader(transport, network gopacket.SerializableLayer) error {
	c, ok := unwrap(transport).(interface {
		SetNetworkLayerForChecksum(gopacket.NetworkLayer) error
	})
	if !ok {
		return nil
	}
	n, ok := unwrap(network).(gopacket.NetworkLayer)
	if !ok {
		return nil
	}
	return c.SetNetworkLayerForChecksum(n)
}

type wrapper interface {
	inner() gopacket.SerializableLayer
}

func unwrap(l gopacket.SerializableLayer) gopacket.SerializableLayer {
	for {
		w, ok := l.(wrapper)
		if !ok {
			return l
		}
		l = w.inner()
	}
}

// trailed emits bytes the header's own length does not cover after its payload.
type trailed struct {
	gopacket.SerializableLayer
	trailer  []byte
	lengthAt int
}

func (t *trailed) inner() gopacket.SerializableLayer { return t.SerializableLayer }

func (t *trailed) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	if t.lengthAt < 0 {
		if err := t.SerializableLayer.SerializeTo(b, opts); err != nil {
			return err
		}
		return appendBytes(b, t.trailer)
	}
	// the length field counts the payload only, not the trailer
	n := len(b.Bytes())
	if err := appendBytes(b, t.trailer); err != nil {
		return err
	}
	if err := t.SerializableLayer.SerializeTo(b, opts); err != nil {
		return err
	}
	if opts.FixLengths {
		binary.BigEndian.PutUint16(b.Bytes()[t.lengthAt:], uint16(n))
	}
	return nil
}

func appendBytes(b gopacket.SerializeBuffer, data []byte) error {
	dst, err := b.AppendBytes(len(data))
	if err != nil {
		return err
	}
	copy(dst, data)
	return nil
}

func prependBytes(b gopacket.SerializeBuffer, data []byte) error {
	dst, err := b.PrependBytes(len(data))
	if err != nil {
		return err
	}
	copy(dst, data)
	return nil
}

// buildOpaque encodes kinds gopacket cannot serialise from the raw header
// column; their other columns are read-only views.
func buildOpaque(r *reader) gopacket.SerializableLayer {
	return gopacket.Payload(r.bytes("hdr"))
}
