package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ISL frames are addressed to 01:00:0c:00:00:xx or 03:00:0c:00:00:xx.
var (
	islPrefix  = []byte{0x01, 0x00, 0x0c, 0x00, 0x00}
	islPrefix2 = []byte{0x03, 0x00, 0x0c, 0x00, 0x00}
)

func decodeEthernet(data []byte) (*Frame, error) {
	if len(data) >= 5 && (bytes.Equal(data[:5], islPrefix) || bytes.Equal(data[:5], islPrefix2)) {
		return nil, errors.New("ISL encapsulation")
	}
	eth := &layers.Ethernet{}
	if err := eth.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, err
	}

	if eth.EthernetType == layers.EthernetTypeLLC {
		// 802.3: the type field is a length
		f := &Frame{
			Kind: KindDot3,
			Fields: []Field{
				macField("dst", eth.DstMAC),
				macField("src", eth.SrcMAC),
				decField("len", 16, uint64(eth.Length)),
			},
			Payload: eth.Payload,
			next:    KindLLC,
		}
		if end := 14 + len(eth.Payload); end < len(data) {
			f.Trailer = data[end:]
		}
		return f, nil
	}

	f := &Frame{
		Kind: KindEthernet,
		Fields: []Field{
			macField("dst", eth.DstMAC),
			macField("src", eth.SrcMAC),
			hexField("type", 16, uint64(eth.EthernetType)),
		},
		Payload: eth.Payload,
	}
	return f.follow(eth.EthernetType), nil
}

func buildEthernet(r *reader) gopacket.SerializableLayer {
	return &ethernet{&layers.Ethernet{
		DstMAC:       r.mac("dst"),
		SrcMAC:       r.mac("src"),
		EthernetType: layers.EthernetType(r.u16("type")),
	}}
}

func buildDot3(r *reader) gopacket.SerializableLayer {
	return &ethernet{&layers.Ethernet{
		DstMAC:       r.mac("dst"),
		SrcMAC:       r.mac("src"),
		EthernetType: layers.EthernetTypeLLC,
		Length:       r.u16("len"),
	}}
}

// ethernet writes the 14 byte header only. gopacket pads every frame to
// 60 bytes, which would change captured runts; padding is left to the
// packet's minimum size.
type ethernet struct {
	*layers.Ethernet
}

func (e *ethernet) inner() gopacket.SerializableLayer { return e.Ethernet }

func (e *ethernet) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	if len(e.DstMAC) != 6 || len(e.SrcMAC) != 6 {
		return fmt.Errorf("invalid MAC address lengths %d and %d", len(e.DstMAC), len(e.SrcMAC))
	}
	payload := len(b.Bytes())
	hdr, err := b.PrependBytes(14)
	if err != nil {
		return err
	}
	copy(hdr, e.DstMAC)
	copy(hdr[6:], e.SrcMAC)
	if e.EthernetType != layers.EthernetTypeLLC {
		binary.BigEndian.PutUint16(hdr[12:], uint16(e.EthernetType))
		return nil
	}
	if opts.FixLengths {
		e.Length = uint16(payload)
	}
	if e.Length > 0x0600 {
		return fmt.Errorf("802.3 length %d above 1536", e.Length)
	}
	binary.BigEndian.PutUint16(hdr[12:], e.Length)
	return nil
}

func decodeDot1Q(data []byte) (*Frame, error) {
	tag := &layers.Dot1Q{}
	if err := tag.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, err
	}
	f := &Frame{
		Kind: KindDot1Q,
		Fields: []Field{
			decField("prio", 3, uint64(tag.Priority)),
			boolField("dei", tag.DropEligible),
			decField("vid", 12, uint64(tag.VLANIdentifier)),
			hexField("type", 16, uint64(tag.Type)),
		},
		Payload: tag.Payload,
	}
	return f.follow(tag.Type), nil
}

func buildDot1Q(r *reader) gopacket.SerializableLayer {
	return &layers.Dot1Q{
		Priority:       uint8(r.uint("prio", 3)),
		DropEligible:   r.flag("dei"),
		VLANIdentifier: uint16(r.uint("vid", 12)),
		Type:           layers.EthernetType(r.u16("type")),
	}
}

// decodeDot11 keeps the MAC header opaque; gopacket serialises only a
// fixed 24-byte header. Everything after the header, FCS included, is payload.
func decodeDot11(data []byte) (*Frame, error) {
	d := &layers.Dot11{}
	if err := d.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, err
	}
	hdr := d.Contents
	f := &Frame{
		Kind: KindDot11,
		Fields: []Field{
			textField("type", d.Type.String()),
			hexField("flags", 8, uint64(d.Flags)).readOnly(),
			decField("duration", 16, uint64(d.DurationID)).readOnly(),
			macField("addr1", d.Address1).readOnly(),
			macField("addr2", d.Address2).readOnly(),
			macField("addr3", d.Address3).readOnly(),
			decField("seq", 12, uint64(d.SequenceNumber)).readOnly(),
			bytesField("hdr", hdr),
		},
		Payload: data[len(hdr):],
	}
	switch {
	case d.Type.MainType() != layers.Dot11TypeData:
		return f.stopAt("802.11 %s frame", d.Type), nil
	case d.Flags.WEP():
		return f.stopAt("protected 802.11 frame"), nil
	}
	f.next = KindLLC
	return f, nil
}

// decodePPP parses the frame by hand: gopacket only decodes PPP through a
// PacketBuilder.
func decodePPP(data []byte) (*Frame, error) {
	off, pptp := 0, false
	if len(data) >= 2 && data[0] == 0xff && data[1] == 0x03 {
		off, pptp = 2, true
	}
	if len(data) <= off {
		return nil, errors.New("PPP frame too short")
	}
	var proto uint16
	compressed := data[off]&0x01 == 1
	if compressed {
		proto = uint16(data[off])
		off++
	} else {
		if len(data) < off+2 || data[off+1]&0x01 == 0 {
			return nil, errors.New("PPP has invalid type")
		}
		proto = uint16(data[off])<<8 | uint16(data[off+1])
		off += 2
	}
	f := &Frame{
		Kind: KindPPP,
		Fields: []Field{
			boolField("pptp", pptp),
			boolField("pfc", compressed),
			hexField("proto", 16, uint64(proto)),
		},
		Payload: data[off:],
	}
	if next, ok := pppTypes[layers.PPPType(proto)]; ok {
		f.next = next
		return f, nil
	}
	return f.stopAt("PPP protocol 0x%04x", proto), nil
}

func buildPPP(r *reader) gopacket.SerializableLayer {
	p := &layers.PPP{
		HasPPTPHeader: r.flag("pptp"),
		PPPType:       layers.PPPType(r.u16("proto")),
	}
	if r.flag("pfc") {
		// gopacket writes a one-byte protocol when bit 8 is set
		p.PPPType = p.PPPType&0xff | 0x100
	}
	return p
}

// follow sets the next kind from an ethertype.
func (f *Frame) follow(t layers.EthernetType) *Frame {
	if t < 0x0600 {
		f.next = KindLLC
		return f
	}
	if next, ok := etherTypes[t]; ok {
		f.next = next
		return f
	}
	return f.stopAt("ethertype %s (0x%04x)", t, uint16(t))
}

func errShort(what string, n, need int) error {
	return fmt.Errorf("%s length %d too short, %d required", what, n, need)
}
