package codec

import (
	"encoding/binary"
	"errors"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

func decodeLLC(data []byte) (*Frame, error) {
	l := &layers.LLC{}
	if err := l.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, err
	}
	ctrl := hexField("ctrl", 8, uint64(l.Control))
	if len(l.Contents) == 4 {
		ctrl = hexField("ctrl", 16, uint64(l.Control))
	}
	f := &Frame{
		Kind: KindLLC,
		Fields: []Field{
			hexField("dsap", 8, uint64(l.DSAP)),
			boolField("ig", l.IG),
			hexField("ssap", 8, uint64(l.SSAP)),
			boolField("cr", l.CR),
			ctrl,
		},
		Payload: l.Payload,
	}
	if next, ok := llcSAPs[[2]byte{l.DSAP, l.SSAP}]; ok {
		f.next = next
		return f, nil
	}
	return f.stopAt("LLC SAP 0x%02x/0x%02x", l.DSAP, l.SSAP), nil
}

func buildLLC(r *reader) gopacket.SerializableLayer {
	l := &layers.LLC{
		DSAP:    r.u8("dsap"),
		IG:      r.flag("ig"),
		SSAP:    r.u8("ssap"),
		CR:      r.flag("cr"),
		Control: r.u16("ctrl"),
	}
	// the two-byte control form is kept when written with four hex digits
	if s := strings.TrimPrefix(strings.ToLower(r.v["ctrl"]), "0x"); len(s) > 2 && l.Control&0xff00 == 0 {
		return &llc4{l}
	}
	return l
}

// llc4 writes a two-byte control field whose first byte is zero, which
// gopacket would shorten to one byte.
type llc4 struct {
	*layers.LLC
}

func (l *llc4) inner() gopacket.SerializableLayer { return l.LLC }

func (l *llc4) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	buf, err := b.PrependBytes(4)
	if err != nil {
		return err
	}
	buf[0], buf[1] = l.DSAP, l.SSAP
	if l.IG {
		buf[0] |= 0x01
	}
	if l.CR {
		buf[1] |= 0x01
	}
	binary.BigEndian.PutUint16(buf[2:], l.Control)
	return nil
}

func decodeSNAP(data []byte) (*Frame, error) {
	s := &layers.SNAP{}
	if err := s.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, err
	}
	oui := [3]byte{s.OrganizationalCode[0], s.OrganizationalCode[1], s.OrganizationalCode[2]}
	f := &Frame{
		Kind: KindSNAP,
		Fields: []Field{
			hexField("oui", 24, uint64(oui[0])<<16|uint64(oui[1])<<8|uint64(oui[2])),
			hexField("type", 16, uint64(s.Type)),
		},
		Payload: s.Payload,
	}
	if oui == [3]byte{} {
		return f.follow(s.Type), nil
	}
	if next, ok := snapOUIs[oui][s.Type]; ok {
		f.next = next
		return f, nil
	}
	return f.stopAt("SNAP %02x%02x%02x type 0x%04x", oui[0], oui[1], oui[2], uint16(s.Type)), nil
}

func buildSNAP(r *reader) gopacket.SerializableLayer {
	oui := r.uint("oui", 24)
	return &layers.SNAP{
		OrganizationalCode: []byte{byte(oui >> 16), byte(oui >> 8), byte(oui)},
		Type:               layers.EthernetType(r.u16("type")),
	}
}

// decodeCDP shows the CDP header and TLV count; gopacket has no
// serialiser for CDP so the whole message is one opaque column.
func decodeCDP(data []byte) (*Frame, error) {
	p := gopacket.NewPacket(data, layers.LayerTypeCiscoDiscovery, gopacket.NoCopy)
	cdp, ok := p.Layer(layers.LayerTypeCiscoDiscovery).(*layers.CiscoDiscovery)
	if !ok {
		if el := p.ErrorLayer(); el != nil {
			return nil, el.Error()
		}
		return nil, errors.New("no CDP layer")
	}
	return &Frame{
		Kind: KindCDP,
		Fields: []Field{
			decField("version", 8, uint64(cdp.Version)).readOnly(),
			decField("ttl", 8, uint64(cdp.TTL)).readOnly(),
			hexField("sum", 16, uint64(cdp.Checksum)).readOnly(),
			decField("tlvs", 16, uint64(len(cdp.Values))).readOnly(),
			bytesField("hdr", data),
		},
	}, nil
}

// decodeSTP keeps the BPDU opaque.
func decodeSTP(data []byte) (*Frame, error) {
	if len(data) < 4 {
		return nil, errShort("STP", len(data), 4)
	}
	return &Frame{
		Kind: KindSTP,
		Fields: []Field{
			hexField("proto", 16, uint64(binary.BigEndian.Uint16(data))).readOnly(),
			decField("version", 8, uint64(data[2])).readOnly(),
			hexField("bpdu", 8, uint64(data[3])).readOnly(),
			bytesField("hdr", data),
		},
	}, nil
}
