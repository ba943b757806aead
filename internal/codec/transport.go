package codec

import (
	"errors"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

func decodeICMPv4(data []byte) (*Frame, error) {
	icmp := &layers.ICMPv4{}
	if err := icmp.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, err
	}
	return &Frame{
		Kind: KindICMPv4,
		Fields: []Field{
			decField("type", 8, uint64(icmp.TypeCode.Type())),
			decField("code", 8, uint64(icmp.TypeCode.Code())),
			hexField("sum", 16, uint64(icmp.Checksum)),
			decField("id", 16, uint64(icmp.Id)),
			decField("seq", 16, uint64(icmp.Seq)),
		},
		Payload: icmp.Payload,
		next:    KindPayload,
	}, nil
}

func buildICMPv4(r *reader) gopacket.SerializableLayer {
	return &layers.ICMPv4{
		TypeCode: layers.CreateICMPv4TypeCode(r.u8("type"), r.u8("code")),
		Checksum: r.u16("sum"),
		Id:       r.u16("id"),
		Seq:      r.u16("seq"),
	}
}

func decodeICMPv6(data []byte) (*Frame, error) {
	icmp := &layers.ICMPv6{}
	if err := icmp.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, err
	}
	return &Frame{
		Kind: KindICMPv6,
		Fields: []Field{
			decField("type", 8, uint64(icmp.TypeCode.Type())),
			decField("code", 8, uint64(icmp.TypeCode.Code())),
			hexField("sum", 16, uint64(icmp.Checksum)),
		},
		Payload: icmp.Payload,
		next:    KindPayload,
	}, nil
}

func buildICMPv6(r *reader) gopacket.SerializableLayer {
	return &layers.ICMPv6{
		TypeCode: layers.CreateICMPv6TypeCode(r.u8("type"), r.u8("code")),
		Checksum: r.u16("sum"),
	}
}

// decodeIGMP handles IGMPv1 and v2 only. The message is opaque since
// gopacket cannot serialise IGMP.
func decodeIGMP(data []byte) (*Frame, error) {
	if len(data) < 8 {
		return nil, errShort("IGMP", len(data), 8)
	}
	switch t := layers.IGMPType(data[0]); {
	case t == layers.IGMPMembershipReportV3:
		return nil, errors.New("IGMPv3 membership report")
	case t == layers.IGMPMembershipQuery && len(data) >= 12:
		return nil, errors.New("IGMPv3 membership query")
	}
	g := &layers.IGMPv1or2{}
	if err := g.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, err
	}
	return &Frame{
		Kind: KindIGMP,
		Fields: []Field{
			hexField("type", 8, uint64(g.Type)).readOnly(),
			decField("maxresp", 8, uint64(data[1])).readOnly(),
			hexField("sum", 16, uint64(g.Checksum)).readOnly(),
			ip4Field("group", g.GroupAddress).readOnly(),
			bytesField("hdr", data[:8]),
		},
		Payload: data[8:],
		next:    KindPayload,
	}, nil
}

func decodeTCP(data []byte) (*Frame, error) {
	tcp := &layers.TCP{}
	if err := tcp.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, err
	}
	return &Frame{
		Kind: KindTCP,
		Fields: []Field{
			decField("sport", 16, uint64(tcp.SrcPort)),
			decField("dport", 16, uint64(tcp.DstPort)),
			decField("seq", 32, uint64(tcp.Seq)),
			decField("ack", 32, uint64(tcp.Ack)),
			decField("off", 4, uint64(tcp.DataOffset)),
			hexField("flags", 9, uint64(tcpFlags(tcp))),
			decField("win", 16, uint64(tcp.Window)),
			hexField("sum", 16, uint64(tcp.Checksum)),
			decField("urp", 16, uint64(tcp.Urgent)),
			bytesField("opts", tcp.Contents[20:]),
		},
		Payload: tcp.Payload,
		next:    KindPayload,
	}, nil
}

// TCP flag bits, NS highest.
const (
	tcpFIN = 1 << iota
	tcpSYN
	tcpRST
	tcpPSH
	tcpACK
	tcpURG
	tcpECE
	tcpCWR
	tcpNS
)

func tcpFlags(t *layers.TCP) uint16 {
	var f uint16
	set := func(bit uint16, on bool) {
		if on {
			f |= bit
		}
	}
	set(tcpFIN, t.FIN)
	set(tcpSYN, t.SYN)
	set(tcpRST, t.RST)
	set(tcpPSH, t.PSH)
	set(tcpACK, t.ACK)
	set(tcpURG, t.URG)
	set(tcpECE, t.ECE)
	set(tcpCWR, t.CWR)
	set(tcpNS, t.NS)
	return f
}

func buildTCP(r *reader) gopacket.SerializableLayer {
	flags := r.uint("flags", 9)
	return &layers.TCP{
		SrcPort:    layers.TCPPort(r.u16("sport")),
		DstPort:    layers.TCPPort(r.u16("dport")),
		Seq:        r.u32("seq"),
		Ack:        r.u32("ack"),
		DataOffset: uint8(r.uint("off", 4)),
		FIN:        flags&tcpFIN != 0,
		SYN:        flags&tcpSYN != 0,
		RST:        flags&tcpRST != 0,
		PSH:        flags&tcpPSH != 0,
		ACK:        flags&tcpACK != 0,
		URG:        flags&tcpURG != 0,
		ECE:        flags&tcpECE != 0,
		CWR:        flags&tcpCWR != 0,
		NS:         flags&tcpNS != 0,
		Window:     r.u16("win"),
		Checksum:   r.u16("sum"),
		Urgent:     r.u16("urp"),
		// raw option bytes go out verbatim as padding
		Padding: r.bytes("opts"),
	}
}

func decodeUDP(data []byte) (*Frame, error) {
	udp := &layers.UDP{}
	if err := udp.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, err
	}
	f := &Frame{
		Kind: KindUDP,
		Fields: []Field{
			decField("sport", 16, uint64(udp.SrcPort)),
			decField("dport", 16, uint64(udp.DstPort)),
			decField("len", 16, uint64(udp.Length)),
			hexField("sum", 16, uint64(udp.Checksum)),
		},
		Payload: udp.Payload,
		next:    KindPayload,
	}
	if end := 8 + len(udp.Payload); end < len(data) {
		f.Trailer = data[end:]
	}
	return f, nil
}

func buildUDP(r *reader) gopacket.SerializableLayer {
	return &layers.UDP{
		SrcPort:  layers.UDPPort(r.u16("sport")),
		DstPort:  layers.UDPPort(r.u16("dport")),
		Length:   r.u16("len"),
		Checksum: r.u16("sum"),
	}
}

func decodePayload(data []byte) (*Frame, error) {
	return &Frame{
		Kind:   KindPayload,
		Fields: []Field{bytesField("data", data)},
	}, nil
}

func buildPayload(r *reader) gopacket.SerializableLayer {
	return gopacket.Payload(r.bytes("data"))
}
