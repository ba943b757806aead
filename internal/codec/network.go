package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

func arpAddrFormat(size uint8, hw bool) Format {
	switch {
	case hw && size == 6:
		return MAC
	case !hw && size == net.IPv4len:
		return IPv4Addr
	case !hw && size == net.IPv6len:
		return IPv6Addr
	}
	return Bytes
}

func addrField(name string, b []byte, f Format) Field {
	switch f {
	case MAC:
		return macField(name, b)
	case IPv4Addr:
		return ip4Field(name, net.IP(b))
	case IPv6Addr:
		return ip6Field(name, net.IP(b))
	}
	return bytesField(name, b)
}

func decodeARP(data []byte) (*Frame, error) {
	arp := &layers.ARP{}
	if err := arp.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, err
	}
	hw := arpAddrFormat(arp.HwAddressSize, true)
	prot := arpAddrFormat(arp.ProtAddressSize, false)
	return &Frame{
		Kind: KindARP,
		Fields: []Field{
			// gopacket keeps the hardware type in a LinkType, read it raw
			decField("hrd", 16, uint64(binary.BigEndian.Uint16(data))),
			hexField("pro", 16, uint64(arp.Protocol)),
			decField("hln", 8, uint64(arp.HwAddressSize)),
			decField("pln", 8, uint64(arp.ProtAddressSize)),
			decField("op", 16, uint64(arp.Operation)),
			addrField("sha", arp.SourceHwAddress, hw),
			addrField("spa", arp.SourceProtAddress, prot),
			addrField("tha", arp.DstHwAddress, hw),
			addrField("tpa", arp.DstProtAddress, prot),
		},
		Payload: arp.Payload,
		next:    KindPayload,
	}, nil
}

func buildARP(r *reader) gopacket.SerializableLayer {
	hrd := r.u16("hrd")
	if hrd > 0xff && r.err == nil {
		r.fail("hrd", errors.New("hardware types above 255 are not supported"))
	}
	hln, pln := r.u8("hln"), r.u8("pln")
	hw := arpAddrFormat(hln, true)
	prot := arpAddrFormat(pln, false)
	return &layers.ARP{
		AddrType:          layers.LinkType(hrd),
		Protocol:          layers.EthernetType(r.u16("pro")),
		HwAddressSize:     hln,
		ProtAddressSize:   pln,
		Operation:         r.u16("op"),
		SourceHwAddress:   r.addr("sha", hw),
		SourceProtAddress: r.addr("spa", prot),
		DstHwAddress:      r.addr("tha", hw),
		DstProtAddress:    r.addr("tpa", prot),
	}
}

func decodeIPv4(data []byte) (*Frame, error) {
	ip := &layers.IPv4{}
	if err := ip.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, err
	}
	f := &Frame{
		Kind: KindIPv4,
		Fields: []Field{
			decField("v", 4, uint64(ip.Version)),
			decField("hl", 4, uint64(ip.IHL)),
			hexField("tos", 8, uint64(ip.TOS)),
			// raw: gopacket rewrites a zero length to the buffer size
			decField("len", 16, uint64(binary.BigEndian.Uint16(data[2:]))),
			decField("id", 16, uint64(ip.Id)),
			hexField("flags", 3, uint64(ip.Flags)),
			decField("off", 13, uint64(ip.FragOffset)),
			decField("ttl", 8, uint64(ip.TTL)),
			decField("p", 8, uint64(ip.Protocol)),
			hexField("sum", 16, uint64(ip.Checksum)),
			ip4Field("src", ip.SrcIP),
			ip4Field("dst", ip.DstIP),
			bytesField("opts", ip.Contents[20:]),
		},
		Payload: ip.Payload,
	}
	if end := len(ip.Contents) + len(ip.Payload); end < len(data) {
		f.Trailer = data[end:]
	}
	if ip.FragOffset != 0 {
		return f.stopAt("IPv4 fragment at offset %d", ip.FragOffset), nil
	}
	if next, ok := ipv4Protocols[ip.Protocol]; ok {
		f.next = next
		return f, nil
	}
	return f.stopAt("IPv4 protocol %s", ip.Protocol), nil
}

func buildIPv4(r *reader) gopacket.SerializableLayer {
	ip := &layers.IPv4{
		Version:    uint8(r.uint("v", 4)),
		IHL:        uint8(r.uint("hl", 4)),
		TOS:        r.u8("tos"),
		Length:     r.u16("len"),
		Id:         r.u16("id"),
		Flags:      layers.IPv4Flag(r.uint("flags", 3)),
		FragOffset: uint16(r.uint("off", 13)),
		TTL:        r.u8("ttl"),
		Protocol:   layers.IPProtocol(r.u8("p")),
		Checksum:   r.u16("sum"),
		SrcIP:      r.ip4("src"),
		DstIP:      r.ip4("dst"),
	}
	opts := r.bytes("opts")
	if len(opts)%4 != 0 && r.err == nil {
		r.fail("opts", fmt.Errorf("%d option bytes is not a multiple of 4", len(opts)))
	}
	return &ipv4{IPv4: ip, opts: opts}
}

// ipv4 writes the raw option bytes as they were captured; gopacket
// re-encodes options from their parsed form.
type ipv4 struct {
	*layers.IPv4
	opts []byte
}

func (ip *ipv4) inner() gopacket.SerializableLayer { return ip.IPv4 }

func (ip *ipv4) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	if len(ip.opts) == 0 {
		return ip.IPv4.SerializeTo(b, opts)
	}
	if err := prependBytes(b, ip.opts); err != nil {
		return err
	}
	if err := ip.IPv4.SerializeTo(b, opts); err != nil {
		return err
	}
	hdr := b.Bytes()[:20+len(ip.opts)]
	if opts.FixLengths {
		ip.IHL = 5 + uint8(len(ip.opts)/4)
		hdr[0] = ip.Version<<4 | ip.IHL
	}
	if opts.ComputeChecksums {
		ip.Checksum = headerChecksum(hdr)
		binary.BigEndian.PutUint16(hdr[10:], ip.Checksum)
	}
	return nil
}

// headerChecksum is the IPv4 header checksum over hdr, options included.
func headerChecksum(hdr []byte) uint16 {
	hdr[10], hdr[11] = 0, 0
	var sum uint32
	for i := 0; i+1 < len(hdr); i += 2 {
		sum += uint32(hdr[i])<<8 | uint32(hdr[i+1])
	}
	for sum > 0xffff {
		sum = sum>>16 + sum&0xffff
	}
	return ^uint16(sum)
}

func decodeIPv6(data []byte) (*Frame, error) {
	ip := &layers.IPv6{}
	if err := ip.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, err
	}
	// extension headers are not followed, so slice the payload by hand
	plen := int(binary.BigEndian.Uint16(data[4:]))
	end := 40 + plen
	if plen == 0 || end > len(data) {
		end = len(data)
	}
	f := &Frame{
		Kind: KindIPv6,
		Fields: []Field{
			decField("v", 4, uint64(ip.Version)),
			hexField("tc", 8, uint64(ip.TrafficClass)),
			decField("flow", 20, uint64(ip.FlowLabel)),
			decField("plen", 16, uint64(plen)),
			decField("nxt", 8, uint64(data[6])),
			decField("hlim", 8, uint64(ip.HopLimit)),
			ip6Field("src", ip.SrcIP),
			ip6Field("dst", ip.DstIP),
		},
		Payload: data[40:end],
		Trailer: data[end:],
	}
	if len(f.Trailer) == 0 {
		f.Trailer = nil
	}
	if next, ok := ipv6Protocols[layers.IPProtocol(data[6])]; ok {
		f.next = next
		return f, nil
	}
	return f.stopAt("IPv6 next header %d", data[6]), nil
}

func buildIPv6(r *reader) gopacket.SerializableLayer {
	return &layers.IPv6{
		Version:      uint8(r.uint("v", 4)),
		TrafficClass: r.u8("tc"),
		FlowLabel:    uint32(r.uint("flow", 20)),
		Length:       r.u16("plen"),
		NextHeader:   layers.IPProtocol(r.u8("nxt")),
		HopLimit:     r.u8("hlim"),
		SrcIP:        r.ip6("src"),
		DstIP:        r.ip6("dst"),
	}
}
