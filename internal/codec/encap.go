package codec

import "github.com/google/gopacket/layers"

// Static encapsulation tables. A value missing from a table stops
// decomposition and the remaining bytes are kept verbatim.

var etherTypes = map[layers.EthernetType]Kind{
	layers.EthernetTypeIPv4:  KindIPv4,
	layers.EthernetTypeIPv6:  KindIPv6,
	layers.EthernetTypeARP:   KindARP,
	layers.EthernetTypeDot1Q: KindDot1Q,
	layers.EthernetTypeQinQ:  KindDot1Q,
}

var pppTypes = map[layers.PPPType]Kind{
	layers.PPPTypeIPv4: KindIPv4,
	layers.PPPTypeIPv6: KindIPv6,
}

var ipv4Protocols = map[layers.IPProtocol]Kind{
	layers.IPProtocolICMPv4: KindICMPv4,
	layers.IPProtocolIGMP:   KindIGMP,
	layers.IPProtocolTCP:    KindTCP,
	layers.IPProtocolUDP:    KindUDP,
}

var ipv6Protocols = map[layers.IPProtocol]Kind{
	layers.IPProtocolICMPv6: KindICMPv6,
	layers.IPProtocolTCP:    KindTCP,
	layers.IPProtocolUDP:    KindUDP,
}

// snapOUIs maps (OUI, type) of a SNAP header; OUI 000000 carries an ethertype.
var snapOUIs = map[[3]byte]map[layers.EthernetType]Kind{
	{0x00, 0x00, 0x0c}: {
		layers.EthernetTypeCiscoDiscovery: KindCDP,
	},
}

// llcSAPs maps (DSAP, SSAP) of an LLC header.
var llcSAPs = map[[2]byte]Kind{
	{0xaa, 0xaa}: KindSNAP,
	{0x42, 0x42}: KindSTP,
}
