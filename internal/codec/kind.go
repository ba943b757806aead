package codec

import (
	"fmt"

	"github.com/google/gopacket/layers"
)

// Kind identifies one protocol header the codec can decode and encode.
type Kind uint8

const (
	KindNone Kind = iota
	KindEthernet
	KindDot3
	KindDot1Q
	KindDot11
	KindPPP
	KindLLC
	KindSNAP
	KindCDP
	KindSTP
	KindARP
	KindIPv4
	KindIPv6
	KindICMPv4
	KindICMPv6
	KindIGMP
	KindTCP
	KindUDP
	KindPayload
)

// kindNames double as the layer identifiers of decoded headers.
var kindNames = map[Kind]string{
	KindEthernet: "eth",
	KindDot3:     "dot3",
	KindDot1Q:    "dot1q",
	KindDot11:    "dot11",
	KindPPP:      "ppp",
	KindLLC:      "llc",
	KindSNAP:     "snap",
	KindCDP:      "cdp",
	KindSTP:      "stp",
	KindARP:      "arp",
	KindIPv4:     "ipv4",
	KindIPv6:     "ipv6",
	KindICMPv4:   "icmp",
	KindICMPv6:   "icmp6",
	KindIGMP:     "igmp",
	KindTCP:      "tcp",
	KindUDP:      "udp",
	KindPayload:  "data",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// KindByName resolves a layer name such as "dot1q" to its Kind.
func KindByName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return KindNone, false
}

// Kinds lists every encodable kind in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(kindNames))
	for k := KindEthernet; k <= KindPayload; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// DLT 192 frames are read as PPP.
const linkTypePPI = layers.LinkType(192)

// LinkKind picks the outermost kind for a frame captured on link.
// Only an unknown link type is an error; everything below it degrades.
func LinkKind(link layers.LinkType, data []byte) (Kind, error) {
	switch link {
	case layers.LinkTypeEthernet:
		return KindEthernet, nil
	case layers.LinkTypeIEEE802_11:
		return KindDot11, nil
	case layers.LinkTypePPP, linkTypePPI:
		return KindPPP, nil
	case layers.LinkTypeIPv4:
		return KindIPv4, nil
	case layers.LinkTypeIPv6:
		return KindIPv6, nil
	case layers.LinkTypeRaw:
		if len(data) > 0 && data[0]>>4 == 6 {
			return KindIPv6, nil
		}
		return KindIPv4, nil
	}
	return KindNone, fmt.Errorf("%w: %s (%d)", ErrUnknownLinkType, link, uint8(link))
}
