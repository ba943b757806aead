package codec

import (
	"encoding/hex"
	"fmt"
	"net"
	"strings"
)

// Values maps column names to the text the user sees and edits.
type Values map[string]string

// reader pulls typed values out of Values, keeping the first error.
type reader struct {
	v   Values
	err error
}

func (r *reader) get(name string) (string, bool) {
	if r.err != nil {
		return "", false
	}
	s, ok := r.v[name]
	if !ok {
		r.err = fmt.Errorf("%w: missing column %s", ErrBadValue, name)
		return "", false
	}
	return s, true
}

func (r *reader) fail(name string, err error) {
	r.err = fmt.Errorf("%w: column %s: %v", ErrBadValue, name, err)
}

func (r *reader) uint(name string, bits int) uint64 {
	s, ok := r.get(name)
	if !ok {
		return 0
	}
	u, err := parseUint(s, bits)
	if err != nil {
		r.fail(name, err)
	}
	return u
}

func (r *reader) u8(name string) uint8 { return uint8(r.uint(name, 8)) }

func (r *reader) u16(name string) uint16 { return uint16(r.uint(name, 16)) }

func (r *reader) u32(name string) uint32 { return uint32(r.uint(name, 32)) }

func (r *reader) flag(name string) bool { return r.uint(name, 1) == 1 }

func (r *reader) mac(name string) net.HardwareAddr {
	s, ok := r.get(name)
	if !ok {
		return nil
	}
	hw, err := net.ParseMAC(strings.TrimSpace(s))
	if err != nil {
		r.fail(name, err)
		return nil
	}
	return hw
}

func (r *reader) ip4(name string) net.IP {
	s, ok := r.get(name)
	if !ok {
		return nil
	}
	ip := net.ParseIP(strings.TrimSpace(s)).To4()
	if ip == nil {
		r.fail(name, fmt.Errorf("%q is not an IPv4 address", s))
	}
	return ip
}

func (r *reader) ip6(name string) net.IP {
	s, ok := r.get(name)
	if !ok {
		return nil
	}
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		r.fail(name, fmt.Errorf("%q is not an IPv6 address", s))
		return nil
	}
	return ip.To16()
}

func (r *reader) bytes(name string) []byte {
	s, ok := r.get(name)
	if !ok {
		return nil
	}
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		r.fail(name, err)
	}
	return b
}

// addr parses a column whose format depends on a sibling length column,
// such as the ARP hardware and protocol addresses.
func (r *reader) addr(name string, f Format) []byte {
	switch f {
	case MAC:
		return r.mac(name)
	case IPv4Addr:
		return r.ip4(name)
	case IPv6Addr:
		return r.ip6(name)
	}
	return r.bytes(name)
}
