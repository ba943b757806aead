package codec

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net"
	"strconv"
	"strings"
)

// Format tells how a column value is written and parsed.
type Format uint8

const (
	Dec Format = iota
	Hex
	Bool
	MAC
	IPv4Addr
	IPv6Addr
	Bytes
	Text
)

var formatNames = [...]string{"dec", "hex", "bool", "mac", "ipv4", "ipv6", "bytes", "text"}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return "format(" + strconv.Itoa(int(f)) + ")"
}

// Numeric reports whether generators and masks can work on values of f.
func (f Format) Numeric() bool { return f != Text }

// ErrNotNumeric is returned when a text column is used as a number.
var ErrNotNumeric = errors.New("column is not numeric")

// Field is one named column of a decoded header.
type Field struct {
	Name     string
	Value    string
	Format   Format
	Width    int // bits; for Bytes the width follows the value
	ReadOnly bool
}

// parseUint accepts decimal or 0x-prefixed hex.
func parseUint(s string, bits int) (uint64, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	return strconv.ParseUint(s, base, bits)
}

// ParseValue returns the numeric value of s and the width in bits it occupies.
func ParseValue(f Format, width int, s string) (*big.Int, int, error) {
	switch f {
	case Dec, Hex, Bool:
		u, err := parseUint(s, width)
		if err != nil {
			return nil, 0, err
		}
		return new(big.Int).SetUint64(u), width, nil
	case MAC:
		hw, err := net.ParseMAC(strings.TrimSpace(s))
		if err != nil {
			return nil, 0, err
		}
		if len(hw) != 6 {
			return nil, 0, fmt.Errorf("%q is not a 48-bit MAC", s)
		}
		return new(big.Int).SetBytes(hw), 48, nil
	case IPv4Addr:
		ip := net.ParseIP(strings.TrimSpace(s)).To4()
		if ip == nil {
			return nil, 0, fmt.Errorf("%q is not an IPv4 address", s)
		}
		return new(big.Int).SetBytes(ip), 32, nil
	case IPv6Addr:
		ip := net.ParseIP(strings.TrimSpace(s))
		if ip == nil || ip.To16() == nil {
			return nil, 0, fmt.Errorf("%q is not an IPv6 address", s)
		}
		return new(big.Int).SetBytes(ip.To16()), 128, nil
	case Bytes:
		b, err := hex.DecodeString(strings.TrimSpace(s))
		if err != nil {
			return nil, 0, err
		}
		if len(b) == 0 {
			return nil, 0, errors.New("empty byte string")
		}
		return new(big.Int).SetBytes(b), len(b) * 8, nil
	}
	return nil, 0, ErrNotNumeric
}

// FormatValue renders v, which must fit in width bits, in format f.
func FormatValue(f Format, width int, v *big.Int) string {
	switch f {
	case Dec, Bool:
		return v.String()
	case Hex:
		return fmt.Sprintf("0x%0*x", (width+3)/4, v.Uint64())
	case MAC:
		return net.HardwareAddr(v.FillBytes(make([]byte, 6))).String()
	case IPv4Addr:
		return net.IP(v.FillBytes(make([]byte, net.IPv4len))).String()
	case IPv6Addr:
		return net.IP(v.FillBytes(make([]byte, net.IPv6len))).String()
	case Bytes:
		return hex.EncodeToString(v.FillBytes(make([]byte, width/8)))
	}
	return v.String()
}

func decField(name string, width int, v uint64) Field {
	return Field{Name: name, Value: strconv.FormatUint(v, 10), Format: Dec, Width: width}
}

func hexField(name string, width int, v uint64) Field {
	return Field{Name: name, Value: fmt.Sprintf("0x%0*x", (width+3)/4, v), Format: Hex, Width: width}
}

func boolField(name string, b bool) Field {
	v := "0"
	if b {
		v = "1"
	}
	return Field{Name: name, Value: v, Format: Bool, Width: 1}
}

func macField(name string, hw net.HardwareAddr) Field {
	return Field{Name: name, Value: hw.String(), Format: MAC, Width: 48}
}

func ip4Field(name string, ip net.IP) Field {
	return Field{Name: name, Value: ip.String(), Format: IPv4Addr, Width: 32}
}

func ip6Field(name string, ip net.IP) Field {
	return Field{Name: name, Value: ip.String(), Format: IPv6Addr, Width: 128}
}

func bytesField(name string, b []byte) Field {
	return Field{Name: name, Value: hex.EncodeToString(b), Format: Bytes, Width: len(b) * 8}
}

func textField(name, v string) Field {
	return Field{Name: name, Value: v, Format: Text, ReadOnly: true}
}

func (f Field) readOnly() Field {
	f.ReadOnly = true
	return f
}
