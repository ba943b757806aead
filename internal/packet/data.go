package packet

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/srun-soft/hexcap/internal/codec"
)

// Data encodes the packet. Every layer's encoding becomes the payload of
// the layer before it and a Leftover is carried as the innermost payload.
// A result longer than MaxSize fails with ErrSizeViolation; a shorter one
// than MinSize gets zeros added to its innermost payload.
func (p *Packet) Data() ([]byte, error) {
	if op := p.Control(); op == ControlSleep || op == ControlJump {
		return nil, fmt.Errorf("%w: pid %d is a %s statement", ErrEncode, p.PID(), op)
	}
	ls, err := p.serializable()
	if err != nil {
		return nil, err
	}
	b, err := p.serialize(ls, 0)
	if err != nil {
		return nil, err
	}
	if len(b) < p.minSize {
		if b, err = p.serialize(ls, p.minSize-len(b)); err != nil {
			return nil, err
		}
	}
	if len(b) > p.maxSize {
		return nil, fmt.Errorf("%w: pid %d is %d bytes, maximum %d", ErrSizeViolation, p.PID(), len(b), p.maxSize)
	}
	return b, nil
}

// serialize writes ls inner to outer, so each layer is put in front of the
// bytes of everything it carries.
func (p *Packet) serialize(ls []gopacket.SerializableLayer, pad int) ([]byte, error) {
	if pad > 0 {
		ls = append(ls[:len(ls):len(ls)], gopacket.Payload(make([]byte, pad)))
	}
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, p.opts.Serialize, ls...); err != nil {
		return nil, fmt.Errorf("%w: pid %d: %v", ErrEncode, p.PID(), err)
	}
	return buf.Bytes(), nil
}

// serializable builds every wire layer and points transport checksums at
// the nearest network layer above them.
func (p *Packet) serializable() ([]gopacket.SerializableLayer, error) {
	var (
		ls      []gopacket.SerializableLayer
		network gopacket.SerializableLayer
	)
	for _, w := range p.wireLayers() {
		l, err := w.build()
		if err != nil {
			return nil, fmt.Errorf("%w: pid %d layer %s: %w", ErrEncode, p.PID(), w.ID(), err)
		}
		if pl, ok := w.(*Protocol); ok {
			switch pl.kind {
			case codec.KindIPv4, codec.KindIPv6:
				network = l
			case codec.KindTCP, codec.KindUDP, codec.KindICMPv6:
				if network != nil {
					if err := codec.SetPseudoHeader(l, network); err != nil {
						return nil, fmt.Errorf("%w: pid %d layer %s: %w", ErrEncode, p.PID(), w.ID(), err)
					}
				}
			}
		}
		ls = append(ls, l)
	}
	return ls, nil
}

// RW reports whether every Protocol and Leftover layer encodes. Leftovers
// are written back verbatim, so they only fail once edited into bad hex.
func (p *Packet) RW() bool {
	for _, w := range p.wireLayers() {
		if _, err := w.build(); err != nil {
			return false
		}
	}
	return true
}
