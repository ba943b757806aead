package packet

import (
	"fmt"
	"time"
)

// SetColumn overwrites one column of the layer id. The value is checked by
// the codec only when the packet is encoded.
func (p *Packet) SetColumn(id, column, value string) error {
	l := p.Layer(id)
	if l == nil {
		return fmt.Errorf("%w: %s", ErrNoSuchLayer, id)
	}
	switch l := l.(type) {
	case *Timestamp:
		if column != "tstamp" {
			return fmt.Errorf("%w: %s.%s", ErrNoSuchColumn, id, column)
		}
		return p.setTimestamp(l, value)
	case wire:
		c := l.column(column)
		if c == nil {
			return fmt.Errorf("%w: %s.%s", ErrNoSuchColumn, id, column)
		}
		if c.ReadOnly {
			return fmt.Errorf("%w: %s.%s is read-only", ErrInvalidEdit, id, column)
		}
		c.Value = value
		return nil
	}
	return fmt.Errorf("%w: %s cannot be edited", ErrInvalidEdit, id)
}

func (p *Packet) setTimestamp(l *Timestamp, value string) error {
	if p.Control() != ControlNone {
		return fmt.Errorf("%w: control statements carry no timestamp", ErrInvalidEdit)
	}
	if value == "" {
		l.t = time.Time{}
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return fmt.Errorf("%w: timestamp: %v", ErrInvalidEdit, err)
	}
	l.t = t
	return nil
}

// AppendLayer adds l after the last layer. l gets a free identifier.
func (p *Packet) AppendLayer(l Layer) error {
	return p.InsertLayer(len(p.layers), l)
}

// InsertLayer puts l at position pos of the layer sequence, shifting the
// layer at pos and after it back. Only Protocol and Leftover layers can
// be inserted, never before the markers and never after a Leftover.
func (p *Packet) InsertLayer(pos int, l Layer) error {
	if err := p.checkInsert(pos, l); err != nil {
		return err
	}
	if pl, ok := l.(*Protocol); ok {
		pl.id = p.uniqueID(pl.id)
	}
	p.layers = append(p.layers, nil)
	copy(p.layers[pos+1:], p.layers[pos:])
	p.layers[pos] = l
	return nil
}

func (p *Packet) checkInsert(pos int, l Layer) error {
	if op := p.Control(); op == ControlSleep || op == ControlJump {
		return fmt.Errorf("%w: %s statement has no layers", ErrInvalidEdit, op)
	}
	if pos < p.firstWire() || pos > len(p.layers) {
		return fmt.Errorf("%w: position %d out of range [%d, %d]", ErrInvalidEdit, pos, p.firstWire(), len(p.layers))
	}
	for _, have := range p.layers {
		if have == l {
			return fmt.Errorf("%w: layer %s is already in the packet", ErrInvalidEdit, l.ID())
		}
	}
	switch l.(type) {
	case *Protocol:
		if p.leftover() != nil && pos == len(p.layers) {
			return fmt.Errorf("%w: nothing may follow the leftovers", ErrInvalidEdit)
		}
	case *Leftover:
		if p.leftover() != nil {
			return fmt.Errorf("%w: packet already has leftovers", ErrInvalidEdit)
		}
		if pos != len(p.layers) {
			return fmt.Errorf("%w: leftovers must be the last layer", ErrInvalidEdit)
		}
	default:
		return fmt.Errorf("%w: cannot insert a %s layer", ErrInvalidEdit, l.ID())
	}
	return nil
}

// DeleteLayer removes the layer id together with its generators and masks.
// Deleting the generate statement drops every generator and mask of the
// packet. Identity, Timestamp and sleep or jump statements stay.
func (p *Packet) DeleteLayer(id string) error {
	i := p.Index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNoSuchLayer, id)
	}
	switch l := p.layers[i].(type) {
	case *Identity, *Timestamp:
		return fmt.Errorf("%w: %s cannot be deleted", ErrInvalidEdit, id)
	case *Control:
		if l.Op != ControlGenerate {
			return fmt.Errorf("%w: a %s statement cannot be deleted, remove the packet instead", ErrInvalidEdit, l.Op)
		}
		for _, w := range p.wireLayers() {
			for _, c := range w.Columns() {
				c.Generator, c.Mask = nil, nil
			}
		}
	}
	p.layers = append(p.layers[:i], p.layers[i+1:]...)
	return nil
}

// MakeSleep turns the packet into a sleep statement. Every other layer is
// discarded.
func (p *Packet) MakeSleep(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: negative sleep %s", ErrInvalidEdit, d)
	}
	p.makeControl(&Control{Op: ControlSleep, Sleep: d})
	return nil
}

// MakeJump turns the packet into a jump to packet target. Every other layer
// is discarded. Whether target exists is up to the capture.
func (p *Packet) MakeJump(target uint64) error {
	if target == 0 {
		return fmt.Errorf("%w: jump target must be a packet number", ErrInvalidEdit)
	}
	p.makeControl(&Control{Op: ControlJump, Target: target})
	return nil
}

func (p *Packet) makeControl(c *Control) {
	p.clearTimestamp()
	p.layers = append(p.layers[:2:2], c)
}
