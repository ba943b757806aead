package packet

import (
	"fmt"
	"math/big"

	"github.com/srun-soft/hexcap/internal/codec"
)

// AddGenerator makes column of layer id step through count values, step
// apart, starting at its current value. The packet becomes a generate
// statement: its timestamp is cleared and a Control layer is put directly
// after the Timestamp.
func (p *Packet) AddGenerator(id, column string, count int, step int64) error {
	c, err := p.attachable(id, column)
	if err != nil {
		return err
	}
	switch {
	case count < 1 || count > p.opts.MaxGeneratorCount:
		return fmt.Errorf("%w: generator count %d out of range [1, %d]", ErrInvalidEdit, count, p.opts.MaxGeneratorCount)
	case step == 0:
		return fmt.Errorf("%w: generator step must not be zero", ErrInvalidEdit)
	}
	if total := p.expansion(c, count); total > p.opts.MaxExpansion {
		return fmt.Errorf("%w: generators would expand to %d packets, limit %d", ErrInvalidEdit, total, p.opts.MaxExpansion)
	}
	p.toGenerate()
	c.Generator = &Generator{Count: count, Step: step}
	return nil
}

// AddMask restricts the bits of column of layer id that a generator may
// change. mask is written in the column's own format. Like AddGenerator it
// turns the packet into a generate statement.
func (p *Packet) AddMask(id, column, mask string) error {
	c, err := p.attachable(id, column)
	if err != nil {
		return err
	}
	_, width, _ := c.numeric()
	bits, mwidth, err := codec.ParseValue(c.Format, width, mask)
	if err != nil {
		return fmt.Errorf("%w: mask %q: %v", ErrInvalidEdit, mask, err)
	}
	if mwidth != width {
		return fmt.Errorf("%w: mask is %d bits wide, column %d", ErrInvalidEdit, mwidth, width)
	}
	p.toGenerate()
	c.Mask = &Mask{Value: codec.FormatValue(c.Format, width, bits), bits: bits}
	return nil
}

// attachable finds a column a generator or mask can be put on.
func (p *Packet) attachable(id, column string) (*Column, error) {
	if op := p.Control(); op == ControlSleep || op == ControlJump {
		return nil, fmt.Errorf("%w: %s statement has no layers", ErrInvalidEdit, op)
	}
	l := p.Layer(id)
	if l == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchLayer, id)
	}
	w, ok := l.(wire)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no generated columns", ErrInvalidEdit, id)
	}
	c := w.column(column)
	switch {
	case c == nil:
		return nil, fmt.Errorf("%w: %s.%s", ErrNoSuchColumn, id, column)
	case c.ReadOnly:
		return nil, fmt.Errorf("%w: %s.%s is read-only", ErrInvalidEdit, id, column)
	case !c.Format.Numeric():
		return nil, fmt.Errorf("%w: %s.%s: %v", ErrInvalidEdit, id, column, codec.ErrNotNumeric)
	}
	if _, _, err := c.numeric(); err != nil {
		return nil, fmt.Errorf("%w: %s.%s value %q: %v", ErrInvalidEdit, id, column, c.Value, err)
	}
	return c, nil
}

// expansion is the number of packets the generators expand to once c counts
// to count.
func (p *Packet) expansion(c *Column, count int) int {
	total := count
	for _, g := range p.generated() {
		if g == c {
			continue
		}
		total *= g.Generator.Count
		if total > p.opts.MaxExpansion {
			break
		}
	}
	return total
}

func (p *Packet) toGenerate() {
	if p.Control() != ControlNone {
		return
	}
	p.clearTimestamp()
	p.layers = append(p.layers, nil)
	copy(p.layers[3:], p.layers[2:])
	p.layers[2] = &Control{Op: ControlGenerate}
}

// generated returns the columns carrying a generator, outermost layer first.
func (p *Packet) generated() []*Column {
	var out []*Column
	for _, w := range p.wireLayers() {
		for _, c := range w.Columns() {
			if c.Generator != nil {
				out = append(out, c)
			}
		}
	}
	return out
}

// GenLayers returns the layers with a generator. ok is false unless the
// packet is a generate statement.
func (p *Packet) GenLayers() (ls []Layer, ok bool) {
	if p.Control() != ControlGenerate {
		return nil, false
	}
	for _, w := range p.wireLayers() {
		for _, c := range w.Columns() {
			if c.Generator != nil {
				ls = append(ls, w)
				break
			}
		}
	}
	return ls, true
}

// slot is one generated column resolved for expansion.
type slot struct {
	layer, col int
	base       *big.Int
	mask       *big.Int
	width      int
	gen        Generator
}

// Expand returns one packet per combination of generator values. Generators
// count independently: the result is their Cartesian product with the
// last generated column varying fastest. Column j of combination
// (i1..ik) is base+step*ij modulo its width, and with a mask only the
// masked bits take the new value. The packets keep the generate statement
// but carry no generators or masks.
func (p *Packet) Expand() ([]*Packet, error) {
	if p.Control() != ControlGenerate {
		return nil, fmt.Errorf("%w: pid %d is not a generate statement", ErrInvalidEdit, p.PID())
	}
	slots, total, err := p.slots()
	if err != nil {
		return nil, err
	}
	if total > p.opts.MaxExpansion {
		return nil, fmt.Errorf("%w: pid %d expands to %d packets, limit %d", ErrInvalidEdit, p.PID(), total, p.opts.MaxExpansion)
	}

	tmpl := p.Clone()
	for _, w := range tmpl.wireLayers() {
		for _, c := range w.Columns() {
			c.Generator, c.Mask = nil, nil
		}
	}

	out := make([]*Packet, 0, total)
	idx := make([]int, len(slots))
	for n := 0; n < total; n++ {
		v := tmpl.Clone()
		for j, s := range slots {
			c := v.layers[s.layer].Columns()[s.col]
			c.Value = codec.FormatValue(c.Format, s.width, s.value(idx[j]))
		}
		out = append(out, v)

		// odometer, last slot fastest
		for j := len(idx) - 1; j >= 0; j-- {
			idx[j]++
			if idx[j] < slots[j].gen.Count {
				break
			}
			idx[j] = 0
		}
	}
	return out, nil
}

func (p *Packet) slots() ([]slot, int, error) {
	var slots []slot
	total := 1
	for i, l := range p.layers {
		w, ok := l.(wire)
		if !ok {
			continue
		}
		for j, c := range w.Columns() {
			if c.Generator == nil {
				continue
			}
			base, width, err := c.numeric()
			if err != nil {
				return nil, 0, fmt.Errorf("%w: %s.%s value %q: %v", ErrInvalidEdit, w.ID(), c.Name, c.Value, err)
			}
			s := slot{layer: i, col: j, base: base, width: width, gen: *c.Generator}
			if c.Mask != nil {
				s.mask = c.Mask.Bits()
			}
			slots = append(slots, s)
			if total *= c.Generator.Count; total > p.opts.MaxExpansion {
				return slots, total, nil
			}
		}
	}
	return slots, total, nil
}

// value is the column value at iteration i.
func (s slot) value(i int) *big.Int {
	mod := new(big.Int).Lsh(big.NewInt(1), uint(s.width))
	v := new(big.Int).Mul(big.NewInt(s.gen.Step), big.NewInt(int64(i)))
	v.Add(v, s.base)
	v.Mod(v, mod)
	if s.mask == nil {
		return v
	}
	// 保留未被掩码选中的位
	keep := new(big.Int).AndNot(s.base, s.mask)
	return keep.Or(keep, v.And(v, s.mask))
}
