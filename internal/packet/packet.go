// Package packet is the editable model of one captured frame: an ordered
// sequence of layers decoded by the codec, edits on that sequence,
// generator expansion and reconstruction back into wire bytes.
package packet

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"
	"github.com/srun-soft/hexcap/configs"
	"github.com/srun-soft/hexcap/internal/codec"
)

var (
	ErrSizeViolation = errors.New("packet size out of bounds")
	ErrEncode        = errors.New("layer cannot be encoded")
	ErrInvalidEdit   = errors.New("invalid edit")
	ErrNoSuchLayer   = errors.New("no such layer")
	ErrNoSuchColumn  = errors.New("no such column")
)

// Packet is one record of a capture. It always starts with its Identity and
// Timestamp layers.
type Packet struct {
	layers  []Layer
	minSize int
	maxSize int
	opts    Options
}

// New decodes data captured on link. Only an unknown link type is an
// error; anything the codec cannot follow ends in a Leftover layer.
func New(data []byte, link layers.LinkType, ts time.Time, pid uint64, opts Options) (*Packet, error) {
	kind, err := codec.LinkKind(link, data)
	if err != nil {
		return nil, err
	}
	p := &Packet{
		layers:  []Layer{&Identity{pid: pid}, &Timestamp{t: ts}},
		minSize: len(data),
		maxSize: max(opts.MTU, len(data)),
		opts:    opts,
	}
	p.decompose(kind, data)
	return p, nil
}

// decompose peels headers outer to inner, following each frame's Next.
func (p *Packet) decompose(kind codec.Kind, data []byte) {
	log := configs.Log.WithFields(logrus.Fields{
		"component": "packet",
		"category":  "decode",
	})
	for len(data) > 0 {
		f, err := codec.Decode(kind, data)
		if err != nil {
			log.Debugf("pid %d: %v, keeping %d bytes", p.PID(), err, len(data))
			p.layers = append(p.layers, NewLeftover(data))
			return
		}
		l := newProtocol(f.Kind, f.Fields, f.Trailer)
		l.id = p.uniqueID(l.id)
		p.layers = append(p.layers, l)

		next, payload, err := f.Next()
		if err != nil {
			log.Debugf("pid %d: %v, keeping %d bytes", p.PID(), err, len(payload))
			p.layers = append(p.layers, NewLeftover(payload))
			return
		}
		if next == codec.KindNone {
			return
		}
		kind, data = next, payload
	}
}

// uniqueID returns base, or base with the first free -N suffix.
func (p *Packet) uniqueID(base string) string {
	if !p.HasLayer(base) {
		return base
	}
	for n := 2; ; n++ {
		id := fmt.Sprintf("%s-%d", base, n)
		if !p.HasLayer(id) {
			return id
		}
	}
}

// PID returns the packet number.
func (p *Packet) PID() uint64 {
	return p.layers[0].(*Identity).pid
}

// Timestamp returns the capture time, zero for control statements.
func (p *Packet) Timestamp() time.Time {
	return p.layers[1].(*Timestamp).t
}

func (p *Packet) clearTimestamp() {
	p.layers[1].(*Timestamp).t = time.Time{}
}

// Layers returns the layer sequence. The slice is a copy; the layers are not.
func (p *Packet) Layers() []Layer {
	return append([]Layer(nil), p.layers...)
}

// Layer returns the layer with id, or nil.
func (p *Packet) Layer(id string) Layer {
	if i := p.Index(id); i >= 0 {
		return p.layers[i]
	}
	return nil
}

// HasLayer reports whether a layer with id exists.
func (p *Packet) HasLayer(id string) bool {
	return p.Index(id) >= 0
}

// Index returns the position of the layer with id, or -1.
func (p *Packet) Index(id string) int {
	for i, l := range p.layers {
		if l.ID() == id {
			return i
		}
	}
	return -1
}

// Control returns the packet's control statement kind, ControlNone for a
// plain frame.
func (p *Packet) Control() ControlOp {
	if c := p.controlLayer(); c != nil {
		return c.Op
	}
	return ControlNone
}

// ControlLayer returns the control statement, or nil.
func (p *Packet) ControlLayer() *Control {
	if c := p.controlLayer(); c != nil {
		cc := *c
		return &cc
	}
	return nil
}

func (p *Packet) controlLayer() *Control {
	for _, l := range p.layers {
		if c, ok := l.(*Control); ok {
			return c
		}
	}
	return nil
}

// firstWire is the index of the first layer that produces bytes.
func (p *Packet) firstWire() int {
	if p.controlLayer() != nil {
		return 3
	}
	return 2
}

func (p *Packet) wireLayers() []wire {
	var out []wire
	for _, l := range p.layers {
		if w, ok := l.(wire); ok {
			out = append(out, w)
		}
	}
	return out
}

func (p *Packet) leftover() *Leftover {
	if l, ok := p.layers[len(p.layers)-1].(*Leftover); ok {
		return l
	}
	return nil
}

// MinSize is the length the encoded packet is zero-padded up to.
func (p *Packet) MinSize() int { return p.minSize }

// MaxSize is the length the encoded packet must not exceed.
func (p *Packet) MaxSize() int { return p.maxSize }

// SetMinSize sets the minimum size; it may not exceed the maximum.
func (p *Packet) SetMinSize(n int) error {
	return p.SetSizeRange(n, p.maxSize)
}

// SetMaxSize sets the maximum size; it may not be below the minimum.
func (p *Packet) SetMaxSize(n int) error {
	return p.SetSizeRange(p.minSize, n)
}

// SetSizeRange sets both bounds at once.
func (p *Packet) SetSizeRange(minSize, maxSize int) error {
	if err := CheckSizeRange(minSize, maxSize); err != nil {
		return err
	}
	p.minSize, p.maxSize = minSize, maxSize
	return nil
}

// CheckSizeRange validates a pair of size bounds.
func CheckSizeRange(minSize, maxSize int) error {
	switch {
	case minSize < 0:
		return fmt.Errorf("%w: negative minimum size %d", ErrInvalidEdit, minSize)
	case maxSize < 1:
		return fmt.Errorf("%w: maximum size %d", ErrInvalidEdit, maxSize)
	case minSize > maxSize:
		return fmt.Errorf("%w: minimum size %d above maximum %d", ErrInvalidEdit, minSize, maxSize)
	}
	return nil
}

// Clone returns a deep copy sharing nothing mutable with p.
func (p *Packet) Clone() *Packet {
	c := &Packet{
		layers:  make([]Layer, len(p.layers)),
		minSize: p.minSize,
		maxSize: p.maxSize,
		opts:    p.opts,
	}
	for i, l := range p.layers {
		c.layers[i] = cloneLayer(l)
	}
	return c
}

// WithPID returns a deep copy numbered pid.
func (p *Packet) WithPID(pid uint64) *Packet {
	c := p.Clone()
	c.layers[0] = &Identity{pid: pid}
	return c
}

func cloneLayer(l Layer) Layer {
	switch l := l.(type) {
	case *Identity:
		return &Identity{pid: l.pid}
	case *Timestamp:
		return &Timestamp{t: l.t}
	case *Control:
		c := *l
		return &c
	case *Protocol:
		return l.clone()
	case *Leftover:
		return l.clone()
	}
	panic(fmt.Sprintf("packet: unknown layer %T", l))
}
