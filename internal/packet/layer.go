package packet

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"strconv"
	"time"

	"github.com/google/gopacket"
	"github.com/srun-soft/hexcap/internal/codec"
)

// Layer is one entry of a Packet: a structural marker (Identity, Timestamp,
// Control), a decoded header (Protocol) or undecoded tail bytes (Leftover).
// The set of variants is closed.
type Layer interface {
	ID() string
	Columns() []*Column
	layer()
}

// Column is one named value of a layer. A Generator or Mask on a column is
// owned by that column and goes away with its layer.
type Column struct {
	Name     string
	Value    string
	Format   codec.Format
	Width    int
	ReadOnly bool

	Generator *Generator
	Mask      *Mask
}

// Generator varies a numeric column over Count values, Step apart.
type Generator struct {
	Count int
	Step  int64
}

// Mask limits the bits of a column a Generator may change.
type Mask struct {
	Value string
	bits  *big.Int
}

// Bits returns a copy of the selected bits.
func (m *Mask) Bits() *big.Int { return new(big.Int).Set(m.bits) }

func (c *Column) clone() *Column {
	cc := *c
	if c.Generator != nil {
		g := *c.Generator
		cc.Generator = &g
	}
	if c.Mask != nil {
		cc.Mask = &Mask{Value: c.Mask.Value, bits: c.Mask.Bits()}
	}
	return &cc
}

// numeric parses the column value. width is the bit width the value occupies.
func (c *Column) numeric() (*big.Int, int, error) {
	return codec.ParseValue(c.Format, c.Width, c.Value)
}

type columns []*Column

func (cs columns) Columns() []*Column { return cs }

func (cs columns) column(name string) *Column {
	for _, c := range cs {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (cs columns) values() codec.Values {
	v := make(codec.Values, len(cs))
	for _, c := range cs {
		v[c.Name] = c.Value
	}
	return v
}

func (cs columns) clone() columns {
	out := make(columns, len(cs))
	for i, c := range cs {
		out[i] = c.clone()
	}
	return out
}

func (cs columns) hasAttachment() bool {
	for _, c := range cs {
		if c.Generator != nil || c.Mask != nil {
			return true
		}
	}
	return false
}

// Identity is the packet number, fixed at decode time.
type Identity struct {
	pid uint64
}

func (*Identity) ID() string { return "pid" }

func (l *Identity) Columns() []*Column {
	return []*Column{{Name: "pid", Value: strconv.FormatUint(l.pid, 10), Format: codec.Dec, Width: 64, ReadOnly: true}}
}

func (*Identity) layer() {}

// PID returns the packet number.
func (l *Identity) PID() uint64 { return l.pid }

// Timestamp is the capture time. It is zero once the packet is a control statement.
type Timestamp struct {
	t time.Time
}

func (*Timestamp) ID() string { return "tstamp" }

func (l *Timestamp) Columns() []*Column {
	v := ""
	if !l.t.IsZero() {
		v = l.t.Format(time.RFC3339Nano)
	}
	return []*Column{{Name: "tstamp", Value: v, Format: codec.Text}}
}

func (*Timestamp) layer() {}

// Time returns the capture time, zero when cleared.
func (l *Timestamp) Time() time.Time { return l.t }

// ControlOp is the kind of control statement a packet has become.
type ControlOp uint8

const (
	ControlNone ControlOp = iota
	ControlGenerate
	ControlSleep
	ControlJump
)

func (op ControlOp) String() string {
	switch op {
	case ControlGenerate:
		return "generate"
	case ControlSleep:
		return "sleep"
	case ControlJump:
		return "jump"
	}
	return "none"
}

// Control marks a packet as a generate, sleep or jump statement.
type Control struct {
	Op     ControlOp
	Sleep  time.Duration
	Target uint64
}

func (*Control) ID() string { return "cntrl" }

func (l *Control) Columns() []*Column {
	cols := []*Column{{Name: "c", Value: l.Op.String(), Format: codec.Text, ReadOnly: true}}
	switch l.Op {
	case ControlSleep:
		cols = append(cols, &Column{Name: "sleep", Value: l.Sleep.String(), Format: codec.Text, ReadOnly: true})
	case ControlJump:
		cols = append(cols, &Column{Name: "jump", Value: strconv.FormatUint(l.Target, 10), Format: codec.Dec, Width: 64, ReadOnly: true})
	}
	return cols
}

func (*Control) layer() {}

// Protocol is one decoded header. Its columns are the codec's fields.
type Protocol struct {
	columns
	id      string
	kind    codec.Kind
	trailer []byte
}

// NewProtocol returns a layer of kind holding the codec's default header,
// ready to be appended or inserted into a packet.
func NewProtocol(kind codec.Kind) (*Protocol, error) {
	fields, err := codec.Template(kind)
	if err != nil {
		return nil, err
	}
	return newProtocol(kind, fields, nil), nil
}

func newProtocol(kind codec.Kind, fields []codec.Field, trailer []byte) *Protocol {
	cols := make(columns, len(fields))
	for i, f := range fields {
		cols[i] = &Column{Name: f.Name, Value: f.Value, Format: f.Format, Width: f.Width, ReadOnly: f.ReadOnly}
	}
	return &Protocol{
		columns: cols,
		id:      kind.String(),
		kind:    kind,
		trailer: bytes.Clone(trailer),
	}
}

func (l *Protocol) ID() string { return l.id }

func (*Protocol) layer() {}

// Kind returns the header kind.
func (l *Protocol) Kind() codec.Kind { return l.kind }

// Column returns the named column or nil.
func (l *Protocol) Column(name string) *Column { return l.column(name) }

// Trailer returns the bytes kept past the header's own length.
func (l *Protocol) Trailer() []byte { return l.trailer }

func (l *Protocol) build() (gopacket.SerializableLayer, error) {
	return codec.Build(l.kind, l.values(), l.trailer)
}

func (l *Protocol) clone() *Protocol {
	return &Protocol{columns: l.columns.clone(), id: l.id, kind: l.kind, trailer: l.trailer}
}

// Leftover holds bytes the codec could not decode. It is always the last layer.
type Leftover struct {
	columns
}

// NewLeftover wraps raw bytes.
func NewLeftover(data []byte) *Leftover {
	return &Leftover{columns: columns{{
		Name:   "data",
		Value:  hex.EncodeToString(data),
		Format: codec.Bytes,
		Width:  len(data) * 8,
	}}}
}

func (*Leftover) ID() string { return "leftovers" }

func (*Leftover) layer() {}

// Bytes decodes the data column.
func (l *Leftover) Bytes() ([]byte, error) {
	return hex.DecodeString(l.columns[0].Value)
}

func (l *Leftover) build() (gopacket.SerializableLayer, error) {
	b, err := l.Bytes()
	if err != nil {
		return nil, err
	}
	return gopacket.Payload(b), nil
}

func (l *Leftover) clone() *Leftover {
	return &Leftover{columns: l.columns.clone()}
}

// wire is implemented by the layers that produce bytes.
type wire interface {
	Layer
	build() (gopacket.SerializableLayer, error)
	column(name string) *Column
	hasAttachment() bool
}
