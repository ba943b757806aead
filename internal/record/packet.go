// Package record converts packets into plain structs for export.
package record

import (
	"time"

	"github.com/srun-soft/hexcap/internal/capture"
	"github.com/srun-soft/hexcap/internal/packet"
)

type Capture struct {
	Path    string   `json:"path,omitempty" yaml:"path,omitempty"`
	Link    string   `json:"link" yaml:"link"`
	RW      bool     `json:"rw" yaml:"rw"`
	Packets []Packet `json:"packets" yaml:"packets"`
}

// Packet is one packet as the operator sees it. Length is the encoded size
// and is left zero when the packet does not encode; Error says why.
type Packet struct {
	PID       uint64  `json:"pid" yaml:"pid"`
	Timestamp string  `json:"tstamp,omitempty" yaml:"tstamp,omitempty"`
	Control   string  `json:"control,omitempty" yaml:"control,omitempty"`
	MinSize   int     `json:"min_size" yaml:"min_size"`
	MaxSize   int     `json:"max_size" yaml:"max_size"`
	Length    int     `json:"length,omitempty" yaml:"length,omitempty"`
	RW        bool    `json:"rw" yaml:"rw"`
	Error     string  `json:"error,omitempty" yaml:"error,omitempty"`
	Layers    []Layer `json:"layers" yaml:"layers"`
}

type Layer struct {
	ID      string   `json:"id" yaml:"id"`
	Kind    string   `json:"kind" yaml:"kind"`
	Columns []Column `json:"columns" yaml:"columns"`
}

type Column struct {
	Name      string     `json:"name" yaml:"name"`
	Value     string     `json:"value" yaml:"value"`
	Format    string     `json:"format" yaml:"format"`
	Width     int        `json:"width,omitempty" yaml:"width,omitempty"`
	ReadOnly  bool       `json:"read_only,omitempty" yaml:"read_only,omitempty"`
	Generator *Generator `json:"generator,omitempty" yaml:"generator,omitempty"`
	Mask      string     `json:"mask,omitempty" yaml:"mask,omitempty"`
}

type Generator struct {
	Count int   `json:"count" yaml:"count"`
	Step  int64 `json:"step" yaml:"step"`
}

// FromCapture converts every packet of c.
func FromCapture(c *capture.Capture) Capture {
	out := Capture{
		Path:    c.Path,
		Link:    c.Link.String(),
		RW:      c.RW(),
		Packets: make([]Packet, 0, c.Len()),
	}
	for _, p := range c.Packets() {
		out.Packets = append(out.Packets, FromPacket(p))
	}
	return out
}

// FromPacket converts p. Sleep and jump statements have no length.
func FromPacket(p *packet.Packet) Packet {
	out := Packet{
		PID:     p.PID(),
		MinSize: p.MinSize(),
		MaxSize: p.MaxSize(),
		RW:      p.RW(),
	}
	if ts := p.Timestamp(); !ts.IsZero() {
		out.Timestamp = ts.UTC().Format(time.RFC3339Nano)
	}
	switch op := p.Control(); op {
	case packet.ControlNone, packet.ControlGenerate:
		if op == packet.ControlGenerate {
			out.Control = op.String()
		}
		if data, err := p.Data(); err != nil {
			out.Error = err.Error()
		} else {
			out.Length = len(data)
		}
	default:
		out.Control = op.String()
	}
	for _, l := range p.Layers() {
		out.Layers = append(out.Layers, fromLayer(l))
	}
	return out
}

func fromLayer(l packet.Layer) Layer {
	out := Layer{ID: l.ID(), Kind: kindOf(l)}
	for _, c := range l.Columns() {
		col := Column{
			Name:     c.Name,
			Value:    c.Value,
			Format:   c.Format.String(),
			Width:    c.Width,
			ReadOnly: c.ReadOnly,
		}
		if c.Generator != nil {
			col.Generator = &Generator{Count: c.Generator.Count, Step: c.Generator.Step}
		}
		if c.Mask != nil {
			col.Mask = c.Mask.Value
		}
		out.Columns = append(out.Columns, col)
	}
	return out
}

func kindOf(l packet.Layer) string {
	switch l := l.(type) {
	case *packet.Identity:
		return "identity"
	case *packet.Timestamp:
		return "timestamp"
	case *packet.Control:
		return "control"
	case *packet.Protocol:
		return l.Kind().String()
	case *packet.Leftover:
		return "leftover"
	}
	return "unknown"
}
