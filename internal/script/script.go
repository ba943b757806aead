// Package script applies a YAML list of edit steps to a capture.
//
//	steps:
//	  - op: add-generator
//	    pid: 1
//	    layer: ipv4
//	    column: ttl
//	    count: 16
//	    step: 1
//	  - op: set-size-range
//	    min: 60
//	    max: 1500
package script

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srun-soft/hexcap/configs"
	"github.com/srun-soft/hexcap/internal/capture"
	"github.com/srun-soft/hexcap/internal/codec"
	"github.com/srun-soft/hexcap/internal/packet"
	"gopkg.in/yaml.v3"
)

var ErrBadStep = errors.New("bad step")

// Step operations
const (
	OpSetColumn    = "set-column"
	OpAppendLayer  = "append-layer"
	OpInsertLayer  = "insert-layer"
	OpDeleteLayer  = "delete-layer"
	OpAddGenerator = "add-generator"
	OpAddMask      = "add-mask"
	OpSleep        = "sleep"
	OpJump         = "jump"
	OpSetMinSize   = "set-min-size"
	OpSetMaxSize   = "set-max-size"
	OpSetSizeRange = "set-size-range"
	OpRemove       = "remove"
	OpDuplicate    = "duplicate"
)

var ops = map[string]bool{
	OpSetColumn: true, OpAppendLayer: true, OpInsertLayer: true, OpDeleteLayer: true,
	OpAddGenerator: true, OpAddMask: true, OpSleep: true, OpJump: true,
	OpSetMinSize: true, OpSetMaxSize: true, OpSetSizeRange: true, OpRemove: true, OpDuplicate: true,
}

// leftoverKind names a raw tail in append-layer and insert-layer.
const leftoverKind = "leftovers"

type Script struct {
	Steps []Step `yaml:"steps"`
}

// Step is one edit. Which fields matter depends on Op. A size step without
// a pid applies to every packet.
type Step struct {
	Op     string `yaml:"op"`
	PID    uint64 `yaml:"pid,omitempty"`
	Layer  string `yaml:"layer,omitempty"`
	Column string `yaml:"column,omitempty"`
	Value  string `yaml:"value,omitempty"`

	// append-layer, insert-layer
	Kind   string `yaml:"kind,omitempty"`
	Before string `yaml:"before,omitempty"`

	// add-generator, add-mask
	Count int    `yaml:"count,omitempty"`
	By    int64  `yaml:"step,omitempty"`
	Mask  string `yaml:"mask,omitempty"`

	Duration string `yaml:"duration,omitempty"`
	Target   uint64 `yaml:"target,omitempty"`
	Min      int    `yaml:"min,omitempty"`
	Max      int    `yaml:"max,omitempty"`
}

// Load reads a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a script. Unknown keys are errors.
func Parse(data []byte) (*Script, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var s Script
	if err := dec.Decode(&s); err != nil && err != io.EOF {
		return nil, err
	}
	return &s, nil
}

// Apply runs the steps in order and stops at the first one that fails.
// Steps before it stay applied.
func (s *Script) Apply(c *capture.Capture) error {
	log := configs.Log.WithFields(logrus.Fields{
		"component": "script",
		"category":  "apply",
	})
	for i, st := range s.Steps {
		if err := st.apply(c); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, st.Op, err)
		}
		log.Debugf("step %d: %s pid %d", i+1, st.Op, st.PID)
	}
	log.Infof("applied %d steps", len(s.Steps))
	return nil
}

func (st Step) apply(c *capture.Capture) error {
	if !ops[st.Op] {
		return fmt.Errorf("%w: unknown op %q", ErrBadStep, st.Op)
	}
	switch st.Op {
	case OpSetMinSize:
		return st.sizes(c, func(p *packet.Packet) error { return p.SetMinSize(st.Min) }, func() error { return c.SetMinSize(st.Min) })
	case OpSetMaxSize:
		return st.sizes(c, func(p *packet.Packet) error { return p.SetMaxSize(st.Max) }, func() error { return c.SetMaxSize(st.Max) })
	case OpSetSizeRange:
		return st.sizes(c, func(p *packet.Packet) error { return p.SetSizeRange(st.Min, st.Max) }, func() error { return c.SetSizeRange(st.Min, st.Max) })
	case OpRemove:
		return c.Remove(st.PID)
	case OpDuplicate:
		_, err := c.Duplicate(st.PID)
		return err
	case OpJump:
		return c.MakeJump(st.PID, st.Target)
	}

	p, err := c.Packet(st.PID)
	if err != nil {
		return err
	}
	switch st.Op {
	case OpSetColumn:
		return p.SetColumn(st.Layer, st.Column, st.Value)
	case OpAppendLayer:
		l, err := st.newLayer()
		if err != nil {
			return err
		}
		return p.AppendLayer(l)
	case OpInsertLayer:
		pos := p.Index(st.Before)
		if pos < 0 {
			return fmt.Errorf("%w: %q", packet.ErrNoSuchLayer, st.Before)
		}
		l, err := st.newLayer()
		if err != nil {
			return err
		}
		return p.InsertLayer(pos, l)
	case OpDeleteLayer:
		return p.DeleteLayer(st.Layer)
	case OpAddGenerator:
		return p.AddGenerator(st.Layer, st.Column, st.Count, st.By)
	case OpAddMask:
		return p.AddMask(st.Layer, st.Column, st.Mask)
	case OpSleep:
		d, err := time.ParseDuration(st.Duration)
		if err != nil {
			return fmt.Errorf("%w: duration: %v", ErrBadStep, err)
		}
		return p.MakeSleep(d)
	}
	return nil
}

func (st Step) sizes(c *capture.Capture, one func(*packet.Packet) error, all func() error) error {
	if st.PID == 0 {
		return all()
	}
	p, err := c.Packet(st.PID)
	if err != nil {
		return err
	}
	return one(p)
}

// newLayer builds the layer named by Kind. A leftovers layer takes its
// bytes from Value as hex.
func (st Step) newLayer() (packet.Layer, error) {
	if st.Kind == leftoverKind {
		b, err := hex.DecodeString(st.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: leftovers value: %v", ErrBadStep, err)
		}
		return packet.NewLeftover(b), nil
	}
	kind, ok := codec.KindByName(st.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: unknown layer kind %q", ErrBadStep, st.Kind)
	}
	return packet.NewProtocol(kind)
}
