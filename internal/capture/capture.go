// Package capture holds the packets of one capture file and persists them.
package capture

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/sirupsen/logrus"
	"github.com/srun-soft/hexcap/configs"
	"github.com/srun-soft/hexcap/internal/packet"
)

var (
	ErrNotWritable    = errors.New("not all packets are writable")
	ErrNoSuchPacket   = errors.New("no such packet")
	ErrMixedLinkTypes = errors.New("packets of more than one link type")
	ErrBadJump        = errors.New("bad jump target")
)

const defaultSnaplen = 65535

// pcapng section header block type
var ngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

// Capture is an ordered list of packets sharing one link type.
type Capture struct {
	Path string
	Link layers.LinkType

	packets []*packet.Packet
	opts    packet.Options
	lastPID uint64
}

// New returns an empty capture of link.
func New(link layers.LinkType, opts packet.Options) *Capture {
	return &Capture{Link: link, opts: opts}
}

// Open loads a pcap or pcapng file.
func Open(path string, opts packet.Options) (*Capture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c, err := Read(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.Path = path
	configs.Log.WithFields(logrus.Fields{
		"component": "capture",
		"category":  "load",
	}).Infof("loaded %d packets from %s (%s)", c.Len(), path, c.Link)
	return c, nil
}

type source interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Read decodes every record of a pcap or pcapng stream. Packets are
// numbered from 1 in file order.
func Read(r io.Reader, opts packet.Options) (*Capture, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("reading file header: %w", err)
	}

	var (
		src    source
		linkOf func(ci gopacket.CaptureInfo) layers.LinkType
	)
	if bytes.Equal(magic, ngMagic) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, err
		}
		src = ng
		linkOf = func(ci gopacket.CaptureInfo) layers.LinkType {
			if ifc, err := ng.Interface(ci.InterfaceIndex); err == nil {
				return ifc.LinkType
			}
			return ng.LinkType()
		}
	} else {
		pr, err := pcapgo.NewReader(br)
		if err != nil {
			return nil, err
		}
		src = pr
		linkOf = func(gopacket.CaptureInfo) layers.LinkType { return pr.LinkType() }
	}

	c := New(src.LinkType(), opts)
	for {
		data, ci, err := src.ReadPacketData()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", c.lastPID+1, err)
		}
		if link := linkOf(ci); link != c.Link {
			return nil, fmt.Errorf("%w: %s and %s", ErrMixedLinkTypes, c.Link, link)
		}
		if _, err := c.Add(data, ci.Timestamp); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add decodes data as the next packet.
func (c *Capture) Add(data []byte, ts time.Time) (*packet.Packet, error) {
	p, err := packet.New(data, c.Link, ts, c.lastPID+1, c.opts)
	if err != nil {
		return nil, err
	}
	c.lastPID++
	c.packets = append(c.packets, p)
	return p, nil
}

// Len is the number of packets.
func (c *Capture) Len() int { return len(c.packets) }

// Packets returns the packets in order.
func (c *Capture) Packets() []*packet.Packet {
	return append([]*packet.Packet(nil), c.packets...)
}

// Packet returns the packet numbered pid.
func (c *Capture) Packet(pid uint64) (*packet.Packet, error) {
	i, err := c.index(pid)
	if err != nil {
		return nil, err
	}
	return c.packets[i], nil
}

func (c *Capture) index(pid uint64) (int, error) {
	for i, p := range c.packets {
		if p.PID() == pid {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %d", ErrNoSuchPacket, pid)
}

// SetMinSize sets the minimum size of every packet. Nothing changes unless
// every packet accepts it.
func (c *Capture) SetMinSize(n int) error {
	return c.setSizes(func(p *packet.Packet) (int, int) { return n, p.MaxSize() })
}

// SetMaxSize sets the maximum size of every packet, all or nothing.
func (c *Capture) SetMaxSize(n int) error {
	return c.setSizes(func(p *packet.Packet) (int, int) { return p.MinSize(), n })
}

// SetSizeRange sets both bounds of every packet, all or nothing.
func (c *Capture) SetSizeRange(minSize, maxSize int) error {
	return c.setSizes(func(*packet.Packet) (int, int) { return minSize, maxSize })
}

func (c *Capture) setSizes(bounds func(p *packet.Packet) (int, int)) error {
	for _, p := range c.packets {
		if err := packet.CheckSizeRange(bounds(p)); err != nil {
			return fmt.Errorf("pid %d: %w", p.PID(), err)
		}
	}
	for _, p := range c.packets {
		// checked above
		_ = p.SetSizeRange(bounds(p))
	}
	return nil
}

// Remove deletes the packet pid. A packet that is the target of a jump
// cannot be removed.
func (c *Capture) Remove(pid uint64) error {
	i, err := c.index(pid)
	if err != nil {
		return err
	}
	for _, p := range c.packets {
		if j := p.ControlLayer(); j != nil && j.Op == packet.ControlJump && j.Target == pid {
			return fmt.Errorf("%w: pid %d jumps to %d", ErrBadJump, p.PID(), pid)
		}
	}
	c.packets = append(c.packets[:i], c.packets[i+1:]...)
	return nil
}

// Duplicate inserts a copy of packet pid right after it. The copy gets the
// next free packet number.
func (c *Capture) Duplicate(pid uint64) (*packet.Packet, error) {
	i, err := c.index(pid)
	if err != nil {
		return nil, err
	}
	c.lastPID++
	dup := c.packets[i].WithPID(c.lastPID)
	c.packets = append(c.packets, nil)
	copy(c.packets[i+2:], c.packets[i+1:])
	c.packets[i+1] = dup
	return dup, nil
}

// MakeJump turns packet pid into a jump to target, which must exist.
func (c *Capture) MakeJump(pid, target uint64) error {
	p, err := c.Packet(pid)
	if err != nil {
		return err
	}
	if _, err := c.index(target); err != nil {
		return fmt.Errorf("%w: %v", ErrBadJump, err)
	}
	return p.MakeJump(target)
}

// RW reports whether every packet can be written.
func (c *Capture) RW() bool {
	for _, p := range c.packets {
		if !p.RW() {
			return false
		}
	}
	return true
}

type record struct {
	ci   gopacket.CaptureInfo
	data []byte
}

// records encodes every packet. Generate statements are expanded and take
// the time of the last captured packet before them, as does a packet whose
// generate statement was deleted and left it without a time. Sleep and
// jump statements have no wire form and are skipped.
func (c *Capture) records() ([]record, error) {
	log := configs.Log.WithFields(logrus.Fields{
		"component": "capture",
		"category":  "save",
	})
	var (
		out  []record
		last time.Time
	)
	add := func(p *packet.Packet, ts time.Time) error {
		data, err := p.Data()
		if err != nil {
			return err
		}
		if ts.IsZero() {
			ts = time.Unix(0, 0).UTC()
		}
		out = append(out, record{
			ci:   gopacket.CaptureInfo{Timestamp: ts, CaptureLength: len(data), Length: len(data)},
			data: data,
		})
		return nil
	}

	for _, p := range c.packets {
		switch op := p.Control(); op {
		case packet.ControlNone:
			if ts := p.Timestamp(); !ts.IsZero() {
				last = ts
			}
			if err := add(p, last); err != nil {
				return nil, err
			}
		case packet.ControlGenerate:
			variants, err := p.Expand()
			if err != nil {
				return nil, err
			}
			for _, v := range variants {
				if err := add(v, last); err != nil {
					return nil, err
				}
			}
			log.Debugf("pid %d expanded to %d packets", p.PID(), len(variants))
		case packet.ControlJump:
			if _, err := c.index(p.ControlLayer().Target); err != nil {
				return nil, fmt.Errorf("pid %d: %w: %v", p.PID(), ErrBadJump, err)
			}
			log.Warnf("pid %d: %s statement is not written", p.PID(), op)
		default:
			log.Warnf("pid %d: %s statement is not written", p.PID(), op)
		}
	}
	return out, nil
}

// Write encodes the capture as a pcap stream. Nothing is written unless
// every packet encodes.
func (c *Capture) Write(w io.Writer) (int, error) {
	if !c.RW() {
		return 0, ErrNotWritable
	}
	recs, err := c.records()
	if err != nil {
		return 0, err
	}
	snaplen := defaultSnaplen
	for _, r := range recs {
		snaplen = max(snaplen, len(r.data))
	}

	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(uint32(snaplen), c.Link); err != nil {
		return 0, err
	}
	for i, r := range recs {
		if err := pw.WritePacket(r.ci, r.data); err != nil {
			return i, err
		}
	}
	return len(recs), nil
}

// Save writes the capture to path through a temporary file in the same
// directory, so a failed save leaves any existing file untouched. It
// returns the number of records written.
func (c *Capture) Save(path string) (int, error) {
	if !c.RW() {
		return 0, ErrNotWritable
	}
	var buf bytes.Buffer
	n, err := c.Write(&buf)
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return 0, err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, err
	}

	configs.Log.WithFields(logrus.Fields{
		"component": "capture",
		"category":  "save",
	}).Infof("wrote %d records to %s", n, path)
	return n, nil
}
