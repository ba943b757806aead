// Package report renders exported packets as tables.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/srun-soft/hexcap/internal/record"
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	return table
}

// Summary 抓包概览, one row per packet.
func Summary(w io.Writer, c record.Capture) {
	if c.Path != "" {
		fmt.Fprintf(w, "%s (%s), %d packets\n", c.Path, c.Link, len(c.Packets))
	}
	table := newTable(w, []string{"PID", "Time", "Length", "Size", "Control", "RW", "Layers"})
	for _, p := range c.Packets {
		var ids []string
		for _, l := range p.Layers[2:] {
			ids = append(ids, l.ID)
		}
		table.Append([]string{
			strconv.FormatUint(p.PID, 10),
			p.Timestamp,
			length(p),
			fmt.Sprintf("%d-%d", p.MinSize, p.MaxSize),
			p.Control,
			strconv.FormatBool(p.RW),
			strings.Join(ids, " / "),
		})
	}
	table.Render()
}

func length(p record.Packet) string {
	if p.Length == 0 {
		return "-"
	}
	return strconv.Itoa(p.Length)
}

// Layers prints every column of one packet. The layer id is only written
// on its first row.
func Layers(w io.Writer, p record.Packet) {
	fmt.Fprintf(w, "packet %d, %s bytes\n", p.PID, length(p))
	table := newTable(w, []string{"Layer", "Column", "Value", "Format", "RO", "Generator", "Mask"})
	for _, l := range p.Layers {
		for i, c := range l.Columns {
			id := ""
			if i == 0 {
				id = l.ID
			}
			gen := ""
			if c.Generator != nil {
				gen = fmt.Sprintf("%d x %+d", c.Generator.Count, c.Generator.Step)
			}
			ro := ""
			if c.ReadOnly {
				ro = "*"
			}
			table.Append([]string{id, c.Name, c.Value, c.Format, ro, gen, c.Mask})
		}
	}
	table.Render()
}

// Check lists the packets that cannot be written and returns how many
// there are.
func Check(w io.Writer, c record.Capture) int {
	table := newTable(w, []string{"PID", "Control", "Error"})
	bad := 0
	for _, p := range c.Packets {
		if p.RW && p.Error == "" {
			continue
		}
		bad++
		reason := p.Error
		if !p.RW && reason == "" {
			reason = "not writable"
		}
		table.Append([]string{strconv.FormatUint(p.PID, 10), p.Control, reason})
	}
	if bad == 0 {
		fmt.Fprintf(w, "all %d packets writable\n", len(c.Packets))
		return 0
	}
	table.Render()
	return bad
}
