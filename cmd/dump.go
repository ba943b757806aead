package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/srun-soft/hexcap/internal/capture"
	"github.com/srun-soft/hexcap/internal/record"
	"github.com/srun-soft/hexcap/internal/report"
)

const formatTable = "table"

var (
	dumpPID    uint64
	dumpFormat string
)

var dumpCmd = &cobra.Command{
	Use:   "dump FILE",
	Short: "Show the packets of a capture file",
	Long: `Show a one line summary per packet, or every layer and column of one
packet with --pid.

Examples:
  hexcap dump in.pcap
  hexcap dump in.pcap --pid 3
  hexcap dump in.pcap --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDump(cmd.OutOrStdout(), args[0], dumpPID, dumpFormat)
	},
}

func init() {
	dumpCmd.Flags().Uint64Var(&dumpPID, "pid", 0, "packet to show in full")
	dumpCmd.Flags().StringVarP(&dumpFormat, "format", "f", formatTable, "output format: table, json or yaml")
}

func runDump(w io.Writer, path string, pid uint64, format string) error {
	c, err := open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	if pid == 0 {
		rec := record.FromCapture(c)
		if format == formatTable {
			report.Summary(w, rec)
			return nil
		}
		return record.Encode(w, format, rec)
	}

	p, err := c.Packet(pid)
	if err != nil {
		return err
	}
	rec := record.FromPacket(p)
	if format == formatTable {
		report.Layers(w, rec)
		return nil
	}
	return record.Encode(w, format, rec)
}

func save(w io.Writer, c *capture.Capture, output string) error {
	n, err := c.Save(output)
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", output, err)
	}
	fmt.Fprintf(w, "saved %d records to %s\n", n, output)
	return nil
}
