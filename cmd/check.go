package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/srun-soft/hexcap/internal/record"
	"github.com/srun-soft/hexcap/internal/report"
)

var checkCmd = &cobra.Command{
	Use:   "check FILE",
	Short: "Report the packets that cannot be written",
	Long: `Encode every packet of a capture file and list the ones that fail.
Exits with code 1 when any packet fails.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		bad, err := runCheck(cmd.OutOrStdout(), args[0])
		if err != nil {
			exitWithError("check failed", err)
		}
		if bad > 0 {
			exitWithError(fmt.Sprintf("%d packets are not writable", bad), nil)
		}
	},
}

func runCheck(w io.Writer, path string) (int, error) {
	c, err := open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return report.Check(w, record.FromCapture(c)), nil
}
