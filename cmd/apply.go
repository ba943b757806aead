package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/srun-soft/hexcap/internal/script"
)

var (
	applyScript string
	applyOutput string
)

var applyCmd = &cobra.Command{
	Use:   "apply FILE",
	Short: "Apply an edit script to a capture file",
	Long: `Apply the steps of a YAML edit script in order and save the result.
Nothing is saved when a step fails or a packet cannot be encoded.
Without --output the input file is replaced.

Examples:
  hexcap apply in.pcap -s edits.yaml
  hexcap apply in.pcap -s edits.yaml -o out.pcap`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApply(cmd.OutOrStdout(), args[0], applyScript, applyOutput)
	},
}

func init() {
	applyCmd.Flags().StringVarP(&applyScript, "script", "s", "", "edit script (required)")
	applyCmd.Flags().StringVarP(&applyOutput, "output", "o", "", "output file, defaults to the input file")
	applyCmd.MarkFlagRequired("script")
}

func runApply(w io.Writer, path, scriptPath, output string) error {
	s, err := script.Load(scriptPath)
	if err != nil {
		return fmt.Errorf("failed to load script: %w", err)
	}
	c, err := open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	if err := s.Apply(c); err != nil {
		return err
	}
	if output == "" {
		output = path
	}
	return save(w, c, output)
}
