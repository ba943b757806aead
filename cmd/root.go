// Package cmd implements the hexcap command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/srun-soft/hexcap/configs"
	"github.com/srun-soft/hexcap/internal/capture"
	"github.com/srun-soft/hexcap/internal/packet"
)

var (
	// Global flags
	configFile string
	debug      bool

	cfg *configs.Config
)

var rootCmd = &cobra.Command{
	Use:   "hexcap",
	Short: "hexcap - edit captured packets layer by layer",
	Long: `hexcap decodes the frames of a pcap or pcapng file into protocol layers,
applies edits to their columns and layers, expands generator rules into
families of packets and writes the result back as a pcap file.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command. It is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log at debug level")

	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(checkCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	c, err := configs.Load(configFile)
	if err != nil {
		return err
	}
	if err := configs.InitLog(c.Log, debug); err != nil {
		return err
	}
	cfg = c
	return nil
}

func packetOptions() packet.Options {
	if cfg == nil {
		return packet.DefaultOptions()
	}
	return packet.NewOptions(cfg.Packet)
}

func open(path string) (*capture.Capture, error) {
	return capture.Open(path, packetOptions())
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
