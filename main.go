// Package main is the entry point of hexcap.
package main

import (
	"fmt"
	"os"

	"github.com/srun-soft/hexcap/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
