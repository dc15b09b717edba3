// Package main is the entry point for the citrascope ground-station daemon.
package main

import (
	"fmt"
	"os"

	"github.com/citra-space/citrascope/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
