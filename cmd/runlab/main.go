package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "runlab",
	Short: "runlab - interactive code execution service",
	Long: `runlab runs untrusted Python interactively: programs print output as it
is produced and pause on input() until the client supplies a value.

It serves a websocket control channel for interactive runs, a one-shot
execution endpoint, and an image-upload endpoint with text extraction.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
