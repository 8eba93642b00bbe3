package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("chatforia-signal %s\n", version)
		fmt.Printf("  commit:     %s\n", commit)
		fmt.Printf("  go version: %s\n", runtime.Version())
	},
}
