package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Build-time variables set by go build -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version, commit hash, and build date of gametune.`,
	Args:  cobra.NoArgs,
	Run:   runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(_ *cobra.Command, _ []string) {
	fmt.Fprintf(stdout, "gametune %s\n", version)
	fmt.Fprintf(stdout, "  commit:  %s\n", commit)
	fmt.Fprintf(stdout, "  built:   %s\n", date)
	fmt.Fprintf(stdout, "  go:      %s\n", runtime.Version())
	fmt.Fprintf(stdout, "  os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
