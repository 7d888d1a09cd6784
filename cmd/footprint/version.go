package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version information for footprint
var (
	// Version is the current version of footprint
	// Update this for major.minor.patch changes:
	// - Major: Breaking changes to output files or configuration
	// - Minor: New features, backwards compatible
	// - Patch: Bug fixes, backwards compatible
	Version = "1.0.0"

	// BuildDate is set during build time
	BuildDate = "dev"

	// GitCommit is set during build time
	GitCommit = "dev"
)

// GetVersionInfo returns formatted version information
func GetVersionInfo() string {
	if BuildDate != "dev" && GitCommit != "dev" {
		return Version + " (" + GitCommit + ", built " + BuildDate + ")"
	}
	return Version + " (dev build)"
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "footprint %s\n", GetVersionInfo())
		},
	}
}
