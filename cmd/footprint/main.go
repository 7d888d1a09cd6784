package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "footprint",
		Short: "Map an organization's domains to the networks it owns",
		Long: `footprint resolves a target's domains and aggregates the addresses into a
minimal set of CIDR blocks, skipping private, reserved and shared hosting ranges.

Examples:
  # Create a target file and edit its domains and privileged ranges
  footprint targets create whatsapp

  # Scan with extra domains from a file and keep history
  footprint scan whatsapp --input domains.txt --persist

  # Domains first seen since a date
  footprint history whatsapp --since 2025-01-01`,
		SilenceUsage: true,
		Version:      GetVersionInfo(),
	}

	cmd.SetVersionTemplate(fmt.Sprintf("footprint %s\n", GetVersionInfo()))

	cmd.AddCommand(
		newScanCmd(),
		newTargetsCmd(),
		newInitCmd(),
		newHistoryCmd(),
		newVersionCmd(),
	)
	return cmd
}
