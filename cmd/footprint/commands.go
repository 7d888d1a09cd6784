package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/resistanceisuseless/footprint/internal/config"
	"github.com/resistanceisuseless/footprint/internal/logging"
	"github.com/resistanceisuseless/footprint/internal/persistence"
	"github.com/resistanceisuseless/footprint/internal/scan"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

func newScanCmd() *cobra.Command {
	f := &scanFlags{}

	cmd := &cobra.Command{
		Use:   "scan <target>",
		Short: "Resolve a target's domains and aggregate its networks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load()
			if err != nil {
				return err
			}
			if err := f.apply(cfg, cmd.Flags()); err != nil {
				return err
			}

			logger, closeLog, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			target, err := config.LoadTarget(cfg.TargetsDir, args[0])
			if errors.Is(err, config.ErrTargetNotFound) {
				logger.Warn().Str("target", args[0]).Msg("No target file found, scanning the apex and www domains only")
				target = config.DefaultTarget(args[0])
			} else if err != nil {
				logger.Error().Err(err).Msg("Failed to load target")
				return err
			}

			scanner, err := scan.NewFromConfig(cfg, target, f.Inputs, Version, logger)
			if err != nil {
				logger.Error().Err(err).Msg("Failed to set up scan")
				return err
			}
			defer scanner.Close()

			result, err := scanner.Run(cmd.Context())
			if err != nil {
				logger.Error().Err(err).Msg("Scan failed")
				return err
			}

			logger.Info().
				Str("target", result.Target).
				Int("domains", len(result.Records)).
				Int("networks", result.Networks.Count()).
				Dur("elapsed", result.Elapsed).
				Msg("Scan completed")
			return nil
		},
	}

	f.register(cmd.Flags())
	return cmd
}

func newTargetsCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "targets",
		Short: "Manage target configuration files",
	}
	g.register(cmd.PersistentFlags())

	list := &cobra.Command{
		Use:   "list",
		Short: "List available targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}

			targets, err := config.ListTargets(cfg.TargetsDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(targets) == 0 {
				fmt.Fprintf(out, "No targets in %s\n", config.ExpandHome(cfg.TargetsDir))
				return nil
			}

			red := color.New(color.FgRed)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, t := range targets {
				if t.Err != nil {
					fmt.Fprintf(tw, "%s\t%s\n", t.Name, red.Sprintf("invalid: %v", t.Err))
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\n", t.Name, t.Description)
			}
			return tw.Flush()
		},
	}

	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Write a template target file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			path, err := config.CreateTarget(cfg.TargetsDir, args[0])
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Created target %s at %s\n", args[0], path)
			return nil
		},
	}

	cmd.AddCommand(list, create)
	return cmd
}

func newInitCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				path = config.DefaultPath()
			}
			if err := config.CreateDefault(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config ready at %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "config", "c", "", "Config file to create")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	g := &globalFlags{}
	var (
		since     string
		pruneDays int
	)

	cmd := &cobra.Command{
		Use:   "history <target>",
		Short: "Show scan history and newly discovered domains",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			logger, closeLog, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			var sinceTime time.Time
			if since != "" {
				sinceTime, err = time.ParseInLocation(dateLayout, since, time.Local)
				if err != nil {
					return fmt.Errorf("invalid --since date %q, expected YYYY-MM-DD: %w", since, err)
				}
			}

			tracker, err := persistence.Open(config.ExpandHome(cfg.Persistence.Path), logging.Component(logger, "persistence"))
			if err != nil {
				return err
			}
			defer tracker.Close()

			if pruneDays > 0 {
				before := time.Now().AddDate(0, 0, -pruneDays)
				removed, err := tracker.Prune(cmd.Context(), args[0], before)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d entries not seen in %d days\n", removed, pruneDays)
			}

			return printHistory(cmd, tracker, args[0], since != "", sinceTime)
		},
	}

	g.register(cmd.Flags())
	cmd.Flags().StringVar(&since, "since", "", "List domains first seen on or after this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&pruneDays, "prune-days", 0, "Forget domains and networks not seen in this many days")
	return cmd
}

func printHistory(cmd *cobra.Command, tracker *persistence.Tracker, target string, listNew bool, since time.Time) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	header := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)

	stats, err := tracker.GetDomainStats(ctx, target)
	if err != nil {
		return err
	}

	header.Fprintf(out, "History for %s\n", stats.Target)
	if stats.Runs == 0 {
		fmt.Fprintln(out, "  No runs recorded")
		return nil
	}
	fmt.Fprintf(out, "  Runs: %d (%s .. %s)\n", stats.Runs,
		stats.FirstRun.Format(time.DateTime), stats.LastRun.Format(time.DateTime))
	fmt.Fprintf(out, "  Domains: %d (%d resolved)\n", stats.TotalDomains, stats.ResolvedDomains)
	fmt.Fprintf(out, "  Networks: %d\n", stats.TotalNetworks)

	runs, err := tracker.GetRuns(ctx, target, 10)
	if err != nil {
		return err
	}
	header.Fprintln(out, "\nRecent runs")
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  STARTED\tDOMAINS\tRESOLVED\tNEW\tIPV4 NETS\tIPV6 NETS")
	for _, r := range runs {
		fmt.Fprintf(tw, "  %s\t%d\t%d\t%d\t%d\t%d\n",
			r.StartedAt.Format(time.DateTime), r.Domains, r.Resolved, r.NewDomains, r.IPv4Networks, r.IPv6Networks)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if !listNew {
		return nil
	}

	domains, err := tracker.GetNewDomains(ctx, target, since)
	if err != nil {
		return err
	}
	header.Fprintf(out, "\nNew domains since %s: %d\n", since.Format(dateLayout), len(domains))
	for _, d := range domains {
		green.Fprintf(out, "  %s", d.Domain)
		fmt.Fprintf(out, "  (first seen %s)\n", d.FirstSeen.Format(time.DateTime))
	}
	return nil
}
