package main

import (
	"os"
	"time"

	"github.com/resistanceisuseless/footprint/internal/config"
	"github.com/resistanceisuseless/footprint/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

// Flags shared by every command that reads the application config
type globalFlags struct {
	Config     string
	TargetsDir string
	LogLevel   string
	LogFile    string
	Verbose    bool
}

func (g *globalFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&g.Config, "config", "c", "", "Config file (default ~/.config/footprint/config.yaml when present)")
	fs.StringVar(&g.TargetsDir, "targets-dir", "", "Directory holding <target>.yaml files")
	fs.StringVar(&g.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&g.LogFile, "log-file", "", "Also write JSON logs to this file")
	fs.BoolVarP(&g.Verbose, "verbose", "v", false, "Verbose output (debug logging, no progress bar)")
}

// load reads the config file and applies the shared overrides.
func (g *globalFlags) load() (*config.Config, error) {
	path := g.Config
	if path == "" {
		if _, err := os.Stat(config.DefaultPath()); err == nil {
			path = config.DefaultPath()
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if g.TargetsDir != "" {
		cfg.TargetsDir = g.TargetsDir
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if g.LogFile != "" {
		cfg.Log.File = g.LogFile
	}
	cfg.Verbose = g.Verbose

	return cfg, nil
}

func newLogger(cfg *config.Config) (zerolog.Logger, func() error, error) {
	return logging.New(logging.Options{
		Level:   cfg.Log.Level,
		File:    config.ExpandHome(cfg.Log.File),
		Verbose: cfg.Verbose,
	})
}

// Scan-only overrides
type scanFlags struct {
	globalFlags

	Inputs     []string
	OutputDir  string
	Format     string
	Concurrent int
	Timeout    time.Duration
	BatchSize  int
	BatchDelay time.Duration
	Persist    bool
	Progress   bool
}

func (f *scanFlags) register(fs *pflag.FlagSet) {
	f.globalFlags.register(fs)

	fs.StringSliceVarP(&f.Inputs, "input", "i", nil, "File with additional domains, one per line (repeatable)")
	fs.StringVarP(&f.OutputDir, "output-dir", "o", "", "Directory for result files")
	fs.StringVarP(&f.Format, "format", "f", "", "Output format: json or csv")
	fs.IntVar(&f.Concurrent, "concurrent", 0, "Maximum in-flight DNS lookups")
	fs.DurationVar(&f.Timeout, "timeout", 0, "Per-query DNS timeout")
	fs.IntVar(&f.BatchSize, "batch-size", 0, "Domains per resolution batch")
	fs.DurationVar(&f.BatchDelay, "batch-delay", 0, "Pause between batches")
	fs.BoolVar(&f.Persist, "persist", false, "Record the run in the history database")
	fs.BoolVar(&f.Progress, "progress", true, "Show a progress bar")
}

// apply overrides cfg with every scan flag the user set explicitly.
func (f *scanFlags) apply(cfg *config.Config, fs *pflag.FlagSet) error {
	if fs.Changed("output-dir") {
		cfg.Output.Dir = f.OutputDir
	}
	if fs.Changed("format") {
		cfg.Output.Format = f.Format
	}
	if fs.Changed("concurrent") {
		cfg.DNS.MaxConcurrent = f.Concurrent
	}
	if fs.Changed("timeout") {
		cfg.DNS.Timeout = f.Timeout
	}
	if fs.Changed("batch-size") {
		cfg.DNS.BatchSize = f.BatchSize
	}
	if fs.Changed("batch-delay") {
		cfg.DNS.BatchDelay = f.BatchDelay
	}
	if f.Persist {
		cfg.Persistence.Enabled = true
	}
	cfg.Progress = f.Progress

	return cfg.Validate()
}
