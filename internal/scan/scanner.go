package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/resistanceisuseless/footprint/internal/config"
	"github.com/resistanceisuseless/footprint/internal/dns"
	"github.com/resistanceisuseless/footprint/internal/enumeration"
	"github.com/resistanceisuseless/footprint/internal/logging"
	"github.com/resistanceisuseless/footprint/internal/network"
	"github.com/resistanceisuseless/footprint/internal/output"
	"github.com/resistanceisuseless/footprint/internal/persistence"
	"github.com/resistanceisuseless/footprint/internal/progress"
	"github.com/resistanceisuseless/footprint/internal/summary"
	"github.com/resistanceisuseless/footprint/internal/wildcard"
	"github.com/rs/zerolog"
)

var ErrNoDomains = errors.New("no domains to scan")

// Resolver resolves a batch of domains; every input domain is present in the
// returned map.
type Resolver interface {
	ResolveBatch(ctx context.Context, domains []string) (map[string]dns.Result, error)
}

// History records a run and flags the domains seen for the first time.
type History interface {
	TrackRun(ctx context.Context, target string, records []enumeration.DomainRecord, networks network.Networks) ([]enumeration.DomainRecord, persistence.RunSummary, error)
}

type Options struct {
	Target    *config.Target
	Inputs    []string
	Resolver  Resolver
	Collector *enumeration.Collector
	Analyzer  *network.Analyzer
	Writer    *output.Writer
	// History and Wildcard are optional.
	History  History
	Wildcard *wildcard.Detector
	Progress *progress.Tracker
	// SummaryOut receives the colored summary; nil skips it.
	SummaryOut io.Writer
}

type Scanner struct {
	target     *config.Target
	inputs     []string
	resolver   Resolver
	collector  *enumeration.Collector
	analyzer   *network.Analyzer
	writer     *output.Writer
	history    History
	wildcard   *wildcard.Detector
	progress   *progress.Tracker
	summaryOut io.Writer
	closers    []func() error
	now        func() time.Time
	logger     zerolog.Logger
}

type Result struct {
	Target    string
	Records   []enumeration.DomainRecord
	Addresses []string
	Networks  network.Networks
	// WildcardZones lists the probed zones that answer for any label.
	WildcardZones []string
	Files         []string
	NewDomains    []string
	NewNetworks   []string
	Summary       *summary.Summary
	Elapsed       time.Duration
}

func New(opts Options, logger zerolog.Logger) *Scanner {
	p := opts.Progress
	if p == nil {
		p = progress.New(io.Discard, false, logger)
	}
	return &Scanner{
		target:     opts.Target,
		inputs:     opts.Inputs,
		resolver:   opts.Resolver,
		collector:  opts.Collector,
		analyzer:   opts.Analyzer,
		writer:     opts.Writer,
		history:    opts.History,
		wildcard:   opts.Wildcard,
		progress:   p,
		summaryOut: opts.SummaryOut,
		now:        time.Now,
		logger:     logger,
	}
}

// NewFromConfig wires the full pipeline for a target from the application
// configuration. Results go to <output.dir>/<target>. Call Close when done.
func NewFromConfig(cfg *config.Config, target *config.Target, inputs []string, version string, logger zerolog.Logger) (*Scanner, error) {
	tracker := progress.New(os.Stdout, cfg.Progress && !cfg.Verbose, logging.Component(logger, "progress"))

	var cache dns.Cache
	if cfg.DNS.CacheTTL > 0 {
		cache = dns.NewMemoryCache(cfg.DNS.CacheTTL)
	}

	resolver, err := dns.New(dns.Options{
		Servers:       cfg.DNS.Servers,
		Timeout:       cfg.DNS.Timeout,
		MaxConcurrent: cfg.DNS.MaxConcurrent,
		BatchSize:     cfg.DNS.BatchSize,
		BatchDelay:    cfg.DNS.BatchDelay,
		RateLimit:     cfg.DNS.RateLimit,
		Cache:         cache,
		OnBatch: func(b dns.BatchProgress) {
			tracker.Update(b.Processed)
		},
	}, logging.Component(logger, "dns"))
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver: %w", err)
	}

	outCfg := *cfg
	outCfg.Output.Dir = filepath.Join(cfg.Output.Dir, target.Name)

	opts := Options{
		Target:     target,
		Inputs:     inputs,
		Resolver:   resolver,
		Collector:  enumeration.New(logging.Component(logger, "enumeration")),
		Analyzer:   network.New(network.OptionsFromTarget(target), logging.Component(logger, "network")),
		Writer:     output.New(&outCfg, version, logging.Component(logger, "output")),
		Wildcard:   wildcard.New(resolver, logging.Component(logger, "wildcard")),
		Progress:   tracker,
		SummaryOut: os.Stdout,
	}

	var closers []func() error
	if cfg.Persistence.Enabled {
		history, err := persistence.Open(config.ExpandHome(cfg.Persistence.Path), logging.Component(logger, "persistence"))
		if err != nil {
			// history never blocks a scan
			logger.Warn().Err(err).Msg("History disabled")
		} else {
			opts.History = history
			closers = append(closers, history.Close)
		}
	}

	s := New(opts, logging.Component(logger, "scan"))
	s.closers = closers
	return s, nil
}

// Close releases the history database, if one was opened.
func (s *Scanner) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Run executes one scan: collect, resolve, aggregate, record history, write
// reports and print the summary.
func (s *Scanner) Run(ctx context.Context) (*Result, error) {
	start := s.now()
	p := s.progress
	result := &Result{Target: s.target.Name}

	p.Info("Starting footprint scan for target: %s", s.target.Name)

	p.StartPhase("Collecting domains", 0)
	domains, err := s.collector.Collect(s.target.StaticDomains, s.inputs...)
	if err != nil {
		return nil, fmt.Errorf("failed to collect domains: %w", err)
	}
	p.Update(len(domains))
	p.Complete()
	if len(domains) == 0 {
		return nil, ErrNoDomains
	}
	s.logger.Info().Int("domains", len(domains)).Msg("Domains collected")

	p.StartPhase("Resolving domains", len(domains))
	resolved, err := s.resolver.ResolveBatch(ctx, domains)
	if err != nil {
		return nil, fmt.Errorf("resolution aborted: %w", err)
	}
	p.Complete()

	if s.wildcard != nil {
		zones := wildcard.Zones(s.target.WildcardZones, domains)
		p.StartPhase("Wildcard detection", len(zones)*wildcard.ProbesPerZone)
		result.WildcardZones, err = s.wildcard.Detect(ctx, zones)
		if err != nil {
			return nil, fmt.Errorf("wildcard detection aborted: %w", err)
		}
		p.Complete()
	}

	result.Records, result.Addresses = buildRecords(domains, resolved)
	if s.wildcard != nil {
		result.Records = s.wildcard.Mark(result.Records)
	}

	p.StartPhase("Analyzing networks", 1)
	result.Networks = s.analyzer.Analyze(result.Addresses)
	p.Increment()
	p.Complete()
	s.logger.Info().
		Int("addresses", len(result.Addresses)).
		Int("ipv4_networks", len(result.Networks.IPv4)).
		Int("ipv6_networks", len(result.Networks.IPv6)).
		Msg("Networks aggregated")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.history != nil {
		records, runSummary, err := s.history.TrackRun(ctx, s.target.Name, result.Records, result.Networks)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Failed to update history")
		} else {
			result.Records = records
			result.NewDomains = runSummary.NewDomains
			result.NewNetworks = runSummary.NewNetworks
			p.Info("History: %d new domains, %d new networks", len(runSummary.NewDomains), len(runSummary.NewNetworks))
		}
	}

	result.Elapsed = s.now().Sub(start)

	p.StartPhase("Writing results", 1)
	result.Files, err = s.writer.WriteResults(s.target, result.Records, result.Networks, result.Elapsed)
	if err != nil {
		return nil, fmt.Errorf("failed to write results: %w", err)
	}
	p.Increment()
	p.Complete()

	result.Summary = summary.Analyze(result.Records, result.Networks)
	if s.summaryOut != nil {
		result.Summary.Print(s.summaryOut, s.writer.Dir())
	}

	return result, nil
}

// buildRecords returns one record per domain, in domain order, and the unique
// addresses in first-seen order.
func buildRecords(domains []string, resolved map[string]dns.Result) ([]enumeration.DomainRecord, []string) {
	records := make([]enumeration.DomainRecord, 0, len(domains))
	seen := make(map[string]bool)
	var addrs []string

	for _, domain := range domains {
		r, ok := resolved[domain]
		if !ok {
			r = dns.Result{}
		}
		record := enumeration.DomainRecord{
			Domain: domain,
			IPv4:   nonNil(r.IPv4),
			IPv6:   nonNil(r.IPv6),
		}
		for _, ip := range record.IPs() {
			if !seen[ip] {
				seen[ip] = true
				addrs = append(addrs, ip)
			}
		}
		records = append(records, record)
	}

	return records, addrs
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
