package dns

import (
	"context"
	"fmt"
	"hash/fnv"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	DefaultMaxConcurrent = 200
	DefaultBatchSize     = 100
	DefaultTimeout       = 5 * time.Second
)

// Exchanger sends one DNS message to a server. *dns.Client implements it.
type Exchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, address string) (*dns.Msg, time.Duration, error)
}

// Result holds the addresses found for one domain. Both lists are non-nil.
type Result struct {
	IPv4 []string `json:"ipv4"`
	IPv6 []string `json:"ipv6"`
}

func emptyResult() Result {
	return Result{IPv4: []string{}, IPv6: []string{}}
}

// Resolved reports whether at least one address was found.
func (r Result) Resolved() bool {
	return len(r.IPv4) > 0 || len(r.IPv6) > 0
}

// BatchProgress is emitted after every completed batch.
type BatchProgress struct {
	Batch     int
	Batches   int
	Size      int
	Processed int
	Resolved  int
	Total     int
}

type Options struct {
	Servers       []string
	Timeout       time.Duration
	MaxConcurrent int
	BatchSize     int
	BatchDelay    time.Duration
	// RateLimit caps outgoing queries per second; 0 disables the limiter.
	RateLimit int

	Cache     Cache
	Client    Exchanger
	TCPClient Exchanger
	OnBatch   func(BatchProgress)
}

type Resolver struct {
	servers    []string
	timeout    time.Duration
	batchSize  int
	batchDelay time.Duration

	sem      *semaphore.Weighted
	inflight singleflight.Group
	limiter  *rate.Limiter
	cache    Cache
	udp      Exchanger
	tcp      Exchanger
	onBatch  func(BatchProgress)
	pause    func(ctx context.Context, d time.Duration) error

	logger zerolog.Logger
}

func New(opts Options, logger zerolog.Logger) (*Resolver, error) {
	if len(opts.Servers) == 0 {
		return nil, fmt.Errorf("no DNS servers configured")
	}

	servers := make([]string, 0, len(opts.Servers))
	for _, server := range opts.Servers {
		addr, err := normalizeServer(server)
		if err != nil {
			return nil, err
		}
		servers = append(servers, addr)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	r := &Resolver{
		servers:    servers,
		timeout:    timeout,
		batchSize:  batchSize,
		batchDelay: opts.BatchDelay,
		sem:        semaphore.NewWeighted(int64(maxConcurrent)),
		cache:      opts.Cache,
		udp:        opts.Client,
		tcp:        opts.TCPClient,
		onBatch:    opts.OnBatch,
		pause:      sleepContext,
		logger:     logger,
	}

	if r.cache == nil {
		r.cache = NewMemoryCache(0)
	}
	if r.udp == nil {
		r.udp = &dns.Client{Net: "udp", Timeout: timeout}
	}
	if r.tcp == nil {
		r.tcp = &dns.Client{Net: "tcp", Timeout: timeout}
	}
	if opts.RateLimit > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	return r, nil
}

func normalizeServer(server string) (string, error) {
	server = strings.TrimSpace(server)
	if server == "" {
		return "", fmt.Errorf("empty DNS server address")
	}
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server, nil
	}
	host := strings.TrimSuffix(strings.TrimPrefix(server, "["), "]")
	return net.JoinHostPort(host, "53"), nil
}

// Upstream returns the server a domain is routed to. The choice depends only
// on the domain and the server list.
func (r *Resolver) Upstream(domain string) string {
	h := fnv.New32a()
	h.Write([]byte(domain))
	return r.servers[h.Sum32()%uint32(len(r.servers))]
}

// Resolve returns the A and AAAA addresses of one domain. Lookup failures
// produce empty lists; the only error is cancellation of ctx. Concurrent
// calls for the same uncached domain share one lookup.
func (r *Resolver) Resolve(ctx context.Context, domain string) (Result, error) {
	if result, ok := r.cache.Get(domain); ok {
		return result, nil
	}

	v, err, _ := r.inflight.Do(domain, func() (any, error) {
		// a lookup may have finished between the cache check and Do
		if result, ok := r.cache.Get(domain); ok {
			return result, nil
		}
		return r.resolve(ctx, domain)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (r *Resolver) resolve(ctx context.Context, domain string) (Result, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return Result{}, err
	}
	defer r.sem.Release(1)

	server := r.Upstream(domain)
	result := Result{
		IPv4: r.lookup(ctx, domain, server, dns.TypeA),
		IPv6: r.lookup(ctx, domain, server, dns.TypeAAAA),
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	r.cache.Put(domain, result)
	return result, nil
}

func (r *Resolver) lookup(ctx context.Context, domain, server string, qtype uint16) []string {
	addrs := []string{}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return addrs
		}
	}

	msg := &dns.Msg{}
	msg.SetQuestion(dns.Fqdn(domain), qtype)

	queryCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, _, err := r.udp.ExchangeContext(queryCtx, msg, server)
	if err == nil && resp != nil && resp.Truncated {
		resp, _, err = r.tcp.ExchangeContext(queryCtx, msg, server)
	}
	if err != nil {
		r.logger.Debug().Err(err).
			Str("domain", domain).
			Str("server", server).
			Str("type", dns.TypeToString[qtype]).
			Msg("DNS query failed")
		return addrs
	}
	if resp == nil {
		return addrs
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return addrs
	default:
		r.logger.Debug().
			Str("domain", domain).
			Str("server", server).
			Str("rcode", dns.RcodeToString[resp.Rcode]).
			Msg("DNS query returned error code")
		return addrs
	}

	seen := make(map[string]bool)
	for _, rr := range resp.Answer {
		var ip net.IP
		switch rec := rr.(type) {
		case *dns.A:
			if qtype == dns.TypeA {
				ip = rec.A
			}
		case *dns.AAAA:
			if qtype == dns.TypeAAAA {
				ip = rec.AAAA
			}
		}
		if ip == nil {
			continue
		}
		s := ip.String()
		if !seen[s] {
			seen[s] = true
			addrs = append(addrs, s)
		}
	}

	return addrs
}

// ResolveBatch resolves every domain and returns one entry per distinct input
// domain. Domains are processed in fixed-size batches with a pause between
// batches.
func (r *Resolver) ResolveBatch(ctx context.Context, domains []string) (map[string]Result, error) {
	unique := dedupe(domains)
	total := len(unique)
	results := make(map[string]Result, total)

	batches := (total + r.batchSize - 1) / r.batchSize
	resolved := 0

	r.logger.Info().
		Int("domains", total).
		Int("batches", batches).
		Int("servers", len(r.servers)).
		Msg("Starting DNS resolution")

	for batch, start := 1, 0; start < total; batch, start = batch+1, start+r.batchSize {
		end := min(start+r.batchSize, total)
		chunk := unique[start:end]
		slots := make([]Result, len(chunk))

		g, gctx := errgroup.WithContext(ctx)
		for i, domain := range chunk {
			i, domain := i, domain
			g.Go(func() error {
				return r.resolveSlot(gctx, domain, &slots[i])
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for i, domain := range chunk {
			results[domain] = slots[i]
			if slots[i].Resolved() {
				resolved++
			}
		}

		progress := BatchProgress{
			Batch:     batch,
			Batches:   batches,
			Size:      len(chunk),
			Processed: end,
			Resolved:  resolved,
			Total:     total,
		}
		r.logger.Info().
			Int("batch", batch).
			Int("processed", end).
			Int("total", total).
			Int("resolved", resolved).
			Msg("Processed batch")
		if r.onBatch != nil {
			r.onBatch(progress)
		}

		if end < total {
			if err := r.pause(ctx, r.batchDelay); err != nil {
				return nil, err
			}
		}
	}

	r.logger.Info().
		Int("resolved", resolved).
		Int("total", total).
		Msg("DNS resolution completed")

	return results, nil
}

// resolveSlot writes the result for one domain into its slot. A panic during
// the lookup is recorded as an empty result.
func (r *Resolver) resolveSlot(ctx context.Context, domain string, slot *Result) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn().
				Str("domain", domain).
				Interface("panic", rec).
				Msg("Recovered from panic during resolution")
			*slot = emptyResult()
			err = nil
		}
	}()

	result, err := r.Resolve(ctx, domain)
	if err != nil {
		return err
	}
	*slot = result
	return nil
}

// CacheSize returns the number of cached domains.
func (r *Resolver) CacheSize() int {
	return r.cache.Len()
}

func dedupe(domains []string) []string {
	seen := make(map[string]bool, len(domains))
	unique := make([]string, 0, len(domains))
	for _, domain := range domains {
		if seen[domain] {
			continue
		}
		seen[domain] = true
		unique = append(unique, domain)
	}
	return unique
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
