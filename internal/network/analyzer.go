package network

import (
	"net/netip"
	"strings"

	"github.com/resistanceisuseless/footprint/internal/config"
	"github.com/rs/zerolog"
	"go4.org/netipx"
)

// Networks is the aggregated CIDR footprint, one list per family.
type Networks struct {
	IPv4 []string `json:"ipv4"`
	IPv6 []string `json:"ipv6"`
}

// Count returns the total number of networks.
func (n Networks) Count() int {
	return len(n.IPv4) + len(n.IPv6)
}

type Options struct {
	// Seeds are CIDRs (or bare addresses) always included in the output
	// unless excluded by policy. Family is decided by a literal ':'.
	Seeds []string

	PrivilegedRanges  []string
	MassHostingRanges []string
	ReservedRanges    []string
	IPv6Disallow      []string

	PrivilegedPrefixes   []int
	ConservativePrefixes []int
	MergeFloor           int
	IPv6Prefix           int
	IPv6MaxPrefix        int
}

// OptionsFromTarget collects the seeds and range tables of a target.
func OptionsFromTarget(target *config.Target) Options {
	var seeds []string
	seeds = append(seeds, target.StaticCIDRs...)
	seeds = append(seeds, target.KnownRanges.IPv4...)
	seeds = append(seeds, target.KnownRanges.IPv6...)

	policy := target.Networks
	return Options{
		Seeds:                seeds,
		PrivilegedRanges:     policy.PrivilegedRanges,
		MassHostingRanges:    policy.MassHostingRanges,
		ReservedRanges:       policy.ReservedRanges,
		IPv6Disallow:         policy.IPv6Disallow,
		PrivilegedPrefixes:   policy.PrivilegedPrefixes,
		ConservativePrefixes: policy.ConservativePrefixes,
		MergeFloor:           policy.MergeFloor,
		IPv6Prefix:           policy.IPv6Prefix,
		IPv6MaxPrefix:        policy.IPv6MaxPrefix,
	}
}

// Analyzer turns resolved addresses into a minimal set of CIDR blocks.
// It is safe for concurrent use once built.
type Analyzer struct {
	seeds4 []string
	seeds6 []string

	privileged  *netipx.IPSet
	massHosting *netipx.IPSet
	reserved    *netipx.IPSet
	disallow    []netip.Prefix

	privilegedPrefixes   []int
	conservativePrefixes []int
	mergeFloor           int
	ipv6Prefix           int
	ipv6MaxPrefix        int

	logger zerolog.Logger
}

// New compiles the range tables. Empty tables fall back to the package
// defaults, except the privileged table which has none. Malformed entries are
// skipped with a warning.
func New(opts Options, logger zerolog.Logger) *Analyzer {
	a := &Analyzer{
		privilegedPrefixes:   opts.PrivilegedPrefixes,
		conservativePrefixes: opts.ConservativePrefixes,
		mergeFloor:           opts.MergeFloor,
		ipv6Prefix:           opts.IPv6Prefix,
		ipv6MaxPrefix:        opts.IPv6MaxPrefix,
		logger:               logger,
	}

	for _, seed := range opts.Seeds {
		seed = strings.TrimSpace(seed)
		if seed == "" {
			continue
		}
		if strings.Contains(seed, ":") {
			a.seeds6 = append(a.seeds6, seed)
		} else {
			a.seeds4 = append(a.seeds4, seed)
		}
	}

	if len(a.privilegedPrefixes) == 0 {
		a.privilegedPrefixes = DefaultPrivilegedPrefixes
	}
	if len(a.conservativePrefixes) == 0 {
		a.conservativePrefixes = DefaultConservativePrefixes
	}
	if a.mergeFloor <= 0 {
		a.mergeFloor = DefaultMergeFloor
	}
	if a.ipv6Prefix <= 0 {
		a.ipv6Prefix = DefaultIPv6Prefix
	}
	if a.ipv6MaxPrefix <= 0 {
		a.ipv6MaxPrefix = DefaultIPv6MaxPrefix
	}

	a.privileged = a.buildSet("privileged", opts.PrivilegedRanges)
	a.massHosting = a.buildSet("mass_hosting", orDefault(opts.MassHostingRanges, DefaultMassHostingRanges))
	a.reserved = a.buildSet("reserved", orDefault(opts.ReservedRanges, DefaultReservedRanges))

	for _, entry := range orDefault(opts.IPv6Disallow, DefaultIPv6Disallow) {
		prefix, err := parseNetwork(entry)
		if err != nil || !prefix.Addr().Is6() {
			a.logger.Warn().Str("table", "ipv6_disallow").Str("entry", entry).Msg("Skipping invalid range")
			continue
		}
		a.disallow = append(a.disallow, prefix)
	}

	return a
}

func orDefault(entries, defaults []string) []string {
	if len(entries) == 0 {
		return defaults
	}
	return entries
}

func (a *Analyzer) buildSet(table string, entries []string) *netipx.IPSet {
	var b netipx.IPSetBuilder
	for _, entry := range entries {
		prefix, err := parseNetwork(entry)
		if err != nil {
			a.logger.Warn().Str("table", table).Str("entry", entry).Msg("Skipping invalid range")
			continue
		}
		b.AddPrefix(prefix)
	}

	set, err := b.IPSet()
	if err != nil {
		a.logger.Warn().Err(err).Str("table", table).Msg("Failed to build range table")
		return &netipx.IPSet{}
	}
	return set
}

// parseNetwork accepts CIDR text or a bare address and returns the masked
// prefix.
func parseNetwork(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "/") {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		return netip.PrefixFrom(addr, addr.BitLen()), nil
	}
	prefix, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	return prefix.Masked(), nil
}

// Analyze aggregates the given addresses, together with the configured seeds,
// into IPv4 and IPv6 network lists. Invalid input is skipped.
func (a *Analyzer) Analyze(addrs []string) Networks {
	seen := make(map[string]bool, len(addrs))
	var v4, v6 []string
	for _, addr := range addrs {
		addr = strings.TrimSpace(addr)
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		if strings.Contains(addr, ":") {
			v6 = append(v6, addr)
		} else {
			v4 = append(v4, addr)
		}
	}

	a.logger.Info().Int("ipv4", len(v4)).Int("ipv6", len(v6)).Msg("Analyzing addresses")

	networks := Networks{
		IPv4: a.analyzeIPv4(v4),
		IPv6: a.analyzeIPv6(v6),
	}

	a.logger.Info().
		Int("ipv4_networks", len(networks.IPv4)).
		Int("ipv6_networks", len(networks.IPv6)).
		Msg("Network analysis completed")

	return networks
}

func (a *Analyzer) analyzeIPv4(addrs []string) []string {
	candidates := a.parseSeeds(a.seeds4, false)

	var privileged, other []netip.Addr
	for _, s := range addrs {
		addr, err := netip.ParseAddr(s)
		if err != nil || !addr.Is4() {
			a.logger.Debug().Str("address", s).Msg("Skipping invalid IPv4 address")
			continue
		}
		if a.reserved.Contains(addr) {
			a.logger.Debug().Str("address", s).Msg("Skipping reserved IPv4 address")
			continue
		}
		if a.privileged.Contains(addr) {
			privileged = append(privileged, addr)
		} else {
			other = append(other, addr)
		}
	}

	a.logger.Debug().
		Int("privileged", len(privileged)).
		Int("other", len(other)).
		Msg("Classified IPv4 addresses")

	for _, bits := range a.privilegedPrefixes {
		for _, addr := range privileged {
			if prefix, ok := a.candidate(addr, bits); ok {
				candidates = append(candidates, prefix)
			}
		}
	}

	for _, bits := range a.conservativePrefixes {
		for _, addr := range other {
			prefix, ok := a.candidate(addr, bits)
			if !ok || a.massHosting.OverlapsPrefix(prefix) {
				continue
			}
			candidates = append(candidates, prefix)
		}
	}

	return a.optimize(candidates, true)
}

func (a *Analyzer) candidate(addr netip.Addr, bits int) (netip.Prefix, bool) {
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return netip.Prefix{}, false
	}
	if a.reserved.OverlapsPrefix(prefix) {
		return netip.Prefix{}, false
	}
	return prefix, true
}

func (a *Analyzer) analyzeIPv6(addrs []string) []string {
	candidates := a.parseSeeds(a.seeds6, true)

	for _, s := range addrs {
		addr, err := netip.ParseAddr(s)
		if err != nil || !addr.Is6() {
			a.logger.Debug().Str("address", s).Msg("Skipping invalid IPv6 address")
			continue
		}
		prefix, err := addr.Prefix(a.ipv6Prefix)
		if err != nil {
			a.logger.Debug().Err(err).Str("address", s).Msg("Skipping IPv6 address")
			continue
		}
		if a.excludedIPv6(prefix) {
			continue
		}
		candidates = append(candidates, prefix)
	}

	return a.optimize(candidates, false)
}

// excludedIPv6 reports whether an IPv6 network is reserved, too broad or too
// specific.
func (a *Analyzer) excludedIPv6(prefix netip.Prefix) bool {
	if prefix.Bits() > a.ipv6MaxPrefix {
		return true
	}
	if a.reserved.OverlapsPrefix(prefix) {
		return true
	}
	for _, d := range a.disallow {
		if prefix.Bits() <= d.Bits() && prefix.Contains(d.Addr()) {
			return true
		}
	}
	return false
}

func (a *Analyzer) parseSeeds(seeds []string, ipv6 bool) []netip.Prefix {
	var prefixes []netip.Prefix
	for _, seed := range seeds {
		prefix, err := parseNetwork(seed)
		if err != nil || prefix.Addr().Is6() != ipv6 {
			a.logger.Debug().Str("cidr", seed).Msg("Skipping invalid CIDR")
			continue
		}
		if ipv6 {
			if a.excludedIPv6(prefix) {
				a.logger.Debug().Str("cidr", seed).Msg("Skipping excluded IPv6 CIDR")
				continue
			}
		} else if a.reserved.OverlapsPrefix(prefix) {
			a.logger.Debug().Str("cidr", seed).Msg("Skipping reserved IPv4 CIDR")
			continue
		}
		prefixes = append(prefixes, prefix)
	}
	return prefixes
}
