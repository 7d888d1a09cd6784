package wildcard

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/resistanceisuseless/footprint/internal/dns"
	"github.com/resistanceisuseless/footprint/internal/enumeration"
	"github.com/rs/zerolog"
)

const (
	ProbesPerZone = 5
	// a zone is a wildcard when at least this many probes resolve
	wildcardThreshold = 3
	labelLength       = 20
	charset           = "abcdefghijklmnopqrstuvwxyz0123456789"
)

type Resolver interface {
	ResolveBatch(ctx context.Context, domains []string) (map[string]dns.Result, error)
}

// Detector finds zones that answer for any label and marks the records whose
// addresses are only the catch-all answers.
type Detector struct {
	resolver    Resolver
	wildcardIPs map[string]map[string]bool // zone -> wildcard IPs
	label       func() string
	logger      zerolog.Logger
}

func New(resolver Resolver, logger zerolog.Logger) *Detector {
	return &Detector{
		resolver:    resolver,
		wildcardIPs: make(map[string]map[string]bool),
		label:       randomLabel,
		logger:      logger,
	}
}

// Zones picks the zones to probe: the configured ones, or else every
// two-label domain in the list.
func Zones(configured, domains []string) []string {
	source := configured
	if len(source) == 0 {
		source = domains
	}

	seen := make(map[string]bool)
	var zones []string
	for _, d := range source {
		d = enumeration.Normalize(d)
		if len(configured) == 0 && strings.Count(d, ".") != 1 {
			continue
		}
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		zones = append(zones, d)
	}
	sort.Strings(zones)
	return zones
}

// Detect probes each zone with random labels and returns the wildcard zones.
func (w *Detector) Detect(ctx context.Context, zones []string) ([]string, error) {
	probes := make(map[string][]string, len(zones))
	var all []string
	for _, zone := range zones {
		for i := 0; i < ProbesPerZone; i++ {
			probe := fmt.Sprintf("%s.%s", w.label(), zone)
			probes[zone] = append(probes[zone], probe)
			all = append(all, probe)
		}
	}
	if len(all) == 0 {
		return nil, nil
	}

	results, err := w.resolver.ResolveBatch(ctx, all)
	if err != nil {
		return nil, err
	}

	var detected []string
	for _, zone := range zones {
		ips := make(map[string]bool)
		hits := 0
		for _, probe := range probes[zone] {
			r := results[probe]
			if !r.Resolved() {
				continue
			}
			hits++
			for _, ip := range append(append([]string{}, r.IPv4...), r.IPv6...) {
				ips[ip] = true
			}
		}

		if hits >= wildcardThreshold {
			w.wildcardIPs[zone] = ips
			detected = append(detected, zone)
			w.logger.Warn().Str("zone", zone).Int("ips", len(ips)).Msg("Wildcard DNS detected")
		} else {
			w.logger.Debug().Str("zone", zone).Msg("No wildcard DNS detected")
		}
	}

	return detected, nil
}

// Mark returns a copy of records with Wildcard set on every record under a
// wildcard zone whose addresses all belong to that zone's catch-all answers.
func (w *Detector) Mark(records []enumeration.DomainRecord) []enumeration.DomainRecord {
	marked := make([]enumeration.DomainRecord, len(records))
	count := 0
	for i, record := range records {
		if ips := w.zoneIPs(record.Domain); ips != nil && record.HasIPs() && allIn(record.IPs(), ips) {
			record.Wildcard = true
			count++
		}
		marked[i] = record
	}

	if count > 0 {
		w.logger.Info().Int("domains", count).Msg("Marked domains as wildcard responses")
	}
	return marked
}

// zoneIPs returns the wildcard answers of the closest enclosing wildcard zone.
func (w *Detector) zoneIPs(domain string) map[string]bool {
	for name := domain; ; {
		dot := strings.IndexByte(name, '.')
		if dot < 0 {
			return nil
		}
		name = name[dot+1:]
		if ips, ok := w.wildcardIPs[name]; ok {
			return ips
		}
	}
}

func allIn(ips []string, set map[string]bool) bool {
	for _, ip := range ips {
		if !set[ip] {
			return false
		}
	}
	return true
}

func randomLabel() string {
	var b strings.Builder
	for i := 0; i < labelLength; i++ {
		b.WriteByte(charset[rand.Intn(len(charset))])
	}
	return b.String()
}
