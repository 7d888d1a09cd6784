package summary

import (
	"fmt"
	"io"
	"net/netip"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/resistanceisuseless/footprint/internal/enumeration"
	"github.com/resistanceisuseless/footprint/internal/network"
)

const (
	sampleIPv4 = 10
	sampleIPv6 = 5
	topLimit   = 10
)

type Summary struct {
	TotalDomains      int
	ResolvedDomains   int
	UnresolvedDomains int
	NewDomains        int
	WildcardDomains   int
	UniqueIPv4        int
	UniqueIPv6        int
	IPv4Networks      []string
	IPv6Networks      []string
	// NetworkDomains counts the domains with at least one address inside
	// each output network.
	NetworkDomains map[string]int
}

func Analyze(records []enumeration.DomainRecord, networks network.Networks) *Summary {
	summary := &Summary{
		IPv4Networks:   networks.IPv4,
		IPv6Networks:   networks.IPv6,
		NetworkDomains: make(map[string]int),
	}

	var prefixes []netip.Prefix
	for _, cidr := range append(append([]string{}, networks.IPv4...), networks.IPv6...) {
		if p, err := netip.ParsePrefix(cidr); err == nil {
			prefixes = append(prefixes, p)
		}
	}

	ipv4 := make(map[string]bool)
	ipv6 := make(map[string]bool)

	for _, record := range records {
		summary.TotalDomains++
		if record.HasIPs() {
			summary.ResolvedDomains++
		} else {
			summary.UnresolvedDomains++
		}
		if record.IsNew {
			summary.NewDomains++
		}
		if record.Wildcard {
			summary.WildcardDomains++
		}

		for _, ip := range record.IPv4 {
			ipv4[ip] = true
		}
		for _, ip := range record.IPv6 {
			ipv6[ip] = true
		}

		// count each domain once per network
		hit := make(map[netip.Prefix]bool)
		for _, ip := range record.IPs() {
			addr, err := netip.ParseAddr(ip)
			if err != nil {
				continue
			}
			for _, p := range prefixes {
				if !hit[p] && p.Contains(addr) {
					hit[p] = true
					summary.NetworkDomains[p.String()]++
				}
			}
		}
	}

	summary.UniqueIPv4 = len(ipv4)
	summary.UniqueIPv6 = len(ipv6)

	return summary
}

func (s *Summary) Print(w io.Writer, outputDir string) {
	header := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	fmt.Fprintln(w, "\n"+strings.Repeat("=", 60))
	header.Fprintln(w, "                    FOOTPRINT SUMMARY")
	fmt.Fprintln(w, strings.Repeat("=", 60))

	// Domain statistics
	header.Fprintf(w, "\n📊 Domain Statistics:\n")
	fmt.Fprintf(w, "   Total Domains Scanned: %d\n", s.TotalDomains)
	green.Fprintf(w, "   With IP Addresses: %d (%.1f%%)\n", s.ResolvedDomains, percent(s.ResolvedDomains, s.TotalDomains))
	if s.UnresolvedDomains > 0 {
		yellow.Fprintf(w, "   Without IP Addresses: %d\n", s.UnresolvedDomains)
	}
	if s.NewDomains > 0 {
		green.Fprintf(w, "   🆕 New Domains: %d\n", s.NewDomains)
	}
	if s.WildcardDomains > 0 {
		yellow.Fprintf(w, "   Wildcard Responses: %d\n", s.WildcardDomains)
	}

	header.Fprintf(w, "\n🌐 Addresses:\n")
	fmt.Fprintf(w, "   Unique IPv4: %d\n", s.UniqueIPv4)
	fmt.Fprintf(w, "   Unique IPv6: %d\n", s.UniqueIPv6)

	header.Fprintf(w, "\n🧭 Networks:\n")
	fmt.Fprintf(w, "   IPv4 CIDR blocks: %d\n", len(s.IPv4Networks))
	printSample(w, s.IPv4Networks, sampleIPv4)
	fmt.Fprintf(w, "   IPv6 CIDR blocks: %d\n", len(s.IPv6Networks))
	printSample(w, s.IPv6Networks, sampleIPv6)

	if len(s.NetworkDomains) > 0 {
		header.Fprintf(w, "\n🏢 Top Networks by Domains:\n")
		top := sortMapByValue(s.NetworkDomains)
		limit := min(topLimit, len(top))
		for i := 0; i < limit; i++ {
			fmt.Fprintf(w, "   %-25s: %d domains\n", top[i].Key, top[i].Value)
		}
		if len(top) > limit {
			fmt.Fprintf(w, "   ... and %d more networks\n", len(top)-limit)
		}
	}

	if outputDir != "" {
		header.Fprintf(w, "\n📁 Results: ")
		fmt.Fprintln(w, outputDir)
	}

	fmt.Fprintln(w, "\n"+strings.Repeat("=", 60))
}

func printSample(w io.Writer, cidrs []string, limit int) {
	for i, cidr := range cidrs {
		if i == limit {
			fmt.Fprintf(w, "     ... and %d more\n", len(cidrs)-limit)
			return
		}
		fmt.Fprintf(w, "     %s\n", cidr)
	}
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

type KeyValue struct {
	Key   string
	Value int
}

func sortMapByValue(m map[string]int) []KeyValue {
	var kvs []KeyValue
	for k, v := range m {
		kvs = append(kvs, KeyValue{k, v})
	}

	sort.Slice(kvs, func(i, j int) bool {
		if kvs[i].Value != kvs[j].Value {
			return kvs[i].Value > kvs[j].Value
		}
		return kvs[i].Key < kvs[j].Key
	})

	return kvs
}
