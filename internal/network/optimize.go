package network

import (
	"net/netip"
	"sort"

	"go4.org/netipx"
)

// optimize removes duplicates and subnets, optionally merges sibling
// networks, and renders the result sorted by address.
func (a *Analyzer) optimize(prefixes []netip.Prefix, merge bool) []string {
	networks := eliminateSubnets(dedupePrefixes(prefixes))
	if merge {
		networks = mergeAdjacent(networks, a.mergeFloor)
	}

	sortByAddr(networks)

	result := make([]string, 0, len(networks))
	for _, p := range networks {
		result = append(result, p.String())
	}
	return result
}

func dedupePrefixes(prefixes []netip.Prefix) []netip.Prefix {
	seen := make(map[netip.Prefix]bool, len(prefixes))
	unique := make([]netip.Prefix, 0, len(prefixes))
	for _, p := range prefixes {
		p = p.Masked()
		if !p.IsValid() || seen[p] {
			continue
		}
		seen[p] = true
		unique = append(unique, p)
	}
	return unique
}

// eliminateSubnets drops every network contained in another one. Input must
// be duplicate-free.
func eliminateSubnets(prefixes []netip.Prefix) []netip.Prefix {
	sorted := append([]netip.Prefix(nil), prefixes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Bits() < sorted[j].Bits()
	})

	kept := make([]netip.Prefix, 0, len(sorted))
	for i, p := range sorted {
		subnet := false
		for j, other := range sorted {
			if i == j {
				continue
			}
			if other.Bits() <= p.Bits() && other.Contains(p.Addr()) {
				subnet = true
				break
			}
		}
		if !subnet {
			kept = append(kept, p)
		}
	}
	return kept
}

// mergeAdjacent makes one left-to-right pass replacing two sibling networks of
// equal length with their parent. Lengths at or below floor are never merged.
// A merged parent may itself merge with the following network, but earlier
// results are not revisited.
func mergeAdjacent(prefixes []netip.Prefix, floor int) []netip.Prefix {
	if len(prefixes) <= 1 {
		return prefixes
	}

	sorted := append([]netip.Prefix(nil), prefixes...)
	sortByAddr(sorted)

	merged := []netip.Prefix{sorted[0]}
	for _, p := range sorted[1:] {
		last := merged[len(merged)-1]
		if last.Bits() == p.Bits() && last.Bits() > floor {
			if netipx.PrefixLastIP(last).Next() == p.Addr() {
				parent := netip.PrefixFrom(last.Addr(), last.Bits()-1).Masked()
				// only the lower half of a parent may absorb its neighbour
				if parent.Addr() == last.Addr() {
					merged[len(merged)-1] = parent
					continue
				}
			}
		}
		merged = append(merged, p)
	}
	return merged
}

func sortByAddr(prefixes []netip.Prefix) {
	sort.Slice(prefixes, func(i, j int) bool {
		if c := prefixes[i].Addr().Compare(prefixes[j].Addr()); c != 0 {
			return c < 0
		}
		return prefixes[i].Bits() < prefixes[j].Bits()
	})
}
