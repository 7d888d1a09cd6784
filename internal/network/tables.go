package network

// Address ranges that never belong to a target's public footprint.
var DefaultReservedRanges = []string{
	// IPv4
	"0.0.0.0/8",          // "this network"
	"10.0.0.0/8",         // RFC1918
	"100.64.0.0/10",      // CGNAT
	"127.0.0.0/8",        // loopback
	"169.254.0.0/16",     // link-local
	"172.16.0.0/12",      // RFC1918
	"192.0.0.0/24",       // IETF protocol assignments
	"192.0.2.0/24",       // TEST-NET-1
	"192.168.0.0/16",     // RFC1918
	"198.18.0.0/15",      // benchmarking
	"198.51.100.0/24",    // TEST-NET-2
	"203.0.113.0/24",     // TEST-NET-3
	"224.0.0.0/4",        // multicast
	"240.0.0.0/4",        // class E
	"255.255.255.255/32", // broadcast

	// IPv6
	"::/128",
	"::1/128",
	"::ffff:0:0/96", // IPv4-mapped
	"100::/64",      // discard-only
	"2001:db8::/32", // documentation
	"fc00::/7",      // unique local
	"fe80::/10",     // link-local
	"ff00::/8",      // multicast
}

// Broad regional allocations shared by many unrelated tenants. Conservative
// candidates overlapping these are dropped.
var DefaultMassHostingRanges = []string{
	"1.0.0.0/8",   // APNIC
	"14.0.0.0/8",  // ChinaNet
	"27.0.0.0/8",  // ChinaNet
	"36.0.0.0/8",  // ChinaNet
	"39.0.0.0/8",  // ChinaNet
	"42.0.0.0/8",  // ChinaNet
	"49.0.0.0/8",  // APNIC
	"58.0.0.0/8",  // ChinaNet
	"59.0.0.0/8",  // ChinaNet
	"60.0.0.0/8",  // APNIC
	"61.0.0.0/8",  // APNIC
	"111.0.0.0/8", // ChinaNet
	"112.0.0.0/8",
	"113.0.0.0/8",
	"114.0.0.0/8",
	"115.0.0.0/8",
	"116.0.0.0/8",
	"117.0.0.0/8",
	"118.0.0.0/8",
	"119.0.0.0/8",
	"120.0.0.0/8",
	"121.0.0.0/8",
	"122.0.0.0/8",
	"123.0.0.0/8",
	"124.0.0.0/8",
	"125.0.0.0/8",
	"171.0.0.0/8",
	"175.0.0.0/8",
	"180.0.0.0/8",
	"182.0.0.0/8",
	"183.0.0.0/8",
	"210.0.0.0/8",
	"211.0.0.0/8",
	"218.0.0.0/8",
	"219.0.0.0/8",
	"220.0.0.0/8",
	"221.0.0.0/8",
	"222.0.0.0/8",
	"223.0.0.0/8",
}

// IPv6 candidates equal to or broader than any of these are rejected.
var DefaultIPv6Disallow = []string{
	"::/0",
	"::/16",
	"::/32",
	"::/48",
	"::/64",
	"2001:db8::/32",
	"fe80::/10",
	"fc00::/7",
	"ff00::/8",
}

const (
	DefaultMergeFloor    = 8
	DefaultIPv6Prefix    = 48
	DefaultIPv6MaxPrefix = 64
)

var (
	DefaultPrivilegedPrefixes   = []int{24, 22, 20, 16}
	DefaultConservativePrefixes = []int{24, 25, 26}
)
