package config

import "time"

type Config struct {
	DNS struct {
		Servers       []string      `yaml:"servers"`
		Timeout       time.Duration `yaml:"timeout"`
		MaxConcurrent int           `yaml:"max_concurrent"`
		BatchSize     int           `yaml:"batch_size"`
		BatchDelay    time.Duration `yaml:"batch_delay"`
		RateLimit     int           `yaml:"rate_limit"`
		CacheTTL      time.Duration `yaml:"cache_ttl"`
	} `yaml:"dns"`

	Output struct {
		Dir         string `yaml:"dir"`
		Format      string `yaml:"format"`
		ReportLimit int    `yaml:"report_limit"`
	} `yaml:"output"`

	Persistence struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"persistence"`

	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`

	TargetsDir string `yaml:"targets_dir"`

	// Runtime configuration (not from YAML)
	Verbose  bool `yaml:"-"`
	Progress bool `yaml:"-"`
}

// Target describes one scan target: where its domains come from and how its
// address space should be aggregated.
type Target struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`

	StaticDomains []string `yaml:"static_domains" json:"static_domains"`
	StaticCIDRs   []string `yaml:"static_cidrs" json:"static_cidrs"`

	KnownRanges struct {
		IPv4 []string `yaml:"ipv4" json:"ipv4"`
		IPv6 []string `yaml:"ipv6" json:"ipv6"`
	} `yaml:"known_ranges" json:"known_ranges"`

	// WildcardZones are probed for catch-all DNS. Empty means every
	// two-label static domain.
	WildcardZones []string `yaml:"wildcard_zones" json:"wildcard_zones,omitempty"`

	Networks NetworkPolicy `yaml:"networks" json:"networks"`
}

// NetworkPolicy holds the range tables and prefix settings used during CIDR
// aggregation. Empty tables fall back to the analyzer's built-in defaults.
type NetworkPolicy struct {
	PrivilegedRanges     []string `yaml:"privileged_ranges" json:"privileged_ranges"`
	MassHostingRanges    []string `yaml:"mass_hosting_ranges" json:"mass_hosting_ranges,omitempty"`
	ReservedRanges       []string `yaml:"reserved_ranges" json:"reserved_ranges,omitempty"`
	PrivilegedPrefixes   []int    `yaml:"privileged_prefixes" json:"privileged_prefixes"`
	ConservativePrefixes []int    `yaml:"conservative_prefixes" json:"conservative_prefixes"`
	MergeFloor           int      `yaml:"merge_floor" json:"merge_floor"`
	IPv6Prefix           int      `yaml:"ipv6_prefix" json:"ipv6_prefix"`
	IPv6MaxPrefix        int      `yaml:"ipv6_max_prefix" json:"ipv6_max_prefix"`
	IPv6Disallow         []string `yaml:"ipv6_disallow" json:"ipv6_disallow,omitempty"`
}
