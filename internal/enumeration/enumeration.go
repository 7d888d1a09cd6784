package enumeration

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

var domainRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?)*$`)

// DomainRecord is the per-domain output of a scan.
type DomainRecord struct {
	Domain string   `json:"domain"`
	IPv4   []string `json:"ipv4"`
	IPv6   []string `json:"ipv6"`
	IsNew  bool     `json:"is_new,omitempty"`
	// Wildcard is set when every address equals a catch-all answer of the
	// enclosing zone.
	Wildcard bool `json:"wildcard,omitempty"`
}

// IPs returns IPv4 followed by IPv6 addresses.
func (r DomainRecord) IPs() []string {
	ips := make([]string, 0, len(r.IPv4)+len(r.IPv6))
	ips = append(ips, r.IPv4...)
	return append(ips, r.IPv6...)
}

func (r DomainRecord) HasIPs() bool {
	return len(r.IPv4) > 0 || len(r.IPv6) > 0
}

// Collector gathers candidate domains from static lists and input files.
type Collector struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Collector {
	return &Collector{logger: logger}
}

// Collect merges the static domains with every input file and returns the
// normalized, valid, sorted and unique result.
func (c *Collector) Collect(static []string, inputPaths ...string) ([]string, error) {
	seen := make(map[string]bool)
	var domains []string

	add := func(raw, source string) {
		domain := Normalize(raw)
		if !IsValidDomain(domain) {
			c.logger.Debug().Str("domain", raw).Str("source", source).Msg("Skipping invalid domain")
			return
		}
		if seen[domain] {
			return
		}
		seen[domain] = true
		domains = append(domains, domain)
	}

	for _, domain := range static {
		add(domain, "static")
	}
	c.logger.Info().Int("count", len(domains)).Msg("Static domains loaded")

	for _, path := range inputPaths {
		if path == "" {
			continue
		}
		loaded, err := c.LoadInputDomains(path)
		if err != nil {
			return nil, err
		}
		for _, domain := range loaded {
			add(domain, path)
		}
	}

	sort.Strings(domains)
	return domains, nil
}

// LoadInputDomains reads one domain per line. Blank lines and '#' comments
// are ignored; invalid names are skipped.
func (c *Collector) LoadInputDomains(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}

	c.logger.Info().Str("path", path).Msg("Loading input domains")
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input domains file: %w", err)
	}
	defer file.Close()

	var domains []string
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		domain := Normalize(line)
		if IsValidDomain(domain) {
			domains = append(domains, domain)
		} else {
			c.logger.Debug().Int("line", lineNum).Str("domain", line).Msg("Invalid domain format")
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading input domains file: %w", err)
	}

	c.logger.Info().Int("count", len(domains)).Str("path", path).Msg("Loaded input domains")
	return domains, nil
}

// Normalize lowercases a name and strips scheme, path, port, trailing dot and
// leading wildcard labels. "www." is kept.
func Normalize(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))

	if i := strings.Index(domain, "://"); i >= 0 {
		domain = domain[i+3:]
	}
	if i := strings.IndexAny(domain, "/?#"); i >= 0 {
		domain = domain[:i]
	}
	if i := strings.LastIndex(domain, "@"); i >= 0 {
		domain = domain[i+1:]
	}
	if i := strings.Index(domain, ":"); i >= 0 {
		domain = domain[:i]
	}
	for strings.HasPrefix(domain, "*.") {
		domain = domain[2:]
	}

	return strings.TrimSuffix(domain, ".")
}

// IsValidDomain checks the RFC 1123 label syntax and requires at least one dot.
func IsValidDomain(domain string) bool {
	if len(domain) == 0 || len(domain) > 253 {
		return false
	}
	if !domainRegex.MatchString(domain) {
		return false
	}
	return strings.Contains(domain, ".")
}
