package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrTargetNotFound is returned by LoadTarget when no target file exists.
var ErrTargetNotFound = errors.New("target configuration not found")

var validFormats = map[string]bool{"json": true, "csv": true}

// Dir returns the per-user configuration directory.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return filepath.Join(home, ".config", "footprint")
}

// DefaultPath returns the location CreateDefault writes to.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

func Default() *Config {
	config := &Config{}

	config.DNS.Servers = []string{
		"8.8.8.8",        // Google
		"1.1.1.1",        // Cloudflare
		"9.9.9.9",        // Quad9
		"208.67.222.222", // OpenDNS
	}
	config.DNS.Timeout = 5 * time.Second
	config.DNS.MaxConcurrent = 200
	config.DNS.BatchSize = 100
	config.DNS.BatchDelay = 500 * time.Millisecond

	config.Output.Dir = "results"
	config.Output.Format = "json"
	config.Output.ReportLimit = 500

	home, _ := os.UserHomeDir()
	config.Persistence.Path = filepath.Join(home, ".footprint", "history.db")

	config.TargetsDir = filepath.Join(Dir(), "targets")

	return config
}

func Load(configPath string) (*Config, error) {
	config := Default()

	if configPath == "" {
		return config, nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks numeric bounds and the output format.
func (c *Config) Validate() error {
	if len(c.DNS.Servers) == 0 {
		return fmt.Errorf("at least one DNS server is required")
	}
	for _, server := range c.DNS.Servers {
		if strings.TrimSpace(server) == "" {
			return fmt.Errorf("empty DNS server entry")
		}
	}
	if c.DNS.Timeout <= 0 {
		return fmt.Errorf("dns.timeout must be positive, got %s", c.DNS.Timeout)
	}
	if c.DNS.MaxConcurrent < 1 {
		return fmt.Errorf("dns.max_concurrent must be at least 1, got %d", c.DNS.MaxConcurrent)
	}
	if c.DNS.BatchSize < 1 {
		return fmt.Errorf("dns.batch_size must be at least 1, got %d", c.DNS.BatchSize)
	}
	if c.DNS.BatchDelay < 0 {
		return fmt.Errorf("dns.batch_delay cannot be negative")
	}
	if c.DNS.RateLimit < 0 {
		return fmt.Errorf("dns.rate_limit cannot be negative")
	}
	if c.DNS.CacheTTL < 0 {
		return fmt.Errorf("dns.cache_ttl cannot be negative")
	}
	if !validFormats[c.Output.Format] {
		return fmt.Errorf("unsupported output format: %s", c.Output.Format)
	}
	if c.Output.ReportLimit < 0 {
		return fmt.Errorf("output.report_limit cannot be negative")
	}
	return nil
}

func CreateDefault(configPath string) error {
	if configPath == "" {
		configPath = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		return nil
	}

	defaultConfig := `dns:
  servers:
    - "8.8.8.8"
    - "1.1.1.1"
    - "9.9.9.9"
    - "208.67.222.222"
  timeout: 5s
  max_concurrent: 200
  batch_size: 100
  batch_delay: 500ms
  rate_limit: 0      # queries per second, 0 = unlimited
  cache_ttl: 0s      # 0 keeps answers for the whole run

output:
  dir: "results"
  format: "json"     # json or csv
  report_limit: 500

persistence:
  enabled: false
  path: "~/.footprint/history.db"

log:
  # empty falls back to LOG_LEVEL, then info
  level: ""
  file: ""

targets_dir: "~/.config/footprint/targets"
`

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}

	return nil
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// DefaultTarget builds the minimal target used when no target file exists.
func DefaultTarget(name string) *Target {
	lower := strings.ToLower(strings.TrimSpace(name))
	target := &Target{
		Name:        name,
		Description: fmt.Sprintf("Configuration for %s", name),
		StaticDomains: []string{
			lower + ".com",
			"www." + lower + ".com",
		},
	}
	target.applyDefaults()
	return target
}

func (t *Target) applyDefaults() {
	if len(t.Networks.PrivilegedPrefixes) == 0 {
		t.Networks.PrivilegedPrefixes = []int{24, 22, 20, 16}
	}
	if len(t.Networks.ConservativePrefixes) == 0 {
		t.Networks.ConservativePrefixes = []int{24, 25, 26}
	}
	if t.Networks.MergeFloor == 0 {
		t.Networks.MergeFloor = 8
	}
	if t.Networks.IPv6Prefix == 0 {
		t.Networks.IPv6Prefix = 48
	}
	if t.Networks.IPv6MaxPrefix == 0 {
		t.Networks.IPv6MaxPrefix = 64
	}
}

// Validate checks prefix bounds of the target's network policy.
func (t *Target) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("target name is required")
	}
	for _, bits := range append(append([]int{}, t.Networks.PrivilegedPrefixes...), t.Networks.ConservativePrefixes...) {
		if bits < 0 || bits > 32 {
			return fmt.Errorf("invalid IPv4 prefix length %d", bits)
		}
	}
	if t.Networks.MergeFloor < 0 || t.Networks.MergeFloor > 32 {
		return fmt.Errorf("invalid merge floor %d", t.Networks.MergeFloor)
	}
	if t.Networks.IPv6Prefix < 0 || t.Networks.IPv6Prefix > 128 {
		return fmt.Errorf("invalid IPv6 prefix length %d", t.Networks.IPv6Prefix)
	}
	if t.Networks.IPv6MaxPrefix < 0 || t.Networks.IPv6MaxPrefix > 128 {
		return fmt.Errorf("invalid IPv6 max prefix length %d", t.Networks.IPv6MaxPrefix)
	}
	return nil
}

func targetPath(dir, name string) string {
	return filepath.Join(ExpandHome(dir), name+".yaml")
}

// LoadTarget reads <dir>/<name>.yaml.
func LoadTarget(dir, name string) (*Target, error) {
	path := targetPath(dir, name)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, path)
		}
		return nil, fmt.Errorf("failed to read target file: %w", err)
	}

	target := &Target{}
	if err := yaml.Unmarshal(data, target); err != nil {
		return nil, fmt.Errorf("failed to parse target file %s: %w", path, err)
	}
	if target.Name == "" {
		target.Name = name
	}
	target.applyDefaults()

	if err := target.Validate(); err != nil {
		return nil, fmt.Errorf("invalid target %s: %w", name, err)
	}

	return target, nil
}

// CreateTarget writes a template target file and returns its path. It refuses
// to overwrite an existing file.
func CreateTarget(dir, name string) (string, error) {
	path := targetPath(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create targets directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("target %q already exists at %s", name, path)
	}

	target := DefaultTarget(name)
	target.Description = fmt.Sprintf("Footprint discovery for %s", name)

	data, err := yaml.Marshal(target)
	if err != nil {
		return "", fmt.Errorf("failed to marshal target template: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write target file: %w", err)
	}
	return path, nil
}

// TargetInfo is a short listing entry for a target file.
type TargetInfo struct {
	Name        string
	Description string
	Err         error
}

// ListTargets returns every *.yaml target in dir sorted by name.
func ListTargets(dir string) ([]TargetInfo, error) {
	entries, err := os.ReadDir(ExpandHome(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to read targets directory: %w", err)
	}

	var targets []TargetInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".yaml")
		info := TargetInfo{Name: name}
		if target, err := LoadTarget(dir, name); err != nil {
			info.Err = err
		} else {
			info.Description = target.Description
		}
		targets = append(targets, info)
	}

	sort.Slice(targets, func(i, j int) bool { return targets[i].Name < targets[j].Name })
	return targets, nil
}
