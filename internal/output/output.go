package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/resistanceisuseless/footprint/internal/config"
	"github.com/resistanceisuseless/footprint/internal/enumeration"
	"github.com/resistanceisuseless/footprint/internal/network"
	"github.com/rs/zerolog"
)

const (
	DomainsFile     = "domains.txt"
	NoIPDomainsFile = "domains_no_ip.txt"
	IPv4File        = "cidr_ipv4.txt"
	IPv6File        = "cidr_ipv6.txt"
	ReportFile      = "report.json"
	CSVFile         = "domains.csv"

	headerTimeFormat = "2006-01-02 15:04:05"
)

type Report struct {
	Meta                   Metadata                   `json:"meta"`
	DomainsWithIPs         []enumeration.DomainRecord `json:"domains_with_ips"`
	DomainsWithoutIPsCount int                        `json:"domains_without_ips_count"`
	Networks               network.Networks           `json:"networks"`
	Config                 *config.Target             `json:"config"`
}

type Metadata struct {
	GeneratedAt time.Time  `json:"generated_at"`
	Target      string     `json:"target"`
	Description string     `json:"description"`
	Tool        ToolInfo   `json:"tool"`
	Statistics  Statistics `json:"statistics"`
}

type ToolInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type Statistics struct {
	TotalDomainsScanned int    `json:"total_domains_scanned"`
	DomainsWithIPs      int    `json:"domains_with_ips"`
	DomainsWithoutIPs   int    `json:"domains_without_ips"`
	NewDomains          int    `json:"new_domains"`
	UniqueIPs           int    `json:"unique_ips"`
	IPv4Count           int    `json:"ipv4_count"`
	IPv6Count           int    `json:"ipv6_count"`
	IPv4Networks        int    `json:"ipv4_networks"`
	IPv6Networks        int    `json:"ipv6_networks"`
	ExecutionTime       string `json:"execution_time"`
}

type Writer struct {
	dir         string
	format      string
	reportLimit int
	version     string
	now         func() time.Time
	logger      zerolog.Logger
}

func New(config *config.Config, version string, logger zerolog.Logger) *Writer {
	return &Writer{
		dir:         config.Output.Dir,
		format:      config.Output.Format,
		reportLimit: config.Output.ReportLimit,
		version:     version,
		now:         time.Now,
		logger:      logger,
	}
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// WriteResults writes every report file and returns the paths written.
func (w *Writer) WriteResults(target *config.Target, records []enumeration.DomainRecord, networks network.Networks, elapsed time.Duration) ([]string, error) {
	if w.format != "json" && w.format != "csv" {
		return nil, fmt.Errorf("unsupported output format: %s", w.format)
	}
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var withIPs, withoutIPs []enumeration.DomainRecord
	for _, record := range records {
		if record.HasIPs() {
			withIPs = append(withIPs, record)
		} else {
			withoutIPs = append(withoutIPs, record)
		}
	}

	w.logger.Info().
		Int("with_ips", len(withIPs)).
		Int("without_ips", len(withoutIPs)).
		Msg("Writing results")

	generated := w.now()
	var files []string

	path, err := w.writeList(DomainsFile, []string{
		"# Footprint Results",
		"# Generated: " + generated.Format(headerTimeFormat),
		fmt.Sprintf("# Total domains with IP addresses: %d", len(uniqueDomains(withIPs))),
	}, uniqueDomains(withIPs))
	if err != nil {
		return files, err
	}
	files = append(files, path)

	if len(withoutIPs) == 0 {
		if err := w.removeStale(NoIPDomainsFile); err != nil {
			return files, err
		}
	} else {
		path, err := w.writeList(NoIPDomainsFile, []string{
			"# Domains without IP addresses",
			"# Generated: " + generated.Format(headerTimeFormat),
			fmt.Sprintf("# Total domains: %d", len(uniqueDomains(withoutIPs))),
			"# These domains did not resolve to any IP address",
		}, uniqueDomains(withoutIPs))
		if err != nil {
			return files, err
		}
		files = append(files, path)
	}

	for _, list := range []struct {
		file, title string
		cidrs       []string
	}{
		{IPv4File, "# IPv4 CIDR Networks", networks.IPv4},
		{IPv6File, "# IPv6 CIDR Networks", networks.IPv6},
	} {
		if len(list.cidrs) == 0 {
			if err := w.removeStale(list.file); err != nil {
				return files, err
			}
			continue
		}
		path, err := w.writeList(list.file, []string{
			list.title,
			"# Generated: " + generated.Format(headerTimeFormat),
			fmt.Sprintf("# Total networks: %d", len(list.cidrs)),
		}, list.cidrs)
		if err != nil {
			return files, err
		}
		files = append(files, path)
	}

	report := w.buildReport(target, withIPs, withoutIPs, networks, generated, elapsed)
	path, err = w.writeJSON(report)
	if err != nil {
		return files, err
	}
	files = append(files, path)

	if w.format == "csv" {
		path, err := w.writeCSV(records)
		if err != nil {
			return files, err
		}
		files = append(files, path)
	} else if err := w.removeStale(CSVFile); err != nil {
		return files, err
	}

	return files, nil
}

// removeStale deletes a file left by an earlier run that this run has no
// content for.
func (w *Writer) removeStale(name string) error {
	err := os.Remove(filepath.Join(w.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale %s: %w", name, err)
	}
	return nil
}

// buildReport assembles the contents of report.json.
func (w *Writer) buildReport(target *config.Target, withIPs, withoutIPs []enumeration.DomainRecord, networks network.Networks, generated time.Time, elapsed time.Duration) Report {
	uniqueIPs := make(map[string]bool)
	ipv4, ipv6, newDomains := 0, 0, 0
	for _, record := range append(append([]enumeration.DomainRecord{}, withIPs...), withoutIPs...) {
		if record.IsNew {
			newDomains++
		}
		for _, ip := range record.IPs() {
			if uniqueIPs[ip] {
				continue
			}
			uniqueIPs[ip] = true
			if strings.Contains(ip, ":") {
				ipv6++
			} else {
				ipv4++
			}
		}
	}

	listed := withIPs
	if w.reportLimit > 0 && len(listed) > w.reportLimit {
		listed = listed[:w.reportLimit]
	}
	if listed == nil {
		listed = []enumeration.DomainRecord{}
	}

	report := Report{
		Meta: Metadata{
			GeneratedAt: generated,
			Tool: ToolInfo{
				Name:    "footprint",
				Version: w.version,
			},
			Statistics: Statistics{
				TotalDomainsScanned: len(withIPs) + len(withoutIPs),
				DomainsWithIPs:      len(withIPs),
				DomainsWithoutIPs:   len(withoutIPs),
				NewDomains:          newDomains,
				UniqueIPs:           len(uniqueIPs),
				IPv4Count:           ipv4,
				IPv6Count:           ipv6,
				IPv4Networks:        len(networks.IPv4),
				IPv6Networks:        len(networks.IPv6),
				ExecutionTime:       elapsed.Round(time.Millisecond).String(),
			},
		},
		DomainsWithIPs:         listed,
		DomainsWithoutIPsCount: len(withoutIPs),
		Networks:               networks,
		Config:                 target,
	}
	if target != nil {
		report.Meta.Target = target.Name
		report.Meta.Description = target.Description
	}
	return report
}

func (w *Writer) writeList(name string, header []string, lines []string) (string, error) {
	path := filepath.Join(w.dir, name)
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer file.Close()

	var b strings.Builder
	for _, h := range header {
		b.WriteString(h)
		b.WriteByte('\n')
	}
	b.WriteString(strings.Repeat("#", 50))
	b.WriteString("\n\n")
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	if _, err := file.WriteString(b.String()); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}

	w.logger.Info().Str("file", path).Int("entries", len(lines)).Msg("Results written")
	return path, nil
}

func (w *Writer) writeJSON(report Report) (string, error) {
	path := filepath.Join(w.dir, ReportFile)
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(report); err != nil {
		return "", fmt.Errorf("failed to encode JSON: %w", err)
	}

	w.logger.Info().Str("file", path).Msg("JSON report written")
	return path, nil
}

func (w *Writer) writeCSV(records []enumeration.DomainRecord) (string, error) {
	path := filepath.Join(w.dir, CSVFile)
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{"domain", "ipv4", "ipv6", "is_new"}
	if err := writer.Write(header); err != nil {
		return "", fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, record := range records {
		row := []string{
			record.Domain,
			strings.Join(record.IPv4, ";"),
			strings.Join(record.IPv6, ";"),
			fmt.Sprintf("%t", record.IsNew),
		}
		if err := writer.Write(row); err != nil {
			return "", fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("failed to flush CSV: %w", err)
	}

	w.logger.Info().Str("file", path).Int("rows", len(records)).Msg("CSV results written")
	return path, nil
}

func uniqueDomains(records []enumeration.DomainRecord) []string {
	seen := make(map[string]bool, len(records))
	domains := make([]string, 0, len(records))
	for _, record := range records {
		if seen[record.Domain] {
			continue
		}
		seen[record.Domain] = true
		domains = append(domains, record.Domain)
	}
	sort.Strings(domains)
	return domains
}
