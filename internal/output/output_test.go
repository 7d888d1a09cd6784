package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/resistanceisuseless/footprint/internal/config"
	"github.com/resistanceisuseless/footprint/internal/enumeration"
	"github.com/resistanceisuseless/footprint/internal/network"
	"github.com/rs/zerolog"
)

func newTestWriter(t *testing.T, format string, limit int) *Writer {
	t.Helper()
	cfg := config.Default()
	cfg.Output.Dir = filepath.Join(t.TempDir(), "results")
	cfg.Output.Format = format
	cfg.Output.ReportLimit = limit

	w := New(cfg, "test", zerolog.Nop())
	w.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return w
}

func dataLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

var sampleRecords = []enumeration.DomainRecord{
	{Domain: "web.whatsapp.com", IPv4: []string{"157.240.1.53"}, IPv6: []string{"2a03:2880:f12f::1"}, IsNew: true},
	{Domain: "whatsapp.com", IPv4: []string{"157.240.1.53", "157.240.2.53"}, IPv6: []string{}},
	{Domain: "gone.whatsapp.com", IPv4: []string{}, IPv6: []string{}},
}

var sampleNetworks = network.Networks{
	IPv4: []string{"157.240.0.0/16"},
	IPv6: []string{"2a03:2880:f12f::/48"},
}

func TestWriteResultsJSON(t *testing.T) {
	w := newTestWriter(t, "json", 500)
	target := config.DefaultTarget("whatsapp")

	files, err := w.WriteResults(target, sampleRecords, sampleNetworks, 1500*time.Millisecond)
	if err != nil {
		t.Fatalf("WriteResults() error = %v", err)
	}
	if len(files) != 5 {
		t.Errorf("files = %v, want 5 entries", files)
	}

	dir := w.Dir()
	tests := []struct {
		file string
		want []string
	}{
		{DomainsFile, []string{"web.whatsapp.com", "whatsapp.com"}},
		{NoIPDomainsFile, []string{"gone.whatsapp.com"}},
		{IPv4File, []string{"157.240.0.0/16"}},
		{IPv6File, []string{"2a03:2880:f12f::/48"}},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			got := dataLines(t, filepath.Join(dir, tt.file))
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("%s = %v, want %v", tt.file, got, tt.want)
			}
		})
	}

	data, err := os.ReadFile(filepath.Join(dir, ReportFile))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}

	stats := report.Meta.Statistics
	if stats.TotalDomainsScanned != 3 || stats.DomainsWithIPs != 2 || stats.DomainsWithoutIPs != 1 {
		t.Errorf("domain counts = %+v", stats)
	}
	if stats.UniqueIPs != 3 || stats.IPv4Count != 2 || stats.IPv6Count != 1 {
		t.Errorf("ip counts = %+v", stats)
	}
	if stats.NewDomains != 1 || stats.ExecutionTime != "1.5s" {
		t.Errorf("stats = %+v", stats)
	}
	if report.Meta.Target != "whatsapp" || report.Meta.Tool.Version != "test" {
		t.Errorf("meta = %+v", report.Meta)
	}
	if report.DomainsWithoutIPsCount != 1 || len(report.DomainsWithIPs) != 2 {
		t.Errorf("report lists = %d with, %d without", len(report.DomainsWithIPs), report.DomainsWithoutIPsCount)
	}
	if report.Config == nil || report.Config.Name != "whatsapp" {
		t.Errorf("report config = %+v", report.Config)
	}

	if _, err := os.Stat(filepath.Join(dir, CSVFile)); !os.IsNotExist(err) {
		t.Errorf("CSV written for json format")
	}
}

func TestWriteResultsSkipsEmptyFiles(t *testing.T) {
	w := newTestWriter(t, "json", 500)
	records := []enumeration.DomainRecord{{Domain: "whatsapp.com", IPv4: []string{"8.8.8.8"}}}

	if _, err := w.WriteResults(config.DefaultTarget("x"), records, network.Networks{}, 0); err != nil {
		t.Fatalf("WriteResults() error = %v", err)
	}
	for _, name := range []string{NoIPDomainsFile, IPv4File, IPv6File} {
		if _, err := os.Stat(filepath.Join(w.Dir(), name)); !os.IsNotExist(err) {
			t.Errorf("%s should not be written", name)
		}
	}
}

func TestWriteResultsRemovesStaleFiles(t *testing.T) {
	w := newTestWriter(t, "csv", 500)
	target := config.DefaultTarget("whatsapp")
	if _, err := w.WriteResults(target, sampleRecords, sampleNetworks, 0); err != nil {
		t.Fatalf("first WriteResults() error = %v", err)
	}

	w.format = "json"
	records := []enumeration.DomainRecord{{Domain: "whatsapp.com", IPv4: []string{"157.240.1.53"}, IPv6: []string{}}}
	networks := network.Networks{IPv4: []string{"157.240.0.0/16"}}
	files, err := w.WriteResults(target, records, networks, 0)
	if err != nil {
		t.Fatalf("second WriteResults() error = %v", err)
	}
	if len(files) != 3 {
		t.Errorf("files = %v, want 3 entries", files)
	}

	for _, name := range []string{NoIPDomainsFile, IPv6File, CSVFile} {
		if _, err := os.Stat(filepath.Join(w.Dir(), name)); !os.IsNotExist(err) {
			t.Errorf("stale %s left behind", name)
		}
	}
	if got := dataLines(t, filepath.Join(w.Dir(), IPv4File)); len(got) != 1 || got[0] != "157.240.0.0/16" {
		t.Errorf("%s = %v", IPv4File, got)
	}
}

func TestWriteResultsReportLimit(t *testing.T) {
	var records []enumeration.DomainRecord
	for i := 0; i < 20; i++ {
		records = append(records, enumeration.DomainRecord{
			Domain: fmt.Sprintf("h%02d.example.com", i),
			IPv4:   []string{fmt.Sprintf("8.8.8.%d", i)},
		})
	}

	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"capped", 5, 5},
		{"unlimited", 0, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWriter(t, "json", tt.limit)
			if _, err := w.WriteResults(nil, records, network.Networks{}, 0); err != nil {
				t.Fatalf("WriteResults() error = %v", err)
			}
			data, _ := os.ReadFile(filepath.Join(w.Dir(), ReportFile))
			var report Report
			if err := json.Unmarshal(data, &report); err != nil {
				t.Fatalf("decode report: %v", err)
			}
			if len(report.DomainsWithIPs) != tt.want {
				t.Errorf("domains_with_ips = %d, want %d", len(report.DomainsWithIPs), tt.want)
			}
			if report.Meta.Statistics.DomainsWithIPs != 20 {
				t.Errorf("statistics count = %d, want 20", report.Meta.Statistics.DomainsWithIPs)
			}
		})
	}
}

func TestWriteResultsCSV(t *testing.T) {
	w := newTestWriter(t, "csv", 500)
	if _, err := w.WriteResults(config.DefaultTarget("whatsapp"), sampleRecords, sampleNetworks, 0); err != nil {
		t.Fatalf("WriteResults() error = %v", err)
	}

	f, err := os.Open(filepath.Join(w.Dir(), CSVFile))
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want header + 3", len(rows))
	}
	if strings.Join(rows[0], ",") != "domain,ipv4,ipv6,is_new" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[2][1] != "157.240.1.53;157.240.2.53" || rows[1][3] != "true" {
		t.Errorf("rows = %v", rows)
	}
}

func TestWriteResultsUnknownFormat(t *testing.T) {
	w := newTestWriter(t, "xml", 500)
	if _, err := w.WriteResults(nil, sampleRecords, sampleNetworks, 0); err == nil {
		t.Error("WriteResults() expected error for unknown format")
	}
}
