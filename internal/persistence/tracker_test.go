package persistence

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/resistanceisuseless/footprint/internal/enumeration"
	"github.com/resistanceisuseless/footprint/internal/network"
	"github.com/rs/zerolog"
)

func openTestTracker(t *testing.T) (*Tracker, *time.Time) {
	t.Helper()
	tracker, err := Open(filepath.Join(t.TempDir(), "db", "history.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { tracker.Close() })

	current := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return current }
	return tracker, &current
}

func TestTrackRunFlagsNewDomains(t *testing.T) {
	tracker, clock := openTestTracker(t)
	ctx := context.Background()

	first := []enumeration.DomainRecord{
		{Domain: "whatsapp.com", IPv4: []string{"157.240.1.53"}},
		{Domain: "web.whatsapp.com", IPv4: []string{"157.240.1.60"}},
	}
	nets := network.Networks{IPv4: []string{"157.240.0.0/16"}}

	records, summary, err := tracker.TrackRun(ctx, "WhatsApp", first, nets)
	if err != nil {
		t.Fatalf("TrackRun() error = %v", err)
	}
	for _, r := range records {
		if !r.IsNew {
			t.Errorf("%s should be new on first run", r.Domain)
		}
	}
	if len(summary.NewDomains) != 2 || len(summary.NewNetworks) != 1 {
		t.Errorf("summary = %+v", summary)
	}

	*clock = clock.Add(24 * time.Hour)
	second := []enumeration.DomainRecord{
		{Domain: "whatsapp.com", IPv4: []string{"157.240.1.53"}},
		{Domain: "media.whatsapp.net"},
	}
	nets.IPv6 = []string{"2a03:2880:f12f::/48"}

	records, summary, err = tracker.TrackRun(ctx, "whatsapp", second, nets)
	if err != nil {
		t.Fatalf("TrackRun() error = %v", err)
	}
	if records[0].IsNew || !records[1].IsNew {
		t.Errorf("IsNew = %v, %v; want false, true", records[0].IsNew, records[1].IsNew)
	}
	if !reflect.DeepEqual(summary.NewDomains, []string{"media.whatsapp.net"}) {
		t.Errorf("NewDomains = %v", summary.NewDomains)
	}
	if !reflect.DeepEqual(summary.NewNetworks, []string{"2a03:2880:f12f::/48"}) {
		t.Errorf("NewNetworks = %v", summary.NewNetworks)
	}
	// input records are not modified
	if second[1].IsNew {
		t.Error("TrackRun() mutated its input")
	}
}

func TestTrackRunTargetsAreIsolated(t *testing.T) {
	tracker, _ := openTestTracker(t)
	ctx := context.Background()
	records := []enumeration.DomainRecord{{Domain: "shared.example.com"}}

	if _, _, err := tracker.TrackRun(ctx, "alpha", records, network.Networks{}); err != nil {
		t.Fatalf("TrackRun() error = %v", err)
	}
	got, _, err := tracker.TrackRun(ctx, "beta", records, network.Networks{})
	if err != nil {
		t.Fatalf("TrackRun() error = %v", err)
	}
	if !got[0].IsNew {
		t.Error("domain should be new for a different target")
	}
}

func TestHistoryQueries(t *testing.T) {
	tracker, clock := openTestTracker(t)
	ctx := context.Background()
	start := *clock

	runs := [][]enumeration.DomainRecord{
		{{Domain: "a.example.com", IPv4: []string{"8.8.8.8"}}, {Domain: "b.example.com"}},
		{{Domain: "a.example.com", IPv4: []string{"8.8.8.8"}}, {Domain: "c.example.com", IPv6: []string{"2606:4700::1"}}},
		{{Domain: "d.example.com"}},
	}
	for _, records := range runs {
		if _, _, err := tracker.TrackRun(ctx, "example", records, network.Networks{IPv4: []string{"8.8.8.0/24"}}); err != nil {
			t.Fatalf("TrackRun() error = %v", err)
		}
		*clock = clock.Add(time.Hour)
	}

	stats, err := tracker.GetDomainStats(ctx, "example")
	if err != nil {
		t.Fatalf("GetDomainStats() error = %v", err)
	}
	if stats.TotalDomains != 4 || stats.ResolvedDomains != 2 || stats.TotalNetworks != 1 || stats.Runs != 3 {
		t.Errorf("stats = %+v", stats)
	}
	if !stats.FirstRun.Equal(start) || !stats.LastRun.Equal(start.Add(2*time.Hour)) {
		t.Errorf("run window = %s .. %s", stats.FirstRun, stats.LastRun)
	}

	fresh, err := tracker.GetNewDomains(ctx, "example", start.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("GetNewDomains() error = %v", err)
	}
	var names []string
	for _, d := range fresh {
		names = append(names, d.Domain)
	}
	if !reflect.DeepEqual(names, []string{"c.example.com", "d.example.com"}) {
		t.Errorf("GetNewDomains() = %v", names)
	}

	history, err := tracker.GetRuns(ctx, "example", 2)
	if err != nil {
		t.Fatalf("GetRuns() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("GetRuns() = %d runs, want 2", len(history))
	}
	if history[0].Domains != 1 || history[1].NewDomains != 1 || history[1].Resolved != 2 {
		t.Errorf("runs = %+v", history)
	}

	all, err := tracker.GetRuns(ctx, "example", 0)
	if err != nil {
		t.Fatalf("GetRuns() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("GetRuns(0) = %d runs, want 3", len(all))
	}
}

func TestGetDomainStatsEmpty(t *testing.T) {
	tracker, _ := openTestTracker(t)
	stats, err := tracker.GetDomainStats(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("GetDomainStats() error = %v", err)
	}
	if stats.TotalDomains != 0 || stats.Runs != 0 || !stats.LastRun.IsZero() {
		t.Errorf("stats = %+v", stats)
	}
}

func TestPrune(t *testing.T) {
	tracker, clock := openTestTracker(t)
	ctx := context.Background()
	start := *clock

	old := []enumeration.DomainRecord{{Domain: "old.example.com"}, {Domain: "kept.example.com"}}
	if _, _, err := tracker.TrackRun(ctx, "example", old, network.Networks{IPv4: []string{"8.8.8.0/24"}}); err != nil {
		t.Fatalf("TrackRun() error = %v", err)
	}

	*clock = start.Add(48 * time.Hour)
	fresh := []enumeration.DomainRecord{{Domain: "kept.example.com"}}
	if _, _, err := tracker.TrackRun(ctx, "example", fresh, network.Networks{}); err != nil {
		t.Fatalf("TrackRun() error = %v", err)
	}

	removed, err := tracker.Prune(ctx, "example", start.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("Prune() removed %d rows, want 2", removed)
	}

	stats, err := tracker.GetDomainStats(ctx, "example")
	if err != nil {
		t.Fatalf("GetDomainStats() error = %v", err)
	}
	if stats.TotalDomains != 1 || stats.TotalNetworks != 0 || stats.Runs != 2 {
		t.Errorf("stats after prune = %+v", stats)
	}

	// a pruned domain is new again
	records, _, err := tracker.TrackRun(ctx, "example", old[:1], network.Networks{})
	if err != nil {
		t.Fatalf("TrackRun() error = %v", err)
	}
	if !records[0].IsNew {
		t.Error("pruned domain should be reported as new")
	}
}
