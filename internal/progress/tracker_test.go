package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestTracker(enabled bool) (*Tracker, *bytes.Buffer, *bytes.Buffer) {
	var out, logs bytes.Buffer
	p := New(&out, enabled, zerolog.New(&logs))
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p.startTime = start
	p.now = func() time.Time { return start.Add(1500 * time.Millisecond) }
	return p, &out, &logs
}

func TestTrackerDrawsBar(t *testing.T) {
	p, out, _ := newTestTracker(true)

	p.StartPhase("Resolving domains", 200)
	p.Update(100)
	p.Complete()

	got := out.String()
	for _, want := range []string{
		"[--------------------]   0% (0/200)",
		"[==========----------]  50% (100/200) [1.5s]",
		"[====================] 100% (200/200) [1.5s]",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%q", want, got)
		}
	}
	if !strings.HasSuffix(got, "\n") {
		t.Error("Complete() should end the line")
	}
}

func TestTrackerUnknownTotal(t *testing.T) {
	p, out, _ := newTestTracker(true)
	p.StartPhase("Collecting", 0)
	p.Increment()
	p.Increment()

	if !strings.Contains(out.String(), "[==>] 2 items") {
		t.Errorf("output = %q", out.String())
	}
}

func TestTrackerInfoKeepsProgressLine(t *testing.T) {
	p, out, logs := newTestTracker(true)
	p.StartPhase("Resolving domains", 10)
	p.Info("Loaded %d domains", 10)

	got := out.String()
	idx := strings.Index(got, "Loaded 10 domains\n")
	if idx < 0 {
		t.Fatalf("info line missing: %q", got)
	}
	if !strings.Contains(got[idx:], "Resolving domains") {
		t.Errorf("progress line not redrawn after info: %q", got)
	}
	if logs.Len() != 0 {
		t.Errorf("enabled tracker should not log, got %s", logs.String())
	}
}

func TestTrackerDisabled(t *testing.T) {
	p, out, logs := newTestTracker(false)
	p.StartPhase("Resolving domains", 10)
	p.Update(5)
	p.Complete()
	p.Info("Loaded %d domains", 10)

	if out.Len() != 0 {
		t.Errorf("disabled tracker wrote %q", out.String())
	}
	if !strings.Contains(logs.String(), "Loaded 10 domains") {
		t.Errorf("info not logged: %s", logs.String())
	}

	p.Enable()
	p.StartPhase("Writing", 1)
	if out.Len() == 0 {
		t.Error("re-enabled tracker should draw")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{1500 * time.Millisecond, "1.5s"},
		{2*time.Minute + 5*time.Second, "2m5s"},
		{3*time.Hour + 20*time.Minute, "3h20m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%s) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
