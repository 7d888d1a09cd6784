package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const barWidth = 20

// Tracker draws a single-line progress bar for the current scan phase
type Tracker struct {
	mu        sync.Mutex
	writer    io.Writer
	logger    zerolog.Logger
	phase     string
	current   int
	total     int
	startTime time.Time
	now       func() time.Time
	enabled   bool
	lastLine  string
}

// New creates a tracker drawing to w. When disabled, Info messages go to the
// logger instead.
func New(w io.Writer, enabled bool, logger zerolog.Logger) *Tracker {
	return &Tracker{
		writer:    w,
		logger:    logger,
		startTime: time.Now(),
		now:       time.Now,
		enabled:   enabled,
	}
}

// StartPhase starts a new phase of execution
func (p *Tracker) StartPhase(phase string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.enabled {
		p.logger.Debug().Str("phase", phase).Int("total", total).Msg("Phase started")
		return
	}

	p.phase = phase
	p.current = 0
	p.total = total
	p.clearLine()
	p.print()
}

// Update sets the current progress
func (p *Tracker) Update(current int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.enabled {
		return
	}

	p.current = current
	p.clearLine()
	p.print()
}

// Increment advances the current phase by one item.
func (p *Tracker) Increment() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.enabled {
		return
	}

	p.current++
	p.clearLine()
	p.print()
}

// Complete marks the current phase as complete
func (p *Tracker) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.enabled {
		return
	}

	p.current = p.total
	p.clearLine()
	p.print()
	fmt.Fprintln(p.writer)
	p.lastLine = ""
	p.phase = ""
}

// Info prints an informational message without losing the progress line
func (p *Tracker) Info(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.enabled {
		p.logger.Info().Msgf(format, args...)
		return
	}

	p.clearLine()
	fmt.Fprintf(p.writer, format+"\n", args...)
	p.print()
}

func (p *Tracker) clearLine() {
	if p.lastLine != "" {
		fmt.Fprintf(p.writer, "\r%s\r", strings.Repeat(" ", len(p.lastLine)))
	}
}

func (p *Tracker) print() {
	if p.phase == "" {
		return
	}

	elapsed := p.now().Sub(p.startTime)

	percent := float64(0)
	if p.total > 0 {
		percent = float64(p.current) / float64(p.total) * 100
	}
	filled := min(int(percent/100*float64(barWidth)), barWidth)
	bar := strings.Repeat("=", filled) + strings.Repeat("-", barWidth-filled)

	if p.total > 0 {
		p.lastLine = fmt.Sprintf("%-30s [%s] %3.0f%% (%d/%d) [%s]",
			p.phase, bar, percent, p.current, p.total, formatDuration(elapsed))
	} else {
		// unknown total
		p.lastLine = fmt.Sprintf("%-30s [%s] %d items [%s]",
			p.phase, strings.Repeat("=", p.current%barWidth)+">", p.current, formatDuration(elapsed))
	}

	fmt.Fprint(p.writer, "\r"+p.lastLine)
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// Disable stops drawing, for verbose mode where log lines would interleave
func (p *Tracker) Disable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = false
}

func (p *Tracker) Enable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = true
}
