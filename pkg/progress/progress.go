// Package progress provides progress reporting for packaging sessions.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Phase names the packaging step an event belongs to.
type Phase string

const (
	PhaseStaging   Phase = "staging"
	PhaseRepairing Phase = "repairing"
	PhaseArchiving Phase = "archiving"
	PhaseFinished  Phase = "finished"
)

// Event is one progress report. Percent is in [0,100].
type Event struct {
	Percent float64
	Label   string
	Phase   Phase
}

// Callback receives progress events synchronously.
type Callback func(Event)

// Noop is a no-op callback for default behavior.
func Noop(Event) {}

// Range is the half-open percentage band [Start, End) owned by a phase.
type Range struct {
	Start float64
	End   float64
}

// Tracker scales per-phase fractions into the overall percentage band and
// never reports a value lower than one it already reported.
type Tracker struct {
	cb     Callback
	ranges map[Phase]Range
	last   float64
}

// NewTracker creates a tracker over the given phase bands.
func NewTracker(cb Callback, ranges map[Phase]Range) *Tracker {
	if cb == nil {
		cb = Noop
	}
	return &Tracker{cb: cb, ranges: ranges}
}

// Report emits an event for fraction (clamped to [0,1]) of phase.
func (t *Tracker) Report(phase Phase, fraction float64, label string) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	var pct float64
	switch r, ok := t.ranges[phase]; {
	case phase == PhaseFinished:
		pct = 100
	case ok:
		pct = r.Start + (r.End-r.Start)*fraction
	default:
		pct = t.last
	}
	if pct > 100 {
		pct = 100
	}
	if pct < t.last {
		pct = t.last
	}
	t.last = pct
	t.cb(Event{Percent: pct, Label: label, Phase: phase})
}

// Finish reports 100% in PhaseFinished.
func (t *Tracker) Finish(label string) {
	t.Report(PhaseFinished, 1, label)
}

// Current returns the last reported percentage.
func (t *Tracker) Current() float64 {
	return t.last
}

// Terminal renders events as a single-line progress bar.
type Terminal struct {
	mu          sync.Mutex
	writer      io.Writer
	op          string
	lastLineLen int
	enabled     bool
}

// NewTerminal creates a terminal progress bar writing to stderr.
func NewTerminal(op string, enabled bool) *Terminal {
	return &Terminal{writer: os.Stderr, op: op, enabled: enabled}
}

// SetWriter redirects rendering, mostly for tests.
func (t *Terminal) SetWriter(w io.Writer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writer = w
}

// Callback returns a Callback that renders into this terminal.
func (t *Terminal) Callback() Callback {
	return func(ev Event) {
		t.mu.Lock()
		defer t.mu.Unlock()
		if !t.enabled {
			return
		}
		t.render(ev)
		if ev.Phase == PhaseFinished {
			fmt.Fprintln(t.writer)
			t.lastLineLen = 0
		}
	}
}

func (t *Terminal) render(ev Event) {
	barWidth := 30
	filled := int(float64(barWidth) * ev.Percent / 100)
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled)

	clear := "\r"
	if t.lastLineLen > 0 {
		clear = "\r" + strings.Repeat(" ", t.lastLineLen) + "\r"
	}

	line := fmt.Sprintf("%s [%s] %3.0f%% %s", t.op, bar, ev.Percent, ev.Phase)
	if ev.Label != "" {
		line += " " + ev.Label
	}
	fmt.Fprint(t.writer, clear+line)
	t.lastLineLen = len(line)
}

// SetEnabled enables or disables rendering.
func (t *Terminal) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

// IsEnabled reports whether rendering is enabled.
func (t *Terminal) IsEnabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// Tee fans one event out to several callbacks in order.
func Tee(cbs ...Callback) Callback {
	return func(ev Event) {
		for _, cb := range cbs {
			if cb != nil {
				cb(ev)
			}
		}
	}
}
