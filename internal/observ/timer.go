// Package observ times the phases of a refresh. One Timer may be shared by
// concurrent refreshes; its report aggregates repeated phases by name.
package observ

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Pipeline phase names.
const (
	PhaseConfig  = "config"
	PhaseCommand = "command"
	PhaseExec    = "exec"
	PhaseParse   = "parse"
	PhasePublish = "publish"
)

type span struct {
	name  string
	start time.Time
	dur   time.Duration
	note  string
	done  bool
}

// Timer records phase spans. A nil *Timer is valid and records nothing.
type Timer struct {
	mu      sync.Mutex
	created time.Time
	spans   []span
}

// NewTimer creates a Timer whose wall clock starts now.
func NewTimer() *Timer {
	return &Timer{created: time.Now(), spans: make([]span, 0, 8)}
}

// Begin opens a span for phase name and returns a handle for End.
func (t *Timer) Begin(name string) int {
	if t == nil {
		return -1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = append(t.spans, span{name: name, start: time.Now()})
	return len(t.spans) - 1
}

// End closes the span opened by Begin. Unknown or already closed handles are
// ignored.
func (t *Timer) End(idx int, note string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx < 0 || idx >= len(t.spans) || t.spans[idx].done {
		return
	}
	s := &t.spans[idx]
	s.dur = time.Since(s.start)
	s.note = note
	s.done = true
}

// PhaseReport aggregates every closed span of one phase.
type PhaseReport struct {
	Name    string  `json:"name"`
	Count   int     `json:"count"`
	TotalMS float64 `json:"total_ms"`
	MaxMS   float64 `json:"max_ms"`
	// Note is kept only for phases that ran once.
	Note string `json:"note,omitempty"`
}

// Report is the serializable form of a Timer. WallMS can be smaller than the
// sum of the phases when refreshes overlap.
type Report struct {
	WallMS float64       `json:"wall_ms"`
	Phases []PhaseReport `json:"phases"`
}

// Report aggregates closed spans by phase name in first-seen order.
func (t *Timer) Report() Report {
	if t == nil {
		return Report{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	report := Report{WallMS: millis(time.Since(t.created))}
	pos := make(map[string]int)
	for _, s := range t.spans {
		if !s.done {
			continue
		}
		i, ok := pos[s.name]
		if !ok {
			i = len(report.Phases)
			pos[s.name] = i
			report.Phases = append(report.Phases, PhaseReport{Name: s.name, Note: s.note})
		} else {
			report.Phases[i].Note = ""
		}
		p := &report.Phases[i]
		p.Count++
		ms := millis(s.dur)
		p.TotalMS += ms
		p.MaxMS = max(p.MaxMS, ms)
	}
	return report
}

// Summary renders the report as an aligned table.
func (t *Timer) Summary() string {
	report := t.Report()
	var b strings.Builder
	b.WriteString("timings:\n")
	for _, p := range report.Phases {
		fmt.Fprintf(&b, "  %-10s %4dx %9.2f ms", p.Name, p.Count, p.TotalMS)
		if p.Count > 1 {
			fmt.Fprintf(&b, "  (max %.2f ms)", p.MaxMS)
		} else if p.Note != "" {
			b.WriteString("  // " + p.Note)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "  %-10s       %9.2f ms\n", "wall", report.WallMS)
	return b.String()
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
