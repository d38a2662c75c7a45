// Package observ times the phases of a CLI run.
package observ

import (
	"fmt"
	"strings"
	"time"
)

// Phase records the duration and metadata of one run phase.
type Phase struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Ops   uint64
	Note  string
}

// Timer tracks the execution time of consecutive phases.
type Timer struct {
	phases []Phase
}

// NewTimer creates a new empty Timer.
func NewTimer() *Timer { return &Timer{phases: make([]Phase, 0, 4)} }

// Begin starts a new phase and returns its index.
func (t *Timer) Begin(name string) int {
	t.phases = append(t.phases, Phase{Name: name, Start: time.Now()})
	return len(t.phases) - 1
}

// End finishes a phase by its index.
func (t *Timer) End(idx int, note string) {
	t.EndOps(idx, 0, note)
}

// EndOps finishes a phase and records how many operations it performed.
func (t *Timer) EndOps(idx int, ops uint64, note string) {
	if idx < 0 || idx >= len(t.phases) {
		return
	}
	p := &t.phases[idx]
	p.Dur = time.Since(p.Start)
	p.Ops = ops
	p.Note = note
}

// Summary returns a human-readable table of all tracked phases.
func (t *Timer) Summary() string {
	report := t.Report()
	var b strings.Builder
	b.WriteString("timings:\n")
	for _, p := range report.Phases {
		fmt.Fprintf(&b, "  %-20s %9.2f ms", p.Name, p.DurationMS)
		if p.Ops > 0 {
			fmt.Fprintf(&b, "  %12.0f ops/s", p.OpsPerSec)
		}
		if p.Note != "" {
			b.WriteString("  // " + p.Note)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "  %-20s %9.2f ms\n", "total", report.TotalMS)
	return b.String()
}

// PhaseReport is the serialisable form of a Phase.
type PhaseReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Ops        uint64  `json:"ops,omitempty"`
	OpsPerSec  float64 `json:"ops_per_sec,omitempty"`
	Note       string  `json:"note,omitempty"`
}

// Report aggregates every phase.
type Report struct {
	TotalMS float64       `json:"total_ms"`
	Phases  []PhaseReport `json:"phases"`
}

func (t *Timer) Report() Report {
	if len(t.phases) == 0 {
		return Report{}
	}
	report := Report{
		Phases: make([]PhaseReport, len(t.phases)),
	}
	var total time.Duration
	for i, phase := range t.phases {
		total += phase.Dur
		pr := PhaseReport{
			Name:       phase.Name,
			DurationMS: durationToMillis(phase.Dur),
			Ops:        phase.Ops,
			Note:       phase.Note,
		}
		if phase.Ops > 0 && phase.Dur > 0 {
			pr.OpsPerSec = float64(phase.Ops) / phase.Dur.Seconds()
		}
		report.Phases[i] = pr
	}
	report.TotalMS = durationToMillis(total)
	return report
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
