package observ

import (
	"strings"
	"testing"
	"time"
)

func TestTimer_ReportAndSummary(t *testing.T) {
	tm := NewTimer()
	setup := tm.Begin("setup")
	tm.End(setup, "")
	run := tm.Begin("dispatch")
	time.Sleep(2 * time.Millisecond)
	tm.EndOps(run, 1000, "8 workers")
	tm.End(42, "ignored")

	r := tm.Report()
	if len(r.Phases) != 2 {
		t.Fatalf("phases = %d, want 2", len(r.Phases))
	}
	if r.Phases[1].Ops != 1000 || r.Phases[1].OpsPerSec <= 0 {
		t.Fatalf("dispatch phase = %+v", r.Phases[1])
	}
	if r.Phases[0].OpsPerSec != 0 {
		t.Fatalf("setup ops/s = %v, want 0", r.Phases[0].OpsPerSec)
	}
	if r.TotalMS < r.Phases[1].DurationMS {
		t.Fatalf("total %v < dispatch %v", r.TotalMS, r.Phases[1].DurationMS)
	}

	s := tm.Summary()
	for _, want := range []string{"timings:", "dispatch", "ops/s", "// 8 workers", "total"} {
		if !strings.Contains(s, want) {
			t.Errorf("summary missing %q:\n%s", want, s)
		}
	}
}

func TestTimer_EmptyReport(t *testing.T) {
	if r := NewTimer().Report(); r.TotalMS != 0 || r.Phases != nil {
		t.Fatalf("empty report = %+v", r)
	}
}
