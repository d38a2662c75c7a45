package ui

import (
	"strings"
	"testing"

	"zetrace/internal/stress"
)

func TestProgressModel_AppliesEvents(t *testing.T) {
	m := NewProgressModel("stress", 2, 100, nil).(*progressModel)

	m.applyEvent(stress.Event{Worker: 0, Done: 50, Status: stress.StatusRunning})
	m.applyEvent(stress.Event{Worker: 1, Done: 100, Status: stress.StatusDone})
	m.applyEvent(stress.Event{Worker: stress.ControllerWorker, Note: "toggle 3/10"})
	m.applyEvent(stress.Event{Worker: 7, Done: 1})

	if got := m.fraction(); got != 0.75 {
		t.Fatalf("fraction = %v, want 0.75", got)
	}
	view := m.View()
	for _, want := range []string{"stress (toggle 3/10)", "worker 0  50/100", "running", "done"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("worker 12  9000/10000", 10); got != "worker ..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("worker 12  9000/10000", 20); got != "worker 12  9000/1..." {
		t.Fatalf("truncate 20 = %q", got)
	}
	if got := truncate("worker", 3); got != "wor" {
		t.Fatalf("truncate 3 = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate short = %q", got)
	}
}
