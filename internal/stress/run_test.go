package stress

import (
	"context"
	"errors"
	"sync"
	"testing"

	"zetrace/internal/trace"
)

type collectSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *collectSink) OnEvent(evt Event) {
	s.mu.Lock()
	s.events = append(s.events, evt)
	s.mu.Unlock()
}

func TestRun_TogglesUnderLoad(t *testing.T) {
	ring := trace.NewRingTracer(4096, trace.LevelPhase)
	sink := &collectSink{}
	res, err := Run(context.Background(), &Request{
		Workers:  4,
		Calls:    500,
		Toggles:  40,
		Tracers:  []string{"alpha", "beta"},
		Log:      ring,
		Progress: sink,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Calls != 2000 {
		t.Fatalf("calls = %d, want 2000", res.Calls)
	}
	if res.Toggles != 40 {
		t.Fatalf("toggles = %d, want 40", res.Toggles)
	}
	if len(res.Tracers) != 2 {
		t.Fatalf("tracers = %d, want 2", len(res.Tracers))
	}
	for _, tr := range res.Tracers {
		if tr.Prologues != tr.Epilogues || tr.Mismatched != 0 {
			t.Errorf("tracer %s: %+v", tr.Name, tr)
		}
		if tr.Recreated != 2 {
			t.Errorf("tracer %s recreated %d times, want 2", tr.Name, tr.Recreated)
		}
	}
	if res.Context.Live != 0 || res.Context.Retiring != 0 {
		t.Fatalf("context after teardown: %+v", res.Context)
	}
	if res.Driver.Appended != 2000 {
		t.Fatalf("appended = %d, want 2000", res.Driver.Appended)
	}
	if ring.Count("stress.begin") != 1 || ring.Count("stress.end") != 1 {
		t.Fatalf("missing stress trace events")
	}
	if len(res.Timer.Report().Phases) != 3 {
		t.Fatalf("timer phases = %+v", res.Timer.Report().Phases)
	}

	done := 0
	controller := 0
	for _, ev := range sink.events {
		switch {
		case ev.Worker == ControllerWorker:
			controller++
		case ev.Status == StatusDone:
			done++
		}
	}
	if done != 4 || controller != 40 {
		t.Fatalf("done events = %d, controller events = %d", done, controller)
	}
}

func TestRun_TracingDisabled(t *testing.T) {
	res, err := Run(context.Background(), &Request{Workers: 2, Calls: 100, Toggles: 10, Disabled: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Calls != 200 || res.Toggles != 0 || len(res.Tracers) != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestRun_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  *Request
	}{
		{"nil", nil},
		{"no workers", &Request{Calls: 1, Tracers: []string{"a"}}},
		{"negative calls", &Request{Workers: 1, Calls: -1, Tracers: []string{"a"}}},
		{"no tracers", &Request{Workers: 1, Calls: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Run(context.Background(), tt.req); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, &Request{Workers: 2, Calls: 100, Tracers: []string{"a"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
