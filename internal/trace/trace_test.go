package trace

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestLevelGatesScopes(t *testing.T) {
	cases := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopeRuntime, false},
		{LevelError, ScopeRuntime, false},
		{LevelPhase, ScopeTracer, true},
		{LevelPhase, ScopeGraph, false},
		{LevelDetail, ScopeGraph, true},
		{LevelDetail, ScopeCall, false},
		{LevelDebug, ScopeCall, true},
	}
	for _, tc := range cases {
		if got := tc.level.ShouldEmit(tc.scope); got != tc.want {
			t.Errorf("%s.ShouldEmit(%s) = %v, want %v", tc.level, tc.scope, got, tc.want)
		}
	}
}

func TestRingTracer_WrapsInOrder(t *testing.T) {
	r := NewRingTracer(3, LevelDetail)
	for _, name := range []string{"a", "b", "c", "d"} {
		Point(r, ScopeGraph, name, "")
	}
	Point(r, ScopeCall, "hidden", "")

	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("len = %d, want 3", len(snap))
	}
	for i, want := range []string{"b", "c", "d"} {
		if snap[i].Name != want {
			t.Fatalf("snap[%d] = %q, want %q", i, snap[i].Name, want)
		}
	}
	if r.Count("a") != 0 || r.Count("d") != 1 || r.Count("hidden") != 0 {
		t.Fatalf("unexpected counts")
	}
}

func TestStreamTracer_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	s := NewStreamTracer(&buf, LevelPhase, FormatText)
	Point(s, ScopeTracer, "tracer.enable", "alpha", "state", "enabled", "generation", "3")
	if err := s.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	line := buf.String()
	for _, want := range []string{"tracer", "tracer.enable (alpha)", "{generation=3, state=enabled}"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestParse(t *testing.T) {
	if _, err := ParseLevel("verbose"); err == nil {
		t.Errorf("ParseLevel accepted an unknown level")
	}
	if l, err := ParseLevel("DETAIL"); err != nil || l != LevelDetail {
		t.Errorf("ParseLevel(DETAIL) = %v, %v", l, err)
	}
	if m, err := ParseMode("both"); err != nil || m != ModeBoth {
		t.Errorf("ParseMode(both) = %v, %v", m, err)
	}
	if _, err := ParseMode("disk"); err == nil {
		t.Errorf("ParseMode accepted an unknown mode")
	}
}

func TestNewOffIsNop(t *testing.T) {
	tr, err := New(Config{Level: LevelOff, Mode: ModeRing})
	if err != nil || tr != Nop {
		t.Fatalf("New(off) = %v, %v", tr, err)
	}
	if FromContext(context.Background()) != Nop {
		t.Fatalf("empty context should carry Nop")
	}
	r := NewRingTracer(4, LevelPhase)
	if FromContext(WithTracer(context.Background(), r)) != r {
		t.Fatalf("tracer lost in context")
	}
}
