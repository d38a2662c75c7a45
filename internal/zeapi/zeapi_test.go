package zeapi

import (
	"testing"

	"zetrace/internal/status"
)

func TestAPINamesRoundTrip(t *testing.T) {
	for id := APIID(0); id < NumAPIs; id++ {
		name := id.String()
		if name == "" {
			t.Fatalf("api %d has no name", id)
		}
		got, ok := ParseAPI(name)
		if !ok || got != id {
			t.Fatalf("ParseAPI(%q) = %d, %v", name, got, ok)
		}
	}
	if NumAPIs.Valid() || NumAPIs.String() != "unknown" {
		t.Fatalf("NumAPIs must be out of range")
	}
}

func TestCallbackTable(t *testing.T) {
	var tbl CallbackTable
	var seen EventHandle
	tbl.Set(APICommandListAppendSignalEvent, On(func(p *CommandListAppendSignalEventParams, _ status.Code, _ any, _ *any) {
		seen = p.HEvent
	}))
	tbl.Set(NumAPIs, func(any, status.Code, any, *any) {})

	if tbl.Count() != 1 {
		t.Fatalf("Count = %d", tbl.Count())
	}
	cb := tbl.Get(APICommandListAppendSignalEvent)
	cb(&CommandListAppendSignalEventParams{HEvent: 7}, status.Success, nil, nil)
	if seen != 7 {
		t.Fatalf("typed callback not invoked")
	}
	cb(&CommandListAppendBarrierParams{}, status.Success, nil, nil)
	if seen != 7 {
		t.Fatalf("mismatched params must be ignored")
	}

	var nilTable *CallbackTable
	if nilTable.Get(APIContextCreate) != nil {
		t.Fatalf("nil table must return nil")
	}
}
