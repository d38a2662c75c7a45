package status

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeString(t *testing.T) {
	if got := ErrorObjectInUse.String(); got != "ERROR_HANDLE_OBJECT_IN_USE" {
		t.Fatalf("String() = %q", got)
	}
	if got := Code(0x1234).String(); got != "RESULT(0x00001234)" {
		t.Fatalf("unknown code should still format, got %q", got)
	}
	if !Success.OK() || ErrorUnknown.OK() {
		t.Fatalf("OK() mismatch")
	}
}

func TestErrorMatching(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("outer: %w", Wrap("tracer.enable", ErrorObjectInUse, cause))

	if !errors.Is(err, InUse) {
		t.Fatalf("errors.Is should match by code")
	}
	if errors.Is(err, Uninitialized) {
		t.Fatalf("errors.Is matched the wrong code")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause should stay reachable")
	}
	if CodeOf(err) != ErrorObjectInUse {
		t.Fatalf("CodeOf = %s", CodeOf(err))
	}
	if CodeOf(cause) != ErrorUnknown {
		t.Fatalf("foreign errors map to ErrorUnknown")
	}
	if CodeOf(nil) != Success {
		t.Fatalf("nil maps to Success")
	}
}
