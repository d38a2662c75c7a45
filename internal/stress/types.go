// Package stress drives traced calls from many goroutines while a
// controller enables, disables and recreates tracers, then checks that
// every call saw a consistent tracer set.
package stress

import (
	"errors"
	"time"

	"zetrace/internal/driver"
	"zetrace/internal/observ"
	"zetrace/internal/trace"
	"zetrace/internal/tracer"
)

// ControllerWorker is the Worker value of events reported by the controller.
const ControllerWorker = -1

// ErrInvariant is returned when the post-run checks fail.
var ErrInvariant = errors.New("stress invariant violated")

// Status of a worker.
type Status uint8

const (
	StatusQueued Status = iota
	StatusRunning
	StatusDone
	StatusError
)

// Event reports progress of a worker or the controller.
type Event struct {
	Worker int
	Done   int
	Status Status
	Note   string
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// Request configures a run.
type Request struct {
	Workers int
	Calls   int // per worker
	Toggles int
	Tracers []string

	// Disabled turns the process-wide tracing switch off; calls then go
	// straight to the driver and no tracers are created.
	Disabled   bool
	MaxThreads int
	DrainPoll  time.Duration

	Log      trace.Tracer
	Progress ProgressSink
}

// TracerReport is what one tracer slot observed.
type TracerReport struct {
	Name       string
	Prologues  uint64
	Epilogues  uint64
	Mismatched uint64
	Recreated  int
}

// Result summarises a run.
type Result struct {
	Calls   uint64 // real driver calls made by workers
	Toggles int
	Tracers []TracerReport
	Context tracer.Stats
	Driver  driver.Stats
	Timer   *observ.Timer
}
