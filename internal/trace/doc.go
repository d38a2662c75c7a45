// Package trace is the runtime's own diagnostic event stream.
//
// It records what the tracing layer and the capture graph do internally:
// tracer enable/disable transitions, array publication and reclamation,
// fork/join decisions, and (at debug level) individual traced calls. It is
// unrelated to the API tracers applications install through package tracer;
// those observe driver calls, this observes the runtime.
//
// # Usage
//
//	zetrace stress --trace=- --trace-level=detail
//
// # Architecture
//
//   - Nop: zero-overhead tracer when disabled
//   - StreamTracer: immediate write to output (file/stderr)
//   - RingTracer: circular buffer, dumped on failure and inspected by tests
//   - MultiTracer: fan-out to several tracers
//
// # Levels
//
//   - LevelOff: No tracing
//   - LevelError: Only crash dumps
//   - LevelPhase: Runtime lifecycle and tracer state transitions
//   - LevelDetail: Capture graph events
//   - LevelDebug: Every traced driver call
//
// # Context Propagation
//
//	ctx = trace.WithTracer(ctx, t)
//	t := trace.FromContext(ctx)
//
//	span := trace.Begin(t, trace.ScopeRuntime, "stress", 0)
//	defer span.End("")
package trace
