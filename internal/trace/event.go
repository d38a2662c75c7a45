package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	// KindSpanBegin marks the start of a logical operation.
	KindSpanBegin Kind = iota + 1
	// KindSpanEnd marks the end of a logical operation.
	KindSpanEnd
	// KindPoint represents an instant event.
	KindPoint
	KindHeartbeat // periodic liveness signal
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Scope indicates the granularity level of the event.
// Lower numeric values represent coarser events.
type Scope uint8

const (
	// ScopeRuntime covers driver init/teardown and CLI commands.
	ScopeRuntime Scope = iota + 1
	// ScopeTracer covers tracer lifecycle, array publication and reclamation.
	ScopeTracer
	// ScopeGraph covers capture start/stop, fork and join.
	ScopeGraph
	ScopeCall // one event per traced driver call
)

// String returns the string representation of Scope.
func (s Scope) String() string {
	switch s {
	case ScopeRuntime:
		return "runtime"
	case ScopeTracer:
		return "tracer"
	case ScopeGraph:
		return "graph"
	case ScopeCall:
		return "call"
	default:
		return "unknown"
	}
}

// Event represents a single trace event.
type Event struct {
	Time     time.Time         // wall-clock timestamp
	Seq      uint64            // global sequence number (monotonic)
	Kind     Kind              // event kind
	Scope    Scope             // granularity level
	SpanID   uint64            // unique span identifier
	ParentID uint64            // parent span (0 if root)
	GID      uint64            // goroutine ID (for concurrent spans)
	Name     string            // e.g. "tracer.enable", "graph.fork"
	Detail   string            // optional detail message
	Extra    map[string]string // extensible key-value pairs
}
