package zeapi

// Handles are opaque driver object identifiers. Zero is the null handle.
type (
	ContextHandle     uint64
	CommandListHandle uint64
	EventHandle       uint64
	GraphHandle       uint64
)

// GroupCount is the dispatch size of a kernel launch.
type GroupCount struct {
	X, Y, Z uint32
}

// ContextDesc describes a context to create.
type ContextDesc struct {
	Flags uint32
}

// CommandListDesc describes a regular (non-immediate) command list.
type CommandListDesc struct {
	Ordinal uint32
	Flags   uint32
}

// EventDesc describes an event to create.
type EventDesc struct {
	Index  uint32
	Signal uint32
	Wait   uint32
}
