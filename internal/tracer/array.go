package tracer

import (
	"sync/atomic"

	"zetrace/internal/zeapi"
)

// Entry is one enabled tracer as seen by a traced call.
type Entry struct {
	Prologues *zeapi.CallbackTable
	Epilogues *zeapi.CallbackTable
	UserData  any

	tracer *Tracer
}

// Tracer returns the registration this entry was built from.
func (e *Entry) Tracer() *Tracer { return e.tracer }

// Array is an immutable snapshot of the enabled tracers, in enable order.
// It is never modified after it is published.
type Array struct {
	entries    []Entry
	generation uint64

	reclaimed atomic.Bool
}

// emptyArray is the sentinel published when no tracer is enabled. It is
// never retired.
var emptyArray = &Array{}

func newArray(entries []Entry, generation uint64) *Array {
	return &Array{entries: entries, generation: generation}
}

// Len returns the number of entries.
func (a *Array) Len() int {
	if a == nil {
		return 0
	}
	return len(a.entries)
}

// At returns the i-th entry. Entries must not be modified.
func (a *Array) At(i int) *Entry {
	return &a.entries[i]
}

// Generation is the publish counter value the array was built under.
// The sentinel has generation 0.
func (a *Array) Generation() uint64 {
	if a == nil {
		return 0
	}
	return a.generation
}

// Reclaimed reports whether the context has reclaimed this array. A Thread
// never observes true for an array it holds between Acquire and Release.
func (a *Array) Reclaimed() bool {
	return a != nil && a.reclaimed.Load()
}
