package tracer

import (
	"context"
	"sync/atomic"
)

// Thread is the per-thread tracing state: the Array this thread currently
// holds (or nil) and the re-entrance flag. A Thread must be used by one
// goroutine at a time; only its owner writes ref.
type Thread struct {
	ctx *Context

	// ref is read by the reclaim scan under Context.threadsMu.
	ref atomic.Pointer[Array]

	registered bool
	closed     bool
	inDispatch bool
	callID     uint64 // correlation id of the in-flight traced call
}

// NewThread returns a Thread bound to c. It joins the context's thread
// registry lazily, on its first Acquire.
func (c *Context) NewThread() *Thread {
	return &Thread{ctx: c}
}

// Context returns the tracing context the thread belongs to.
func (th *Thread) Context() *Context { return th.ctx }

// Acquire returns the active Array and records it as held by this thread,
// or nil when the thread cannot be registered. The returned Array stays
// unreclaimed until Release.
func (th *Thread) Acquire() *Array {
	if !th.registered {
		if th.closed || !th.ctx.registerThread(th) {
			return nil
		}
		th.registered = true
	}

	// Publish the reference, then re-check the active pointer. A writer that
	// retired the array in between is either seen here (retry) or sees our
	// reference in its scan (array kept).
	a := th.ctx.active.Load()
	for {
		th.ref.Store(a)
		cur := th.ctx.active.Load()
		if cur == a {
			return a
		}
		a = cur
	}
}

// Release drops the reference taken by Acquire.
func (th *Thread) Release() {
	if th.registered {
		th.ref.Store(nil)
	}
}

// Holding returns the array currently referenced by the thread, or nil.
func (th *Thread) Holding() *Array {
	return th.ref.Load()
}

// InDispatch reports whether the thread is inside a traced call, i.e. the
// caller is running from a prologue, epilogue or the real entry point.
func (th *Thread) InDispatch() bool {
	return th != nil && th.inDispatch
}

// CorrelationID returns the id of the in-flight traced call, or 0.
func (th *Thread) CorrelationID() uint64 {
	if th == nil {
		return 0
	}
	return th.callID
}

// Close removes the thread from the registry. A closed thread no longer
// blocks reclamation and Acquire returns nil afterwards.
func (th *Thread) Close() {
	if th.closed {
		return
	}
	th.closed = true
	th.ref.Store(nil)
	if th.registered {
		th.ctx.unregisterThread(th)
		th.registered = false
	}
}

type threadKey struct{}

// WithThread attaches th to ctx for the tracing trampolines.
func WithThread(ctx context.Context, th *Thread) context.Context {
	return context.WithValue(ctx, threadKey{}, th)
}

// ThreadFromContext returns the Thread attached to ctx, or nil. Calls made
// with no Thread are not traced.
func ThreadFromContext(ctx context.Context) *Thread {
	if ctx == nil {
		return nil
	}
	th, _ := ctx.Value(threadKey{}).(*Thread)
	return th
}
