package tracer

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"zetrace/internal/status"
	"zetrace/internal/trace"
)

// DefaultDrainPoll is the sleep between reclaim attempts while a disabled
// tracer drains.
const DefaultDrainPoll = time.Millisecond

// Options configures a Context.
type Options struct {
	// Enabled is the process-wide tracing switch read at driver init.
	// With it off, CreateTracer fails and traced calls go straight through.
	Enabled bool

	// MaxThreads bounds the thread registry; 0 means unbounded. A thread
	// that cannot register runs its calls untraced.
	MaxThreads int

	// DrainPoll overrides DefaultDrainPoll.
	DrainPoll time.Duration

	// Log receives tracer lifecycle events. Nil means trace.Nop.
	Log trace.Tracer
}

// Context is the process-wide tracing coordinator. It owns the active
// Array, the ordered set of enabled tracers and the retiring arrays.
type Context struct {
	// active is never nil; it holds emptyArray when nothing is enabled.
	active  atomic.Pointer[Array]
	enabled atomic.Bool
	closed  atomic.Bool

	mu         sync.Mutex // serialises writers
	tracers    []*Tracer  // enabled, in enable order
	retiring   []*Array
	live       int // created and not destroyed
	generation uint64

	threadsMu  sync.Mutex
	threads    map[*Thread]struct{}
	maxThreads int

	drainPoll time.Duration
	log       trace.Tracer

	correlation  atomic.Uint64
	published    atomic.Uint64
	reclaimed    atomic.Uint64
	regFailures  atomic.Uint64
	drainedWaits atomic.Uint64
}

// NewContext creates a tracing context. It is normally created once at
// driver init and closed at driver unload.
func NewContext(opts Options) *Context {
	c := &Context{
		threads:    make(map[*Thread]struct{}),
		maxThreads: opts.MaxThreads,
		drainPoll:  opts.DrainPoll,
		log:        trace.OrNop(opts.Log),
	}
	if c.drainPoll <= 0 {
		c.drainPoll = DefaultDrainPoll
	}
	c.active.Store(emptyArray)
	c.enabled.Store(opts.Enabled)
	trace.Point(c.log, trace.ScopeRuntime, "tracer.context.init", "",
		"enabled", strconv.FormatBool(opts.Enabled),
		"max_threads", strconv.Itoa(opts.MaxThreads))
	return c
}

// TracingEnabled reports whether the tracing subsystem is initialised and
// switched on. Traced calls check it before acquiring an Array.
func (c *Context) TracingEnabled() bool {
	return c.enabled.Load() && !c.closed.Load()
}

// Active returns the currently published Array. Callers that dispatch must
// go through Thread.Acquire instead.
func (c *Context) Active() *Array {
	return c.active.Load()
}

// Enable switches t on or off. caller is the calling thread, or nil for a
// thread that never traces.
//
//   - Disabled, on: t joins the enabled set and a new Array is published.
//   - Enabled, off: t leaves the enabled set and becomes DisabledWaiting, or
//     Disabled right away if nothing still references a retired Array.
//   - DisabledWaiting: ErrorObjectInUse, a previous disable is still draining.
//   - Anything else is a no-op.
//
// Disabling from inside a traced call is refused with ErrorObjectInUse.
func (c *Context) Enable(caller *Thread, t *Tracer, on bool) error {
	const op = "tracer.enable"
	if t == nil {
		return status.New(op, status.ErrorInvalidNullHandle)
	}
	if t.ctx != c {
		return status.New(op, status.ErrorInvalidArgument)
	}
	if !on && caller.InDispatch() {
		return status.New(op, status.ErrorObjectInUse)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return status.New(op, status.ErrorUninitialized)
	}
	if t.destroyed {
		return status.New(op, status.ErrorInvalidNullHandle)
	}

	switch {
	case t.state == StateDisabledWaiting:
		return status.New(op, status.ErrorObjectInUse)

	case t.state == StateDisabled && on:
		c.tracers = append(c.tracers, t)
		t.state = StateEnabled
		c.rebuildAndPublish()
		trace.Point(c.log, trace.ScopeTracer, "tracer.enable", t.name,
			"enabled", strconv.Itoa(len(c.tracers)))

	case t.state == StateEnabled && !on:
		c.removeEnabled(t)
		t.state = StateDisabledWaiting
		if c.rebuildAndPublish() == 0 {
			t.state = StateDisabled
		}
		trace.Point(c.log, trace.ScopeTracer, "tracer.disable", t.name,
			"state", t.state.String(),
			"retiring", strconv.Itoa(len(c.retiring)))
	}
	return nil
}

func (c *Context) removeEnabled(t *Tracer) {
	for i, cur := range c.tracers {
		if cur == t {
			c.tracers = append(c.tracers[:i], c.tracers[i+1:]...)
			return
		}
	}
}

// rebuildAndPublish builds an Array from the enabled set, publishes it and
// retires the previous one. It returns the number of retiring arrays left
// after a reclaim pass. c.mu must be held.
func (c *Context) rebuildAndPublish() int {
	next := emptyArray
	if len(c.tracers) > 0 {
		c.generation++
		entries := make([]Entry, len(c.tracers))
		for i, t := range c.tracers {
			pro, epi := t.prologues, t.epilogues
			entries[i] = Entry{
				Prologues: &pro,
				Epilogues: &epi,
				UserData:  t.userData,
				tracer:    t,
			}
		}
		next = newArray(entries, c.generation)
	}

	prev := c.active.Swap(next)
	c.published.Add(1)
	if prev != emptyArray && prev != next {
		c.retiring = append(c.retiring, prev)
	}
	trace.Point(c.log, trace.ScopeTracer, "tracer.publish", "",
		"generation", strconv.FormatUint(next.Generation(), 10),
		"entries", strconv.Itoa(next.Len()))
	return c.reclaim()
}

// reclaim drops every retiring array no registered thread references and
// returns how many remain. c.mu must be held. Threads are not blocked: the
// scan only holds the registry lock, which the hot path never takes.
func (c *Context) reclaim() int {
	if len(c.retiring) == 0 {
		return 0
	}

	c.threadsMu.Lock()
	held := make(map[*Array]struct{}, len(c.threads))
	for th := range c.threads {
		if a := th.ref.Load(); a != nil {
			held[a] = struct{}{}
		}
	}
	c.threadsMu.Unlock()

	kept := c.retiring[:0]
	freed := 0
	for _, a := range c.retiring {
		if _, ok := held[a]; ok {
			kept = append(kept, a)
			continue
		}
		a.reclaimed.Store(true)
		freed++
	}
	clear(c.retiring[len(kept):])
	c.retiring = kept

	if freed > 0 {
		c.reclaimed.Add(uint64(freed))
		trace.Point(c.log, trace.ScopeTracer, "tracer.reclaim", "",
			"freed", strconv.Itoa(freed),
			"remaining", strconv.Itoa(len(kept)))
	}
	return len(kept)
}

// FinalizeDisableWait waits for a disabled tracer to drain.
//
//   - Disabled: returns nil.
//   - Enabled: ErrorObjectInUse.
//   - DisabledWaiting: polls reclaim, sleeping DrainPoll between attempts,
//     until no retired array is referenced, then moves t to Disabled.
//
// The wait ends once every thread that held a superseded array has
// released it, so it is bounded by the longest in-flight traced call. It
// must not be called from inside a traced call on the same thread.
func (c *Context) FinalizeDisableWait(t *Tracer) error {
	return c.finalize(t, false)
}

func (c *Context) finalize(t *Tracer, destroy bool) error {
	const op = "tracer.finalize"
	if t == nil {
		return status.New(op, status.ErrorInvalidNullHandle)
	}

	polls := 0
	start := time.Now()
	for {
		c.mu.Lock()
		if t.destroyed {
			c.mu.Unlock()
			return status.New(op, status.ErrorInvalidNullHandle)
		}
		switch t.state {
		case StateEnabled:
			c.mu.Unlock()
			return status.New(op, status.ErrorObjectInUse)

		case StateDisabledWaiting:
			if c.reclaim() > 0 {
				c.mu.Unlock()
				polls++
				time.Sleep(c.drainPoll)
				continue
			}
			t.state = StateDisabled
			c.drainedWaits.Add(1)
			trace.Point(c.log, trace.ScopeTracer, "tracer.drain", t.name,
				"polls", strconv.Itoa(polls),
				"waited", time.Since(start).String())
		}

		if destroy {
			t.destroyed = true
			c.live--
		}
		c.mu.Unlock()
		return nil
	}
}

// Close tears the context down. It must run after every application thread
// has stopped issuing traced calls. Tracers still enabled are dropped.
func (c *Context) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	for _, t := range c.tracers {
		t.state = StateDisabled
	}
	c.tracers = nil
	c.active.Store(emptyArray)
	for _, a := range c.retiring {
		a.reclaimed.Store(true)
	}
	c.retiring = nil
	c.mu.Unlock()

	c.threadsMu.Lock()
	clear(c.threads)
	c.threadsMu.Unlock()

	trace.Point(c.log, trace.ScopeRuntime, "tracer.context.close", "")
	return nil
}

func (c *Context) registerThread(th *Thread) bool {
	if c.closed.Load() {
		return false
	}
	c.threadsMu.Lock()
	defer c.threadsMu.Unlock()
	if c.maxThreads > 0 && len(c.threads) >= c.maxThreads {
		c.regFailures.Add(1)
		return false
	}
	c.threads[th] = struct{}{}
	return true
}

func (c *Context) unregisterThread(th *Thread) {
	c.threadsMu.Lock()
	delete(c.threads, th)
	c.threadsMu.Unlock()
}

// Stats is a point-in-time view of the context counters.
type Stats struct {
	Enabled              int    // tracers currently enabled
	Live                 int    // tracers created and not destroyed
	Retiring             int    // arrays awaiting reclamation
	Threads              int    // registered threads
	Generation           uint64 // generation of the active array
	Published            uint64 // arrays published, including the sentinel
	Reclaimed            uint64 // retired arrays reclaimed
	RegistrationFailures uint64 // threads that could not register
	DrainedWaits         uint64 // disables completed by FinalizeDisableWait
}

// Stats returns the current counters.
func (c *Context) Stats() Stats {
	c.mu.Lock()
	s := Stats{
		Enabled:    len(c.tracers),
		Live:       c.live,
		Retiring:   len(c.retiring),
		Generation: c.active.Load().Generation(),
	}
	c.mu.Unlock()

	c.threadsMu.Lock()
	s.Threads = len(c.threads)
	c.threadsMu.Unlock()

	s.Published = c.published.Load()
	s.Reclaimed = c.reclaimed.Load()
	s.RegistrationFailures = c.regFailures.Load()
	s.DrainedWaits = c.drainedWaits.Load()
	return s
}
