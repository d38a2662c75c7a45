package tracer

import (
	"zetrace/internal/status"
	"zetrace/internal/trace"
	"zetrace/internal/zeapi"
)

// State is the enable state of a Tracer.
type State uint8

const (
	StateDisabled State = iota
	StateEnabled
	// StateDisabledWaiting: removed from the active array, but a retired
	// array that still lists it may be held by some thread.
	StateDisabledWaiting
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateEnabled:
		return "enabled"
	case StateDisabledWaiting:
		return "disabled-waiting"
	}
	return "unknown"
}

// Desc describes a tracer to create.
type Desc struct {
	Name     string // for diagnostics only
	UserData any    // passed to every callback of this tracer
}

// Tracer is one application-created set of prologue and epilogue callbacks.
type Tracer struct {
	ctx      *Context
	name     string
	userData any

	// guarded by ctx.mu
	prologues zeapi.CallbackTable
	epilogues zeapi.CallbackTable
	state     State
	destroyed bool
}

// CreateTracer registers a new, disabled tracer. It fails with
// ErrorUninitialized when the tracing subsystem is off.
func (c *Context) CreateTracer(desc *Desc) (*Tracer, error) {
	const op = "tracer.create"
	if !c.TracingEnabled() {
		return nil, status.New(op, status.ErrorUninitialized)
	}
	if desc == nil {
		return nil, status.New(op, status.ErrorInvalidArgument)
	}

	t := &Tracer{
		ctx:      c,
		name:     desc.Name,
		userData: desc.UserData,
	}

	c.mu.Lock()
	c.live++
	c.mu.Unlock()

	trace.Point(c.log, trace.ScopeTracer, "tracer.create", t.name)
	return t, nil
}

// DestroyTracer frees t. An enabled tracer is refused with
// ErrorObjectInUse; a draining one is waited for. Destroying from inside a
// traced call on caller would wait on itself and is refused too.
func (c *Context) DestroyTracer(caller *Thread, t *Tracer) error {
	if t == nil {
		return status.New("tracer.destroy", status.ErrorInvalidNullHandle)
	}
	if t.ctx != c {
		return status.New("tracer.destroy", status.ErrorInvalidArgument)
	}
	if caller.InDispatch() {
		return status.New("tracer.destroy", status.ErrorObjectInUse)
	}
	if err := c.finalize(t, true); err != nil {
		return err
	}
	trace.Point(c.log, trace.ScopeTracer, "tracer.destroy", t.name)
	return nil
}

// SetPrologues replaces the prologue table. Only allowed while disabled.
func (t *Tracer) SetPrologues(tbl *zeapi.CallbackTable) error {
	return t.setTable(&t.prologues, tbl, "tracer.set_prologues")
}

// SetEpilogues replaces the epilogue table. Only allowed while disabled.
func (t *Tracer) SetEpilogues(tbl *zeapi.CallbackTable) error {
	return t.setTable(&t.epilogues, tbl, "tracer.set_epilogues")
}

func (t *Tracer) setTable(dst, src *zeapi.CallbackTable, op string) error {
	if src == nil {
		return status.New(op, status.ErrorInvalidNullPointer)
	}
	t.ctx.mu.Lock()
	defer t.ctx.mu.Unlock()
	if t.destroyed {
		return status.New(op, status.ErrorInvalidNullHandle)
	}
	if t.state != StateDisabled {
		return status.New(op, status.ErrorObjectInUse)
	}
	*dst = *src
	return nil
}

// State returns the current enable state.
func (t *Tracer) State() State {
	t.ctx.mu.Lock()
	defer t.ctx.mu.Unlock()
	return t.state
}

// Name returns the diagnostic name given at creation.
func (t *Tracer) Name() string { return t.name }

// UserData returns the user data given at creation.
func (t *Tracer) UserData() any { return t.userData }
