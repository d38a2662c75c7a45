package zeapi

import "zetrace/internal/status"

// Callback is a prologue or epilogue. params is the *XxxParams struct of the
// traced entry point; result is Success for prologues. instanceData is a slot
// private to one tracer for one call, carried from its prologue to its epilogue.
type Callback func(params any, result status.Code, userData any, instanceData *any)

// CallbackTable holds one optional callback per entry point. It is a value
// type: enabling a tracer snapshots the table by copy.
type CallbackTable [NumAPIs]Callback

// Set installs cb for id. Out-of-range ids are ignored.
func (t *CallbackTable) Set(id APIID, cb Callback) {
	if id.Valid() {
		t[id] = cb
	}
}

// Get returns the callback for id, or nil.
func (t *CallbackTable) Get(id APIID) Callback {
	if t == nil || !id.Valid() {
		return nil
	}
	return t[id]
}

// Count returns the number of installed callbacks.
func (t *CallbackTable) Count() int {
	n := 0
	for _, cb := range t {
		if cb != nil {
			n++
		}
	}
	return n
}

// On adapts a typed callback to Callback. Calls with a params value of
// another type are ignored.
func On[P any](fn func(p *P, result status.Code, userData any, instanceData *any)) Callback {
	return func(params any, result status.Code, userData any, instanceData *any) {
		if p, ok := params.(*P); ok {
			fn(p, result, userData, instanceData)
		}
	}
}
