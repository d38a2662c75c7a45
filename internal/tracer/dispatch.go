package tracer

import (
	"strconv"

	"zetrace/internal/status"
	"zetrace/internal/trace"
	"zetrace/internal/zeapi"
)

// Dispatch runs call, the real implementation of api, surrounded by the
// prologues and epilogues of every enabled tracer.
//
// Prologues run in enable order, then call, then epilogues in the same
// order (not reversed). Prologues may rewrite *params. The result of call is
// returned unchanged. A call made on th while it is already dispatching,
// e.g. from a callback, bypasses tracing and goes straight to call.
func Dispatch[P any](th *Thread, api zeapi.APIID, params *P, call func(*P) status.Code) status.Code {
	if th == nil || th.inDispatch || !th.ctx.TracingEnabled() {
		return call(params)
	}

	th.inDispatch = true
	th.callID = th.ctx.correlation.Add(1)
	arr := th.Acquire()
	defer func() {
		th.inDispatch = false
		th.callID = 0
		th.Release()
	}()

	n := arr.Len()
	if n == 0 {
		return call(params)
	}

	if th.ctx.log.Enabled() {
		trace.Point(th.ctx.log, trace.ScopeCall, api.String(), "",
			"correlation", strconv.FormatUint(th.callID, 10),
			"tracers", strconv.Itoa(n))
	}

	var small [4]any
	var instance []any
	if n <= len(small) {
		instance = small[:n]
	} else {
		instance = make([]any, n)
	}

	for i := range n {
		e := arr.At(i)
		if cb := e.Prologues.Get(api); cb != nil {
			cb(params, status.Success, e.UserData, &instance[i])
		}
	}

	result := call(params)

	for i := range n {
		e := arr.At(i)
		if cb := e.Epilogues.Get(api); cb != nil {
			cb(params, result, e.UserData, &instance[i])
		}
	}

	return result
}
