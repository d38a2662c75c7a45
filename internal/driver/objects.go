package driver

import (
	"context"
	"strconv"

	"zetrace/internal/status"
	"zetrace/internal/trace"
	"zetrace/internal/zeapi"
)

func (d *Driver) contextCreate(_ context.Context, p *zeapi.ContextCreateParams) status.Code {
	d.count(zeapi.APIContextCreate)
	if p.Desc == nil || p.PhContext == nil {
		return status.ErrorInvalidNullPointer
	}
	h := zeapi.ContextHandle(d.handle())
	d.mu.Lock()
	d.contexts[h] = &contextObj{flags: p.Desc.Flags}
	d.mu.Unlock()
	*p.PhContext = h
	return status.Success
}

func (d *Driver) contextDestroy(_ context.Context, p *zeapi.ContextDestroyParams) status.Code {
	d.count(zeapi.APIContextDestroy)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.contexts[p.HContext]; !ok {
		return status.ErrorInvalidNullHandle
	}
	for _, l := range d.lists {
		if l.ctx == p.HContext {
			return status.ErrorObjectInUse
		}
	}
	for _, e := range d.events {
		if e.ctx == p.HContext {
			return status.ErrorObjectInUse
		}
	}
	delete(d.contexts, p.HContext)
	return status.Success
}

func (d *Driver) createList(hctx zeapi.ContextHandle, immediate bool, out *zeapi.CommandListHandle) status.Code {
	if out == nil {
		return status.ErrorInvalidNullPointer
	}
	h := zeapi.CommandListHandle(d.handle())
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.contexts[hctx]; !ok {
		return status.ErrorInvalidNullHandle
	}
	d.lists[h] = &commandList{ctx: hctx, immediate: immediate}
	*out = h
	return status.Success
}

func (d *Driver) commandListCreate(_ context.Context, p *zeapi.CommandListCreateParams) status.Code {
	d.count(zeapi.APICommandListCreate)
	if p.Desc == nil {
		return status.ErrorInvalidNullPointer
	}
	return d.createList(p.HContext, false, p.PhCommandList)
}

func (d *Driver) commandListCreateImmediate(_ context.Context, p *zeapi.CommandListCreateImmediateParams) status.Code {
	d.count(zeapi.APICommandListCreateImmediate)
	if p.Desc == nil {
		return status.ErrorInvalidNullPointer
	}
	return d.createList(p.HContext, true, p.PhCommandList)
}

func (d *Driver) list(h zeapi.CommandListHandle) *commandList {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lists[h]
}

func (d *Driver) commandListClose(_ context.Context, p *zeapi.CommandListCloseParams) status.Code {
	d.count(zeapi.APICommandListClose)
	l := d.list(p.HCommandList)
	if l == nil {
		return status.ErrorInvalidNullHandle
	}
	if l.immediate {
		return status.ErrorUnsupportedFeature
	}
	l.closed.Store(true)
	return status.Success
}

func (d *Driver) commandListDestroy(_ context.Context, p *zeapi.CommandListDestroyParams) status.Code {
	d.count(zeapi.APICommandListDestroy)
	if _, capturing := d.rec.Target(p.HCommandList); capturing {
		return status.ErrorObjectInUse
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.lists[p.HCommandList]; !ok {
		return status.ErrorInvalidNullHandle
	}
	delete(d.lists, p.HCommandList)
	return status.Success
}

func (d *Driver) eventCreate(_ context.Context, p *zeapi.EventCreateParams) status.Code {
	d.count(zeapi.APIEventCreate)
	if p.Desc == nil || p.PhEvent == nil {
		return status.ErrorInvalidNullPointer
	}
	h := zeapi.EventHandle(d.handle())
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.contexts[p.HContext]; !ok {
		return status.ErrorInvalidNullHandle
	}
	d.events[h] = &event{ctx: p.HContext}
	*p.PhEvent = h
	return status.Success
}

func (d *Driver) eventDestroy(_ context.Context, p *zeapi.EventDestroyParams) status.Code {
	d.count(zeapi.APIEventDestroy)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.events[p.HEvent]; !ok {
		return status.ErrorInvalidNullHandle
	}
	delete(d.events, p.HEvent)
	return status.Success
}

func (d *Driver) eventHostSignal(_ context.Context, p *zeapi.EventHostSignalParams) status.Code {
	d.count(zeapi.APIEventHostSignal)
	d.mu.RLock()
	e := d.events[p.HEvent]
	d.mu.RUnlock()
	if e == nil {
		return status.ErrorInvalidNullHandle
	}
	e.signaled.Store(true)
	return status.Success
}

func (d *Driver) beginGraphCapture(_ context.Context, p *zeapi.CommandListBeginGraphCaptureParams) status.Code {
	d.count(zeapi.APICommandListBeginGraphCapture)
	if d.list(p.HCommandList) == nil {
		return status.ErrorInvalidNullHandle
	}
	if _, err := d.rec.Begin(p.HCommandList); err != nil {
		trace.Point(d.log, trace.ScopeGraph, "driver.capture.error", err.Error())
		return status.ErrorInvalidArgument
	}
	return status.Success
}

func (d *Driver) endGraphCapture(_ context.Context, p *zeapi.CommandListEndGraphCaptureParams) status.Code {
	d.count(zeapi.APICommandListEndGraphCapture)
	if p.PhGraph == nil {
		return status.ErrorInvalidNullPointer
	}
	if d.list(p.HCommandList) == nil {
		return status.ErrorInvalidNullHandle
	}
	root, err := d.rec.End(p.HCommandList)
	if err != nil {
		trace.Point(d.log, trace.ScopeGraph, "driver.capture.error", err.Error())
		return status.ErrorInvalidArgument
	}
	h := zeapi.GraphHandle(d.handle())
	d.mu.Lock()
	d.graphs[h] = root
	d.mu.Unlock()
	*p.PhGraph = h
	trace.Point(d.log, trace.ScopeGraph, "driver.capture.end", "",
		"graph", strconv.FormatUint(uint64(h), 10))
	return status.Success
}

// DestroyGraph releases the capture behind h.
func (d *Driver) DestroyGraph(h zeapi.GraphHandle) error {
	d.mu.Lock()
	g, ok := d.graphs[h]
	delete(d.graphs, h)
	d.mu.Unlock()
	if !ok {
		return status.New("driver.destroy_graph", status.ErrorInvalidNullHandle)
	}
	return d.rec.Store().Release(g)
}
