// Package driver is an in-memory driver that implements every entry point
// of zeapi.DDITable. Contexts, command lists and events are plain records;
// nothing executes on a device. Command lists under graph capture hand their
// appends to a capture.Recorder instead of recording them for execution.
package driver

import (
	"strconv"
	"sync"
	"sync/atomic"

	"zetrace/internal/capture"
	"zetrace/internal/trace"
	"zetrace/internal/zeapi"
)

// Options configures a Driver.
type Options struct {
	Recorder *capture.Recorder // nil creates one with its own store
	Log      trace.Tracer
}

type contextObj struct {
	flags uint32
}

type commandList struct {
	ctx       zeapi.ContextHandle
	immediate bool
	closed    atomic.Bool
	appended  atomic.Uint64 // commands recorded for execution
	captured  atomic.Uint64 // commands handed to the recorder
}

type event struct {
	ctx      zeapi.ContextHandle
	signaled atomic.Bool
}

// Driver owns the objects created through its entry points.
type Driver struct {
	rec *capture.Recorder
	log trace.Tracer

	next atomic.Uint64

	mu       sync.RWMutex
	contexts map[zeapi.ContextHandle]*contextObj
	lists    map[zeapi.CommandListHandle]*commandList
	events   map[zeapi.EventHandle]*event
	graphs   map[zeapi.GraphHandle]capture.GraphID

	calls [zeapi.NumAPIs]atomic.Uint64
}

func New(opts Options) *Driver {
	rec := opts.Recorder
	if rec == nil {
		rec = capture.NewRecorder(nil, opts.Log)
	}
	d := &Driver{
		rec:      rec,
		log:      trace.OrNop(opts.Log),
		contexts: make(map[zeapi.ContextHandle]*contextObj),
		lists:    make(map[zeapi.CommandListHandle]*commandList),
		events:   make(map[zeapi.EventHandle]*event),
		graphs:   make(map[zeapi.GraphHandle]capture.GraphID),
	}
	trace.Point(d.log, trace.ScopeRuntime, "driver.init", "")
	return d
}

// DDI returns the untraced entry points of d.
func (d *Driver) DDI() zeapi.DDITable {
	return zeapi.DDITable{
		ContextCreate:                         d.contextCreate,
		ContextDestroy:                        d.contextDestroy,
		CommandListCreate:                     d.commandListCreate,
		CommandListCreateImmediate:            d.commandListCreateImmediate,
		CommandListClose:                      d.commandListClose,
		CommandListDestroy:                    d.commandListDestroy,
		CommandListAppendBarrier:              d.appendBarrier,
		CommandListAppendMemoryCopy:           d.appendMemoryCopy,
		CommandListAppendMemoryFill:           d.appendMemoryFill,
		CommandListAppendSignalEvent:          d.appendSignalEvent,
		CommandListAppendWaitOnEvents:         d.appendWaitOnEvents,
		CommandListAppendEventReset:           d.appendEventReset,
		CommandListAppendLaunchKernel:         d.appendLaunchKernel,
		CommandListAppendWriteGlobalTimestamp: d.appendWriteGlobalTimestamp,
		EventCreate:                           d.eventCreate,
		EventDestroy:                          d.eventDestroy,
		EventHostSignal:                       d.eventHostSignal,
		CommandListBeginGraphCapture:          d.beginGraphCapture,
		CommandListEndGraphCapture:            d.endGraphCapture,
	}
}

// Recorder returns the capture recorder fed by command lists.
func (d *Driver) Recorder() *capture.Recorder { return d.rec }

// Calls returns how many times the real implementation of api ran.
func (d *Driver) Calls(api zeapi.APIID) uint64 {
	if !api.Valid() {
		return 0
	}
	return d.calls[api].Load()
}

// TotalCalls sums Calls over every entry point.
func (d *Driver) TotalCalls() uint64 {
	var n uint64
	for i := range d.calls {
		n += d.calls[i].Load()
	}
	return n
}

func (d *Driver) count(api zeapi.APIID) {
	d.calls[api].Add(1)
}

func (d *Driver) handle() uint64 {
	return d.next.Add(1)
}

// Graph resolves a handle returned by zeCommandListEndGraphCaptureExp.
func (d *Driver) Graph(h zeapi.GraphHandle) (capture.GraphID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.graphs[h]
	return g, ok
}

// Stats is a view of live driver objects.
type Stats struct {
	Contexts     int
	CommandLists int
	Events       int
	Graphs       int
	Appended     uint64
	Captured     uint64
}

func (d *Driver) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s := Stats{
		Contexts:     len(d.contexts),
		CommandLists: len(d.lists),
		Events:       len(d.events),
		Graphs:       len(d.graphs),
	}
	for _, l := range d.lists {
		s.Appended += l.appended.Load()
		s.Captured += l.captured.Load()
	}
	return s
}

// EventSignaled reports the host-visible state of ev.
func (d *Driver) EventSignaled(ev zeapi.EventHandle) bool {
	d.mu.RLock()
	e := d.events[ev]
	d.mu.RUnlock()
	return e != nil && e.signaled.Load()
}

func hexArg(name string, v uint64) capture.Arg {
	return capture.Arg{Name: name, Value: "0x" + strconv.FormatUint(v, 16)}
}

func uintArg(name string, v uint64) capture.Arg {
	return capture.Arg{Name: name, Value: strconv.FormatUint(v, 10)}
}
