package driver

import (
	"context"
	"encoding/hex"
	"fmt"

	"zetrace/internal/capture"
	"zetrace/internal/status"
	"zetrace/internal/trace"
	"zetrace/internal/zeapi"
)

// appendCommand validates handles and either captures cmd or records it for
// execution on list cl.
func (d *Driver) appendCommand(cl zeapi.CommandListHandle, cmd capture.Command) status.Code {
	d.mu.RLock()
	l := d.lists[cl]
	var sig *event
	if cmd.Signal != 0 {
		sig = d.events[cmd.Signal]
	}
	missing := l == nil || (cmd.Signal != 0 && sig == nil)
	for _, w := range cmd.Waits {
		if d.events[w] == nil {
			missing = true
		}
	}
	d.mu.RUnlock()

	if missing {
		return status.ErrorInvalidNullHandle
	}
	if l.closed.Load() {
		return status.ErrorInvalidArgument
	}

	_, captured, err := d.rec.Record(cl, cmd)
	if err != nil {
		trace.Point(d.log, trace.ScopeGraph, "driver.capture.error", err.Error())
		return status.ErrorInvalidArgument
	}
	if captured {
		l.captured.Add(1)
		return status.Success
	}

	l.appended.Add(1)
	if l.immediate && sig != nil {
		sig.signaled.Store(true)
	}
	return status.Success
}

func listArgs(cl zeapi.CommandListHandle, signal zeapi.EventHandle, waits []zeapi.EventHandle) []capture.Arg {
	args := []capture.Arg{
		hexArg("hCommandList", uint64(cl)),
		hexArg("hSignalEvent", uint64(signal)),
		uintArg("numWaitEvents", uint64(len(waits))),
	}
	if len(waits) > 0 {
		args = append(args, capture.Arg{Name: "phWaitEvents", Value: fmt.Sprint(waits)})
	}
	return args
}

func (d *Driver) appendBarrier(_ context.Context, p *zeapi.CommandListAppendBarrierParams) status.Code {
	d.count(zeapi.APICommandListAppendBarrier)
	return d.appendCommand(p.HCommandList, capture.Command{
		Kind:   capture.KindBarrier,
		Args:   listArgs(p.HCommandList, p.HSignalEvent, p.WaitEvents),
		Signal: p.HSignalEvent,
		Waits:  p.WaitEvents,
	})
}

func (d *Driver) appendMemoryCopy(_ context.Context, p *zeapi.CommandListAppendMemoryCopyParams) status.Code {
	d.count(zeapi.APICommandListAppendMemoryCopy)
	if p.Dst == 0 || p.Src == 0 {
		return status.ErrorInvalidNullPointer
	}
	args := append(listArgs(p.HCommandList, p.HSignalEvent, p.WaitEvents),
		hexArg("dstptr", uint64(p.Dst)),
		hexArg("srcptr", uint64(p.Src)),
		uintArg("size", p.Size))
	return d.appendCommand(p.HCommandList, capture.Command{
		Kind:   capture.KindMemoryCopy,
		Args:   args,
		Signal: p.HSignalEvent,
		Waits:  p.WaitEvents,
	})
}

func (d *Driver) appendMemoryFill(_ context.Context, p *zeapi.CommandListAppendMemoryFillParams) status.Code {
	d.count(zeapi.APICommandListAppendMemoryFill)
	if p.Ptr == 0 {
		return status.ErrorInvalidNullPointer
	}
	if len(p.Pattern) == 0 {
		return status.ErrorInvalidArgument
	}
	args := append(listArgs(p.HCommandList, p.HSignalEvent, p.WaitEvents),
		hexArg("ptr", uint64(p.Ptr)),
		capture.Arg{Name: "pattern", Value: hex.EncodeToString(p.Pattern)},
		uintArg("size", p.Size))
	return d.appendCommand(p.HCommandList, capture.Command{
		Kind:   capture.KindMemoryFill,
		Args:   args,
		Signal: p.HSignalEvent,
		Waits:  p.WaitEvents,
	})
}

func (d *Driver) appendSignalEvent(_ context.Context, p *zeapi.CommandListAppendSignalEventParams) status.Code {
	d.count(zeapi.APICommandListAppendSignalEvent)
	return d.appendCommand(p.HCommandList, capture.Command{
		Kind: capture.KindSignalEvent,
		Args: []capture.Arg{
			hexArg("hCommandList", uint64(p.HCommandList)),
			hexArg("hEvent", uint64(p.HEvent)),
		},
		Signal: p.HEvent,
	})
}

func (d *Driver) appendWaitOnEvents(_ context.Context, p *zeapi.CommandListAppendWaitOnEventsParams) status.Code {
	d.count(zeapi.APICommandListAppendWaitOnEvents)
	if len(p.Events) == 0 {
		return status.ErrorInvalidArgument
	}
	return d.appendCommand(p.HCommandList, capture.Command{
		Kind: capture.KindWaitOnEvents,
		Args: []capture.Arg{
			hexArg("hCommandList", uint64(p.HCommandList)),
			uintArg("numEvents", uint64(len(p.Events))),
			{Name: "phEvents", Value: fmt.Sprint(p.Events)},
		},
		Waits: p.Events,
	})
}

func (d *Driver) appendEventReset(_ context.Context, p *zeapi.CommandListAppendEventResetParams) status.Code {
	d.count(zeapi.APICommandListAppendEventReset)
	d.mu.RLock()
	e := d.events[p.HEvent]
	d.mu.RUnlock()
	if e == nil {
		return status.ErrorInvalidNullHandle
	}
	code := d.appendCommand(p.HCommandList, capture.Command{
		Kind: capture.KindEventReset,
		Args: []capture.Arg{
			hexArg("hCommandList", uint64(p.HCommandList)),
			hexArg("hEvent", uint64(p.HEvent)),
		},
	})
	if code != status.Success {
		return code
	}
	if _, capturing := d.rec.Target(p.HCommandList); capturing {
		d.rec.Reset(p.HEvent)
	} else if l := d.list(p.HCommandList); l != nil && l.immediate {
		e.signaled.Store(false)
	}
	return code
}

func (d *Driver) appendLaunchKernel(_ context.Context, p *zeapi.CommandListAppendLaunchKernelParams) status.Code {
	d.count(zeapi.APICommandListAppendLaunchKernel)
	if p.KernelName == "" {
		return status.ErrorInvalidNullHandle
	}
	gc := p.GroupCount
	args := append(listArgs(p.HCommandList, p.HSignalEvent, p.WaitEvents),
		capture.Arg{Name: "hKernel", Value: p.KernelName},
		capture.Arg{Name: "launchFuncArgs", Value: fmt.Sprintf("{%d, %d, %d}", gc.X, gc.Y, gc.Z)})
	return d.appendCommand(p.HCommandList, capture.Command{
		Kind:   capture.KindLaunchKernel,
		Args:   args,
		Signal: p.HSignalEvent,
		Waits:  p.WaitEvents,
	})
}

func (d *Driver) appendWriteGlobalTimestamp(_ context.Context, p *zeapi.CommandListAppendWriteGlobalTimestampParams) status.Code {
	d.count(zeapi.APICommandListAppendWriteGlobalTimestamp)
	if p.Dst == 0 {
		return status.ErrorInvalidNullPointer
	}
	args := append(listArgs(p.HCommandList, p.HSignalEvent, p.WaitEvents),
		hexArg("dstptr", uint64(p.Dst)))
	return d.appendCommand(p.HCommandList, capture.Command{
		Kind:   capture.KindWriteGlobalTimestamp,
		Args:   args,
		Signal: p.HSignalEvent,
		Waits:  p.WaitEvents,
	})
}
