package tracer

import (
	"context"

	"zetrace/internal/status"
	"zetrace/internal/zeapi"
)

// Wrap returns a copy of ddi whose entry points trace through Dispatch. The
// calling thread is taken from the context of each call (see WithThread).
// Nil entries stay nil.
func Wrap(ddi zeapi.DDITable) zeapi.DDITable {
	return zeapi.DDITable{
		ContextCreate:                         trampoline(zeapi.APIContextCreate, ddi.ContextCreate),
		ContextDestroy:                        trampoline(zeapi.APIContextDestroy, ddi.ContextDestroy),
		CommandListCreate:                     trampoline(zeapi.APICommandListCreate, ddi.CommandListCreate),
		CommandListCreateImmediate:            trampoline(zeapi.APICommandListCreateImmediate, ddi.CommandListCreateImmediate),
		CommandListClose:                      trampoline(zeapi.APICommandListClose, ddi.CommandListClose),
		CommandListDestroy:                    trampoline(zeapi.APICommandListDestroy, ddi.CommandListDestroy),
		CommandListAppendBarrier:              trampoline(zeapi.APICommandListAppendBarrier, ddi.CommandListAppendBarrier),
		CommandListAppendMemoryCopy:           trampoline(zeapi.APICommandListAppendMemoryCopy, ddi.CommandListAppendMemoryCopy),
		CommandListAppendMemoryFill:           trampoline(zeapi.APICommandListAppendMemoryFill, ddi.CommandListAppendMemoryFill),
		CommandListAppendSignalEvent:          trampoline(zeapi.APICommandListAppendSignalEvent, ddi.CommandListAppendSignalEvent),
		CommandListAppendWaitOnEvents:         trampoline(zeapi.APICommandListAppendWaitOnEvents, ddi.CommandListAppendWaitOnEvents),
		CommandListAppendEventReset:           trampoline(zeapi.APICommandListAppendEventReset, ddi.CommandListAppendEventReset),
		CommandListAppendLaunchKernel:         trampoline(zeapi.APICommandListAppendLaunchKernel, ddi.CommandListAppendLaunchKernel),
		CommandListAppendWriteGlobalTimestamp: trampoline(zeapi.APICommandListAppendWriteGlobalTimestamp, ddi.CommandListAppendWriteGlobalTimestamp),
		EventCreate:                           trampoline(zeapi.APIEventCreate, ddi.EventCreate),
		EventDestroy:                          trampoline(zeapi.APIEventDestroy, ddi.EventDestroy),
		EventHostSignal:                       trampoline(zeapi.APIEventHostSignal, ddi.EventHostSignal),
		CommandListBeginGraphCapture:          trampoline(zeapi.APICommandListBeginGraphCapture, ddi.CommandListBeginGraphCapture),
		CommandListEndGraphCapture:            trampoline(zeapi.APICommandListEndGraphCapture, ddi.CommandListEndGraphCapture),
	}
}

func trampoline[P any](api zeapi.APIID, impl zeapi.Entry[P]) zeapi.Entry[P] {
	if impl == nil {
		return nil
	}
	return func(ctx context.Context, p *P) status.Code {
		return Dispatch(ThreadFromContext(ctx), api, p, func(p *P) status.Code {
			return impl(ctx, p)
		})
	}
}
