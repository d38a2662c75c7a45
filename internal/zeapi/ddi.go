package zeapi

import (
	"context"

	"zetrace/internal/status"
)

// Entry is the shape of every entry point in DDITable.
type Entry[P any] func(ctx context.Context, p *P) status.Code

// DDITable is the driver dispatch table. The driver fills it with real
// implementations; the tracing layer wraps each field with a trampoline.
type DDITable struct {
	ContextCreate                         Entry[ContextCreateParams]
	ContextDestroy                        Entry[ContextDestroyParams]
	CommandListCreate                     Entry[CommandListCreateParams]
	CommandListCreateImmediate            Entry[CommandListCreateImmediateParams]
	CommandListClose                      Entry[CommandListCloseParams]
	CommandListDestroy                    Entry[CommandListDestroyParams]
	CommandListAppendBarrier              Entry[CommandListAppendBarrierParams]
	CommandListAppendMemoryCopy           Entry[CommandListAppendMemoryCopyParams]
	CommandListAppendMemoryFill           Entry[CommandListAppendMemoryFillParams]
	CommandListAppendSignalEvent          Entry[CommandListAppendSignalEventParams]
	CommandListAppendWaitOnEvents         Entry[CommandListAppendWaitOnEventsParams]
	CommandListAppendEventReset           Entry[CommandListAppendEventResetParams]
	CommandListAppendLaunchKernel         Entry[CommandListAppendLaunchKernelParams]
	CommandListAppendWriteGlobalTimestamp Entry[CommandListAppendWriteGlobalTimestampParams]
	EventCreate                           Entry[EventCreateParams]
	EventDestroy                          Entry[EventDestroyParams]
	EventHostSignal                       Entry[EventHostSignalParams]
	CommandListBeginGraphCapture          Entry[CommandListBeginGraphCaptureParams]
	CommandListEndGraphCapture            Entry[CommandListEndGraphCaptureParams]
}
