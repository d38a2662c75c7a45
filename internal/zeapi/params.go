package zeapi

// Parameter structs, one per traced entry point. Output arguments are
// pointers so both the real entry point and epilogues see the same slot.

type ContextCreateParams struct {
	Desc      *ContextDesc
	PhContext *ContextHandle
}

type ContextDestroyParams struct {
	HContext ContextHandle
}

type CommandListCreateParams struct {
	HContext      ContextHandle
	Desc          *CommandListDesc
	PhCommandList *CommandListHandle
}

type CommandListCreateImmediateParams struct {
	HContext      ContextHandle
	Desc          *CommandListDesc
	PhCommandList *CommandListHandle
}

type CommandListCloseParams struct {
	HCommandList CommandListHandle
}

type CommandListDestroyParams struct {
	HCommandList CommandListHandle
}

type CommandListAppendBarrierParams struct {
	HCommandList CommandListHandle
	HSignalEvent EventHandle
	WaitEvents   []EventHandle
}

type CommandListAppendMemoryCopyParams struct {
	HCommandList CommandListHandle
	Dst          uintptr
	Src          uintptr
	Size         uint64
	HSignalEvent EventHandle
	WaitEvents   []EventHandle
}

type CommandListAppendMemoryFillParams struct {
	HCommandList CommandListHandle
	Ptr          uintptr
	Pattern      []byte
	Size         uint64
	HSignalEvent EventHandle
	WaitEvents   []EventHandle
}

type CommandListAppendSignalEventParams struct {
	HCommandList CommandListHandle
	HEvent       EventHandle
}

type CommandListAppendWaitOnEventsParams struct {
	HCommandList CommandListHandle
	Events       []EventHandle
}

type CommandListAppendEventResetParams struct {
	HCommandList CommandListHandle
	HEvent       EventHandle
}

type CommandListAppendLaunchKernelParams struct {
	HCommandList CommandListHandle
	KernelName   string
	GroupCount   GroupCount
	HSignalEvent EventHandle
	WaitEvents   []EventHandle
}

type CommandListAppendWriteGlobalTimestampParams struct {
	HCommandList CommandListHandle
	Dst          uintptr
	HSignalEvent EventHandle
	WaitEvents   []EventHandle
}

type EventCreateParams struct {
	HContext ContextHandle
	Desc     *EventDesc
	PhEvent  *EventHandle
}

type EventDestroyParams struct {
	HEvent EventHandle
}

type EventHostSignalParams struct {
	HEvent EventHandle
}

type CommandListBeginGraphCaptureParams struct {
	HCommandList CommandListHandle
}

type CommandListEndGraphCaptureParams struct {
	HCommandList CommandListHandle
	PhGraph      *GraphHandle
}
