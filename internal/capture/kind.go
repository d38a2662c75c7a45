package capture

// Kind identifies the captured API of a command.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindWriteGlobalTimestamp
	KindBarrier
	KindMemoryRangesBarrier
	KindMemoryCopy
	KindMemoryFill
	KindMemoryCopyRegion
	KindMemoryCopyFromContext
	KindImageCopy
	KindImageCopyRegion
	KindImageCopyToMemory
	KindImageCopyFromMemory
	KindMemoryPrefetch
	KindMemAdvise
	KindSignalEvent
	KindWaitOnEvents
	KindEventReset
	KindQueryKernelTimestamps
	KindLaunchKernel
	KindLaunchCooperativeKernel
	KindLaunchKernelIndirect

	numKinds
)

var kindLabels = [numKinds]string{
	KindUnknown:                 "Unknown",
	KindWriteGlobalTimestamp:    "zeCommandListAppendWriteGlobalTimestamp",
	KindBarrier:                 "zeCommandListAppendBarrier",
	KindMemoryRangesBarrier:     "zeCommandListAppendMemoryRangesBarrier",
	KindMemoryCopy:              "zeCommandListAppendMemoryCopy",
	KindMemoryFill:              "zeCommandListAppendMemoryFill",
	KindMemoryCopyRegion:        "zeCommandListAppendMemoryCopyRegion",
	KindMemoryCopyFromContext:   "zeCommandListAppendMemoryCopyFromContext",
	KindImageCopy:               "zeCommandListAppendImageCopy",
	KindImageCopyRegion:         "zeCommandListAppendImageCopyRegion",
	KindImageCopyToMemory:       "zeCommandListAppendImageCopyToMemory",
	KindImageCopyFromMemory:     "zeCommandListAppendImageCopyFromMemory",
	KindMemoryPrefetch:          "zeCommandListAppendMemoryPrefetch",
	KindMemAdvise:               "zeCommandListAppendMemAdvise",
	KindSignalEvent:             "zeCommandListAppendSignalEvent",
	KindWaitOnEvents:            "zeCommandListAppendWaitOnEvents",
	KindEventReset:              "zeCommandListAppendEventReset",
	KindQueryKernelTimestamps:   "zeCommandListAppendQueryKernelTimestamps",
	KindLaunchKernel:            "zeCommandListAppendLaunchKernel",
	KindLaunchCooperativeKernel: "zeCommandListAppendLaunchCooperativeKernel",
	KindLaunchKernelIndirect:    "zeCommandListAppendLaunchKernelIndirect",
}

// Label is the API name shown for the command.
func (k Kind) Label() string {
	if k < numKinds {
		return kindLabels[k]
	}
	return kindLabels[KindUnknown]
}

func (k Kind) String() string { return k.Label() }

// ParseKind accepts either the full API name or a short form such as
// "barrier", "memory-copy" or "launch-kernel".
func ParseKind(s string) (Kind, bool) {
	for i, label := range kindLabels {
		if label == s {
			return Kind(i), true
		}
	}
	k, ok := shortKinds[s]
	return k, ok
}

var shortKinds = map[string]Kind{
	"timestamp":       KindWriteGlobalTimestamp,
	"barrier":         KindBarrier,
	"ranges-barrier":  KindMemoryRangesBarrier,
	"memory-copy":     KindMemoryCopy,
	"copy":            KindMemoryCopy,
	"memory-fill":     KindMemoryFill,
	"fill":            KindMemoryFill,
	"copy-region":     KindMemoryCopyRegion,
	"image-copy":      KindImageCopy,
	"prefetch":        KindMemoryPrefetch,
	"mem-advise":      KindMemAdvise,
	"signal":          KindSignalEvent,
	"wait":            KindWaitOnEvents,
	"reset":           KindEventReset,
	"query-timestamp": KindQueryKernelTimestamps,
	"launch-kernel":   KindLaunchKernel,
	"kernel":          KindLaunchKernel,
}

// Class groups kinds for presentation.
type Class uint8

const (
	ClassOther Class = iota
	ClassCopy
	ClassBarrier
	ClassSync
	ClassImage
	ClassTimestamp
)

func (c Class) String() string {
	switch c {
	case ClassCopy:
		return "copy"
	case ClassBarrier:
		return "barrier"
	case ClassSync:
		return "signal"
	case ClassImage:
		return "image"
	case ClassTimestamp:
		return "timestamp"
	}
	return "other"
}

// Class returns the presentation class of k.
func (k Kind) Class() Class {
	switch k {
	case KindMemoryCopy, KindMemoryCopyRegion, KindMemoryCopyFromContext, KindMemoryFill:
		return ClassCopy
	case KindBarrier, KindMemoryRangesBarrier:
		return ClassBarrier
	case KindSignalEvent, KindWaitOnEvents, KindEventReset:
		return ClassSync
	case KindImageCopy, KindImageCopyRegion, KindImageCopyToMemory, KindImageCopyFromMemory:
		return ClassImage
	case KindWriteGlobalTimestamp, KindQueryKernelTimestamps:
		return ClassTimestamp
	}
	return ClassOther
}
