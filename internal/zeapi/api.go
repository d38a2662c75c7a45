// Package zeapi describes the driver entry points that can be traced: their
// ordinals, parameter structs, callback tables and the DDI function table.
//
// Parameter structs are passed by pointer to prologue and epilogue callbacks,
// so a prologue may rewrite arguments before the real entry point runs.
package zeapi

// APIID is the ordinal of a traced entry point. It indexes CallbackTable.
type APIID uint16

const (
	APIContextCreate APIID = iota
	APIContextDestroy
	APICommandListCreate
	APICommandListCreateImmediate
	APICommandListClose
	APICommandListDestroy
	APICommandListAppendBarrier
	APICommandListAppendMemoryCopy
	APICommandListAppendMemoryFill
	APICommandListAppendSignalEvent
	APICommandListAppendWaitOnEvents
	APICommandListAppendEventReset
	APICommandListAppendLaunchKernel
	APICommandListAppendWriteGlobalTimestamp
	APIEventCreate
	APIEventDestroy
	APIEventHostSignal
	APICommandListBeginGraphCapture
	APICommandListEndGraphCapture

	// NumAPIs is the number of traced entry points.
	NumAPIs
)

var apiNames = [NumAPIs]string{
	APIContextCreate:                         "zeContextCreate",
	APIContextDestroy:                        "zeContextDestroy",
	APICommandListCreate:                     "zeCommandListCreate",
	APICommandListCreateImmediate:            "zeCommandListCreateImmediate",
	APICommandListClose:                      "zeCommandListClose",
	APICommandListDestroy:                    "zeCommandListDestroy",
	APICommandListAppendBarrier:              "zeCommandListAppendBarrier",
	APICommandListAppendMemoryCopy:           "zeCommandListAppendMemoryCopy",
	APICommandListAppendMemoryFill:           "zeCommandListAppendMemoryFill",
	APICommandListAppendSignalEvent:          "zeCommandListAppendSignalEvent",
	APICommandListAppendWaitOnEvents:         "zeCommandListAppendWaitOnEvents",
	APICommandListAppendEventReset:           "zeCommandListAppendEventReset",
	APICommandListAppendLaunchKernel:         "zeCommandListAppendLaunchKernel",
	APICommandListAppendWriteGlobalTimestamp: "zeCommandListAppendWriteGlobalTimestamp",
	APIEventCreate:                           "zeEventCreate",
	APIEventDestroy:                          "zeEventDestroy",
	APIEventHostSignal:                       "zeEventHostSignal",
	APICommandListBeginGraphCapture:          "zeCommandListBeginGraphCaptureExp",
	APICommandListEndGraphCapture:            "zeCommandListEndGraphCaptureExp",
}

// String returns the entry point name, e.g. "zeCommandListAppendBarrier".
func (id APIID) String() string {
	if id < NumAPIs {
		return apiNames[id]
	}
	return "unknown"
}

// Valid reports whether id names a traced entry point.
func (id APIID) Valid() bool { return id < NumAPIs }

// ParseAPI resolves an entry point name back to its ordinal.
func ParseAPI(name string) (APIID, bool) {
	for i, n := range apiNames {
		if n == name {
			return APIID(i), true
		}
	}
	return 0, false
}
