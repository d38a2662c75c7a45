// Package tracer implements API tracing: applications create tracers holding
// prologue and epilogue callback tables, enable them, and every traced driver
// entry point then invokes those callbacks around the real implementation.
//
// # Concurrency model
//
// The set of enabled tracers is published as an immutable Array. Writers
// (Enable, DestroyTracer) are serialised by the Context mutex, build a new
// Array and publish it with a single atomic store. Readers (traced calls)
// never lock: a Thread loads the active Array, records it in its own
// reference slot, and re-checks the active pointer until the two agree.
//
// A superseded Array is retired, not dropped. It is reclaimed once a scan of
// all registered Threads finds no reference to it. The garbage collector
// would keep the memory alive anyway; what the scan provides is the drain
// guarantee FinalizeDisableWait relies on: once it returns, no goroutine is
// still running callbacks of the disabled tracer.
//
// # Threads
//
// Go has no thread-local storage, so the per-thread state is an explicit
// *Thread owned by one goroutine at a time. Attach it to a context with
// WithThread; the tracing trampolines look it up with ThreadFromContext.
//
//	tc := tracer.NewContext(tracer.Options{Enabled: true})
//	th := tc.NewThread()
//	defer th.Close()
//	ctx := tracer.WithThread(context.Background(), th)
//	ddi := tracer.Wrap(driverTable)
//	ddi.CommandListAppendBarrier(ctx, &zeapi.CommandListAppendBarrierParams{...})
package tracer
