// Package host implements the asynchronous execution engine that runs DFB
// dataflow functions: reference-counted async values, work queues, the
// kernel registry, device descriptors, and engine-wide cancellation.
//
// The engine keeps no hidden global state. All live-object counters live
// in an Accounting instance owned by (or handed to) the Host, and callers
// read them only at quiescent points: immediately before dispatching a
// function and immediately after releasing its results. Sampling at any
// other time races with the worker pool.
package host
