// Package flowrt is the root of the flow-runtime project, a test and
// execution driver for the DFB compiled dataflow program format.
//
// A DFB program is a binary container of named dataflow functions. Each
// function is a graph of kernel invocations over single-assignment
// registers; the host engine schedules a kernel as soon as its operands
// resolve, so a function's internals may run concurrently while the driver
// itself stays strictly sequential across functions.
//
// # Architecture Overview
//
// The project is organized into several packages with distinct
// responsibilities:
//
//	flowrt/           Root package with the runtime version constant
//	├── driver/       Orchestration loop: run functions, check leaks,
//	│                 verify diagnostics
//	├── dfb/          DFB binary format: decoding, encoding, execution
//	├── host/         Execution engine: async values, work queues,
//	│                 kernel registry, cancellation
//	├── kernels/      Builtin kernel implementations
//	├── plugin/       Kernel providers loaded from WASM or Go plugins
//	├── alloc/        Allocator strategies used for program storage
//	├── diag/         Diagnostics and expectation verification
//	├── config/       Run configuration, including HCL config files
//	├── telemetry/    OpenTelemetry tracing and the version gauge
//	└── errors/       Structured error types for debugging
//
// # Quick Start
//
// Run every function of a program and verify its diagnostics:
//
//	cfg := config.Default()
//	cfg.Input = "testdata/arith.dfb"
//	if err := driver.Run(context.Background(), cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// # Execution Model
//
// The driver runs one function at a time. Between functions it waits for
// the engine to quiesce, restarts cancellation state, and compares live
// async-value counts so that a leak can be attributed to exactly one
// function. Leaks are fatal: the accounting of every later function would
// be meaningless otherwise.
package flowrt

// Version identifies the runtime generation. It is recorded exactly once
// per process as the version gauge (see package telemetry).
const Version = "FLOWRT_V0"
