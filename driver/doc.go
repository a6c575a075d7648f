// Package driver runs DFB programs end to end: it bootstraps the engine
// from a run configuration, selects entry points, executes each function
// as a standalone test case, prints typed results, enforces per-function
// leak accounting, and verifies emitted diagnostics against the
// program's embedded expectations.
//
// The orchestration loop is strictly sequential. Each function is
// dispatched, awaited, quiesced, and leak-checked before the next one
// starts, so a leak is always attributed to the function that caused it.
package driver
