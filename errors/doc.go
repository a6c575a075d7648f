// Package errors provides structured error types for the flow-runtime
// driver and engine.
//
// Errors carry a Phase (where in the run they occurred) and a Kind (what
// went wrong), so callers can match on categories with errors.Is without
// parsing messages. LeakError is deliberately separate from the generic
// Error type: a resource leak is an assertion failure, not a recoverable
// condition, and hosting code uses IsLeak to decide to abort the process.
package errors
