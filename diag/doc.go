// Package diag defines the diagnostic stream shared by the program loader
// and the execution engine, and the verifier that reconciles emitted
// diagnostics against expectations embedded in the program.
//
// The verifier is the single pass/fail oracle of a driver run: per-function
// output is informational, but an unexpected diagnostic, or an expected one
// that never fired, fails the whole run.
package diag
