// Package dfb implements the DFB (DataFlow Binary) program format: the
// binary decoder, an encoding builder for producing programs, lenient
// expectation scanning, and the dataflow executor that runs a function's
// operation graph on a host engine.
//
// # Binary Layout
//
// A DFB file is a 4-byte magic ("\x00dfb"), a little-endian u32 format
// version, and a series of sections in strictly ascending id order. Each
// section is an id byte followed by a LEB128 payload size:
//
//	strings(1)    interned string table
//	types(2)      type names, by string index
//	kernels(3)    kernel names, by string index
//	functions(4)  function bodies: registers, ops, attributes
//	expects(5)    expected diagnostics, with inline messages
//
// The expects section embeds its messages directly rather than through
// the string table so that ScanExpectations can recover expectations from
// a program whose other sections are malformed: negative test inputs are
// intentionally broken everywhere except there.
//
// # Execution Model
//
// A function body is a list of operations over single-assignment
// registers. Every register is produced exactly once, either by being a
// function argument or by exactly one op result; the decoder rejects
// anything else. At dispatch each register becomes an async value, and an
// op's kernel is scheduled on the engine's work queue as soon as all its
// operand registers resolve. Operand errors propagate to op results
// without running the kernel, and a canceled engine resolves op results
// to the cancellation error instead of executing.
package dfb
