package host

import (
	stderrors "errors"
	"fmt"

	"github.com/flowrt/flow-runtime/diag"
)

// AttrKind tags the payload of an operation attribute.
type AttrKind byte

const (
	AttrI1 AttrKind = iota
	AttrI32
	AttrI64
	AttrF32
	AttrF64
	AttrStr
)

// Attribute is a compile-time constant attached to an operation.
type Attribute struct {
	Kind  AttrKind
	Bool  bool
	Int   int64
	Float float64
	Str   string
}

// Frame carries one kernel invocation: resolved arguments, attributes,
// and the unresolved result slots the kernel must fill.
type Frame struct {
	host    *Host
	kernel  string
	loc     diag.Location
	args    []*AsyncValue
	attrs   []Attribute
	results []*AsyncValue
}

// NewFrame assembles an invocation frame. All args must already be
// resolved; results must be unresolved.
func NewFrame(h *Host, kernel string, loc diag.Location, args []*AsyncValue, attrs []Attribute, results []*AsyncValue) *Frame {
	return &Frame{
		host:    h,
		kernel:  kernel,
		loc:     loc,
		args:    args,
		attrs:   attrs,
		results: results,
	}
}

// Host returns the engine running this invocation.
func (f *Frame) Host() *Host { return f.host }

// Kernel returns the invoked kernel's name.
func (f *Frame) Kernel() string { return f.kernel }

// Location returns the op's position in the program source.
func (f *Frame) Location() diag.Location { return f.loc }

func (f *Frame) NumArgs() int { return len(f.args) }

// Arg returns the resolved value of argument i.
func (f *Frame) Arg(i int) any { return f.args[i].Value() }

func (f *Frame) NumAttrs() int { return len(f.attrs) }

// Attr returns attribute i.
func (f *Frame) Attr(i int) Attribute { return f.attrs[i] }

func (f *Frame) NumResults() int { return len(f.results) }

// Result exposes result slot i, for kernels that resolve asynchronously.
// The slot is only valid until it resolves; kernels that capture it must
// not hold it beyond that.
func (f *Frame) Result(i int) *AsyncValue { return f.results[i] }

// SetResult resolves result slot i to a concrete value.
func (f *Frame) SetResult(i int, v any) {
	f.results[i].SetValue(v)
}

// ReportError emits an error diagnostic at the op's location and resolves
// every still-unresolved result slot to the error. This is the standard
// failure path for kernels: the diagnostic feeds the verifier, the error
// value feeds whatever consumes the results.
func (f *Frame) ReportError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	f.host.EmitError(f.loc, msg)
	err := stderrors.New(msg)
	for _, r := range f.results {
		if !r.Resolved() {
			r.SetError(err)
		}
	}
}
