package dfb

import (
	"github.com/flowrt/flow-runtime/alloc"
	"github.com/flowrt/flow-runtime/diag"
	"github.com/flowrt/flow-runtime/host"
)

// TypeName names a result or argument type, e.g. "i32". The driver knows
// how to print a handful of primitives; everything else is opaque.
type TypeName string

// Program is a decoded DFB program. Its backing storage is owned by the
// allocator it was parsed with, and the program itself is charged to the
// accounting context it was parsed with, so destruction participates in
// the run's final resource state.
type Program struct {
	allocator alloc.Allocator
	acct      *host.Accounting
	data      []byte
	types     []TypeName
	functions []*Function
	byName    map[string]*Function
	closed    bool
}

// Functions returns every function in declaration order, including
// anonymous ones. Callers that cannot run anonymous functions skip them.
func (p *Program) Functions() []*Function {
	return p.functions
}

// Function returns the named function, or nil. The empty name never
// resolves: anonymous functions are not addressable.
func (p *Program) Function(name string) *Function {
	if name == "" {
		return nil
	}
	return p.byName[name]
}

// Close releases the program's allocator-owned storage and drops it from
// the live-object count. Safe to call once; the program must not be used
// afterwards.
func (p *Program) Close() {
	if p.closed {
		return
	}
	p.closed = true
	p.allocator.Deallocate(p.data)
	if p.acct != nil {
		p.acct.ReleaseObject()
	}
	p.data = nil
	p.functions = nil
	p.byName = nil
}

// Function is a named, callable unit inside a Program. Its lifetime is
// bound to the owning Program.
type Function struct {
	name        string
	argTypes    []TypeName
	resultTypes []TypeName
	numRegs     int
	resultRegs  []int
	ops         []progOp
}

// Name returns the function name; empty means anonymous.
func (f *Function) Name() string { return f.name }

// ArgTypes returns the declared argument types in order.
func (f *Function) ArgTypes() []TypeName { return f.argTypes }

// ResultTypes returns the declared result types in order.
func (f *Function) ResultTypes() []TypeName { return f.resultTypes }

// progOp is one decoded operation with its kernel already resolved.
type progOp struct {
	kernelName string
	kernel     host.Kernel
	loc        diag.Location
	operands   []int
	results    []int
	attrs      []host.Attribute
}
