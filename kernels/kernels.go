package kernels

import (
	"fmt"

	"github.com/flowrt/flow-runtime/host"
)

// Chain is the empty token threaded between side-effecting ops to order
// them. It carries no data.
type Chain struct{}

// RegisterBuiltins adds the built-in kernel set to reg. It fails on the
// first name collision, which only happens if a plugin claimed a "flow."
// name before the builtins loaded.
func RegisterBuiltins(reg *host.KernelRegistry) error {
	builtins := map[string]host.Kernel{
		"flow.const.i1":  constI1,
		"flow.const.i32": constI32,
		"flow.const.i64": constI64,
		"flow.const.f32": constF32,
		"flow.const.f64": constF64,
		"flow.const.str": constStr,

		"flow.add.i32": addI32,
		"flow.add.i64": addI64,
		"flow.add.f32": addF32,
		"flow.add.f64": addF64,
		"flow.div.i32": divI32,

		"flow.async.add.i32": asyncAddI32,

		"flow.new.chain": newChain,
		"flow.print":     printValue,
		"flow.error":     reportError,
		"flow.cancel":    cancel,
	}
	for name, k := range builtins {
		if err := reg.Register(name, k); err != nil {
			return err
		}
	}
	return nil
}

func constI1(f *host.Frame) { f.SetResult(0, f.Attr(0).Bool) }

func constI32(f *host.Frame) { f.SetResult(0, int32(f.Attr(0).Int)) }

func constI64(f *host.Frame) { f.SetResult(0, f.Attr(0).Int) }

func constF32(f *host.Frame) { f.SetResult(0, float32(f.Attr(0).Float)) }

func constF64(f *host.Frame) { f.SetResult(0, f.Attr(0).Float) }

func constStr(f *host.Frame) { f.SetResult(0, f.Attr(0).Str) }

func addI32(f *host.Frame) { f.SetResult(0, f.Arg(0).(int32)+f.Arg(1).(int32)) }

func addI64(f *host.Frame) { f.SetResult(0, f.Arg(0).(int64)+f.Arg(1).(int64)) }

func addF32(f *host.Frame) { f.SetResult(0, f.Arg(0).(float32)+f.Arg(1).(float32)) }

func addF64(f *host.Frame) { f.SetResult(0, f.Arg(0).(float64)+f.Arg(1).(float64)) }

func divI32(f *host.Frame) {
	b := f.Arg(1).(int32)
	if b == 0 {
		f.ReportError("div by zero")
		return
	}
	f.SetResult(0, f.Arg(0).(int32)/b)
}

// asyncAddI32 resolves its result from the work queue rather than inline,
// exercising the asynchronous completion path end to end.
func asyncAddI32(f *host.Frame) {
	a, b := f.Arg(0).(int32), f.Arg(1).(int32)
	out := f.Result(0)
	f.Host().EnqueueWork(func() {
		out.SetValue(a + b)
	})
}

func newChain(f *host.Frame) { f.SetResult(0, Chain{}) }

// printValue writes its first argument to the engine's output writer. A
// trailing chain operand, if present, orders the print against other side
// effects. Programs may declare zero results or a single chain result.
func printValue(f *host.Frame) {
	fmt.Fprintf(f.Host().Output(), "%v\n", f.Arg(0))
	if f.NumResults() > 0 {
		f.SetResult(0, Chain{})
	}
}

// reportError emits an error diagnostic carrying the kernel's string
// attribute. Negative tests pair it with a matching expectation.
func reportError(f *host.Frame) {
	f.ReportError("%s", f.Attr(0).Str)
}

// cancel puts the engine into the canceled state. Ops dispatched after it
// resolve to the cancellation error without running.
func cancel(f *host.Frame) {
	msg := "canceled"
	if f.NumAttrs() > 0 {
		msg = f.Attr(0).Str
	}
	f.Host().CancelWith(msg)
	for i := 0; i < f.NumResults(); i++ {
		f.SetResult(i, Chain{})
	}
}
