package dfb

import (
	"io"
	"strings"
	"testing"

	"github.com/flowrt/flow-runtime/alloc"
	"github.com/flowrt/flow-runtime/diag"
	"github.com/flowrt/flow-runtime/host"
)

func execRegistry(t *testing.T) *host.KernelRegistry {
	t.Helper()
	reg := testRegistry(t)
	extra := map[string]host.Kernel{
		"test.async.add.i32": func(f *host.Frame) {
			a, b := f.Arg(0).(int32), f.Arg(1).(int32)
			out := f.Result(0)
			f.Host().EnqueueWork(func() {
				out.SetValue(a + b)
			})
		},
		"test.fail": func(f *host.Frame) {
			f.ReportError("div by zero")
		},
		"test.cancel": func(f *host.Frame) {
			f.Host().CancelWith("interrupted")
			f.SetResult(0, int32(0))
		},
	}
	for name, k := range extra {
		if err := reg.Register(name, k); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	return reg
}

func newExecHost(t *testing.T, handler diag.Handler, acct *host.Accounting) *host.Host {
	t.Helper()
	queue := host.NewWorkQueue("concurrent")
	if queue == nil {
		t.Fatal("NewWorkQueue returned nil")
	}
	h, err := host.New(handler, alloc.New(alloc.Heap, io.Discard), queue, nil, host.WithAccounting(acct))
	if err != nil {
		t.Fatalf("host.New: %v", err)
	}
	t.Cleanup(h.Close)
	return h
}

func loadFunction(t *testing.T, h *host.Host, data []byte, name string) (*Program, *Function) {
	t.Helper()
	p, err := Parse(data, execRegistry(t), h.Emit, h.Allocator(), h.Accounting())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	t.Cleanup(p.Close)
	fn := p.Function(name)
	if fn == nil {
		t.Fatalf("function %q not found", name)
	}
	return p, fn
}

func TestExecuteSimpleGraph(t *testing.T) {
	acct := host.NewAccounting()
	h := newExecHost(t, nil, acct)
	_, fn := loadFunction(t, h, buildAddProgram(t), "main")

	baseline := acct.LiveAsyncValues()
	results := make([]*host.AsyncValue, 1)
	fn.Execute(h, nil, results)
	h.Await(results)
	h.Quiesce()

	if err := results[0].Err(); err != nil {
		t.Fatalf("result errored: %v", err)
	}
	if got := results[0].Value().(int32); got != 42 {
		t.Fatalf("result = %d, want 42", got)
	}

	results[0].DropRef()
	if live := acct.LiveAsyncValues(); live != baseline {
		t.Fatalf("live async values = %d, want baseline %d", live, baseline)
	}
}

func TestExecuteWithArguments(t *testing.T) {
	b := NewBuilder()
	fb := b.Function("sum", []string{"i32", "i32"}, []string{"i32"})
	r2 := fb.NewReg()
	fb.Op("test.add.i32", 1, 1, []Reg{fb.ArgReg(0), fb.ArgReg(1)}, []Reg{r2})
	fb.Return(r2)

	acct := host.NewAccounting()
	h := newExecHost(t, nil, acct)
	_, fn := loadFunction(t, h, b.Build(), "sum")

	baseline := acct.LiveAsyncValues()
	args := []*host.AsyncValue{h.NewValue(int32(5)), h.NewValue(int32(6))}
	results := make([]*host.AsyncValue, 1)
	fn.Execute(h, args, results)
	h.Await(results)
	h.Quiesce()

	if got := results[0].Value().(int32); got != 11 {
		t.Fatalf("result = %d, want 11", got)
	}

	results[0].DropRef()
	for _, a := range args {
		a.DropRef()
	}
	if live := acct.LiveAsyncValues(); live != baseline {
		t.Fatalf("live async values = %d, want baseline %d", live, baseline)
	}
}

func TestExecuteAsyncKernel(t *testing.T) {
	b := NewBuilder()
	fb := b.Function("later", nil, []string{"i32"})
	r0 := fb.NewReg()
	r1 := fb.NewReg()
	r2 := fb.NewReg()
	fb.Op("test.const.i32", 1, 1, nil, []Reg{r0}, I32Attr(20))
	fb.Op("test.const.i32", 2, 1, nil, []Reg{r1}, I32Attr(22))
	fb.Op("test.async.add.i32", 3, 1, []Reg{r0, r1}, []Reg{r2})
	fb.Return(r2)

	acct := host.NewAccounting()
	h := newExecHost(t, nil, acct)
	_, fn := loadFunction(t, h, b.Build(), "later")

	baseline := acct.LiveAsyncValues()
	results := make([]*host.AsyncValue, 1)
	fn.Execute(h, nil, results)
	h.Await(results)
	h.Quiesce()

	if got := results[0].Value().(int32); got != 42 {
		t.Fatalf("result = %d, want 42", got)
	}
	results[0].DropRef()
	if live := acct.LiveAsyncValues(); live != baseline {
		t.Fatalf("live async values = %d, want baseline %d", live, baseline)
	}
}

// An erroring op resolves its results to the error and downstream ops
// propagate it without running their kernels. Only the faulting op emits
// a diagnostic.
func TestExecuteErrorPropagation(t *testing.T) {
	b := NewBuilder()
	fb := b.Function("boom", nil, []string{"i32"})
	r0 := fb.NewReg()
	r1 := fb.NewReg()
	r2 := fb.NewReg()
	fb.Op("test.fail", 7, 3, nil, []Reg{r0})
	fb.Op("test.const.i32", 8, 3, nil, []Reg{r1}, I32Attr(1))
	fb.Op("test.add.i32", 9, 3, []Reg{r0, r1}, []Reg{r2})
	fb.Return(r2)

	var diags []diag.Diagnostic
	acct := host.NewAccounting()
	h := newExecHost(t, func(d diag.Diagnostic) { diags = append(diags, d) }, acct)
	_, fn := loadFunction(t, h, b.Build(), "boom")

	baseline := acct.LiveAsyncValues()
	results := make([]*host.AsyncValue, 1)
	fn.Execute(h, nil, results)
	h.Await(results)
	h.Quiesce()

	err := results[0].Err()
	if err == nil || !strings.Contains(err.Error(), "div by zero") {
		t.Fatalf("result error = %v, want div by zero", err)
	}
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	if diags[0].Location.Line != 7 {
		t.Fatalf("diagnostic at line %d, want 7", diags[0].Location.Line)
	}

	results[0].DropRef()
	if live := acct.LiveAsyncValues(); live != baseline {
		t.Fatalf("live async values = %d, want baseline %d", live, baseline)
	}
}

func TestExecuteCancellation(t *testing.T) {
	b := NewBuilder()
	fb := b.Function("stop", nil, []string{"i32"})
	r0 := fb.NewReg()
	r1 := fb.NewReg()
	fb.Op("test.cancel", 1, 1, nil, []Reg{r0})
	fb.Op("test.add.i32", 2, 1, []Reg{r0, r0}, []Reg{r1})
	fb.Return(r1)

	acct := host.NewAccounting()
	h := newExecHost(t, nil, acct)
	_, fn := loadFunction(t, h, b.Build(), "stop")

	results := make([]*host.AsyncValue, 1)
	fn.Execute(h, nil, results)
	h.Await(results)
	h.Quiesce()

	err := results[0].Err()
	if err == nil || !strings.Contains(err.Error(), "interrupted") {
		t.Fatalf("result error = %v, want cancellation", err)
	}
	results[0].DropRef()

	// Cancellation must not survive into the next dispatch.
	h.Restart()
	if err := h.Canceled(); err != nil {
		t.Fatalf("Canceled after Restart = %v", err)
	}
}
