package dfb

import (
	"io"
	"strings"
	"testing"

	"github.com/flowrt/flow-runtime/alloc"
	"github.com/flowrt/flow-runtime/diag"
	"github.com/flowrt/flow-runtime/host"
)

func testRegistry(t *testing.T) *host.KernelRegistry {
	t.Helper()
	reg := host.NewKernelRegistry()
	kernels := map[string]host.Kernel{
		"test.const.i32": func(f *host.Frame) {
			f.SetResult(0, int32(f.Attr(0).Int))
		},
		"test.const.str": func(f *host.Frame) {
			f.SetResult(0, f.Attr(0).Str)
		},
		"test.add.i32": func(f *host.Frame) {
			f.SetResult(0, f.Arg(0).(int32)+f.Arg(1).(int32))
		},
	}
	for name, k := range kernels {
		if err := reg.Register(name, k); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	return reg
}

func buildAddProgram(t *testing.T) []byte {
	t.Helper()
	b := NewBuilder()
	fb := b.Function("main", nil, []string{"i32"})
	r0 := fb.NewReg()
	r1 := fb.NewReg()
	r2 := fb.NewReg()
	fb.Op("test.const.i32", 1, 3, nil, []Reg{r0}, I32Attr(7))
	fb.Op("test.const.i32", 2, 3, nil, []Reg{r1}, I32Attr(35))
	fb.Op("test.add.i32", 3, 3, []Reg{r0, r1}, []Reg{r2})
	fb.Return(r2)
	return b.Build()
}

func TestParseRoundTrip(t *testing.T) {
	data := buildAddProgram(t)
	allocator := alloc.New(alloc.Heap, io.Discard)

	p, err := Parse(data, testRegistry(t), nil, allocator, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer p.Close()

	if got := len(p.Functions()); got != 1 {
		t.Fatalf("got %d functions, want 1", got)
	}
	fn := p.Function("main")
	if fn == nil {
		t.Fatal("Function(main) returned nil")
	}
	if fn.Name() != "main" {
		t.Fatalf("name = %q, want main", fn.Name())
	}
	if len(fn.ArgTypes()) != 0 {
		t.Fatalf("got %d arg types, want 0", len(fn.ArgTypes()))
	}
	if got := fn.ResultTypes(); len(got) != 1 || got[0] != "i32" {
		t.Fatalf("result types = %v, want [i32]", got)
	}
}

func TestParseStringAttribute(t *testing.T) {
	b := NewBuilder()
	fb := b.Function("greet", nil, []string{"str"})
	r0 := fb.NewReg()
	fb.Op("test.const.str", 1, 1, nil, []Reg{r0}, StrAttr("hello"))
	fb.Return(r0)

	p, err := Parse(b.Build(), testRegistry(t), nil, alloc.New(alloc.Heap, io.Discard), nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer p.Close()

	if p.Function("greet") == nil {
		t.Fatal("Function(greet) returned nil")
	}
}

func TestAnonymousFunctionNotAddressable(t *testing.T) {
	b := NewBuilder()
	fb := b.Function("", nil, []string{"i32"})
	r0 := fb.NewReg()
	fb.Op("test.const.i32", 1, 1, nil, []Reg{r0}, I32Attr(1))
	fb.Return(r0)

	p, err := Parse(b.Build(), testRegistry(t), nil, alloc.New(alloc.Heap, io.Discard), nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer p.Close()

	if got := len(p.Functions()); got != 1 {
		t.Fatalf("got %d functions, want 1", got)
	}
	if p.Function("") != nil {
		t.Fatal("empty name resolved to a function")
	}
}

func TestParseFailures(t *testing.T) {
	twice := NewBuilder()
	fb := twice.Function("dup", nil, []string{"i32"})
	r0 := fb.NewReg()
	fb.Op("test.const.i32", 1, 1, nil, []Reg{r0}, I32Attr(1))
	fb.Op("test.const.i32", 2, 1, nil, []Reg{r0}, I32Attr(2))
	fb.Return(r0)

	never := NewBuilder()
	fb = never.Function("hole", nil, []string{"i32"})
	r0 = fb.NewReg()
	r1 := fb.NewReg()
	fb.Op("test.const.i32", 1, 1, nil, []Reg{r0}, I32Attr(1))
	_ = r1
	fb.Return(r0)

	missing := NewBuilder()
	fb = missing.Function("m", nil, []string{"i32"})
	r0 = fb.NewReg()
	fb.Op("no.such.kernel", 1, 1, nil, []Reg{r0})
	fb.Return(r0)

	cases := []struct {
		name string
		data []byte
		want string
	}{
		{"bad magic", []byte("garbage!"), "invalid DFB magic"},
		{"truncated", Magic[:], "invalid DFB magic"},
		{"unknown kernel", missing.Build(), "unknown kernel 'no.such.kernel'"},
		{"register produced twice", twice.Build(), "produced 2 times"},
		{"register never produced", never.Build(), "never produced"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var diags []diag.Diagnostic
			handler := func(d diag.Diagnostic) { diags = append(diags, d) }

			p, err := Parse(tc.data, testRegistry(t), handler, alloc.New(alloc.Heap, io.Discard), nil)
			if p != nil {
				t.Fatal("got a program from malformed input")
			}
			if err == nil {
				t.Fatal("Parse returned nil error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
			if len(diags) != 1 {
				t.Fatalf("got %d diagnostics, want 1", len(diags))
			}
			if diags[0].Severity != diag.SeverityError {
				t.Fatalf("severity = %v, want error", diags[0].Severity)
			}
			if !strings.Contains(diags[0].Message, tc.want) {
				t.Fatalf("diagnostic %q does not mention %q", diags[0].Message, tc.want)
			}
		})
	}
}

func TestParseDuplicateFunction(t *testing.T) {
	b := NewBuilder()
	for i := 0; i < 2; i++ {
		fb := b.Function("same", nil, []string{"i32"})
		r0 := fb.NewReg()
		fb.Op("test.const.i32", 1, 1, nil, []Reg{r0}, I32Attr(int32(i)))
		fb.Return(r0)
	}

	_, err := Parse(b.Build(), testRegistry(t), nil, alloc.New(alloc.Heap, io.Discard), nil)
	if err == nil || !strings.Contains(err.Error(), "declared twice") {
		t.Fatalf("err = %v, want duplicate function error", err)
	}
}

// A parsed program is one live object until Close; a rejected input
// charges nothing.
func TestParseProgramAccounting(t *testing.T) {
	acct := host.NewAccounting()

	p, err := Parse(buildAddProgram(t), testRegistry(t), nil, alloc.New(alloc.Heap, io.Discard), acct)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := acct.LiveObjects(); got != 1 {
		t.Fatalf("live objects with program open = %d, want 1", got)
	}

	p.Close()
	if got := acct.LiveObjects(); got != 0 {
		t.Fatalf("live objects after Close = %d, want 0", got)
	}
	p.Close() // idempotent
	if got := acct.LiveObjects(); got != 0 {
		t.Fatalf("live objects after second Close = %d, want 0", got)
	}

	if _, err := Parse([]byte("garbage!"), testRegistry(t), nil, alloc.New(alloc.Heap, io.Discard), acct); err == nil {
		t.Fatal("Parse accepted garbage")
	}
	if got := acct.LiveObjects(); got != 0 {
		t.Fatalf("live objects after failed parse = %d, want 0", got)
	}
}

func TestScanExpectations(t *testing.T) {
	b := NewBuilder()
	fb := b.Function("boom", nil, []string{"i32"})
	r0 := fb.NewReg()
	fb.Op("test.const.i32", 3, 1, nil, []Reg{r0}, I32Attr(0))
	fb.Return(r0)
	b.ExpectError(3, "div by zero")
	b.ExpectWarning(5, "deprecated")
	data := b.Build()

	expects := ScanExpectations(data)
	if len(expects) != 2 {
		t.Fatalf("got %d expectations, want 2", len(expects))
	}
	if expects[0].Severity != diag.SeverityError || expects[0].Line != 3 || expects[0].Message != "div by zero" {
		t.Fatalf("first expectation = %+v", expects[0])
	}
	if expects[1].Severity != diag.SeverityWarning || expects[1].Line != 5 || expects[1].Message != "deprecated" {
		t.Fatalf("second expectation = %+v", expects[1])
	}
}

// Expectations must survive images whose other sections are unparseable:
// that is the whole point of carrying them out of band.
func TestScanExpectationsOnCorruptImage(t *testing.T) {
	b := NewBuilder()
	fb := b.Function("boom", nil, []string{"i32"})
	r0 := fb.NewReg()
	fb.Op("test.const.i32", 1, 1, nil, []Reg{r0}, I32Attr(0))
	fb.Return(r0)
	b.ExpectError(1, "still here")
	data := b.Build()

	// Declare an absurd length for the first table string. Parse must now
	// fail while the expectation scan still finds the expects section.
	corrupt := append([]byte(nil), data...)
	corrupt[11] = 0x7f
	if _, err := Parse(corrupt, testRegistry(t), nil, alloc.New(alloc.Heap, io.Discard), nil); err == nil {
		t.Fatal("Parse accepted the corrupted image")
	}

	expects := ScanExpectations(corrupt)
	if len(expects) != 1 || expects[0].Message != "still here" {
		t.Fatalf("expectations = %+v, want the single declared one", expects)
	}
}

func TestScanExpectationsLenient(t *testing.T) {
	b := NewBuilder()
	fb := b.Function("f", nil, []string{"i32"})
	r0 := fb.NewReg()
	fb.Op("test.const.i32", 1, 1, nil, []Reg{r0}, I32Attr(0))
	fb.Return(r0)
	b.ExpectError(1, "x")
	data := b.Build()

	if got := ScanExpectations([]byte("not a dfb image")); got != nil {
		t.Fatalf("non-DFB input produced expectations: %+v", got)
	}
	// Truncation anywhere must end the scan quietly, never panic.
	for cut := 0; cut < len(data); cut++ {
		if got := ScanExpectations(data[:cut]); len(got) > 1 {
			t.Fatalf("truncated at %d: got %d expectations", cut, len(got))
		}
	}
}
