package alloc

import (
	"bytes"
	"strings"
	"testing"
	"unsafe"

	"github.com/flowrt/flow-runtime/errors"
)

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"", Heap, false},
		{"heap", Heap, false},
		{"plain", Heap, false},
		{"fixed-size-test", FixedSizeTest, false},
		{"profiled", Profiled, false},
		{"leak-checking", LeakCheck, false},
		{"mmap", Heap, true},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseStrategy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err == nil && got != tt.want {
			t.Fatalf("ParseStrategy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEveryStrategyConstructs(t *testing.T) {
	for _, s := range []Strategy{Heap, FixedSizeTest, Profiled, LeakCheck} {
		a := New(s, nil)
		if a == nil {
			t.Fatalf("New(%v) = nil", s)
		}
		buf := a.Allocate(64)
		if len(buf) != 64 {
			t.Fatalf("%s: Allocate(64) returned %d bytes", a.Name(), len(buf))
		}
		a.Deallocate(buf)
		if err := a.Close(); err != nil {
			t.Fatalf("%s: Close() = %v", a.Name(), err)
		}
	}
}

func TestFixedSizeDeterministic(t *testing.T) {
	a := newFixedSize(1024)
	first := a.Allocate(16)
	second := a.Allocate(16)
	if &first[0] == &second[0] {
		t.Fatal("distinct allocations share storage")
	}
	// Bump allocation keeps buffers adjacent within the arena.
	if unsafe.Pointer(&second[0]) != unsafe.Add(unsafe.Pointer(&first[0]), 16) {
		t.Fatal("fixed size allocator did not bump sequentially")
	}

	// Oversize request falls back to the heap instead of failing.
	big := a.Allocate(4096)
	if len(big) != 4096 {
		t.Fatalf("oversize Allocate returned %d bytes", len(big))
	}
}

func TestProfiledStats(t *testing.T) {
	var out bytes.Buffer
	a := newProfiled(newHeap(), &out)
	b1 := a.Allocate(100)
	b2 := a.Allocate(28)
	a.Deallocate(b1)
	a.Deallocate(b2)

	s := a.Stats()
	if s.NumAllocations != 2 || s.NumDeallocations != 2 || s.BytesAllocated != 128 {
		t.Fatalf("unexpected stats: %+v", s)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if !strings.Contains(out.String(), "2 allocations, 2 deallocations, 128 bytes") {
		t.Fatalf("missing stats line, got %q", out.String())
	}
}

func TestLeakCheckCleanRun(t *testing.T) {
	a := newLeakCheck(newHeap())
	buf := a.Allocate(32)
	a.Deallocate(buf)
	if a.Outstanding() != 0 {
		t.Fatalf("Outstanding() = %d, want 0", a.Outstanding())
	}
	if err := a.Close(); err != nil {
		t.Fatalf("clean run reported a leak: %v", err)
	}
}

func TestLeakCheckReportsOutstanding(t *testing.T) {
	a := newLeakCheck(newHeap())
	a.Allocate(32)
	err := a.Close()
	if err == nil {
		t.Fatal("Close() = nil with an outstanding allocation")
	}
	if !errors.IsLeak(err) {
		t.Fatalf("expected a leak error, got %v", err)
	}
}
