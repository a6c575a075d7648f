package alloc

import (
	"fmt"
	"io"
)

// Allocator hands out byte storage for program data. Implementations must
// be safe for concurrent use.
type Allocator interface {
	// Allocate returns a zeroed buffer of n bytes.
	Allocate(n int) []byte
	// Deallocate returns a buffer obtained from Allocate. Buffers must
	// not be used after deallocation.
	Deallocate(buf []byte)
	// Name identifies the strategy for log output.
	Name() string
	// Close releases the allocator. Strategies that track allocations
	// report outstanding ones here.
	Close() error
}

// Strategy selects one of the four allocator variants. The enum is
// closed: every variant constructs successfully, and an unknown value is
// a programming error, not a runtime failure.
type Strategy int

const (
	// Heap is the general-purpose Go heap allocator.
	Heap Strategy = iota
	// FixedSizeTest is a deterministic bump allocator over a fixed
	// arena, used to isolate test behavior from heap layout.
	FixedSizeTest
	// Profiled wraps Heap and records allocation statistics.
	Profiled
	// LeakCheck wraps Heap and tracks outstanding allocations for a
	// final assertion at Close.
	LeakCheck
)

// ParseStrategy resolves the configuration names of the four variants.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "", "heap", "plain":
		return Heap, nil
	case "fixed-size-test":
		return FixedSizeTest, nil
	case "profiled":
		return Profiled, nil
	case "leak-checking":
		return LeakCheck, nil
	default:
		return Heap, fmt.Errorf("unknown allocator strategy %q", s)
	}
}

// New constructs the allocator for a strategy. Profiled statistics are
// written to logw at Close. New never fails; an out-of-range strategy
// panics.
func New(s Strategy, logw io.Writer) Allocator {
	switch s {
	case Heap:
		return newHeap()
	case FixedSizeTest:
		return newFixedSize(defaultArenaSize)
	case Profiled:
		return newProfiled(newHeap(), logw)
	case LeakCheck:
		return newLeakCheck(newHeap())
	default:
		panic(fmt.Sprintf("alloc: unknown strategy %d", s))
	}
}
