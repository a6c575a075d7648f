package alloc

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/flowrt/flow-runtime/errors"
)

// heapAllocator is the plain general-purpose strategy.
type heapAllocator struct{}

func newHeap() *heapAllocator { return &heapAllocator{} }

func (*heapAllocator) Allocate(n int) []byte { return make([]byte, n) }
func (*heapAllocator) Deallocate([]byte)     {}
func (*heapAllocator) Name() string          { return "heap" }
func (*heapAllocator) Close() error          { return nil }

const defaultArenaSize = 4 << 20

// fixedSizeAllocator bumps through one preallocated arena so that buffer
// placement is deterministic across runs. Requests that do not fit the
// remaining arena fall back to the heap.
type fixedSizeAllocator struct {
	mu    sync.Mutex
	arena []byte
	off   int
}

func newFixedSize(size int) *fixedSizeAllocator {
	return &fixedSizeAllocator{arena: make([]byte, size)}
}

func (a *fixedSizeAllocator) Allocate(n int) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.off+n > len(a.arena) {
		return make([]byte, n)
	}
	buf := a.arena[a.off : a.off+n : a.off+n]
	a.off += n
	return buf
}

func (a *fixedSizeAllocator) Deallocate([]byte) {}
func (a *fixedSizeAllocator) Name() string      { return "fixed size test" }
func (a *fixedSizeAllocator) Close() error      { return nil }

// Stats summarizes the activity of a profiled allocator.
type Stats struct {
	NumAllocations   int64
	NumDeallocations int64
	BytesAllocated   int64
}

// profiledAllocator wraps another allocator and counts its traffic.
type profiledAllocator struct {
	base   Allocator
	logw   io.Writer
	allocs atomic.Int64
	frees  atomic.Int64
	bytes  atomic.Int64
}

func newProfiled(base Allocator, logw io.Writer) *profiledAllocator {
	if logw == nil {
		logw = io.Discard
	}
	return &profiledAllocator{base: base, logw: logw}
}

func (a *profiledAllocator) Allocate(n int) []byte {
	a.allocs.Add(1)
	a.bytes.Add(int64(n))
	return a.base.Allocate(n)
}

func (a *profiledAllocator) Deallocate(buf []byte) {
	a.frees.Add(1)
	a.base.Deallocate(buf)
}

func (a *profiledAllocator) Name() string { return "profiled" }

// Stats returns a snapshot of the counters.
func (a *profiledAllocator) Stats() Stats {
	return Stats{
		NumAllocations:   a.allocs.Load(),
		NumDeallocations: a.frees.Load(),
		BytesAllocated:   a.bytes.Load(),
	}
}

func (a *profiledAllocator) Close() error {
	s := a.Stats()
	fmt.Fprintf(a.logw, "Allocation stats: %d allocations, %d deallocations, %d bytes\n",
		s.NumAllocations, s.NumDeallocations, s.BytesAllocated)
	return a.base.Close()
}

// leakCheckAllocator wraps another allocator and tracks every outstanding
// buffer. Close fails if anything was never deallocated.
type leakCheckAllocator struct {
	base Allocator
	mu   sync.Mutex
	live map[*byte]int
}

func newLeakCheck(base Allocator) *leakCheckAllocator {
	return &leakCheckAllocator{base: base, live: make(map[*byte]int)}
}

func (a *leakCheckAllocator) Allocate(n int) []byte {
	buf := a.base.Allocate(n)
	if n > 0 {
		a.mu.Lock()
		a.live[&buf[0]] = n
		a.mu.Unlock()
	}
	return buf
}

func (a *leakCheckAllocator) Deallocate(buf []byte) {
	if len(buf) > 0 {
		a.mu.Lock()
		delete(a.live, &buf[0])
		a.mu.Unlock()
	}
	a.base.Deallocate(buf)
}

func (a *leakCheckAllocator) Name() string { return "leak check" }

// Outstanding returns the number of live allocations.
func (a *leakCheckAllocator) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

func (a *leakCheckAllocator) Close() error {
	a.mu.Lock()
	n := len(a.live)
	var bytes int
	for _, sz := range a.live {
		bytes += sz
	}
	a.mu.Unlock()
	if n != 0 {
		return errors.New(errors.PhaseExec, errors.KindLeak).
			Detail("%d allocations (%d bytes) never deallocated", n, bytes).
			Build()
	}
	return a.base.Close()
}
