package host

import (
	"sync"
	"sync/atomic"
)

// AsyncValue is a reference-counted future. It starts unresolved and
// transitions exactly once to either a concrete value or an error, after
// which it is immutable. Continuations attached with AndThen run on the
// goroutine that resolves the value.
//
// Every instance is charged against an Accounting context from creation
// until its last reference is dropped, which is what makes the driver's
// per-function leak deltas exact.
type AsyncValue struct {
	acct *Accounting
	refs atomic.Int32

	mu        sync.Mutex
	done      chan struct{}
	value     any
	err       error
	callbacks []func()
}

func newAsyncValue(acct *Accounting) *AsyncValue {
	acct.addAsyncValue()
	av := &AsyncValue{
		acct: acct,
		done: make(chan struct{}),
	}
	av.refs.Store(1)
	return av
}

// Ref takes an additional reference and returns the value for chaining.
func (av *AsyncValue) Ref() *AsyncValue {
	av.refs.Add(1)
	return av
}

// DropRef releases one reference. When the last reference is dropped the
// instance is returned to the accounting context and must not be used
// again.
func (av *AsyncValue) DropRef() {
	if av.refs.Add(-1) == 0 {
		av.acct.releaseAsyncValue()
	}
}

// Resolved reports whether the value has been set.
func (av *AsyncValue) Resolved() bool {
	select {
	case <-av.done:
		return true
	default:
		return false
	}
}

// Await blocks until the value resolves. There is deliberately no timeout:
// an unresolved value blocks forever, surfacing engine bugs instead of
// masking them.
func (av *AsyncValue) Await() {
	<-av.done
}

// Value returns the concrete value. Only valid after resolution; an
// error-resolved value returns nil.
func (av *AsyncValue) Value() any {
	av.mu.Lock()
	defer av.mu.Unlock()
	return av.value
}

// Err returns the resolution error, or nil if the value resolved to a
// concrete value (or has not resolved yet).
func (av *AsyncValue) Err() error {
	av.mu.Lock()
	defer av.mu.Unlock()
	return av.err
}

// SetValue resolves to a concrete value. Resolving twice panics: a value
// with two producers is a malformed dataflow graph.
func (av *AsyncValue) SetValue(v any) {
	av.resolve(v, nil)
}

// SetError resolves to an error.
func (av *AsyncValue) SetError(err error) {
	av.resolve(nil, err)
}

func (av *AsyncValue) resolve(v any, err error) {
	av.mu.Lock()
	select {
	case <-av.done:
		av.mu.Unlock()
		panic("host: async value resolved twice")
	default:
	}
	av.value = v
	av.err = err
	callbacks := av.callbacks
	av.callbacks = nil
	close(av.done)
	av.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// AndThen runs fn once the value resolves. If the value is already
// resolved, fn runs immediately on the calling goroutine.
func (av *AsyncValue) AndThen(fn func()) {
	av.mu.Lock()
	select {
	case <-av.done:
		av.mu.Unlock()
		fn()
		return
	default:
	}
	av.callbacks = append(av.callbacks, fn)
	av.mu.Unlock()
}
