package host

import "sync/atomic"

// Accounting tracks the engine's live-object population: outstanding
// async value instances and outstanding reference-counted objects (async
// values plus loaded programs). It replaces process-global counters with
// an explicit context object so that independent engines, including those
// in parallel tests, never observe each other's allocations.
//
// Counter reads are instantaneous snapshots. They are only meaningful at
// quiescent points; the driver samples them right before a dispatch and
// right after dropping the run's result references.
type Accounting struct {
	asyncValues atomic.Int64
	rcObjects   atomic.Int64
	disabled    bool
}

// NewAccounting creates an accounting context with tracking enabled.
func NewAccounting() *Accounting {
	return &Accounting{}
}

// NewUntrackedAccounting creates an accounting context whose counters
// still move but which reports tracking as disabled, skipping per-run
// leak checks.
func NewUntrackedAccounting() *Accounting {
	return &Accounting{disabled: true}
}

// Enabled reports whether allocation tracking is on.
func (a *Accounting) Enabled() bool { return !a.disabled }

// LiveAsyncValues returns the number of async value instances currently
// allocated.
func (a *Accounting) LiveAsyncValues() int64 { return a.asyncValues.Load() }

// LiveObjects returns the number of reference-counted objects currently
// alive.
func (a *Accounting) LiveObjects() int64 { return a.rcObjects.Load() }

// AddObject records the birth of a reference-counted object that is not
// an async value (e.g. a loaded program).
func (a *Accounting) AddObject() { a.rcObjects.Add(1) }

// ReleaseObject records the death of an object counted by AddObject.
func (a *Accounting) ReleaseObject() { a.rcObjects.Add(-1) }

func (a *Accounting) addAsyncValue() {
	a.asyncValues.Add(1)
	a.rcObjects.Add(1)
}

func (a *Accounting) releaseAsyncValue() {
	a.asyncValues.Add(-1)
	a.rcObjects.Add(-1)
}
