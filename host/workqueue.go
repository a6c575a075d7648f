package host

import (
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// WorkQueue runs engine tasks. Implementations must allow tasks to
// enqueue further tasks, and Quiesce must cover that transitively spawned
// work.
type WorkQueue interface {
	// Name identifies the queue kind for log output.
	Name() string
	// AddTask schedules fn for execution.
	AddTask(fn func())
	// Quiesce blocks until no scheduled or in-flight task remains.
	Quiesce()
	// Close shuts the queue down after draining it. AddTask must not be
	// called afterwards.
	Close()
}

// NewWorkQueue resolves a configured queue kind: "serial", "concurrent",
// or "concurrent:N" for an explicit worker count. It returns nil for an
// unknown kind; the caller turns that into a configuration error.
func NewWorkQueue(kind string) WorkQueue {
	switch {
	case kind == "" || kind == "concurrent":
		return newPoolQueue("concurrent", runtime.NumCPU())
	case kind == "serial":
		return newPoolQueue("serial", 1)
	case strings.HasPrefix(kind, "concurrent:"):
		n, err := strconv.Atoi(strings.TrimPrefix(kind, "concurrent:"))
		if err != nil || n < 1 {
			return nil
		}
		return newPoolQueue(kind, n)
	default:
		return nil
	}
}

// poolQueue is a fixed worker pool over an unbounded task list. A plain
// channel would deadlock when a task blocks on work that sits behind it
// in a full buffer, so tasks are staged in a slice guarded by a cond var.
type poolQueue struct {
	name string

	mu    sync.Mutex
	cond  *sync.Cond
	tasks []func()

	// pending counts scheduled plus running tasks. Tasks only enter the
	// queue from the control thread or from other tracked tasks, so a
	// Wait cannot release early.
	pending sync.WaitGroup
	workers sync.WaitGroup
	closed  bool
}

func newPoolQueue(name string, workers int) *poolQueue {
	q := &poolQueue{name: name}
	q.cond = sync.NewCond(&q.mu)
	q.workers.Add(workers)
	for i := 0; i < workers; i++ {
		go q.work()
	}
	return q
}

func (q *poolQueue) Name() string { return q.name }

func (q *poolQueue) AddTask(fn func()) {
	q.pending.Add(1)
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.pending.Done()
		panic("host: AddTask after Close")
	}
	q.tasks = append(q.tasks, fn)
	q.mu.Unlock()
	q.cond.Signal()
}

func (q *poolQueue) work() {
	defer q.workers.Done()
	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.tasks) == 0 && q.closed {
			q.mu.Unlock()
			return
		}
		fn := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		fn()
		q.pending.Done()
	}
}

func (q *poolQueue) Quiesce() {
	q.pending.Wait()
}

func (q *poolQueue) Close() {
	q.pending.Wait()
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
	q.workers.Wait()
}
