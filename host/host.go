package host

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/flowrt/flow-runtime/alloc"
	"github.com/flowrt/flow-runtime/diag"
	"github.com/flowrt/flow-runtime/errors"
)

var errEmptyDeviceName = errors.InvalidData(errors.PhaseEngine, "device with empty name")

func errDuplicateDevice(name string) error {
	return errors.InvalidData(errors.PhaseEngine, fmt.Sprintf("duplicate device %q", name))
}

// Option configures a Host beyond the four construction inputs.
type Option func(*Host)

// WithAccounting hands the host an externally owned accounting context,
// letting the caller read counters before the host exists and after it
// closes.
func WithAccounting(acct *Accounting) Option {
	return func(h *Host) { h.acct = acct }
}

// WithOutput directs side-effecting kernels (e.g. flow.print) to w
// instead of discarding their output.
func WithOutput(w io.Writer) Option {
	return func(h *Host) { h.out = w }
}

// Host is the execution engine instance: it owns the kernel registry, the
// work queue, the allocator, the device list, and engine-wide
// cancellation state.
type Host struct {
	handler   diag.Handler
	allocator alloc.Allocator
	queue     WorkQueue
	devices   []Device
	registry  *KernelRegistry
	acct      *Accounting
	out       io.Writer

	cancelMu sync.Mutex
	cancel   error

	closeOnce sync.Once
}

// New constructs an engine. It fails, without side effects, on a nil work
// queue or allocator and on invalid device descriptors; the caller
// reports the error and runs nothing.
func New(handler diag.Handler, allocator alloc.Allocator, queue WorkQueue, devices []Device, opts ...Option) (*Host, error) {
	if queue == nil {
		return nil, errors.Construction(errors.PhaseEngine, "host", errors.InvalidData(errors.PhaseEngine, "nil work queue"))
	}
	if allocator == nil {
		return nil, errors.Construction(errors.PhaseEngine, "host", errors.InvalidData(errors.PhaseEngine, "nil allocator"))
	}
	if err := validateDevices(devices); err != nil {
		return nil, errors.Construction(errors.PhaseEngine, "host", err)
	}
	if handler == nil {
		handler = func(diag.Diagnostic) {}
	}

	h := &Host{
		handler:   handler,
		allocator: allocator,
		queue:     queue,
		devices:   devices,
		registry:  NewKernelRegistry(),
		out:       io.Discard,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.acct == nil {
		h.acct = NewAccounting()
	}

	Logger().Debug("host constructed",
		zap.String("allocator", allocator.Name()),
		zap.String("work_queue", queue.Name()),
		zap.Int("devices", len(devices)))
	return h, nil
}

// Registry returns the mutable kernel registry.
func (h *Host) Registry() *KernelRegistry { return h.registry }

// Allocator returns the allocator the engine was built with.
func (h *Host) Allocator() alloc.Allocator { return h.allocator }

// Accounting returns the live-object counter context.
func (h *Host) Accounting() *Accounting { return h.acct }

// Devices returns the configured device list.
func (h *Host) Devices() []Device { return h.devices }

// Output returns the writer side-effecting kernels print to.
func (h *Host) Output() io.Writer { return h.out }

// WorkQueueName returns the name of the underlying work queue.
func (h *Host) WorkQueueName() string { return h.queue.Name() }

// NewUnresolvedValue allocates an unresolved async value charged to this
// host's accounting.
func (h *Host) NewUnresolvedValue() *AsyncValue {
	return newAsyncValue(h.acct)
}

// NewValue allocates an already-resolved async value.
func (h *Host) NewValue(v any) *AsyncValue {
	av := newAsyncValue(h.acct)
	av.SetValue(v)
	return av
}

// NewErrorValue allocates an async value resolved to err.
func (h *Host) NewErrorValue(err error) *AsyncValue {
	av := newAsyncValue(h.acct)
	av.SetError(err)
	return av
}

// EnqueueWork schedules fn on the engine's work queue.
func (h *Host) EnqueueWork(fn func()) {
	h.queue.AddTask(fn)
}

// Await blocks until every given value resolves. The wait is unbounded:
// a deadlocked program hangs the caller, by design, rather than masking
// the bug behind a timeout.
func (h *Host) Await(values []*AsyncValue) {
	for _, av := range values {
		if av != nil {
			av.Await()
		}
	}
}

// Quiesce blocks until no asynchronously scheduled work remains,
// including work unreachable from any resolved result.
func (h *Host) Quiesce() {
	h.queue.Quiesce()
}

// CancelWith puts the engine into the canceled state. The first
// cancellation wins; later ones are ignored. Ops dispatched while
// canceled resolve to the cancellation error without running.
func (h *Host) CancelWith(msg string) {
	h.cancelMu.Lock()
	defer h.cancelMu.Unlock()
	if h.cancel == nil {
		h.cancel = errors.Canceled(msg)
		Logger().Debug("execution canceled", zap.String("reason", msg))
	}
}

// Canceled returns the active cancellation error, or nil.
func (h *Host) Canceled() error {
	h.cancelMu.Lock()
	defer h.cancelMu.Unlock()
	return h.cancel
}

// Restart clears cancellation state. The driver calls this between
// functions unconditionally so one function's cancellation cannot leak
// into the next.
func (h *Host) Restart() {
	h.cancelMu.Lock()
	h.cancel = nil
	h.cancelMu.Unlock()
}

// Emit forwards a diagnostic to the engine's handler.
func (h *Host) Emit(d diag.Diagnostic) {
	h.handler(d)
}

// EmitError emits an error diagnostic at loc.
func (h *Host) EmitError(loc diag.Location, msg string) {
	h.handler(diag.Diagnostic{
		Severity: diag.SeverityError,
		Location: loc,
		Message:  msg,
	})
}

// Close drains and shuts down the work queue. Async values still alive
// after Close are the caller's leak to account for.
func (h *Host) Close() {
	h.closeOnce.Do(func() {
		h.queue.Close()
	})
}
