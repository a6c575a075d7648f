package dfb

import (
	"sync/atomic"

	"github.com/flowrt/flow-runtime/host"
)

// Execute dispatches the function body on h and returns immediately;
// execution proceeds asynchronously on the engine's work queue.
//
// args must hold one resolved value per declared argument type. results
// must have one slot per declared result type; Execute fills each slot
// with a reference owned by the caller, who must DropRef every slot when
// done with it.
//
// Reference discipline: Execute takes one reference per register it
// creates and drops all of them once every register has resolved, so a
// run that completes cleanly returns the live-value count to its
// pre-dispatch baseline as soon as the caller releases the result slots.
func (f *Function) Execute(h *host.Host, args []*host.AsyncValue, results []*host.AsyncValue) {
	regs := make([]*host.AsyncValue, f.numRegs)
	copy(regs, args)

	created := make([]*host.AsyncValue, 0, f.numRegs-len(args))
	for i := len(args); i < f.numRegs; i++ {
		v := h.NewUnresolvedValue()
		regs[i] = v
		created = append(created, v)
	}

	// Hand the caller its result references before any op can run, so a
	// fast kernel cannot race the frame teardown.
	for i, r := range f.resultRegs {
		results[i] = regs[r].Ref()
	}

	// Each op holds a reference on its operands from here until it runs.
	// Taken for every op before any op is dispatched: an early op could
	// otherwise resolve the last register and tear the frame down while a
	// later op still needs its inputs.
	for i := range f.ops {
		for _, dep := range f.ops[i].operands {
			regs[dep].Ref()
		}
	}

	if len(created) > 0 {
		var unresolved atomic.Int32
		unresolved.Store(int32(len(created)))
		for _, v := range created {
			v.AndThen(func() {
				if unresolved.Add(-1) == 0 {
					for _, v := range created {
						v.DropRef()
					}
				}
			})
		}
	}

	for i := range f.ops {
		f.scheduleOp(h, &f.ops[i], regs)
	}
}

// scheduleOp enqueues the op's kernel once every operand has resolved.
// The countdown starts at len(operands)+1; the extra count is released
// synchronously below, which both handles zero-operand ops and prevents
// the op from firing before every AndThen is attached.
func (f *Function) scheduleOp(h *host.Host, op *progOp, regs []*host.AsyncValue) {
	var waiting atomic.Int32
	waiting.Store(int32(len(op.operands)) + 1)

	launch := func() {
		if waiting.Add(-1) == 0 {
			h.EnqueueWork(func() { f.runOp(h, op, regs) })
		}
	}
	for _, dep := range op.operands {
		regs[dep].AndThen(launch)
	}
	launch()
}

func (f *Function) runOp(h *host.Host, op *progOp, regs []*host.AsyncValue) {
	defer func() {
		for _, dep := range op.operands {
			regs[dep].DropRef()
		}
	}()

	resultSlots := make([]*host.AsyncValue, len(op.results))
	for i, r := range op.results {
		resultSlots[i] = regs[r]
	}

	// A canceled engine resolves results without running the kernel.
	if err := h.Canceled(); err != nil {
		for _, slot := range resultSlots {
			slot.SetError(err)
		}
		return
	}

	// Operand errors propagate past the kernel.
	argSlots := make([]*host.AsyncValue, len(op.operands))
	for i, d := range op.operands {
		if err := regs[d].Err(); err != nil {
			for _, slot := range resultSlots {
				slot.SetError(err)
			}
			return
		}
		argSlots[i] = regs[d]
	}

	frame := host.NewFrame(h, op.kernelName, op.loc, argSlots, op.attrs, resultSlots)
	op.kernel(frame)
}
