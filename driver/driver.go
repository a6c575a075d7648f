package driver

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/flowrt/flow-runtime/alloc"
	"github.com/flowrt/flow-runtime/config"
	"github.com/flowrt/flow-runtime/dfb"
	"github.com/flowrt/flow-runtime/diag"
	"github.com/flowrt/flow-runtime/errors"
	"github.com/flowrt/flow-runtime/host"
	"github.com/flowrt/flow-runtime/kernels"
	"github.com/flowrt/flow-runtime/plugin"
	"github.com/flowrt/flow-runtime/telemetry"
)

// Run executes one configured driver run. The returned error is nil only
// when every selected function ran cleanly and every diagnostic matched
// its expectation. A leak produces an error for which errors.IsLeak
// reports true; hosting code treats that as fatal.
func Run(ctx context.Context, cfg *config.Config) (err error) {
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	errw := cfg.ErrOut
	if errw == nil {
		errw = os.Stderr
	}
	progName := cfg.Name
	if progName == "" {
		progName = "flowexec"
	}

	runID := telemetry.NewRunID()
	ctx, span := telemetry.StartSpan(ctx, "flow executor",
		attribute.String("run.id", runID),
		attribute.String("run.name", progName))
	defer func() { telemetry.EndSpan(span, err) }()
	telemetry.RecordVersion(ctx)

	host.Logger().Info("starting run",
		zap.String("run_id", runID),
		zap.String("input", cfg.Input))

	if err = cfg.Validate(); err != nil {
		return err
	}

	data, rerr := os.ReadFile(cfg.Input)
	if rerr != nil {
		return errors.IO(errors.PhaseLoad, "open input program", rerr)
	}

	// Expectations ride inside the input itself and must be recoverable
	// even when the rest of the image is garbage.
	verifier := diag.NewVerifier(dfb.ScanExpectations(data), errw)
	emit := verifier.Handler()
	handler := func(d diag.Diagnostic) {
		d.Message = "runtime error: " + d.Message
		if d.Location.File == "" {
			d.Location.File = cfg.Input
		}
		emit(d)
	}

	strategy, serr := alloc.ParseStrategy(cfg.Allocator)
	if serr != nil {
		return errors.New(errors.PhaseConfig, errors.KindInvalidData).Cause(serr).Build()
	}
	allocator := alloc.New(strategy, out)
	fmt.Fprintf(out, "Choosing %s allocator.\n", allocator.Name())

	queue := host.NewWorkQueue(cfg.WorkQueue)
	if queue == nil {
		allocator.Close()
		fmt.Fprintf(errw, "%s: couldn't create work queue type %s\n", progName, cfg.WorkQueue)
		return errors.New(errors.PhaseConfig, errors.KindInvalidData).
			Detail("couldn't create work queue type %s", cfg.WorkQueue).
			Build()
	}
	fmt.Fprintf(out, "Choosing %s work queue.\n", queue.Name())

	devices, derr := config.ParseDevices(cfg.Devices)
	if derr != nil {
		queue.Close()
		allocator.Close()
		return derr
	}

	acct := host.NewAccounting()
	if cfg.NoLeakCheck {
		acct = host.NewUntrackedAccounting()
	}
	h, herr := host.New(handler, allocator, queue, devices,
		host.WithAccounting(acct), host.WithOutput(out))
	if herr != nil {
		queue.Close()
		allocator.Close()
		return herr
	}
	defer h.Close()
	span.SetAttributes(attribute.String("work.queue", h.WorkQueueName()))

	if err = kernels.RegisterBuiltins(h.Registry()); err != nil {
		allocator.Close()
		return err
	}
	providers, perr := plugin.LoadAll(ctx, cfg.SharedLibs, h.Registry())
	if perr != nil {
		allocator.Close()
		fmt.Fprintf(errw, "%s: couldn't load library %v\n", progName, perr)
		return perr
	}
	defer providers.Close(ctx)

	program, _ := dfb.Parse(data, h.Registry(), handler, allocator, acct)
	if program == nil {
		// A malformed program may be an intentional negative test; its
		// expectations decide the verdict.
		return finish(nil, allocator, acct, verifier)
	}

	fns, ferr := selectFunctions(program, cfg.Functions, progName, errw)
	if ferr != nil {
		program.Close()
		allocator.Close()
		return ferr
	}

	for _, fn := range fns {
		if err = runFunction(ctx, h, fn, out, errw, acct); err != nil {
			program.Close()
			allocator.Close()
			return err
		}
	}

	return finish(program, allocator, acct, verifier)
}

// selectFunctions resolves the requested entry points, or every function
// in declaration order when none are requested. The first missing name
// fails the run before anything is dispatched.
func selectFunctions(program *dfb.Program, names []string, progName string, errw io.Writer) ([]*dfb.Function, error) {
	if len(names) == 0 {
		return program.Functions(), nil
	}
	fns := make([]*dfb.Function, 0, len(names))
	for _, name := range names {
		fn := program.Function(name)
		if fn == nil {
			fmt.Fprintf(errw, "%s: couldn't find function %s\n", progName, name)
			return nil, errors.NotFound(errors.PhaseExec, "function", name)
		}
		fns = append(fns, fn)
	}
	return fns, nil
}

// runFunction executes one entry point as a standalone test case and
// enforces its leak accounting.
func runFunction(ctx context.Context, h *host.Host, fn *dfb.Function, out, errw io.Writer, acct *host.Accounting) error {
	if len(fn.ArgTypes()) > 0 {
		fmt.Fprintf(out, "--- Not running '%s' because it has arguments.\n", fn.Name())
		return nil
	}
	if fn.Name() == "" {
		return nil
	}

	_, span := telemetry.StartSpan(ctx, "function "+fn.Name())
	var runErr error
	defer func() { telemetry.EndSpan(span, runErr) }()

	var before int64
	if acct.Enabled() {
		before = acct.LiveAsyncValues()
	}

	fmt.Fprintf(out, "--- Running '%s':\n", fn.Name())

	results := make([]*host.AsyncValue, len(fn.ResultTypes()))
	fn.Execute(h, nil, results)

	// The only blocking point; deliberately unbounded.
	h.Await(results)

	if len(results) > 0 {
		fmt.Fprintf(out, "'%s' returned %s\n", fn.Name(), formatResults(fn.ResultTypes(), results))
	}

	// Side-effecting kernels may still be running even though every
	// result has resolved; let them finish so the leak delta is exact.
	h.Quiesce()

	// Clear any cancellation before the next function dispatches.
	h.Restart()

	for _, r := range results {
		r.DropRef()
	}

	if acct.Enabled() {
		after := acct.LiveAsyncValues()
		if after != before {
			fmt.Fprintf(errw, "Evaluation of function '%s' leaked %d async values (before: %d, after: %d)!\n",
				fn.Name(), after-before, before, after)
			runErr = errors.LeakDetected(fn.Name(), before, after)
			return runErr
		}
	}
	return nil
}

// finish releases the program and allocator, asserts the end-of-run
// resource state, and turns the verifier verdict into the run's error.
func finish(program *dfb.Program, allocator alloc.Allocator, acct *host.Accounting, verifier *diag.Verifier) error {
	if program != nil {
		program.Close()
	}
	if acct.Enabled() {
		if live := acct.LiveObjects(); live != 0 {
			return errors.LeakDetected("", 0, live)
		}
	}
	if err := allocator.Close(); err != nil {
		return err
	}
	if !verifier.Verify() {
		return errors.VerificationFailed()
	}
	return nil
}
