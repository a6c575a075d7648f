package driver

import (
	"bytes"
	"context"
	"os"
	"sync"

	"github.com/flowrt/flow-runtime/alloc"
	"github.com/flowrt/flow-runtime/config"
	"github.com/flowrt/flow-runtime/dfb"
	"github.com/flowrt/flow-runtime/diag"
	"github.com/flowrt/flow-runtime/errors"
	"github.com/flowrt/flow-runtime/host"
	"github.com/flowrt/flow-runtime/kernels"
	"github.com/flowrt/flow-runtime/plugin"
)

// syncBuffer is a Writer safe for the engine's worker goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) take() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.buf.String()
	b.buf.Reset()
	return s
}

// Session keeps one bootstrapped engine and program alive across multiple
// on-demand function runs, capturing each run's printed output. It backs
// the interactive mode.
type Session struct {
	h         *host.Host
	program   *dfb.Program
	providers *plugin.Set
	allocator alloc.Allocator
	acct      *host.Accounting
	out       *syncBuffer

	mu sync.Mutex
}

// NewSession bootstraps the engine stack once for the configured input.
// Diagnostics are captured alongside printed output rather than verified;
// a session is an exploration tool, not a test oracle.
func NewSession(ctx context.Context, cfg *config.Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(cfg.Input)
	if err != nil {
		return nil, errors.IO(errors.PhaseLoad, "open input program", err)
	}

	strategy, err := alloc.ParseStrategy(cfg.Allocator)
	if err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidData).Cause(err).Build()
	}
	allocator := alloc.New(strategy, nil)

	queue := host.NewWorkQueue(cfg.WorkQueue)
	if queue == nil {
		allocator.Close()
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidData).
			Detail("couldn't create work queue type %s", cfg.WorkQueue).
			Build()
	}
	devices, err := config.ParseDevices(cfg.Devices)
	if err != nil {
		queue.Close()
		allocator.Close()
		return nil, err
	}

	out := &syncBuffer{}
	acct := host.NewAccounting()
	if cfg.NoLeakCheck {
		acct = host.NewUntrackedAccounting()
	}
	s := &Session{allocator: allocator, acct: acct, out: out}

	handler := func(d diag.Diagnostic) {
		out.Write([]byte("runtime error: " + d.Message + "\n"))
	}
	s.h, err = host.New(handler, allocator, queue, devices,
		host.WithAccounting(s.acct), host.WithOutput(out))
	if err != nil {
		queue.Close()
		allocator.Close()
		return nil, err
	}
	if err := kernels.RegisterBuiltins(s.h.Registry()); err != nil {
		s.h.Close()
		allocator.Close()
		return nil, err
	}
	s.providers, err = plugin.LoadAll(ctx, cfg.SharedLibs, s.h.Registry())
	if err != nil {
		s.h.Close()
		allocator.Close()
		return nil, err
	}

	s.program, err = dfb.Parse(data, s.h.Registry(), s.h.Emit, allocator, s.acct)
	if err != nil {
		s.providers.Close(ctx)
		s.h.Close()
		allocator.Close()
		return nil, err
	}
	return s, nil
}

// Functions lists the program's functions in declaration order.
func (s *Session) Functions() []*dfb.Function {
	return s.program.Functions()
}

// Run executes one named zero-argument function and returns everything it
// printed. Runs are serialized; the engine state is shared.
func (s *Session) Run(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn := s.program.Function(name)
	if fn == nil {
		return "", errors.NotFound(errors.PhaseExec, "function", name)
	}
	if len(fn.ArgTypes()) > 0 {
		return "", errors.Unsupported(errors.PhaseExec,
			"function '"+name+"' takes arguments")
	}

	s.out.take()
	err := runFunction(context.Background(), s.h, fn, s.out, s.out, s.acct)
	return s.out.take(), err
}

// Close tears the session's engine down.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.program != nil {
		s.program.Close()
		s.program = nil
	}
	if s.providers != nil {
		s.providers.Close(ctx)
		s.providers = nil
	}
	if s.h != nil {
		s.h.Close()
		s.h = nil
	}
	if s.allocator != nil {
		s.allocator.Close()
		s.allocator = nil
	}
}
