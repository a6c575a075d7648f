package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the run the error occurred
type Phase string

const (
	PhaseConfig Phase = "config" // run configuration
	PhaseLoad   Phase = "load"   // program loading
	PhasePlugin Phase = "plugin" // kernel provider loading
	PhaseEngine Phase = "engine" // host engine construction
	PhaseExec   Phase = "exec"   // function execution
	PhaseVerify Phase = "verify" // diagnostic verification
)

// Kind categorizes the error
type Kind string

const (
	KindIO           Kind = "io"
	KindNotFound     Kind = "not_found"
	KindInvalidData  Kind = "invalid_data"
	KindConstruction Kind = "construction"
	KindRegistration Kind = "registration"
	KindCanceled     Kind = "canceled"
	KindLeak         Kind = "leak"
	KindMismatch     Kind = "mismatch"
	KindUnsupported  Kind = "unsupported"
)

// Error is the structured error type used throughout the runtime
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the component path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// IO creates an input/output error
func IO(phase Phase, detail string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindIO,
		Detail: detail,
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Detail: detail,
	}
}

// Construction creates a construction failure error
func Construction(phase Phase, what string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindConstruction,
		Detail: fmt.Sprintf("construct %s", what),
		Cause:  cause,
	}
}

// Registration creates a kernel registration error
func Registration(name string, cause error) *Error {
	return &Error{
		Phase:  PhasePlugin,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register kernel %q", name),
		Cause:  cause,
	}
}

// Load creates a program loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// Canceled creates a cancellation error
func Canceled(detail string) *Error {
	return &Error{
		Phase:  PhaseExec,
		Kind:   KindCanceled,
		Detail: detail,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// VerificationFailed creates the end-of-run diagnostic mismatch error
func VerificationFailed() *Error {
	return &Error{
		Phase:  PhaseVerify,
		Kind:   KindMismatch,
		Detail: "emitted diagnostics did not match expectations",
	}
}

// LeakError reports async values or reference-counted objects that
// outlived the run that produced them. It is fatal by contract: once a
// function leaks, every later leak delta would be attributed to the wrong
// function, so hosting code is expected to abort rather than continue.
type LeakError struct {
	Function string
	Before   int64
	After    int64
}

func (e *LeakError) Error() string {
	if e.Function == "" {
		return fmt.Sprintf("leaked %d live objects at end of run", e.After-e.Before)
	}
	return fmt.Sprintf("evaluation of function %q leaked %d async values (before: %d, after: %d)",
		e.Function, e.After-e.Before, e.Before, e.After)
}

// Is reports whether target matches this error type
func (e *LeakError) Is(target error) bool {
	if _, ok := target.(*LeakError); ok {
		return true
	}
	if t, ok := target.(*Error); ok {
		return t.Kind == KindLeak
	}
	return false
}

// LeakDetected creates a fatal leak error attributed to one function.
// An empty function name marks the end-of-run whole-process check.
func LeakDetected(function string, before, after int64) *LeakError {
	return &LeakError{Function: function, Before: before, After: after}
}

// IsLeak reports whether err is (or wraps) a fatal leak error.
func IsLeak(err error) bool {
	for err != nil {
		if _, ok := err.(*LeakError); ok {
			return true
		}
		if e, ok := err.(*Error); ok && e.Kind == KindLeak {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
