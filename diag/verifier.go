package diag

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Expectation is a diagnostic the program declares it will emit. Line 0
// matches a diagnostic with an undecodable location.
type Expectation struct {
	Severity Severity
	Line     int
	Message  string
}

// Verifier collects every diagnostic emitted during a run and reconciles
// the stream against the program's embedded expectations.
//
// Matching rules: severity must be equal, the line must be equal, and the
// expected message must be a substring of the emitted message. Each
// expectation is consumed at most once.
type Verifier struct {
	mu       sync.Mutex
	expected []Expectation
	matched  []bool
	stray    []Diagnostic
	errw     io.Writer
}

// NewVerifier creates a verifier over the given expectations. Mismatch
// details are written to errw when Verify runs.
func NewVerifier(expected []Expectation, errw io.Writer) *Verifier {
	if errw == nil {
		errw = io.Discard
	}
	return &Verifier{
		expected: expected,
		matched:  make([]bool, len(expected)),
		errw:     errw,
	}
}

// Emit records one emitted diagnostic, consuming the first unconsumed
// expectation that matches it. Safe for concurrent use.
func (v *Verifier) Emit(d Diagnostic) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i, exp := range v.expected {
		if v.matched[i] {
			continue
		}
		if exp.Severity != d.Severity || exp.Line != d.Location.Line {
			continue
		}
		if !strings.Contains(d.Message, exp.Message) {
			continue
		}
		v.matched[i] = true
		return
	}
	v.stray = append(v.stray, d)
}

// Handler returns an emit callback bound to this verifier.
func (v *Verifier) Handler() Handler {
	return v.Emit
}

// Verify reports whether the emitted stream fully reconciled with the
// expectations. Every failure is described on the error writer.
func (v *Verifier) Verify() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	ok := true
	for i, exp := range v.expected {
		if v.matched[i] {
			continue
		}
		ok = false
		fmt.Fprintf(v.errw, "expected %s at line %d never produced: %s\n",
			exp.Severity, exp.Line, exp.Message)
	}
	for _, d := range v.stray {
		ok = false
		fmt.Fprintf(v.errw, "unexpected %s: %s\n", d.Severity, d)
	}
	return ok
}
