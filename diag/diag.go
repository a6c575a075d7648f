package diag

import "fmt"

// Severity classifies a diagnostic.
type Severity byte

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityNote
	SeverityRemark
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityNote:
		return "note"
	case SeverityRemark:
		return "remark"
	default:
		return fmt.Sprintf("severity(%d)", byte(s))
	}
}

// Location identifies the program position a diagnostic refers to.
// A zero Location means the position could not be decoded.
type Location struct {
	File string
	Line int
	Col  int
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Col)
}

// Diagnostic is a single message emitted by the engine or the program
// loader during a run.
type Diagnostic struct {
	Severity Severity
	Location Location
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Location, d.Severity, d.Message)
}

// Handler consumes diagnostics as they are emitted. Handlers must be safe
// for concurrent use: kernels report errors from work-queue threads.
type Handler func(Diagnostic)
