package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "phase and kind only",
			err:  &Error{Phase: PhaseLoad, Kind: KindInvalidData},
			want: "[load] invalid_data",
		},
		{
			name: "with detail",
			err:  &Error{Phase: PhaseConfig, Kind: KindNotFound, Detail: "no such file"},
			want: "[config] not_found: no such file",
		},
		{
			name: "with path",
			err:  &Error{Phase: PhaseExec, Kind: KindCanceled, Path: []string{"main", "op3"}},
			want: "[exec] canceled at main.op3",
		},
		{
			name: "with cause",
			err:  &Error{Phase: PhasePlugin, Kind: KindIO, Detail: "open library", Cause: stderrors.New("boom")},
			want: "[plugin] io: open library (caused by: boom)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Fatalf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorIs(t *testing.T) {
	err := NotFound(PhaseConfig, "function", "main")
	if !stderrors.Is(err, &Error{Phase: PhaseConfig, Kind: KindNotFound}) {
		t.Fatal("expected Is to match on phase+kind")
	}
	if stderrors.Is(err, &Error{Phase: PhaseLoad, Kind: KindNotFound}) {
		t.Fatal("expected Is to reject a different phase")
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("underlying")
	err := Construction(PhaseEngine, "host", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected Unwrap chain to reach the cause")
	}
}

func TestBuilder(t *testing.T) {
	err := New(PhaseExec, KindInvalidData).
		Path("main").
		Detail("register %d resolved twice", 4).
		Build()
	want := "[exec] invalid_data at main: register 4 resolved twice"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestLeakError(t *testing.T) {
	err := LeakDetected("main", 0, 3)
	msg := err.Error()
	if !strings.Contains(msg, `"main"`) || !strings.Contains(msg, "leaked 3 async values") {
		t.Fatalf("unexpected leak message: %q", msg)
	}
	if !strings.Contains(msg, "(before: 0, after: 3)") {
		t.Fatalf("leak message missing counts: %q", msg)
	}

	if !IsLeak(err) {
		t.Fatal("IsLeak(leak) = false")
	}
	if !IsLeak(fmt.Errorf("run failed: %w", err)) {
		t.Fatal("IsLeak should see through wrapping")
	}
	if IsLeak(NotFound(PhaseConfig, "function", "x")) {
		t.Fatal("IsLeak(not_found) = true")
	}
}

func TestEndOfRunLeakMessage(t *testing.T) {
	err := LeakDetected("", 0, 2)
	if err.Error() != "leaked 2 live objects at end of run" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}
