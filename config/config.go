package config

import (
	"io"
	"os"
	"strings"

	"github.com/flowrt/flow-runtime/errors"
	"github.com/flowrt/flow-runtime/host"
)

// Config is one run of the driver.
type Config struct {
	// Input is the path of the DFB program to execute.
	Input string
	// Functions lists the entry points to run. Empty means every named
	// function in declaration order.
	Functions []string
	// Allocator selects the allocator strategy by name; see
	// alloc.ParseStrategy. Empty means the plain heap allocator.
	Allocator string
	// WorkQueue selects the work queue kind: "serial", "concurrent", or
	// "concurrent:N".
	WorkQueue string
	// SharedLibs lists kernel provider artifacts loaded before parsing.
	SharedLibs []string
	// Devices lists device descriptors as "name" or "name:kind".
	Devices []string
	// Name labels the run in traces and logs.
	Name string
	// Trace enables OpenTelemetry tracing to stdout.
	Trace bool
	// NoLeakCheck disables async-value accounting, skipping the
	// per-function and end-of-run leak checks.
	NoLeakCheck bool

	// Out receives driver progress and result lines; defaults to stdout.
	Out io.Writer
	// ErrOut receives verifier reports; defaults to stderr.
	ErrOut io.Writer
}

// Default returns the configuration a bare invocation runs with.
func Default() *Config {
	return &Config{
		WorkQueue: "serial",
		Out:       os.Stdout,
		ErrOut:    os.Stderr,
	}
}

// Validate checks the parts of the configuration that can fail before
// any resource is touched.
func (c *Config) Validate() error {
	if c.Input == "" {
		return errors.New(errors.PhaseConfig, errors.KindInvalidData).
			Detail("no input program given").
			Build()
	}
	if _, err := ParseDevices(c.Devices); err != nil {
		return err
	}
	return nil
}

// ParseDevices resolves "name" or "name:kind" descriptor strings. A
// descriptor without a kind is a CPU device. An empty list yields the
// default single CPU device.
func ParseDevices(specs []string) ([]host.Device, error) {
	if len(specs) == 0 {
		return []host.Device{{Name: "cpu0", Kind: "cpu"}}, nil
	}
	devices := make([]host.Device, 0, len(specs))
	for _, spec := range specs {
		name, kind, ok := strings.Cut(spec, ":")
		if !ok {
			kind = "cpu"
		}
		if name == "" || kind == "" {
			return nil, errors.New(errors.PhaseConfig, errors.KindInvalidData).
				Detail("malformed device descriptor %q", spec).
				Build()
		}
		devices = append(devices, host.Device{Name: name, Kind: kind})
	}
	return devices, nil
}

// SplitList splits a comma-separated flag value, dropping empty entries.
func SplitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
