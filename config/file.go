package config

import (
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/flowrt/flow-runtime/errors"
)

// hclFile is the top-level schema of a driver config file.
type hclFile struct {
	Run *hclRunBlock `hcl:"run,block"`
}

// hclRunBlock mirrors the flag surface.
type hclRunBlock struct {
	Input       string   `hcl:"input,optional"`
	Functions   []string `hcl:"functions,optional"`
	Allocator   string   `hcl:"allocator,optional"`
	WorkQueue   string   `hcl:"work_queue,optional"`
	SharedLibs  []string `hcl:"shared_libs,optional"`
	Devices     []string `hcl:"devices,optional"`
	Name        string   `hcl:"name,optional"`
	Trace       *bool    `hcl:"trace,optional"`
	NoLeakCheck *bool    `hcl:"no_leak_check,optional"`
}

// LoadFile layers the run block of an HCL config file over base and
// returns the merged configuration. File attributes that are absent leave
// the base value untouched. Expressions may reference env.<VAR>.
func LoadFile(path string, base *Config) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidData).
			Path(path).
			Cause(diags).
			Build()
	}

	var parsed hclFile
	if diags := gohcl.DecodeBody(file.Body, evalContext(), &parsed); diags.HasErrors() {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidData).
			Path(path).
			Cause(diags).
			Build()
	}

	merged := *base
	if run := parsed.Run; run != nil {
		if run.Input != "" {
			merged.Input = run.Input
		}
		if len(run.Functions) > 0 {
			merged.Functions = run.Functions
		}
		if run.Allocator != "" {
			merged.Allocator = run.Allocator
		}
		if run.WorkQueue != "" {
			merged.WorkQueue = run.WorkQueue
		}
		if len(run.SharedLibs) > 0 {
			merged.SharedLibs = run.SharedLibs
		}
		if len(run.Devices) > 0 {
			merged.Devices = run.Devices
		}
		if run.Name != "" {
			merged.Name = run.Name
		}
		if run.Trace != nil {
			merged.Trace = *run.Trace
		}
		if run.NoLeakCheck != nil {
			merged.NoLeakCheck = *run.NoLeakCheck
		}
	}
	return &merged, nil
}

// evalContext exposes the process environment to config expressions as
// env.<NAME>.
func evalContext() *hcl.EvalContext {
	env := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			env[k] = cty.StringVal(v)
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(env),
		},
	}
}
