package plugin

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/flowrt/flow-runtime/errors"
	"github.com/flowrt/flow-runtime/host"
)

// wasmProvider wraps one instantiated WebAssembly module. Exported
// functions whose signatures use only scalar value types become kernels
// named after the export.
type wasmProvider struct {
	path    string
	runtime wazero.Runtime
	module  api.Module

	// Module instances do not support concurrent calls.
	callMu sync.Mutex

	exports map[string]api.FunctionDefinition
}

func loadWasm(ctx context.Context, path string) (Provider, error) {
	bin, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.IO(errors.PhasePlugin, "read kernel module", err)
	}

	rt := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, rt)

	code, err := rt.CompileModule(ctx, bin)
	if err != nil {
		rt.Close(ctx)
		return nil, errors.Load(path, err)
	}
	mod, err := rt.InstantiateModule(ctx, code, wazero.NewModuleConfig().WithName(path))
	if err != nil {
		rt.Close(ctx)
		return nil, errors.Load(path, err)
	}

	return &wasmProvider{
		path:    path,
		runtime: rt,
		module:  mod,
		exports: code.ExportedFunctions(),
	}, nil
}

func (p *wasmProvider) Name() string { return p.path }

func (p *wasmProvider) Close(ctx context.Context) error {
	return p.runtime.Close(ctx)
}

// Register adds one kernel per scalar-signature export. Exports with
// reference or vector types in their signatures are skipped: they cannot
// be bridged to attribute-free dataflow values.
func (p *wasmProvider) Register(reg *host.KernelRegistry) error {
	for name, def := range p.exports {
		if name == "" || !scalarSignature(def) {
			continue
		}
		if err := reg.Register(name, p.kernel(name, def)); err != nil {
			return err
		}
	}
	return nil
}

func scalarSignature(def api.FunctionDefinition) bool {
	for _, vt := range def.ParamTypes() {
		if !scalarType(vt) {
			return false
		}
	}
	for _, vt := range def.ResultTypes() {
		if !scalarType(vt) {
			return false
		}
	}
	return true
}

func scalarType(vt api.ValueType) bool {
	switch vt {
	case api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF32, api.ValueTypeF64:
		return true
	default:
		return false
	}
}

func (p *wasmProvider) kernel(name string, def api.FunctionDefinition) host.Kernel {
	params := def.ParamTypes()
	results := def.ResultTypes()

	return func(f *host.Frame) {
		if f.NumArgs() != len(params) {
			f.ReportError("kernel '%s' takes %d arguments, got %d", f.Kernel(), len(params), f.NumArgs())
			return
		}
		raw := make([]uint64, len(params))
		for i, vt := range params {
			v, err := encodeScalar(vt, f.Arg(i))
			if err != nil {
				f.ReportError("kernel '%s' argument %d: %v", f.Kernel(), i, err)
				return
			}
			raw[i] = v
		}

		p.callMu.Lock()
		out, err := p.module.ExportedFunction(name).Call(context.Background(), raw...)
		p.callMu.Unlock()
		if err != nil {
			f.ReportError("kernel '%s': %v", f.Kernel(), err)
			return
		}
		for i, vt := range results {
			if i >= f.NumResults() {
				break
			}
			f.SetResult(i, decodeScalar(vt, out[i]))
		}
	}
}

func encodeScalar(vt api.ValueType, v any) (uint64, error) {
	switch vt {
	case api.ValueTypeI32:
		if x, ok := v.(int32); ok {
			return api.EncodeI32(x), nil
		}
	case api.ValueTypeI64:
		if x, ok := v.(int64); ok {
			return api.EncodeI64(x), nil
		}
	case api.ValueTypeF32:
		if x, ok := v.(float32); ok {
			return api.EncodeF32(x), nil
		}
	case api.ValueTypeF64:
		if x, ok := v.(float64); ok {
			return api.EncodeF64(x), nil
		}
	}
	return 0, fmt.Errorf("cannot pass %T as %s", v, api.ValueTypeName(vt))
}

func decodeScalar(vt api.ValueType, raw uint64) any {
	switch vt {
	case api.ValueTypeI32:
		return api.DecodeI32(raw)
	case api.ValueTypeI64:
		return int64(raw)
	case api.ValueTypeF32:
		return api.DecodeF32(raw)
	default:
		return api.DecodeF64(raw)
	}
}
