package plugin

import (
	"context"
	goplugin "plugin"

	"github.com/flowrt/flow-runtime/errors"
	"github.com/flowrt/flow-runtime/host"
)

// RegisterFunc is the optional symbol a native kernel library exports.
type RegisterFunc = func(*host.KernelRegistry) error

// sharedProvider wraps a native shared object. The library may export
// RegisterKernels; one that registers from its initializers instead is
// also accepted, so a missing symbol is not an error.
type sharedProvider struct {
	path     string
	register RegisterFunc
}

func loadShared(path string) (Provider, error) {
	lib, err := goplugin.Open(path)
	if err != nil {
		return nil, errors.Load(path, err)
	}
	p := &sharedProvider{path: path}
	if sym, err := lib.Lookup("RegisterKernels"); err == nil {
		fn, ok := sym.(RegisterFunc)
		if !ok {
			return nil, errors.InvalidData(errors.PhasePlugin,
				"RegisterKernels in "+path+" has the wrong signature")
		}
		p.register = fn
	}
	return p, nil
}

func (p *sharedProvider) Name() string { return p.path }

func (p *sharedProvider) Register(reg *host.KernelRegistry) error {
	if p.register == nil {
		return nil
	}
	return p.register(reg)
}

// Close is a no-op: the runtime offers no way to unload a shared object.
func (p *sharedProvider) Close(context.Context) error { return nil }
