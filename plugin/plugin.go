package plugin

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/flowrt/flow-runtime/errors"
	"github.com/flowrt/flow-runtime/host"
)

// Provider is one source of kernels. Implementations wrap a loaded
// artifact and register its kernels into a registry.
type Provider interface {
	// Name identifies the provider, normally the artifact path.
	Name() string
	// Register adds the provider's kernels to reg.
	Register(reg *host.KernelRegistry) error
	// Close releases resources held by the loaded artifact. Kernels
	// obtained from the provider must not run after Close.
	Close(ctx context.Context) error
}

// Set holds every loaded provider so the driver can release them after
// the run.
type Set struct {
	providers []Provider
}

// Close releases all providers in reverse load order.
func (s *Set) Close(ctx context.Context) error {
	var first error
	for i := len(s.providers) - 1; i >= 0; i-- {
		if err := s.providers[i].Close(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// LoadAll loads each artifact, selects the loader by file extension, and
// registers the resulting kernels into reg. The first failure aborts
// loading and closes everything loaded so far.
func LoadAll(ctx context.Context, paths []string, reg *host.KernelRegistry) (*Set, error) {
	s := &Set{}
	for _, path := range paths {
		p, err := load(ctx, path)
		if err == nil {
			err = p.Register(reg)
			if err != nil {
				p.Close(ctx)
			}
		}
		if err != nil {
			s.Close(ctx)
			return nil, err
		}
		s.providers = append(s.providers, p)
		host.Logger().Info("loaded kernel provider", zap.String("path", path))
	}
	return s, nil
}

func load(ctx context.Context, path string) (Provider, error) {
	switch filepath.Ext(path) {
	case ".wasm":
		return loadWasm(ctx, path)
	case ".so":
		return loadShared(path)
	default:
		return nil, errors.New(errors.PhasePlugin, errors.KindUnsupported).
			Path(path).
			Detail("unrecognized kernel library extension").
			Build()
	}
}
