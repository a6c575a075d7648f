package host

import (
	"sort"
	"sync"

	"github.com/flowrt/flow-runtime/errors"
)

// Kernel is one operation implementation. It receives resolved arguments
// and unresolved result slots through the frame and must eventually
// resolve every result, either synchronously or from work it enqueues.
type Kernel func(*Frame)

// KernelRegistry maps operation names to implementations. It is mutable
// while kernel providers load and read-mostly afterwards.
type KernelRegistry struct {
	mu      sync.RWMutex
	kernels map[string]Kernel
}

// NewKernelRegistry creates an empty registry.
func NewKernelRegistry() *KernelRegistry {
	return &KernelRegistry{kernels: make(map[string]Kernel)}
}

// Register adds a kernel. An empty name or a name that is already taken
// is an error: silently replacing an implementation would make a program
// mean different things depending on provider load order.
func (r *KernelRegistry) Register(name string, k Kernel) error {
	if name == "" {
		return errors.Registration(name, errors.InvalidData(errors.PhasePlugin, "empty kernel name"))
	}
	if k == nil {
		return errors.Registration(name, errors.InvalidData(errors.PhasePlugin, "nil kernel"))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.kernels[name]; exists {
		return errors.Registration(name, errors.InvalidData(errors.PhasePlugin, "already registered"))
	}
	r.kernels[name] = k
	return nil
}

// Lookup returns the kernel registered under name.
func (r *KernelRegistry) Lookup(name string) (Kernel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.kernels[name]
	return k, ok
}

// Names returns every registered kernel name, sorted.
func (r *KernelRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.kernels))
	for name := range r.kernels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
