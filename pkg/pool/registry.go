package pool

import (
	"sort"
	"sync"

	"github.com/prathamsinghrao/Etl-Lib/pkg/errors"
)

// pooled is the type-erased view of a Pool[T] held by the registry
type pooled interface {
	Deallocate()
	Stats() Stats
}

// Registry holds the named typed pools of one pipeline execution. Pools are
// registered before execution begins; Deallocate tears every pool down at
// execution end, success or failure. Safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	pools       map[string]pooled
	deallocated bool
}

// NewRegistry creates an empty pool registry
func NewRegistry() *Registry {
	return &Registry{pools: make(map[string]pooled)}
}

// Register creates a typed pool under the given name and adds it to the
// registry. Registering a duplicate name, or registering on a deallocated
// registry, is a validation error.
func Register[T any](r *Registry, name string, initialSize int, autoGrow bool, factory func() T, reset func(T)) (*Pool[T], error) {
	p, err := New(name, initialSize, autoGrow, factory, reset)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deallocated {
		return nil, errors.NewValidation("pool registry already deallocated").WithDetail("pool", name)
	}
	if _, exists := r.pools[name]; exists {
		return nil, errors.Newf(errors.ErrorTypeValidation, "pool %q already registered", name)
	}
	r.pools[name] = p
	return p, nil
}

// Lookup returns the typed pool registered under name. Asking for an
// unregistered name, or for a name registered with a different type, is an
// error.
func Lookup[T any](r *Registry, name string) (*Pool[T], error) {
	r.mu.RLock()
	entry, ok := r.pools[name]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.Newf(errors.ErrorTypeValidation, "pool %q is not registered", name)
	}
	p, ok := entry.(*Pool[T])
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeInternal, "pool %q holds a different instance type", name)
	}
	return p, nil
}

// Names returns the registered pool names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.pools))
	for name := range r.pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats returns a snapshot of every registered pool's counters
func (r *Registry) Stats() map[string]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Stats, len(r.pools))
	for name, p := range r.pools {
		out[name] = p.Stats()
	}
	return out
}

// Deallocate releases every registered pool. Idempotent; the registry
// rejects further registrations afterwards.
func (r *Registry) Deallocate() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deallocated {
		return
	}
	for _, p := range r.pools {
		p.Deallocate()
	}
	r.pools = make(map[string]pooled)
	r.deallocated = true
}
