// Package pool provides typed object pooling with an explicit borrow/return
// discipline for pipeline execution.
//
// Unlike sync.Pool, these pools have real capacity semantics: a pool is
// registered with an initial size before execution begins, a Borrow against a
// depleted pool either grows it (when growth is enabled) or fails with a
// pool-exhausted error, and Deallocate releases everything at the end of one
// pipeline run. Streaming chains process many records; amortized reuse bounds
// peak memory to capacity times record size instead of dataset size.
//
// Example usage:
//
//	recordPool, err := pool.New("records", 1024, true,
//	    func() *models.Record { return models.NewRecord() },
//	    func(r *models.Record) { r.Reset() },
//	)
//	if err != nil { ... }
//
//	rec, err := recordPool.Borrow()
//	if err != nil { ... }
//	defer recordPool.Return(rec)
package pool

import (
	"sync"

	"github.com/prathamsinghrao/Etl-Lib/pkg/errors"
)

// Stats is a point-in-time snapshot of one pool's counters
type Stats struct {
	// Capacity is the total number of instances the pool owns (free + in use)
	Capacity int
	// InUse is the number of currently borrowed instances
	InUse int
	// Borrows counts successful Borrow calls
	Borrows int64
	// Returns counts Return calls
	Returns int64
	// Grows counts instances allocated beyond the initial size
	Grows int64
	// Exhausted counts Borrow calls that failed because the pool was empty
	// and growth is disabled
	Exhausted int64
}

// Pool is a typed free-list pool. Every instance is in exactly one of two
// states: free (held by the pool) or referenced (held by at most one
// borrower). The pool is safe for concurrent use.
//
// Pointer types are the intended type parameter; borrow tracking (see
// EnableTracking) additionally requires instances to be valid map keys.
type Pool[T any] struct {
	name     string
	factory  func() T
	reset    func(T)
	autoGrow bool

	mu          sync.Mutex
	free        []T
	capacity    int
	inUse       int
	deallocated bool

	// tracking is a debug aid: when enabled, Return verifies that the
	// instance is one this pool issued and is currently borrowed
	tracking bool
	borrowed map[interface{}]struct{}

	borrows   int64
	returns   int64
	grows     int64
	exhausted int64
}

// New creates a pool of initialSize pre-allocated instances.
//
// Parameters:
//   - name: identifies the pool in errors and stats
//   - initialSize: number of instances allocated up front (>= 0)
//   - autoGrow: when true, Borrow on an empty pool allocates a new instance
//     instead of failing
//   - factory: creates new instances of T
//   - reset: optional cleanup applied on Return before an instance goes back
//     to the free list
//
// A nil factory, an empty name or a negative initial size is a validation
// error: pools are registered before execution begins and bad configuration
// fails fast.
func New[T any](name string, initialSize int, autoGrow bool, factory func() T, reset func(T)) (*Pool[T], error) {
	if name == "" {
		return nil, errors.NewValidation("pool name must not be empty")
	}
	if factory == nil {
		return nil, errors.NewValidation("pool factory must not be nil").WithDetail("pool", name)
	}
	if initialSize < 0 {
		return nil, errors.NewValidation("pool initial size must not be negative").
			WithDetail("pool", name).
			WithDetail("initial_size", initialSize)
	}

	p := &Pool[T]{
		name:     name,
		factory:  factory,
		reset:    reset,
		autoGrow: autoGrow,
		free:     make([]T, 0, initialSize),
		capacity: initialSize,
	}
	for i := 0; i < initialSize; i++ {
		p.free = append(p.free, factory())
	}
	return p, nil
}

// Name returns the pool's registered name
func (p *Pool[T]) Name() string {
	return p.name
}

// EnableTracking switches on the debug-only borrow assertion: Return panics
// when handed an instance the pool did not issue or that was already
// returned. Intended for tests and debug builds; instances must be valid map
// keys (pointers are).
func (p *Pool[T]) EnableTracking() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracking = true
	if p.borrowed == nil {
		p.borrowed = make(map[interface{}]struct{})
	}
}

// Borrow transitions one free instance to referenced and returns it. When no
// instance is free it either grows the pool (autoGrow) or fails with a
// pool-exhausted error. Borrowing from a deallocated pool is an error.
func (p *Pool[T]) Borrow() (T, error) {
	var zero T

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.deallocated {
		return zero, errors.Newf(errors.ErrorTypeInternal, "pool %q used after deallocate", p.name)
	}

	var v T
	if n := len(p.free); n > 0 {
		v = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		if !p.autoGrow {
			p.exhausted++
			return zero, errors.NewPoolExhausted(p.name)
		}
		v = p.factory()
		p.capacity++
		p.grows++
	}

	p.inUse++
	p.borrows++
	if p.tracking {
		p.borrowed[interface{}(v)] = struct{}{}
	}
	return v, nil
}

// Return resets the instance and transitions it back to free. Returning an
// instance the pool did not issue, or returning one twice, is a caller
// contract violation; with tracking enabled it panics, otherwise it is
// undetected. Returns after Deallocate are dropped.
func (p *Pool[T]) Return(v T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.deallocated {
		return
	}

	if p.tracking {
		key := interface{}(v)
		if _, ok := p.borrowed[key]; !ok {
			panic("pool " + p.name + ": return of an instance that is not currently borrowed")
		}
		delete(p.borrowed, key)
	}

	if p.reset != nil {
		p.reset(v)
	}
	p.free = append(p.free, v)
	p.inUse--
	p.returns++
}

// Deallocate releases all pool memory. It is called unconditionally at the
// end of one pipeline execution, success or failure, and is idempotent.
// Instances still referenced stay usable by their borrowers but can no
// longer be returned.
func (p *Pool[T]) Deallocate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.free = nil
	p.borrowed = nil
	p.capacity = 0
	p.inUse = 0
	p.deallocated = true
}

// Capacity returns the total number of instances the pool owns
func (p *Pool[T]) Capacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capacity
}

// InUse returns the number of currently borrowed instances
func (p *Pool[T]) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}

// Stats returns a snapshot of the pool's counters
func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Capacity:  p.capacity,
		InUse:     p.inUse,
		Borrows:   p.borrows,
		Returns:   p.returns,
		Grows:     p.grows,
		Exhausted: p.exhausted,
	}
}
