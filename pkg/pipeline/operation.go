package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/prathamsinghrao/Etl-Lib/pkg/errors"
)

// Operation is the uniform unit of work. Leaves, composites and stream
// processes all implement it, so any of them can appear anywhere a step is
// expected.
//
// Execute never panics and never returns a Go error: faults are captured
// where they occur, converted to execution errors and reported through the
// Result. An aborted result is an ordinary value; in-flight sibling work is
// never preempted.
type Operation interface {
	// Name identifies the operation in results, logs and abort reports.
	Name() string

	// Execute runs the operation against the shared execution context.
	Execute(pctx *Context) Result
}

// Releasable is implemented by operations that hold disposable resources.
// The engine calls Release after the owning step finishes, whether or not it
// succeeded.
type Releasable interface {
	Release(pctx *Context) error
}

// Result is the outcome of one operation execution.
//
// Success reports whether every unit of work inside the operation succeeded.
// Errors collects every captured fault in the order work completed. AbortedAt
// carries the name of the operation whose failure stopped the run; it is
// empty when execution ran to completion, even if errors were collected under
// a continue policy.
type Result struct {
	Success   bool
	Errors    []*errors.Error
	AbortedAt string
}

// Aborted reports whether this result carries an abort signal.
func (r Result) Aborted() bool {
	return r.AbortedAt != ""
}

// absorb folds a child result into an aggregate: success ANDs, errors
// concatenate in completion order, and the first abort identity sticks.
func (r *Result) absorb(child Result) {
	r.Success = r.Success && child.Success
	r.Errors = append(r.Errors, child.Errors...)
	if r.AbortedAt == "" {
		r.AbortedAt = child.AbortedAt
	}
}

// capture converts a fault at the named operation into a Result, consulting
// the context's error policy. Continue logs and proceeds; abort stamps the
// operation's identity into the result.
func capture(pctx *Context, name string, err error) Result {
	e := errors.AsExecution(name, err)
	res := Result{Success: false, Errors: []*errors.Error{e}}
	if pctx.ShouldContinue(res.Errors) {
		pctx.Logger("pipeline").Warn("continuing after operation failure",
			zap.String("operation", name),
			zap.Error(e))
		return res
	}
	pctx.Logger("pipeline").Error("operation failed, aborting",
		zap.String("operation", name),
		zap.Error(e))
	res.AbortedAt = name
	return res
}

// safeExecute runs an operation, converting a panic inside Execute into a
// captured fault rather than letting it unwind the run.
func safeExecute(pctx *Context, op Operation) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			res = capture(pctx, op.Name(), fmt.Errorf("panic: %v", rec))
		}
	}()
	return op.Execute(pctx)
}

// ActionFunc is the body of an action leaf. It performs side effects and
// produces no value.
type ActionFunc func(pctx *Context) error

// ScalarFunc is the body of a scalar leaf. Its value is published to the
// state map on success.
type ScalarFunc func(pctx *Context) (interface{}, error)

// EnumerableFunc is the body of an enumerable leaf. It calls yield once per
// produced element and stops on the first yield error.
type EnumerableFunc func(pctx *Context, yield func(interface{}) error) error

// LeafOption configures scalar and enumerable leaves.
type LeafOption func(*leafOptions)

type leafOptions struct {
	stateKey string
	consumer func(pctx *Context, v interface{}) error
}

// WithStateKey overrides the state key a leaf publishes its value under.
// The default key is the operation's name.
func WithStateKey(key string) LeafOption {
	return func(o *leafOptions) { o.stateKey = key }
}

// WithConsumer streams an enumerable leaf's elements to fn instead of
// collecting them into the state map.
func WithConsumer(fn func(pctx *Context, v interface{}) error) LeafOption {
	return func(o *leafOptions) { o.consumer = fn }
}

type action struct {
	name string
	fn   ActionFunc
}

// NewAction creates a leaf that performs work for its side effects only.
func NewAction(name string, fn ActionFunc) Operation {
	return &action{name: name, fn: fn}
}

func (a *action) Name() string { return a.name }

func (a *action) Execute(pctx *Context) Result {
	if err := runLeaf(func() error { return a.fn(pctx) }); err != nil {
		return capture(pctx, a.name, err)
	}
	return Result{Success: true}
}

type scalar struct {
	name string
	key  string
	fn   ScalarFunc
}

// NewScalar creates a leaf that computes a single value and publishes it to
// the state map. By default the value lands under the operation's name.
func NewScalar(name string, fn ScalarFunc, opts ...LeafOption) Operation {
	o := applyLeafOptions(name, opts)
	return &scalar{name: name, key: o.stateKey, fn: fn}
}

func (s *scalar) Name() string { return s.name }

func (s *scalar) Execute(pctx *Context) Result {
	var value interface{}
	err := runLeaf(func() error {
		v, err := s.fn(pctx)
		value = v
		return err
	})
	if err != nil {
		return capture(pctx, s.name, err)
	}
	pctx.SetState(s.key, value)
	return Result{Success: true}
}

type enumerable struct {
	name     string
	key      string
	consumer func(pctx *Context, v interface{}) error
	fn       EnumerableFunc
}

// NewEnumerable creates a leaf that produces a sequence of values. Without a
// consumer the values are collected into a slice under the state key; with
// WithConsumer each value is handed off as it is produced.
func NewEnumerable(name string, fn EnumerableFunc, opts ...LeafOption) Operation {
	o := applyLeafOptions(name, opts)
	return &enumerable{name: name, key: o.stateKey, consumer: o.consumer, fn: fn}
}

func (e *enumerable) Name() string { return e.name }

func (e *enumerable) Execute(pctx *Context) Result {
	var collected []interface{}
	yield := func(v interface{}) error {
		if e.consumer != nil {
			return e.consumer(pctx, v)
		}
		collected = append(collected, v)
		return nil
	}
	if err := runLeaf(func() error { return e.fn(pctx, yield) }); err != nil {
		return capture(pctx, e.name, err)
	}
	if e.consumer == nil {
		pctx.SetState(e.key, collected)
	}
	return Result{Success: true}
}

func applyLeafOptions(name string, opts []LeafOption) *leafOptions {
	o := &leafOptions{stateKey: name}
	for _, opt := range opts {
		opt(o)
	}
	if o.stateKey == "" {
		o.stateKey = name
	}
	return o
}

// runLeaf executes a leaf body, converting panics into errors at the point
// of occurrence.
func runLeaf(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn()
}
