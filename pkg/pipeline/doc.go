// Package pipeline provides the operation model and execution engine for
// declarative data pipelines.
//
// # Operations
//
// Everything that runs is an Operation: a named unit of work executed
// against a shared Context. Leaves wrap plain functions (NewAction,
// NewScalar, NewEnumerable); composites arrange other operations
// (NewSequence, NewConditional, NewLoop, NewParallelGroup). Because
// composites are operations themselves, definitions nest to any depth.
//
// # Results and faults
//
// Execute never panics and never returns a Go error. Faults are captured
// where they occur, converted into execution errors carrying the failing
// operation's identity, and reported through the Result. The context's
// ErrorPolicy decides whether a fault aborts the run or execution continues
// with the next unit of work; an abort is an ordinary result value and
// never preempts in-flight sibling work.
//
// # Building and executing
//
// A Builder assembles steps into an immutable Pipeline. Nothing runs until
// Execute, which creates a fresh Context (state, pools, connections,
// logger) for that run and walks the steps in order:
//
//	p, err := pipeline.NewBuilder("daily-load").
//	    Add(pipeline.NewAction("extract", extract)).
//	    Add(pipeline.NewAction("load", load)).
//	    Build()
//	if err != nil {
//	    return err
//	}
//	result := p.Execute(ctx)
//	if result.Aborted() {
//	    log.Warn("stopped early", zap.String("at", result.AbortedAt))
//	}
//
// After each step the engine releases the step's disposable resources and,
// when configured, triggers a garbage collection pass so long pipelines
// return memory between stages.
package pipeline
