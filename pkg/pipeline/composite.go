package pipeline

import (
	"github.com/gammazero/workerpool"
)

// Predicate guards conditionals and loops. It reads the execution context
// and must not fail; decisions that can fail belong in an operation that
// publishes its outcome to state first.
type Predicate func(pctx *Context) bool

// Sequence runs child operations in order. Children share the parent's
// context; an abort from any child stops the remaining ones.
type Sequence struct {
	name string
	ops  []Operation
}

// NewSequence creates a sequence over the given operations.
func NewSequence(name string, ops ...Operation) *Sequence {
	return &Sequence{name: name, ops: ops}
}

// Name returns the sequence's identity.
func (s *Sequence) Name() string { return s.name }

// Operations returns a copy of the child list.
func (s *Sequence) Operations() []Operation {
	out := make([]Operation, len(s.ops))
	copy(out, s.ops)
	return out
}

// Execute runs each child in order, aggregating results. A child abort is
// propagated immediately and later children do not run.
func (s *Sequence) Execute(pctx *Context) Result {
	res := Result{Success: true}
	for _, op := range s.ops {
		res.absorb(safeExecute(pctx, op))
		if res.Aborted() {
			break
		}
	}
	return res
}

// Conditional runs its child only when the predicate holds. A skipped child
// yields a successful, effect-free result.
type Conditional struct {
	name      string
	predicate Predicate
	op        Operation
}

// NewConditional creates a conditional around one operation.
func NewConditional(name string, predicate Predicate, op Operation) *Conditional {
	return &Conditional{name: name, predicate: predicate, op: op}
}

// Name returns the conditional's identity.
func (c *Conditional) Name() string { return c.name }

// Operations returns the wrapped operation.
func (c *Conditional) Operations() []Operation {
	return []Operation{c.op}
}

// Execute evaluates the predicate against the current context state and
// either runs the child or succeeds without doing anything.
func (c *Conditional) Execute(pctx *Context) Result {
	if c.predicate == nil || !c.predicate(pctx) {
		return Result{Success: true}
	}
	return safeExecute(pctx, c.op)
}

// Loop runs its body at least once and repeats while the predicate holds,
// do-while style. The predicate is evaluated after each full pass over the
// body, so state written by the body is visible to the decision.
type Loop struct {
	name      string
	predicate Predicate
	body      []Operation
}

// NewLoop creates a do-while loop over the given body operations.
func NewLoop(name string, predicate Predicate, body ...Operation) *Loop {
	return &Loop{name: name, predicate: predicate, body: body}
}

// Name returns the loop's identity.
func (l *Loop) Name() string { return l.name }

// Operations returns a copy of the body list.
func (l *Loop) Operations() []Operation {
	out := make([]Operation, len(l.body))
	copy(out, l.body)
	return out
}

// Execute runs the body, then repeats while the predicate holds. An abort
// inside the body ends the loop immediately.
func (l *Loop) Execute(pctx *Context) Result {
	res := Result{Success: true}
	for {
		for _, op := range l.body {
			res.absorb(safeExecute(pctx, op))
			if res.Aborted() {
				return res
			}
		}
		if l.predicate == nil || !l.predicate(pctx) {
			return res
		}
	}
}

// ParallelGroup starts all member operations concurrently and waits for
// every one of them to finish. Members share the parent's context. An abort
// raised by one member never preempts the others; it is recorded and
// reported once all members have completed.
type ParallelGroup struct {
	name    string
	members []Operation
}

// NewParallelGroup creates a parallel group over the given members.
func NewParallelGroup(name string, members ...Operation) *ParallelGroup {
	return &ParallelGroup{name: name, members: members}
}

// Name returns the group's identity.
func (g *ParallelGroup) Name() string { return g.name }

// Operations returns a copy of the member list.
func (g *ParallelGroup) Operations() []Operation {
	out := make([]Operation, len(g.members))
	copy(out, g.members)
	return out
}

// Execute runs every member on its own worker and aggregates results in
// completion order. The worker pool is sized to the member count so all
// members start immediately.
func (g *ParallelGroup) Execute(pctx *Context) Result {
	if len(g.members) == 0 {
		return Result{Success: true}
	}

	wp := workerpool.New(len(g.members))
	results := make(chan Result, len(g.members))
	for _, op := range g.members {
		op := op
		wp.Submit(func() {
			results <- safeExecute(pctx, op)
		})
	}
	wp.StopWait()
	close(results)

	res := Result{Success: true}
	for child := range results {
		res.absorb(child)
	}
	return res
}
