package pipeline

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequence(t *testing.T) {
	t.Run("children run in order and share state", func(t *testing.T) {
		pctx := newTestContext(t)
		var order []string
		step := func(name string) Operation {
			return NewAction(name, func(c *Context) error {
				order = append(order, name)
				c.SetState("last", name)
				return nil
			})
		}

		seq := NewSequence("load", step("extract"), step("transform"), step("write"))
		res := seq.Execute(pctx)

		require.True(t, res.Success)
		assert.Equal(t, []string{"extract", "transform", "write"}, order)

		last, err := pctx.StateString("last")
		require.NoError(t, err)
		assert.Equal(t, "write", last)
	})

	t.Run("abort stops remaining children", func(t *testing.T) {
		pctx := newTestContext(t)
		ran := make(map[string]bool)
		seq := NewSequence("load",
			NewAction("extract", func(*Context) error { ran["extract"] = true; return nil }),
			NewAction("transform", func(*Context) error { return fmt.Errorf("bad row") }),
			NewAction("write", func(*Context) error { ran["write"] = true; return nil }),
		)

		res := seq.Execute(pctx)
		assert.False(t, res.Success)
		assert.Equal(t, "transform", res.AbortedAt)
		assert.True(t, ran["extract"])
		assert.False(t, ran["write"], "children after the abort must not run")
	})

	t.Run("continue policy keeps going", func(t *testing.T) {
		pctx := newTestContext(t, WithErrorPolicy(ContinueOnError()))
		ran := make(map[string]bool)
		seq := NewSequence("load",
			NewAction("extract", func(*Context) error { return fmt.Errorf("extract failed") }),
			NewAction("transform", func(*Context) error { return fmt.Errorf("transform failed") }),
			NewAction("write", func(*Context) error { ran["write"] = true; return nil }),
		)

		res := seq.Execute(pctx)
		assert.False(t, res.Success)
		assert.False(t, res.Aborted())
		assert.Len(t, res.Errors, 2)
		assert.True(t, ran["write"])
	})
}

func TestConditional(t *testing.T) {
	tests := []struct {
		name      string
		predicate Predicate
		wantRun   bool
	}{
		{"true predicate runs child", func(*Context) bool { return true }, true},
		{"false predicate skips child", func(*Context) bool { return false }, false},
		{"nil predicate skips child", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pctx := newTestContext(t)
			ran := false
			cond := NewConditional("maybe", tt.predicate,
				NewAction("child", func(*Context) error { ran = true; return nil }))

			res := cond.Execute(pctx)
			assert.True(t, res.Success)
			assert.Equal(t, tt.wantRun, ran)
		})
	}

	t.Run("predicate reads state written by earlier steps", func(t *testing.T) {
		pctx := newTestContext(t)
		ran := false
		seq := NewSequence("guarded",
			NewScalar("row-count", func(*Context) (interface{}, error) { return int64(0), nil }),
			NewConditional("notify-if-empty",
				func(c *Context) bool {
					n, err := c.StateInt("row-count")
					return err == nil && n == 0
				},
				NewAction("notify", func(*Context) error { ran = true; return nil })),
		)

		require.True(t, seq.Execute(pctx).Success)
		assert.True(t, ran)
	})
}

func TestLoop(t *testing.T) {
	t.Run("body runs at least once", func(t *testing.T) {
		pctx := newTestContext(t)
		runs := 0
		loop := NewLoop("retry", func(*Context) bool { return false },
			NewAction("attempt", func(*Context) error { runs++; return nil }))

		require.True(t, loop.Execute(pctx).Success)
		assert.Equal(t, 1, runs)
	})

	t.Run("repeats while predicate holds", func(t *testing.T) {
		pctx := newTestContext(t)
		loop := NewLoop("drain",
			func(c *Context) bool {
				n, err := c.StateInt("count")
				return err == nil && n < 5
			},
			NewAction("tick", func(c *Context) error {
				c.UpdateState("count", func(cur interface{}) interface{} {
					if cur == nil {
						return int64(1)
					}
					return cur.(int64) + 1
				})
				return nil
			}))

		require.True(t, loop.Execute(pctx).Success)
		n, err := pctx.StateInt("count")
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)
	})

	t.Run("abort inside the body ends the loop", func(t *testing.T) {
		pctx := newTestContext(t)
		runs := 0
		loop := NewLoop("retry", func(*Context) bool { return true },
			NewAction("attempt", func(*Context) error {
				runs++
				if runs == 3 {
					return fmt.Errorf("gave up")
				}
				return nil
			}))

		res := loop.Execute(pctx)
		assert.False(t, res.Success)
		assert.Equal(t, "attempt", res.AbortedAt)
		assert.Equal(t, 3, runs)
	})
}

func TestParallelGroup(t *testing.T) {
	t.Run("all members run concurrently", func(t *testing.T) {
		pctx := newTestContext(t)
		var mu sync.Mutex
		seen := make(map[string]bool)
		var members []Operation
		for i := 0; i < 4; i++ {
			name := fmt.Sprintf("worker-%d", i)
			members = append(members, NewAction(name, func(*Context) error {
				mu.Lock()
				seen[name] = true
				mu.Unlock()
				return nil
			}))
		}

		res := NewParallelGroup("fan-out", members...).Execute(pctx)
		require.True(t, res.Success)
		assert.Len(t, seen, 4)
	})

	t.Run("a failing member never preempts its siblings", func(t *testing.T) {
		pctx := newTestContext(t)
		var slowDone atomic.Bool
		group := NewParallelGroup("fan-out",
			NewAction("fails-fast", func(*Context) error { return fmt.Errorf("immediate failure") }),
			NewAction("slow", func(*Context) error {
				time.Sleep(30 * time.Millisecond)
				slowDone.Store(true)
				return nil
			}),
		)

		res := group.Execute(pctx)
		assert.False(t, res.Success)
		assert.Equal(t, "fails-fast", res.AbortedAt)
		assert.True(t, slowDone.Load(), "slow sibling must run to completion")
	})

	t.Run("errors aggregate across members", func(t *testing.T) {
		pctx := newTestContext(t, WithErrorPolicy(ContinueOnError()))
		group := NewParallelGroup("fan-out",
			NewAction("a", func(*Context) error { return fmt.Errorf("a failed") }),
			NewAction("b", func(*Context) error { return fmt.Errorf("b failed") }),
			NewAction("c", func(*Context) error { return nil }),
		)

		res := group.Execute(pctx)
		assert.False(t, res.Success)
		assert.False(t, res.Aborted())
		assert.Len(t, res.Errors, 2)
	})

	t.Run("empty group succeeds", func(t *testing.T) {
		pctx := newTestContext(t)
		res := NewParallelGroup("noop").Execute(pctx)
		assert.True(t, res.Success)
	})
}

func TestCompositesNest(t *testing.T) {
	pctx := newTestContext(t)
	var mu sync.Mutex
	var events []string
	record := func(name string) Operation {
		return NewAction(name, func(*Context) error {
			mu.Lock()
			events = append(events, name)
			mu.Unlock()
			return nil
		})
	}

	root := NewSequence("root",
		NewScalar("partitions", func(*Context) (interface{}, error) { return 2, nil }),
		NewParallelGroup("per-partition",
			NewSequence("p0", record("p0-read"), record("p0-write")),
			NewSequence("p1", record("p1-read"), record("p1-write")),
		),
		NewConditional("cleanup",
			func(c *Context) bool { _, ok := c.State("partitions"); return ok },
			record("sweep")),
	)

	res := root.Execute(pctx)
	require.True(t, res.Success)
	assert.Len(t, events, 5)
	assert.Equal(t, "sweep", events[4], "cleanup runs after the group drains")
}

func TestCompositesExposeChildren(t *testing.T) {
	a := NewAction("a", func(*Context) error { return nil })
	b := NewAction("b", func(*Context) error { return nil })

	assert.Equal(t, []Operation{a, b}, NewSequence("seq", a, b).Operations())
	assert.Equal(t, []Operation{a}, NewConditional("iff", nil, a).Operations())
	assert.Equal(t, []Operation{a, b}, NewLoop("loop", nil, a, b).Operations())
	assert.Equal(t, []Operation{a, b}, NewParallelGroup("group", a, b).Operations())
}
