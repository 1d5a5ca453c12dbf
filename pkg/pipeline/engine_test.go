package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prathamsinghrao/Etl-Lib/pkg/config"
	"github.com/prathamsinghrao/Etl-Lib/pkg/errors"
)

func TestBuilderValidation(t *testing.T) {
	noop := NewAction("noop", func(*Context) error { return nil })

	tests := []struct {
		name    string
		build   func() (*Pipeline, error)
		wantMsg string
	}{
		{
			"empty pipeline name",
			func() (*Pipeline, error) { return NewBuilder("").Add(noop).Build() },
			"name must not be empty",
		},
		{
			"no steps",
			func() (*Pipeline, error) { return NewBuilder("load").Build() },
			"at least one step",
		},
		{
			"nil step",
			func() (*Pipeline, error) { return NewBuilder("load").Add(nil).Build() },
			"is nil",
		},
		{
			"empty step name",
			func() (*Pipeline, error) {
				return NewBuilder("load").Add(NewAction("", nil)).Build()
			},
			"empty name",
		},
		{
			"duplicate step names",
			func() (*Pipeline, error) {
				return NewBuilder("load").Add(noop).Add(noop).Build()
			},
			"duplicate step name",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.build()
			require.Error(t, err)
			assert.Nil(t, p)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestBuildDoesNotExecute(t *testing.T) {
	ran := false
	p, err := NewBuilder("lazy").
		Add(NewAction("work", func(*Context) error { ran = true; return nil })).
		Build()
	require.NoError(t, err)
	assert.False(t, ran, "building must not run any step")

	res := p.Execute(context.Background())
	assert.True(t, res.Success)
	assert.True(t, ran)
}

func TestExecuteReportsStepsAndElapsed(t *testing.T) {
	mock := clock.NewMock()
	p, err := NewBuilder("timed").
		Add(NewAction("slow", func(*Context) error {
			mock.Add(250 * time.Millisecond)
			return nil
		})).
		Add(NewAction("fast", func(*Context) error { return nil })).
		WithClock(mock).
		Build()
	require.NoError(t, err)

	res := p.Execute(context.Background())
	require.True(t, res.Success)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "timed", res.Pipeline)
	assert.Equal(t, 250*time.Millisecond, res.Elapsed)

	require.Len(t, res.Steps, 2)
	assert.Equal(t, "slow", res.Steps[0].Name)
	assert.Equal(t, 250*time.Millisecond, res.Steps[0].Elapsed)
	assert.Equal(t, "fast", res.Steps[1].Name)
	assert.Equal(t, time.Duration(0), res.Steps[1].Elapsed)
}

func TestExecuteAbortStopsScheduling(t *testing.T) {
	ran := make(map[string]bool)
	p, err := NewBuilder("load").
		Add(NewAction("extract", func(*Context) error { ran["extract"] = true; return nil })).
		Add(NewAction("transform", func(*Context) error { return fmt.Errorf("bad batch") })).
		Add(NewAction("write", func(*Context) error { ran["write"] = true; return nil })).
		Build()
	require.NoError(t, err)

	res := p.Execute(context.Background())
	assert.False(t, res.Success)
	assert.Equal(t, "transform", res.AbortedAt)
	assert.True(t, res.Aborted())
	assert.True(t, ran["extract"])
	assert.False(t, ran["write"], "steps after the abort must not be scheduled")
	assert.Len(t, res.Steps, 2, "the report covers only executed steps")

	require.Len(t, res.Errors, 1)
	assert.Equal(t, "transform", res.Errors[0].Operation)
}

func TestExecuteContinueOnError(t *testing.T) {
	cfg := config.New("load")
	cfg.Engine.ContinueOnError = true

	ran := make(map[string]bool)
	p, err := NewBuilder("load").
		Add(NewAction("extract", func(*Context) error { return fmt.Errorf("extract failed") })).
		Add(NewAction("write", func(*Context) error { ran["write"] = true; return nil })).
		WithConfig(cfg).
		Build()
	require.NoError(t, err)

	res := p.Execute(context.Background())
	assert.False(t, res.Success)
	assert.False(t, res.Aborted())
	assert.True(t, ran["write"])
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "extract", res.Errors[0].Operation)
	assert.Len(t, res.Steps, 2)
}

type releasingOp struct {
	name     string
	fail     bool
	released *bool
}

func (o *releasingOp) Name() string { return o.name }

func (o *releasingOp) Execute(pctx *Context) Result {
	if o.fail {
		return capture(pctx, o.name, fmt.Errorf("step failed"))
	}
	return Result{Success: true}
}

func (o *releasingOp) Release(*Context) error {
	*o.released = true
	return nil
}

func TestReleasableRunsAfterEachStep(t *testing.T) {
	t.Run("after success", func(t *testing.T) {
		released := false
		p, err := NewBuilder("load").
			Add(&releasingOp{name: "step", released: &released}).
			Build()
		require.NoError(t, err)

		require.True(t, p.Execute(context.Background()).Success)
		assert.True(t, released)
	})

	t.Run("after failure", func(t *testing.T) {
		released := false
		p, err := NewBuilder("load").
			Add(&releasingOp{name: "step", fail: true, released: &released}).
			Build()
		require.NoError(t, err)

		res := p.Execute(context.Background())
		assert.False(t, res.Success)
		assert.True(t, released, "resources release even when the step fails")
	})
}

func TestPipelineIsReusable(t *testing.T) {
	p, err := NewBuilder("load").
		Add(NewAction("check-fresh", func(c *Context) error {
			if _, ok := c.State("marker"); ok {
				return fmt.Errorf("state leaked from a previous run")
			}
			c.SetState("marker", true)
			return nil
		})).
		Build()
	require.NoError(t, err)

	first := p.Execute(context.Background())
	second := p.Execute(context.Background())

	assert.True(t, first.Success)
	assert.True(t, second.Success, "each run gets a fresh context")
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestExecuteCollectsErrorsInOrder(t *testing.T) {
	p, err := NewBuilder("load").
		Add(NewAction("first", func(*Context) error { return fmt.Errorf("one") })).
		Add(NewAction("second", func(*Context) error { return fmt.Errorf("two") })).
		OnError(ContinueOnError()).
		Build()
	require.NoError(t, err)

	res := p.Execute(context.Background())
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "first", res.Errors[0].Operation)
	assert.Equal(t, "second", res.Errors[1].Operation)
}

func TestExecuteRecoversStepPanic(t *testing.T) {
	p, err := NewBuilder("load").
		Add(&panickyOp{}).
		Build()
	require.NoError(t, err)

	res := p.Execute(context.Background())
	assert.False(t, res.Success)
	assert.Equal(t, "haywire", res.AbortedAt)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Error(), "panic")
}

type panickyOp struct{}

func (*panickyOp) Name() string            { return "haywire" }
func (*panickyOp) Execute(*Context) Result { panic("unexpected state") }
