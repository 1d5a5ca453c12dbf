package stream

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prathamsinghrao/Etl-Lib/pkg/models"
	"github.com/prathamsinghrao/Etl-Lib/pkg/pipeline"
)

type pageCursor struct {
	page int
}

func TestGeneratorPaginates(t *testing.T) {
	sink := &collectingSink{}
	var iterations []int

	src := NewGenerator("scan-pages",
		func(*pipeline.Context) (*pageCursor, error) { return &pageCursor{}, nil },
		func(_ *pipeline.Context, c *pageCursor, _ int) bool { return c.page < 3 },
		func(_ *pipeline.Context, c *pageCursor, iteration int, rec *models.Record) error {
			iterations = append(iterations, iteration)
			rec.Set("seq", c.page)
			c.page++
			return nil
		})

	proc, err := NewProcessBuilder("paginate").
		AddSource(src, "pages").
		AddSink(sink.node("write"), "pages").
		Build()
	require.NoError(t, err)

	pctx := newTestContext(t)
	require.True(t, proc.Execute(pctx).Success)

	assert.Equal(t, []int{0, 1, 2}, sink.seqs)
	assert.Equal(t, []int{1, 2, 3}, iterations, "iterations are numbered from 1")
	assert.Equal(t, 0, recordsInUse(t, pctx))
}

func TestGeneratorCanProduceZeroRecords(t *testing.T) {
	sink := &collectingSink{}
	produced := false

	src := NewGenerator("scan-pages",
		func(*pipeline.Context) (struct{}, error) { return struct{}{}, nil },
		func(*pipeline.Context, struct{}, int) bool { return false },
		func(_ *pipeline.Context, _ struct{}, _ int, _ *models.Record) error {
			produced = true
			return nil
		})

	proc, err := NewProcessBuilder("paginate").
		AddSource(src, "pages").
		AddSink(sink.node("write"), "pages").
		Build()
	require.NoError(t, err)

	pctx := newTestContext(t)
	require.True(t, proc.Execute(pctx).Success)

	assert.False(t, produced, "the predicate runs before the first production")
	assert.Empty(t, sink.seqs)
}

func TestGeneratorInitFailure(t *testing.T) {
	src := NewGenerator("scan-pages",
		func(*pipeline.Context) (*pageCursor, error) {
			return nil, fmt.Errorf("cursor table missing")
		},
		nil, nil)

	proc, err := NewProcessBuilder("paginate").
		AddSource(src, "pages").
		AddSink((&collectingSink{}).node("write"), "pages").
		Build()
	require.NoError(t, err)

	pctx := newTestContext(t)
	res := proc.Execute(pctx)

	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "scan-pages", res.Errors[0].Operation)
	assert.Equal(t, 0, recordsInUse(t, pctx))
}

func TestGeneratorProduceFailureReturnsRecord(t *testing.T) {
	src := NewGenerator("scan-pages",
		func(*pipeline.Context) (*pageCursor, error) { return &pageCursor{}, nil },
		func(_ *pipeline.Context, c *pageCursor, _ int) bool { return c.page < 10 },
		func(_ *pipeline.Context, c *pageCursor, _ int, _ *models.Record) error {
			if c.page == 2 {
				return fmt.Errorf("page fetch failed")
			}
			c.page++
			return nil
		})

	proc, err := NewProcessBuilder("paginate").
		AddSource(src, "pages").
		AddSink((&collectingSink{}).node("write"), "pages").
		Build()
	require.NoError(t, err)

	pctx := newTestContext(t)
	res := proc.Execute(pctx)

	assert.False(t, res.Success)
	assert.Equal(t, 0, recordsInUse(t, pctx), "the record borrowed for the failed iteration goes back")
}
