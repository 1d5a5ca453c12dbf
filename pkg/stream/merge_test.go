package stream

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prathamsinghrao/Etl-Lib/pkg/models"
	"github.com/prathamsinghrao/Etl-Lib/pkg/pipeline"
)

func taggedSource(name, tag string, total int) *Source {
	return NewSource(name, func(pctx *pipeline.Context, emit EmitFunc) error {
		for i := 0; i < total; i++ {
			rec, err := pctx.BorrowRecord()
			if err != nil {
				return err
			}
			rec.Set("tag", tag).Set("seq", i)
			if err := emit(rec); err != nil {
				pctx.ReturnRecord(rec)
				return err
			}
		}
		return nil
	})
}

type tagCollector struct {
	mu   sync.Mutex
	tags []string
}

func (c *tagCollector) node(name string) *Sink {
	return NewSink(name, func(_ *pipeline.Context, rec *models.Record) error {
		tag, _ := rec.GetString("tag")
		c.mu.Lock()
		c.tags = append(c.tags, tag)
		c.mu.Unlock()
		return nil
	})
}

func TestMergeRoundRobin(t *testing.T) {
	sink := &tagCollector{}
	proc, err := NewProcessBuilder("funnel-flow").
		WithQueueCapacity(8).
		AddSource(taggedSource("read-a", "a", 3), "in-a").
		AddSource(taggedSource("read-b", "b", 5), "in-b").
		AddMerge(NewMerge("funnel"), "merged", "in-a", "in-b").
		AddSink(sink.node("write"), "merged").
		Build()
	require.NoError(t, err)

	pctx := newTestContext(t)
	res := proc.Execute(pctx)
	require.True(t, res.Success)

	// One record per active input in turn; once a ends, only b remains.
	want := []string{"a", "b", "a", "b", "a", "b", "b", "b"}
	assert.Equal(t, want, sink.tags)
	assert.Equal(t, 0, recordsInUse(t, pctx))
}

func TestMergeWithEmptyInput(t *testing.T) {
	sink := &tagCollector{}
	proc, err := NewProcessBuilder("funnel-flow").
		AddSource(taggedSource("read-a", "a", 0), "in-a").
		AddSource(taggedSource("read-b", "b", 2), "in-b").
		AddMerge(NewMerge("funnel"), "merged", "in-a", "in-b").
		AddSink(sink.node("write"), "merged").
		Build()
	require.NoError(t, err)

	pctx := newTestContext(t)
	res := proc.Execute(pctx)
	require.True(t, res.Success)
	assert.Equal(t, []string{"b", "b"}, sink.tags, "an input that ends immediately leaves the rotation")
}

func TestMergePreservesPerInputOrder(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = map[string][]int{}
	)
	sink := NewSink("write", func(_ *pipeline.Context, rec *models.Record) error {
		tag, _ := rec.GetString("tag")
		v, _ := rec.Get("seq")
		mu.Lock()
		seen[tag] = append(seen[tag], v.(int))
		mu.Unlock()
		return nil
	})

	proc, err := NewProcessBuilder("funnel-flow").
		WithQueueCapacity(2).
		AddSource(taggedSource("read-a", "a", 20), "in-a").
		AddSource(taggedSource("read-b", "b", 20), "in-b").
		AddMerge(NewMerge("funnel"), "merged", "in-a", "in-b").
		AddSink(sink, "merged").
		Build()
	require.NoError(t, err)

	pctx := newTestContext(t)
	require.True(t, proc.Execute(pctx).Success)

	for tag, seqs := range seen {
		require.Len(t, seqs, 20, "input %s lost records", tag)
		for i, seq := range seqs {
			assert.Equal(t, i, seq, "input %s reordered", tag)
		}
	}
}
