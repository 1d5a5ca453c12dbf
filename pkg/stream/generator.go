package stream

import (
	"fmt"

	"github.com/prathamsinghrao/Etl-Lib/pkg/models"
	"github.com/prathamsinghrao/Etl-Lib/pkg/pipeline"
)

// InitFunc builds the generator's state before the first iteration.
type InitFunc[S any] func(pctx *pipeline.Context) (S, error)

// ContinueFunc decides whether another record should be produced. It runs
// before each iteration, the first one included, so a generator can produce
// zero records.
type ContinueFunc[S any] func(pctx *pipeline.Context, state S, iteration int) bool

// ProduceFunc fills the borrowed record for one iteration. Iterations are
// numbered from 1. The function may advance the state it was given.
type ProduceFunc[S any] func(pctx *pipeline.Context, state S, iteration int, rec *models.Record) error

// NewGenerator creates a source that produces records from evolving state:
// init runs once, then each iteration asks shouldContinue before borrowing
// a record from the pool and handing it to produce. Keeping state behind a
// pointer type lets produce advance cursors between iterations.
//
//	type scan struct{ offset int }
//
//	src := stream.NewGenerator("scan-orders",
//	    func(pctx *pipeline.Context) (*scan, error) { return &scan{}, nil },
//	    func(_ *pipeline.Context, s *scan, _ int) bool { return s.offset < total },
//	    func(_ *pipeline.Context, s *scan, _ int, rec *models.Record) error {
//	        rec.Set("offset", s.offset)
//	        s.offset++
//	        return nil
//	    })
func NewGenerator[S any](name string, init InitFunc[S], shouldContinue ContinueFunc[S], produce ProduceFunc[S]) *Source {
	return NewSource(name, func(pctx *pipeline.Context, emit EmitFunc) error {
		var state S
		if init != nil {
			s, err := init(pctx)
			if err != nil {
				return err
			}
			state = s
		}
		for iteration := 1; ; iteration++ {
			if shouldContinue != nil && !shouldContinue(pctx, state, iteration) {
				return nil
			}
			rec, err := pctx.BorrowRecord()
			if err != nil {
				return err
			}
			if err := runProduce(produce, pctx, state, iteration, rec); err != nil {
				pctx.ReturnRecord(rec)
				return err
			}
			if err := emit(rec); err != nil {
				pctx.ReturnRecord(rec)
				return err
			}
		}
	})
}

// runProduce converts a panicking producer into an error so the borrowed
// record can be returned to the pool.
func runProduce[S any](produce ProduceFunc[S], pctx *pipeline.Context, state S, iteration int, rec *models.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return produce(pctx, state, iteration, rec)
}
