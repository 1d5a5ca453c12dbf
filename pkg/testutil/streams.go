package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prathamsinghrao/Etl-Lib/pkg/models"
	"github.com/prathamsinghrao/Etl-Lib/pkg/pipeline"
	"github.com/prathamsinghrao/Etl-Lib/pkg/pool"
	"github.com/prathamsinghrao/Etl-Lib/pkg/stream"
)

// RecordLog captures record snapshots from a CollectSink. It is safe to read
// after the process finished.
type RecordLog struct {
	mu   sync.Mutex
	rows []map[string]interface{}
}

// Append stores one snapshot.
func (l *RecordLog) Append(row map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = append(l.rows, row)
}

// Rows returns the captured snapshots in arrival order.
func (l *RecordLog) Rows() []map[string]interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]map[string]interface{}, len(l.rows))
	copy(out, l.rows)
	return out
}

// Len returns the number of captured snapshots.
func (l *RecordLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}

// SliceSource creates a source node that emits one record per row.
func SliceSource(name string, rows []map[string]interface{}) *stream.Source {
	return stream.NewSource(name, func(pctx *pipeline.Context, emit stream.EmitFunc) error {
		for _, row := range rows {
			rec, err := pctx.BorrowRecord()
			if err != nil {
				return err
			}
			for k, v := range row {
				rec.Set(k, v)
			}
			if err := emit(rec); err != nil {
				pctx.ReturnRecord(rec)
				return err
			}
		}
		return nil
	})
}

// CollectSink creates a sink node that snapshots every record it receives.
func CollectSink(name string) (*stream.Sink, *RecordLog) {
	log := &RecordLog{}
	sink := stream.NewSink(name, func(_ *pipeline.Context, rec *models.Record) error {
		log.Append(rec.ToMap())
		return nil
	})
	return sink, log
}

// RecordsInUse returns how many records of the context's pool are currently
// borrowed. Zero after a process finished means no record leaked.
func RecordsInUse(t *testing.T, pctx *pipeline.Context) int {
	t.Helper()

	p, err := pool.Lookup[*models.Record](pctx.Pools(), pipeline.RecordPoolName)
	require.NoError(t, err)
	return p.InUse()
}
