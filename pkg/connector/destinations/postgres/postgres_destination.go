// Package postgres writes pipeline records to a PostgreSQL table with
// batched multi-row inserts.
package postgres

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/prathamsinghrao/Etl-Lib/pkg/clients"
	"github.com/prathamsinghrao/Etl-Lib/pkg/errors"
	"github.com/prathamsinghrao/Etl-Lib/pkg/models"
	"github.com/prathamsinghrao/Etl-Lib/pkg/pipeline"
	"github.com/prathamsinghrao/Etl-Lib/pkg/stream"
)

// DefaultBatchSize is the number of rows buffered before one INSERT.
const DefaultBatchSize = 500

type sinkConfig struct {
	connection string
	table      string
	columns    []string
	batchSize  int
}

// writer buffers rows and flushes them as multi-row INSERT statements. Each
// statement is its own implicit transaction; there is no cross-batch
// transaction.
type writer struct {
	cfg     *sinkConfig
	conn    pipeline.Connection
	session *clients.Conn
	columns []string
	batch   []interface{}
	rows    int
	wrote   int
}

// NewSink builds a sink node that inserts records into one table. The
// connection is resolved by name through the execution context on the first
// record.
//
// Properties: connection (required), table (required), columns (explicit
// column list; default is the sorted field names of the first record),
// batch_size (default 500).
func NewSink(name string, props map[string]interface{}) (*stream.Sink, error) {
	cfg, err := parseSinkProps(props)
	if err != nil {
		return nil, err
	}
	w := &writer{cfg: cfg}
	return stream.NewSinkWithFlush(name, w.write, w.flush), nil
}

func parseSinkProps(props map[string]interface{}) (*sinkConfig, error) {
	cfg := &sinkConfig{batchSize: DefaultBatchSize}

	connection, err := cast.ToStringE(props["connection"])
	if err != nil || connection == "" {
		return nil, errors.NewValidation("postgres sink requires a connection property")
	}
	cfg.connection = connection

	table, err := cast.ToStringE(props["table"])
	if err != nil || table == "" {
		return nil, errors.NewValidation("postgres sink requires a table property")
	}
	cfg.table = table

	if v, ok := props["columns"]; ok {
		cols, err := cast.ToStringSliceE(v)
		if err != nil || len(cols) == 0 {
			return nil, errors.NewValidation("postgres columns must be a non-empty string list")
		}
		cfg.columns = cols
	}
	if v, ok := props["batch_size"]; ok {
		n, err := cast.ToIntE(v)
		if err != nil || n < 1 {
			return nil, errors.NewValidation("postgres batch_size must be a positive integer")
		}
		cfg.batchSize = n
	}

	return cfg, nil
}

func (w *writer) write(pctx *pipeline.Context, rec *models.Record) error {
	if w.session == nil {
		if err := w.connect(pctx); err != nil {
			return err
		}
	}
	if w.columns == nil {
		if len(w.cfg.columns) > 0 {
			w.columns = w.cfg.columns
		} else {
			w.columns = rec.Fields()
		}
	}

	for _, col := range w.columns {
		v, _ := rec.Get(col)
		w.batch = append(w.batch, v)
	}
	w.rows++

	if w.rows >= w.cfg.batchSize {
		return w.flushBatch(pctx)
	}
	return nil
}

func (w *writer) flush(pctx *pipeline.Context) error {
	if w.session == nil {
		return nil
	}

	err := w.flushBatch(pctx)
	if cerr := w.conn.Close(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, errors.ErrorTypeConnection,
			fmt.Sprintf("failed to close connection %q", w.cfg.connection))
	}

	pctx.Logger("postgres.sink").Debug("table written",
		zap.String("table", w.cfg.table),
		zap.Int("records", w.wrote))

	w.conn, w.session = nil, nil
	w.columns, w.batch = nil, nil
	w.rows, w.wrote = 0, 0
	return err
}

func (w *writer) connect(pctx *pipeline.Context) error {
	conn, err := pctx.Connection(w.cfg.connection)
	if err != nil {
		return err
	}
	session, ok := conn.(*clients.Conn)
	if !ok {
		_ = conn.Close()
		return errors.Newf(errors.ErrorTypeConnection,
			"connection %q is not a SQL connection", w.cfg.connection)
	}
	w.conn = conn
	w.session = session
	return nil
}

func (w *writer) flushBatch(pctx *pipeline.Context) error {
	if w.rows == 0 {
		return nil
	}

	query := buildInsert(w.cfg.table, w.columns, w.rows)
	if _, err := w.session.ExecContext(pctx.Context(), query, w.batch...); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection,
			fmt.Sprintf("batch insert into %s failed", w.cfg.table)).
			WithDetail("rows", w.rows)
	}

	w.wrote += w.rows
	w.batch = w.batch[:0]
	w.rows = 0
	return nil
}

// buildInsert renders a multi-row INSERT with positional placeholders:
//
//	INSERT INTO "t" ("a","b") VALUES ($1,$2),($3,$4)
func buildInsert(table string, columns []string, rows int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgx.Identifier(strings.Split(table, ".")).Sanitize())
	b.WriteString(" (")
	for i, col := range columns {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(pgx.Identifier{col}.Sanitize())
	}
	b.WriteString(") VALUES ")

	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('(')
		for c := range columns {
			if c > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "$%d", n)
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}
