package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/prathamsinghrao/Etl-Lib/pkg/clients"
	"github.com/prathamsinghrao/Etl-Lib/pkg/config"
	"github.com/prathamsinghrao/Etl-Lib/pkg/pipeline"
	"github.com/prathamsinghrao/Etl-Lib/pkg/stream"
	"github.com/prathamsinghrao/Etl-Lib/pkg/testutil"
)

// execDriver is a database/sql driver that records every statement it is
// asked to execute, so the sink can run without a database.
type execDriver struct {
	mu      sync.Mutex
	queries []string
	args    [][]driver.Value
	failure error
}

func (d *execDriver) Open(string) (driver.Conn, error) {
	return &execConn{d: d}, nil
}

func (d *execDriver) reset(failure error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queries = nil
	d.args = nil
	d.failure = failure
}

func (d *execDriver) recorded() ([]string, [][]driver.Value) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.queries...), append([][]driver.Value(nil), d.args...)
}

type execConn struct {
	d *execDriver
}

func (c *execConn) Prepare(string) (driver.Stmt, error) {
	return nil, fmt.Errorf("prepare not supported")
}

func (c *execConn) Close() error { return nil }

func (c *execConn) Begin() (driver.Tx, error) {
	return nil, fmt.Errorf("transactions not supported")
}

func (c *execConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	if c.d.failure != nil {
		return nil, c.d.failure
	}
	values := make([]driver.Value, len(args))
	for i, a := range args {
		values[i] = a.Value
	}
	c.d.queries = append(c.d.queries, query)
	c.d.args = append(c.d.args, values)
	return driver.RowsAffected(int64(len(args))), nil
}

var sinkDriver = &execDriver{}

func init() {
	sql.Register("pgsink-stub", sinkDriver)
}

func newSQLContext(t *testing.T) *pipeline.Context {
	t.Helper()

	factory := clients.NewSQLFactory(map[string]config.ConnectionConfig{
		"warehouse": {Driver: "pgsink-stub", DSN: "stub://warehouse"},
	}, zaptest.NewLogger(t))
	t.Cleanup(func() { require.NoError(t, factory.Close()) })
	return testutil.NewContext(t, pipeline.WithConnectionFactory(factory))
}

func runSink(t *testing.T, pctx *pipeline.Context, sink *stream.Sink, rows []map[string]interface{}) pipeline.Result {
	t.Helper()

	proc, err := stream.NewProcessBuilder("load").
		AddSource(testutil.SliceSource("feed", rows), "rows").
		AddSink(sink, "rows").
		Build()
	require.NoError(t, err)
	return proc.Execute(pctx)
}

func TestBatchedInserts(t *testing.T) {
	sinkDriver.reset(nil)

	sink, err := NewSink("insert", map[string]interface{}{
		"connection": "warehouse",
		"table":      "public.events",
		"columns":    []string{"id", "name"},
		"batch_size": 2,
	})
	require.NoError(t, err)

	pctx := newSQLContext(t)
	res := runSink(t, pctx, sink, []map[string]interface{}{
		{"id": int64(1), "name": "alpha"},
		{"id": int64(2), "name": "beta"},
		{"id": int64(3), "name": "gamma"},
	})
	require.True(t, res.Success, "errors: %v", res.Errors)

	queries, args := sinkDriver.recorded()
	require.Len(t, queries, 2)
	assert.Equal(t, `INSERT INTO "public"."events" ("id","name") VALUES ($1,$2),($3,$4)`, queries[0])
	assert.Equal(t, `INSERT INTO "public"."events" ("id","name") VALUES ($1,$2)`, queries[1])
	assert.Equal(t, []driver.Value{int64(1), "alpha", int64(2), "beta"}, args[0])
	assert.Equal(t, []driver.Value{int64(3), "gamma"}, args[1])

	assert.Zero(t, testutil.RecordsInUse(t, pctx))
}

func TestDerivesColumnsFromFirstRecord(t *testing.T) {
	sinkDriver.reset(nil)

	sink, err := NewSink("insert", map[string]interface{}{
		"connection": "warehouse",
		"table":      "events",
	})
	require.NoError(t, err)

	pctx := newSQLContext(t)
	res := runSink(t, pctx, sink, []map[string]interface{}{
		{"zeta": int64(2), "alpha": int64(1)},
	})
	require.True(t, res.Success, "errors: %v", res.Errors)

	queries, _ := sinkDriver.recorded()
	require.Len(t, queries, 1)
	assert.Equal(t, `INSERT INTO "events" ("alpha","zeta") VALUES ($1,$2)`, queries[0])
}

func TestMissingFieldInsertsNull(t *testing.T) {
	sinkDriver.reset(nil)

	sink, err := NewSink("insert", map[string]interface{}{
		"connection": "warehouse",
		"table":      "events",
		"columns":    []string{"id", "name"},
	})
	require.NoError(t, err)

	pctx := newSQLContext(t)
	res := runSink(t, pctx, sink, []map[string]interface{}{
		{"id": int64(7)},
	})
	require.True(t, res.Success, "errors: %v", res.Errors)

	_, args := sinkDriver.recorded()
	require.Len(t, args, 1)
	assert.Equal(t, []driver.Value{int64(7), nil}, args[0])
}

func TestInsertFailureFailsNode(t *testing.T) {
	sinkDriver.reset(fmt.Errorf("deadlock detected"))

	sink, err := NewSink("insert", map[string]interface{}{
		"connection": "warehouse",
		"table":      "events",
	})
	require.NoError(t, err)

	pctx := newSQLContext(t)
	res := runSink(t, pctx, sink, []map[string]interface{}{
		{"id": int64(1)},
	})
	require.False(t, res.Success)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, "insert", res.Errors[0].Operation)
	assert.Contains(t, res.Errors[0].Error(), "batch insert into events failed")
}

func TestEmptyInputNeverConnects(t *testing.T) {
	sinkDriver.reset(nil)

	sink, err := NewSink("insert", map[string]interface{}{
		"connection": "warehouse",
		"table":      "events",
	})
	require.NoError(t, err)

	pctx := newSQLContext(t)
	res := runSink(t, pctx, sink, nil)
	require.True(t, res.Success, "errors: %v", res.Errors)

	queries, _ := sinkDriver.recorded()
	assert.Empty(t, queries)
}

func TestPropertyValidation(t *testing.T) {
	cases := []struct {
		name  string
		props map[string]interface{}
	}{
		{"missing connection", map[string]interface{}{"table": "t"}},
		{"missing table", map[string]interface{}{"connection": "c"}},
		{"empty columns", map[string]interface{}{"connection": "c", "table": "t", "columns": []string{}}},
		{"zero batch size", map[string]interface{}{"connection": "c", "table": "t", "batch_size": 0}},
		{"negative batch size", map[string]interface{}{"connection": "c", "table": "t", "batch_size": -5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSink("insert", tc.props)
			require.Error(t, err)
		})
	}
}

func TestBuildInsert(t *testing.T) {
	assert.Equal(t,
		`INSERT INTO "events" ("a") VALUES ($1)`,
		buildInsert("events", []string{"a"}, 1))
	assert.Equal(t,
		`INSERT INTO "public"."events" ("a","b") VALUES ($1,$2),($3,$4),($5,$6)`,
		buildInsert("public.events", []string{"a", "b"}, 3))
}
