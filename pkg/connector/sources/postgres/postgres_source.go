// Package postgres streams query results from PostgreSQL into pipeline
// records.
package postgres

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/prathamsinghrao/Etl-Lib/pkg/clients"
	"github.com/prathamsinghrao/Etl-Lib/pkg/errors"
	"github.com/prathamsinghrao/Etl-Lib/pkg/pipeline"
	"github.com/prathamsinghrao/Etl-Lib/pkg/stream"
)

type sourceConfig struct {
	connection string
	table      string
	query      string
	args       []interface{}
}

// NewSource builds a source node that runs one query and emits a record per
// row. The connection is resolved by name through the execution context when
// the node runs, so the same configuration works against any environment.
//
// Properties: connection (required), table or query (one required), args
// (positional query parameters).
func NewSource(name string, props map[string]interface{}) (*stream.Source, error) {
	cfg, err := parseSourceProps(props)
	if err != nil {
		return nil, err
	}
	return stream.NewSource(name, cfg.run), nil
}

func parseSourceProps(props map[string]interface{}) (*sourceConfig, error) {
	cfg := &sourceConfig{}

	connection, err := cast.ToStringE(props["connection"])
	if err != nil || connection == "" {
		return nil, errors.NewValidation("postgres source requires a connection property")
	}
	cfg.connection = connection

	if v, ok := props["table"]; ok {
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, errors.NewValidation("postgres table must be a string")
		}
		cfg.table = s
	}
	if v, ok := props["query"]; ok {
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, errors.NewValidation("postgres query must be a string")
		}
		cfg.query = s
	}
	if cfg.table == "" && cfg.query == "" {
		return nil, errors.NewValidation("postgres source requires a table or a query property")
	}
	if v, ok := props["args"]; ok {
		args, err := cast.ToSliceE(v)
		if err != nil {
			return nil, errors.NewValidation("postgres args must be a list")
		}
		cfg.args = args
	}

	return cfg, nil
}

func (c *sourceConfig) run(pctx *pipeline.Context, emit stream.EmitFunc) error {
	log := pctx.Logger("postgres.source")

	conn, err := pctx.Connection(c.connection)
	if err != nil {
		return err
	}
	defer conn.Close()

	session, ok := conn.(*clients.Conn)
	if !ok {
		return errors.Newf(errors.ErrorTypeConnection,
			"connection %q is not a SQL connection", c.connection)
	}

	query := c.query
	if query == "" {
		query = "SELECT * FROM " + sanitizeIdentifier(c.table)
	}

	rows, err := session.QueryContext(pctx.Context(), query, c.args...)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection,
			fmt.Sprintf("query failed on connection %q", c.connection))
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to read result columns")
	}

	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	emitted := 0
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return errors.Wrap(err, errors.ErrorTypeData,
				fmt.Sprintf("failed to scan row %d", emitted+1))
		}

		rec, err := pctx.BorrowRecord()
		if err != nil {
			return err
		}
		for i, col := range cols {
			rec.Set(col, normalizeSQL(values[i]))
		}
		if err := emit(rec); err != nil {
			pctx.ReturnRecord(rec)
			return err
		}
		emitted++
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "row iteration failed")
	}

	log.Debug("query read",
		zap.String("connection", c.connection),
		zap.Int("records", emitted))
	return nil
}

// sanitizeIdentifier quotes a possibly schema-qualified table name.
func sanitizeIdentifier(table string) string {
	return pgx.Identifier(strings.Split(table, ".")).Sanitize()
}

// normalizeSQL copies driver-owned byte slices; other values pass through.
func normalizeSQL(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
