package postgres

import (
	"github.com/prathamsinghrao/Etl-Lib/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSink("postgres", NewSink)

	_ = registry.RegisterInfo(&registry.Info{
		Name:        "postgres",
		Kind:        "sink",
		Description: "Inserts records into a PostgreSQL table in batches",
		Properties: map[string]string{
			"connection": "named connection from the pipeline configuration (required)",
			"table":      "target table (required)",
			"columns":    "explicit column list; default sorted fields of the first record",
			"batch_size": "rows per INSERT statement, default 500",
		},
	})
}
