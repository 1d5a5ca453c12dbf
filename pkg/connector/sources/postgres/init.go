package postgres

import (
	"github.com/prathamsinghrao/Etl-Lib/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSource("postgres", NewSource)

	_ = registry.RegisterInfo(&registry.Info{
		Name:        "postgres",
		Kind:        "source",
		Description: "Streams PostgreSQL query results",
		Properties: map[string]string{
			"connection": "named connection from the pipeline configuration (required)",
			"table":      "table to read with SELECT *",
			"query":      "explicit query, overrides table",
			"args":       "positional query parameters",
		},
	})
}
