package csv

import (
	"github.com/prathamsinghrao/Etl-Lib/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSink("csv", NewSink)

	_ = registry.RegisterInfo(&registry.Info{
		Name:        "csv",
		Kind:        "sink",
		Description: "Writes delimited files, optionally compressed",
		Properties: map[string]string{
			"path":        "file to write (required)",
			"delimiter":   "field delimiter, default \",\"",
			"header":      "write a column name row, default true",
			"columns":     "explicit column order; default sorted fields of the first record",
			"compression": "none, gzip, snappy, lz4, zstd, s2 or deflate",
			"level":       "fastest, default, better or best",
		},
	})
}
