package csv

import (
	"github.com/prathamsinghrao/Etl-Lib/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSource("csv", NewSource)

	_ = registry.RegisterInfo(&registry.Info{
		Name:        "csv",
		Kind:        "source",
		Description: "Reads delimited files, optionally compressed",
		Properties: map[string]string{
			"path":        "file to read (required)",
			"delimiter":   "field delimiter, default \",\"",
			"header":      "first row holds column names, default true",
			"infer_types": "parse ints, floats and booleans, default true",
			"compression": "none, gzip, snappy, lz4, zstd, s2 or deflate",
		},
	})
}
