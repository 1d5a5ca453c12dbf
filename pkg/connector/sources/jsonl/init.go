package jsonl

import (
	"github.com/prathamsinghrao/Etl-Lib/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSource("jsonl", NewSource)

	_ = registry.RegisterInfo(&registry.Info{
		Name:        "jsonl",
		Kind:        "source",
		Description: "Reads line-delimited JSON files, optionally compressed",
		Properties: map[string]string{
			"path":        "file to read (required)",
			"compression": "none, gzip, snappy, lz4, zstd, s2 or deflate",
		},
	})
}
