package jsonl

import (
	"github.com/prathamsinghrao/Etl-Lib/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSink("jsonl", NewSink)

	_ = registry.RegisterInfo(&registry.Info{
		Name:        "jsonl",
		Kind:        "sink",
		Description: "Writes line-delimited JSON files, optionally compressed",
		Properties: map[string]string{
			"path":        "file to write (required)",
			"compression": "none, gzip, snappy, lz4, zstd, s2 or deflate",
			"level":       "fastest, default, better or best",
		},
	})
}
