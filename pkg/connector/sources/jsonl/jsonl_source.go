// Package jsonl reads line-delimited JSON files into pipeline records.
package jsonl

import (
	"bufio"
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/prathamsinghrao/Etl-Lib/pkg/compression"
	"github.com/prathamsinghrao/Etl-Lib/pkg/errors"
	"github.com/prathamsinghrao/Etl-Lib/pkg/pipeline"
	"github.com/prathamsinghrao/Etl-Lib/pkg/stream"
)

const readBufferSize = 64 * 1024

type sourceConfig struct {
	path      string
	algorithm compression.Algorithm
}

// NewSource builds a source node that reads one line-delimited JSON file.
// Every line must be a JSON object; its members become record fields.
//
// Properties: path (required), compression.
func NewSource(name string, props map[string]interface{}) (*stream.Source, error) {
	cfg, err := parseSourceProps(props)
	if err != nil {
		return nil, err
	}
	return stream.NewSource(name, cfg.run), nil
}

func parseSourceProps(props map[string]interface{}) (*sourceConfig, error) {
	cfg := &sourceConfig{}

	path, err := cast.ToStringE(props["path"])
	if err != nil || path == "" {
		return nil, errors.NewValidation("jsonl source requires a path property")
	}
	cfg.path = path

	if v, ok := props["compression"]; ok {
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, errors.NewValidation("jsonl compression must be a string")
		}
		alg, err := compression.ParseAlgorithm(s)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "jsonl source")
		}
		cfg.algorithm = alg
	}

	return cfg, nil
}

func (c *sourceConfig) run(pctx *pipeline.Context, emit stream.EmitFunc) error {
	log := pctx.Logger("jsonl.source")

	file, err := os.Open(c.path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection,
			fmt.Sprintf("failed to open %s", c.path))
	}
	defer file.Close()

	var in io.Reader = file
	if c.algorithm != compression.None {
		dec, err := compression.NewReader(c.algorithm, file)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData,
				fmt.Sprintf("failed to open %s decompressor", c.algorithm))
		}
		defer dec.Close()
		in = dec
	}

	dec := json.NewDecoder(bufio.NewReaderSize(in, readBufferSize))
	dec.UseNumber()

	emitted := 0
	for {
		var fields map[string]interface{}
		if err := dec.Decode(&fields); err != nil {
			if err == io.EOF {
				break
			}
			return errors.Wrap(err, errors.ErrorTypeData,
				fmt.Sprintf("failed to decode record %d of %s", emitted+1, c.path))
		}

		rec, err := pctx.BorrowRecord()
		if err != nil {
			return err
		}
		for k, v := range fields {
			rec.Set(k, normalize(v))
		}
		if err := emit(rec); err != nil {
			pctx.ReturnRecord(rec)
			return err
		}
		emitted++
	}

	log.Debug("file read",
		zap.String("path", c.path),
		zap.Int("records", emitted))
	return nil
}

// normalize turns a json.Number into int64 when it is integral, float64
// otherwise. Nested values stay as decoded; the record getters convert them
// on access.
func normalize(v interface{}) interface{} {
	num, ok := v.(json.Number)
	if !ok {
		return v
	}
	if n, err := num.Int64(); err == nil {
		return n
	}
	if f, err := num.Float64(); err == nil {
		return f
	}
	return num.String()
}
