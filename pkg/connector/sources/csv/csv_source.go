// Package csv reads delimited files into pipeline records.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/prathamsinghrao/Etl-Lib/pkg/compression"
	"github.com/prathamsinghrao/Etl-Lib/pkg/errors"
	"github.com/prathamsinghrao/Etl-Lib/pkg/pipeline"
	"github.com/prathamsinghrao/Etl-Lib/pkg/stream"
)

type sourceConfig struct {
	path       string
	delimiter  rune
	header     bool
	inferTypes bool
	algorithm  compression.Algorithm
}

// NewSource builds a source node that reads one delimited file.
//
// Properties: path (required), delimiter (default ","), header (default
// true), infer_types (default true), compression (none/gzip/snappy/lz4/
// zstd/s2/deflate).
func NewSource(name string, props map[string]interface{}) (*stream.Source, error) {
	cfg, err := parseSourceProps(props)
	if err != nil {
		return nil, err
	}
	return stream.NewSource(name, cfg.run), nil
}

func parseSourceProps(props map[string]interface{}) (*sourceConfig, error) {
	cfg := &sourceConfig{
		delimiter:  ',',
		header:     true,
		inferTypes: true,
	}

	path, err := cast.ToStringE(props["path"])
	if err != nil || path == "" {
		return nil, errors.NewValidation("csv source requires a path property")
	}
	cfg.path = path

	if v, ok := props["delimiter"]; ok {
		s, err := cast.ToStringE(v)
		if err != nil || len([]rune(s)) != 1 {
			return nil, errors.NewValidation("csv delimiter must be a single character")
		}
		cfg.delimiter = []rune(s)[0]
	}
	if v, ok := props["header"]; ok {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return nil, errors.NewValidation("csv header must be a boolean")
		}
		cfg.header = b
	}
	if v, ok := props["infer_types"]; ok {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return nil, errors.NewValidation("csv infer_types must be a boolean")
		}
		cfg.inferTypes = b
	}
	if v, ok := props["compression"]; ok {
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, errors.NewValidation("csv compression must be a string")
		}
		alg, err := compression.ParseAlgorithm(s)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "csv source")
		}
		cfg.algorithm = alg
	}

	return cfg, nil
}

func (c *sourceConfig) run(pctx *pipeline.Context, emit stream.EmitFunc) error {
	log := pctx.Logger("csv.source")

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

	reader := csv.NewReader(in)
	reader.Comma = c.delimiter
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	var columns []string
	if c.header {
		row, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "failed to read header row")
		}
		columns = append([]string(nil), row...)
	}

	emitted := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData,
				fmt.Sprintf("failed to read row %d of %s", emitted+1, c.path))
		}

		rec, err := pctx.BorrowRecord()
		if err != nil {
			return err
		}
		for i, value := range row {
			rec.Set(columnName(columns, i), c.convert(value))
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

func columnName(columns []string, i int) string {
	if i < len(columns) && columns[i] != "" {
		return columns[i]
	}
	return fmt.Sprintf("column_%d", i+1)
}

// convert maps a raw cell to int64, float64, bool or string. Quoted input
// arrives here unquoted, so the string fallback keeps whatever the cell held.
func (c *sourceConfig) convert(value string) interface{} {
	if !c.inferTypes {
		return value
	}
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return value
	}
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	switch trimmed {
	case "true", "TRUE":
		return true
	case "false", "FALSE":
		return false
	}
	return value
}
