// Package csv writes pipeline records to delimited files.
package csv

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/prathamsinghrao/Etl-Lib/pkg/compression"
	"github.com/prathamsinghrao/Etl-Lib/pkg/errors"
	"github.com/prathamsinghrao/Etl-Lib/pkg/models"
	"github.com/prathamsinghrao/Etl-Lib/pkg/pipeline"
	"github.com/prathamsinghrao/Etl-Lib/pkg/stream"
)

const bufferSize = 64 * 1024

type sinkConfig struct {
	path      string
	delimiter rune
	header    bool
	columns   []string
	algorithm compression.Algorithm
	level     compression.Level
}

// writer carries the open-file state of one sink run. A sink node runs on a
// single worker, so no locking is needed; flush closes everything and resets
// the state for a potential next run.
type writer struct {
	cfg     *sinkConfig
	file    *os.File
	comp    io.WriteCloser
	buf     *bufio.Writer
	csv     *csv.Writer
	columns []string
	row     []string
	wrote   int
}

// NewSink builds a sink node that writes records to one delimited file. The
// file is created on the first record (or at flush time when the input was
// empty) and truncates any previous content.
//
// Properties: path (required), delimiter (default ","), header (default
// true), columns (explicit column order; default is the sorted field names
// of the first record), compression, level (fastest/default/better/best).
func NewSink(name string, props map[string]interface{}) (*stream.Sink, error) {
	cfg, err := parseSinkProps(props)
	if err != nil {
		return nil, err
	}
	w := &writer{cfg: cfg}
	return stream.NewSinkWithFlush(name, w.write, w.flush), nil
}

func parseSinkProps(props map[string]interface{}) (*sinkConfig, error) {
	cfg := &sinkConfig{
		delimiter: ',',
		header:    true,
		level:     compression.Default,
	}

	path, err := cast.ToStringE(props["path"])
	if err != nil || path == "" {
		return nil, errors.NewValidation("csv sink requires a path property")
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
	if v, ok := props["columns"]; ok {
		cols, err := cast.ToStringSliceE(v)
		if err != nil || len(cols) == 0 {
			return nil, errors.NewValidation("csv columns must be a non-empty string list")
		}
		cfg.columns = cols
	}
	if v, ok := props["compression"]; ok {
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, errors.NewValidation("csv compression must be a string")
		}
		alg, err := compression.ParseAlgorithm(s)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "csv sink")
		}
		cfg.algorithm = alg
	}
	if v, ok := props["level"]; ok {
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, errors.NewValidation("csv level must be a string")
		}
		lvl, err := compression.ParseLevel(s)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "csv sink")
		}
		cfg.level = lvl
	}

	// Keep the conventional extension on compressed output.
	if ext := cfg.algorithm.Extension(); ext != "" && !strings.HasSuffix(cfg.path, ext) {
		cfg.path += ext
	}

	return cfg, nil
}

func (w *writer) write(pctx *pipeline.Context, rec *models.Record) error {
	if w.columns == nil {
		if len(w.cfg.columns) > 0 {
			w.columns = w.cfg.columns
		} else {
			w.columns = rec.Fields()
		}
	}
	if err := w.ensureOpen(); err != nil {
		return err
	}

	w.row = w.row[:0]
	for _, col := range w.columns {
		v, _ := rec.Get(col)
		w.row = append(w.row, formatValue(v))
	}
	if err := w.csv.Write(w.row); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection,
			fmt.Sprintf("failed to write row to %s", w.cfg.path))
	}
	w.wrote++
	return nil
}

func (w *writer) flush(pctx *pipeline.Context) error {
	if w.columns == nil {
		w.columns = w.cfg.columns
	}
	if err := w.ensureOpen(); err != nil {
		return err
	}

	w.csv.Flush()
	err := w.csv.Error()
	if ferr := w.buf.Flush(); err == nil {
		err = ferr
	}
	if w.comp != nil {
		if cerr := w.comp.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}

	pctx.Logger("csv.sink").Debug("file written",
		zap.String("path", w.cfg.path),
		zap.Int("records", w.wrote))

	w.file, w.comp, w.buf, w.csv = nil, nil, nil, nil
	w.columns, w.wrote = nil, 0

	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection,
			fmt.Sprintf("failed to finalize %s", w.cfg.path))
	}
	return nil
}

func (w *writer) ensureOpen() error {
	if w.file != nil {
		return nil
	}

	if dir := filepath.Dir(w.cfg.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection,
				fmt.Sprintf("failed to create directory %s", dir))
		}
	}
	file, err := os.Create(w.cfg.path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection,
			fmt.Sprintf("failed to create %s", w.cfg.path))
	}
	w.file = file

	var out io.Writer = file
	if w.cfg.algorithm != compression.None {
		comp, err := compression.NewWriter(w.cfg.algorithm, w.cfg.level, file)
		if err != nil {
			_ = file.Close()
			w.file = nil
			return errors.Wrap(err, errors.ErrorTypeData,
				fmt.Sprintf("failed to open %s compressor", w.cfg.algorithm))
		}
		w.comp = comp
		out = comp
	}

	w.buf = bufio.NewWriterSize(out, bufferSize)
	w.csv = csv.NewWriter(w.buf)
	w.csv.Comma = w.cfg.delimiter

	if w.cfg.header && len(w.columns) > 0 {
		if err := w.csv.Write(w.columns); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection,
				fmt.Sprintf("failed to write header to %s", w.cfg.path))
		}
	}
	return nil
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		return t.Format(time.RFC3339Nano)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return s
}
