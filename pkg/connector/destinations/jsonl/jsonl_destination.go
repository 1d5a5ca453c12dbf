// Package jsonl writes pipeline records as line-delimited JSON.
package jsonl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/prathamsinghrao/Etl-Lib/pkg/compression"
	"github.com/prathamsinghrao/Etl-Lib/pkg/errors"
	"github.com/prathamsinghrao/Etl-Lib/pkg/models"
	"github.com/prathamsinghrao/Etl-Lib/pkg/pipeline"
	"github.com/prathamsinghrao/Etl-Lib/pkg/stream"
)

const writeBufferSize = 64 * 1024

type sinkConfig struct {
	path      string
	algorithm compression.Algorithm
	level     compression.Level
}

type writer struct {
	cfg   *sinkConfig
	file  *os.File
	comp  io.WriteCloser
	buf   *bufio.Writer
	enc   *json.Encoder
	wrote int
}

// NewSink builds a sink node that writes each record as one JSON object per
// line. The file is created on the first record (or at flush time when the
// input was empty) and truncates any previous content.
//
// Properties: path (required), compression, level.
func NewSink(name string, props map[string]interface{}) (*stream.Sink, error) {
	cfg, err := parseSinkProps(props)
	if err != nil {
		return nil, err
	}
	w := &writer{cfg: cfg}
	return stream.NewSinkWithFlush(name, w.write, w.flush), nil
}

func parseSinkProps(props map[string]interface{}) (*sinkConfig, error) {
	cfg := &sinkConfig{level: compression.Default}

	path, err := cast.ToStringE(props["path"])
	if err != nil || path == "" {
		return nil, errors.NewValidation("jsonl sink requires a path property")
	}
	cfg.path = path

	if v, ok := props["compression"]; ok {
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, errors.NewValidation("jsonl compression must be a string")
		}
		alg, err := compression.ParseAlgorithm(s)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "jsonl sink")
		}
		cfg.algorithm = alg
	}
	if v, ok := props["level"]; ok {
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, errors.NewValidation("jsonl level must be a string")
		}
		lvl, err := compression.ParseLevel(s)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "jsonl sink")
		}
		cfg.level = lvl
	}

	if ext := cfg.algorithm.Extension(); ext != "" && !strings.HasSuffix(cfg.path, ext) {
		cfg.path += ext
	}

	return cfg, nil
}

func (w *writer) write(pctx *pipeline.Context, rec *models.Record) error {
	if err := w.ensureOpen(); err != nil {
		return err
	}
	if err := w.enc.Encode(rec.ToMap()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData,
			fmt.Sprintf("failed to encode record for %s", w.cfg.path))
	}
	w.wrote++
	return nil
}

func (w *writer) flush(pctx *pipeline.Context) error {
	if err := w.ensureOpen(); err != nil {
		return err
	}

	err := w.buf.Flush()
	if w.comp != nil {
		if cerr := w.comp.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}

	pctx.Logger("jsonl.sink").Debug("file written",
		zap.String("path", w.cfg.path),
		zap.Int("records", w.wrote))

	w.file, w.comp, w.buf, w.enc = nil, nil, nil, nil
	w.wrote = 0

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

	w.buf = bufio.NewWriterSize(out, writeBufferSize)
	w.enc = json.NewEncoder(w.buf)
	return nil
}
