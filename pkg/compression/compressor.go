// Package compression provides the codecs file connectors use to read and
// write compressed data. It supports gzip, snappy, lz4, zstd, s2 and
// deflate with four coarse levels, for both in-memory buffers and streams.
//
// # Basic Usage
//
//	comp, err := compression.NewCompressor(&compression.Config{
//	    Algorithm: compression.Zstd,
//	    Level:     compression.Better,
//	})
//	compressed, err := comp.Compress(data)
//	original, err := comp.Decompress(compressed)
//
// File connectors wrap their streams instead:
//
//	w, err := compression.NewWriter(compression.Gzip, compression.Default, file)
//	defer w.Close()
package compression

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm selects a compression codec.
type Algorithm string

const (
	// None passes data through unchanged.
	None Algorithm = "none"
	// Gzip is the widely compatible default for file interchange.
	Gzip Algorithm = "gzip"
	// Snappy favors speed over ratio.
	Snappy Algorithm = "snappy"
	// LZ4 is the fastest codec here, with the weakest ratio.
	LZ4 Algorithm = "lz4"
	// Zstd gives the best ratio at good speed.
	Zstd Algorithm = "zstd"
	// S2 is a faster snappy-compatible codec.
	S2 Algorithm = "s2"
	// Deflate is raw DEFLATE without the gzip envelope.
	Deflate Algorithm = "deflate"
)

// ParseAlgorithm maps a configuration string to an Algorithm. The empty
// string means None.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case "", None:
		return None, nil
	case Gzip, Snappy, LZ4, Zstd, S2, Deflate:
		return Algorithm(s), nil
	default:
		return None, fmt.Errorf("unsupported compression algorithm: %q", s)
	}
}

// Extension returns the file extension conventionally used for the
// algorithm, empty for None.
func (a Algorithm) Extension() string {
	switch a {
	case Gzip:
		return ".gz"
	case Snappy:
		return ".snappy"
	case LZ4:
		return ".lz4"
	case Zstd:
		return ".zst"
	case S2:
		return ".s2"
	case Deflate:
		return ".deflate"
	default:
		return ""
	}
}

// Level trades compression speed against ratio.
type Level int

const (
	// Fastest prioritizes throughput.
	Fastest Level = 1
	// Default balances speed and ratio.
	Default Level = 5
	// Better spends CPU for a smaller output.
	Better Level = 7
	// Best maximizes the ratio.
	Best Level = 9
)

// String returns the level's name.
func (l Level) String() string {
	switch l {
	case Fastest:
		return "Fastest"
	case Default:
		return "Default"
	case Better:
		return "Better"
	case Best:
		return "Best"
	default:
		return "Unknown"
	}
}

// ParseLevel maps a configuration string to a Level. The empty string means
// Default.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "", "default":
		return Default, nil
	case "fastest":
		return Fastest, nil
	case "better":
		return Better, nil
	case "best":
		return Best, nil
	default:
		return Default, fmt.Errorf("unsupported compression level: %q", s)
	}
}

// Compressor compresses and decompresses byte slices and streams. All
// implementations are safe for concurrent use.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	CompressStream(dst io.Writer, src io.Reader) error
	DecompressStream(dst io.Writer, src io.Reader) error
	Algorithm() Algorithm
	Level() Level
}

// Config selects the codec and level for NewCompressor.
type Config struct {
	Algorithm Algorithm
	Level     Level
}

// DefaultConfig returns snappy at the default level, a good fit for
// intermediate files that are read back soon after writing.
func DefaultConfig() *Config {
	return &Config{Algorithm: Snappy, Level: Default}
}

// NewCompressor creates a compressor for the configured algorithm. A nil
// config uses DefaultConfig.
func NewCompressor(config *Config) (Compressor, error) {
	if config == nil {
		config = DefaultConfig()
	}
	switch config.Algorithm {
	case None:
		return &noneCompressor{base{None, config.Level}}, nil
	case Gzip:
		return newGzipCompressor(config.Level), nil
	case Snappy:
		return &snappyCompressor{base{Snappy, config.Level}}, nil
	case LZ4:
		return &lz4Compressor{base{LZ4, config.Level}, mapLZ4Level(config.Level)}, nil
	case Zstd:
		return newZstdCompressor(config.Level), nil
	case S2:
		return &s2Compressor{base{S2, config.Level}}, nil
	case Deflate:
		return &deflateCompressor{base{Deflate, config.Level}, mapFlateLevel(config.Level)}, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %q", config.Algorithm)
	}
}

// NewWriter wraps w so that everything written is compressed with the
// given algorithm. Close flushes the codec; it does not close w.
func NewWriter(alg Algorithm, level Level, w io.Writer) (io.WriteCloser, error) {
	switch alg {
	case None:
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriterLevel(w, mapGzipLevel(level))
	case Snappy:
		return snappy.NewBufferedWriter(w), nil
	case LZ4:
		lw := lz4.NewWriter(w)
		if err := lw.Apply(lz4.CompressionLevelOption(mapLZ4Level(level))); err != nil {
			return nil, err
		}
		return lw, nil
	case Zstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(mapZstdLevel(level)))
	case S2:
		return s2.NewWriter(w), nil
	case Deflate:
		return flate.NewWriter(w, mapFlateLevel(level))
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %q", alg)
	}
}

// NewReader wraps r so that reads yield the decompressed data.
func NewReader(alg Algorithm, r io.Reader) (io.ReadCloser, error) {
	switch alg {
	case None:
		return io.NopCloser(r), nil
	case Gzip:
		return gzip.NewReader(r)
	case Snappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	case S2:
		return io.NopCloser(s2.NewReader(r)), nil
	case Deflate:
		return flate.NewReader(r), nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %q", alg)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

var bufPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

func getBuffer() *bytes.Buffer {
	return bufPool.Get().(*bytes.Buffer)
}

func putBuffer(b *bytes.Buffer) {
	b.Reset()
	bufPool.Put(b)
}

type base struct {
	algorithm Algorithm
	level     Level
}

func (b *base) Algorithm() Algorithm { return b.algorithm }
func (b *base) Level() Level         { return b.level }

// compressVia runs the streaming writer path into a pooled buffer and
// copies out the result.
func (b *base) compressVia(data []byte) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	w, err := NewWriter(b.algorithm, b.level, buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func (b *base) decompressVia(data []byte) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	r, err := NewReader(b.algorithm, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	if _, err := io.Copy(buf, r); err != nil {
		return nil, err
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func (b *base) compressStreamVia(dst io.Writer, src io.Reader) error {
	w, err := NewWriter(b.algorithm, b.level, dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return w.Close()
}

func (b *base) decompressStreamVia(dst io.Writer, src io.Reader) error {
	r, err := NewReader(b.algorithm, src)
	if err != nil {
		return err
	}
	defer r.Close()
	_, err = io.Copy(dst, r)
	return err
}

type noneCompressor struct{ base }

func (c *noneCompressor) Compress(data []byte) ([]byte, error)   { return data, nil }
func (c *noneCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }
func (c *noneCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	return err
}
func (c *noneCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	return err
}

type gzipCompressor struct {
	base
	writerPool sync.Pool
}

func newGzipCompressor(level Level) *gzipCompressor {
	gc := &gzipCompressor{base: base{Gzip, level}}
	gc.writerPool.New = func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, mapGzipLevel(level))
		return w
	}
	return gc
}

func (c *gzipCompressor) Compress(data []byte) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)

	w := c.writerPool.Get().(*gzip.Writer)
	defer c.writerPool.Put(w)

	w.Reset(buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func (c *gzipCompressor) Decompress(data []byte) ([]byte, error) {
	return c.decompressVia(data)
}

func (c *gzipCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	w := c.writerPool.Get().(*gzip.Writer)
	defer c.writerPool.Put(w)

	w.Reset(dst)
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return w.Close()
}

func (c *gzipCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	return c.decompressStreamVia(dst, src)
}

type snappyCompressor struct{ base }

func (c *snappyCompressor) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (c *snappyCompressor) Decompress(data []byte) ([]byte, error) {
	return snappy.Decode(nil, data)
}

func (c *snappyCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	return c.compressStreamVia(dst, src)
}

func (c *snappyCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	return c.decompressStreamVia(dst, src)
}

type lz4Compressor struct {
	base
	lz4Level lz4.CompressionLevel
}

func (c *lz4Compressor) Compress(data []byte) ([]byte, error) {
	return c.compressVia(data)
}

func (c *lz4Compressor) Decompress(data []byte) ([]byte, error) {
	return c.decompressVia(data)
}

func (c *lz4Compressor) CompressStream(dst io.Writer, src io.Reader) error {
	return c.compressStreamVia(dst, src)
}

func (c *lz4Compressor) DecompressStream(dst io.Writer, src io.Reader) error {
	return c.decompressStreamVia(dst, src)
}

type zstdCompressor struct {
	base
	encoderPool sync.Pool
	decoderPool sync.Pool
}

func newZstdCompressor(level Level) *zstdCompressor {
	zc := &zstdCompressor{base: base{Zstd, level}}
	zc.encoderPool.New = func() interface{} {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(mapZstdLevel(level)))
		return enc
	}
	zc.decoderPool.New = func() interface{} {
		dec, _ := zstd.NewReader(nil)
		return dec
	}
	return zc
}

func (c *zstdCompressor) Compress(data []byte) ([]byte, error) {
	enc := c.encoderPool.Get().(*zstd.Encoder)
	defer c.encoderPool.Put(enc)
	return enc.EncodeAll(data, nil), nil
}

func (c *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	dec := c.decoderPool.Get().(*zstd.Decoder)
	defer c.decoderPool.Put(dec)
	return dec.DecodeAll(data, nil)
}

func (c *zstdCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	return c.compressStreamVia(dst, src)
}

func (c *zstdCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	return c.decompressStreamVia(dst, src)
}

type s2Compressor struct{ base }

func (c *s2Compressor) Compress(data []byte) ([]byte, error) {
	switch c.level {
	case Better:
		return s2.EncodeBetter(nil, data), nil
	case Best:
		return s2.EncodeBest(nil, data), nil
	default:
		return s2.Encode(nil, data), nil
	}
}

func (c *s2Compressor) Decompress(data []byte) ([]byte, error) {
	return s2.Decode(nil, data)
}

func (c *s2Compressor) CompressStream(dst io.Writer, src io.Reader) error {
	return c.compressStreamVia(dst, src)
}

func (c *s2Compressor) DecompressStream(dst io.Writer, src io.Reader) error {
	return c.decompressStreamVia(dst, src)
}

type deflateCompressor struct {
	base
	flateLevel int
}

func (c *deflateCompressor) Compress(data []byte) ([]byte, error) {
	return c.compressVia(data)
}

func (c *deflateCompressor) Decompress(data []byte) ([]byte, error) {
	return c.decompressVia(data)
}

func (c *deflateCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	return c.compressStreamVia(dst, src)
}

func (c *deflateCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	return c.decompressStreamVia(dst, src)
}

func mapGzipLevel(l Level) int {
	switch l {
	case Fastest:
		return gzip.BestSpeed
	case Better:
		return 7
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapFlateLevel(l Level) int {
	switch l {
	case Fastest:
		return flate.BestSpeed
	case Better:
		return 7
	case Best:
		return flate.BestCompression
	default:
		return flate.DefaultCompression
	}
}

func mapLZ4Level(l Level) lz4.CompressionLevel {
	switch l {
	case Fastest:
		return lz4.Fast
	case Better:
		return lz4.Level6
	case Best:
		return lz4.Level9
	default:
		return lz4.Level4
	}
}

func mapZstdLevel(l Level) zstd.EncoderLevel {
	switch l {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}
