package compression

import (
	"bytes"
	"testing"
)

var sample = bytes.Repeat([]byte("order_id,amount,currency\n42,19.99,EUR\n"), 200)

func TestRoundTrip(t *testing.T) {
	algorithms := []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2, Deflate}

	for _, alg := range algorithms {
		t.Run(string(alg), func(t *testing.T) {
			comp, err := NewCompressor(&Config{Algorithm: alg, Level: Default})
			if err != nil {
				t.Fatalf("failed to create compressor: %v", err)
			}

			compressed, err := comp.Compress(sample)
			if err != nil {
				t.Fatalf("failed to compress: %v", err)
			}
			decompressed, err := comp.Decompress(compressed)
			if err != nil {
				t.Fatalf("failed to decompress: %v", err)
			}
			if !bytes.Equal(sample, decompressed) {
				t.Errorf("round trip lost data for %s", alg)
			}
			if alg != None && len(compressed) >= len(sample) {
				t.Logf("%s did not shrink the sample (%d -> %d)", alg, len(sample), len(compressed))
			}
		})
	}
}

func TestStreamRoundTrip(t *testing.T) {
	comp, err := NewCompressor(&Config{Algorithm: Zstd, Level: Better})
	if err != nil {
		t.Fatalf("failed to create compressor: %v", err)
	}

	var compressed bytes.Buffer
	if err := comp.CompressStream(&compressed, bytes.NewReader(sample)); err != nil {
		t.Fatalf("failed to compress stream: %v", err)
	}

	var decompressed bytes.Buffer
	if err := comp.DecompressStream(&decompressed, &compressed); err != nil {
		t.Fatalf("failed to decompress stream: %v", err)
	}
	if !bytes.Equal(sample, decompressed.Bytes()) {
		t.Error("stream round trip lost data")
	}
}

func TestWriterReaderPair(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(Gzip, Fastest, &buf)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	if _, err := w.Write(sample); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	r, err := NewReader(Gzip, &buf)
	if err != nil {
		t.Fatalf("failed to create reader: %v", err)
	}
	defer r.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(r); err != nil {
		t.Fatalf("failed to read back: %v", err)
	}
	if !bytes.Equal(sample, out.Bytes()) {
		t.Error("writer/reader pair lost data")
	}
}

func TestLevelsAffectOutput(t *testing.T) {
	levels := []Level{Fastest, Default, Better, Best}
	for _, level := range levels {
		t.Run(level.String(), func(t *testing.T) {
			comp, err := NewCompressor(&Config{Algorithm: LZ4, Level: level})
			if err != nil {
				t.Fatalf("failed to create compressor: %v", err)
			}
			compressed, err := comp.Compress(sample)
			if err != nil {
				t.Fatalf("failed to compress: %v", err)
			}
			decompressed, err := comp.Decompress(compressed)
			if err != nil {
				t.Fatalf("failed to decompress: %v", err)
			}
			if !bytes.Equal(sample, decompressed) {
				t.Errorf("level %s lost data", level)
			}
		})
	}
}

func TestParseAlgorithm(t *testing.T) {
	alg, err := ParseAlgorithm("")
	if err != nil || alg != None {
		t.Errorf("empty string should parse as none, got %v, %v", alg, err)
	}
	if _, err := ParseAlgorithm("zstd"); err != nil {
		t.Errorf("zstd should parse: %v", err)
	}
	if _, err := ParseAlgorithm("brotli"); err == nil {
		t.Error("unsupported algorithm must be rejected")
	}
}

func TestExtensions(t *testing.T) {
	if got := Gzip.Extension(); got != ".gz" {
		t.Errorf("gzip extension = %q", got)
	}
	if got := None.Extension(); got != "" {
		t.Errorf("none extension = %q", got)
	}
}
