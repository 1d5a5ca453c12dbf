package csv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prathamsinghrao/Etl-Lib/pkg/compression"
	"github.com/prathamsinghrao/Etl-Lib/pkg/pipeline"
	"github.com/prathamsinghrao/Etl-Lib/pkg/stream"
	"github.com/prathamsinghrao/Etl-Lib/pkg/testutil"
)

func runSource(t *testing.T, pctx *pipeline.Context, src *stream.Source) (*testutil.RecordLog, pipeline.Result) {
	t.Helper()

	sink, log := testutil.CollectSink("collect")
	proc, err := stream.NewProcessBuilder("ingest").
		AddSource(src, "rows").
		AddSink(sink, "rows").
		Build()
	require.NoError(t, err)
	return log, proc.Execute(pctx)
}

func TestReadsTypedRows(t *testing.T) {
	pctx := testutil.NewContext(t)
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "input.csv",
		"id,name,score,active\n1,alpha,1.5,true\n2,beta,2,false\n")

	src, err := NewSource("read", map[string]interface{}{"path": path})
	require.NoError(t, err)

	log, res := runSource(t, pctx, src)
	require.True(t, res.Success, "errors: %v", res.Errors)

	rows := log.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0]["id"])
	assert.Equal(t, "alpha", rows[0]["name"])
	assert.Equal(t, 1.5, rows[0]["score"])
	assert.Equal(t, true, rows[0]["active"])
	assert.Equal(t, int64(2), rows[1]["score"], "bare integers parse as int64")

	assert.Zero(t, testutil.RecordsInUse(t, pctx))
}

func TestHeaderlessColumns(t *testing.T) {
	pctx := testutil.NewContext(t)
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "input.csv", "7,x\n8,y\n")

	src, err := NewSource("read", map[string]interface{}{
		"path":   path,
		"header": false,
	})
	require.NoError(t, err)

	log, res := runSource(t, pctx, src)
	require.True(t, res.Success)

	rows := log.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, int64(7), rows[0]["column_1"])
	assert.Equal(t, "x", rows[0]["column_2"])
}

func TestTypeInferenceDisabled(t *testing.T) {
	pctx := testutil.NewContext(t)
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "input.csv", "id\n42\n")

	src, err := NewSource("read", map[string]interface{}{
		"path":        path,
		"infer_types": false,
	})
	require.NoError(t, err)

	log, res := runSource(t, pctx, src)
	require.True(t, res.Success)
	assert.Equal(t, "42", log.Rows()[0]["id"])
}

func TestSemicolonDelimiter(t *testing.T) {
	pctx := testutil.NewContext(t)
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "input.csv", "a;b\n1;2\n")

	src, err := NewSource("read", map[string]interface{}{
		"path":      path,
		"delimiter": ";",
	})
	require.NoError(t, err)

	log, res := runSource(t, pctx, src)
	require.True(t, res.Success)
	assert.Equal(t, int64(2), log.Rows()[0]["b"])
}

func TestCompressedInput(t *testing.T) {
	pctx := testutil.NewContext(t)
	path := filepath.Join(t.TempDir(), "input.csv.gz")

	file, err := os.Create(path)
	require.NoError(t, err)
	gz, err := compression.NewWriter(compression.Gzip, compression.Default, file)
	require.NoError(t, err)
	_, err = gz.Write([]byte("id,name\n1,alpha\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, file.Close())

	src, err := NewSource("read", map[string]interface{}{
		"path":        path,
		"compression": "gzip",
	})
	require.NoError(t, err)

	log, res := runSource(t, pctx, src)
	require.True(t, res.Success, "errors: %v", res.Errors)
	require.Equal(t, 1, log.Len())
	assert.Equal(t, "alpha", log.Rows()[0]["name"])
}

func TestMalformedRowAborts(t *testing.T) {
	pctx := testutil.NewContext(t)
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "input.csv", "a,b\n\"unclosed,2\n")

	src, err := NewSource("read", map[string]interface{}{"path": path})
	require.NoError(t, err)

	_, res := runSource(t, pctx, src)
	require.False(t, res.Success)
	assert.True(t, res.Aborted())
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, "read", res.Errors[0].Operation)
	assert.Zero(t, testutil.RecordsInUse(t, pctx))
}

func TestMissingFileFailsNode(t *testing.T) {
	pctx := testutil.NewContext(t)

	src, err := NewSource("read", map[string]interface{}{
		"path": filepath.Join(t.TempDir(), "absent.csv"),
	})
	require.NoError(t, err)

	_, res := runSource(t, pctx, src)
	require.False(t, res.Success)
	require.NotEmpty(t, res.Errors)
}

func TestPropertyValidation(t *testing.T) {
	tests := []struct {
		name  string
		props map[string]interface{}
	}{
		{"missing path", map[string]interface{}{}},
		{"empty path", map[string]interface{}{"path": ""}},
		{"long delimiter", map[string]interface{}{"path": "x.csv", "delimiter": "--"}},
		{"bad header flag", map[string]interface{}{"path": "x.csv", "header": "maybe"}},
		{"bad compression", map[string]interface{}{"path": "x.csv", "compression": "brotli"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSource("read", tt.props)
			require.Error(t, err)
		})
	}
}
