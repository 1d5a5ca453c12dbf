// Package testutil provides shared helpers for package tests: loggers wired
// to the test output, execution contexts with cleanup, and small stream
// nodes for feeding and capturing records.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/prathamsinghrao/Etl-Lib/pkg/pipeline"
)

// TestLogger creates a logger that writes to the test output and is cleaned
// up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// NewContext creates an execution context wired to the test logger. It is
// closed automatically when the test completes.
func NewContext(t *testing.T, opts ...pipeline.ContextOption) *pipeline.Context {
	t.Helper()

	base := []pipeline.ContextOption{pipeline.WithLogger(zaptest.NewLogger(t))}
	pctx, err := pipeline.NewContext(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(pctx.Close)
	return pctx
}

// WriteFile writes content under dir and returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// AssertEventually asserts that a condition becomes true within the timeout,
// checking every 10ms.
func AssertEventually(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}
