package testutil

import (
	"os"
	"path/filepath"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"

	"github.com/prathamsinghrao/Etl-Lib/pkg/pipeline"
)

// PipelineSuite is a testify suite base for tests that run whole processes
// against temporary files. Each test gets a fresh execution context and a
// fresh temp directory.
type PipelineSuite struct {
	suite.Suite

	pctx    *pipeline.Context
	tempDir string
}

// SetupTest creates the per-test context and temp directory.
func (s *PipelineSuite) SetupTest() {
	pctx, err := pipeline.NewContext(pipeline.WithLogger(zaptest.NewLogger(s.T())))
	s.Require().NoError(err)
	s.pctx = pctx
	s.tempDir = s.T().TempDir()
}

// TearDownTest closes the per-test context.
func (s *PipelineSuite) TearDownTest() {
	s.pctx.Close()
}

// Context returns the per-test execution context.
func (s *PipelineSuite) Context() *pipeline.Context {
	return s.pctx
}

// TempDir returns the per-test directory.
func (s *PipelineSuite) TempDir() string {
	return s.tempDir
}

// Path joins name onto the per-test directory.
func (s *PipelineSuite) Path(name string) string {
	return filepath.Join(s.tempDir, name)
}

// WriteFile writes content into the per-test directory and returns the path.
func (s *PipelineSuite) WriteFile(name, content string) string {
	path := s.Path(name)
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o644))
	return path
}

// ReadFile reads a file from the per-test directory.
func (s *PipelineSuite) ReadFile(name string) string {
	data, err := os.ReadFile(s.Path(name))
	s.Require().NoError(err)
	return string(data)
}
