// Package config provides the configuration surface for pipelines.
//
// A PipelineConfig gathers everything one pipeline execution needs before it
// starts: engine tuning, record-pool sizing, logging, named connections and
// free-form user properties. Configuration problems are validation errors
// and fail fast, before any execution begins.
//
// Example usage:
//
//	cfg := config.New("daily-export")
//	cfg.Pool.InitialSize = 2048
//	cfg.Connections["warehouse"] = config.ConnectionConfig{
//	    Driver: "pgx",
//	    DSN:    "${WAREHOUSE_DSN}",
//	}
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"time"

	"github.com/prathamsinghrao/Etl-Lib/pkg/errors"
)

// PipelineConfig is the configuration for one pipeline
type PipelineConfig struct {
	// Name identifies the pipeline in logs, metrics and results
	Name string `yaml:"name" json:"name"`
	// Version tracks the configuration version
	Version string `yaml:"version" json:"version"`

	// Engine controls the execution engine and streaming runtime
	Engine EngineConfig `yaml:"engine" json:"engine"`

	// Pool sizes the record pool for this execution
	Pool PoolConfig `yaml:"pool" json:"pool"`

	// Logging configures the pipeline logger
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Observability toggles metrics and tracing
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`

	// Connections holds named connection parameters resolved by the
	// connection factory; every operation or node obtains its own
	// connection, connections are never shared
	Connections map[string]ConnectionConfig `yaml:"connections" json:"connections"`

	// Properties are arbitrary user keys seeded into the execution context
	Properties map[string]interface{} `yaml:"properties" json:"properties"`
}

// EngineConfig contains execution engine settings
type EngineConfig struct {
	// QueueCapacity bounds every adapter queue between streaming nodes;
	// a full queue blocks the producer (backpressure)
	QueueCapacity int `yaml:"queue_capacity" json:"queue_capacity"`
	// ContinueOnError makes the default error policy record failures and
	// keep going instead of aborting on the first error
	ContinueOnError bool `yaml:"continue_on_error" json:"continue_on_error"`
	// MemoryReclaim enables the best-effort memory reclamation hint
	// between top-level steps
	MemoryReclaim bool `yaml:"memory_reclaim" json:"memory_reclaim"`
}

// PoolConfig contains record pool settings
type PoolConfig struct {
	// InitialSize is the number of records allocated up front
	InitialSize int `yaml:"initial_size" json:"initial_size"`
	// AutoGrow allows the pool to allocate beyond the initial size
	AutoGrow bool `yaml:"auto_grow" json:"auto_grow"`
	// Tracking enables the debug-only borrow assertion
	Tracking bool `yaml:"tracking" json:"tracking"`
}

// LoggingConfig contains logger settings
type LoggingConfig struct {
	// Level sets verbosity (debug, info, warn, error)
	Level string `yaml:"level" json:"level"`
	// Development switches to a human-friendly console encoder
	Development bool `yaml:"development" json:"development"`
	// Encoding selects json or console output
	Encoding string `yaml:"encoding" json:"encoding"`
	// OutputPaths lists log destinations (defaults to stdout)
	OutputPaths []string `yaml:"output_paths" json:"output_paths"`
}

// ObservabilityConfig contains monitoring settings
type ObservabilityConfig struct {
	// EnableMetrics activates prometheus collectors
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// EnableTracing activates the tracer for pipeline and step spans
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate"`
}

// ConnectionConfig contains the parameters of one named connection
type ConnectionConfig struct {
	// Driver is the database/sql driver name (e.g. "pgx")
	Driver string `yaml:"driver" json:"driver"`
	// DSN is the data source name; ${VAR} references are substituted from
	// the environment at load time
	DSN string `yaml:"dsn" json:"dsn"`
	// MaxOpenConns limits open connections (0 = driver default)
	MaxOpenConns int `yaml:"max_open_conns" json:"max_open_conns"`
	// MaxIdleConns limits idle connections (0 = driver default)
	MaxIdleConns int `yaml:"max_idle_conns" json:"max_idle_conns"`
	// ConnMaxLifetime bounds connection reuse (0 = unlimited)
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// New creates a PipelineConfig with defaults that work for moderate-sized
// datasets. Callers override what they need and call Validate.
func New(name string) *PipelineConfig {
	return &PipelineConfig{
		Name:    name,
		Version: "1.0.0",
		Engine: EngineConfig{
			QueueCapacity:   64,
			ContinueOnError: false,
			MemoryReclaim:   true,
		},
		Pool: PoolConfig{
			InitialSize: 1024,
			AutoGrow:    true,
			Tracking:    false,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
		Observability: ObservabilityConfig{
			EnableMetrics:     true,
			EnableTracing:     false,
			TracingSampleRate: 0.1,
		},
		Connections: make(map[string]ConnectionConfig),
		Properties:  make(map[string]interface{}),
	}
}

// Validate checks the configuration for correctness. It returns a validation
// error describing the first problem found; a valid configuration returns
// nil.
func (c *PipelineConfig) Validate() error {
	if c.Name == "" {
		return errors.NewValidation("pipeline name is required")
	}
	if c.Engine.QueueCapacity <= 0 {
		return errors.NewValidation("engine queue_capacity must be positive").
			WithDetail("queue_capacity", c.Engine.QueueCapacity)
	}
	if c.Pool.InitialSize < 0 {
		return errors.NewValidation("pool initial_size must not be negative").
			WithDetail("initial_size", c.Pool.InitialSize)
	}
	if c.Observability.TracingSampleRate < 0 || c.Observability.TracingSampleRate > 1 {
		return errors.NewValidation("tracing_sample_rate must be between 0 and 1").
			WithDetail("tracing_sample_rate", c.Observability.TracingSampleRate)
	}
	for name, conn := range c.Connections {
		if conn.Driver == "" {
			return errors.Newf(errors.ErrorTypeValidation, "connection %q has no driver", name)
		}
		if conn.DSN == "" {
			return errors.Newf(errors.ErrorTypeValidation, "connection %q has no dsn", name)
		}
	}
	return nil
}
