package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prathamsinghrao/Etl-Lib/pkg/clients"
	"github.com/prathamsinghrao/Etl-Lib/pkg/config"
	"github.com/prathamsinghrao/Etl-Lib/pkg/connector/registry"
	"github.com/prathamsinghrao/Etl-Lib/pkg/logger"
	"github.com/prathamsinghrao/Etl-Lib/pkg/models"
	"github.com/prathamsinghrao/Etl-Lib/pkg/observability"
	"github.com/prathamsinghrao/Etl-Lib/pkg/pipeline"
	"github.com/prathamsinghrao/Etl-Lib/pkg/stream"

	// Import all available connectors to register them
	_ "github.com/prathamsinghrao/Etl-Lib/pkg/connector/destinations"
	_ "github.com/prathamsinghrao/Etl-Lib/pkg/connector/sources"
)

var version = "0.1.0"

// pipelineFile is the on-disk pipeline definition: the engine configuration
// plus the streaming process wiring.
type pipelineFile struct {
	config.PipelineConfig `yaml:",inline"`

	Process processSpec `yaml:"process"`
}

// processSpec describes one streaming process: a source, optional record
// transforms applied in order, and a sink.
type processSpec struct {
	Source     nodeSpec        `yaml:"source"`
	Transforms []transformSpec `yaml:"transforms"`
	Sink       nodeSpec        `yaml:"sink"`
}

// nodeSpec selects a registered connector and its properties.
type nodeSpec struct {
	Connector  string                 `yaml:"connector"`
	Name       string                 `yaml:"name"`
	Properties map[string]interface{} `yaml:"properties"`
}

// transformSpec selects a built-in transform and its properties.
type transformSpec struct {
	Type       string                 `yaml:"type"`
	Name       string                 `yaml:"name"`
	Properties map[string]interface{} `yaml:"properties"`
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	root := &cobra.Command{
		Use:   "etl",
		Short: "etl - declarative streaming data pipelines",
		Long: `etl runs data pipelines defined in a single YAML file: a streaming
source, optional record transforms and a sink, connected by bounded queues.
Connections, pool sizing and logging are part of the same definition.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("etl v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available connectors",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Source connectors:")
			for _, info := range registry.ListInfo() {
				if info.Kind == "source" {
					fmt.Printf("  %-10s %s\n", info.Name, info.Description)
				}
			}
			fmt.Println("\nSink connectors:")
			for _, info := range registry.ListInfo() {
				if info.Kind == "sink" {
					fmt.Printf("  %-10s %s\n", info.Name, info.Description)
				}
			}
		},
	})

	var configFile, logLevel string
	var timeout time.Duration

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a data pipeline",
		Long: `Run the pipeline defined in a YAML file. ${VAR} references in the file
are substituted from the environment before parsing.

Example:
  etl run --config pipeline.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(configFile, logLevel, timeout)
		},
	}
	runCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to the pipeline YAML file (required)")
	_ = runCmd.MarkFlagRequired("config")
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	runCmd.Flags().DurationVar(&timeout, "timeout", 0, "Abort the run after this duration (0 = no timeout)")
	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadPipelineFile reads and validates a pipeline definition. A missing name
// defaults to the file's base name.
func loadPipelineFile(path string) (*pipelineFile, error) {
	pf := &pipelineFile{PipelineConfig: *config.New("")}
	if err := config.Load(path, pf); err != nil {
		return nil, err
	}
	if pf.Name == "" {
		pf.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := pf.Validate(); err != nil {
		return nil, err
	}
	if pf.Process.Source.Connector == "" {
		return nil, fmt.Errorf("%s: process has no source connector", path)
	}
	if pf.Process.Sink.Connector == "" {
		return nil, fmt.Errorf("%s: process has no sink connector", path)
	}
	return pf, nil
}

// buildProcess wires the configured source, transforms and sink into one
// streaming process. Adapters are named stage-0..stage-N along the chain.
func buildProcess(pf *pipelineFile) (*stream.Process, error) {
	b := stream.NewProcessBuilder(pf.Name).
		WithQueueCapacity(pf.Engine.QueueCapacity)

	srcName := pf.Process.Source.Name
	if srcName == "" {
		srcName = "extract"
	}
	src, err := registry.NewSourceNode(pf.Process.Source.Connector, srcName, pf.Process.Source.Properties)
	if err != nil {
		return nil, err
	}

	wire := "stage-0"
	b.AddSource(src, wire)

	for i, spec := range pf.Process.Transforms {
		tr, err := buildTransform(spec, i)
		if err != nil {
			return nil, err
		}
		next := fmt.Sprintf("stage-%d", i+1)
		b.AddTransform(tr, wire, next)
		wire = next
	}

	sinkName := pf.Process.Sink.Name
	if sinkName == "" {
		sinkName = "load"
	}
	sink, err := registry.NewSinkNode(pf.Process.Sink.Connector, sinkName, pf.Process.Sink.Properties)
	if err != nil {
		return nil, err
	}
	b.AddSink(sink, wire)

	return b.Build()
}

// buildTransform creates one of the built-in record transforms.
func buildTransform(spec transformSpec, idx int) (*stream.Transform, error) {
	name := spec.Name
	if name == "" {
		name = fmt.Sprintf("%s-%d", spec.Type, idx+1)
	}

	switch spec.Type {
	case "select":
		fields, err := cast.ToStringSliceE(spec.Properties["fields"])
		if err != nil || len(fields) == 0 {
			return nil, fmt.Errorf("select transform requires a fields list")
		}
		keep := make(map[string]struct{}, len(fields))
		for _, f := range fields {
			keep[f] = struct{}{}
		}
		return stream.NewTransform(name, func(_ *pipeline.Context, rec *models.Record) (*models.Record, error) {
			for _, f := range rec.Fields() {
				if _, ok := keep[f]; !ok {
					rec.Delete(f)
				}
			}
			return rec, nil
		}), nil

	case "rename":
		mapping, err := cast.ToStringMapStringE(spec.Properties["mapping"])
		if err != nil || len(mapping) == 0 {
			return nil, fmt.Errorf("rename transform requires a mapping")
		}
		return stream.NewTransform(name, func(_ *pipeline.Context, rec *models.Record) (*models.Record, error) {
			for from, to := range mapping {
				if v, ok := rec.Get(from); ok {
					rec.Delete(from)
					rec.Set(to, v)
				}
			}
			return rec, nil
		}), nil

	default:
		return nil, fmt.Errorf("unknown transform type %q (available: rename, select)", spec.Type)
	}
}

// runPipeline executes the pipeline defined in configFile.
func runPipeline(configFile, logLevel string, timeout time.Duration) error {
	pf, err := loadPipelineFile(configFile)
	if err != nil {
		return fmt.Errorf("pipeline configuration error: %w", err)
	}

	if logLevel != "" {
		pf.Logging.Level = logLevel
	}
	log, err := logger.New(logger.Config{
		Level:       pf.Logging.Level,
		Development: pf.Logging.Development,
		Encoding:    pf.Logging.Encoding,
		OutputPaths: pf.Logging.OutputPaths,
	})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if pf.Observability.EnableTracing {
		tcfg := observability.DefaultConfig()
		tcfg.ServiceVersion = version
		tcfg.SampleRate = pf.Observability.TracingSampleRate
		if err := observability.Init(tcfg); err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	proc, err := buildProcess(pf)
	if err != nil {
		return fmt.Errorf("pipeline definition error: %w", err)
	}

	builder := pipeline.NewBuilder(pf.Name).
		Add(proc).
		WithConfig(&pf.PipelineConfig).
		WithLogger(log)

	if len(pf.Connections) > 0 {
		factory := clients.NewSQLFactory(pf.Connections, log)
		defer func() {
			if cerr := factory.Close(); cerr != nil {
				log.Warn("failed to close connections", zap.Error(cerr))
			}
		}()
		builder.WithConnectionFactory(factory)
	}

	pipe, err := builder.Build()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	log.Info("starting pipeline",
		zap.String("pipeline", pf.Name),
		zap.String("config", configFile),
		zap.String("source", pf.Process.Source.Connector),
		zap.String("sink", pf.Process.Sink.Connector),
		zap.Int("transforms", len(pf.Process.Transforms)))

	result := pipe.Execute(ctx)

	if pf.Observability.EnableTracing {
		if serr := observability.Shutdown(context.Background()); serr != nil {
			log.Warn("failed to shut down tracing", zap.Error(serr))
		}
	}

	printResult(result)
	if !result.Success {
		return fmt.Errorf("pipeline %s failed with %d error(s)", result.Pipeline, len(result.Errors))
	}
	return nil
}

// printResult writes the run report to stdout.
func printResult(res *pipeline.PipelineResult) {
	status := "succeeded"
	if !res.Success {
		status = "failed"
	}
	if res.Aborted() {
		status = fmt.Sprintf("aborted at %q", res.AbortedAt)
	}
	fmt.Printf("Pipeline %s %s in %s (run %s)\n",
		res.Pipeline, status, res.Elapsed.Round(time.Millisecond), res.RunID)

	for _, step := range res.Steps {
		mark := "ok"
		if !step.Success {
			mark = "failed"
		}
		fmt.Printf("  %-24s %-7s %s\n", step.Name, mark, step.Elapsed.Round(time.Millisecond))
	}
	for _, e := range res.Errors {
		fmt.Printf("  error in %s: %s\n", e.Operation, e.Error())
	}
}
