package pipeline

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shirou/gopsutil/v3/process"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/prathamsinghrao/Etl-Lib/pkg/config"
	"github.com/prathamsinghrao/Etl-Lib/pkg/errors"
	"github.com/prathamsinghrao/Etl-Lib/pkg/metrics"
	"github.com/prathamsinghrao/Etl-Lib/pkg/observability"
)

// StepResult reports how one top-level step fared.
type StepResult struct {
	Name      string
	Success   bool
	Elapsed   time.Duration
	Errors    []*errors.Error
	AbortedAt string
}

// PipelineResult is the complete report of one execution: overall outcome,
// wall-clock time, every captured error in completion order, the abort
// identity if the run stopped early, and a per-step breakdown.
type PipelineResult struct {
	Pipeline  string
	RunID     string
	Success   bool
	Elapsed   time.Duration
	Errors    []*errors.Error
	AbortedAt string
	Steps     []StepResult
}

// Aborted reports whether the run stopped before executing every step.
func (r *PipelineResult) Aborted() bool {
	return r.AbortedAt != ""
}

// Builder assembles a Pipeline. Construction is the only mutable phase;
// Build validates the definition and returns an immutable Pipeline that can
// be executed any number of times.
type Builder struct {
	name        string
	steps       []Operation
	policy      ErrorPolicy
	cfg         *config.PipelineConfig
	logger      *zap.Logger
	clk         clock.Clock
	connections ConnectionFactory
}

// NewBuilder starts a pipeline definition with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// Add appends a step. Steps run in the order they were added.
func (b *Builder) Add(op Operation) *Builder {
	b.steps = append(b.steps, op)
	return b
}

// OnError sets the error policy consulted after every captured fault.
// Without one, the policy follows the engine configuration.
func (b *Builder) OnError(policy ErrorPolicy) *Builder {
	b.policy = policy
	return b
}

// WithConfig attaches a pipeline configuration. Build validates it.
func (b *Builder) WithConfig(cfg *config.PipelineConfig) *Builder {
	b.cfg = cfg
	return b
}

// WithLogger sets the logger used by the engine and handed to operations.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the engine clock. Tests use a mock clock to make
// elapsed times deterministic.
func (b *Builder) WithClock(clk clock.Clock) *Builder {
	b.clk = clk
	return b
}

// WithConnectionFactory sets the factory operations resolve named
// connections through.
func (b *Builder) WithConnectionFactory(factory ConnectionFactory) *Builder {
	b.connections = factory
	return b
}

// Build validates the definition and returns the executable pipeline.
// Definition problems are validation errors raised here, before any step
// has run.
func (b *Builder) Build() (*Pipeline, error) {
	if b.name == "" {
		return nil, errors.NewValidation("pipeline name must not be empty")
	}
	if len(b.steps) == 0 {
		return nil, errors.NewValidation("pipeline requires at least one step")
	}
	seen := make(map[string]struct{}, len(b.steps))
	for i, op := range b.steps {
		if op == nil {
			return nil, errors.Newf(errors.ErrorTypeValidation, "step %d is nil", i)
		}
		name := op.Name()
		if name == "" {
			return nil, errors.Newf(errors.ErrorTypeValidation, "step %d has an empty name", i)
		}
		if _, dup := seen[name]; dup {
			return nil, errors.Newf(errors.ErrorTypeValidation, "duplicate step name %q", name)
		}
		seen[name] = struct{}{}
	}

	cfg := b.cfg
	if cfg == nil {
		cfg = config.New(b.name)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	policy := b.policy
	if policy == nil {
		if cfg.Engine.ContinueOnError {
			policy = ContinueOnError()
		} else {
			policy = AbortOnError()
		}
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	clk := b.clk
	if clk == nil {
		clk = clock.New()
	}

	steps := make([]Operation, len(b.steps))
	copy(steps, b.steps)

	return &Pipeline{
		name:        b.name,
		steps:       steps,
		policy:      policy,
		cfg:         cfg,
		logger:      logger,
		clk:         clk,
		connections: b.connections,
	}, nil
}

// Pipeline is an immutable, reusable execution plan. Nothing runs at build
// time; Execute creates a fresh context and walks the steps.
type Pipeline struct {
	name        string
	steps       []Operation
	policy      ErrorPolicy
	cfg         *config.PipelineConfig
	logger      *zap.Logger
	clk         clock.Clock
	connections ConnectionFactory
}

// Name returns the pipeline's name.
func (p *Pipeline) Name() string {
	return p.name
}

// StepNames returns the names of the steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, op := range p.steps {
		names[i] = op.Name()
	}
	return names
}

// Execute runs every step in order against a fresh execution context and
// returns the complete report. Execute never returns a Go error: faults,
// including aborts, travel inside the result.
func (p *Pipeline) Execute(ctx context.Context) *PipelineResult {
	start := p.clk.Now()
	ctx, span := observability.StartSpan(ctx, "pipeline.execute",
		trace.WithAttributes(attribute.String("pipeline", p.name)))
	defer span.End()

	result := &PipelineResult{Pipeline: p.name, Success: true}

	pctx, err := NewContext(
		WithContext(ctx),
		WithLogger(p.logger),
		WithErrorPolicy(p.policy),
		WithConnectionFactory(p.connections),
		WithProperties(p.cfg.Properties),
		WithRecordPool(p.cfg.Pool.InitialSize, p.cfg.Pool.AutoGrow, p.cfg.Pool.Tracking),
	)
	if err != nil {
		result.Success = false
		result.Errors = append(result.Errors, errors.AsExecution(p.name, err))
		result.Elapsed = p.clk.Since(start)
		return result
	}
	defer pctx.Close()
	result.RunID = pctx.ID()

	log := p.logger.Named("engine")
	log.Info("pipeline execution starting",
		zap.String("pipeline", p.name),
		zap.String("run_id", result.RunID),
		zap.Int("steps", len(p.steps)))

	for _, step := range p.steps {
		sr := p.runStep(pctx, step)
		result.Steps = append(result.Steps, sr)
		result.Success = result.Success && sr.Success
		result.Errors = append(result.Errors, sr.Errors...)
		if sr.AbortedAt != "" {
			result.AbortedAt = sr.AbortedAt
			log.Warn("pipeline aborted",
				zap.String("pipeline", p.name),
				zap.String("aborted_at", sr.AbortedAt))
			break
		}
	}

	result.Elapsed = p.clk.Since(start)
	if !result.Success && len(result.Errors) > 0 {
		observability.RecordResult(span, result.Errors[0])
	} else {
		observability.RecordResult(span, nil)
	}
	metrics.PipelineRuns.WithLabelValues(p.name,
		metrics.RunStatus(result.Success, result.Aborted())).Inc()
	metrics.PipelineDuration.WithLabelValues(p.name).Observe(result.Elapsed.Seconds())

	log.Info("pipeline execution finished",
		zap.String("pipeline", p.name),
		zap.String("run_id", result.RunID),
		zap.Bool("success", result.Success),
		zap.Duration("elapsed", result.Elapsed),
		zap.Int("errors", len(result.Errors)))
	return result
}

func (p *Pipeline) runStep(pctx *Context, step Operation) StepResult {
	_, span := observability.StartSpan(pctx.Context(), "pipeline.step",
		trace.WithAttributes(
			attribute.String("pipeline", p.name),
			attribute.String("step", step.Name())))
	defer span.End()

	stepStart := p.clk.Now()
	res := safeExecute(pctx, step)
	elapsed := p.clk.Since(stepStart)
	if !res.Success && len(res.Errors) > 0 {
		observability.RecordResult(span, res.Errors[0])
	} else {
		observability.RecordResult(span, nil)
	}

	p.release(pctx, step)
	if p.cfg.Engine.MemoryReclaim {
		p.reclaimMemory()
	}

	for _, e := range res.Errors {
		metrics.OperationErrors.WithLabelValues(p.name, e.Operation).Inc()
	}
	metrics.StepDuration.WithLabelValues(p.name, step.Name()).Observe(elapsed.Seconds())

	return StepResult{
		Name:      step.Name(),
		Success:   res.Success,
		Elapsed:   elapsed,
		Errors:    res.Errors,
		AbortedAt: res.AbortedAt,
	}
}

// release disposes a step's resources after it finishes. Release failures
// are logged and never alter the step's result.
func (p *Pipeline) release(pctx *Context, step Operation) {
	rel, ok := step.(Releasable)
	if !ok {
		return
	}
	if err := rel.Release(pctx); err != nil {
		p.logger.Named("engine").Warn("step release failed",
			zap.String("step", step.Name()),
			zap.Error(err))
	}
}

// reclaimMemory hints the runtime to collect garbage between steps and logs
// the resident set before and after. Steps that churn through large record
// batches benefit; everything else pays one GC cycle.
func (p *Pipeline) reclaimMemory() {
	proc, err := process.NewProcess(int32(os.Getpid()))
	var before uint64
	if err == nil {
		if mi, merr := proc.MemoryInfo(); merr == nil {
			before = mi.RSS
		}
	}

	runtime.GC()

	var after uint64
	if err == nil {
		if mi, merr := proc.MemoryInfo(); merr == nil {
			after = mi.RSS
		}
	}
	p.logger.Named("engine").Debug("memory reclaim hint",
		zap.Uint64("rss_before_bytes", before),
		zap.Uint64("rss_after_bytes", after))
}
