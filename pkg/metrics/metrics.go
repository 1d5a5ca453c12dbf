// Package metrics exposes Prometheus collectors for pipeline executions,
// steps, stream nodes and object pools. Collectors are registered with the
// default registry on package init; serving them is the embedding
// application's concern.
//
// # Basic Usage
//
//	// Count a finished run
//	metrics.PipelineRuns.WithLabelValues("daily-load", "success").Inc()
//
//	// Track step latency
//	timer := metrics.NewTimer()
//	step.Execute(pctx)
//	metrics.StepDuration.WithLabelValues("daily-load", "extract").
//	    Observe(timer.Stop().Seconds())
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineRuns counts finished pipeline executions.
	// Labels: pipeline, status (success/failure/aborted)
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_pipeline_runs_total",
			Help: "Total number of finished pipeline executions",
		},
		[]string{"pipeline", "status"},
	)

	// PipelineDuration tracks wall-clock execution time per pipeline.
	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "etl_pipeline_duration_seconds",
			Help:    "Pipeline execution duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"pipeline"},
	)

	// StepDuration tracks wall-clock execution time per pipeline step.
	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "etl_step_duration_seconds",
			Help:    "Step execution duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"pipeline", "step"},
	)

	// OperationErrors counts faults captured during execution.
	// Labels: pipeline, operation (the identity carried by the error)
	OperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_operation_errors_total",
			Help: "Total number of captured operation errors",
		},
		[]string{"pipeline", "operation"},
	)

	// RecordsStreamed counts records that passed through a stream adapter.
	// Labels: process, adapter
	RecordsStreamed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_records_streamed_total",
			Help: "Total number of records streamed through an adapter",
		},
		[]string{"process", "adapter"},
	)

	// PoolInUse tracks currently borrowed instances per object pool.
	PoolInUse = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "etl_pool_in_use",
			Help: "Number of pool instances currently borrowed",
		},
		[]string{"pool"},
	)

	// PoolExhaustions counts failed borrows on fixed-capacity pools.
	PoolExhaustions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_pool_exhaustions_total",
			Help: "Total number of borrow attempts that found the pool empty",
		},
		[]string{"pool"},
	)

	// QueueDepth tracks buffered records per stream adapter.
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "etl_queue_depth",
			Help: "Current number of records buffered in a stream adapter",
		},
		[]string{"process", "adapter"},
	)
)

// RunStatus converts an execution outcome into the label value used by
// PipelineRuns.
func RunStatus(success, aborted bool) string {
	switch {
	case aborted:
		return "aborted"
	case success:
		return "success"
	default:
		return "failure"
	}
}

// Timer measures the elapsed time of one operation.
type Timer struct {
	start time.Time
}

// NewTimer starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed time since the timer was created. Calling Stop
// again returns the new total.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
