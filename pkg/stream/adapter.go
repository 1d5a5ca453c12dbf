package stream

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/prathamsinghrao/Etl-Lib/pkg/errors"
	"github.com/prathamsinghrao/Etl-Lib/pkg/metrics"
	"github.com/prathamsinghrao/Etl-Lib/pkg/models"
)

// Adapter is the bounded queue connecting one producing node to its
// consumers. Emit blocks while the buffer is full, which is the only
// backpressure mechanism between nodes. End of stream is signaled exactly
// once; consumers drain whatever is still buffered and then see the end.
//
// Multiple consumers may receive from the same adapter; each record goes to
// exactly one of them.
type Adapter struct {
	process  string
	name     string
	ch       chan *models.Record
	done     chan struct{}
	once     sync.Once
	streamed prometheus.Counter
	depth    prometheus.Gauge
}

// NewAdapter creates an adapter with the given buffer capacity. The process
// name scopes the adapter's metrics.
func NewAdapter(process, name string, capacity int) (*Adapter, error) {
	if name == "" {
		return nil, errors.NewValidation("adapter name must not be empty")
	}
	if capacity < 1 {
		return nil, errors.Newf(errors.ErrorTypeValidation,
			"adapter %q requires a capacity of at least 1, got %d", name, capacity)
	}
	return &Adapter{
		process:  process,
		name:     name,
		ch:       make(chan *models.Record, capacity),
		done:     make(chan struct{}),
		streamed: metrics.RecordsStreamed.WithLabelValues(process, name),
		depth:    metrics.QueueDepth.WithLabelValues(process, name),
	}, nil
}

// Name returns the adapter's name within its process.
func (a *Adapter) Name() string {
	return a.name
}

// Capacity returns the buffer capacity.
func (a *Adapter) Capacity() int {
	return cap(a.ch)
}

// Depth returns the number of records currently buffered.
func (a *Adapter) Depth() int {
	return len(a.ch)
}

// Emit hands a record to the adapter, blocking while the buffer is full.
// Emitting after SignalEnd is a programming fault and returns an execution
// error instead of delivering the record.
func (a *Adapter) Emit(r *models.Record) error {
	if r == nil {
		return errors.Newf(errors.ErrorTypeExecution,
			"adapter %q: emit of a nil record", a.name)
	}
	select {
	case <-a.done:
		return a.endedError()
	default:
	}
	select {
	case a.ch <- r:
		a.streamed.Inc()
		a.depth.Set(float64(len(a.ch)))
		return nil
	case <-a.done:
		return a.endedError()
	}
}

// Receive takes the next record, blocking until one is available or the
// stream has ended and the buffer is drained. The second return value is
// false only at end of stream.
func (a *Adapter) Receive() (*models.Record, bool) {
	select {
	case r := <-a.ch:
		a.depth.Set(float64(len(a.ch)))
		return r, true
	case <-a.done:
	}
	// The stream has ended; whatever is still buffered must be delivered
	// before reporting the end.
	select {
	case r := <-a.ch:
		a.depth.Set(float64(len(a.ch)))
		return r, true
	default:
		return nil, false
	}
}

// SignalEnd marks the end of the stream. The first call wins; further calls
// are no-ops.
func (a *Adapter) SignalEnd() {
	a.once.Do(func() {
		close(a.done)
	})
}

// Ended reports whether the end of the stream has been signaled. Buffered
// records may still be waiting for consumers.
func (a *Adapter) Ended() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

func (a *Adapter) endedError() *errors.Error {
	return errors.New(errors.ErrorTypeExecution,
		fmt.Sprintf("adapter %q: emit after end of stream", a.name))
}
