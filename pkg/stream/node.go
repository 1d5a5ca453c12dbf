package stream

import (
	"fmt"

	"github.com/prathamsinghrao/Etl-Lib/pkg/models"
	"github.com/prathamsinghrao/Etl-Lib/pkg/pipeline"
)

// Node is a unit of streaming work running on its own worker inside a
// Process. Run consumes the node's inputs and emits to its outputs until
// the work is done; it returns the first error that stopped the node.
type Node interface {
	Name() string
	Run(pctx *pipeline.Context) error
	Inputs() []*Adapter
	Outputs() []*Adapter
}

// EmitFunc delivers one record downstream, blocking while the output buffer
// is full.
type EmitFunc func(*models.Record) error

// SourceFunc is the body of a source node. It borrows records from the
// context's pool, fills them and emits them; returning ends the stream.
type SourceFunc func(pctx *pipeline.Context, emit EmitFunc) error

// TransformFunc processes one record. Returning the input passes it through,
// possibly mutated. Returning nil drops the input, which goes back to the
// pool. Returning a different record transfers that record downstream; the
// function is then responsible for returning the input to the pool.
type TransformFunc func(pctx *pipeline.Context, rec *models.Record) (*models.Record, error)

// SinkFunc consumes one record. The node returns every received record to
// the pool after the function ran, so implementations must not retain it.
type SinkFunc func(pctx *pipeline.Context, rec *models.Record) error

// FlushFunc finalizes a sink once its input stream has ended: flushing
// buffers, writing trailers, closing files or connections. It runs exactly
// once per Run, after the last record, whether the sink stopped cleanly or
// on an error.
type FlushFunc func(pctx *pipeline.Context) error

// Source produces records into one output adapter.
type Source struct {
	name string
	out  *Adapter
	fn   SourceFunc
}

// NewSource creates a source node around fn. The output adapter is bound
// when the node is added to a process.
func NewSource(name string, fn SourceFunc) *Source {
	return &Source{name: name, fn: fn}
}

// Name returns the node's name.
func (s *Source) Name() string { return s.name }

// Inputs returns nil; sources consume nothing.
func (s *Source) Inputs() []*Adapter { return nil }

// Outputs returns the bound output adapter.
func (s *Source) Outputs() []*Adapter { return []*Adapter{s.out} }

func (s *Source) bindOutput(a *Adapter) { s.out = a }

// Run produces records until fn returns, then the process wrapper signals
// the end of the output stream.
func (s *Source) Run(pctx *pipeline.Context) error {
	return s.fn(pctx, s.out.Emit)
}

// Transform consumes one input adapter and produces into one output adapter.
type Transform struct {
	name string
	in   *Adapter
	out  *Adapter
	fn   TransformFunc
}

// NewTransform creates a transform node around fn.
func NewTransform(name string, fn TransformFunc) *Transform {
	return &Transform{name: name, fn: fn}
}

// Name returns the node's name.
func (t *Transform) Name() string { return t.name }

// Inputs returns the bound input adapter.
func (t *Transform) Inputs() []*Adapter { return []*Adapter{t.in} }

// Outputs returns the bound output adapter.
func (t *Transform) Outputs() []*Adapter { return []*Adapter{t.out} }

func (t *Transform) bindInput(a *Adapter)  { t.in = a }
func (t *Transform) bindOutput(a *Adapter) { t.out = a }

// Run processes records until the input stream ends. A record-level error
// stops the node; the record that caused it goes back to the pool.
func (t *Transform) Run(pctx *pipeline.Context) error {
	for {
		rec, ok := t.in.Receive()
		if !ok {
			return nil
		}
		out, err := t.apply(pctx, rec)
		if err != nil {
			return err
		}
		if out == nil {
			pctx.ReturnRecord(rec)
			continue
		}
		if err := t.out.Emit(out); err != nil {
			pctx.ReturnRecord(out)
			return err
		}
	}
}

// apply runs fn with the record protected: a failing or panicking transform
// still returns its input to the pool.
func (t *Transform) apply(pctx *pipeline.Context, rec *models.Record) (out *models.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			pctx.ReturnRecord(rec)
		}
	}()
	return t.fn(pctx, rec)
}

// Sink consumes one input adapter and produces nothing.
type Sink struct {
	name  string
	in    *Adapter
	fn    SinkFunc
	flush FlushFunc
}

// NewSink creates a sink node around fn.
func NewSink(name string, fn SinkFunc) *Sink {
	return &Sink{name: name, fn: fn}
}

// NewSinkWithFlush creates a sink node whose flush hook runs after the input
// stream has ended. Buffering sinks use it to write out what they hold.
func NewSinkWithFlush(name string, fn SinkFunc, flush FlushFunc) *Sink {
	return &Sink{name: name, fn: fn, flush: flush}
}

// Name returns the node's name.
func (s *Sink) Name() string { return s.name }

// Inputs returns the bound input adapter.
func (s *Sink) Inputs() []*Adapter { return []*Adapter{s.in} }

// Outputs returns nil; sinks emit nothing.
func (s *Sink) Outputs() []*Adapter { return nil }

func (s *Sink) bindInput(a *Adapter) { s.in = a }

// Run consumes records until the input stream ends, returning each one to
// the pool after fn ran. An error from fn stops the node. The flush hook, if
// set, runs on every exit path; its error surfaces only when the loop itself
// ended cleanly.
func (s *Sink) Run(pctx *pipeline.Context) (err error) {
	defer func() {
		if s.flush == nil {
			return
		}
		if ferr := s.flush(pctx); ferr != nil && err == nil {
			err = ferr
		}
	}()
	for {
		rec, ok := s.in.Receive()
		if !ok {
			return nil
		}
		if err := s.consume(pctx, rec); err != nil {
			return err
		}
	}
}

// consume runs fn and returns the record to the pool whatever happened,
// panics included.
func (s *Sink) consume(pctx *pipeline.Context, rec *models.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		pctx.ReturnRecord(rec)
	}()
	return s.fn(pctx, rec)
}

// Merge funnels two input adapters into one output adapter, taking one
// record from each active input in turn. An input that reaches its end
// leaves the rotation; the survivor keeps delivering until it has ended
// too.
type Merge struct {
	name string
	ins  []*Adapter
	out  *Adapter
}

// NewMerge creates a merge node. Inputs and the output are bound when the
// node is added to a process.
func NewMerge(name string) *Merge {
	return &Merge{name: name}
}

// Name returns the node's name.
func (m *Merge) Name() string { return m.name }

// Inputs returns the bound input adapters in rotation order.
func (m *Merge) Inputs() []*Adapter {
	out := make([]*Adapter, len(m.ins))
	copy(out, m.ins)
	return out
}

// Outputs returns the bound output adapter.
func (m *Merge) Outputs() []*Adapter { return []*Adapter{m.out} }

func (m *Merge) bindInput(a *Adapter)  { m.ins = append(m.ins, a) }
func (m *Merge) bindOutput(a *Adapter) { m.out = a }

// Run rotates over the active inputs, forwarding one record per turn.
func (m *Merge) Run(pctx *pipeline.Context) error {
	active := make([]*Adapter, len(m.ins))
	copy(active, m.ins)

	i := 0
	for len(active) > 0 {
		if i >= len(active) {
			i = 0
		}
		rec, ok := active[i].Receive()
		if !ok {
			active = append(active[:i], active[i+1:]...)
			continue
		}
		if err := m.out.Emit(rec); err != nil {
			pctx.ReturnRecord(rec)
			return err
		}
		i++
	}
	return nil
}
