package stream

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/prathamsinghrao/Etl-Lib/pkg/errors"
	"github.com/prathamsinghrao/Etl-Lib/pkg/metrics"
	"github.com/prathamsinghrao/Etl-Lib/pkg/pipeline"
)

// DefaultQueueCapacity is the adapter buffer size used when a process does
// not configure its own.
const DefaultQueueCapacity = 64

// ProcessBuilder wires nodes and adapters into a Process. Adapters are
// referred to by name; the builder creates each one on first reference and
// validates the wiring at Build. A builder is single-use.
type ProcessBuilder struct {
	name      string
	capacity  int
	nodes     []wiredNode
	binds     []func(get func(string) *Adapter)
	producers map[string]int
	consumers map[string]int
	sources   int
	merges    int
	sinks     int
	built     bool
	err       error
}

// wiredNode pairs a node with the adapter names it consumes and produces.
type wiredNode struct {
	node    Node
	inputs  []string
	outputs []string
}

// NewProcessBuilder starts a process definition with the given name.
func NewProcessBuilder(name string) *ProcessBuilder {
	return &ProcessBuilder{
		name:      name,
		capacity:  DefaultQueueCapacity,
		producers: make(map[string]int),
		consumers: make(map[string]int),
	}
}

// WithQueueCapacity sets the buffer capacity of every adapter in this
// process.
func (b *ProcessBuilder) WithQueueCapacity(n int) *ProcessBuilder {
	b.capacity = n
	return b
}

// AddSource adds a source node emitting into the named adapter.
func (b *ProcessBuilder) AddSource(src *Source, output string) *ProcessBuilder {
	if src == nil {
		return b.fail("source node is nil")
	}
	b.nodes = append(b.nodes, wiredNode{node: src, outputs: []string{output}})
	b.sources++
	b.producers[output]++
	b.binds = append(b.binds, func(get func(string) *Adapter) {
		src.bindOutput(get(output))
	})
	return b
}

// AddTransform adds a transform node consuming the input adapter and
// emitting into the output adapter.
func (b *ProcessBuilder) AddTransform(t *Transform, input, output string) *ProcessBuilder {
	if t == nil {
		return b.fail("transform node is nil")
	}
	b.nodes = append(b.nodes, wiredNode{node: t, inputs: []string{input}, outputs: []string{output}})
	b.consumers[input]++
	b.producers[output]++
	b.binds = append(b.binds, func(get func(string) *Adapter) {
		t.bindInput(get(input))
		t.bindOutput(get(output))
	})
	return b
}

// AddSink adds a sink node consuming the named adapter.
func (b *ProcessBuilder) AddSink(s *Sink, input string) *ProcessBuilder {
	if s == nil {
		return b.fail("sink node is nil")
	}
	b.nodes = append(b.nodes, wiredNode{node: s, inputs: []string{input}})
	b.sinks++
	b.consumers[input]++
	b.binds = append(b.binds, func(get func(string) *Adapter) {
		s.bindInput(get(input))
	})
	return b
}

// AddMerge adds a merge node funneling the two input adapters, in the given
// rotation order, into the output adapter.
func (b *ProcessBuilder) AddMerge(m *Merge, output string, inputs ...string) *ProcessBuilder {
	if m == nil {
		return b.fail("merge node is nil")
	}
	if len(inputs) != 2 {
		return b.fail("merge node %q joins exactly two inputs, got %d", m.Name(), len(inputs))
	}
	b.nodes = append(b.nodes, wiredNode{node: m, inputs: inputs, outputs: []string{output}})
	b.merges++
	b.producers[output]++
	for _, in := range inputs {
		b.consumers[in]++
	}
	b.binds = append(b.binds, func(get func(string) *Adapter) {
		for _, in := range inputs {
			m.bindInput(get(in))
		}
		m.bindOutput(get(output))
	})
	return b
}

func (b *ProcessBuilder) fail(format string, args ...interface{}) *ProcessBuilder {
	if b.err == nil {
		b.err = errors.Newf(errors.ErrorTypeValidation, format, args...)
	}
	return b
}

// Build validates the wiring and returns the process. A process reads from
// exactly one source, or from two sources funneled through one merge, and
// drains into at least one sink. Every adapter must have exactly one
// producer and at least one consumer, node names must be unique, and the
// wiring must be acyclic so every stream can end.
func (b *ProcessBuilder) Build() (*Process, error) {
	if b.built {
		return nil, errors.NewValidation("process builder is single-use, create a new one")
	}
	if b.err != nil {
		return nil, b.err
	}
	if b.name == "" {
		return nil, errors.NewValidation("process name must not be empty")
	}
	if len(b.nodes) == 0 {
		return nil, errors.NewValidation("process requires at least one node")
	}
	if b.capacity < 1 {
		return nil, errors.Newf(errors.ErrorTypeValidation,
			"queue capacity must be at least 1, got %d", b.capacity)
	}

	seen := make(map[string]struct{}, len(b.nodes))
	for _, w := range b.nodes {
		if w.node.Name() == "" {
			return nil, errors.NewValidation("every node requires a name")
		}
		if _, dup := seen[w.node.Name()]; dup {
			return nil, errors.Newf(errors.ErrorTypeValidation,
				"duplicate node name %q", w.node.Name())
		}
		seen[w.node.Name()] = struct{}{}
	}

	if b.sources == 0 {
		return nil, errors.NewValidation("process requires a source")
	}
	if b.sinks == 0 {
		return nil, errors.NewValidation("process requires at least one sink")
	}

	for name, count := range b.producers {
		if name == "" {
			return nil, errors.NewValidation("adapter name must not be empty")
		}
		if count > 1 {
			return nil, errors.Newf(errors.ErrorTypeValidation,
				"adapter %q has %d producers, exactly one is required", name, count)
		}
		if b.consumers[name] == 0 {
			return nil, errors.Newf(errors.ErrorTypeValidation,
				"adapter %q has no consumer", name)
		}
	}
	for name := range b.consumers {
		if b.producers[name] == 0 {
			return nil, errors.Newf(errors.ErrorTypeValidation,
				"adapter %q has no producer", name)
		}
	}

	switch {
	case b.merges == 0 && b.sources > 1:
		return nil, errors.Newf(errors.ErrorTypeValidation,
			"%d sources need a merge to join them", b.sources)
	case b.merges > 1:
		return nil, errors.Newf(errors.ErrorTypeValidation,
			"process supports a single merge, got %d", b.merges)
	case b.merges == 1 && b.sources != 2:
		return nil, errors.Newf(errors.ErrorTypeValidation,
			"a merge joins exactly two sources, got %d", b.sources)
	}

	if err := b.checkAcyclic(); err != nil {
		return nil, err
	}

	adapters := make(map[string]*Adapter)
	var buildErr error
	get := func(name string) *Adapter {
		if a, ok := adapters[name]; ok {
			return a
		}
		a, err := NewAdapter(b.name, name, b.capacity)
		if err != nil && buildErr == nil {
			buildErr = err
		}
		adapters[name] = a
		return a
	}
	for _, bind := range b.binds {
		bind(get)
	}
	if buildErr != nil {
		return nil, buildErr
	}

	nodes := make([]Node, len(b.nodes))
	for i, w := range b.nodes {
		nodes[i] = w.node
	}
	b.built = true
	return &Process{name: b.name, nodes: nodes, adapters: adapters}, nil
}

// checkAcyclic verifies the stream can drain. A node ends only after the
// producer of each of its inputs has ended; sources end on their own. Any
// node the propagation never marks sits on a cycle, or behind one, and its
// end-of-stream would never come.
func (b *ProcessBuilder) checkAcyclic() error {
	producer := make(map[string]int, len(b.producers))
	for i, w := range b.nodes {
		for _, out := range w.outputs {
			producer[out] = i
		}
	}
	ended := make([]bool, len(b.nodes))
	for changed := true; changed; {
		changed = false
		for i, w := range b.nodes {
			if ended[i] {
				continue
			}
			done := true
			for _, in := range w.inputs {
				if !ended[producer[in]] {
					done = false
					break
				}
			}
			if done {
				ended[i] = true
				changed = true
			}
		}
	}
	for i, w := range b.nodes {
		if !ended[i] {
			return errors.Newf(errors.ErrorTypeValidation,
				"node %q is wired into a cycle", w.node.Name())
		}
	}
	return nil
}

// Process runs a graph of streaming nodes as one pipeline operation. Every
// node gets its own worker; the process finishes when all of them have.
// A node failure never cancels its siblings: the failed node signals the
// end of its outputs and drains its inputs back to the record pool, so the
// rest of the graph runs to its natural end.
//
// A process executes once: its adapters deliver end-of-stream exactly once
// and stay ended. Build a new process for every run.
type Process struct {
	name     string
	nodes    []Node
	adapters map[string]*Adapter
}

// Name returns the process's identity.
func (p *Process) Name() string { return p.name }

// AdapterNames returns the names of the process's adapters, sorted.
func (p *Process) AdapterNames() []string {
	names := make([]string, 0, len(p.adapters))
	for name := range p.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs every node to completion and aggregates node errors in
// completion order. The error policy is consulted once with everything
// that failed; on abort the process's own name is the abort identity.
func (p *Process) Execute(pctx *pipeline.Context) pipeline.Result {
	log := pctx.Logger("stream")
	log.Info("process starting",
		zap.String("process", p.name),
		zap.Int("nodes", len(p.nodes)))
	timer := metrics.NewTimer()

	var (
		mu   sync.Mutex
		errs []*errors.Error
	)
	var wg conc.WaitGroup
	for _, n := range p.nodes {
		n := n
		wg.Go(func() {
			if err := p.runNode(pctx, n); err != nil {
				e := errors.AsExecution(n.Name(), err)
				mu.Lock()
				errs = append(errs, e)
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	if len(errs) == 0 {
		log.Info("process finished",
			zap.String("process", p.name),
			zap.Duration("elapsed", timer.Stop()))
		return pipeline.Result{Success: true}
	}

	res := pipeline.Result{Success: false, Errors: errs}
	if !pctx.ShouldContinue(errs) {
		res.AbortedAt = p.name
		log.Error("process failed, aborting",
			zap.String("process", p.name),
			zap.Int("errors", len(errs)))
	} else {
		log.Warn("process failed, continuing",
			zap.String("process", p.name),
			zap.Int("errors", len(errs)))
	}
	return res
}

// runNode executes one node and enforces the termination protocol: outputs
// are end-signaled no matter how the node stopped, and a failed node drains
// its inputs so upstream emitters never block forever.
func (p *Process) runNode(pctx *pipeline.Context, n Node) (err error) {
	log := pctx.Logger("stream")
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
		for _, out := range n.Outputs() {
			if out != nil {
				out.SignalEnd()
			}
		}
		if err != nil {
			log.Warn("node failed",
				zap.String("process", p.name),
				zap.String("node", n.Name()),
				zap.Error(err))
			p.drainInputs(pctx, n)
		}
	}()

	log.Debug("node starting",
		zap.String("process", p.name),
		zap.String("node", n.Name()))
	return n.Run(pctx)
}

// drainInputs consumes whatever is still flowing into a failed node and
// returns it to the record pool.
func (p *Process) drainInputs(pctx *pipeline.Context, n Node) {
	for _, in := range n.Inputs() {
		if in == nil {
			continue
		}
		for {
			rec, ok := in.Receive()
			if !ok {
				break
			}
			pctx.ReturnRecord(rec)
		}
	}
}
