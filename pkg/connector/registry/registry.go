// Package registry manages connector registration and lookup. Connector
// packages register themselves from init, so importing a connector package
// is all it takes to make its type available to pipeline builders and the
// CLI catalog.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/prathamsinghrao/Etl-Lib/pkg/errors"
	"github.com/prathamsinghrao/Etl-Lib/pkg/stream"
)

// SourceFactory builds a source node from connector properties. The name
// becomes the node name inside the process.
type SourceFactory func(name string, props map[string]interface{}) (*stream.Source, error)

// SinkFactory builds a sink node from connector properties.
type SinkFactory func(name string, props map[string]interface{}) (*stream.Sink, error)

// Info describes one connector for the catalog.
type Info struct {
	// Name is the type name used in pipeline configurations
	Name string `json:"name"`
	// Kind is "source" or "sink"
	Kind string `json:"kind"`
	// Description is a one-line summary for the CLI listing
	Description string `json:"description"`
	// Properties maps property names to short descriptions
	Properties map[string]string `json:"properties,omitempty"`
}

// Registry holds connector factories and catalog entries.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]SourceFactory
	sinks   map[string]SinkFactory
	infos   map[string]*Info
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]SourceFactory),
		sinks:   make(map[string]SinkFactory),
		infos:   make(map[string]*Info),
	}
}

// RegisterSource registers a source factory under a type name.
func (r *Registry) RegisterSource(name string, factory SourceFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "source connector %q already registered", name)
	}
	r.sources[name] = factory
	return nil
}

// RegisterSink registers a sink factory under a type name.
func (r *Registry) RegisterSink(name string, factory SinkFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sinks[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "sink connector %q already registered", name)
	}
	r.sinks[name] = factory
	return nil
}

// RegisterInfo adds a catalog entry for a connector. Entries are keyed by
// kind and name together, so a source and a sink may share a type name.
func (r *Registry) RegisterInfo(info *Info) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := info.Kind + "/" + info.Name
	if _, exists := r.infos[key]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "connector %s already in catalog", key)
	}
	r.infos[key] = info
	return nil
}

// NewSourceNode builds a source node of the given connector type.
func (r *Registry) NewSourceNode(connectorType, name string, props map[string]interface{}) (*stream.Source, error) {
	r.mu.RLock()
	factory, exists := r.sources[connectorType]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown source connector %q", connectorType)
	}
	src, err := factory(name, props)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig,
			fmt.Sprintf("failed to build source connector %q", connectorType))
	}
	return src, nil
}

// NewSinkNode builds a sink node of the given connector type.
func (r *Registry) NewSinkNode(connectorType, name string, props map[string]interface{}) (*stream.Sink, error) {
	r.mu.RLock()
	factory, exists := r.sinks[connectorType]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown sink connector %q", connectorType)
	}
	sink, err := factory(name, props)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig,
			fmt.Sprintf("failed to build sink connector %q", connectorType))
	}
	return sink, nil
}

// ListSources returns registered source type names, sorted.
func (r *Registry) ListSources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListSinks returns registered sink type names, sorted.
func (r *Registry) ListSinks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sinks))
	for name := range r.sinks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListInfo returns all catalog entries sorted by kind then name.
func (r *Registry) ListInfo() []*Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]*Info, 0, len(r.infos))
	for _, info := range r.infos {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Kind != infos[j].Kind {
			return infos[i].Kind < infos[j].Kind
		}
		return infos[i].Name < infos[j].Name
	})
	return infos
}

// HasSource reports whether a source type is registered.
func (r *Registry) HasSource(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.sources[name]
	return exists
}

// HasSink reports whether a sink type is registered.
func (r *Registry) HasSink(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.sinks[name]
	return exists
}

// Clear removes all registrations, mainly for tests.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sources = make(map[string]SourceFactory)
	r.sinks = make(map[string]SinkFactory)
	r.infos = make(map[string]*Info)
}

var globalRegistry = NewRegistry()

// Default returns the global registry instance.
func Default() *Registry {
	return globalRegistry
}

// RegisterSource registers a source factory in the global registry.
func RegisterSource(name string, factory SourceFactory) error {
	return globalRegistry.RegisterSource(name, factory)
}

// RegisterSink registers a sink factory in the global registry.
func RegisterSink(name string, factory SinkFactory) error {
	return globalRegistry.RegisterSink(name, factory)
}

// RegisterInfo adds a catalog entry to the global registry.
func RegisterInfo(info *Info) error {
	return globalRegistry.RegisterInfo(info)
}

// NewSourceNode builds a source node from the global registry.
func NewSourceNode(connectorType, name string, props map[string]interface{}) (*stream.Source, error) {
	return globalRegistry.NewSourceNode(connectorType, name, props)
}

// NewSinkNode builds a sink node from the global registry.
func NewSinkNode(connectorType, name string, props map[string]interface{}) (*stream.Sink, error) {
	return globalRegistry.NewSinkNode(connectorType, name, props)
}

// ListSources returns source type names from the global registry.
func ListSources() []string {
	return globalRegistry.ListSources()
}

// ListSinks returns sink type names from the global registry.
func ListSinks() []string {
	return globalRegistry.ListSinks()
}

// ListInfo returns catalog entries from the global registry.
func ListInfo() []*Info {
	return globalRegistry.ListInfo()
}

// HasSource reports whether the global registry has a source type.
func HasSource(name string) bool {
	return globalRegistry.HasSource(name)
}

// HasSink reports whether the global registry has a sink type.
func HasSink(name string) bool {
	return globalRegistry.HasSink(name)
}
