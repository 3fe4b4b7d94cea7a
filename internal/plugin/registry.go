// Package plugin implements the Plugin Factory (C1): a registry of
// (name, kind) -> constructor + capability flags, and the multiplicity rule
// that turns a processor PluginSpec into one shared instance or N per-worker
// instances.
package plugin

import (
	"github.com/finnroblin/data-prepper/internal/component"
	"github.com/finnroblin/data-prepper/internal/topology"
)

type SourceConstructor func(spec topology.PluginSpec) (component.Source, error)
type BufferConstructor func(spec topology.PluginSpec) (component.Buffer, error)
type ProcessorConstructor func(spec topology.PluginSpec) (component.Processor, error)
type SinkConstructor func(spec topology.PluginSpec) (component.Sink, error)

type processorEntry struct {
	constructor  ProcessorConstructor
	capabilities component.Capability
}

// Registry is the concrete Plugin Factory: one map per kind, keyed by
// plugin name.
type Registry struct {
	sources    map[string]SourceConstructor
	buffers    map[string]BufferConstructor
	processors map[string]processorEntry
	sinks      map[string]SinkConstructor
}

// NewRegistry returns an empty registry ready for plugin packages to
// register into via their Register(reg) functions.
func NewRegistry() *Registry {
	return &Registry{
		sources:    map[string]SourceConstructor{},
		buffers:    map[string]BufferConstructor{},
		processors: map[string]processorEntry{},
		sinks:      map[string]SinkConstructor{},
	}
}

func (r *Registry) RegisterSource(name string, c SourceConstructor) { r.sources[name] = c }
func (r *Registry) RegisterBuffer(name string, c BufferConstructor) { r.buffers[name] = c }
func (r *Registry) RegisterSink(name string, c SinkConstructor)     { r.sinks[name] = c }

// RegisterProcessor registers a processor constructor along with the
// capability flags its type declares.
func (r *Registry) RegisterProcessor(name string, caps component.Capability, c ProcessorConstructor) {
	r.processors[name] = processorEntry{constructor: c, capabilities: caps}
}

// ProcessorCapabilities reports the capability flags a registered processor
// type declares, used by the builder to decide whether to apply the
// peer-forwarding decorator.
func (r *Registry) ProcessorCapabilities(name string) (component.Capability, bool) {
	e, ok := r.processors[name]
	return e.capabilities, ok
}

func (r *Registry) LoadSource(pipeline string, spec topology.PluginSpec) (component.Source, error) {
	c, ok := r.sources[spec.Name]
	if !ok {
		return nil, &component.PluginLoadError{Kind: component.KindSource, Name: spec.Name, Pipeline: pipeline, Cause: errUnknownPlugin(spec.Name)}
	}
	inst, err := c(spec)
	if err != nil {
		return nil, &component.PluginLoadError{Kind: component.KindSource, Name: spec.Name, Pipeline: pipeline, Cause: err}
	}
	return inst, nil
}

func (r *Registry) LoadBuffer(pipeline string, spec topology.PluginSpec) (component.Buffer, error) {
	c, ok := r.buffers[spec.Name]
	if !ok {
		return nil, &component.PluginLoadError{Kind: component.KindBuffer, Name: spec.Name, Pipeline: pipeline, Cause: errUnknownPlugin(spec.Name)}
	}
	inst, err := c(spec)
	if err != nil {
		return nil, &component.PluginLoadError{Kind: component.KindBuffer, Name: spec.Name, Pipeline: pipeline, Cause: err}
	}
	return inst, nil
}

func (r *Registry) LoadSink(pipeline string, spec topology.PluginSpec) (component.Sink, error) {
	c, ok := r.sinks[spec.Name]
	if !ok {
		return nil, &component.PluginLoadError{Kind: component.KindSink, Name: spec.Name, Pipeline: pipeline, Cause: errUnknownPlugin(spec.Name)}
	}
	inst, err := c(spec)
	if err != nil {
		return nil, &component.PluginLoadError{Kind: component.KindSink, Name: spec.Name, Pipeline: pipeline, Cause: err}
	}
	return inst, nil
}

// LoadProcessorStage realizes one processor stage per the multiplicity rule
//: workers instances if the type declares single-thread affinity,
// otherwise exactly one shared instance. Either every instance is produced
// or none is — a failure partway through discards everything built so far.
func (r *Registry) LoadProcessorStage(pipeline string, spec topology.PluginSpec, workers int) ([]component.Processor, error) {
	entry, ok := r.processors[spec.Name]
	if !ok {
		return nil, &component.PluginLoadError{Kind: component.KindProcessor, Name: spec.Name, Pipeline: pipeline, Cause: errUnknownPlugin(spec.Name)}
	}

	count := 1
	if entry.capabilities.Has(component.CapSingleThread) {
		count = workers
	}

	instances := make([]component.Processor, 0, count)
	for i := 0; i < count; i++ {
		inst, err := entry.constructor(spec)
		if err != nil {
			return nil, &component.PluginLoadError{Kind: component.KindProcessor, Name: spec.Name, Pipeline: pipeline, Cause: err}
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

type unknownPluginError struct{ name string }

func (e *unknownPluginError) Error() string { return "unknown plugin: " + e.name }

func errUnknownPlugin(name string) error { return &unknownPluginError{name: name} }
