// Package build implements the Pipeline Builder (C6): it walks the
// validator's topological order, recursively resolving pipeline-link
// sources and sinks through the C4 connector registry, instantiates plugins
// via the C1 registry, applies the C5 peer-forwarding decorator, and
// assembles runnable pipelines — unwinding a pipeline's connected component
// whenever one of its steps fails.
package build

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/finnroblin/data-prepper/internal/component"
	"github.com/finnroblin/data-prepper/internal/connector"
	"github.com/finnroblin/data-prepper/internal/log"
	"github.com/finnroblin/data-prepper/internal/metrics"
	"github.com/finnroblin/data-prepper/internal/peerforward"
	"github.com/finnroblin/data-prepper/internal/pipelinerun"
	"github.com/finnroblin/data-prepper/internal/plugin"
	"github.com/finnroblin/data-prepper/internal/plugins/buffer"
	"github.com/finnroblin/data-prepper/internal/topology"
)

// PeerForwardingConfig bundles the collaborators a peer-forwarding-capable
// processor needs wrapping into a decorator. A nil
// config means no processor in this build may declare CapPeerForwarding.
type PeerForwardingConfig struct {
	Peers     peerforward.PeerSet
	Transport peerforward.Transport
	Retry     peerforward.RetryPolicy
}

// Builder performs the pipeline-build walk (C6).
type Builder struct {
	Plugins        *plugin.Registry
	Log            log.Modular
	Metrics        *metrics.Registry
	PeerForwarding *PeerForwardingConfig

	// DefaultBufferFactory builds the implied buffer for a pipeline whose
	// document omits one. Defaults to
	// the bounded in-memory channel buffer.
	DefaultBufferFactory func() (component.Buffer, error)
}

// NewBuilder returns a Builder with its default buffer factory set.
func NewBuilder(plugins *plugin.Registry, logger log.Modular, metricsReg *metrics.Registry, pf *PeerForwardingConfig) *Builder {
	return &Builder{
		Plugins:        plugins,
		Log:            logger,
		Metrics:        metricsReg,
		PeerForwarding: pf,
		DefaultBufferFactory: func() (component.Buffer, error) {
			return buffer.New(buffer.DefaultCapacity), nil
		},
	}
}

// Result is the builder's output.
type Result struct {
	Pipelines map[string]*pipelinerun.Pipeline
	// Unwound lists every pipeline name removed because it was connected,
	// directly or transitively, to one that failed to build.
	Unwound []string
}

type buildState struct {
	doc        *topology.Doc
	connectors *connector.Registry
	built      map[string]*pipelinerun.Pipeline
	building   map[string]bool
	removed    map[string]bool
}

// Build walks order (the validator's topological build order)
// and constructs every pipeline it names, unwinding connected components on
// failure.
func (b *Builder) Build(ctx context.Context, doc *topology.Doc, order []string) (*Result, error) {
	st := &buildState{
		doc:        doc,
		connectors: connector.NewRegistry(),
		built:      map[string]*pipelinerun.Pipeline{},
		building:   map[string]bool{},
		removed:    map[string]bool{},
	}

	for _, name := range order {
		if _, ok := st.built[name]; ok {
			continue
		}
		if st.removed[name] {
			continue
		}
		if err := b.buildPipeline(ctx, st, name); err != nil {
			b.Log.Errorf("pipeline %q failed to build: %v", name, err)
			if b.Metrics != nil {
				b.Metrics.BuildFailures.WithLabelValues(name).Inc()
			}
			b.unwind(st, name)
		}
	}

	unwound := make([]string, 0, len(st.removed))
	for n := range st.removed {
		unwound = append(unwound, n)
	}
	sort.Strings(unwound)

	return &Result{Pipelines: st.built, Unwound: unwound}, nil
}

// buildPipeline builds one pipeline, recursing into its upstream when its
// source is a pipeline link.
func (b *Builder) buildPipeline(ctx context.Context, st *buildState, name string) error {
	if _, ok := st.built[name]; ok {
		return nil
	}
	if st.removed[name] {
		return fmt.Errorf("pipeline %q was already unwound by an earlier failure", name)
	}
	if st.building[name] {
		// Re-entrancy guard: already in progress higher up this same
		// recursive call chain.
		return nil
	}
	st.building[name] = true
	defer delete(st.building, name)

	spec, ok := st.doc.Get(name)
	if !ok {
		return component.NewTopologyError(component.UnknownReferenceError, fmt.Sprintf("pipeline %q not found", name))
	}

	source, err := b.resolveSource(ctx, st, name, spec)
	if err != nil {
		return err
	}

	buf, err := b.resolveBuffer(name, spec)
	if err != nil {
		return err
	}

	stages, err := b.resolveStages(name, spec)
	if err != nil {
		return err
	}

	sinks, err := b.resolveSinks(st, name, spec)
	if err != nil {
		return err
	}

	workers := spec.Workers
	if workers <= 0 {
		workers = topology.DefaultWorkers
	}
	delay := spec.ReadBatchDelay
	if delay <= 0 {
		delay = topology.DefaultReadBatchDelay
	}

	st.built[name] = &pipelinerun.Pipeline{
		Name:           name,
		Source:         source,
		Buffer:         buf,
		Stages:         stages,
		Sinks:          sinks,
		Workers:        workers,
		ReadBatchDelay: delay,
		Log:            b.Log.With("pipeline", name),
		Metrics:        b.Metrics,
	}
	return nil
}

// resolveSource resolves the pipeline's source: a plain plugin, or a
// shared connector if it links to an upstream pipeline.
func (b *Builder) resolveSource(ctx context.Context, st *buildState, name string, spec topology.PipelineSpec) (component.Source, error) {
	upstream, isLink := spec.Source.PipelineLinkTarget()
	if !isLink {
		return b.Plugins.LoadSource(name, spec.Source)
	}

	if err := b.buildPipeline(ctx, st, upstream); err != nil {
		return nil, fmt.Errorf("building upstream pipeline %q for %q's source: %w", upstream, name, err)
	}

	conn, ok := st.connectors.Get(name)
	if !ok {
		return nil, &component.PluginLoadError{
			Kind: component.KindSource, Name: topology.PipelineLinkPlugin, Pipeline: name,
			Cause: fmt.Errorf("upstream pipeline %q has no sink linking back to %q", upstream, name),
		}
	}
	return conn, nil
}

// resolveBuffer resolves the pipeline's buffer, or the default in-memory
// buffer if the document omits one.
func (b *Builder) resolveBuffer(name string, spec topology.PipelineSpec) (component.Buffer, error) {
	if !spec.HasExplicitBuffer {
		return b.DefaultBufferFactory()
	}
	buf, err := b.Plugins.LoadBuffer(name, spec.Buffer)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// resolveStages builds each processor stage's
// instance set per the multiplicity rule, then wraps any peer-forwarding
// affine instance in the C5 decorator.
func (b *Builder) resolveStages(name string, spec topology.PipelineSpec) ([]pipelinerun.Stage, error) {
	workers := spec.Workers
	if workers <= 0 {
		workers = topology.DefaultWorkers
	}

	stages := make([]pipelinerun.Stage, 0, len(spec.Processors))
	for _, procSpec := range spec.Processors {
		instances, err := b.Plugins.LoadProcessorStage(name, procSpec, workers)
		if err != nil {
			return nil, err
		}

		caps, _ := b.Plugins.ProcessorCapabilities(procSpec.Name)
		if caps.Has(component.CapPeerForwarding) {
			if err := b.decorateForPeerForwarding(name, procSpec, instances); err != nil {
				return nil, err
			}
		}

		stage := pipelinerun.Stage{Name: procSpec.Name}
		if caps.Has(component.CapSingleThread) {
			stage.PerWorker = instances
		} else {
			stage.Shared = instances[0]
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

func (b *Builder) decorateForPeerForwarding(pipelineName string, procSpec topology.PluginSpec, instances []component.Processor) error {
	if b.PeerForwarding == nil {
		return &component.PluginLoadError{
			Kind: component.KindProcessor, Name: procSpec.Name, Pipeline: pipelineName,
			Cause: errors.New("processor declares peer-forwarding affinity but no peer-forwarding transport is configured"),
		}
	}

	var drops peerforward.DropCounter
	if b.Metrics != nil {
		drops = b.Metrics.NewPeerDropCounter(procSpec.Name)
	}

	for i, inst := range instances {
		instances[i] = peerforward.NewDecorator(
			inst,
			procSpec.Name, // real plugin name, not a hard-coded placeholder
			b.PeerForwarding.Peers,
			b.PeerForwarding.Transport,
			b.PeerForwarding.Retry,
			b.Log.With("processor", procSpec.Name),
			drops,
		)
	}
	return nil
}

// resolveSinks resolves the pipeline's sinks: plain plugins, or shared
// connectors for sinks that link to a downstream pipeline.
func (b *Builder) resolveSinks(st *buildState, name string, spec topology.PipelineSpec) ([]pipelinerun.SinkSpec, error) {
	sinks := make([]pipelinerun.SinkSpec, 0, len(spec.Sinks))
	for _, sinkSpec := range spec.Sinks {
		if downstream, isLink := sinkSpec.PipelineLinkTarget(); isLink {
			conn, _ := st.connectors.GetOrCreate(downstream)
			conn.SetUpstreamName(name)
			sinks = append(sinks, pipelinerun.SinkSpec{
				Name:   fmt.Sprintf("%s:%s", topology.PipelineLinkPlugin, downstream),
				Sink:   conn,
				Policy: pipelinerun.RetryPolicyFor(conn),
			})
			continue
		}

		sink, err := b.Plugins.LoadSink(name, sinkSpec)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, pipelinerun.SinkSpec{
			Name:   sinkSpec.Name,
			Sink:   sink,
			Policy: pipelinerun.RetryPolicyFor(sink),
		})
	}
	return sinks, nil
}

// neighbors returns the pipelines name is directly linked to, in either
// direction: the targets of its own source and sink pipeline-links, and every
// pipeline with a sink linking to name.
func neighbors(doc *topology.Doc, name string) []string {
	spec, ok := doc.Get(name)
	if !ok {
		return nil
	}
	var out []string
	if target, ok := spec.Source.PipelineLinkTarget(); ok {
		out = append(out, target)
	}
	for _, sink := range spec.Sinks {
		if target, ok := sink.PipelineLinkTarget(); ok {
			out = append(out, target)
		}
	}
	for _, other := range doc.Names {
		for _, sink := range doc.Pipelines[other].Sinks {
			if target, ok := sink.PipelineLinkTarget(); ok && target == name {
				out = append(out, other)
			}
		}
	}
	return out
}

// unwind removes start and every pipeline transitively connected to it
//. It is idempotent: pipelines already removed are
// skipped, so re-entering unwind from a neighbor's own failure is safe.
func (b *Builder) unwind(st *buildState, start string) {
	queue := []string{start}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if st.removed[name] {
			continue
		}
		st.removed[name] = true

		if p, ok := st.built[name]; ok {
			b.closeBuilt(p)
			delete(st.built, name)
		}
		st.connectors.Remove(name)

		queue = append(queue, neighbors(st.doc, name)...)
	}
}

// closeBuilt releases every component of a pipeline that had already been
// constructed before its connected component was unwound.
func (b *Builder) closeBuilt(p *pipelinerun.Pipeline) {
	ctx := context.Background()
	if err := p.Source.Stop(ctx); err != nil {
		b.Log.Warnf("unwind %s: stopping source: %v", p.Name, err)
	}
	if err := p.Buffer.Close(ctx); err != nil {
		b.Log.Warnf("unwind %s: closing buffer: %v", p.Name, err)
	}
	for _, stage := range p.Stages {
		instances := stage.PerWorker
		if stage.Shared != nil {
			instances = []component.Processor{stage.Shared}
		}
		for _, inst := range instances {
			if err := inst.Close(ctx); err != nil {
				b.Log.Warnf("unwind %s: closing stage %s: %v", p.Name, stage.Name, err)
			}
		}
	}
	for _, spec := range p.Sinks {
		if err := spec.Sink.Close(ctx); err != nil {
			b.Log.Warnf("unwind %s: closing sink %s: %v", p.Name, spec.Name, err)
		}
	}
}
