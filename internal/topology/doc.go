// Package topology holds the in-memory representation of the declarative
// topology document — the logical schema an external parser (YAML here)
// must produce. Concrete plugin implementations are out of scope; this
// package only knows plugin names and untyped attribute maps.
package topology

import "time"

// DefaultReadBatchDelay is the default read-batch delay for a pipeline that
// omits one.
const DefaultReadBatchDelay = 3 * time.Second

// DefaultWorkers is the default worker count for a pipeline that omits one.
const DefaultWorkers = 1

// PipelineLinkPlugin is the reserved plugin name denoting an in-process link
// to another pipeline.
const PipelineLinkPlugin = "pipeline"

// PipelineLinkNameAttr is the attribute key carrying the linked pipeline's
// name.
const PipelineLinkNameAttr = "name"

// PluginSpec is a plugin name plus an untyped mapping of configuration
// attributes. PluginSpecs are owned by the Doc and immutable after
// parse.
type PluginSpec struct {
	Name       string
	Attributes map[string]any
}

// PipelineLinkTarget returns the linked pipeline name and true if spec is the
// special "pipeline" plugin type.
func (p PluginSpec) PipelineLinkTarget() (string, bool) {
	if p.Name != PipelineLinkPlugin {
		return "", false
	}
	v, ok := p.Attributes[PipelineLinkNameAttr]
	if !ok {
		return "", false
	}
	name, ok := v.(string)
	return name, ok && name != ""
}

// PipelineSpec is one named pipeline entry in the document.
type PipelineSpec struct {
	Name           string
	Workers        int
	ReadBatchDelay time.Duration
	Source         PluginSpec
	Buffer         PluginSpec
	Processors     []PluginSpec
	Sinks          []PluginSpec

	// HasExplicitBuffer distinguishes an omitted buffer from one the author actually wrote out.
	HasExplicitBuffer bool
}

// Doc is the parsed, in-memory form of the whole declarative document.
// Names preserves the document's insertion order, since the validator breaks
// build-order ties by insertion order.
type Doc struct {
	Names     []string
	Pipelines map[string]PipelineSpec
}

// Get returns the named pipeline and whether it exists.
func (d *Doc) Get(name string) (PipelineSpec, bool) {
	p, ok := d.Pipelines[name]
	return p, ok
}
