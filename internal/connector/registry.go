package connector

import "sync"

// Registry tracks the single PipelineConnector created per downstream
// pipeline across a whole build. It is owned by the builder, not process-global.
type Registry struct {
	mu   sync.Mutex
	byDS map[string]*Connector
}

// NewRegistry returns an empty connector registry, local to one build.
func NewRegistry() *Registry {
	return &Registry{byDS: map[string]*Connector{}}
}

// Get returns the existing connector for downstreamName, if one has been
// created yet.
func (r *Registry) Get(downstreamName string) (*Connector, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byDS[downstreamName]
	return c, ok
}

// GetOrCreate returns the existing connector for downstreamName, or creates
// and registers a new one. The second return value is true when a new
// connector was created.
func (r *Registry) GetOrCreate(downstreamName string) (*Connector, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byDS[downstreamName]; ok {
		return c, false
	}
	c := New(downstreamName)
	r.byDS[downstreamName] = c
	return c, true
}

// Remove drops a downstream pipeline's connector, used when unwinding a
// failed build.
func (r *Registry) Remove(downstreamName string) {
	r.mu.Lock()
	delete(r.byDS, downstreamName)
	r.mu.Unlock()
}

// All returns every connector created during this build, keyed by
// downstream pipeline name.
func (r *Registry) All() map[string]*Connector {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*Connector, len(r.byDS))
	for k, v := range r.byDS {
		out[k] = v
	}
	return out
}
