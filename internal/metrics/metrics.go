// Package metrics wraps the ambient prometheus/client_golang counters and
// gauges the runtime exposes: build failures,
// per-sink errors, per-pipeline drop counts, and peer-forwarding drops.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every counter the runtime increments, registered once
// against a prometheus.Registerer at startup.
type Registry struct {
	BuildFailures   *prometheus.CounterVec
	SinkErrors      *prometheus.CounterVec
	RecordsDropped  *prometheus.CounterVec
	PeerForwardDrop *prometheus.CounterVec
	BufferDepth     *prometheus.GaugeVec
}

// NewRegistry constructs and registers the runtime's metrics against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	m := &Registry{
		BuildFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "data_prepper",
			Name:      "build_failures_total",
			Help:      "Pipeline build failures by pipeline name.",
		}, []string{"pipeline"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "data_prepper",
			Name:      "sink_errors_total",
			Help:      "Sink write failures by pipeline and sink name.",
		}, []string{"pipeline", "sink"}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "data_prepper",
			Name:      "records_dropped_total",
			Help:      "Records dropped by pipeline and reason.",
		}, []string{"pipeline", "reason"}),
		PeerForwardDrop: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "data_prepper",
			Name:      "peer_forward_drops_total",
			Help:      "Records dropped after exhausting peer-forwarding retries, by plugin and peer.",
		}, []string{"plugin", "peer"}),
		BufferDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "data_prepper",
			Name:      "buffer_depth",
			Help:      "Current queued record count by pipeline buffer.",
		}, []string{"pipeline"}),
	}
	reg.MustRegister(m.BuildFailures, m.SinkErrors, m.RecordsDropped, m.PeerForwardDrop, m.BufferDepth)
	return m
}

// PeerDropCounter adapts a (plugin, peer)-labeled counter to the small
// interface internal/peerforward.DropCounter expects, so that package stays
// free of a direct prometheus dependency.
type PeerDropCounter struct {
	vec    *prometheus.CounterVec
	plugin string
}

// NewPeerDropCounter returns a DropCounter bound to one plugin; the peer
// label is supplied per-call.
func (m *Registry) NewPeerDropCounter(plugin string) *PeerDropCounter {
	return &PeerDropCounter{vec: m.PeerForwardDrop, plugin: plugin}
}

// Add implements peerforward.DropCounter.
func (c *PeerDropCounter) Add(peer string, n int) {
	if n <= 0 {
		return
	}
	c.vec.WithLabelValues(c.plugin, peer).Add(float64(n))
}
