package peerforward

import (
	"context"

	"github.com/finnroblin/data-prepper/internal/message"
)

// InboundBatch is a partition a peer has forwarded to this node, destined
// for the processor identified by PluginID.
type InboundBatch struct {
	PluginID string
	Batch    message.Batch
}

// Transport is the peer-forwarding RPC consumed by the decorator:
// Forward(batch, peerId) -> ack | error, and a server-side Receive() of
// inbound batches. Concrete transports (HTTP, gRPC, ...) are external
// collaborators; the decorator only depends on this interface.
type Transport interface {
	Forward(ctx context.Context, peer PeerID, pluginID string, batch message.Batch) error
	// Inbound returns the channel the transport's server side publishes
	// received batches onto. Closed when the transport shuts down.
	Inbound() <-chan InboundBatch
	Close(ctx context.Context) error
}
