// Package connector implements the Pipeline Connector (C4): a
// dual-role object that is simultaneously a Sink in one pipeline and the
// Source of another, passing records in-process. Grounded on the teacher's
// internal/impl/pure/input_inproc.go + output_inproc.go pair (a named pipe
// registered by one side, connected to by the other) but collapsed into one
// object rather than two separately-registered plugin types,
// since here both ends are always known at build time.
package connector

import (
	"context"
	"sync"

	"github.com/finnroblin/data-prepper/internal/component"
	"github.com/finnroblin/data-prepper/internal/message"
)

// Connector is a sink in its upstream pipeline and the source of its
// downstream pipeline. Its lifetime equals the longest holder's.
type Connector struct {
	downstreamName string

	mu           sync.RWMutex
	upstreamName string
	target       component.Buffer
}

// New creates a Connector for the given downstream pipeline. The upstream
// name is unknown until wiring resolves it.
func New(downstreamName string) *Connector {
	return &Connector{downstreamName: downstreamName}
}

// DownstreamName is the pipeline this connector feeds as a Source.
func (c *Connector) DownstreamName() string { return c.downstreamName }

// SetUpstreamName records the pipeline that holds this connector as a Sink.
func (c *Connector) SetUpstreamName(name string) {
	c.mu.Lock()
	c.upstreamName = name
	c.mu.Unlock()
}

// UpstreamName returns the pipeline that holds this connector as a Sink, if
// wired yet.
func (c *Connector) UpstreamName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.upstreamName
}

// Start satisfies component.Source: the downstream pipeline's runtime hands
// this connector its own Buffer as the write target, the same way it would
// hand any other Source its buffer.
func (c *Connector) Start(_ context.Context, into component.Buffer) error {
	c.mu.Lock()
	c.target = into
	c.mu.Unlock()
	return nil
}

// Stop satisfies component.Source. The connector itself holds no background
// goroutine to stop; records in flight are the downstream Buffer's concern.
func (c *Connector) Stop(context.Context) error { return nil }

// Write satisfies component.Sink: the upstream pipeline calls this exactly
// as it would call any real Sink. It enqueues into the downstream Buffer
// through the same write path as any other Source, so backpressure (write
// blocks, or BufferFull on a non-blocking buffer) behaves identically to
// writing the downstream buffer directly.
func (c *Connector) Write(ctx context.Context, batch message.Batch) error {
	c.mu.RLock()
	target := c.target
	c.mu.RUnlock()
	if target == nil {
		return component.ErrNotConnectedDownstream
	}
	return target.Write(ctx, batch)
}

// Close satisfies component.Sink.
func (c *Connector) Close(context.Context) error { return nil }
