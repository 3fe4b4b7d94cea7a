// Package buffer provides the default Buffer implementation: a bounded in-memory channel
// of batches, the simplest thing that satisfies the Buffer contract's
// thread-safety and backpressure requirements.
package buffer

import (
	"context"
	"sync"
	"time"

	"github.com/finnroblin/data-prepper/internal/component"
	"github.com/finnroblin/data-prepper/internal/message"
)

// PluginName is the name this buffer registers under, matching the implicit
// default topology.ParseDoc applies when a pipeline's document omits a
// buffer block.
const PluginName = "memory"

// DefaultCapacity is the queue depth, in records, used when a topology
// doesn't specify one.
const DefaultCapacity = 1000

// Channel is a bounded, thread-safe queue of individual records. Write
// blocks when the channel is full, giving the runtime backpressure for free.
//
// mu guards the closed/send-on-records invariant: Write holds a read lock
// across its closed check and its send, and Close takes the write lock
// before closing records, so a Write already past its closed check always
// finishes its send (or gives up via ctx) before Close can close the
// channel underneath it.
type Channel struct {
	records chan message.Record
	mu      sync.RWMutex
	closed  bool
}

// New constructs a Channel buffer with the given capacity.
func New(capacity int) *Channel {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Channel{records: make(chan message.Record, capacity)}
}

// Write implements component.Buffer.
func (c *Channel) Write(ctx context.Context, batch message.Batch) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return component.ErrBufferClosed
	}
	for _, rec := range batch {
		select {
		case c.records <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Read implements component.Buffer: it accumulates whatever is immediately
// available, waiting up to maxWait for at least one record before returning
// (possibly empty, if maxWait elapses with nothing queued).
func (c *Channel) Read(ctx context.Context, maxWait time.Duration) (message.Batch, error) {
	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	var batch message.Batch
	select {
	case rec, open := <-c.records:
		if !open {
			return nil, component.ErrBufferClosed
		}
		batch = append(batch, rec)
	case <-timer.C:
		return batch, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	for {
		select {
		case rec, open := <-c.records:
			if !open {
				return batch, nil
			}
			batch = append(batch, rec)
		default:
			return batch, nil
		}
	}
}

// Commit implements component.Buffer. The channel buffer has nothing to
// acknowledge past delivery, so Commit is a no-op; delivery is at-least-once
// by construction.
func (c *Channel) Commit(ctx context.Context, batch message.Batch) error {
	return nil
}

// Close implements component.Buffer. Safe to call more than once. Blocks
// until every Write already past its closed check has finished sending, so
// records is never closed out from under an in-flight send.
func (c *Channel) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.records)
	}
	return nil
}

// Len implements component.Drainable, letting the runtime count records
// still queued when a grace-period shutdown forces the buffer closed.
func (c *Channel) Len() int {
	return len(c.records)
}
