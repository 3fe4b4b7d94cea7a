// Package dedupe provides a processor that drops records whose dedup key has
// already been seen, grounded on the teacher's own lib/processor/dedupe.go
// ("Deduplicates message batches by caching selected (and optionally hashed)
// messages, dropping batches that are already cached"). The cache here is a
// single in-process LRU rather than a pluggable resource, which is exactly
// the "memory based cache" choice the teacher's own docs call out as the way
// to preserve at-least-once delivery across a cluster — which is why this
// processor must declare CapPeerForwarding: every record sharing a dedup key
// has to land on the one node holding that key's LRU entry, or duplicates
// sent to different peers would pass undetected.
package dedupe

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/finnroblin/data-prepper/internal/component"
	"github.com/finnroblin/data-prepper/internal/message"
	"github.com/finnroblin/data-prepper/internal/plugin"
	"github.com/finnroblin/data-prepper/internal/topology"
)

// defaultCapacity bounds the LRU when a topology doesn't specify one.
const defaultCapacity = 10000

// Register adds the dedupe processor plugin to reg.
func Register(reg *plugin.Registry) {
	reg.RegisterProcessor("dedupe", component.CapPeerForwarding, func(spec topology.PluginSpec) (component.Processor, error) {
		return newProcessor(spec)
	})
}

type processor struct {
	mu       sync.Mutex
	seen     map[uint64]*list.Element
	order    *list.List
	capacity int
}

func newProcessor(spec topology.PluginSpec) (*processor, error) {
	capacity := defaultCapacity
	if v, ok := spec.Attributes["capacity"]; ok {
		n, ok := toInt(v)
		if !ok || n <= 0 {
			return nil, fmt.Errorf("dedupe processor \"capacity\" attribute must be a positive integer")
		}
		capacity = n
	}
	return &processor{
		seen:     make(map[uint64]*list.Element),
		order:    list.New(),
		capacity: capacity,
	}, nil
}

// Execute implements component.Processor: a record whose dedup key (its
// affinity Key, falling back to a hash of its payload when Key is empty) is
// already in the cache is dropped; everything else passes through and is
// added.
func (p *processor) Execute(ctx context.Context, batch message.Batch) (message.Batch, error) {
	out := make(message.Batch, 0, len(batch))
	for _, rec := range batch {
		if p.seenBefore(p.keyHash(rec)) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (p *processor) keyHash(rec message.Record) uint64 {
	if rec.Key != "" {
		return xxhash.Sum64String(rec.Key)
	}
	return xxhash.Sum64String(fmt.Sprintf("%v", rec.Payload))
}

func (p *processor) seenBefore(h uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if el, ok := p.seen[h]; ok {
		p.order.MoveToFront(el)
		return true
	}

	p.seen[h] = p.order.PushFront(h)
	if p.order.Len() > p.capacity {
		oldest := p.order.Back()
		p.order.Remove(oldest)
		delete(p.seen, oldest.Value.(uint64))
	}
	return false
}

// Close implements component.Processor.
func (p *processor) Close(context.Context) error { return nil }

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
