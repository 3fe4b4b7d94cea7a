package peerforward

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/finnroblin/data-prepper/internal/component"
	"github.com/finnroblin/data-prepper/internal/log"
	"github.com/finnroblin/data-prepper/internal/message"
)

// DropCounter receives a count of records dropped after exhausting
// peer-forwarding retries, labeled by the peer the
// forward attempt was aimed at.
type DropCounter interface {
	Add(peer string, n int)
}

type noopDropCounter struct{}

func (noopDropCounter) Add(string, int) {}

// RetryPolicy bounds the decorator's backoff loop per remote send.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy uses shorter intervals than cenkalti/backoff/v4's own
// defaults (50ms initial, 2s cap) and is bounded to a handful of attempts so
// a single batch can't stall a worker indefinitely.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, InitialInterval: 50 * time.Millisecond, MaxInterval: 2 * time.Second}
}

// Decorator wraps a processor that requires cluster-wide key affinity.
// It partitions each incoming batch by the hash of each record's
// key, forwards non-local partitions to their owning peer, merges in
// whatever partitions peers have already forwarded to this node, and
// invokes the wrapped processor once per batch with the resulting
// locally-owned set.
type Decorator struct {
	wrapped  component.Processor
	pluginID string // real plugin name from the PluginSpec
	peers    PeerSet
	transport Transport
	retry    RetryPolicy
	log      log.Modular
	drops    DropCounter

	peerLock map[PeerID]*sync.Mutex
	peerLockMu sync.Mutex

	pending chan message.Record
	closeOnce sync.Once
	done      chan struct{}
}

// NewDecorator constructs a peer-forwarding decorator. pluginID must be the
// real plugin name taken from the processor's PluginSpec, not a hard-coded
// placeholder.
func NewDecorator(wrapped component.Processor, pluginID string, peers PeerSet, transport Transport, retry RetryPolicy, logger log.Modular, drops DropCounter) *Decorator {
	if drops == nil {
		drops = noopDropCounter{}
	}
	d := &Decorator{
		wrapped:   wrapped,
		pluginID:  pluginID,
		peers:     peers,
		transport: transport,
		retry:     retry,
		log:       logger,
		drops:     drops,
		peerLock:  map[PeerID]*sync.Mutex{},
		pending:   make(chan message.Record, 1024),
		done:      make(chan struct{}),
	}
	go d.collectInbound()
	return d
}

// collectInbound drains the transport's inbound channel for batches destined
// to this decorator's plugin, buffering records until the next local Execute
// call picks them up.
func (d *Decorator) collectInbound() {
	for {
		select {
		case ib, open := <-d.transport.Inbound():
			if !open {
				return
			}
			if ib.PluginID != d.pluginID {
				continue
			}
			for _, rec := range ib.Batch {
				select {
				case d.pending <- rec:
				case <-d.done:
					return
				}
			}
		case <-d.done:
			return
		}
	}
}

// Execute implements component.Processor.
func (d *Decorator) Execute(ctx context.Context, batch message.Batch) (message.Batch, error) {
	local, remote := d.partition(batch)

	for peer, recs := range remote {
		if err := d.sendWithRetry(ctx, peer, recs); err != nil {
			d.log.Warnf("peer forwarding to %s exhausted retries, dropping %d record(s): %v", peer, len(recs), err)
			d.drops.Add(string(peer), len(recs))
		}
	}

	local = append(local, d.drainPending()...)
	return d.wrapped.Execute(ctx, local)
}

// Close implements component.Processor.
func (d *Decorator) Close(ctx context.Context) error {
	d.closeOnce.Do(func() { close(d.done) })
	return d.wrapped.Close(ctx)
}

// partition splits batch into the subset owned by this node and the subsets
// owned by each remote peer. Owner counts self among the candidates, so with
// no peers registered every key is owned locally and a single-node cluster
// still makes progress; a record Owner reports no owner for also stays local
// and never reaches sendWithRetry.
func (d *Decorator) partition(batch message.Batch) (message.Batch, map[PeerID]message.Batch) {
	local := make(message.Batch, 0, len(batch))
	remote := map[PeerID]message.Batch{}

	for _, rec := range batch {
		owner, ok := Owner(rec.Key, d.peers)
		if !ok || owner == d.peers.Self() {
			if ok && owner == d.peers.Self() {
				local = append(local, rec)
				continue
			}
			if !ok {
				// No peers at all to own the key: treat self as owner so a
				// single-node cluster still makes progress.
				local = append(local, rec)
				continue
			}
		}
		remote[owner] = append(remote[owner], rec)
	}
	return local, remote
}

func (d *Decorator) drainPending() message.Batch {
	var out message.Batch
	for {
		select {
		case rec := <-d.pending:
			out = append(out, rec)
		default:
			return out
		}
	}
}

// sendWithRetry forwards recs to peer with exponential backoff up to a
// bounded attempt count. Sends to a given peer are
// serialized so arrival order matches submission order, preserving per-key
// order across concurrent callers of Execute.
func (d *Decorator) sendWithRetry(ctx context.Context, peer PeerID, recs message.Batch) error {
	mu := d.peerMutex(peer)
	mu.Lock()
	defer mu.Unlock()

	if peer == "" {
		return &component.PeerForwardingError{PeerID: string(peer), Cause: component.ErrPeerAbsent}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.retry.InitialInterval
	bo.MaxInterval = d.retry.MaxInterval
	policy := backoff.WithMaxRetries(bo, uint64(d.retry.MaxAttempts-1))

	var lastErr error
	err := backoff.Retry(func() error {
		sendErr := d.transport.Forward(ctx, peer, d.pluginID, recs)
		if sendErr != nil {
			lastErr = sendErr
		}
		return sendErr
	}, backoff.WithContext(policy, ctx))

	if err != nil {
		return &component.PeerForwardingError{PeerID: string(peer), Cause: lastErr}
	}
	return nil
}

func (d *Decorator) peerMutex(peer PeerID) *sync.Mutex {
	d.peerLockMu.Lock()
	defer d.peerLockMu.Unlock()
	mu, ok := d.peerLock[peer]
	if !ok {
		mu = &sync.Mutex{}
		d.peerLock[peer] = mu
	}
	return mu
}
