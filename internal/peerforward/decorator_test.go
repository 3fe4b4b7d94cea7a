package peerforward

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finnroblin/data-prepper/internal/log"
	"github.com/finnroblin/data-prepper/internal/message"
)

// --- test fakes -------------------------------------------------------

type fakePeerSet struct {
	self PeerID
	live []PeerID
}

func (p fakePeerSet) Self() PeerID   { return p.self }
func (p fakePeerSet) Live() []PeerID { return p.live }

type noopLogger struct{}

func (noopLogger) With(...any) log.Modular { return noopLogger{} }
func (noopLogger) Errorf(string, ...any)   {}
func (noopLogger) Warnf(string, ...any)    {}
func (noopLogger) Infof(string, ...any)    {}
func (noopLogger) Debugf(string, ...any)   {}
func (noopLogger) Errorln(string)          {}
func (noopLogger) Warnln(string)           {}
func (noopLogger) Infoln(string)           {}
func (noopLogger) Debugln(string)          {}

type forwardCall struct {
	peer     PeerID
	pluginID string
	batch    message.Batch
}

type fakeTransport struct {
	mu      sync.Mutex
	calls   []forwardCall
	inbound chan InboundBatch
	failN   int // fail this many calls before succeeding
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{inbound: make(chan InboundBatch, 16)}
}

func (f *fakeTransport) Forward(ctx context.Context, peer PeerID, pluginID string, batch message.Batch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, forwardCall{peer: peer, pluginID: pluginID, batch: batch})
	if f.failN > 0 {
		f.failN--
		return fmt.Errorf("simulated transport failure")
	}
	return nil
}

func (f *fakeTransport) Inbound() <-chan InboundBatch { return f.inbound }
func (f *fakeTransport) Close(ctx context.Context) error {
	close(f.inbound)
	return nil
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeProcessor struct {
	mu      sync.Mutex
	batches []message.Batch
}

func (p *fakeProcessor) Execute(ctx context.Context, batch message.Batch) (message.Batch, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, batch)
	return batch, nil
}
func (p *fakeProcessor) Close(ctx context.Context) error { return nil }

func (p *fakeProcessor) lastBatch() message.Batch {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.batches) == 0 {
		return nil
	}
	return p.batches[len(p.batches)-1]
}

type countingDropCounter struct {
	mu sync.Mutex
	n  int
}

func (c *countingDropCounter) Add(peer string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n += n
}

func (c *countingDropCounter) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// --- tests -------------------------------------------------------------

func TestDecorator_SingleNodeKeepsEverythingLocal(t *testing.T) {
	peers := fakePeerSet{self: "node-a"}
	transport := newFakeTransport()
	wrapped := &fakeProcessor{}
	d := NewDecorator(wrapped, "my-aggregator", peers, transport, DefaultRetryPolicy(), noopLogger{}, nil)
	defer d.Close(context.Background())

	batch := message.Batch{
		message.NewRecord("a", message.EventTypeLog).WithKey("k1"),
		message.NewRecord("b", message.EventTypeLog).WithKey("k2"),
	}
	out, err := d.Execute(context.Background(), batch)
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, 0, transport.callCount())
}

func TestDecorator_RemoteKeysAreForwardedNotExecutedLocally(t *testing.T) {
	peers := fakePeerSet{self: "node-a", live: []PeerID{"node-b"}}
	transport := newFakeTransport()
	wrapped := &fakeProcessor{}
	d := NewDecorator(wrapped, "my-aggregator", peers, transport, DefaultRetryPolicy(), noopLogger{}, nil)
	defer d.Close(context.Background())

	var localKeys, remoteKeys []string
	for i := 0; i < 30; i++ {
		key := fmt.Sprintf("key-%d", i)
		owner, _ := Owner(key, peers)
		if owner == peers.Self() {
			localKeys = append(localKeys, key)
		} else {
			remoteKeys = append(remoteKeys, key)
		}
	}
	require.NotEmpty(t, remoteKeys, "rendezvous hashing should route at least one test key to the remote peer")

	batch := make(message.Batch, 0, len(localKeys)+len(remoteKeys))
	for _, k := range localKeys {
		batch = append(batch, message.NewRecord(k, message.EventTypeLog).WithKey(k))
	}
	for _, k := range remoteKeys {
		batch = append(batch, message.NewRecord(k, message.EventTypeLog).WithKey(k))
	}

	_, err := d.Execute(context.Background(), batch)
	require.NoError(t, err)

	gotLocal := wrapped.lastBatch()
	assert.Len(t, gotLocal, len(localKeys))

	require.Equal(t, 1, transport.callCount())
	assert.Len(t, transport.calls[0].batch, len(remoteKeys))
	assert.Equal(t, "my-aggregator", transport.calls[0].pluginID)
}

func TestDecorator_DropsAndCountsOnRetryExhaustion(t *testing.T) {
	peers := fakePeerSet{self: "node-a", live: []PeerID{"node-b"}}
	transport := newFakeTransport()
	transport.failN = 100 // always fail
	wrapped := &fakeProcessor{}
	drops := &countingDropCounter{}
	retry := RetryPolicy{MaxAttempts: 2, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
	d := NewDecorator(wrapped, "my-aggregator", peers, transport, retry, noopLogger{}, drops)
	defer d.Close(context.Background())

	var remoteKey string
	for i := 0; i < 30; i++ {
		key := fmt.Sprintf("key-%d", i)
		if owner, _ := Owner(key, peers); owner != peers.Self() {
			remoteKey = key
			break
		}
	}
	require.NotEmpty(t, remoteKey)

	batch := message.Batch{message.NewRecord("v", message.EventTypeLog).WithKey(remoteKey)}
	_, err := d.Execute(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, 1, drops.total())
	assert.Empty(t, wrapped.lastBatch())
}

func TestDecorator_MergesInboundFromPeers(t *testing.T) {
	peers := fakePeerSet{self: "node-a", live: []PeerID{"node-b"}}
	transport := newFakeTransport()
	wrapped := &fakeProcessor{}
	d := NewDecorator(wrapped, "my-aggregator", peers, transport, DefaultRetryPolicy(), noopLogger{}, nil)
	defer d.Close(context.Background())

	inboundRec := message.NewRecord("forwarded", message.EventTypeLog).WithKey("from-peer")
	transport.inbound <- InboundBatch{PluginID: "my-aggregator", Batch: message.Batch{inboundRec}}

	require.Eventually(t, func() bool {
		_, err := d.Execute(context.Background(), nil)
		require.NoError(t, err)
		return len(wrapped.lastBatch()) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, inboundRec.ID, wrapped.lastBatch()[0].ID)
}
