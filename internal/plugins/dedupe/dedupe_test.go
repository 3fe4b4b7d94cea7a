package dedupe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finnroblin/data-prepper/internal/message"
	"github.com/finnroblin/data-prepper/internal/topology"
)

func TestProcessor_DropsRepeatedKey(t *testing.T) {
	p, err := newProcessor(topology.PluginSpec{})
	require.NoError(t, err)

	batch := message.Batch{
		message.NewRecord("a", message.EventTypeLog).WithKey("k1"),
		message.NewRecord("b", message.EventTypeLog).WithKey("k1"),
		message.NewRecord("c", message.EventTypeLog).WithKey("k2"),
	}
	out, err := p.Execute(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Payload)
	assert.Equal(t, "c", out[1].Payload)
}

func TestProcessor_FallsBackToPayloadWhenKeyEmpty(t *testing.T) {
	p, err := newProcessor(topology.PluginSpec{})
	require.NoError(t, err)

	batch := message.Batch{
		message.NewRecord("same", message.EventTypeLog),
		message.NewRecord("same", message.EventTypeLog),
	}
	out, err := p.Execute(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestProcessor_EvictsOldestOnceCapacityExceeded(t *testing.T) {
	p, err := newProcessor(topology.PluginSpec{Attributes: map[string]any{"capacity": 1}})
	require.NoError(t, err)

	first := message.Batch{message.NewRecord("a", message.EventTypeLog).WithKey("k1")}
	_, err = p.Execute(context.Background(), first)
	require.NoError(t, err)

	second := message.Batch{message.NewRecord("b", message.EventTypeLog).WithKey("k2")}
	_, err = p.Execute(context.Background(), second)
	require.NoError(t, err)

	// k1 was evicted to make room for k2, so it is seen as new again.
	third := message.Batch{message.NewRecord("a-again", message.EventTypeLog).WithKey("k1")}
	out, err := p.Execute(context.Background(), third)
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestNewProcessor_RejectsNonPositiveCapacity(t *testing.T) {
	_, err := newProcessor(topology.PluginSpec{Attributes: map[string]any{"capacity": 0}})
	assert.Error(t, err)
}
