package script

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finnroblin/data-prepper/internal/message"
	"github.com/finnroblin/data-prepper/internal/topology"
)

func TestProcessor_TransformsPayloadViaResultGlobal(t *testing.T) {
	p, err := newProcessor(topology.PluginSpec{Attributes: map[string]any{
		"code": "var result = payload.toUpperCase();",
	}})
	require.NoError(t, err)

	batch := message.Batch{message.NewRecord("hello", message.EventTypeLog)}
	out, err := p.Execute(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "HELLO", out[0].Payload)
}

func TestProcessor_LeavesPayloadUnchangedWhenResultUnset(t *testing.T) {
	p, err := newProcessor(topology.PluginSpec{Attributes: map[string]any{"code": "var x = 1;"}})
	require.NoError(t, err)

	batch := message.Batch{message.NewRecord("hello", message.EventTypeLog)}
	out, err := p.Execute(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, "hello", out[0].Payload)
}

func TestNewProcessor_RequiresCode(t *testing.T) {
	_, err := newProcessor(topology.PluginSpec{Attributes: map[string]any{}})
	assert.Error(t, err)
}

func TestNewProcessor_RejectsInvalidSyntax(t *testing.T) {
	_, err := newProcessor(topology.PluginSpec{Attributes: map[string]any{"code": "var x = ;;;"}})
	assert.Error(t, err)
}
