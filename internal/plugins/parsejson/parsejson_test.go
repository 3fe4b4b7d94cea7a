package parsejson

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finnroblin/data-prepper/internal/message"
	"github.com/finnroblin/data-prepper/internal/topology"
)

func TestProcessor_ParsesJSONPayloadIntoStructuredData(t *testing.T) {
	p := newProcessor(topology.PluginSpec{Attributes: map[string]any{}})
	batch := message.Batch{message.NewRecord(`{"a":1,"b":"x"}`, message.EventTypeLog)}

	out, err := p.Execute(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, out, 1)

	m, ok := out[0].Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), m["a"])
	assert.Equal(t, "x", m["b"])
}

func TestProcessor_InvalidJSONPassesThroughUnmodified(t *testing.T) {
	p := newProcessor(topology.PluginSpec{Attributes: map[string]any{}})
	batch := message.Batch{message.NewRecord(`not json`, message.EventTypeLog)}

	out, err := p.Execute(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, "not json", out[0].Payload)
}

func TestProcessor_TargetFieldNestsParsedResult(t *testing.T) {
	p := newProcessor(topology.PluginSpec{Attributes: map[string]any{"target_field": "parsed"}})
	batch := message.Batch{message.NewRecord(`{"a":1}`, message.EventTypeLog)}

	out, err := p.Execute(context.Background(), batch)
	require.NoError(t, err)

	m, ok := out[0].Payload.(map[string]any)
	require.True(t, ok)
	nested, ok := m["parsed"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), nested["a"])
}

func TestProcessor_NonTextPayloadPassesThroughUnmodified(t *testing.T) {
	p := newProcessor(topology.PluginSpec{Attributes: map[string]any{}})
	batch := message.Batch{message.NewRecord(42, message.EventTypeLog)}

	out, err := p.Execute(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 42, out[0].Payload)
}
