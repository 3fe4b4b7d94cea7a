package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finnroblin/data-prepper/internal/topology"
)

func TestBrokers_AcceptsStringAndAnySlices(t *testing.T) {
	addrs, err := brokers(topology.PluginSpec{Attributes: map[string]any{"brokers": []string{"a:9092", "b:9092"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a:9092", "b:9092"}, addrs)

	addrs, err = brokers(topology.PluginSpec{Attributes: map[string]any{"brokers": []any{"a:9092", "b:9092"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a:9092", "b:9092"}, addrs)
}

func TestBrokers_MissingAttributeFails(t *testing.T) {
	_, err := brokers(topology.PluginSpec{Attributes: map[string]any{}})
	assert.Error(t, err)
}

func TestTopic_MissingAttributeFails(t *testing.T) {
	_, err := topic(topology.PluginSpec{Attributes: map[string]any{}})
	assert.Error(t, err)

	name, err := topic(topology.PluginSpec{Attributes: map[string]any{"topic": "events"}})
	require.NoError(t, err)
	assert.Equal(t, "events", name)
}

func TestNewSource_RequiresBrokersAndTopic(t *testing.T) {
	_, err := newSource(topology.PluginSpec{Attributes: map[string]any{}})
	assert.Error(t, err)
}

func TestNewSink_RequiresBrokersAndTopic(t *testing.T) {
	_, err := newSink(topology.PluginSpec{Attributes: map[string]any{}})
	assert.Error(t, err)
}
