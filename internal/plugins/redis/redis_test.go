package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/finnroblin/data-prepper/internal/topology"
)

func TestNewSink_RequiresAddressAndKey(t *testing.T) {
	_, err := newSink(topology.PluginSpec{Attributes: map[string]any{}})
	assert.Error(t, err)

	_, err = newSink(topology.PluginSpec{Attributes: map[string]any{"address": "localhost:6379"}})
	assert.Error(t, err)

	s, err := newSink(topology.PluginSpec{Attributes: map[string]any{"address": "localhost:6379", "key": "mylist"}})
	assert.NoError(t, err)
	assert.Equal(t, "mylist", s.key)
}
