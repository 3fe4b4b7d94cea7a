package clickhouse

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/finnroblin/data-prepper/internal/topology"
)

func TestNewSink_RequiresAddressAndTable(t *testing.T) {
	_, err := newSink(topology.PluginSpec{Attributes: map[string]any{}})
	assert.Error(t, err)

	_, err = newSink(topology.PluginSpec{Attributes: map[string]any{"address": "localhost:9000"}})
	assert.Error(t, err)
}
