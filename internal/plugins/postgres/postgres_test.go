package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/finnroblin/data-prepper/internal/topology"
)

func TestNewSink_RequiresDSNAndTable(t *testing.T) {
	_, err := newSink(topology.PluginSpec{Attributes: map[string]any{}})
	assert.Error(t, err)

	_, err = newSink(topology.PluginSpec{Attributes: map[string]any{"dsn": "postgres://localhost/db"}})
	assert.Error(t, err)
}
