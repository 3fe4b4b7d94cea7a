package nats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/finnroblin/data-prepper/internal/topology"
)

func TestURL_RequiresAttribute(t *testing.T) {
	_, err := url(topology.PluginSpec{Attributes: map[string]any{}})
	assert.Error(t, err)

	u, err := url(topology.PluginSpec{Attributes: map[string]any{"url": "nats://localhost:4222"}})
	assert.NoError(t, err)
	assert.Equal(t, "nats://localhost:4222", u)
}

func TestSubject_RequiresAttribute(t *testing.T) {
	_, err := subject(topology.PluginSpec{Attributes: map[string]any{}})
	assert.Error(t, err)
}

func TestNewSource_RequiresURLAndSubject(t *testing.T) {
	_, err := newSource(topology.PluginSpec{Attributes: map[string]any{}})
	assert.Error(t, err)
}
