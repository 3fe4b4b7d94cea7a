package gcppubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/finnroblin/data-prepper/internal/topology"
)

func TestProject_RequiresAttribute(t *testing.T) {
	_, err := project(topology.PluginSpec{Attributes: map[string]any{}})
	assert.Error(t, err)

	p, err := project(topology.PluginSpec{Attributes: map[string]any{"project": "my-proj"}})
	assert.NoError(t, err)
	assert.Equal(t, "my-proj", p)
}

func TestNewSource_RequiresSubscription(t *testing.T) {
	_, err := newSource(topology.PluginSpec{Attributes: map[string]any{"project": "my-proj"}})
	assert.Error(t, err)
}

func TestNewSink_RequiresTopic(t *testing.T) {
	_, err := newSink(topology.PluginSpec{Attributes: map[string]any{"project": "my-proj"}})
	assert.Error(t, err)
}
