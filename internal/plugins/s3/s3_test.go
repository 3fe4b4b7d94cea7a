package s3

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/finnroblin/data-prepper/internal/topology"
)

func TestNewSource_RequiresBucket(t *testing.T) {
	_, err := newSource(topology.PluginSpec{Attributes: map[string]any{}})
	assert.Error(t, err)
}

func TestNewSource_RejectsUnknownCodec(t *testing.T) {
	_, err := newSource(topology.PluginSpec{Attributes: map[string]any{"bucket": "b", "codec": "xml"}})
	assert.Error(t, err)
}
