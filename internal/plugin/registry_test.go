package plugin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finnroblin/data-prepper/internal/component"
	"github.com/finnroblin/data-prepper/internal/message"
	"github.com/finnroblin/data-prepper/internal/topology"
)

type fakeProcessor struct{ tag int }

func (fakeProcessor) Execute(ctx context.Context, b message.Batch) (message.Batch, error) { return b, nil }
func (fakeProcessor) Close(context.Context) error                                         { return nil }

func TestRegistry_UnknownPluginNameFailsWithPluginLoadError(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.LoadSource("p", topology.PluginSpec{Name: "ghost"})
	require.Error(t, err)
	var loadErr *component.PluginLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, component.KindSource, loadErr.Kind)
}

func TestRegistry_SharedProcessorGetsExactlyOneInstance(t *testing.T) {
	reg := NewRegistry()
	n := 0
	reg.RegisterProcessor("shared", 0, func(topology.PluginSpec) (component.Processor, error) {
		n++
		return fakeProcessor{tag: n}, nil
	})

	instances, err := reg.LoadProcessorStage("p", topology.PluginSpec{Name: "shared"}, 5)
	require.NoError(t, err)
	assert.Len(t, instances, 1)
	assert.Equal(t, 1, n)
}

func TestRegistry_SingleThreadProcessorGetsOneInstancePerWorker(t *testing.T) {
	reg := NewRegistry()
	n := 0
	reg.RegisterProcessor("affine", component.CapSingleThread, func(topology.PluginSpec) (component.Processor, error) {
		n++
		return fakeProcessor{tag: n}, nil
	})

	instances, err := reg.LoadProcessorStage("p", topology.PluginSpec{Name: "affine"}, 4)
	require.NoError(t, err)
	assert.Len(t, instances, 4)
	assert.Equal(t, 4, n)
}

func TestRegistry_ProcessorConstructorFailurePartwayDiscardsEverything(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	reg.RegisterProcessor("flaky", component.CapSingleThread, func(topology.PluginSpec) (component.Processor, error) {
		calls++
		if calls == 3 {
			return nil, assertError{}
		}
		return fakeProcessor{tag: calls}, nil
	})

	instances, err := reg.LoadProcessorStage("p", topology.PluginSpec{Name: "flaky"}, 5)
	require.Error(t, err)
	assert.Nil(t, instances)
	var loadErr *component.PluginLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, component.KindProcessor, loadErr.Kind)
}

type assertError struct{}

func (assertError) Error() string { return "constructor failed" }

func TestRegistry_ProcessorCapabilitiesReportsDeclaredFlags(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterProcessor("affine", component.CapSingleThread|component.CapPeerForwarding, func(topology.PluginSpec) (component.Processor, error) {
		return fakeProcessor{}, nil
	})

	caps, ok := reg.ProcessorCapabilities("affine")
	require.True(t, ok)
	assert.True(t, caps.Has(component.CapSingleThread))
	assert.True(t, caps.Has(component.CapPeerForwarding))

	_, ok = reg.ProcessorCapabilities("ghost")
	assert.False(t, ok)
}

func TestRegistry_LoadBufferAndSinkUseRegisteredConstructors(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterBuffer("mem", func(topology.PluginSpec) (component.Buffer, error) { return nil, nil })
	reg.RegisterSink("stdout", func(topology.PluginSpec) (component.Sink, error) { return nil, nil })

	_, err := reg.LoadBuffer("p", topology.PluginSpec{Name: "mem"})
	assert.NoError(t, err)
	_, err = reg.LoadBuffer("p", topology.PluginSpec{Name: "ghost"})
	assert.Error(t, err)

	_, err = reg.LoadSink("p", topology.PluginSpec{Name: "stdout"})
	assert.NoError(t, err)
	_, err = reg.LoadSink("p", topology.PluginSpec{Name: "ghost"})
	assert.Error(t, err)
}
