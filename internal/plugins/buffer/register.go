package buffer

import (
	"github.com/finnroblin/data-prepper/internal/component"
	"github.com/finnroblin/data-prepper/internal/plugin"
	"github.com/finnroblin/data-prepper/internal/topology"
)

// Register adds the memory buffer constructor to reg as the explicitly-named
// "memory" plugin. A pipeline whose document omits a buffer block does not
// go through this constructor: the builder's DefaultBufferFactory gives it a
// Channel of DefaultCapacity directly.
func Register(reg *plugin.Registry) {
	reg.RegisterBuffer(PluginName, func(spec topology.PluginSpec) (component.Buffer, error) {
		capacity := DefaultCapacity
		if v, ok := spec.Attributes["capacity"]; ok {
			if n, ok := toInt(v); ok {
				capacity = n
			}
		}
		return New(capacity), nil
	})
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
