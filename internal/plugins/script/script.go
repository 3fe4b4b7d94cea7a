// Package script provides a JavaScript scripting processor on top of
// github.com/dop251/goja, grounded on the teacher's
// internal/impl/javascript/processor.go (compile once, run a pooled VM per
// batch). It stands in for the original Ruby processor
// (original_source/.../ruby-processor): no embeddable-Ruby-in-Go library
// exists anywhere in the pack, and goja/JS is exactly how the teacher itself
// offers user-scriptable transforms.
package script

import (
	"context"
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/finnroblin/data-prepper/internal/component"
	"github.com/finnroblin/data-prepper/internal/message"
	"github.com/finnroblin/data-prepper/internal/plugin"
	"github.com/finnroblin/data-prepper/internal/topology"
)

// Register adds the script processor plugin to reg. It has no peer-forwarding
// or single-thread affinity: a fresh goja.Runtime per pooled slot already
// isolates concurrent callers, matching the teacher's own sync.Pool use.
func Register(reg *plugin.Registry) {
	reg.RegisterProcessor("script", 0, func(spec topology.PluginSpec) (component.Processor, error) {
		return newProcessor(spec)
	})
}

type processor struct {
	program *goja.Program
	pool    sync.Pool
}

func newProcessor(spec topology.PluginSpec) (*processor, error) {
	code, ok := spec.Attributes["code"].(string)
	if !ok || code == "" {
		return nil, fmt.Errorf("script processor requires a \"code\" attribute")
	}
	program, err := goja.Compile("script.js", code, false)
	if err != nil {
		return nil, fmt.Errorf("compiling script: %w", err)
	}
	return &processor{program: program}, nil
}

// Execute implements component.Processor: code runs once per record, with
// the record's payload bound to the global "payload" and its (possibly
// rewritten) result read back from the global "result".
func (p *processor) Execute(ctx context.Context, batch message.Batch) (message.Batch, error) {
	vm, _ := p.pool.Get().(*goja.Runtime)
	if vm == nil {
		vm = goja.New()
	}
	defer p.pool.Put(vm)

	out := make(message.Batch, 0, len(batch))
	for _, rec := range batch {
		if err := vm.Set("payload", rec.Payload); err != nil {
			return nil, fmt.Errorf("binding payload: %w", err)
		}
		if err := vm.Set("key", rec.Key); err != nil {
			return nil, fmt.Errorf("binding key: %w", err)
		}
		if err := vm.Set("result", goja.Undefined()); err != nil {
			return nil, fmt.Errorf("resetting result: %w", err)
		}
		if _, err := vm.RunProgram(p.program); err != nil {
			return nil, fmt.Errorf("running script: %w", err)
		}

		result := vm.Get("result")
		if result == nil || goja.IsUndefined(result) {
			out = append(out, rec)
			continue
		}
		rec.Payload = result.Export()
		out = append(out, rec)
	}
	return out, nil
}

// Close implements component.Processor.
func (p *processor) Close(context.Context) error { return nil }
