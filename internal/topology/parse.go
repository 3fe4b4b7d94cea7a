package topology

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/finnroblin/data-prepper/internal/component"
)

// ParseDoc parses a declarative topology document. Mirrors the
// teacher's internal/pipeline/constructor.go fromYAML: it walks yaml.Node
// pairs by hand, rather than a single Decode call, specifically so duplicate
// mapping keys can be rejected at every level of nesting,
// matching the original Java parser's FAIL_ON_READING_DUP_TREE_KEY behavior.
func ParseDoc(data []byte) (*Doc, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, component.NewTopologyError(component.MissingFieldError, fmt.Sprintf("invalid yaml: %v", err))
	}
	if len(root.Content) == 0 {
		return &Doc{Pipelines: map[string]PipelineSpec{}}, nil
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, component.NewTopologyError(component.MissingFieldError, "document root must be a mapping of pipeline name to pipeline spec")
	}

	doc := &Doc{Pipelines: map[string]PipelineSpec{}}
	seen := map[string]bool{}
	for i := 0; i+1 < len(top.Content); i += 2 {
		keyNode, valNode := top.Content[i], top.Content[i+1]
		name := keyNode.Value
		if seen[name] {
			return nil, component.NewTopologyError(component.DuplicateNameError, fmt.Sprintf("duplicate top-level key %q", name))
		}
		seen[name] = true

		spec, err := parsePipeline(name, valNode)
		if err != nil {
			return nil, err
		}
		doc.Names = append(doc.Names, name)
		doc.Pipelines[name] = spec
	}
	return doc, nil
}

func parsePipeline(name string, node *yaml.Node) (PipelineSpec, error) {
	spec := PipelineSpec{
		Name:           name,
		Workers:        DefaultWorkers,
		ReadBatchDelay: DefaultReadBatchDelay,
	}
	if node.Kind != yaml.MappingNode {
		return spec, component.NewTopologyError(component.MissingFieldError, "pipeline spec must be a mapping", name)
	}

	seen := map[string]bool{}
	var sourceSeen, sinkSeen bool
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i].Value, node.Content[i+1]
		if seen[key] {
			return spec, component.NewTopologyError(component.DuplicateNameError, fmt.Sprintf("duplicate key %q", key), name)
		}
		seen[key] = true

		switch key {
		case "workers":
			var w int
			if err := val.Decode(&w); err != nil || w <= 0 {
				return spec, component.NewTopologyError(component.MissingFieldError, "workers must be a positive integer", name)
			}
			spec.Workers = w
		case "delay":
			var raw string
			if err := val.Decode(&raw); err != nil {
				return spec, component.NewTopologyError(component.MissingFieldError, "delay must be a duration string", name)
			}
			d, err := time.ParseDuration(raw)
			if err != nil || d < 0 {
				return spec, component.NewTopologyError(component.MissingFieldError, fmt.Sprintf("invalid delay %q", raw), name)
			}
			spec.ReadBatchDelay = d
		case "source":
			ps, err := parsePluginMapping(val)
			if err != nil {
				return spec, err
			}
			spec.Source = ps
			sourceSeen = true
		case "buffer":
			ps, err := parsePluginMapping(val)
			if err != nil {
				return spec, err
			}
			spec.Buffer = ps
			spec.HasExplicitBuffer = true
		case "processor":
			ps, err := parsePluginList(val)
			if err != nil {
				return spec, err
			}
			spec.Processors = ps
		case "sink":
			ps, err := parsePluginList(val)
			if err != nil {
				return spec, err
			}
			if len(ps) == 0 {
				return spec, component.NewTopologyError(component.MissingFieldError, "sink must be a non-empty sequence", name)
			}
			spec.Sinks = ps
			sinkSeen = true
		default:
			return spec, component.NewTopologyError(component.MissingFieldError, fmt.Sprintf("unrecognized field %q", key), name)
		}
	}

	if !sourceSeen {
		return spec, component.NewTopologyError(component.MissingFieldError, "pipeline is missing required field \"source\"", name)
	}
	if !sinkSeen {
		return spec, component.NewTopologyError(component.MissingFieldError, "pipeline is missing required field \"sink\"", name)
	}
	if !spec.HasExplicitBuffer {
		spec.Buffer = PluginSpec{Name: "memory", Attributes: map[string]any{}}
	}
	return spec, nil
}

// parsePluginMapping decodes `{ <pluginName>: {attrs...} }` — a single-key
// mapping naming the plugin, whose value is its attribute map.
func parsePluginMapping(node *yaml.Node) (PluginSpec, error) {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return PluginSpec{}, component.NewTopologyError(component.MissingFieldError, "plugin entry must be a single-key mapping of plugin name to its attributes")
	}
	name := node.Content[0].Value
	attrs, err := parseAttributes(node.Content[1])
	if err != nil {
		return PluginSpec{}, err
	}
	return PluginSpec{Name: name, Attributes: attrs}, nil
}

func parsePluginList(node *yaml.Node) ([]PluginSpec, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, component.NewTopologyError(component.MissingFieldError, "expected a sequence of plugin entries")
	}
	out := make([]PluginSpec, 0, len(node.Content))
	for _, c := range node.Content {
		ps, err := parsePluginMapping(c)
		if err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, nil
}

// parseAttributes decodes a plugin's attribute mapping, rejecting duplicate
// keys the same way the top-level document does.
func parseAttributes(node *yaml.Node) (map[string]any, error) {
	attrs := map[string]any{}
	if node.Kind == 0 || (node.Kind == yaml.ScalarNode && node.Tag == "!!null") {
		return attrs, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, component.NewTopologyError(component.MissingFieldError, "plugin attributes must be a mapping")
	}
	seen := map[string]bool{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if seen[key] {
			return nil, component.NewTopologyError(component.DuplicateNameError, fmt.Sprintf("duplicate attribute key %q", key))
		}
		seen[key] = true

		var v any
		if err := node.Content[i+1].Decode(&v); err != nil {
			return nil, component.NewTopologyError(component.MissingFieldError, fmt.Sprintf("invalid value for attribute %q: %v", key, err))
		}
		attrs[key] = v
	}
	return attrs, nil
}
