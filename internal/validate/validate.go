// Package validate implements the Topology Validator (C3): it rejects
// invalid topologies and returns a build order for the ones it accepts.
package validate

import (
	"fmt"
	"sort"

	"github.com/finnroblin/data-prepper/internal/component"
	"github.com/finnroblin/data-prepper/internal/topology"
)

// Warning is a non-fatal finding.
type Warning struct {
	Pipeline string
	Message  string
}

func (w Warning) String() string {
	return fmt.Sprintf("[%s] %s", w.Pipeline, w.Message)
}

// Result is the validator's output: a build order (dependencies before
// dependents) and any non-fatal warnings.
type Result struct {
	Order    []string
	Warnings []Warning
}

// Validate checks name uniqueness, reference existence, and acyclicity, then
// computes a topological build order.
func Validate(doc *topology.Doc) (*Result, error) {
	if err := checkNames(doc); err != nil {
		return nil, err
	}
	edges, err := buildEdges(doc)
	if err != nil {
		return nil, err
	}
	order, err := topoSort(doc.Names, edges)
	if err != nil {
		return nil, err
	}
	return &Result{
		Order:    order,
		Warnings: observabilityWarnings(doc, edges),
	}, nil
}

func checkNames(doc *topology.Doc) error {
	seen := make(map[string]bool, len(doc.Names))
	for _, name := range doc.Names {
		if name == "" {
			return component.NewTopologyError(component.DuplicateNameError, "pipeline name must not be empty")
		}
		if seen[name] {
			return component.NewTopologyError(component.DuplicateNameError, fmt.Sprintf("duplicate pipeline name %q", name), name)
		}
		seen[name] = true
	}
	return nil
}

// linkTarget returns the pipeline name a PluginSpec references, if any, and
// whether that reference resolves to a pipeline that actually exists.
func linkTarget(doc *topology.Doc, from string, spec topology.PluginSpec) (string, error) {
	name, ok := spec.PipelineLinkTarget()
	if !ok {
		return "", nil
	}
	if _, exists := doc.Pipelines[name]; !exists {
		return "", component.NewTopologyError(component.UnknownReferenceError,
			fmt.Sprintf("references unknown pipeline %q", name), from)
	}
	return name, nil
}

// buildEdges constructs the inter-pipeline reference DAG:
// an edge P -> Q exists iff P has a sink referencing Q.
//
// A pipeline's source-side "pipeline" link (its own upstream's name) is
// deliberately NOT added as a second, opposite edge. It names the same
// logical connection its upstream's sink link already contributes; counting
// both directions would turn every valid two-pipeline link (S1: A's sink ->
// B, B's source -> A) into a false 2-cycle. The original implementation
// (PipelineParser.getSourceIfPipelineType) confirms this: a source-side
// pipeline link only triggers on-demand recursive building of the named
// upstream, it never participates in a separate cycle check.
func buildEdges(doc *topology.Doc) (map[string][]string, error) {
	edges := make(map[string][]string, len(doc.Names))
	for _, name := range doc.Names {
		p := doc.Pipelines[name]

		// A source-side pipeline link must still name a pipeline that
		// exists, even though it contributes no
		// edge of its own.
		if _, err := linkTarget(doc, name, p.Source); err != nil {
			return nil, err
		}

		seen := map[string]bool{}
		for _, sink := range p.Sinks {
			target, err := linkTarget(doc, name, sink)
			if err != nil {
				return nil, err
			}
			if target != "" && !seen[target] {
				seen[target] = true
				edges[name] = append(edges[name], target)
			}
		}
	}
	return edges, nil
}

// topoSort performs a DFS-based topological sort in which every pipeline is
// ordered after each pipeline whose sink links to it (its upstreams, which
// the builder resolves first). Ties are broken by the document's insertion
// order. A back-edge during the DFS is a cycle.
func topoSort(names []string, edges map[string][]string) ([]string, error) {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(names))
	order := make([]string, 0, len(names))
	var stack []string

	upstreams := make(map[string][]string, len(names))
	for _, n := range names {
		for _, target := range edges[n] {
			upstreams[target] = append(upstreams[target], n)
		}
	}

	var visit func(n string) error
	visit = func(n string) error {
		color[n] = gray
		stack = append(stack, n)
		for _, dep := range upstreams[n] {
			switch color[dep] {
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			case gray:
				cycleStart := indexOf(stack, dep)
				participants := append(append([]string{}, stack[cycleStart:]...), dep)
				// The walk follows sink links backwards; reverse so the
				// participants read in sink-link direction.
				for i, j := 0, len(participants)-1; i < j; i, j = i+1, j-1 {
					participants[i], participants[j] = participants[j], participants[i]
				}
				return component.NewTopologyError(component.CycleError,
					"inter-pipeline reference cycle detected", participants...)
			case black:
				// already fully ordered, no-op
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
		order = append(order, n)
		return nil
	}

	for _, n := range names {
		if color[n] == white {
			if err := visit(n); err != nil {
				return nil, err
			}
		}
	}
	return order, nil
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return 0
}

// observabilityWarnings flags pipelines whose output never reaches an
// externally observable sink: every sink is itself a pipeline link, and none
// of those links eventually reach a non-link sink. Assumes the
// reference graph is already known to be acyclic.
func observabilityWarnings(doc *topology.Doc, edges map[string][]string) []Warning {
	memo := map[string]bool{}
	var hasObservableOutput func(name string) bool
	hasObservableOutput = func(name string) bool {
		if v, ok := memo[name]; ok {
			return v
		}
		memo[name] = false // break recursion defensively; graph is acyclic so unused in practice
		p := doc.Pipelines[name]
		observable := false
		for _, sink := range p.Sinks {
			if target, ok := sink.PipelineLinkTarget(); ok {
				if hasObservableOutput(target) {
					observable = true
					break
				}
				continue
			}
			observable = true
			break
		}
		memo[name] = observable
		return observable
	}

	var warnings []Warning
	for _, name := range doc.Names {
		if !hasObservableOutput(name) {
			warnings = append(warnings, Warning{
				Pipeline: name,
				Message:  "pipeline has no sink whose downstream is observable",
			})
		}
	}
	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Pipeline < warnings[j].Pipeline })
	_ = edges
	return warnings
}
