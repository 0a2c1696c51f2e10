package refint

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/revstore/internal/resource"
)

// CycleWarning represents a cycle of cascade relationships.
//
// Cycles are warnings, not errors: propagation tracks visited resources,
// so a delete that cascades back to its origin stops there.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["Guild", "Character", "Guild"]
	Message string   `json:"message"` // Human-readable description
}

// AnalyzeCascades detects cycles in the cascade graph.
//
// The algorithm:
//  1. Build target type → source type edges from cascade relationships
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops as a cycle warning
//
// A DAG (no cycles) returns an empty warning list.
func AnalyzeCascades(rels []resource.Relationship) []CycleWarning {
	graph := buildCascadeGraph(rels)

	warnings := []CycleWarning{}
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	return warnings
}

// cascadeGraph maps a model to the models a delete of it cascades into.
type cascadeGraph map[string][]string

func buildCascadeGraph(rels []resource.Relationship) cascadeGraph {
	graph := make(cascadeGraph)
	for _, rel := range rels {
		if rel.OnDelete != resource.Cascade {
			continue
		}
		if graph[rel.SourceType] == nil {
			graph[rel.SourceType] = []string{}
		}
		if !slices.Contains(graph[rel.TargetType], rel.SourceType) {
			graph[rel.TargetType] = append(graph[rel.TargetType], rel.SourceType)
		}
	}
	for node := range graph {
		slices.Sort(graph[node])
	}
	return graph
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph cascadeGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so results are deterministic.
func tarjanSCC(graph cascadeGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// If v is a root node, pop the stack and create an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

func cycleSCCToWarning(scc []string, graph cascadeGraph) CycleWarning {
	if len(scc) == 1 {
		model := scc[0]
		return CycleWarning{
			Path:    []string{model, model},
			Message: fmt.Sprintf("self-referencing cascade: %s → %s", model, model),
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("cascade cycle: %s", strings.Join(path, " → ")),
	}
}

// reconstructCyclePath starts at the first SCC member and follows edges to
// other members until it returns to the start.
func reconstructCyclePath(scc []string, graph cascadeGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
