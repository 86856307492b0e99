package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/solpm/internal/ir"
)

// TypeCycle describes a set of types whose composition never terminates.
type TypeCycle struct {
	Path    []string `json:"path"`    // Cycle path: ["A", "B", "A"]
	Message string   `json:"message"` // Human-readable description
}

// AnalyzeTypeCycles finds composition cycles among declared types.
//
// A type that contains itself by value (directly, through a fixed-size
// array, through an option or through an alias) has infinite size and
// cannot be serialized. Variable-length sequences are length-prefixed and
// may legitimately be recursive, so Vec edges are not followed.
//
// The algorithm:
//  1. Build type → contained-type graph in declared order
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop
//
// An acyclic program returns an empty list.
func AnalyzeTypeCycles(p *ir.Program) []TypeCycle {
	graph, order := buildCompositionGraph(p)

	var cycles []TypeCycle
	for _, scc := range tarjanSCC(graph, order) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			cycles = append(cycles, sccToCycle(scc, graph, order))
		}
	}
	return cycles
}

// compositionGraph maps type name → types it embeds by value.
type compositionGraph map[string][]string

func buildCompositionGraph(p *ir.Program) (compositionGraph, []string) {
	graph := make(compositionGraph)
	order := make([]string, 0, len(p.Types))

	for _, td := range p.Types {
		if _, seen := graph[td.Name]; seen {
			continue
		}
		order = append(order, td.Name)
		graph[td.Name] = []string{}
	}

	for _, td := range p.Types {
		name := td.Name
		forEachBodyRef(td.Body, name, func(t ir.TypeRef, _ string) {
			for _, dep := range byValueRefs(t) {
				if _, declared := graph[dep]; declared {
					graph[name] = append(graph[name], dep)
				}
			}
		})
	}
	return graph, order
}

// byValueRefs returns the named types t embeds by value.
func byValueRefs(t ir.TypeRef) []string {
	switch tt := t.(type) {
	case ir.Primitive:
		return nil
	case ir.Named:
		return []string{tt.Name}
	case ir.Array:
		if tt.Len == 0 {
			return nil
		}
		return byValueRefs(tt.Elem)
	case ir.Option:
		return byValueRefs(tt.Elem)
	case ir.Vec:
		return nil
	default:
		panic(fmt.Sprintf("compiler: unhandled type reference %T", t))
	}
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph compositionGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in declared order so results are deterministic.
func tarjanSCC(graph compositionGraph, order []string) [][]string {
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

		// v is a root node: pop the stack and create an SCC
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
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// sccToCycle converts an SCC to a TypeCycle starting at the member
// declared first.
func sccToCycle(scc []string, graph compositionGraph, order []string) TypeCycle {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}
	start := scc[0]
	for _, n := range order {
		if members[n] {
			start = n
			break
		}
	}

	if len(scc) == 1 {
		return TypeCycle{
			Path:    []string{start, start},
			Message: fmt.Sprintf("type %s contains itself by value", start),
		}
	}

	path := reconstructCyclePath(start, members, graph)
	return TypeCycle{
		Path:    path,
		Message: fmt.Sprintf("cyclic type composition: %s", strings.Join(path, " → ")),
	}
}

// reconstructCyclePath follows edges inside the SCC until it returns to start.
func reconstructCyclePath(start string, members map[string]bool, graph compositionGraph) []string {
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
