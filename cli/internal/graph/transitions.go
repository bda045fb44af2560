// Package graph analyses the transition graph of a state machine. It finds
// states that can never run and states from which the execution can never
// finish; neither makes a definition unloadable, so they are reported as
// warnings.
package graph

import (
	"fmt"
	"slices"

	"github.com/BDNK1/sfnsim/runtime"
)

// Graph is the transition graph of one definition. Parallel branches and Map
// processors have their own graphs under the state that owns them.
type Graph struct {
	prefix       string
	start        string
	nodes        []string
	edges        map[string][]string
	reverseEdges map[string][]string
	terminal     map[string]bool
	children     []*Graph
}

// Build constructs the graph of def and of every nested definition.
func Build(def *runtime.Definition) *Graph {
	return build(def, "")
}

func build(def *runtime.Definition, prefix string) *Graph {
	g := &Graph{
		prefix:       prefix,
		start:        def.StartAt,
		edges:        make(map[string][]string),
		reverseEdges: make(map[string][]string),
		terminal:     make(map[string]bool),
	}

	for name, s := range def.States {
		if s != nil {
			g.nodes = append(g.nodes, name)
		}
	}
	slices.Sort(g.nodes)

	for _, name := range g.nodes {
		s := def.States[name]
		if s.End || s.Type == runtime.TypeSucceed || s.Type == runtime.TypeFail {
			g.terminal[name] = true
		}

		for _, next := range transitions(s) {
			if _, ok := def.States[next]; !ok {
				continue
			}
			g.edges[name] = append(g.edges[name], next)
			g.reverseEdges[next] = append(g.reverseEdges[next], name)
		}

		for i, branch := range s.Branches {
			if branch != nil {
				g.children = append(g.children, build(branch, fmt.Sprintf("%sStates.%s.Branches[%d]: ", prefix, name, i)))
			}
		}
		if processor := s.Processor(); processor != nil {
			g.children = append(g.children, build(processor, fmt.Sprintf("%sStates.%s.ItemProcessor: ", prefix, name)))
		}
	}
	return g
}

func transitions(s *runtime.State) []string {
	var next []string
	if s.Next != "" {
		next = append(next, s.Next)
	}
	for _, rule := range s.Choices {
		if rule.Next != "" {
			next = append(next, rule.Next)
		}
	}
	if s.Default != "" {
		next = append(next, s.Default)
	}
	for _, c := range s.Catch {
		next = append(next, c.Next)
	}
	return next
}

// walk returns every node reachable from roots along adjacency.
func walk(roots []string, adjacency map[string][]string) map[string]bool {
	seen := make(map[string]bool)
	queue := slices.Clone(roots)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if seen[current] {
			continue
		}
		seen[current] = true
		queue = append(queue, adjacency[current]...)
	}
	return seen
}

// Unreachable returns the states no path from StartAt leads to.
func (g *Graph) Unreachable() []string {
	reachable := walk([]string{g.start}, g.edges)

	var unreachable []string
	for _, name := range g.nodes {
		if !reachable[name] {
			unreachable = append(unreachable, name)
		}
	}
	return unreachable
}

// Trapped returns the reachable states from which no terminal state can be
// reached, such as a loop without an exit.
func (g *Graph) Trapped() []string {
	var terminals []string
	for _, name := range g.nodes {
		if g.terminal[name] {
			terminals = append(terminals, name)
		}
	}
	canFinish := walk(terminals, g.reverseEdges)
	reachable := walk([]string{g.start}, g.edges)

	var trapped []string
	for _, name := range g.nodes {
		if reachable[name] && !canFinish[name] {
			trapped = append(trapped, name)
		}
	}
	return trapped
}

// Warnings describes the unreachable and trapped states of g and of every
// nested graph.
func (g *Graph) Warnings() []string {
	var warnings []string
	for _, name := range g.Unreachable() {
		warnings = append(warnings, fmt.Sprintf("%sState [%s] is not reachable from StartAt", g.prefix, name))
	}
	for _, name := range g.Trapped() {
		warnings = append(warnings, fmt.Sprintf("%sState [%s] can never reach a terminal state", g.prefix, name))
	}
	for _, child := range g.children {
		warnings = append(warnings, child.Warnings()...)
	}
	return warnings
}
