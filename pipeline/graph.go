package pipeline

import (
	"fmt"
	"reflect"
	"sort"
)

// Edge declares a dependency: the output of From feeds an input slot of To.
type Edge struct {
	From string
	To   string
}

// GraphErrorKind names the invariant a graph construction violated.
type GraphErrorKind string

const (
	ErrDuplicateStage   GraphErrorKind = "duplicate_stage"
	ErrUnknownStage     GraphErrorKind = "unknown_stage"
	ErrTypeMismatch     GraphErrorKind = "type_mismatch"
	ErrUnsatisfiedInput GraphErrorKind = "unsatisfied_input"
	ErrCycle            GraphErrorKind = "cycle"
)

// GraphError reports a structural violation found during Build. Construction
// is all-or-nothing: on any GraphError no graph is returned.
type GraphError struct {
	Kind   GraphErrorKind
	Reason string
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("pipeline: %s: %s", e.Kind, e.Reason)
}

func graphErrorf(kind GraphErrorKind, format string, args ...any) *GraphError {
	return &GraphError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// node is a validated stage binding inside a Graph. Immutable after Build.
type node struct {
	stage Stage
	order int // declaration index, used for stable ordering
	ins   []reflect.Type
	// slots[i] is the producer stage feeding input slot i; "" for the
	// externally fed slot of a root node.
	slots []string
	succs []string
}

// Graph is a validated, immutable pipeline: stages plus edges, with a cached
// topological ordering grouped into dependency levels.
type Graph struct {
	id     string
	nodes  map[string]*node
	edges  []Edge
	levels [][]string
}

// ID returns the pipeline identity.
func (g *Graph) ID() string { return g.id }

// Stages returns stage names in topological order.
func (g *Graph) Stages() []string {
	var names []string
	for _, level := range g.levels {
		names = append(names, level...)
	}
	return names
}

// Chain builds the linear-chain convention: each stage feeds the next in
// listed order.
func Chain(id string, stages []Stage) (*Graph, error) {
	edges := make([]Edge, 0, len(stages))
	for i := 1; i < len(stages); i++ {
		edges = append(edges, Edge{From: stages[i-1].Name(), To: stages[i].Name()})
	}
	return Build(id, stages, edges)
}

// Build validates stages and edges into an executable Graph.
//
// Checks run in order: duplicate stage names, edges referencing unknown
// stages, producer/consumer type compatibility (an edge claims the first
// unclaimed input slot its producer output is assignable to, in edge
// declaration order), input completeness, and cycle detection. Any violation
// returns a *GraphError and no graph.
func Build(id string, stages []Stage, edges []Edge) (*Graph, error) {
	nodes := make(map[string]*node, len(stages))
	for i, s := range stages {
		name := s.Name()
		if name == "" {
			return nil, graphErrorf(ErrUnknownStage, "stage at index %d has empty name", i)
		}
		if _, exists := nodes[name]; exists {
			return nil, graphErrorf(ErrDuplicateStage, "stage %q declared more than once", name)
		}
		ins := s.InputTypes()
		nodes[name] = &node{
			stage: s,
			order: i,
			ins:   ins,
			slots: make([]string, len(ins)),
		}
	}

	for _, e := range edges {
		if _, ok := nodes[e.From]; !ok {
			return nil, graphErrorf(ErrUnknownStage, "edge %s -> %s references unknown stage %q", e.From, e.To, e.From)
		}
		if _, ok := nodes[e.To]; !ok {
			return nil, graphErrorf(ErrUnknownStage, "edge %s -> %s references unknown stage %q", e.From, e.To, e.To)
		}
	}

	// Claim input slots. Fan-in beyond the declared slots of a stage is a
	// type violation, not a merge.
	for _, e := range edges {
		producer := nodes[e.From]
		consumer := nodes[e.To]
		out := producer.stage.OutputType()

		claimed := false
		for i, in := range consumer.ins {
			if consumer.slots[i] != "" {
				continue
			}
			if !assignable(out, in) {
				continue
			}
			consumer.slots[i] = e.From
			claimed = true
			break
		}
		if !claimed {
			return nil, graphErrorf(ErrTypeMismatch,
				"edge %s -> %s: output %s is not assignable to any free input slot of %q (declared inputs: %s)",
				e.From, e.To, typeName(out), e.To, typeNames(consumer.ins))
		}
		producer.succs = append(producer.succs, e.To)
	}

	// Completeness: every slot of a non-root stage must be fed. Root stages
	// get at most one slot, fed by the run's initial input.
	for name, n := range nodes {
		unfed := 0
		for _, p := range n.slots {
			if p == "" {
				unfed++
			}
		}
		if unfed == 0 {
			continue
		}
		if unfed == len(n.slots) { // root
			if len(n.ins) > 1 {
				return nil, graphErrorf(ErrUnsatisfiedInput,
					"stage %q declares %d inputs but has no inbound edges; root stages take a single external input", name, len(n.ins))
			}
			continue
		}
		return nil, graphErrorf(ErrUnsatisfiedInput,
			"stage %q has %d of %d input slots unsatisfied", name, unfed, len(n.slots))
	}

	if err := detectCycle(nodes); err != nil {
		return nil, err
	}

	g := &Graph{id: id, nodes: nodes, edges: append([]Edge(nil), edges...)}
	g.levels = buildLevels(nodes)
	return g, nil
}

// assignable reports whether a producer output type can feed a consumer
// input: exact match, declared-subtype (interface satisfaction), or an `any`
// slot.
func assignable(out, in reflect.Type) bool {
	if in == nil || out == nil {
		return false
	}
	return out.AssignableTo(in)
}

// detectCycle runs a depth-first search with white/grey/black coloring and
// rejects on any back-edge. Iteration follows declaration order so the
// reported cycle is deterministic.
func detectCycle(nodes map[string]*node) *GraphError {
	const (
		white = 0 // unvisited
		grey  = 1 // on the current DFS path
		black = 2 // fully explored
	)
	color := make(map[string]int, len(nodes))

	var visit func(name string) *GraphError
	visit = func(name string) *GraphError {
		color[name] = grey
		for _, succ := range nodes[name].succs {
			switch color[succ] {
			case grey:
				return graphErrorf(ErrCycle, "cycle through stages %q and %q", name, succ)
			case white:
				if err := visit(succ); err != nil {
					return err
				}
			}
		}
		color[name] = black
		return nil
	}

	for _, name := range namesByOrder(nodes) {
		if color[name] == white {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// buildLevels groups stages into dependency levels with Kahn's algorithm.
// Stages within a level share no ancestor-descendant relation and may run
// concurrently. Ties break by declaration order, so the resulting order is
// stable. Called only after cycle detection has passed.
func buildLevels(nodes map[string]*node) [][]string {
	inDegree := make(map[string]int, len(nodes))
	for name, n := range nodes {
		if _, ok := inDegree[name]; !ok {
			inDegree[name] = 0
		}
		for _, p := range n.slots {
			if p != "" {
				inDegree[name]++
			}
		}
	}

	var queue []string
	for _, name := range namesByOrder(nodes) {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	var levels [][]string
	for len(queue) > 0 {
		levels = append(levels, queue)

		var next []string
		for _, name := range queue {
			for _, succ := range nodes[name].succs {
				inDegree[succ]--
				if inDegree[succ] == 0 {
					next = append(next, succ)
				}
			}
		}
		sort.Slice(next, func(i, j int) bool {
			return nodes[next[i]].order < nodes[next[j]].order
		})
		queue = next
	}
	return levels
}

func namesByOrder(nodes map[string]*node) []string {
	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return nodes[names[i]].order < nodes[names[j]].order
	})
	return names
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

func typeNames(ts []reflect.Type) string {
	s := ""
	for i, t := range ts {
		if i > 0 {
			s += ", "
		}
		s += typeName(t)
	}
	return s
}
