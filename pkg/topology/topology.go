// Package topology orders the nodes of a graph so that every node comes after
// the nodes feeding its inputs.
//
// Sorting never fails. When the connections form a cycle there is no
// dependency order, so the resolver logs a single warning and falls back to
// ordering nodes left to right by canvas x position.
package topology

import (
	"sort"

	"github.com/wehubfusion/Daedalus/pkg/graph"
	"go.uber.org/zap"
)

// Result is the outcome of analysing a graph.
type Result struct {
	// Order is the dependency order, or the x-position order when HasCycle is set.
	Order []*graph.Node
	// HasCycle reports whether a cycle was found.
	HasCycle bool
	// Cycle holds the ids of the nodes on the first cycle found, closing node repeated last.
	Cycle []int
}

// Resolver computes topological orders.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver creates a resolver. A nil logger disables logging.
func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{logger: logger}
}

// Sort returns nodes in dependency order. See Analyze.
func (r *Resolver) Sort(nodes []*graph.Node, connections []graph.Connection) []*graph.Node {
	return r.Analyze(nodes, connections).Order
}

// Analyze builds the dependency graph (node A depends on node B when a
// connection runs from an output socket of B to an input socket of A) and
// sorts it depth-first in post-order. Nodes are visited in list order and
// dependencies in the order their owners appear in the list, so unconstrained
// nodes keep their relative order. Connections whose sockets are unknown or
// point the wrong way are ignored.
func (r *Resolver) Analyze(nodes []*graph.Node, connections []graph.Connection) Result {
	deps := dependencies(nodes, connections)

	const (
		unvisited = iota
		inProgress
		done
	)
	state := make([]int, len(nodes))
	order := make([]*graph.Node, 0, len(nodes))
	var stack []int
	var cycle []int

	var visit func(i int) bool
	visit = func(i int) bool {
		switch state[i] {
		case done:
			return true
		case inProgress:
			cycle = cyclePath(nodes, stack, i)
			return false
		}
		state[i] = inProgress
		stack = append(stack, i)
		for _, d := range deps[i] {
			if !visit(d) {
				return false
			}
		}
		stack = stack[:len(stack)-1]
		state[i] = done
		order = append(order, nodes[i])
		return true
	}

	for i := range nodes {
		if !visit(i) {
			r.logger.Warn("Cycle detected in node graph, falling back to position order",
				zap.Ints("cycle", cycle),
				zap.Int("node_count", len(nodes)))
			return Result{Order: byPosition(nodes), HasCycle: true, Cycle: cycle}
		}
	}
	return Result{Order: order}
}

// dependencies returns, per node index, the indices of its upstream nodes in
// ascending order.
func dependencies(nodes []*graph.Node, connections []graph.Connection) [][]int {
	type owner struct {
		index int
		typ   graph.SocketType
	}
	owners := make(map[int]owner)
	for i, n := range nodes {
		if n == nil {
			continue
		}
		for _, s := range n.Sockets {
			if _, dup := owners[s.ID]; !dup {
				owners[s.ID] = owner{index: i, typ: s.Type}
			}
		}
	}

	deps := make([][]int, len(nodes))
	seen := make(map[[2]int]struct{})
	for _, c := range connections {
		from, ok := owners[c.FromSocket]
		if !ok || from.typ != graph.SocketOutput {
			continue
		}
		to, ok := owners[c.ToSocket]
		if !ok || to.typ != graph.SocketInput {
			continue
		}
		key := [2]int{to.index, from.index}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		deps[to.index] = append(deps[to.index], from.index)
	}
	for _, d := range deps {
		sort.Ints(d)
	}
	return deps
}

func cyclePath(nodes []*graph.Node, stack []int, closing int) []int {
	start := 0
	for k, idx := range stack {
		if idx == closing {
			start = k
			break
		}
	}
	path := make([]int, 0, len(stack)-start+1)
	for _, idx := range stack[start:] {
		path = append(path, nodeID(nodes[idx]))
	}
	return append(path, nodeID(nodes[closing]))
}

func byPosition(nodes []*graph.Node) []*graph.Node {
	out := append([]*graph.Node(nil), nodes...)
	sort.SliceStable(out, func(i, j int) bool {
		return x(out[i]) < x(out[j])
	})
	return out
}

func nodeID(n *graph.Node) int {
	if n == nil {
		return 0
	}
	return n.ID
}

func x(n *graph.Node) float64 {
	if n == nil {
		return 0
	}
	return n.Position.X
}
