// Package baseline runs plain Dijkstra over the 8-connected cell graph of a
// grid. It is the reference the hierarchical engine is measured against.
package baseline

import (
	"math"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"grid_router/pkg/grid"
	"grid_router/pkg/subgoal"
)

// forwardDirs lists half of the moves; the graph is undirected.
var forwardDirs = []subgoal.Dir{{DX: 1, DY: 0}, {DX: 0, DY: 1}, {DX: 1, DY: 1}, {DX: 1, DY: -1}}

// Grid is the cell graph of a grid. Diagonal moves that cut a blocked corner
// are left out, and a step between two road cells costs half.
type Grid struct {
	width, height int
	g             *simple.WeightedUndirectedGraph
}

// New builds the cell graph of src.
func New(src grid.Source) *Grid {
	w, h := src.Size()
	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for x := range w {
		for y := range h {
			if src.IsWalkable(x, y) {
				g.AddNode(simple.Node(x*h + y))
			}
		}
	}
	for x := range w {
		for y := range h {
			if !src.IsWalkable(x, y) {
				continue
			}
			from := grid.Position{X: x, Y: y}
			for _, d := range forwardDirs {
				if !subgoal.CanMove(src, x, y, d) {
					continue
				}
				to := grid.Position{X: x + d.DX, Y: y + d.DY}
				g.SetWeightedEdge(g.NewWeightedEdge(
					simple.Node(x*h+y), simple.Node(to.X*h+to.Y), subgoal.Cost(src, from, to)))
			}
		}
	}
	return &Grid{width: w, height: h, g: g}
}

func (b *Grid) id(p grid.Position) int64 { return int64(p.X*b.height + p.Y) }

// Walkable reports whether p is a node of the cell graph.
func (b *Grid) Walkable(p grid.Position) bool {
	if p.X < 0 || p.Y < 0 || p.X >= b.width || p.Y >= b.height {
		return false
	}
	return b.g.Node(b.id(p)) != nil
}

// Tree is a one-to-all shortest path tree.
type Tree struct {
	b *Grid
	s path.Shortest
}

// From runs Dijkstra from a. a must be walkable.
func (b *Grid) From(a grid.Position) *Tree {
	return &Tree{b: b, s: path.DijkstraFrom(simple.Node(b.id(a)), b.g)}
}

// Cost returns the distance to p, or +Inf when p is unreachable.
func (t *Tree) Cost(p grid.Position) float64 {
	if !t.b.Walkable(p) {
		return math.Inf(1)
	}
	return t.s.WeightTo(t.b.id(p))
}

// Path returns the cells from the tree root to p and the path cost.
func (t *Tree) Path(p grid.Position) ([]grid.Position, float64, bool) {
	if !t.b.Walkable(p) {
		return nil, math.Inf(1), false
	}
	nodes, w := t.s.To(t.b.id(p))
	if len(nodes) == 0 {
		return nil, math.Inf(1), false
	}
	out := make([]grid.Position, len(nodes))
	for i, n := range nodes {
		id := int(n.ID())
		out[i] = grid.Position{X: id / t.b.height, Y: id % t.b.height}
	}
	return out, w, true
}

// ShortestPath is From(a).Path(b). Unwalkable endpoints have no path.
func (b *Grid) ShortestPath(a, c grid.Position) ([]grid.Position, float64, bool) {
	if !b.Walkable(a) {
		return nil, math.Inf(1), false
	}
	return b.From(a).Path(c)
}
