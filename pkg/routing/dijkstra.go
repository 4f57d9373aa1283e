package routing

import (
	"math"

	"grid_router/pkg/graph"
	"grid_router/pkg/grid"
)

type direction uint8

const (
	forward direction = iota
	backward
)

func (d direction) opposite() direction { return 1 - d }

type nodeKind uint8

const (
	baseNode nodeKind = iota
	overlayNode
)

type labelState uint8

const (
	unvisited labelState = iota
	open
	closed
)

const noParent int32 = -1

// label is the per-direction state of a search node.
type label struct {
	state  labelState
	cost   float64
	parent int32 // arena index, or noParent for seeds
	level  int8  // 0 for a straight leg, l for a level-l shortcut
}

// searchNode is one arena entry: a base vertex or an overlay vertex of a
// loaded chunk.
type searchNode struct {
	kind  nodeKind
	chunk int32
	id    int32
	pos   grid.Position
	ql    int
	dir   [2]label
}

// arena owns every node created by one query. Nodes are addressed by index
// and dropped together when the query ends.
type arena struct {
	nodes []searchNode
	base  map[uint64]int32 // chunk<<32 | base vertex
	over  map[uint64]int32 // chunk<<32 | overlay vertex
}

func newArena() *arena {
	return &arena{
		nodes: make([]searchNode, 0, 256),
		base:  make(map[uint64]int32, 256),
		over:  make(map[uint64]int32, 64),
	}
}

func nodeKey(chunk, id int32) uint64 {
	return uint64(uint32(chunk))<<32 | uint64(uint32(id))
}

// get returns the arena index of (kind, chunk, id), creating the node on
// first use. ql is only computed for new nodes.
func (a *arena) get(kind nodeKind, chunk, id int32, pos grid.Position, ql func(grid.Position) int) int32 {
	index := a.base
	if kind == overlayNode {
		index = a.over
	}
	k := nodeKey(chunk, id)
	if i, ok := index[k]; ok {
		return i
	}
	i := int32(len(a.nodes))
	n := searchNode{kind: kind, chunk: chunk, id: id, pos: pos, ql: ql(pos)}
	n.dir[forward] = label{cost: math.Inf(1), parent: noParent}
	n.dir[backward] = label{cost: math.Inf(1), parent: noParent}
	a.nodes = append(a.nodes, n)
	index[k] = i
	return i
}

// frontiers are the four open sets of a query, in tie-break order.
type frontiers [4]graph.MinHeap

func queueIndex(d direction, k nodeKind) int {
	return int(k)*2 + int(d)
}

// min returns the smallest key among the queues of direction d.
func (f *frontiers) min(d direction) float64 {
	return math.Min(f[queueIndex(d, baseNode)].PeekDist(), f[queueIndex(d, overlayNode)].PeekDist())
}

// pick returns the queue with the smallest key, or -1 when all are empty.
// Equal keys go to the earlier queue: forward-base, backward-base,
// forward-overlay, backward-overlay.
func (f *frontiers) pick() int {
	best, bestDist := -1, math.Inf(1)
	for i := range f {
		if d := f[i].PeekDist(); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
