// Package overlay builds the multi-level shortcut graph of a chunk.
//
// Every base edge whose endpoints lie in different level-1 cells produces an
// overlay vertex on each side that the chunk owns. Level-l shortcuts connect
// the overlay vertices of one level-l cell with the cost of the shortest path
// that stays inside that cell.
package overlay

import (
	"grid_router/pkg/cell"
	"grid_router/pkg/graph"
	"grid_router/pkg/grid"
)

// NoMirror marks an overlay vertex whose crossing leaves the chunk.
const NoMirror int32 = -1

// Shortcut is a precomputed cell-internal path to another overlay vertex.
type Shortcut struct {
	To   int32
	Cost float64
}

// Vertex is one side of a cell-crossing base edge.
type Vertex struct {
	Base   int32 // base vertex on this side
	Edge   int32 // base edge being crossed
	Mirror int32 // overlay vertex on the other side, or NoMirror
	Level  int   // highest level at which the crossing changes cell
	Edges  [][]Shortcut
}

// Chunk is the overlay of one base chunk.
type Chunk struct {
	Vertices []Vertex

	keys  map[uint64]int32 // ownLinear<<32 | otherLinear
	cells [][][]int32      // cells[l-1][local cell] -> overlay ids
}

func key(own, other grid.Position, sizeY int) uint64 {
	return uint64(uint32(own.Linear(sizeY)))<<32 | uint64(uint32(other.Linear(sizeY)))
}

// Lookup returns the overlay vertex standing at own whose crossing leads to other.
func (c *Chunk) Lookup(own, other grid.Position, sizeY int) (int32, bool) {
	id, ok := c.keys[key(own, other, sizeY)]
	return id, ok
}

// Bucket returns the overlay vertices registered in a level-l local cell.
func (c *Chunk) Bucket(l, local int) []int32 {
	if l < 1 || l > len(c.cells) || local < 0 || local >= len(c.cells[l-1]) {
		return nil
	}
	return c.cells[l-1][local]
}

// NumShortcuts counts stored shortcuts across all levels.
func (c *Chunk) NumShortcuts() int {
	n := 0
	for i := range c.Vertices {
		for _, sc := range c.Vertices[i].Edges {
			n += len(sc)
		}
	}
	return n
}

// OtherPos returns the position on the far side of overlay vertex id's crossing.
func (c *Chunk) OtherPos(base *graph.Chunk, id int32) grid.Position {
	v := &c.Vertices[id]
	return base.Other(v.Edge, v.Base).Pos
}

// ConstructNodes creates the overlay vertices of base and registers each in
// its cell at every level from its crossing level down to 1.
func ConstructNodes(base *graph.Chunk, h *cell.Hierarchy, sizeY int) *Chunk {
	c := &Chunk{}
	for e := range base.Edges {
		edge := &base.Edges[e]
		from := &base.Vertices[edge.From]
		level := h.HighestDifferingLevel(from.Cell, h.CellOf(edge.To.Pos))
		if level == 0 {
			continue
		}
		a := c.add(edge.From, int32(e), level)
		if edge.To.IsRemote() {
			continue
		}
		b := c.add(edge.To.Vertex, int32(e), level)
		c.Vertices[a].Mirror = b
		c.Vertices[b].Mirror = a
	}
	c.index(base, h, sizeY)
	return c
}

func (c *Chunk) add(baseVertex, edge int32, level int) int32 {
	id := int32(len(c.Vertices))
	c.Vertices = append(c.Vertices, Vertex{
		Base:   baseVertex,
		Edge:   edge,
		Mirror: NoMirror,
		Level:  level,
		Edges:  make([][]Shortcut, level),
	})
	return id
}

// index rebuilds the key lookup and the per-level cell buckets.
func (c *Chunk) index(base *graph.Chunk, h *cell.Hierarchy, sizeY int) {
	origin := base.Origin()
	c.keys = make(map[uint64]int32, len(c.Vertices))
	c.cells = make([][][]int32, h.Levels())
	for l := 1; l <= h.Levels(); l++ {
		c.cells[l-1] = make([][]int32, h.CellsPerChunk(l))
	}
	for id := range c.Vertices {
		v := &c.Vertices[id]
		own := base.Vertices[v.Base].Pos
		c.keys[key(own, c.OtherPos(base, int32(id)), sizeY)] = int32(id)
		for l := 1; l <= v.Level; l++ {
			local := h.LocalCell(l, origin, own)
			c.cells[l-1][local] = append(c.cells[l-1][local], int32(id))
		}
	}
}
