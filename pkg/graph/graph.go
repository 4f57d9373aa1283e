package graph

import (
	"errors"

	"grid_router/pkg/grid"
)

// NoVertex marks a Target that lies in another chunk.
const NoVertex int32 = -1

var (
	ErrChunkNotLoaded  = errors.New("chunk not loaded")
	ErrChunkOutOfRange = errors.New("chunk out of range")
)

// ChunkSource resolves chunk ids to published chunks.
type ChunkSource interface {
	BaseChunk(id int) (*Chunk, error)
}

// Target is the far end of an edge: a vertex of the same chunk, or a grid
// position owned by another chunk (Vertex == NoVertex).
type Target struct {
	Vertex int32
	Pos    grid.Position
}

// Local returns a Target inside the owning chunk.
func Local(v int32, pos grid.Position) Target { return Target{Vertex: v, Pos: pos} }

// Remote returns a Target resolved through the chunk that owns pos.
func Remote(pos grid.Position) Target { return Target{Vertex: NoVertex, Pos: pos} }

// IsRemote reports whether t must be resolved in another chunk.
func (t Target) IsRemote() bool { return t.Vertex == NoVertex }

// Vertex is a subgoal owned by a chunk.
type Vertex struct {
	Pos        grid.Position
	EdgeOffset int32  // first index into Chunk.Mapping
	Cell       uint64 // packed cell number
}

// Edge joins a vertex to a Target. Local-local edges are stored once and
// referenced from both endpoints through Chunk.Mapping.
type Edge struct {
	From int32
	To   Target
	Cost float64
}

// Chunk is the subgoal graph of one square block of the grid, in CSR form.
type Chunk struct {
	ID       int
	Bounds   grid.Rect
	Vertices []Vertex // sorted by linear position
	Edges    []Edge
	Mapping  []int32 // Mapping[Vertices[v].EdgeOffset:end(v)] are the edges touching v

	byPos map[grid.Position]int32
}

// Origin returns the lower corner of the chunk.
func (c *Chunk) Origin() grid.Position {
	return grid.Position{X: c.Bounds.MinX, Y: c.Bounds.MinY}
}

// VertexAt returns the vertex at pos, if any.
func (c *Chunk) VertexAt(pos grid.Position) (int32, bool) {
	v, ok := c.byPos[pos]
	return v, ok
}

// EdgesOf returns the indices into Edges of every edge touching v.
func (c *Chunk) EdgesOf(v int32) []int32 {
	start := c.Vertices[v].EdgeOffset
	end := int32(len(c.Mapping))
	if int(v)+1 < len(c.Vertices) {
		end = c.Vertices[v+1].EdgeOffset
	}
	return c.Mapping[start:end]
}

// Other returns the endpoint of edge e that is not v.
func (c *Chunk) Other(e int32, v int32) Target {
	edge := &c.Edges[e]
	if edge.From == v {
		return edge.To
	}
	return Local(edge.From, c.Vertices[edge.From].Pos)
}

// NumRemote counts edges whose target lies in another chunk.
func (c *Chunk) NumRemote() int {
	n := 0
	for i := range c.Edges {
		if c.Edges[i].To.IsRemote() {
			n++
		}
	}
	return n
}

// RemoteEdge is a cross-chunk edge expressed by positions only.
type RemoteEdge struct {
	From, To grid.Position
	Cost     float64
}

// RemoteEdges lists the chunk's cross-chunk edges in storage order.
func (c *Chunk) RemoteEdges() []RemoteEdge {
	var out []RemoteEdge
	for i := range c.Edges {
		e := &c.Edges[i]
		if e.To.IsRemote() {
			out = append(out, RemoteEdge{From: c.Vertices[e.From].Pos, To: e.To.Pos, Cost: e.Cost})
		}
	}
	return out
}

func (c *Chunk) indexPositions() {
	c.byPos = make(map[grid.Position]int32, len(c.Vertices))
	for i := range c.Vertices {
		c.byPos[c.Vertices[i].Pos] = int32(i)
	}
}
