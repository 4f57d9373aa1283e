package graph

import (
	"fmt"
	"sort"

	"grid_router/pkg/cell"
	"grid_router/pkg/grid"
	"grid_router/pkg/subgoal"
)

// ScanOptions tunes chunk scanning.
type ScanOptions struct {
	MaxClearance int // 0 = unbounded
}

// Scan builds the unstitched subgoal graph of chunk id. Subgoals are found
// over the chunk plus a one-chunk halo; only those inside the chunk become
// vertices. Edges to subgoals outside the chunk are stored as Remote targets.
func Scan(src grid.Source, h *cell.Hierarchy, layout Layout, id int, opts ScanOptions) (*Chunk, error) {
	if id < 0 || id >= layout.Count() {
		return nil, fmt.Errorf("scan chunk %d: %w", id, ErrChunkOutOfRange)
	}
	bounds := layout.Bounds(id)
	cache := subgoal.NewCache(src, bounds.Expand(layout.ChunkSize, layout.Width, layout.Height))

	c := &Chunk{ID: id, Bounds: bounds}
	for _, p := range cache.In(bounds) {
		c.Vertices = append(c.Vertices, Vertex{Pos: p, Cell: h.CellOf(p)})
	}
	c.indexPositions()

	sc := &subgoal.Scanner{Source: src, IsSubgoal: cache.IsSubgoal, MaxClearance: opts.MaxClearance}
	seenLocal := make(map[uint64]struct{})
	seenRemote := make(map[uint64]struct{})
	for i := range c.Vertices {
		from := c.Vertices[i].Pos
		for _, p := range sc.DirectHReachable(from.X, from.Y) {
			cost := subgoal.Cost(src, from, p)
			if j, ok := c.byPos[p]; ok {
				key := subgoal.PairKey(int32(i), j)
				if _, dup := seenLocal[key]; dup {
					continue
				}
				seenLocal[key] = struct{}{}
				c.Edges = append(c.Edges, Edge{From: int32(i), To: Local(j, p), Cost: cost})
				continue
			}
			key := uint64(i)<<32 | uint64(uint32(p.Linear(layout.Height)))
			if _, dup := seenRemote[key]; dup {
				continue
			}
			seenRemote[key] = struct{}{}
			c.Edges = append(c.Edges, Edge{From: int32(i), To: Remote(p), Cost: cost})
		}
	}
	buildMapping(c)
	return c, nil
}

// buildMapping fills EdgeOffset and Mapping from Edges by counting and prefix sum.
func buildMapping(c *Chunk) {
	n := len(c.Vertices)
	counts := make([]int32, n+1)
	for i := range c.Edges {
		e := &c.Edges[i]
		counts[e.From+1]++
		if !e.To.IsRemote() {
			counts[e.To.Vertex+1]++
		}
	}
	for i := 1; i <= n; i++ {
		counts[i] += counts[i-1]
	}
	c.Mapping = make([]int32, counts[n])
	fill := make([]int32, n)
	for v := range c.Vertices {
		c.Vertices[v].EdgeOffset = counts[v]
		fill[v] = counts[v]
	}
	for i := range c.Edges {
		e := &c.Edges[i]
		c.Mapping[fill[e.From]] = int32(i)
		fill[e.From]++
		if !e.To.IsRemote() {
			c.Mapping[fill[e.To.Vertex]] = int32(i)
			fill[e.To.Vertex]++
		}
	}
}

// Stitch returns a copy of c extended with the reverse of every incoming
// remote edge that ends at one of c's vertices and is not already present.
// The input order of incoming does not affect the result.
func Stitch(c *Chunk, incoming []RemoteEdge, sizeY int) *Chunk {
	type key struct {
		v   int32
		pos int32
	}
	have := make(map[key]struct{})
	for i := range c.Edges {
		if e := &c.Edges[i]; e.To.IsRemote() {
			have[key{e.From, e.To.Pos.Linear(sizeY)}] = struct{}{}
		}
	}

	sorted := append([]RemoteEdge(nil), incoming...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if la, lb := a.To.Linear(sizeY), b.To.Linear(sizeY); la != lb {
			return la < lb
		}
		return a.From.Linear(sizeY) < b.From.Linear(sizeY)
	})

	var added []Edge
	for _, re := range sorted {
		v, ok := c.byPos[re.To]
		if !ok {
			continue
		}
		k := key{v, re.From.Linear(sizeY)}
		if _, dup := have[k]; dup {
			continue
		}
		have[k] = struct{}{}
		added = append(added, Edge{From: v, To: Remote(re.From), Cost: re.Cost})
	}
	if len(added) == 0 {
		return c
	}

	out := &Chunk{
		ID:       c.ID,
		Bounds:   c.Bounds,
		Vertices: append([]Vertex(nil), c.Vertices...),
		Edges:    append(append(make([]Edge, 0, len(c.Edges)+len(added)), c.Edges...), added...),
		byPos:    c.byPos,
	}
	buildMapping(out)
	return out
}

// MissingReverse returns the edges of from that end in to but have no
// reverse edge in to.
func MissingReverse(from, to *Chunk) []RemoteEdge {
	var out []RemoteEdge
	for _, re := range from.RemoteEdges() {
		if !to.Bounds.Contains(re.To.X, re.To.Y) {
			continue
		}
		v, ok := to.byPos[re.To]
		if !ok {
			continue
		}
		found := false
		for _, e := range to.EdgesOf(v) {
			if t := to.Other(e, v); t.IsRemote() && t.Pos == re.From {
				found = true
				break
			}
		}
		if !found {
			out = append(out, re)
		}
	}
	return out
}

// Incoming gathers, from every loaded chunk other than id, the remote edges
// that end inside chunk id.
func Incoming(src ChunkSource, layout Layout, id int) []RemoteEdge {
	bounds := layout.Bounds(id)
	var out []RemoteEdge
	for other := 0; other < layout.Count(); other++ {
		if other == id {
			continue
		}
		c, err := src.BaseChunk(other)
		if err != nil {
			continue
		}
		for _, re := range c.RemoteEdges() {
			if bounds.Contains(re.To.X, re.To.Y) {
				out = append(out, re)
			}
		}
	}
	return out
}
