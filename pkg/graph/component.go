package graph

import "grid_router/pkg/grid"

// UnionFind implements a disjoint-set data structure with path compression
// and union by rank.
type UnionFind struct {
	parent []uint32
	rank   []byte // max rank stays near 30
	size   []uint32
}

// NewUnionFind creates a UnionFind for n elements.
func NewUnionFind(n uint32) *UnionFind {
	parent := make([]uint32, n)
	size := make([]uint32, n)
	for i := range n {
		parent[i] = i
		size[i] = 1
	}
	return &UnionFind{
		parent: parent,
		rank:   make([]byte, n),
		size:   size,
	}
}

// Find returns the representative of the set containing x, with path halving.
func (uf *UnionFind) Find(x uint32) uint32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]] // path halving
		x = uf.parent[x]
	}
	return x
}

// Union merges the sets containing x and y. Returns false if already same set.
func (uf *UnionFind) Union(x, y uint32) bool {
	rx := uf.Find(x)
	ry := uf.Find(y)
	if rx == ry {
		return false
	}

	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
	return true
}

// NoRegion labels unwalkable cells.
const NoRegion int32 = -1

// Regions labels the connected walkable areas of a grid. A diagonal move is
// only legal when both axis neighbours are walkable, so 4-connectivity
// already captures every reachable pair.
type Regions struct {
	height  int
	labels  []int32
	sizes   []int
	largest int32
}

// LabelRegions unions every pair of walkable, axis-adjacent cells and assigns
// dense region ids in scan order.
func LabelRegions(src grid.Source) *Regions {
	w, h := src.Size()
	uf := NewUnionFind(uint32(w * h))
	for x := range w {
		for y := range h {
			if !src.IsWalkable(x, y) {
				continue
			}
			i := uint32(x*h + y)
			if src.IsWalkable(x+1, y) {
				uf.Union(i, i+uint32(h))
			}
			if src.IsWalkable(x, y+1) {
				uf.Union(i, i+1)
			}
		}
	}

	r := &Regions{height: h, labels: make([]int32, w*h), largest: NoRegion}
	ids := make(map[uint32]int32)
	for x := range w {
		for y := range h {
			i := x*h + y
			if !src.IsWalkable(x, y) {
				r.labels[i] = NoRegion
				continue
			}
			root := uf.Find(uint32(i))
			id, ok := ids[root]
			if !ok {
				id = int32(len(r.sizes))
				ids[root] = id
				r.sizes = append(r.sizes, int(uf.size[root]))
				if r.largest == NoRegion || r.sizes[id] > r.sizes[r.largest] {
					r.largest = id
				}
			}
			r.labels[i] = id
		}
	}
	return r
}

// Label returns the region of p, or NoRegion for unwalkable or out-of-range cells.
func (r *Regions) Label(p grid.Position) int32 {
	i := p.X*r.height + p.Y
	if p.X < 0 || p.Y < 0 || p.Y >= r.height || i >= len(r.labels) {
		return NoRegion
	}
	return r.labels[i]
}

// Connected reports whether a and b lie in the same walkable region.
func (r *Regions) Connected(a, b grid.Position) bool {
	la := r.Label(a)
	return la != NoRegion && la == r.Label(b)
}

// Count returns the number of regions.
func (r *Regions) Count() int { return len(r.sizes) }

// Largest returns the id and cell count of the biggest region.
func (r *Regions) Largest() (int32, int) {
	if r.largest == NoRegion {
		return NoRegion, 0
	}
	return r.largest, r.sizes[r.largest]
}

// Cells returns every position in region id, in scan order.
func (r *Regions) Cells(id int32) []grid.Position {
	var out []grid.Position
	for i, l := range r.labels {
		if l == id {
			out = append(out, grid.Position{X: i / r.height, Y: i % r.height})
		}
	}
	return out
}
