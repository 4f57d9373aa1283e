package graph

import (
	"math"
	"testing"

	"grid_router/pkg/cell"
	"grid_router/pkg/grid"
)

// mapSource is a ChunkSource over a fixed set of chunks.
type mapSource map[int]*Chunk

func (m mapSource) BaseChunk(id int) (*Chunk, error) {
	c, ok := m[id]
	if !ok {
		return nil, ErrChunkNotLoaded
	}
	return c, nil
}

func obstacleGrid() *grid.ArrayGrid {
	g := grid.NewArrayGrid(16, 16, grid.Walkable)
	g.Fill(3, 3, 5, 5, grid.Blocked)
	g.Fill(10, 6, 12, 13, grid.Blocked)
	g.Fill(6, 1, 7, 3, grid.Blocked)
	g.SetWeight(7, 9, grid.Blocked)
	g.SetWeight(13, 2, grid.Blocked)
	return g
}

func scanAll(t *testing.T, g grid.Source, chunkSize int) (Layout, map[int]*Chunk) {
	t.Helper()
	w, h := g.Size()
	layout, err := NewLayout(w, h, chunkSize)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	hier, err := cell.New(w, h, chunkSize, nil)
	if err != nil {
		t.Fatalf("cell.New: %v", err)
	}
	chunks := make(map[int]*Chunk)
	for id := range layout.Count() {
		c, err := Scan(g, hier, layout, id, ScanOptions{})
		if err != nil {
			t.Fatalf("Scan(%d): %v", id, err)
		}
		chunks[id] = c
	}
	return layout, chunks
}

func stitchAll(layout Layout, chunks map[int]*Chunk) map[int]*Chunk {
	incoming := make(map[int][]RemoteEdge)
	for _, c := range chunks {
		for _, re := range c.RemoteEdges() {
			id := layout.ChunkID(re.To)
			incoming[id] = append(incoming[id], re)
		}
	}
	out := make(map[int]*Chunk, len(chunks))
	for id, c := range chunks {
		out[id] = Stitch(c, incoming[id], layout.Height)
	}
	return out
}

func TestLayout(t *testing.T) {
	l, err := NewLayout(32, 16, 8)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	if l.Count() != 8 {
		t.Errorf("Count = %d, want 8", l.Count())
	}
	if id := l.ChunkID(grid.Position{X: 17, Y: 9}); id != 2*2+1 {
		t.Errorf("ChunkID = %d, want 5", id)
	}
	want := grid.Rect{MinX: 16, MinY: 8, MaxX: 24, MaxY: 16}
	if b := l.Bounds(5); b != want {
		t.Errorf("Bounds(5) = %+v, want %+v", b, want)
	}
	if _, err := NewLayout(30, 16, 8); err == nil {
		t.Error("expected error for indivisible grid")
	}
}

func TestScan_PillarSingleChunk(t *testing.T) {
	g := grid.NewArrayGrid(4, 4, grid.Walkable)
	g.SetWeight(1, 1, grid.Blocked)
	_, chunks := scanAll(t, g, 4)
	c := chunks[0]

	if len(c.Vertices) != 4 {
		t.Fatalf("got %d vertices, want 4", len(c.Vertices))
	}
	wantPos := []grid.Position{{X: 0, Y: 0}, {X: 0, Y: 2}, {X: 2, Y: 0}, {X: 2, Y: 2}}
	for i, p := range wantPos {
		if c.Vertices[i].Pos != p {
			t.Errorf("vertex %d at %v, want %v", i, c.Vertices[i].Pos, p)
		}
	}
	if len(c.Edges) != 4 {
		t.Fatalf("got %d edges, want 4 (stored once)", len(c.Edges))
	}
	if c.NumRemote() != 0 {
		t.Errorf("single chunk should have no remote edges, got %d", c.NumRemote())
	}
	for v := range c.Vertices {
		if n := len(c.EdgesOf(int32(v))); n != 2 {
			t.Errorf("vertex %d has %d edges, want 2", v, n)
		}
	}
	for _, e := range c.Edges {
		if e.Cost != 2 {
			t.Errorf("edge %d-%d cost %f, want 2", e.From, e.To.Vertex, e.Cost)
		}
	}
}

func TestScan_OutOfRange(t *testing.T) {
	g := grid.NewArrayGrid(8, 8, grid.Walkable)
	layout, _ := NewLayout(8, 8, 8)
	hier, _ := cell.New(8, 8, 8, nil)
	if _, err := Scan(g, hier, layout, 1, ScanOptions{}); err == nil {
		t.Error("expected ErrChunkOutOfRange")
	}
}

func TestStitch_Symmetry(t *testing.T) {
	layout, scanned := scanAll(t, obstacleGrid(), 8)
	chunks := stitchAll(layout, scanned)

	remote := 0
	for id, c := range chunks {
		for e, edge := range c.Edges {
			if !edge.To.IsRemote() {
				// Local edges must be reachable from both endpoints.
				if !contains(c.EdgesOf(edge.From), int32(e)) || !contains(c.EdgesOf(edge.To.Vertex), int32(e)) {
					t.Errorf("chunk %d: local edge %d missing from an endpoint's mapping", id, e)
				}
				continue
			}
			remote++
			from := c.Vertices[edge.From].Pos
			other := chunks[layout.ChunkID(edge.To.Pos)]
			v, ok := other.VertexAt(edge.To.Pos)
			if !ok {
				t.Errorf("chunk %d: remote target %v is not a vertex of chunk %d", id, edge.To.Pos, other.ID)
				continue
			}
			found := false
			for _, oe := range other.EdgesOf(v) {
				tgt := other.Other(oe, v)
				if tgt.IsRemote() && tgt.Pos == from {
					found = true
					if math.Abs(other.Edges[oe].Cost-edge.Cost) > 1e-12 {
						t.Errorf("reverse of %v->%v has cost %f, want %f", from, edge.To.Pos, other.Edges[oe].Cost, edge.Cost)
					}
				}
			}
			if !found {
				t.Errorf("no reverse edge for %v->%v", from, edge.To.Pos)
			}
		}
	}
	if remote == 0 {
		t.Fatal("test grid produced no cross-chunk edges")
	}
}

func TestStitch_NoOpReturnsSameChunk(t *testing.T) {
	layout, scanned := scanAll(t, obstacleGrid(), 8)
	chunks := stitchAll(layout, scanned)
	again := stitchAll(layout, chunks)
	for id := range chunks {
		if again[id] != chunks[id] {
			t.Errorf("chunk %d changed on second stitch", id)
		}
	}
}

func TestMissingReverse(t *testing.T) {
	layout, scanned := scanAll(t, obstacleGrid(), 8)
	chunks := stitchAll(layout, scanned)
	for a := range chunks {
		for b := range chunks {
			if a == b {
				continue
			}
			if missing := MissingReverse(chunks[a], chunks[b]); len(missing) != 0 {
				t.Errorf("chunks %d->%d still miss %d reverse edges", a, b, len(missing))
			}
		}
	}
}

func TestIncoming_MatchesGlobalIndex(t *testing.T) {
	layout, scanned := scanAll(t, obstacleGrid(), 8)
	src := mapSource(scanned)
	stitched := stitchAll(layout, scanned)
	for id := range layout.Count() {
		inc := Incoming(src, layout, id)
		rebuilt := Stitch(scanned[id], inc, layout.Height)
		want := stitched[id]
		if len(rebuilt.Edges) != len(want.Edges) {
			t.Errorf("chunk %d: %d edges via Incoming, want %d", id, len(rebuilt.Edges), len(want.Edges))
		}
	}
}

func contains(s []int32, v int32) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
