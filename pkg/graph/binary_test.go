package graph_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"grid_router/pkg/cell"
	"grid_router/pkg/graph"
	"grid_router/pkg/grid"
)

var testHier = func() *cell.Hierarchy {
	h, err := cell.New(16, 16, 16, []int{4, 8})
	if err != nil {
		panic(err)
	}
	return h
}()

func buildTestChunk(t *testing.T) *graph.Chunk {
	t.Helper()
	g := grid.NewArrayGrid(16, 16, grid.Walkable)
	g.Fill(3, 3, 5, 5, grid.Blocked)
	g.Fill(10, 6, 12, 13, grid.Blocked)
	g.Fill(9, 14, 16, 15, grid.Road)

	layout, err := graph.NewLayout(16, 16, 16)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	c, err := graph.Scan(g, testHier, layout, 0, graph.ScanOptions{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	return c
}

func TestChunkRoundTrip(t *testing.T) {
	original := buildTestChunk(t)

	var buf bytes.Buffer
	if err := graph.EncodeChunk(&buf, original); err != nil {
		t.Fatalf("EncodeChunk: %v", err)
	}
	loaded, err := graph.DecodeChunk(&buf, testHier)
	if err != nil {
		t.Fatalf("DecodeChunk: %v", err)
	}

	if loaded.ID != original.ID || loaded.Bounds != original.Bounds {
		t.Errorf("header mismatch: got %d %+v, want %d %+v", loaded.ID, loaded.Bounds, original.ID, original.Bounds)
	}
	if !reflect.DeepEqual(loaded.Vertices, original.Vertices) {
		t.Error("Vertices differ after round trip")
	}
	if !reflect.DeepEqual(loaded.Edges, original.Edges) {
		t.Error("Edges differ after round trip")
	}
	if !reflect.DeepEqual(loaded.Mapping, original.Mapping) {
		t.Error("Mapping differs after round trip")
	}
	for i, v := range original.Vertices {
		if got, ok := loaded.VertexAt(v.Pos); !ok || got != int32(i) {
			t.Errorf("VertexAt(%v) = %d, %v; want %d", v.Pos, got, ok, i)
		}
	}
}

func TestChunkEncodingIsDeterministic(t *testing.T) {
	var a, b bytes.Buffer
	if err := graph.EncodeChunk(&a, buildTestChunk(t)); err != nil {
		t.Fatal(err)
	}
	if err := graph.EncodeChunk(&b, buildTestChunk(t)); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("two builds of the same chunk encode differently")
	}
}

func TestDecodeChunkRejectsBadMapping(t *testing.T) {
	c := buildTestChunk(t)
	if len(c.Mapping) == 0 {
		t.Fatal("test chunk has no edges")
	}
	c.Mapping[0] = int32(len(c.Edges) + 5)

	var buf bytes.Buffer
	if err := graph.EncodeChunk(&buf, c); err != nil {
		t.Fatal(err)
	}
	_, err := graph.DecodeChunk(&buf, testHier)
	if !errors.Is(err, graph.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func decodeMutated(t *testing.T, mutate func(c *graph.Chunk)) error {
	t.Helper()
	c := buildTestChunk(t)
	mutate(c)
	var buf bytes.Buffer
	if err := graph.EncodeChunk(&buf, c); err != nil {
		t.Fatal(err)
	}
	_, err := graph.DecodeChunk(&buf, testHier)
	return err
}

func TestDecodeChunkRejectsBadPositions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *graph.Chunk)
	}{
		{"vertex outside bounds", func(c *graph.Chunk) {
			for i := range c.Vertices {
				c.Vertices[i].Pos.X = 1000
			}
		}},
		{"negative vertex", func(c *graph.Chunk) { c.Vertices[0].Pos = grid.Position{X: -1, Y: 2} }},
		{"wrong cell", func(c *graph.Chunk) { c.Vertices[0].Cell ^= 1 }},
		{"bounds off grid", func(c *graph.Chunk) { c.Bounds.MaxX = 40 }},
		{"empty bounds", func(c *graph.Chunk) { c.Bounds.MaxY = c.Bounds.MinY }},
		{"local target moved", func(c *graph.Chunk) {
			for i := range c.Edges {
				if !c.Edges[i].To.IsRemote() {
					c.Edges[i].To.Pos.X++
					return
				}
			}
			t.Fatal("test chunk has no local edges")
		}},
		{"negative cost", func(c *graph.Chunk) { c.Edges[0].Cost = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := decodeMutated(t, tt.mutate); !errors.Is(err, graph.ErrCorrupt) {
				t.Fatalf("expected ErrCorrupt, got %v", err)
			}
		})
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	hdr, err := graph.NewSnapshotHeader(64, 32, 16, []int{4, 8})
	if err != nil {
		t.Fatal(err)
	}
	payloads := map[int][]byte{0: []byte("zero"), 3: []byte("three"), 7: {}}

	path := filepath.Join(t.TempDir(), "test.snap")
	if err := graph.WriteSnapshot(path, hdr, payloads); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	got, loaded, err := graph.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if !got.Matches(hdr) {
		t.Errorf("header mismatch: %+v vs %+v", got, hdr)
	}
	if got.NumChunks != 3 {
		t.Errorf("NumChunks = %d, want 3", got.NumChunks)
	}
	for id, p := range payloads {
		if !bytes.Equal(loaded[id], p) {
			t.Errorf("payload %d = %q, want %q", id, loaded[id], p)
		}
	}

	other, _ := graph.NewSnapshotHeader(64, 32, 16, []int{4, 16})
	if got.Matches(other) {
		t.Error("headers with different level dims should not match")
	}
}

func TestSnapshotCorruption(t *testing.T) {
	hdr, _ := graph.NewSnapshotHeader(16, 16, 16, nil)
	path := filepath.Join(t.TempDir(), "test.snap")
	if err := graph.WriteSnapshot(path, hdr, map[int][]byte{0: []byte("payload")}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)-6] ^= 0xFF
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err = graph.ReadSnapshot(path)
	if !errors.Is(err, graph.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt for flipped byte, got %v", err)
	}
}

func TestSnapshotInvalidMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.snap")
	os.WriteFile(path, bytes.Repeat([]byte("NOT_A_SNAPSHOT__"), 16), 0o644)

	if _, _, err := graph.ReadSnapshot(path); err == nil {
		t.Fatal("expected error for invalid magic bytes")
	}
}

func TestSnapshotTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "truncated.snap")
	os.WriteFile(path, []byte("GRIDRTR1"), 0o644)

	if _, _, err := graph.ReadSnapshot(path); err == nil {
		t.Fatal("expected error for truncated file")
	}
}
