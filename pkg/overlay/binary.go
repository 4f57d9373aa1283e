package overlay

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"grid_router/pkg/cell"
	"grid_router/pkg/graph"
)

const maxShortcuts = 1 << 28

type header struct {
	NumVertices  uint32
	NumSlots     uint32
	NumShortcuts uint32
}

// Encode writes the overlay vertices and shortcuts. Lookup tables are not
// stored; Decode rebuilds them from the base chunk.
func Encode(w io.Writer, c *Chunk) error {
	n := len(c.Vertices)
	baseIDs, edges, mirrors, levels := make([]int32, n), make([]int32, n), make([]int32, n), make([]int32, n)
	var counts []uint32
	var to []int32
	var cost []float64
	for i := range c.Vertices {
		v := &c.Vertices[i]
		baseIDs[i], edges[i], mirrors[i], levels[i] = v.Base, v.Edge, v.Mirror, int32(v.Level)
		for _, sc := range v.Edges {
			counts = append(counts, uint32(len(sc)))
			for _, s := range sc {
				to = append(to, s.To)
				cost = append(cost, s.Cost)
			}
		}
	}

	hdr := header{NumVertices: uint32(n), NumSlots: uint32(len(counts)), NumShortcuts: uint32(len(to))}
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write overlay header: %w", err)
	}
	for _, s := range [][]int32{baseIDs, edges, mirrors, levels} {
		if err := graph.WriteSlice(w, s); err != nil {
			return fmt.Errorf("write overlay vertices: %w", err)
		}
	}
	if err := graph.WriteSlice(w, counts); err != nil {
		return fmt.Errorf("write shortcut counts: %w", err)
	}
	if err := graph.WriteSlice(w, to); err != nil {
		return fmt.Errorf("write shortcut targets: %w", err)
	}
	if err := graph.WriteSlice(w, cost); err != nil {
		return fmt.Errorf("write shortcut costs: %w", err)
	}
	return nil
}

// Decode reads an overlay written by Encode for the given base chunk.
func Decode(r io.Reader, base *graph.Chunk, h *cell.Hierarchy, sizeY int) (*Chunk, error) {
	var hdr header
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read overlay header: %w", err)
	}
	if hdr.NumShortcuts > maxShortcuts || hdr.NumVertices > 2*uint32(len(base.Edges)) ||
		uint64(hdr.NumSlots) > uint64(hdr.NumVertices)*uint64(h.Levels()) {
		return nil, fmt.Errorf("%w: overlay sizes %+v", graph.ErrCorrupt, hdr)
	}
	n := int(hdr.NumVertices)

	cols := make([][]int32, 4)
	for i := range cols {
		s, err := graph.ReadSlice[int32](r, n)
		if err != nil {
			return nil, fmt.Errorf("read overlay vertices: %w", err)
		}
		cols[i] = s
	}
	counts, err := graph.ReadSlice[uint32](r, int(hdr.NumSlots))
	if err != nil {
		return nil, fmt.Errorf("read shortcut counts: %w", err)
	}
	to, err := graph.ReadSlice[int32](r, int(hdr.NumShortcuts))
	if err != nil {
		return nil, fmt.Errorf("read shortcut targets: %w", err)
	}
	cost, err := graph.ReadSlice[float64](r, int(hdr.NumShortcuts))
	if err != nil {
		return nil, fmt.Errorf("read shortcut costs: %w", err)
	}

	c := &Chunk{Vertices: make([]Vertex, n)}
	slot, next := 0, 0
	for i := range c.Vertices {
		level := int(cols[3][i])
		if level < 1 || level > h.Levels() {
			return nil, fmt.Errorf("%w: overlay vertex %d level %d", graph.ErrCorrupt, i, level)
		}
		if b, e := cols[0][i], cols[1][i]; b < 0 || int(b) >= len(base.Vertices) || e < 0 || int(e) >= len(base.Edges) {
			return nil, fmt.Errorf("%w: overlay vertex %d refers to base %d edge %d", graph.ErrCorrupt, i, b, e)
		}
		if ed := base.Edges[cols[1][i]]; ed.From != cols[0][i] && ed.To.Vertex != cols[0][i] {
			return nil, fmt.Errorf("%w: overlay vertex %d edge %d does not touch base %d", graph.ErrCorrupt, i, cols[1][i], cols[0][i])
		}
		if m := cols[2][i]; m < NoMirror || int(m) >= n {
			return nil, fmt.Errorf("%w: overlay vertex %d mirror %d", graph.ErrCorrupt, i, m)
		}
		v := Vertex{Base: cols[0][i], Edge: cols[1][i], Mirror: cols[2][i], Level: level, Edges: make([][]Shortcut, level)}
		for l := range level {
			if slot >= len(counts) {
				return nil, fmt.Errorf("%w: shortcut slots exhausted", graph.ErrCorrupt)
			}
			k := int(counts[slot])
			slot++
			if next+k > len(to) {
				return nil, fmt.Errorf("%w: shortcut counts exceed stored shortcuts", graph.ErrCorrupt)
			}
			if k > 0 {
				v.Edges[l] = make([]Shortcut, k)
				for j := range k {
					if t := to[next+j]; t < 0 || int(t) >= n {
						return nil, fmt.Errorf("%w: shortcut target %d", graph.ErrCorrupt, t)
					}
					if w := cost[next+j]; math.IsNaN(w) || w < 0 {
						return nil, fmt.Errorf("%w: shortcut cost %v", graph.ErrCorrupt, w)
					}
					v.Edges[l][j] = Shortcut{To: to[next+j], Cost: cost[next+j]}
				}
				next += k
			}
		}
		c.Vertices[i] = v
	}
	c.index(base, h, sizeY)
	return c, nil
}
