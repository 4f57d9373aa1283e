// Package cell packs the multi-level partition of a grid into one uint64 per
// position. Level 1 is the finest partition and occupies the low bits.
package cell

import (
	"errors"
	"fmt"
	"math/bits"

	"grid_router/pkg/grid"
)

// ErrInvalid is wrapped by every validation failure of New.
var ErrInvalid = errors.New("invalid cell hierarchy")

// Number is a packed cell identifier covering all levels.
type Number = uint64

// Hierarchy maps grid positions to packed cell numbers.
type Hierarchy struct {
	width, height int
	chunkSize     int
	dims          []int
	cellsY        []int
	offsets       []uint // offsets[l-1] is the first bit of level l; offsets[L] is the total width
}

// New validates dims (cell edge lengths, finest first) against the grid and
// chunk size. Every dimension must divide the next, the coarsest must divide
// chunkSize, and the packed number must fit in 64 bits.
func New(width, height, chunkSize int, dims []int) (*Hierarchy, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d", ErrInvalid, chunkSize)
	}
	if width <= 0 || height <= 0 || width%chunkSize != 0 || height%chunkSize != 0 {
		return nil, fmt.Errorf("%w: grid %dx%d not divisible by chunk size %d", ErrInvalid, width, height, chunkSize)
	}
	h := &Hierarchy{
		width:     width,
		height:    height,
		chunkSize: chunkSize,
		dims:      append([]int(nil), dims...),
		cellsY:    make([]int, len(dims)),
		offsets:   make([]uint, len(dims)+1),
	}
	for i, d := range dims {
		if d <= 0 {
			return nil, fmt.Errorf("%w: level %d dimension %d", ErrInvalid, i+1, d)
		}
		if i > 0 && (d <= dims[i-1] || d%dims[i-1] != 0) {
			return nil, fmt.Errorf("%w: level dimensions %v are not an ascending divisor chain", ErrInvalid, dims)
		}
		cx, cy := width/d, height/d
		if width%d != 0 || height%d != 0 {
			return nil, fmt.Errorf("%w: grid %dx%d not divisible by level %d dimension %d", ErrInvalid, width, height, i+1, d)
		}
		h.cellsY[i] = cy
		h.offsets[i+1] = h.offsets[i] + uint(bits.Len(uint(cx*cy-1)))
	}
	if n := len(dims); n > 0 && chunkSize%dims[n-1] != 0 {
		return nil, fmt.Errorf("%w: top level dimension %d does not divide chunk size %d", ErrInvalid, dims[n-1], chunkSize)
	}
	if total := h.offsets[len(dims)]; total > 64 {
		return nil, fmt.Errorf("%w: cell numbers need %d bits", ErrInvalid, total)
	}
	return h, nil
}

// Levels returns the number of overlay levels.
func (h *Hierarchy) Levels() int { return len(h.dims) }

// Dimension returns the cell edge length at level l (1-based).
func (h *Hierarchy) Dimension(l int) int { return h.dims[l-1] }

// Dimensions returns a copy of the per-level cell edge lengths.
func (h *Hierarchy) Dimensions() []int { return append([]int(nil), h.dims...) }

// ChunkSize returns the chunk edge length the hierarchy was validated against.
func (h *Hierarchy) ChunkSize() int { return h.chunkSize }

// Size returns the grid dimensions the hierarchy was validated against.
func (h *Hierarchy) Size() (int, int) { return h.width, h.height }

// Bits returns the total width of a packed cell number.
func (h *Hierarchy) Bits() uint { return h.offsets[len(h.dims)] }

// CellNumber packs the cell index of (x, y) at every level.
func (h *Hierarchy) CellNumber(x, y int) Number {
	var n Number
	for i, d := range h.dims {
		idx := (x/d)*h.cellsY[i] + y/d
		n |= Number(idx) << h.offsets[i]
	}
	return n
}

// CellOf is CellNumber for a Position.
func (h *Hierarchy) CellOf(p grid.Position) Number { return h.CellNumber(p.X, p.Y) }

// OnLevel extracts the level-l cell index from a packed number.
func (h *Hierarchy) OnLevel(l int, c Number) uint64 {
	width := h.offsets[l] - h.offsets[l-1]
	return (c >> h.offsets[l-1]) & (1<<width - 1)
}

// HighestDifferingLevel returns the coarsest level at which c1 and c2 lie in
// different cells, or 0 when they share the finest cell.
func (h *Hierarchy) HighestDifferingLevel(c1, c2 Number) int {
	diff := c1 ^ c2
	if diff == 0 {
		return 0
	}
	for l := len(h.dims); l >= 1; l-- {
		if diff>>h.offsets[l-1] != 0 {
			return l
		}
	}
	return 0
}

// QueryLevel is the level at which a search between s and t may treat v.
func (h *Hierarchy) QueryLevel(s, t, v Number) int {
	return min(h.HighestDifferingLevel(s, v), h.HighestDifferingLevel(v, t))
}

// SameCell reports whether a and b share the level-l cell.
func (h *Hierarchy) SameCell(l int, a, b Number) bool {
	return (a^b)>>h.offsets[l-1] == 0
}

// CellsPerChunk returns how many level-l cells tile one chunk.
func (h *Hierarchy) CellsPerChunk(l int) int {
	n := h.chunkSize / h.dims[l-1]
	return n * n
}

// LocalCell returns the index of p's level-l cell within the chunk whose
// lower corner is origin.
func (h *Hierarchy) LocalCell(l int, origin, p grid.Position) int {
	d := h.dims[l-1]
	return ((p.X-origin.X)/d)*(h.chunkSize/d) + (p.Y-origin.Y)/d
}

// CellBounds returns the rectangle of p's level-l cell.
func (h *Hierarchy) CellBounds(l int, p grid.Position) grid.Rect {
	d := h.dims[l-1]
	x0, y0 := p.X/d*d, p.Y/d*d
	return grid.Rect{MinX: x0, MinY: y0, MaxX: x0 + d, MaxY: y0 + d}
}
