package graph

import (
	"fmt"

	"grid_router/pkg/grid"
)

// Layout tiles a grid into square chunks. Chunk ids run column-major:
// id = (x/ChunkSize)*Rows + y/ChunkSize.
type Layout struct {
	Width, Height int
	ChunkSize     int
	Cols, Rows    int
}

// NewLayout validates that the grid divides evenly into chunks.
func NewLayout(width, height, chunkSize int) (Layout, error) {
	if chunkSize <= 0 || width <= 0 || height <= 0 || width%chunkSize != 0 || height%chunkSize != 0 {
		return Layout{}, fmt.Errorf("grid %dx%d not divisible by chunk size %d", width, height, chunkSize)
	}
	return Layout{
		Width:     width,
		Height:    height,
		ChunkSize: chunkSize,
		Cols:      width / chunkSize,
		Rows:      height / chunkSize,
	}, nil
}

// Count returns the number of chunks.
func (l Layout) Count() int { return l.Cols * l.Rows }

// InBounds reports whether p lies inside the grid.
func (l Layout) InBounds(p grid.Position) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < l.Width && p.Y < l.Height
}

// ChunkID returns the chunk owning p. p must be in bounds.
func (l Layout) ChunkID(p grid.Position) int {
	return (p.X/l.ChunkSize)*l.Rows + p.Y/l.ChunkSize
}

// Bounds returns the cell rectangle of chunk id.
func (l Layout) Bounds(id int) grid.Rect {
	x0 := (id / l.Rows) * l.ChunkSize
	y0 := (id % l.Rows) * l.ChunkSize
	return grid.Rect{MinX: x0, MinY: y0, MaxX: x0 + l.ChunkSize, MaxY: y0 + l.ChunkSize}
}
