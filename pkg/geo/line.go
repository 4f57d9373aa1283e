package geo

import "grid_router/pkg/grid"

// Line returns the cells of the Bresenham line from a to b, both included.
// With fourConnected set, every diagonal step is split into two axis steps so
// the result has no corner gaps; painted barriers then block diagonal moves.
func Line(a, b grid.Position, fourConnected bool) []grid.Position {
	dx, dy := b.X-a.X, b.Y-a.Y
	sx, sy := 1, 1
	if dx < 0 {
		sx, dx = -1, -dx
	}
	if dy < 0 {
		sy, dy = -1, -dy
	}

	out := []grid.Position{a}
	x, y := a.X, a.Y
	err := dx - dy
	for x != b.X || y != b.Y {
		e2 := 2 * err
		stepX, stepY := e2 > -dy, e2 < dx
		if stepX && stepY && fourConnected {
			err -= dy
			x += sx
			out = append(out, grid.Position{X: x, Y: y})
			err += dx
			y += sy
			out = append(out, grid.Position{X: x, Y: y})
			continue
		}
		if stepX {
			err -= dy
			x += sx
		}
		if stepY {
			err += dx
			y += sy
		}
		out = append(out, grid.Position{X: x, Y: y})
	}
	return out
}
