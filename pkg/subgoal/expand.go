package subgoal

import (
	"errors"
	"fmt"

	"grid_router/pkg/grid"
)

// ErrNotReachable is returned when two consecutive waypoints are not joined by
// a diagonal-first or cardinal-first move sequence.
var ErrNotReachable = errors.New("waypoints not directly reachable")

// CanMove reports whether a single step from (x, y) along d is legal: the
// target is walkable and a diagonal step does not cut a blocked corner.
func CanMove(src grid.Source, x, y int, d Dir) bool {
	if !src.IsWalkable(x+d.DX, y+d.DY) {
		return false
	}
	if d.Diagonal() {
		return src.IsWalkable(x+d.DX, y) && src.IsWalkable(x, y+d.DY)
	}
	return true
}

// Expand turns a waypoint list into the cell-by-cell path it stands for.
// Each leg is first tried diagonal-first, then cardinal-first.
func Expand(src grid.Source, waypoints []grid.Position) ([]grid.Position, error) {
	if len(waypoints) == 0 {
		return nil, nil
	}
	out := []grid.Position{waypoints[0]}
	for i := 1; i < len(waypoints); i++ {
		a, b := waypoints[i-1], waypoints[i]
		leg, ok := walkLeg(src, a, b, true)
		if !ok {
			leg, ok = walkLeg(src, a, b, false)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %v -> %v", ErrNotReachable, a, b)
		}
		out = append(out, leg...)
	}
	return out, nil
}

func walkLeg(src grid.Source, a, b grid.Position, diagonalFirst bool) ([]grid.Position, bool) {
	dx, dy := b.X-a.X, b.Y-a.Y
	sx, sy := sign(dx), sign(dy)
	nd := min(abs(dx), abs(dy))
	diag := Dir{DX: sx, DY: sy}
	straight := Dir{DX: sx}
	if abs(dy) > abs(dx) {
		straight = Dir{DY: sy}
	}
	ns := max(abs(dx), abs(dy)) - nd

	steps := make([]Dir, 0, nd+ns)
	first, firstN, second, secondN := diag, nd, straight, ns
	if !diagonalFirst {
		first, firstN, second, secondN = straight, ns, diag, nd
	}
	for range firstN {
		steps = append(steps, first)
	}
	for range secondN {
		steps = append(steps, second)
	}

	leg := make([]grid.Position, 0, len(steps))
	x, y := a.X, a.Y
	for _, d := range steps {
		if !CanMove(src, x, y, d) {
			return nil, false
		}
		x, y = x+d.DX, y+d.DY
		leg = append(leg, grid.Position{X: x, Y: y})
	}
	return leg, true
}

// PathCost validates an 8-connected cell path and returns its octile length.
func PathCost(src grid.Source, cells []grid.Position) (float64, error) {
	var total float64
	for i := 1; i < len(cells); i++ {
		a, b := cells[i-1], cells[i]
		d := Dir{DX: b.X - a.X, DY: b.Y - a.Y}
		if abs(d.DX) > 1 || abs(d.DY) > 1 || (d.DX == 0 && d.DY == 0) {
			return 0, fmt.Errorf("%w: %v -> %v is not a single step", ErrNotReachable, a, b)
		}
		if !CanMove(src, a.X, a.Y, d) {
			return 0, fmt.Errorf("%w: %v -> %v is blocked", ErrNotReachable, a, b)
		}
		total += Octile(a, b)
	}
	return total, nil
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
