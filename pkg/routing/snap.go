package routing

import (
	"errors"
	"math"

	"grid_router/pkg/grid"
	"grid_router/pkg/subgoal"
)

// ErrPointTooFar is returned when no walkable cell lies within the snap radius.
var ErrPointTooFar = errors.New("no walkable cell within snap radius")

// Snap returns the walkable cell nearest to p by octile distance, searching
// square rings of growing radius. Among equally near cells the first in
// ring order wins.
func (e *Engine) Snap(p grid.Position, radius int) (grid.Position, error) {
	best, bestDist := p, math.Inf(1)
	try := func(x, y int) {
		if !e.src.IsWalkable(x, y) {
			return
		}
		q := grid.Position{X: x, Y: y}
		if d := subgoal.Octile(p, q); d < bestDist {
			best, bestDist = q, d
		}
	}

	for r := 0; r <= radius; r++ {
		// Every cell on ring r is at least r away.
		if float64(r) > bestDist {
			break
		}
		if r == 0 {
			try(p.X, p.Y)
			continue
		}
		for x := p.X - r; x <= p.X+r; x++ {
			try(x, p.Y-r)
			try(x, p.Y+r)
		}
		for y := p.Y - r + 1; y < p.Y+r; y++ {
			try(p.X-r, y)
			try(p.X+r, y)
		}
	}
	if math.IsInf(bestDist, 1) {
		return p, ErrPointTooFar
	}
	return best, nil
}
