// Package subgoal finds the convex-corner cells of a grid and the subgoals
// directly h-reachable from a cell by clearance casting.
package subgoal

import (
	"math"

	"grid_router/pkg/grid"
)

const (
	LateralCost  = 1.0
	DiagonalCost = math.Sqrt2
)

// Dir is a unit move on the 8-connected grid.
type Dir struct {
	DX, DY int
}

// Diagonal reports whether d moves along both axes.
func (d Dir) Diagonal() bool { return d.DX != 0 && d.DY != 0 }

// Directions lists the four cardinal moves followed by the four diagonals.
var Directions = [8]Dir{
	{0, 1}, {1, 0}, {0, -1}, {-1, 0},
	{-1, -1}, {-1, 1}, {1, 1}, {1, -1},
}

// Predicate reports whether (x, y) should be treated as a subgoal.
type Predicate func(x, y int) bool

// IsSubgoal reports whether (x, y) is walkable and sits at a convex corner:
// for some diagonal d the diagonal neighbour is blocked while both axis
// neighbours of that diagonal are walkable.
func IsSubgoal(src grid.Source, x, y int) bool {
	if !src.IsWalkable(x, y) {
		return false
	}
	for _, d := range Directions[4:] {
		if !src.IsWalkable(x+d.DX, y+d.DY) &&
			src.IsWalkable(x+d.DX, y) &&
			src.IsWalkable(x, y+d.DY) {
			return true
		}
	}
	return false
}

// List returns the subgoals inside bounds in scan order (x-major, then y).
func List(src grid.Source, bounds grid.Rect) []grid.Position {
	var out []grid.Position
	for x := bounds.MinX; x < bounds.MaxX; x++ {
		for y := bounds.MinY; y < bounds.MaxY; y++ {
			if IsSubgoal(src, x, y) {
				out = append(out, grid.Position{X: x, Y: y})
			}
		}
	}
	return out
}

// Extract maps every subgoal inside bounds to a dense id assigned in scan order.
func Extract(src grid.Source, bounds grid.Rect) map[grid.Position]int32 {
	list := List(src, bounds)
	ids := make(map[grid.Position]int32, len(list))
	for i, p := range list {
		ids[p] = int32(i)
	}
	return ids
}

// Cache answers subgoal queries from a precomputed window and falls back to
// the local corner test outside of it.
type Cache struct {
	src  grid.Source
	win  grid.Rect
	bits []bool
}

// NewCache precomputes the subgoal flags of every cell in win.
func NewCache(src grid.Source, win grid.Rect) *Cache {
	h := win.MaxY - win.MinY
	c := &Cache{src: src, win: win, bits: make([]bool, (win.MaxX-win.MinX)*h)}
	for x := win.MinX; x < win.MaxX; x++ {
		for y := win.MinY; y < win.MaxY; y++ {
			c.bits[(x-win.MinX)*h+y-win.MinY] = IsSubgoal(src, x, y)
		}
	}
	return c
}

// IsSubgoal implements Predicate.
func (c *Cache) IsSubgoal(x, y int) bool {
	if c.win.Contains(x, y) {
		return c.bits[(x-c.win.MinX)*(c.win.MaxY-c.win.MinY)+y-c.win.MinY]
	}
	return IsSubgoal(c.src, x, y)
}

// In returns the cached subgoals inside r, which must lie within the window.
func (c *Cache) In(r grid.Rect) []grid.Position {
	var out []grid.Position
	for x := r.MinX; x < r.MaxX; x++ {
		for y := r.MinY; y < r.MaxY; y++ {
			if c.IsSubgoal(x, y) {
				out = append(out, grid.Position{X: x, Y: y})
			}
		}
	}
	return out
}

// WithExtra extends a predicate with temporary subgoals such as a query's
// start and target.
func WithExtra(base Predicate, extra ...grid.Position) Predicate {
	if len(extra) == 0 {
		return base
	}
	return func(x, y int) bool {
		for _, p := range extra {
			if p.X == x && p.Y == y {
				return true
			}
		}
		return base(x, y)
	}
}

// Octile returns the 8-connected move cost between a and b on an open grid.
func Octile(a, b grid.Position) float64 {
	dx, dy := abs(a.X-b.X), abs(a.Y-b.Y)
	return LateralCost*float64(dx+dy) + (DiagonalCost-2*LateralCost)*float64(min(dx, dy))
}

// Cost is the edge cost between two directly reachable cells: the octile
// distance, halved when both endpoints are road cells.
func Cost(src grid.Source, a, b grid.Position) float64 {
	c := Octile(a, b)
	if src.Weight(a.X, a.Y) == grid.Road && src.Weight(b.X, b.Y) == grid.Road {
		c /= 2
	}
	return c
}

// PairKey packs an unordered id pair into one map key.
func PairKey(a, b int32) uint64 {
	if a > b {
		a, b = b, a
	}
	return uint64(uint32(a))<<32 | uint64(uint32(b))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
