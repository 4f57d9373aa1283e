package subgoal

import "grid_router/pkg/grid"

// Scanner casts clearance rays over a grid.
type Scanner struct {
	Source    grid.Source
	IsSubgoal Predicate

	// MaxClearance caps the length of a single ray. Zero means unbounded.
	MaxClearance int
}

// Clearance returns how many moves can be made from (x, y) along d before the
// next move would enter a blocked cell or cut a blocked corner. The walk stops
// early, inclusive, on the first subgoal it reaches.
func (s *Scanner) Clearance(x, y int, d Dir) int {
	diagonal := d.Diagonal()
	i := 0
	for {
		if s.MaxClearance > 0 && i >= s.MaxClearance {
			return i
		}
		nx, ny := x+(i+1)*d.DX, y+(i+1)*d.DY
		if !s.Source.IsWalkable(nx, ny) {
			return i
		}
		if diagonal && (!s.Source.IsWalkable(nx, y+i*d.DY) || !s.Source.IsWalkable(x+i*d.DX, ny)) {
			return i
		}
		i++
		if s.IsSubgoal(nx, ny) {
			return i
		}
	}
}

// DirectHReachable returns the subgoals reachable from (x, y) by a straight
// ray or by a diagonal-first path that touches no other subgoal. Within each
// octant the perpendicular bound only ever shrinks, so a subgoal hides the
// ones behind it.
func (s *Scanner) DirectHReachable(x, y int) []grid.Position {
	var out []grid.Position

	for _, d := range Directions {
		c := s.Clearance(x, y, d)
		if c == 0 {
			continue
		}
		px, py := x+c*d.DX, y+c*d.DY
		if s.IsSubgoal(px, py) {
			out = append(out, grid.Position{X: px, Y: py})
		}
	}

	for _, d := range Directions[4:] {
		diag := s.Clearance(x, y, d)
		if diag > 0 && s.IsSubgoal(x+diag*d.DX, y+diag*d.DY) {
			diag--
		}
		if diag == 0 {
			continue
		}
		for _, c := range [2]Dir{{DX: d.DX}, {DY: d.DY}} {
			bound := s.Clearance(x, y, c)
			if bound > 0 && s.IsSubgoal(x+bound*c.DX, y+bound*c.DY) {
				bound--
			}
			for i := 1; i <= diag; i++ {
				px, py := x+i*d.DX, y+i*d.DY
				j := s.Clearance(px, py, c)
				if j > 0 && j <= bound {
					if qx, qy := px+j*c.DX, py+j*c.DY; s.IsSubgoal(qx, qy) {
						out = append(out, grid.Position{X: qx, Y: qy})
						j--
					}
				}
				if j < bound {
					bound = j
				}
			}
		}
	}
	return out
}

// runDirs covers every ray orientation once.
var runDirs = [4]Dir{{DX: 1}, {DY: 1}, {DX: 1, DY: 1}, {DX: 1, DY: -1}}

// LongestRun returns the most consecutive legal moves along any straight
// line of src. A MaxClearance at or above it never cuts a ray short.
func LongestRun(src grid.Source) int {
	w, h := src.Size()
	run := make([]int32, w*h)
	best := int32(0)
	for _, d := range runDirs {
		// x descending, then y descending, visits (x+DX, y+DY) first.
		for x := w - 1; x >= 0; x-- {
			for y := h - 1; y >= 0; y-- {
				i := x*h + y
				if !CanMove(src, x, y, d) {
					run[i] = 0
					continue
				}
				nx, ny := x+d.DX, y+d.DY
				run[i] = 1 + run[nx*h+ny]
				best = max(best, run[i])
			}
		}
	}
	return int(best)
}
