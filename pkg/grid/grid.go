package grid

import "fmt"

// CellKind is the terrain class of a single grid cell.
type CellKind uint8

const (
	None     CellKind = iota // unpainted; not walkable
	Blocked                  // obstacle
	Walkable                 // open ground
	Road                     // open ground with halved edge cost between road subgoals
)

func (k CellKind) String() string {
	switch k {
	case None:
		return "none"
	case Blocked:
		return "blocked"
	case Walkable:
		return "walkable"
	case Road:
		return "road"
	}
	return fmt.Sprintf("CellKind(%d)", uint8(k))
}

// Passable reports whether an agent may stand on a cell of this kind.
func (k CellKind) Passable() bool {
	return k == Walkable || k == Road
}

// Position is an (x, y) cell coordinate.
type Position struct {
	X, Y int
}

// Linear returns the row-major index x*sizeY + y used as a compact map key.
func (p Position) Linear(sizeY int) int32 {
	return int32(p.X*sizeY + p.Y)
}

// FromLinear is the inverse of Position.Linear.
func FromLinear(i int32, sizeY int) Position {
	return Position{X: int(i) / sizeY, Y: int(i) % sizeY}
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Source is the read-only grid capability consumed by preprocessing and search.
type Source interface {
	Size() (width, height int)
	IsWalkable(x, y int) bool
	Weight(x, y int) CellKind
}

// Grid is a Source that can be painted.
type Grid interface {
	Source
	SetWeight(x, y int, kind CellKind)
}

// ArrayGrid stores cell kinds in a flat slice indexed by Position.Linear.
type ArrayGrid struct {
	width, height int
	cells         []CellKind
}

// NewArrayGrid creates a width×height grid filled with fill.
func NewArrayGrid(width, height int, fill CellKind) *ArrayGrid {
	cells := make([]CellKind, width*height)
	if fill != None {
		for i := range cells {
			cells[i] = fill
		}
	}
	return &ArrayGrid{width: width, height: height, cells: cells}
}

func (g *ArrayGrid) Size() (int, int) { return g.width, g.height }

// InBounds reports whether (x, y) lies inside the grid.
func (g *ArrayGrid) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.width && y < g.height
}

func (g *ArrayGrid) IsWalkable(x, y int) bool {
	return g.InBounds(x, y) && g.cells[x*g.height+y].Passable()
}

// Weight returns the cell kind, or Blocked outside the grid.
func (g *ArrayGrid) Weight(x, y int) CellKind {
	if !g.InBounds(x, y) {
		return Blocked
	}
	return g.cells[x*g.height+y]
}

// SetWeight paints a cell. Out-of-range coordinates are ignored.
func (g *ArrayGrid) SetWeight(x, y int, kind CellKind) {
	if !g.InBounds(x, y) {
		return
	}
	g.cells[x*g.height+y] = kind
}

// Fill paints the half-open rectangle [x0,x1)×[y0,y1).
func (g *ArrayGrid) Fill(x0, y0, x1, y1 int, kind CellKind) {
	for x := max(x0, 0); x < min(x1, g.width); x++ {
		for y := max(y0, 0); y < min(y1, g.height); y++ {
			g.cells[x*g.height+y] = kind
		}
	}
}

// CountWalkable returns the number of passable cells.
func (g *ArrayGrid) CountWalkable() int {
	n := 0
	for _, k := range g.cells {
		if k.Passable() {
			n++
		}
	}
	return n
}

// Rect is a half-open cell rectangle [MinX,MaxX)×[MinY,MaxY).
type Rect struct {
	MinX, MinY, MaxX, MaxY int
}

// Contains reports whether (x, y) lies inside r.
func (r Rect) Contains(x, y int) bool {
	return x >= r.MinX && x < r.MaxX && y >= r.MinY && y < r.MaxY
}

// Expand grows r by d cells on every side and clips it to a width×height grid.
func (r Rect) Expand(d, width, height int) Rect {
	return Rect{
		MinX: max(r.MinX-d, 0),
		MinY: max(r.MinY-d, 0),
		MaxX: min(r.MaxX+d, width),
		MaxY: min(r.MaxY+d, height),
	}
}

// Pad returns g grown to the next multiple of m in both dimensions, with the
// new cells Blocked. g itself is returned when no padding is needed.
func Pad(g *ArrayGrid, m int) *ArrayGrid {
	w, h := g.Size()
	pw, ph := (w+m-1)/m*m, (h+m-1)/m*m
	if pw == w && ph == h {
		return g
	}
	out := NewArrayGrid(pw, ph, Blocked)
	for x := range w {
		copy(out.cells[x*ph:x*ph+h], g.cells[x*h:(x+1)*h])
	}
	return out
}
