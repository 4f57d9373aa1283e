package osm

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/tidwall/rtree"

	"grid_router/pkg/geo"
	"grid_router/pkg/grid"
)

// Options controls rasterization.
type Options struct {
	// BBox limits the grid. When zero the extent of all features is used.
	BBox geo.BBox
	// CellMeters is the side of one grid cell.
	CellMeters float64
	// Multiple rounds grid dimensions up, normally to the chunk size.
	Multiple int
}

// Result is a rasterized extract.
type Result struct {
	Grid       *grid.ArrayGrid
	Projection geo.Projection
	Roads      int
	Barriers   int
	Areas      int
}

// Load parses an OSM PBF extract and rasterizes it.
func Load(ctx context.Context, rs io.ReadSeeker, opts Options) (*Result, error) {
	features, err := Parse(ctx, rs, opts.BBox)
	if err != nil {
		return nil, err
	}
	return Rasterize(features, opts)
}

// Rasterize paints features onto a fresh walkable grid. Areas are filled
// first, then barriers, then roads, so a road through a wall opens a gap.
func Rasterize(features []Feature, opts Options) (*Result, error) {
	bbox := opts.BBox
	if bbox.IsZero() {
		bbox = extent(features)
	}
	proj, err := geo.NewProjection(bbox, opts.CellMeters, opts.Multiple)
	if err != nil {
		return nil, err
	}
	res := rasterize(features, proj)
	slog.Info("osm rasterized",
		"width", proj.Width, "height", proj.Height,
		"roads", res.Roads, "barriers", res.Barriers, "areas", res.Areas,
		"walkable", res.Grid.CountWalkable())
	return res, nil
}

func extent(features []Feature) geo.BBox {
	var b geo.BBox
	for _, f := range features {
		for _, p := range f.Points {
			b = b.Extend(p.Lat, p.Lon)
		}
	}
	return b
}

func rasterize(features []Feature, proj geo.Projection) *Result {
	res := &Result{
		Grid:       grid.NewArrayGrid(proj.Width, proj.Height, grid.Walkable),
		Projection: proj,
	}

	var polys []orb.Polygon
	var index rtree.RTreeG[int]
	for _, f := range features {
		if f.Kind != KindArea {
			continue
		}
		ring := make(orb.Ring, len(f.Points))
		for i, p := range f.Points {
			x, y := proj.Point(p.Lat, p.Lon)
			ring[i] = orb.Point{x, y}
		}
		b := ring.Bound()
		index.Insert(b.Min, b.Max, len(polys))
		polys = append(polys, orb.Polygon{ring})
	}
	res.Areas = len(polys)
	if len(polys) > 0 {
		fillAreas(res.Grid, polys, &index)
	}

	for _, kind := range []Kind{KindBarrier, KindRoad} {
		paint := grid.Blocked
		if kind == KindRoad {
			paint = grid.Road
		}
		for _, f := range features {
			if f.Kind != kind {
				continue
			}
			drawPolyline(res.Grid, proj, f.Points, paint)
			if kind == KindRoad {
				res.Roads++
			} else {
				res.Barriers++
			}
		}
	}
	return res
}

// fillAreas blocks every cell whose centre lies inside a polygon.
func fillAreas(g *grid.ArrayGrid, polys []orb.Polygon, index *rtree.RTreeG[int]) {
	w, h := g.Size()
	for x := range w {
		for y := range h {
			c := orb.Point{float64(x) + 0.5, float64(y) + 0.5}
			index.Search(c, c, func(_, _ [2]float64, i int) bool {
				if planar.PolygonContains(polys[i], c) {
					g.SetWeight(x, y, grid.Blocked)
					return false
				}
				return true
			})
		}
	}
}

// drawPolyline paints a four-connected line through pts. Cells off the grid
// are skipped.
func drawPolyline(g *grid.ArrayGrid, proj geo.Projection, pts []LatLon, kind grid.CellKind) {
	for i := 1; i < len(pts); i++ {
		a, aOK := proj.Cell(pts[i-1].Lat, pts[i-1].Lon)
		b, bOK := proj.Cell(pts[i].Lat, pts[i].Lon)
		if !aOK && !bOK && !segmentNearGrid(a, b, proj) {
			continue
		}
		for _, c := range geo.Line(a, b, true) {
			if g.InBounds(c.X, c.Y) {
				g.SetWeight(c.X, c.Y, kind)
			}
		}
	}
}

// segmentNearGrid reports whether the bounding box of a segment overlaps
// the grid, so long segments wholly outside it are not walked.
func segmentNearGrid(a, b grid.Position, proj geo.Projection) bool {
	return max(a.X, b.X) >= 0 && min(a.X, b.X) < proj.Width &&
		max(a.Y, b.Y) >= 0 && min(a.Y, b.Y) < proj.Height
}

func (r *Result) String() string {
	return fmt.Sprintf("%dx%d grid, %d roads, %d barriers, %d areas",
		r.Projection.Width, r.Projection.Height, r.Roads, r.Barriers, r.Areas)
}
