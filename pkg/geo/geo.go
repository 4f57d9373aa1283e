// Package geo projects geographic coordinates onto a grid and rasterizes lines.
package geo

import (
	"fmt"
	"math"

	"grid_router/pkg/grid"
)

const earthRadiusMeters = 6_371_000.0

// metersPerDegree is the length of one degree of latitude.
const metersPerDegree = math.Pi / 180 * earthRadiusMeters

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1, phi2 := lat1*math.Pi/180, lat2*math.Pi/180
	sinLat := math.Sin((lat2 - lat1) * math.Pi / 360)
	sinLon := math.Sin((lon2 - lon1) * math.Pi / 360)
	a := sinLat*sinLat + math.Cos(phi1)*math.Cos(phi2)*sinLon*sinLon
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(a)))
}

// BBox is a geographic bounding box.
type BBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// IsZero reports whether the box is unset.
func (b BBox) IsZero() bool {
	return b == BBox{}
}

// Contains reports whether the point lies inside the box.
func (b BBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// Extend grows the box to include the point. A zero box becomes the point.
func (b BBox) Extend(lat, lon float64) BBox {
	if b.IsZero() {
		return BBox{MinLat: lat, MaxLat: lat, MinLon: lon, MaxLon: lon}
	}
	return BBox{
		MinLat: math.Min(b.MinLat, lat),
		MaxLat: math.Max(b.MaxLat, lat),
		MinLon: math.Min(b.MinLon, lon),
		MaxLon: math.Max(b.MaxLon, lon),
	}
}

// Projection maps a bounding box onto square grid cells with an
// equirectangular projection around the box centre. X grows east, Y north.
type Projection struct {
	BBox          BBox
	CellMeters    float64
	Width, Height int

	lonScale float64 // meters per degree of longitude
}

// NewProjection sizes a grid covering b with cells of cellMeters. Both
// dimensions are rounded up to a multiple of multiple.
func NewProjection(b BBox, cellMeters float64, multiple int) (Projection, error) {
	if cellMeters <= 0 || multiple <= 0 {
		return Projection{}, fmt.Errorf("invalid projection: cell %.2fm, multiple %d", cellMeters, multiple)
	}
	if b.MaxLat <= b.MinLat || b.MaxLon <= b.MinLon {
		return Projection{}, fmt.Errorf("invalid projection: empty bbox %+v", b)
	}
	p := Projection{
		BBox:       b,
		CellMeters: cellMeters,
		lonScale:   metersPerDegree * math.Cos((b.MinLat+b.MaxLat)/2*math.Pi/180),
	}
	w := int(math.Ceil((b.MaxLon - b.MinLon) * p.lonScale / cellMeters))
	h := int(math.Ceil((b.MaxLat - b.MinLat) * metersPerDegree / cellMeters))
	p.Width = roundUp(max(w, 1), multiple)
	p.Height = roundUp(max(h, 1), multiple)
	return p, nil
}

func roundUp(v, m int) int {
	return (v + m - 1) / m * m
}

// Point returns fractional cell coordinates of a location.
func (p Projection) Point(lat, lon float64) (x, y float64) {
	x = (lon - p.BBox.MinLon) * p.lonScale / p.CellMeters
	y = (lat - p.BBox.MinLat) * metersPerDegree / p.CellMeters
	return x, y
}

// Cell returns the cell containing a location and whether it is on the grid.
func (p Projection) Cell(lat, lon float64) (grid.Position, bool) {
	x, y := p.Point(lat, lon)
	c := grid.Position{X: int(math.Floor(x)), Y: int(math.Floor(y))}
	return c, c.X >= 0 && c.Y >= 0 && c.X < p.Width && c.Y < p.Height
}

// LatLon returns the location of a cell centre.
func (p Projection) LatLon(c grid.Position) (lat, lon float64) {
	lon = p.BBox.MinLon + (float64(c.X)+0.5)*p.CellMeters/p.lonScale
	lat = p.BBox.MinLat + (float64(c.Y)+0.5)*p.CellMeters/metersPerDegree
	return lat, lon
}
