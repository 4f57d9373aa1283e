package osm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grid_router/pkg/geo"
	"grid_router/pkg/grid"
)

func testProjection(t *testing.T) geo.Projection {
	t.Helper()
	p, err := geo.NewProjection(geo.BBox{MinLat: 1.0, MaxLat: 1.01, MinLon: 103.0, MaxLon: 103.01}, 50, 16)
	require.NoError(t, err)
	return p
}

// at returns the location of a cell centre.
func at(p geo.Projection, x, y int) LatLon {
	lat, lon := p.LatLon(grid.Position{X: x, Y: y})
	return LatLon{Lat: lat, Lon: lon}
}

func TestRasterize_PaintsFeatures(t *testing.T) {
	p := testProjection(t)
	features := []Feature{
		// Square building covering cells 2..5.
		{ID: 1, Kind: KindArea, Points: []LatLon{at(p, 2, 2), at(p, 5, 2), at(p, 5, 5), at(p, 2, 5), at(p, 2, 2)}},
		// Vertical wall at x=10.
		{ID: 2, Kind: KindBarrier, Points: []LatLon{at(p, 10, 0), at(p, 10, 12)}},
		// Road crossing the wall.
		{ID: 3, Kind: KindRoad, Points: []LatLon{at(p, 8, 6), at(p, 12, 6)}},
	}
	res := rasterize(features, p)
	g := res.Grid

	assert.Equal(t, 1, res.Areas)
	assert.Equal(t, 1, res.Barriers)
	assert.Equal(t, 1, res.Roads)

	assert.Equal(t, grid.Blocked, g.Weight(3, 3), "building interior")
	assert.Equal(t, grid.Walkable, g.Weight(1, 1), "outside building")
	assert.Equal(t, grid.Walkable, g.Weight(6, 6), "outside building")

	assert.Equal(t, grid.Blocked, g.Weight(10, 0))
	assert.Equal(t, grid.Blocked, g.Weight(10, 11))
	assert.Equal(t, grid.Road, g.Weight(10, 6), "road opens the wall")
	assert.Equal(t, grid.Road, g.Weight(8, 6))
	assert.Equal(t, grid.Road, g.Weight(12, 6))
	assert.Equal(t, grid.Walkable, g.Weight(11, 0))
}

func TestRasterize_DiagonalBarrierHasNoGaps(t *testing.T) {
	p := testProjection(t)
	res := rasterize([]Feature{
		{ID: 1, Kind: KindBarrier, Points: []LatLon{at(p, 0, 0), at(p, 6, 6)}},
	}, p)
	g := res.Grid
	for i := range 6 {
		// Each diagonal step is split, so one of the two corners is blocked.
		assert.True(t, g.Weight(i+1, i) == grid.Blocked || g.Weight(i, i+1) == grid.Blocked, "step %d", i)
	}
}

func TestRasterize_ExtentAndErrors(t *testing.T) {
	features := []Feature{
		{ID: 1, Kind: KindRoad, Points: []LatLon{{Lat: 1.0, Lon: 103.0}, {Lat: 1.005, Lon: 103.005}}},
	}
	res, err := Rasterize(features, Options{CellMeters: 50, Multiple: 16})
	require.NoError(t, err)
	w, h := res.Grid.Size()
	assert.Equal(t, 0, w%16)
	assert.Equal(t, 0, h%16)
	assert.Positive(t, res.Grid.CountWalkable())
	assert.Contains(t, res.String(), "1 roads")

	_, err = Rasterize(features, Options{CellMeters: 0, Multiple: 16})
	assert.Error(t, err)

	_, err = Rasterize(nil, Options{CellMeters: 50, Multiple: 16})
	assert.Error(t, err, "no features gives an empty extent")
}
