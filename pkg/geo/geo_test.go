package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grid_router/pkg/grid"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name       string
		lat1, lon1 float64
		lat2, lon2 float64
		want       float64
		tolerance  float64 // percent
	}{
		{name: "Raffles Place to Changi", lat1: 1.2830, lon1: 103.8513, lat2: 1.3644, lon2: 103.9915, want: 18_023, tolerance: 1},
		{name: "London to Paris", lat1: 51.5074, lon1: -0.1278, lat2: 48.8566, lon2: 2.3522, want: 343_500, tolerance: 1},
		{name: "about 100m", lat1: 1.3521, lon1: 103.8198, lat2: 1.3530, lon2: 103.8198, want: 100, tolerance: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.want, got, tt.want*tt.tolerance/100)
		})
	}
	assert.Zero(t, Haversine(1.3521, 103.8198, 1.3521, 103.8198))
}

func TestBBox(t *testing.T) {
	var b BBox
	assert.True(t, b.IsZero())
	b = b.Extend(1.30, 103.80).Extend(1.35, 103.85).Extend(1.32, 103.70)
	assert.Equal(t, BBox{MinLat: 1.30, MaxLat: 1.35, MinLon: 103.70, MaxLon: 103.85}, b)
	assert.True(t, b.Contains(1.31, 103.75))
	assert.False(t, b.Contains(1.36, 103.75))
}

func TestProjection(t *testing.T) {
	b := BBox{MinLat: 1.30, MaxLat: 1.31, MinLon: 103.80, MaxLon: 103.81}
	p, err := NewProjection(b, 10, 32)
	require.NoError(t, err)

	// 0.01 degrees is about 1112m at this latitude, so 112 cells rounded up to 128.
	assert.Equal(t, 128, p.Width)
	assert.Equal(t, 128, p.Height)

	c, ok := p.Cell(1.30, 103.80)
	require.True(t, ok)
	assert.Equal(t, grid.Position{X: 0, Y: 0}, c)

	lat, lon := p.LatLon(grid.Position{X: 50, Y: 70})
	back, ok := p.Cell(lat, lon)
	require.True(t, ok)
	assert.Equal(t, grid.Position{X: 50, Y: 70}, back)

	_, ok = p.Cell(1.29, 103.80)
	assert.False(t, ok)

	// Neighbouring cell centres are one cell apart on the ground.
	lat2, lon2 := p.LatLon(grid.Position{X: 51, Y: 70})
	assert.InDelta(t, 10, Haversine(lat, lon, lat2, lon2), 0.1)

	_, err = NewProjection(b, 0, 16)
	assert.Error(t, err)
	_, err = NewProjection(BBox{}, 10, 16)
	assert.Error(t, err)
}

func TestLine(t *testing.T) {
	a, b := grid.Position{X: 0, Y: 0}, grid.Position{X: 3, Y: 3}
	assert.Equal(t, []grid.Position{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}}, Line(a, b, false))

	four := Line(a, b, true)
	assert.Len(t, four, 7)
	for i := 1; i < len(four); i++ {
		d := math.Abs(float64(four[i].X-four[i-1].X)) + math.Abs(float64(four[i].Y-four[i-1].Y))
		assert.Equal(t, 1.0, d, "step %d", i)
	}
	assert.Equal(t, b, four[len(four)-1])

	assert.Equal(t, []grid.Position{{X: 2, Y: 5}}, Line(grid.Position{X: 2, Y: 5}, grid.Position{X: 2, Y: 5}, true))

	back := Line(grid.Position{X: 5, Y: 1}, grid.Position{X: 0, Y: 3}, false)
	assert.Equal(t, grid.Position{X: 5, Y: 1}, back[0])
	assert.Equal(t, grid.Position{X: 0, Y: 3}, back[len(back)-1])
	assert.Len(t, back, 6)
}

func BenchmarkHaversine(b *testing.B) {
	for b.Loop() {
		Haversine(1.3521, 103.8198, 1.2905, 103.8520)
	}
}
