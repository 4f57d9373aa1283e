package osm

import (
	"testing"

	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"

	"grid_router/pkg/geo"
)

func tags(kv ...string) osm.Tags {
	var t osm.Tags
	for i := 0; i+1 < len(kv); i += 2 {
		t = append(t, osm.Tag{Key: kv[i], Value: kv[i+1]})
	}
	return t
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		tags osm.Tags
		want Kind
	}{
		{"footway", tags("highway", "footway"), KindRoad},
		{"residential", tags("highway", "residential"), KindRoad},
		{"motorway is not for walking", tags("highway", "motorway"), KindNone},
		{"private access", tags("highway", "service", "access", "private"), KindNone},
		{"private but foot designated", tags("highway", "service", "access", "private", "foot", "designated"), KindRoad},
		{"foot=no", tags("highway", "residential", "foot", "no"), KindNone},
		{"wall", tags("barrier", "wall"), KindBarrier},
		{"gate is not a barrier line", tags("barrier", "gate"), KindNone},
		{"cliff", tags("natural", "cliff"), KindBarrier},
		{"building", tags("building", "yes"), KindArea},
		{"building=no", tags("building", "no"), KindNone},
		{"lake", tags("natural", "water"), KindArea},
		{"path through a fence", tags("highway", "path", "barrier", "fence"), KindRoad},
		{"untagged", nil, KindNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.tags))
		})
	}
}

func TestResolve(t *testing.T) {
	coords := map[osm.NodeID]LatLon{
		1: {Lat: 1.0, Lon: 1.0},
		2: {Lat: 1.1, Lon: 1.1},
		3: {Lat: 5.0, Lon: 5.0},
		4: {Lat: 5.1, Lon: 5.1},
	}
	ways := []wayInfo{
		{id: 10, kind: KindRoad, nodes: []osm.NodeID{1, 2}},
		{id: 11, kind: KindRoad, nodes: []osm.NodeID{3, 4}},
		{id: 12, kind: KindBarrier, nodes: []osm.NodeID{1, 99}},
	}

	all, dropped := resolve(ways, coords, geo.BBox{})
	assert.Len(t, all, 2)
	assert.Equal(t, 1, dropped, "way with a missing node is dropped")

	box := geo.BBox{MinLat: 0, MaxLat: 2, MinLon: 0, MaxLon: 2}
	inside, dropped := resolve(ways, coords, box)
	if assert.Len(t, inside, 1) {
		assert.Equal(t, osm.WayID(10), inside[0].ID)
		assert.Equal(t, []LatLon{coords[1], coords[2]}, inside[0].Points)
	}
	assert.Equal(t, 2, dropped)
}
