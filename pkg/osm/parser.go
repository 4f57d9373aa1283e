// Package osm turns an OpenStreetMap extract into a walkability grid.
package osm

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"

	"grid_router/pkg/geo"
)

// Kind is how a way is painted onto the grid.
type Kind uint8

const (
	KindNone    Kind = iota
	KindRoad         // walkable line, painted as Road
	KindBarrier      // impassable line
	KindArea         // impassable closed polygon
)

// LatLon is a node location.
type LatLon struct {
	Lat, Lon float64
}

// Feature is a classified way with resolved node locations.
type Feature struct {
	ID     osm.WayID
	Kind   Kind
	Points []LatLon
}

// footHighways lists highway values a pedestrian may use.
var footHighways = map[string]bool{
	"footway":        true,
	"path":           true,
	"pedestrian":     true,
	"steps":          true,
	"living_street":  true,
	"residential":    true,
	"service":        true,
	"track":          true,
	"cycleway":       true,
	"unclassified":   true,
	"tertiary":       true,
	"tertiary_link":  true,
	"secondary":      true,
	"secondary_link": true,
	"primary":        true,
	"primary_link":   true,
}

var barrierValues = map[string]bool{
	"wall":           true,
	"fence":          true,
	"city_wall":      true,
	"retaining_wall": true,
	"hedge":          true,
}

// isFootAccessible reports whether a highway way is open to pedestrians.
func isFootAccessible(tags osm.Tags) bool {
	if !footHighways[tags.Find("highway")] {
		return false
	}
	switch tags.Find("access") {
	case "no", "private":
		return tags.Find("foot") == "yes" || tags.Find("foot") == "designated"
	}
	return tags.Find("foot") != "no"
}

// isObstacleArea reports whether a closed way blocks movement across its interior.
func isObstacleArea(tags osm.Tags) bool {
	if b := tags.Find("building"); b != "" && b != "no" {
		return true
	}
	switch {
	case tags.Find("natural") == "water",
		tags.Find("waterway") == "riverbank",
		tags.Find("landuse") == "reservoir",
		tags.Find("landuse") == "basin":
		return true
	}
	return false
}

// classify decides how a way is painted. Roads win over obstacles so that
// paths through gates and arcades stay open.
func classify(tags osm.Tags) Kind {
	if isFootAccessible(tags) {
		return KindRoad
	}
	if barrierValues[tags.Find("barrier")] || tags.Find("natural") == "cliff" {
		return KindBarrier
	}
	if isObstacleArea(tags) {
		return KindArea
	}
	return KindNone
}

type wayInfo struct {
	id    osm.WayID
	kind  Kind
	nodes []osm.NodeID
}

// Parse reads an OSM PBF extract and returns its classified ways. The reader
// is consumed twice (ways, then node locations), so it must seek. A non-zero
// bbox drops features with no node inside it.
func Parse(ctx context.Context, rs io.ReadSeeker, bbox geo.BBox) ([]Feature, error) {
	referenced := make(map[osm.NodeID]struct{})
	var ways []wayInfo

	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipNodes = true
	scanner.SkipRelations = true
	for scanner.Scan() {
		w, ok := scanner.Object().(*osm.Way)
		if !ok || len(w.Nodes) < 2 {
			continue
		}
		kind := classify(w.Tags)
		if kind == KindNone {
			continue
		}
		if kind == KindArea && (len(w.Nodes) < 4 || w.Nodes[0].ID != w.Nodes[len(w.Nodes)-1].ID) {
			continue
		}
		ids := make([]osm.NodeID, len(w.Nodes))
		for i, wn := range w.Nodes {
			ids[i] = wn.ID
			referenced[wn.ID] = struct{}{}
		}
		ways = append(ways, wayInfo{id: w.ID, kind: kind, nodes: ids})
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 1 (ways): %w", err)
	}
	scanner.Close()
	slog.Info("osm pass 1 complete", "ways", len(ways), "nodes", len(referenced))

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek for pass 2: %w", err)
	}
	coords := make(map[osm.NodeID]LatLon, len(referenced))
	scanner = osmpbf.New(ctx, rs, 1)
	scanner.SkipWays = true
	scanner.SkipRelations = true
	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := referenced[n.ID]; needed {
			coords[n.ID] = LatLon{Lat: n.Lat, Lon: n.Lon}
		}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 2 (nodes): %w", err)
	}
	scanner.Close()

	features, dropped := resolve(ways, coords, bbox)
	slog.Info("osm pass 2 complete", "coordinates", len(coords), "features", len(features), "dropped", dropped)
	return features, nil
}

// resolve attaches node locations to ways. Ways with a missing node, or with
// no node inside a non-zero bbox, are dropped.
func resolve(ways []wayInfo, coords map[osm.NodeID]LatLon, bbox geo.BBox) ([]Feature, int) {
	var out []Feature
	dropped := 0
	for _, w := range ways {
		pts := make([]LatLon, 0, len(w.nodes))
		inside := bbox.IsZero()
		for _, id := range w.nodes {
			c, ok := coords[id]
			if !ok {
				pts = nil
				break
			}
			inside = inside || bbox.Contains(c.Lat, c.Lon)
			pts = append(pts, c)
		}
		if pts == nil || !inside {
			dropped++
			continue
		}
		out = append(out, Feature{ID: w.id, Kind: w.kind, Points: pts})
	}
	return out, dropped
}
