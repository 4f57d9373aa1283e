package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"grid_router/pkg/geo"
	"grid_router/pkg/grid"
	"grid_router/pkg/osm"
)

// LoadGrid reads the configured map and pads it to a multiple of the chunk
// size. The projection is set only for OSM extracts.
func LoadGrid(ctx context.Context, c Config) (*grid.ArrayGrid, *geo.Projection, error) {
	format := c.Grid.Format
	if format == "" && strings.HasSuffix(c.Grid.Path, ".osm.pbf") {
		format = "osm"
	}
	if format != "osm" {
		g, err := grid.Load(c.Grid.Path, format)
		if err != nil {
			return nil, nil, err
		}
		return grid.Pad(g, c.Build.ChunkSize), nil, nil
	}

	f, err := os.Open(c.Grid.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open osm extract: %w", err)
	}
	defer f.Close()
	res, err := osm.Load(ctx, f, osm.Options{
		BBox:       c.OSM.BBox(),
		CellMeters: c.OSM.CellMeters,
		Multiple:   c.Build.ChunkSize,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("rasterize %s: %w", c.Grid.Path, err)
	}
	return res.Grid, &res.Projection, nil
}
