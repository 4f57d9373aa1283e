package api

import "grid_router/pkg/routing"

// PathRequest is the JSON body for POST /api/v1/path.
type PathRequest struct {
	Start  PointJSON `json:"start"`
	Target PointJSON `json:"target"`
	// Snap moves blocked endpoints to the nearest walkable cell. Geographic
	// endpoints are always snapped.
	Snap bool `json:"snap,omitempty"`
	// Cells asks for the per-cell expansion of the path.
	Cells bool `json:"cells,omitempty"`
}

// PointJSON is a grid cell, or a location when Lat and Lng are set.
type PointJSON struct {
	X   int      `json:"x"`
	Y   int      `json:"y"`
	Lat *float64 `json:"lat,omitempty"`
	Lng *float64 `json:"lng,omitempty"`
}

// PathResponse is the JSON response for a successful path query.
type PathResponse struct {
	Cost  float64 `json:"cost"`
	Ticks int     `json:"ticks"`
	// DistanceMeters is the great-circle length of the waypoint polyline,
	// set only when the grid has a projection.
	DistanceMeters float64     `json:"distance_meters,omitempty"`
	Waypoints      []PointJSON `json:"waypoints"`
	Cells          []PointJSON `json:"cells,omitempty"`
}

// ErrorResponse is the JSON response for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// StatsResponse is the JSON response for GET /api/v1/stats.
type StatsResponse struct {
	Width           int `json:"width"`
	Height          int `json:"height"`
	Chunks          int `json:"chunks"`
	LoadedChunks    int `json:"loaded_chunks"`
	Levels          int `json:"levels"`
	Vertices        int `json:"vertices"`
	Edges           int `json:"edges"`
	RemoteEdges     int `json:"remote_edges"`
	OverlayVertices int `json:"overlay_vertices"`
	Shortcuts       int `json:"shortcuts"`
	Regions         int `json:"regions"`
	LargestRegion   int `json:"largest_region"`
}

// NewStatsResponse converts engine stats for a width x height grid.
func NewStatsResponse(st routing.Stats, width, height int) StatsResponse {
	return StatsResponse{
		Width:           width,
		Height:          height,
		Chunks:          st.Chunks,
		LoadedChunks:    st.Loaded,
		Levels:          st.Levels,
		Vertices:        st.Vertices,
		Edges:           st.Edges,
		RemoteEdges:     st.RemoteEdges,
		OverlayVertices: st.OverlayVertices,
		Shortcuts:       st.Shortcuts,
		Regions:         st.Regions,
		LargestRegion:   st.LargestRegion,
	}
}

// HealthResponse is the JSON response for GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
}
