package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"mime"
	"net/http"

	"grid_router/pkg/geo"
	"grid_router/pkg/grid"
	"grid_router/pkg/routing"
)

// Engine is what the handlers need from the routing engine.
type Engine interface {
	routing.Router
	Snap(p grid.Position, radius int) (grid.Position, error)
	Cells(p *routing.Path) ([]grid.Position, error)
	Stats() routing.Stats
	Grid() grid.Source
}

// Options configures optional handler behaviour.
type Options struct {
	SnapRadius int
	// Projection enables lat/lng endpoints. Nil for plain grid maps.
	Projection *geo.Projection
}

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	engine Engine
	opts   Options
}

// NewHandlers creates handlers with the given engine.
func NewHandlers(engine Engine, opts Options) *Handlers {
	return &Handlers{
		engine: engine,
		opts:   opts,
	}
}

// HandlePath handles POST /api/v1/path.
func (h *Handlers) HandlePath(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	var req PathRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	start, status, code := h.resolve(req.Start, req.Snap)
	if status != 0 {
		writeError(w, status, code, "start")
		return
	}
	target, status, code := h.resolve(req.Target, req.Snap)
	if status != 0 {
		writeError(w, status, code, "target")
		return
	}

	path, err := h.engine.FindPath(r.Context(), start, target)
	if err != nil {
		status, code := classifyError(err)
		if status == http.StatusInternalServerError {
			slog.Error("path query failed", "start", start, "target", target, "err", err)
		}
		writeError(w, status, code, "")
		return
	}

	resp := PathResponse{
		Cost:      path.Cost,
		Ticks:     path.Ticks,
		Waypoints: h.points(path.Waypoints),
	}
	if h.opts.Projection != nil {
		resp.DistanceMeters = polylineMeters(resp.Waypoints)
	}
	if req.Cells {
		cells, err := h.engine.Cells(path)
		if err != nil {
			slog.Error("path expansion failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "")
			return
		}
		resp.Cells = h.points(cells)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleHealth handles GET /api/v1/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// HandleStats handles GET /api/v1/stats. Counts reflect the chunks loaded
// at request time.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	width, height := h.engine.Grid().Size()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(NewStatsResponse(h.engine.Stats(), width, height))
}

// resolve turns a request point into a grid cell. A non-zero status reports
// a client error.
func (h *Handlers) resolve(p PointJSON, snap bool) (grid.Position, int, string) {
	pos := grid.Position{X: p.X, Y: p.Y}
	if p.Lat != nil || p.Lng != nil {
		if p.Lat == nil || p.Lng == nil || validateCoord(*p.Lat, *p.Lng) != nil {
			return pos, http.StatusBadRequest, "invalid_coordinates"
		}
		if h.opts.Projection == nil {
			return pos, http.StatusBadRequest, "coordinates_unsupported"
		}
		c, ok := h.opts.Projection.Cell(*p.Lat, *p.Lng)
		if !ok {
			return pos, http.StatusBadRequest, "out_of_bounds"
		}
		pos, snap = c, true
	}
	if !snap {
		return pos, 0, ""
	}
	snapped, err := h.engine.Snap(pos, h.opts.SnapRadius)
	if err != nil {
		return pos, http.StatusUnprocessableEntity, "point_too_far_from_walkable"
	}
	return snapped, 0, ""
}

func (h *Handlers) points(ps []grid.Position) []PointJSON {
	out := make([]PointJSON, len(ps))
	for i, p := range ps {
		out[i] = PointJSON{X: p.X, Y: p.Y}
		if h.opts.Projection != nil {
			lat, lng := h.opts.Projection.LatLon(p)
			out[i].Lat, out[i].Lng = &lat, &lng
		}
	}
	return out
}

// polylineMeters sums the haversine length of consecutive points, which must
// carry coordinates.
func polylineMeters(pts []PointJSON) float64 {
	total := 0.0
	for i := 1; i < len(pts); i++ {
		total += geo.Haversine(*pts[i-1].Lat, *pts[i-1].Lng, *pts[i].Lat, *pts[i].Lng)
	}
	return total
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, routing.ErrOutOfBounds):
		return http.StatusBadRequest, "out_of_bounds"
	case errors.Is(err, routing.ErrNoPath):
		return http.StatusNotFound, "no_path_found"
	case errors.Is(err, routing.ErrSearchLimit):
		return http.StatusUnprocessableEntity, "search_limit_exceeded"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "request_timeout"
	}
	return http.StatusInternalServerError, "internal_error"
}

func validateCoord(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return errors.New("coordinates must be finite numbers")
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return errors.New("coordinates out of range")
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, code, field string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: code, Field: field})
}
