package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"grid_router/pkg/geo"
	"grid_router/pkg/grid"
	"grid_router/pkg/routing"
)

// mockEngine implements Engine for testing.
type mockEngine struct {
	path    *routing.Path
	err     error
	snapErr error
	panics  bool
	stats   routing.Stats

	gotStart, gotTarget grid.Position
}

func (m *mockEngine) FindPath(ctx context.Context, start, target grid.Position) (*routing.Path, error) {
	if m.panics {
		panic("boom")
	}
	m.gotStart, m.gotTarget = start, target
	return m.path, m.err
}

func (m *mockEngine) Snap(p grid.Position, radius int) (grid.Position, error) {
	if m.snapErr != nil {
		return p, m.snapErr
	}
	return grid.Position{X: p.X + 1, Y: p.Y}, nil
}

func (m *mockEngine) Cells(p *routing.Path) ([]grid.Position, error) {
	return []grid.Position{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}}, nil
}

func (m *mockEngine) Stats() routing.Stats { return m.stats }

func (m *mockEngine) Grid() grid.Source { return grid.NewArrayGrid(128, 96, grid.Walkable) }

func postPath(t *testing.T, h *Handlers, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/path", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.HandlePath(w, req)
	return w
}

func TestHandlePath_Success(t *testing.T) {
	mock := &mockEngine{path: &routing.Path{
		Waypoints: []grid.Position{{X: 0, Y: 0}, {X: 2, Y: 2}},
		Cost:      2.8284,
		Ticks:     3,
	}}
	h := NewHandlers(mock, Options{})

	w := postPath(t, h, `{"start":{"x":0,"y":0},"target":{"x":2,"y":2},"cells":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. body: %s", w.Code, w.Body.String())
	}

	var resp PathResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Cost != 2.8284 || resp.Ticks != 3 {
		t.Errorf("cost, ticks = %f, %d", resp.Cost, resp.Ticks)
	}
	if len(resp.Waypoints) != 2 || resp.Waypoints[1].X != 2 {
		t.Errorf("waypoints = %+v", resp.Waypoints)
	}
	if len(resp.Cells) != 3 {
		t.Errorf("cells length = %d, want 3", len(resp.Cells))
	}
	if resp.Waypoints[0].Lat != nil {
		t.Error("grid-only response carries coordinates")
	}
	if mock.gotStart != (grid.Position{X: 0, Y: 0}) {
		t.Errorf("start = %v, want unsnapped (0,0)", mock.gotStart)
	}
}

func TestHandlePath_Snap(t *testing.T) {
	mock := &mockEngine{path: &routing.Path{Waypoints: []grid.Position{{X: 1, Y: 0}, {X: 3, Y: 2}}}}
	h := NewHandlers(mock, Options{SnapRadius: 4})

	w := postPath(t, h, `{"start":{"x":0,"y":0},"target":{"x":2,"y":2},"snap":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. body: %s", w.Code, w.Body.String())
	}
	if mock.gotStart != (grid.Position{X: 1, Y: 0}) || mock.gotTarget != (grid.Position{X: 3, Y: 2}) {
		t.Errorf("query = %v -> %v, want snapped endpoints", mock.gotStart, mock.gotTarget)
	}
}

func TestHandlePath_LatLng(t *testing.T) {
	proj, err := geo.NewProjection(geo.BBox{MinLat: 1.0, MaxLat: 1.01, MinLon: 103.0, MaxLon: 103.01}, 50, 16)
	if err != nil {
		t.Fatal(err)
	}
	mock := &mockEngine{path: &routing.Path{Waypoints: []grid.Position{{X: 4, Y: 4}}}}

	lat, lng := proj.LatLon(grid.Position{X: 3, Y: 4})
	body := fmt.Sprintf(`{"start":{"lat":%f,"lng":%f},"target":{"lat":%f,"lng":%f}}`, lat, lng, lat, lng)

	h := NewHandlers(mock, Options{Projection: &proj})
	w := postPath(t, h, body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. body: %s", w.Code, w.Body.String())
	}
	// Geographic endpoints are always snapped; the mock shifts x by one.
	if mock.gotStart != (grid.Position{X: 4, Y: 4}) {
		t.Errorf("start = %v, want (4,4)", mock.gotStart)
	}
	var resp PathResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Waypoints) != 1 || resp.Waypoints[0].Lat == nil {
		t.Fatalf("waypoints = %+v, want coordinates", resp.Waypoints)
	}
	if resp.DistanceMeters != 0 {
		t.Errorf("single waypoint distance = %f, want 0", resp.DistanceMeters)
	}

	mock.path = &routing.Path{Waypoints: []grid.Position{{X: 0, Y: 0}, {X: 10, Y: 0}}}
	resp = PathResponse{}
	json.Unmarshal(postPath(t, NewHandlers(mock, Options{Projection: &proj}), body).Body.Bytes(), &resp)
	if math.Abs(resp.DistanceMeters-500) > 5 {
		t.Errorf("distance = %f, want about 500m for 10 cells of 50m", resp.DistanceMeters)
	}

	h = NewHandlers(mock, Options{})
	if w := postPath(t, h, body); w.Code != http.StatusBadRequest {
		t.Errorf("without projection: status = %d, want 400", w.Code)
	}
}

func TestHandlePath_InvalidJSON(t *testing.T) {
	h := NewHandlers(&mockEngine{}, Options{})
	if w := postPath(t, h, "not json"); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandlePath_MissingContentType(t *testing.T) {
	h := NewHandlers(&mockEngine{}, Options{})

	body := `{"start":{"x":0,"y":0},"target":{"x":2,"y":2}}`
	req := httptest.NewRequest("POST", "/api/v1/path", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.HandlePath(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandlePath_InvalidCoordinates(t *testing.T) {
	proj, _ := geo.NewProjection(geo.BBox{MinLat: 1.0, MaxLat: 1.01, MinLon: 103.0, MaxLon: 103.01}, 50, 16)
	h := NewHandlers(&mockEngine{}, Options{Projection: &proj})

	for _, body := range []string{
		`{"start":{"lat":91.0,"lng":103.0},"target":{"x":0,"y":0}}`,
		`{"start":{"lat":1.0},"target":{"x":0,"y":0}}`,
		`{"start":{"lat":40.0,"lng":10.0},"target":{"x":0,"y":0}}`,
	} {
		w := postPath(t, h, body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, w.Code)
		}
		var resp ErrorResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Field != "start" {
			t.Errorf("%s: field = %q, want start", body, resp.Field)
		}
	}
}

func TestHandlePath_Errors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		snapErr error
		snap    bool
		status  int
		code    string
	}{
		{"no path", routing.ErrNoPath, nil, false, http.StatusNotFound, "no_path_found"},
		{"out of bounds", fmt.Errorf("%w: x", routing.ErrOutOfBounds), nil, false, http.StatusBadRequest, "out_of_bounds"},
		{"search limit", routing.ErrSearchLimit, nil, false, http.StatusUnprocessableEntity, "search_limit_exceeded"},
		{"timeout", context.DeadlineExceeded, nil, false, http.StatusServiceUnavailable, "request_timeout"},
		{"internal", fmt.Errorf("disk on fire"), nil, false, http.StatusInternalServerError, "internal_error"},
		{"too far", nil, routing.ErrPointTooFar, true, http.StatusUnprocessableEntity, "point_too_far_from_walkable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandlers(&mockEngine{err: tt.err, snapErr: tt.snapErr}, Options{})
			body := fmt.Sprintf(`{"start":{"x":0,"y":0},"target":{"x":2,"y":2},"snap":%t}`, tt.snap)
			w := postPath(t, h, body)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			var resp ErrorResponse
			json.Unmarshal(w.Body.Bytes(), &resp)
			if resp.Error != tt.code {
				t.Errorf("error = %q, want %q", resp.Error, tt.code)
			}
		})
	}
}

func TestHandleHealth(t *testing.T) {
	h := NewHandlers(&mockEngine{}, Options{})

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()

	h.HandleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	var resp HealthResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "ok" {
		t.Errorf("status = %q, want 'ok'", resp.Status)
	}
}

func TestHandleStats(t *testing.T) {
	mock := &mockEngine{stats: routing.Stats{Chunks: 16, Loaded: 16, Vertices: 500, Regions: 2}}
	h := NewHandlers(mock, Options{})

	req := httptest.NewRequest("GET", "/api/v1/stats", nil)
	w := httptest.NewRecorder()

	h.HandleStats(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	var resp StatsResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Vertices != 500 || resp.Width != 128 || resp.Height != 96 || resp.LoadedChunks != 16 {
		t.Errorf("stats = %+v", resp)
	}
}
