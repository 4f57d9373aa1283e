package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"grid_router/pkg/cell"
	"grid_router/pkg/graph"
	"grid_router/pkg/grid"
	"grid_router/pkg/overlay"
	"grid_router/pkg/subgoal"
)

var (
	// ErrNoPath is returned when start and target are not connected.
	ErrNoPath = errors.New("no path found")
	// ErrOutOfBounds is returned for coordinates outside the grid.
	ErrOutOfBounds = errors.New("position out of bounds")
	// ErrSearchLimit is returned when a query exceeds Config.MaxTicks.
	ErrSearchLimit = errors.New("search limit exceeded")
)

// Config holds the build and query parameters of an Engine.
type Config struct {
	ChunkSize       int
	LevelDimensions []int // finest first
	MaxClearance    int   // 0 = unbounded; otherwise at least subgoal.LongestRun of the grid
	Workers         int   // 0 = GOMAXPROCS
	MaxTicks        int   // 0 = unlimited
}

// Path is the result of a query.
type Path struct {
	Waypoints []grid.Position // start, subgoals, target; consecutive entries are h-reachable
	Cost      float64
	Ticks     int // node expansions
}

// Router is the interface for path queries.
type Router interface {
	FindPath(ctx context.Context, start, target grid.Position) (*Path, error)
}

// Engine implements Router over a chunked subgoal graph with a multi-level
// overlay.
type Engine struct {
	src       grid.Source
	cfg       Config
	layout    graph.Layout
	hier      *cell.Hierarchy
	header    graph.SnapshotHeader
	reg       *Registry
	regions   atomic.Pointer[graph.Regions]
	isSubgoal subgoal.Predicate
}

// NewEngine validates cfg against the grid. No chunk is built yet.
func NewEngine(src grid.Source, cfg Config) (*Engine, error) {
	w, h := src.Size()
	layout, err := graph.NewLayout(w, h, cfg.ChunkSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", cell.ErrInvalid, err)
	}
	hier, err := cell.New(w, h, cfg.ChunkSize, cfg.LevelDimensions)
	if err != nil {
		return nil, err
	}
	if cfg.MaxClearance < 0 {
		return nil, fmt.Errorf("%w: max clearance %d", cell.ErrInvalid, cfg.MaxClearance)
	}
	if cfg.MaxClearance > 0 {
		// A shorter cap drops subgoal edges and loses paths.
		if run := subgoal.LongestRun(src); cfg.MaxClearance < run {
			return nil, fmt.Errorf("%w: max clearance %d below longest open run %d", cell.ErrInvalid, cfg.MaxClearance, run)
		}
	}
	header, err := graph.NewSnapshotHeader(w, h, cfg.ChunkSize, cfg.LevelDimensions)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", cell.ErrInvalid, err)
	}
	return &Engine{
		src:       src,
		cfg:       cfg,
		layout:    layout,
		hier:      hier,
		header:    header,
		reg:       NewRegistry(layout.Count()),
		isSubgoal: func(x, y int) bool { return subgoal.IsSubgoal(src, x, y) },
	}, nil
}

// Layout returns the chunk layout.
func (e *Engine) Layout() graph.Layout { return e.layout }

// Hierarchy returns the cell hierarchy.
func (e *Engine) Hierarchy() *cell.Hierarchy { return e.hier }

// Registry returns the chunk registry.
func (e *Engine) Registry() *Registry { return e.reg }

// Grid returns the grid the engine was built for.
func (e *Engine) Grid() grid.Source { return e.src }

func (e *Engine) workers() int {
	if e.cfg.Workers > 0 {
		return e.cfg.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (e *Engine) scanOptions() graph.ScanOptions {
	return graph.ScanOptions{MaxClearance: e.cfg.MaxClearance}
}

// BuildAll scans, stitches and overlays every chunk. Each phase runs its
// chunks in parallel and completes before the next starts.
func (e *Engine) BuildAll(ctx context.Context) error {
	start := time.Now()
	n := e.layout.Count()
	workers := e.workers()

	scanned := make([]*graph.Chunk, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for id := range n {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, err := graph.Scan(e.src, e.hier, e.layout, id, e.scanOptions())
			if err != nil {
				return err
			}
			scanned[id] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("scan chunks: %w", err)
	}
	slog.Debug("chunks scanned", "chunks", n, "elapsed", time.Since(start))

	incoming := make([][]graph.RemoteEdge, n)
	for _, c := range scanned {
		for _, re := range c.RemoteEdges() {
			to := e.layout.ChunkID(re.To)
			incoming[to] = append(incoming[to], re)
		}
	}
	stitched := make([]*graph.Chunk, n)
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for id := range n {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			stitched[id] = graph.Stitch(scanned[id], incoming[id], e.layout.Height)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("stitch chunks: %w", err)
	}

	inner := 1
	if n < workers {
		inner = workers
	}
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for id := range n {
		g.Go(func() error {
			ov, err := overlay.Build(gctx, stitched[id], e.hier, e.layout.Height, inner)
			if err != nil {
				return err
			}
			e.reg.Publish(id, &Entry{Base: stitched[id], Overlay: ov})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("build overlays: %w", err)
	}

	e.regions.Store(graph.LabelRegions(e.src))
	st := e.Stats()
	slog.Info("graph built",
		"chunks", n,
		"vertices", st.Vertices,
		"edges", st.Edges,
		"overlay_vertices", st.OverlayVertices,
		"shortcuts", st.Shortcuts,
		"elapsed", time.Since(start))
	return nil
}

// BuildChunk rebuilds chunk id against the chunks already loaded, then
// re-stitches any loaded chunk that lacks the reverse of one of its edges.
func (e *Engine) BuildChunk(ctx context.Context, id int) error {
	if id < 0 || id >= e.layout.Count() {
		return fmt.Errorf("build chunk %d: %w", id, graph.ErrChunkOutOfRange)
	}
	start := time.Now()
	c, err := graph.Scan(e.src, e.hier, e.layout, id, e.scanOptions())
	if err != nil {
		return err
	}
	c = graph.Stitch(c, graph.Incoming(e.reg, e.layout, id), e.layout.Height)
	ov, err := overlay.Build(ctx, c, e.hier, e.layout.Height, e.workers())
	if err != nil {
		return err
	}
	e.reg.Publish(id, &Entry{Base: c, Overlay: ov})

	restitched := 0
	for other := range e.layout.Count() {
		if other == id {
			continue
		}
		ent, err := e.reg.Get(other)
		if err != nil {
			continue
		}
		missing := graph.MissingReverse(c, ent.Base)
		if len(missing) == 0 {
			continue
		}
		nb := graph.Stitch(ent.Base, missing, e.layout.Height)
		nov, err := overlay.Build(ctx, nb, e.hier, e.layout.Height, e.workers())
		if err != nil {
			return fmt.Errorf("restitch chunk %d: %w", other, err)
		}
		e.reg.Publish(other, &Entry{Base: nb, Overlay: nov})
		restitched++
	}

	e.regions.Store(graph.LabelRegions(e.src))
	slog.Debug("chunk built",
		"chunk", id,
		"vertices", len(c.Vertices),
		"edges", len(c.Edges),
		"restitched", restitched,
		"elapsed", time.Since(start))
	return nil
}

// FindPath returns a shortest path from start to target, or ErrNoPath.
func (e *Engine) FindPath(ctx context.Context, start, target grid.Position) (*Path, error) {
	if !e.layout.InBounds(start) || !e.layout.InBounds(target) {
		return nil, fmt.Errorf("%w: %v -> %v", ErrOutOfBounds, start, target)
	}
	if !e.src.IsWalkable(start.X, start.Y) || !e.src.IsWalkable(target.X, target.Y) {
		return nil, ErrNoPath
	}
	if r := e.regions.Load(); r != nil && !r.Connected(start, target) {
		return nil, ErrNoPath
	}
	if start == target {
		return &Path{Waypoints: []grid.Position{start}}, nil
	}

	s := newSearch(ctx, e, start, target)
	if err := s.run(); err != nil {
		return nil, err
	}
	return &Path{Waypoints: s.waypoints(), Cost: s.best, Ticks: s.ticks}, nil
}

// Cells expands a path's waypoints into single-cell moves.
func (e *Engine) Cells(p *Path) ([]grid.Position, error) {
	return subgoal.Expand(e.src, p.Waypoints)
}

// Stats summarizes the loaded graph.
type Stats struct {
	Chunks          int
	Loaded          int
	Levels          int
	Vertices        int
	Edges           int
	RemoteEdges     int
	OverlayVertices int
	Shortcuts       int
	Regions         int
	LargestRegion   int
}

// Stats walks the registry and reports totals.
func (e *Engine) Stats() Stats {
	st := Stats{Chunks: e.layout.Count(), Levels: e.hier.Levels()}
	for id := range e.reg.Len() {
		ent, err := e.reg.Get(id)
		if err != nil {
			continue
		}
		st.Loaded++
		st.Vertices += len(ent.Base.Vertices)
		st.Edges += len(ent.Base.Edges)
		st.RemoteEdges += ent.Base.NumRemote()
		st.OverlayVertices += len(ent.Overlay.Vertices)
		st.Shortcuts += ent.Overlay.NumShortcuts()
	}
	if r := e.regions.Load(); r != nil {
		st.Regions = r.Count()
		_, st.LargestRegion = r.Largest()
	}
	return st
}
