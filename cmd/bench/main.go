package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gocarina/gocsv"

	"grid_router/pkg/baseline"
	"grid_router/pkg/config"
	"grid_router/pkg/grid"
	"grid_router/pkg/routing"
)

// query is one benchmark start/target pair.
type query struct {
	start, target grid.Position
	optimal       float64 // NaN when unknown
}

// record is one CSV row.
type record struct {
	Query     int     `csv:"query"`
	StartX    int     `csv:"start_x"`
	StartY    int     `csv:"start_y"`
	TargetX   int     `csv:"target_x"`
	TargetY   int     `csv:"target_y"`
	Cost      float64 `csv:"cost"`
	Baseline  float64 `csv:"baseline_cost"`
	Optimal   float64 `csv:"optimal_cost"`
	Waypoints int     `csv:"waypoints"`
	Ticks     int     `csv:"ticks"`
	Micros    int64   `csv:"latency_us"`
	Error     string  `csv:"error"`
}

func main() {
	cfgPath := flag.String("config", config.Path("config/grid_router.yaml"), "Path to YAML config")
	scenPath := flag.String("scen", "", "MovingAI .scen file (default: random pairs)")
	pairs := flag.Int("pairs", 1000, "Number of random pairs when no scenario is given")
	seed := flag.Uint64("seed", 1, "Random seed")
	withBaseline := flag.Bool("baseline", false, "Also run plain Dijkstra on the cell graph")
	output := flag.String("output", "bench.csv", "CSV output path")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))
	if err := run(ctx, *cfgPath, *scenPath, *pairs, *seed, *withBaseline, *output); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath, scenPath string, pairs int, seed uint64, withBaseline bool, output string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	g, _, err := config.LoadGrid(ctx, cfg)
	if err != nil {
		return fmt.Errorf("loading grid: %w", err)
	}
	engine, err := routing.NewEngine(g, cfg.Routing())
	if err != nil {
		return err
	}
	if err := engine.LoadSnapshot(cfg.Grid.Snapshot); err != nil {
		slog.Warn("snapshot unusable, building", "err", err)
		if err := engine.BuildAll(ctx); err != nil {
			return err
		}
	}

	var queries []query
	if scenPath != "" {
		queries, err = loadScenarios(scenPath)
		if err != nil {
			return err
		}
	} else {
		queries = randomQueries(g, pairs, seed)
	}

	var base *baseline.Grid
	if withBaseline {
		base = baseline.New(g)
	}
	records := runQueries(ctx, engine, base, queries)
	summarize(records)

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", output, err)
	}
	defer f.Close()
	if err := gocsv.MarshalFile(&records, f); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}
	slog.Info("results written", "path", output, "queries", len(records))
	return nil
}

func loadScenarios(path string) ([]query, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenarios: %w", err)
	}
	defer f.Close()
	scen, err := grid.ParseScenarios(f)
	if err != nil {
		return nil, err
	}
	out := make([]query, len(scen))
	for i, s := range scen {
		out[i] = query{start: s.Start, target: s.Goal, optimal: s.Optimal}
	}
	return out, nil
}

// randomQueries draws n pairs of walkable cells.
func randomQueries(g grid.Source, n int, seed uint64) []query {
	w, h := g.Size()
	var cells []grid.Position
	for x := range w {
		for y := range h {
			if g.IsWalkable(x, y) {
				cells = append(cells, grid.Position{X: x, Y: y})
			}
		}
	}
	if len(cells) == 0 {
		return nil
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]query, n)
	for i := range out {
		out[i] = query{
			start:   cells[rng.IntN(len(cells))],
			target:  cells[rng.IntN(len(cells))],
			optimal: math.NaN(),
		}
	}
	return out
}

func runQueries(ctx context.Context, r routing.Router, base *baseline.Grid, queries []query) []record {
	out := make([]record, 0, len(queries))
	for i, q := range queries {
		if ctx.Err() != nil {
			break
		}
		rec := record{
			Query:    i,
			StartX:   q.start.X,
			StartY:   q.start.Y,
			TargetX:  q.target.X,
			TargetY:  q.target.Y,
			Cost:     math.Inf(1),
			Baseline: math.NaN(),
			Optimal:  q.optimal,
		}
		t0 := time.Now()
		p, err := r.FindPath(ctx, q.start, q.target)
		rec.Micros = time.Since(t0).Microseconds()
		switch {
		case err == nil:
			rec.Cost, rec.Ticks, rec.Waypoints = p.Cost, p.Ticks, len(p.Waypoints)
		case errors.Is(err, routing.ErrNoPath):
		default:
			rec.Error = err.Error()
		}
		if base != nil {
			rec.Baseline = baselineCost(base, q)
		}
		out = append(out, rec)
	}
	return out
}

// baselineCost is the reference cost of q: +Inf when the endpoints are
// walkable but disconnected, NaN when the baseline does not apply.
func baselineCost(base *baseline.Grid, q query) float64 {
	if !base.Walkable(q.start) || !base.Walkable(q.target) {
		return math.NaN()
	}
	_, cost, ok := base.ShortestPath(q.start, q.target)
	if !ok {
		return math.Inf(1)
	}
	return cost
}

func summarize(records []record) {
	if len(records) == 0 {
		return
	}
	var total int64
	found, mismatches, failures := 0, 0, 0
	for _, r := range records {
		total += r.Micros
		if r.Error != "" {
			failures++
			continue
		}
		if !math.IsInf(r.Cost, 1) {
			found++
		}
		ref := r.Baseline
		if math.IsNaN(ref) {
			ref = r.Optimal
		}
		if !math.IsNaN(ref) && !sameCost(r.Cost, ref) {
			mismatches++
		}
	}
	slog.Info("benchmark complete",
		"queries", len(records),
		"found", found,
		"failures", failures,
		"mismatches", mismatches,
		"mean_us", total/int64(len(records)))
}

func sameCost(a, b float64) bool {
	if math.IsInf(a, 1) || math.IsInf(b, 1) {
		return math.IsInf(a, 1) && math.IsInf(b, 1)
	}
	return math.Abs(a-b) <= 1e-6*math.Max(1, b)
}
