package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grid_router/pkg/config"
	"grid_router/pkg/routing"
	"grid_router/pkg/store"
)

func main() {
	cfgPath := flag.String("config", config.Path("config/grid_router.yaml"), "Path to YAML config")
	output := flag.String("output", "", "Snapshot path (overrides grid.snapshot)")
	storeDir := flag.String("store-dir", "", "Also write per-chunk files under this directory")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *cfgPath, *output, *storeDir); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath, output, storeDir string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, _ := cfg.Level()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
	if output != "" {
		cfg.Grid.Snapshot = output
	}

	start := time.Now()
	g, _, err := config.LoadGrid(ctx, cfg)
	if err != nil {
		return fmt.Errorf("loading grid: %w", err)
	}
	w, h := g.Size()
	slog.Info("grid loaded", "path", cfg.Grid.Path, "width", w, "height", h, "walkable", g.CountWalkable())

	engine, err := routing.NewEngine(g, cfg.Routing())
	if err != nil {
		return err
	}
	if err := engine.BuildAll(ctx); err != nil {
		return fmt.Errorf("building graph: %w", err)
	}
	st := engine.Stats()
	slog.Info("graph built",
		"vertices", st.Vertices, "edges", st.Edges, "remote_edges", st.RemoteEdges,
		"overlay_vertices", st.OverlayVertices, "shortcuts", st.Shortcuts,
		"regions", st.Regions)

	if err := engine.SaveSnapshot(cfg.Grid.Snapshot); err != nil {
		return err
	}

	if storeDir != "" {
		dir, err := store.NewDir(storeDir)
		if err != nil {
			return err
		}
		if err := engine.SaveTo(ctx, dir); err != nil {
			return fmt.Errorf("writing chunk dir: %w", err)
		}
		slog.Info("chunks written", "dir", storeDir, "key", engine.Key())
	}

	if cfg.Database.Enabled {
		if err := pushToDatabase(ctx, cfg, engine); err != nil {
			return err
		}
	}

	info, err := os.Stat(cfg.Grid.Snapshot)
	if err != nil {
		return err
	}
	slog.Info("done",
		"elapsed", time.Since(start).Round(time.Millisecond),
		"snapshot", cfg.Grid.Snapshot,
		"mb", fmt.Sprintf("%.1f", float64(info.Size())/(1024*1024)))
	return nil
}

func pushToDatabase(ctx context.Context, cfg config.Config, engine *routing.Engine) error {
	dsn := cfg.Database.DSN()
	if err := store.RunMigrations(ctx, dsn); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	db, err := store.NewPostgres(ctx, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := engine.SaveTo(ctx, db); err != nil {
		return fmt.Errorf("saving chunks: %w", err)
	}
	slog.Info("chunks saved to database", "key", engine.Key())
	return nil
}
