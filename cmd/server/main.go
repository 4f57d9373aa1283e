package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grid_router/pkg/api"
	"grid_router/pkg/config"
	"grid_router/pkg/graph"
	"grid_router/pkg/routing"
	"grid_router/pkg/store"
)

func main() {
	cfgPath := flag.String("config", config.Path("config/grid_router.yaml"), "Path to YAML config")
	addr := flag.String("addr", "", "Listen address (overrides server.addr)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *cfgPath, *addr); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath, addr string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, _ := cfg.Level()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
	if addr != "" {
		cfg.Server.Addr = addr
	}

	start := time.Now()
	g, proj, err := config.LoadGrid(ctx, cfg)
	if err != nil {
		return fmt.Errorf("loading grid: %w", err)
	}
	engine, err := routing.NewEngine(g, cfg.Routing())
	if err != nil {
		return err
	}
	if err := restore(ctx, cfg, engine); err != nil {
		return err
	}
	st := engine.Stats()
	slog.Info("ready",
		"elapsed", time.Since(start).Round(time.Millisecond),
		"chunks", st.Loaded, "vertices", st.Vertices, "shortcuts", st.Shortcuts)

	handlers := api.NewHandlers(engine, api.Options{
		SnapRadius: cfg.Search.SnapRadius,
		Projection: proj,
	})
	srv := api.NewServer(api.ServerConfig{
		Addr:          cfg.Server.Addr,
		ReadTimeout:   cfg.Server.ReadTimeout,
		WriteTimeout:  cfg.Server.WriteTimeout,
		IdleTimeout:   cfg.Server.IdleTimeout,
		QueryTimeout:  cfg.Server.QueryTimeout,
		MaxConcurrent: cfg.Server.MaxConcurrent,
		CORSOrigin:    cfg.Server.CORSOrigin,
	}, handlers)
	return api.ListenAndServe(ctx, srv)
}

// restore loads the graph from the snapshot file, then the database, and
// builds it from the grid when neither holds a matching copy.
// rebuildable reports whether a failed load should fall back to building
// the graph from the grid.
func rebuildable(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, routing.ErrSnapshotMismatch) || errors.Is(err, graph.ErrCorrupt)
}

func restore(ctx context.Context, cfg config.Config, engine *routing.Engine) error {
	err := engine.LoadSnapshot(cfg.Grid.Snapshot)
	if err == nil {
		return nil
	}
	if !rebuildable(err) {
		return err
	}
	slog.Warn("snapshot unusable", "path", cfg.Grid.Snapshot, "err", err)

	if cfg.Database.Enabled {
		db, err := store.NewPostgres(ctx, cfg.Database.DSN())
		if err != nil {
			return err
		}
		defer db.Close()
		err = engine.LoadFrom(ctx, db)
		if err == nil {
			slog.Info("graph loaded from database", "key", engine.Key())
			return nil
		}
		if !rebuildable(err) {
			return err
		}
		slog.Warn("stored chunks unusable", "key", engine.Key(), "err", err)
	}

	slog.Info("building graph from grid")
	return engine.BuildAll(ctx)
}
