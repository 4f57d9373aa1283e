package overlay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"grid_router/pkg/cell"
	"grid_router/pkg/graph"
)

// Build constructs the overlay vertices and shortcuts of base.
func Build(ctx context.Context, base *graph.Chunk, h *cell.Hierarchy, sizeY, workers int) (*Chunk, error) {
	start := time.Now()
	c := ConstructNodes(base, h, sizeY)
	if err := ConstructEdges(ctx, base, c, h, sizeY, workers); err != nil {
		return nil, fmt.Errorf("overlay chunk %d: %w", base.ID, err)
	}
	slog.Debug("overlay built",
		"chunk", base.ID,
		"vertices", len(c.Vertices),
		"shortcuts", c.NumShortcuts(),
		"elapsed", time.Since(start))
	return c, nil
}

// ConstructEdges computes shortcuts level by level. Cells of one level are
// swept in parallel; level l only starts once every level l-1 cell is done.
func ConstructEdges(ctx context.Context, base *graph.Chunk, c *Chunk, h *cell.Hierarchy, sizeY, workers int) error {
	for l := 1; l <= h.Levels(); l++ {
		g, gctx := errgroup.WithContext(ctx)
		if workers > 0 {
			g.SetLimit(workers)
		}
		for _, bucket := range c.cells[l-1] {
			if len(bucket) == 0 {
				continue
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				if l == 1 {
					c.sweepBase(base, h, sizeY, bucket)
				} else {
					c.sweepOverlay(base, l, bucket)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("level %d: %w", l, err)
		}
	}
	return nil
}

// sweepBase fills level-1 shortcuts by running Dijkstra over the base graph
// inside the level-1 cell of each bucket member.
func (c *Chunk) sweepBase(base *graph.Chunk, h *cell.Hierarchy, sizeY int, bucket []int32) {
	s := graph.NewSweepState(len(base.Vertices))
	for _, o := range bucket {
		ov := &c.Vertices[o]
		home := base.Vertices[ov.Base].Cell
		inside := func(v int32) bool { return h.SameCell(1, base.Vertices[v].Cell, home) }

		var out []Shortcut
		s.RunBase(base, ov.Base, inside, func(v int32, d float64) bool {
			own := base.Vertices[v].Pos
			for _, e := range base.EdgesOf(v) {
				t := base.Other(e, v)
				if !t.IsRemote() && inside(t.Vertex) {
					continue
				}
				x, ok := c.Lookup(own, t.Pos, sizeY)
				if !ok || x == o {
					continue
				}
				out = append(out, Shortcut{To: x, Cost: d})
			}
			return true
		})
		ov.Edges[0] = out
		s.Reset()
	}
}

// sweepOverlay fills level-l shortcuts (l > 1) from level l-1 shortcuts and
// the crossings that stay inside the level-l cell.
func (c *Chunk) sweepOverlay(base *graph.Chunk, l int, bucket []int32) {
	s := graph.NewSweepState(len(c.Vertices))
	for _, o := range bucket {
		var out []Shortcut
		s.Start(o)
		for {
			x, d, ok := s.Next()
			if !ok {
				break
			}
			xv := &c.Vertices[x]
			if xv.Level >= l {
				if x != o {
					out = append(out, Shortcut{To: x, Cost: d})
				}
			} else if xv.Mirror != NoMirror {
				s.Relax(xv.Mirror, d+base.Edges[xv.Edge].Cost, x)
			}
			if len(xv.Edges) >= l-1 {
				for _, sc := range xv.Edges[l-2] {
					s.Relax(sc.To, d+sc.Cost, x)
				}
			}
		}
		c.Vertices[o].Edges[l-1] = out
		s.Reset()
	}
}
