package routing

import (
	"context"
	"fmt"
	"math"

	"grid_router/pkg/cell"
	"grid_router/pkg/grid"
	"grid_router/pkg/subgoal"
)

// ctxCheckInterval is how many expansions run between context checks.
const ctxCheckInterval = 100

type seed struct {
	pos  grid.Position
	cost float64
}

// search is the state of one FindPath call. It is not safe for concurrent use.
type search struct {
	e   *Engine
	ctx context.Context

	start, target grid.Position
	anchors       []cell.Number
	entries       map[int32]*Entry

	a      *arena
	q      frontiers
	best   float64
	meet   int32
	direct bool
	ticks  int
}

func newSearch(ctx context.Context, e *Engine, start, target grid.Position) *search {
	return &search{
		e:       e,
		ctx:     ctx,
		start:   start,
		target:  target,
		entries: make(map[int32]*Entry),
		a:       newArena(),
		best:    math.Inf(1),
		meet:    noParent,
	}
}

// entry returns the chunk entry as first seen by this query, so a chunk
// republished mid-query cannot change vertex ids under the arena.
func (s *search) entry(chunk int32) (*Entry, bool) {
	if e, ok := s.entries[chunk]; ok {
		return e, e != nil
	}
	e, err := s.e.reg.Get(int(chunk))
	if err != nil {
		e = nil
	}
	s.entries[chunk] = e
	return e, e != nil
}

// queryLevel is the coarsest level whose cell around p contains no anchor.
func (s *search) queryLevel(p grid.Position) int {
	c := s.e.hier.CellOf(p)
	ql := s.e.hier.Levels()
	for _, a := range s.anchors {
		if l := s.e.hier.HighestDifferingLevel(a, c); l < ql {
			ql = l
			if ql == 0 {
				break
			}
		}
	}
	return ql
}

// seeds returns the subgoals a query endpoint connects to. A subgoal endpoint
// is its own seed. Otherwise both endpoints are treated as temporary subgoals
// and direct reports whether other is reachable in one straight leg.
func (s *search) seeds(from, other grid.Position) (out []seed, direct bool) {
	if subgoal.IsSubgoal(s.e.src, from.X, from.Y) {
		return []seed{{pos: from}}, false
	}
	sc := &subgoal.Scanner{
		Source:       s.e.src,
		IsSubgoal:    subgoal.WithExtra(s.e.isSubgoal, s.start, s.target),
		MaxClearance: s.e.cfg.MaxClearance,
	}
	for _, p := range sc.DirectHReachable(from.X, from.Y) {
		if p == other {
			direct = true
		}
		if s.e.isSubgoal(p.X, p.Y) {
			out = append(out, seed{pos: p, cost: subgoal.Cost(s.e.src, from, p)})
		}
	}
	return out, direct
}

func (s *search) init() {
	fwd, direct := s.seeds(s.start, s.target)
	bwd, directBack := s.seeds(s.target, s.start)
	if direct || directBack {
		s.best = subgoal.Cost(s.e.src, s.start, s.target)
		s.direct = true
	}

	seen := make(map[cell.Number]struct{})
	addAnchor := func(p grid.Position) {
		c := s.e.hier.CellOf(p)
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			s.anchors = append(s.anchors, c)
		}
	}
	addAnchor(s.start)
	addAnchor(s.target)
	for _, sd := range fwd {
		addAnchor(sd.pos)
	}
	for _, sd := range bwd {
		addAnchor(sd.pos)
	}

	for _, sd := range fwd {
		s.seed(forward, sd)
	}
	for _, sd := range bwd {
		s.seed(backward, sd)
	}
}

func (s *search) seed(d direction, sd seed) {
	chunk := int32(s.e.layout.ChunkID(sd.pos))
	ent, ok := s.entry(chunk)
	if !ok {
		return
	}
	v, ok := ent.Base.VertexAt(sd.pos)
	if !ok {
		return
	}
	s.relax(d, noParent, baseNode, chunk, v, sd.pos, sd.cost, 0)
}

// run expands the cheapest frontier until the best meeting cost can no
// longer improve.
func (s *search) run() error {
	s.init()
	for s.best > s.q.min(forward)+s.q.min(backward) {
		qi := s.q.pick()
		item := s.q[qi].Pop()
		d := direction(qi % 2)
		n := &s.a.nodes[item.Node]
		lab := &n.dir[d]
		if lab.state == closed || item.Dist > lab.cost {
			continue
		}
		lab.state = closed

		s.ticks++
		if limit := s.e.cfg.MaxTicks; limit > 0 && s.ticks > limit {
			return fmt.Errorf("%w: %d expansions", ErrSearchLimit, limit)
		}
		if s.ticks%ctxCheckInterval == 0 {
			if err := s.ctx.Err(); err != nil {
				return err
			}
		}

		if n.kind == baseNode {
			s.expandBase(d, item.Node)
		} else {
			s.expandOverlay(d, item.Node)
		}
	}
	if math.IsInf(s.best, 1) {
		return ErrNoPath
	}
	return nil
}

// relax offers cost to a node in direction d and records a meeting point
// when the opposite direction has already labelled it.
func (s *search) relax(d direction, from int32, kind nodeKind, chunk, id int32, pos grid.Position, cost float64, level int) {
	i := s.a.get(kind, chunk, id, pos, s.queryLevel)
	n := &s.a.nodes[i]
	lab := &n.dir[d]
	if lab.state == closed || cost >= lab.cost {
		return
	}
	*lab = label{state: open, cost: cost, parent: from, level: int8(level)}
	s.q[queueIndex(d, kind)].Push(i, cost)

	if opp := n.dir[d.opposite()]; opp.state != unvisited && cost+opp.cost < s.best {
		s.best = cost + opp.cost
		s.meet = i
		s.direct = false
	}
}

// enter relaxes the far end w of a crossed base edge, as a base node when
// its query level is 0 and as the overlay vertex of the crossing otherwise.
func (s *search) enter(d direction, from int32, ent *Entry, chunk, w int32, wpos, fromPos grid.Position, cost float64) {
	if s.queryLevel(wpos) == 0 {
		s.relax(d, from, baseNode, chunk, w, wpos, cost, 0)
		return
	}
	o, ok := ent.Overlay.Lookup(wpos, fromPos, s.e.layout.Height)
	if !ok {
		return
	}
	s.relax(d, from, overlayNode, chunk, o, wpos, cost, 0)
}

func (s *search) expandBase(d direction, i int32) {
	n := s.a.nodes[i]
	ent, ok := s.entry(n.chunk)
	if !ok {
		return
	}
	base := ent.Base
	for _, e := range base.EdgesOf(n.id) {
		t := base.Other(e, n.id)
		cost := n.dir[d].cost + base.Edges[e].Cost
		if !t.IsRemote() {
			s.enter(d, i, ent, n.chunk, t.Vertex, t.Pos, n.pos, cost)
			continue
		}
		chunk := int32(s.e.layout.ChunkID(t.Pos))
		other, ok := s.entry(chunk)
		if !ok {
			continue
		}
		w, ok := other.Base.VertexAt(t.Pos)
		if !ok {
			continue
		}
		s.enter(d, i, other, chunk, w, t.Pos, n.pos, cost)
	}
}

func (s *search) expandOverlay(d direction, i int32) {
	n := s.a.nodes[i]
	ent, ok := s.entry(n.chunk)
	if !ok {
		return
	}
	v := &ent.Overlay.Vertices[n.id]
	cost := n.dir[d].cost

	if l := n.ql; l >= 1 && l <= len(v.Edges) {
		for _, sc := range v.Edges[l-1] {
			x := &ent.Overlay.Vertices[sc.To]
			pos := ent.Base.Vertices[x.Base].Pos
			if s.queryLevel(pos) == 0 {
				s.relax(d, i, baseNode, n.chunk, x.Base, pos, cost+sc.Cost, l)
			} else {
				s.relax(d, i, overlayNode, n.chunk, sc.To, pos, cost+sc.Cost, l)
			}
		}
	}

	cross := cost + ent.Base.Edges[v.Edge].Cost
	t := ent.Base.Other(v.Edge, v.Base)
	if !t.IsRemote() {
		if s.queryLevel(t.Pos) == 0 {
			s.relax(d, i, baseNode, n.chunk, t.Vertex, t.Pos, cross, 0)
		} else {
			s.relax(d, i, overlayNode, n.chunk, v.Mirror, t.Pos, cross, 0)
		}
		return
	}
	chunk := int32(s.e.layout.ChunkID(t.Pos))
	other, ok := s.entry(chunk)
	if !ok {
		return
	}
	w, ok := other.Base.VertexAt(t.Pos)
	if !ok {
		return
	}
	s.enter(d, i, other, chunk, w, t.Pos, n.pos, cross)
}
