package routing

import (
	"grid_router/pkg/graph"
	"grid_router/pkg/grid"
)

// hop is one step of the search-graph path: the node reached and the
// shortcut level used to reach it (0 for a straight leg).
type hop struct {
	node  int32
	level int
}

// trace follows forward parents from the meeting node back to a start seed,
// then backward parents on to a target seed.
func (s *search) trace() []hop {
	var path []hop
	for i := s.meet; i != noParent; {
		lab := s.a.nodes[i].dir[forward]
		path = append(path, hop{node: i, level: int(lab.level)})
		i = lab.parent
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	// A backward label describes the hop from its node towards the target.
	for i := s.meet; ; {
		lab := s.a.nodes[i].dir[backward]
		if lab.parent == noParent {
			break
		}
		path = append(path, hop{node: lab.parent, level: int(lab.level)})
		i = lab.parent
	}
	return path
}

// waypoints turns the traced path into grid positions from start to target,
// replacing every shortcut with the base vertices it stands for.
func (s *search) waypoints() []grid.Position {
	out := []grid.Position{s.start}
	if s.direct {
		return dedupe(append(out, s.target))
	}
	hops := s.trace()
	for k, h := range hops {
		n := &s.a.nodes[h.node]
		if k > 0 && h.level > 0 {
			out = append(out, s.unpack(hops[k-1].node, h.node, h.level)...)
			continue
		}
		out = append(out, n.pos)
	}
	return dedupe(append(out, s.target))
}

// unpack expands a level-l shortcut between two nodes of the same chunk into
// the base vertices after from, ending at to. The shortcut cost is the
// shortest path inside the shared level-l cell, so a Dijkstra confined to
// that cell recovers it.
func (s *search) unpack(from, to int32, l int) []grid.Position {
	a, b := &s.a.nodes[from], &s.a.nodes[to]
	ent, ok := s.entry(a.chunk)
	if !ok {
		return []grid.Position{b.pos}
	}
	src, dst := s.baseVertex(ent, a), s.baseVertex(ent, b)
	base := ent.Base
	home := base.Vertices[src].Cell

	st := graph.NewSweepState(len(base.Vertices))
	st.RunBase(base, src,
		func(v int32) bool { return s.e.hier.SameCell(l, base.Vertices[v].Cell, home) },
		func(v int32, _ float64) bool { return v != dst })
	verts := st.PathTo(dst)
	if len(verts) == 0 || verts[0] != src {
		return []grid.Position{b.pos}
	}
	out := make([]grid.Position, 0, len(verts)-1)
	for _, v := range verts[1:] {
		out = append(out, base.Vertices[v].Pos)
	}
	if len(out) == 0 {
		out = append(out, b.pos)
	}
	return out
}

func (s *search) baseVertex(ent *Entry, n *searchNode) int32 {
	if n.kind == overlayNode {
		return ent.Overlay.Vertices[n.id].Base
	}
	return n.id
}

// dedupe drops consecutive repeats.
func dedupe(ps []grid.Position) []grid.Position {
	out := ps[:0]
	for i, p := range ps {
		if i > 0 && p == out[len(out)-1] {
			continue
		}
		out = append(out, p)
	}
	return out
}
