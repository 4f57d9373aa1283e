package graph

import "math"

// MinHeap is a concrete-typed min-heap for Dijkstra priority queues.
// Avoids interface boxing overhead of container/heap.
type MinHeap struct {
	items []PQItem
}

// PQItem is a priority queue entry.
type PQItem struct {
	Node int32
	Dist float64
}

func (h *MinHeap) Len() int { return len(h.items) }

func (h *MinHeap) Push(node int32, dist float64) {
	h.items = append(h.items, PQItem{node, dist})
	h.siftUp(len(h.items) - 1)
}

func (h *MinHeap) Pop() PQItem {
	n := len(h.items)
	item := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return item
}

// PeekDist returns the smallest key, or +Inf when the heap is empty.
func (h *MinHeap) PeekDist() float64 {
	if len(h.items) == 0 {
		return math.Inf(1)
	}
	return h.items[0].Dist
}

func (h *MinHeap) Reset() {
	h.items = h.items[:0]
}

func (h *MinHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.less(i, parent) {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *MinHeap) siftDown(i int) {
	n := len(h.items)
	for {
		smallest := i
		left := 2*i + 1
		right := 2*i + 2
		if left < n && h.less(left, smallest) {
			smallest = left
		}
		if right < n && h.less(right, smallest) {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}

// less orders by distance, then node, so equal keys pop deterministically.
func (h *MinHeap) less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.Dist != b.Dist {
		return a.Dist < b.Dist
	}
	return a.Node < b.Node
}

// SweepState holds the per-sweep arrays of a one-to-all Dijkstra over n
// dense node ids. Only touched entries are cleared on Reset.
type SweepState struct {
	Dist    []float64
	Parent  []int32
	closed  []bool
	touched []int32
	PQ      MinHeap
}

// NewSweepState creates a SweepState for n nodes.
func NewSweepState(n int) *SweepState {
	s := &SweepState{
		Dist:    make([]float64, n),
		Parent:  make([]int32, n),
		closed:  make([]bool, n),
		touched: make([]int32, 0, 64),
	}
	for i := range s.Dist {
		s.Dist[i] = math.Inf(1)
		s.Parent[i] = NoVertex
	}
	return s
}

// Reset clears only the touched entries for fast reuse.
func (s *SweepState) Reset() {
	for _, v := range s.touched {
		s.Dist[v] = math.Inf(1)
		s.Parent[v] = NoVertex
		s.closed[v] = false
	}
	s.touched = s.touched[:0]
	s.PQ.Reset()
}

// Start seeds the sweep at v with distance zero.
func (s *SweepState) Start(v int32) {
	s.Relax(v, 0, NoVertex)
}

// Relax lowers the tentative distance of v to d through parent.
func (s *SweepState) Relax(v int32, d float64, parent int32) {
	if s.closed[v] || d >= s.Dist[v] {
		return
	}
	if math.IsInf(s.Dist[v], 1) {
		s.touched = append(s.touched, v)
	}
	s.Dist[v] = d
	s.Parent[v] = parent
	s.PQ.Push(v, d)
}

// Next settles and returns the closest open node.
func (s *SweepState) Next() (int32, float64, bool) {
	for s.PQ.Len() > 0 {
		item := s.PQ.Pop()
		if s.closed[item.Node] || item.Dist > s.Dist[item.Node] {
			continue
		}
		s.closed[item.Node] = true
		return item.Node, item.Dist, true
	}
	return NoVertex, 0, false
}

// RunBase sweeps the local edges of c from src, entering only vertices
// accepted by inside. visit is called once per settled vertex; returning
// false stops the sweep.
func (s *SweepState) RunBase(c *Chunk, src int32, inside func(v int32) bool, visit func(v int32, d float64) bool) {
	s.Start(src)
	for {
		v, d, ok := s.Next()
		if !ok {
			return
		}
		if !visit(v, d) {
			return
		}
		for _, e := range c.EdgesOf(v) {
			t := c.Other(e, v)
			if t.IsRemote() || !inside(t.Vertex) {
				continue
			}
			s.Relax(t.Vertex, d+c.Edges[e].Cost, v)
		}
	}
}

// PathTo walks Parent pointers back from v and returns the route in order.
func (s *SweepState) PathTo(v int32) []int32 {
	var out []int32
	for ; v != NoVertex; v = s.Parent[v] {
		out = append(out, v)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
