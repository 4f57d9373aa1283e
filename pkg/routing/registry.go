package routing

import (
	"fmt"
	"sync/atomic"

	"grid_router/pkg/graph"
	"grid_router/pkg/overlay"
)

// Entry is the published, immutable state of one chunk.
type Entry struct {
	Base    *graph.Chunk
	Overlay *overlay.Chunk
}

// Registry holds one slot per chunk. A slot is written once per build and
// read without locks; rebuilding a chunk publishes a new Entry.
type Registry struct {
	slots []atomic.Pointer[Entry]
}

// NewRegistry creates an empty registry for n chunks.
func NewRegistry(n int) *Registry {
	return &Registry{slots: make([]atomic.Pointer[Entry], n)}
}

// Len returns the number of slots.
func (r *Registry) Len() int { return len(r.slots) }

// Get returns the entry of chunk id.
func (r *Registry) Get(id int) (*Entry, error) {
	if id < 0 || id >= len(r.slots) {
		return nil, fmt.Errorf("chunk %d: %w", id, graph.ErrChunkOutOfRange)
	}
	e := r.slots[id].Load()
	if e == nil {
		return nil, fmt.Errorf("chunk %d: %w", id, graph.ErrChunkNotLoaded)
	}
	return e, nil
}

// Publish replaces the entry of chunk id.
func (r *Registry) Publish(id int, e *Entry) {
	r.slots[id].Store(e)
}

// BaseChunk implements graph.ChunkSource.
func (r *Registry) BaseChunk(id int) (*graph.Chunk, error) {
	e, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return e.Base, nil
}

// Loaded counts published chunks.
func (r *Registry) Loaded() int {
	n := 0
	for i := range r.slots {
		if r.slots[i].Load() != nil {
			n++
		}
	}
	return n
}
