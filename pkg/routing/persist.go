package routing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"grid_router/pkg/graph"
	"grid_router/pkg/overlay"
)

// ErrSnapshotMismatch is returned when stored chunks were built for a
// different grid size, chunk size or level layout.
var ErrSnapshotMismatch = errors.New("snapshot built for different parameters")

// ChunkStore persists encoded chunk payloads under a graph key.
type ChunkStore interface {
	SaveChunks(ctx context.Context, key string, payloads map[int][]byte) error
	LoadChunks(ctx context.Context, key string) (map[int][]byte, error)
}

// Key identifies the build parameters, e.g. "1024x1024-c64-l8.16.64".
func (e *Engine) Key() string {
	dims := e.hier.Dimensions()
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = strconv.Itoa(d)
	}
	return fmt.Sprintf("%dx%d-c%d-l%s", e.layout.Width, e.layout.Height, e.layout.ChunkSize, strings.Join(parts, "."))
}

// Payloads encodes every loaded chunk as base graph followed by overlay.
func (e *Engine) Payloads() (map[int][]byte, error) {
	out := make(map[int][]byte, e.reg.Len())
	for id := range e.reg.Len() {
		ent, err := e.reg.Get(id)
		if err != nil {
			continue
		}
		var buf bytes.Buffer
		if err := graph.EncodeChunk(&buf, ent.Base); err != nil {
			return nil, fmt.Errorf("chunk %d: %w", id, err)
		}
		if err := overlay.Encode(&buf, ent.Overlay); err != nil {
			return nil, fmt.Errorf("chunk %d: %w", id, err)
		}
		out[id] = buf.Bytes()
	}
	return out, nil
}

// Restore decodes payloads written by Payloads and publishes them.
func (e *Engine) Restore(payloads map[int][]byte) error {
	entries := make(map[int]*Entry, len(payloads))
	for id, p := range payloads {
		if id < 0 || id >= e.layout.Count() {
			return fmt.Errorf("%w: chunk id %d", graph.ErrCorrupt, id)
		}
		r := bytes.NewReader(p)
		base, err := graph.DecodeChunk(r, e.hier)
		if err != nil {
			return fmt.Errorf("chunk %d: %w", id, err)
		}
		if base.ID != id || base.Bounds != e.layout.Bounds(id) {
			return fmt.Errorf("%w: payload %d holds chunk %d at %+v", graph.ErrCorrupt, id, base.ID, base.Bounds)
		}
		ov, err := overlay.Decode(r, base, e.hier, e.layout.Height)
		if err != nil {
			return fmt.Errorf("chunk %d: %w", id, err)
		}
		if r.Len() != 0 {
			return fmt.Errorf("%w: chunk %d has %d trailing bytes", graph.ErrCorrupt, id, r.Len())
		}
		entries[id] = &Entry{Base: base, Overlay: ov}
	}
	for id, ent := range entries {
		e.reg.Publish(id, ent)
	}
	e.regions.Store(graph.LabelRegions(e.src))
	return nil
}

// SaveSnapshot writes every loaded chunk to a single checksummed file.
func (e *Engine) SaveSnapshot(path string) error {
	payloads, err := e.Payloads()
	if err != nil {
		return err
	}
	if err := graph.WriteSnapshot(path, e.header, payloads); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	slog.Info("snapshot saved", "path", path, "chunks", len(payloads))
	return nil
}

// LoadSnapshot restores chunks from a file written by SaveSnapshot.
func (e *Engine) LoadSnapshot(path string) error {
	hdr, payloads, err := graph.ReadSnapshot(path)
	if err != nil {
		return fmt.Errorf("read snapshot %s: %w", path, err)
	}
	if !hdr.Matches(e.header) {
		return fmt.Errorf("%w: %s", ErrSnapshotMismatch, path)
	}
	if err := e.Restore(payloads); err != nil {
		return fmt.Errorf("restore snapshot %s: %w", path, err)
	}
	slog.Info("snapshot loaded", "path", path, "chunks", len(payloads))
	return nil
}

// SaveTo pushes every loaded chunk to store under Key.
func (e *Engine) SaveTo(ctx context.Context, store ChunkStore) error {
	payloads, err := e.Payloads()
	if err != nil {
		return err
	}
	return store.SaveChunks(ctx, e.Key(), payloads)
}

// LoadFrom restores the chunks stored under Key.
func (e *Engine) LoadFrom(ctx context.Context, store ChunkStore) error {
	payloads, err := store.LoadChunks(ctx, e.Key())
	if err != nil {
		return err
	}
	if len(payloads) == 0 {
		return fmt.Errorf("%w: no chunks stored under %s", ErrSnapshotMismatch, e.Key())
	}
	return e.Restore(payloads)
}
