// Package store persists encoded graph chunks outside the snapshot file.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const chunkExt = ".chunk"

// Dir stores each chunk as <root>/<key>/<id>.chunk.
type Dir struct {
	root string
}

// NewDir returns a store rooted at root, creating it if needed.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating store dir %s: %w", root, err)
	}
	return &Dir{root: root}, nil
}

// SaveChunks writes every payload through a temp file and rename, so a
// reader never sees a partial chunk.
func (d *Dir) SaveChunks(ctx context.Context, key string, payloads map[int][]byte) error {
	dir := filepath.Join(d.root, key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	for id, p := range payloads {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(dir, strconv.Itoa(id)+chunkExt)
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, p, 0o644); err != nil {
			return fmt.Errorf("writing chunk %d: %w", id, err)
		}
		if err := os.Rename(tmp, path); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("renaming chunk %d: %w", id, err)
		}
	}
	return nil
}

// LoadChunks reads every chunk stored under key. An unknown key yields an
// empty map.
func (d *Dir) LoadChunks(ctx context.Context, key string) (map[int][]byte, error) {
	dir := filepath.Join(d.root, key)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[int][]byte{}, nil
		}
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	out := make(map[int][]byte, len(entries))
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), chunkExt)
		if !ok || e.IsDir() {
			continue
		}
		id, err := strconv.Atoi(name)
		if err != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading chunk %d: %w", id, err)
		}
		out[id] = p
	}
	return out, nil
}
