package graph

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"sort"
	"unsafe"

	"grid_router/pkg/cell"
	"grid_router/pkg/grid"
)

const (
	magicBytes  = "GRIDRTR1"
	version     = uint32(1)
	maxVertices = 1 << 24
	maxEdges    = 1 << 26
	maxLevels   = 16
	maxPayload  = 1 << 30
)

// ErrCorrupt is wrapped by every decoding failure.
var ErrCorrupt = errors.New("corrupt graph data")

// chunkHeader precedes the arrays of one encoded chunk.
type chunkHeader struct {
	ID          int32
	MinX, MinY  int32
	MaxX, MaxY  int32
	NumVertices uint32
	NumEdges    uint32
	NumMapping  uint32
}

// EncodeChunk writes c in a little-endian, column-oriented layout.
func EncodeChunk(w io.Writer, c *Chunk) error {
	hdr := chunkHeader{
		ID:          int32(c.ID),
		MinX:        int32(c.Bounds.MinX),
		MinY:        int32(c.Bounds.MinY),
		MaxX:        int32(c.Bounds.MaxX),
		MaxY:        int32(c.Bounds.MaxY),
		NumVertices: uint32(len(c.Vertices)),
		NumEdges:    uint32(len(c.Edges)),
		NumMapping:  uint32(len(c.Mapping)),
	}
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write chunk header: %w", err)
	}

	nv := len(c.Vertices)
	vx, vy, off := make([]int32, nv), make([]int32, nv), make([]int32, nv)
	cells := make([]uint64, nv)
	for i, v := range c.Vertices {
		vx[i], vy[i], off[i], cells[i] = int32(v.Pos.X), int32(v.Pos.Y), v.EdgeOffset, v.Cell
	}
	ne := len(c.Edges)
	from, to, tx, ty := make([]int32, ne), make([]int32, ne), make([]int32, ne), make([]int32, ne)
	cost := make([]float64, ne)
	for i, e := range c.Edges {
		from[i], to[i], tx[i], ty[i], cost[i] = e.From, e.To.Vertex, int32(e.To.Pos.X), int32(e.To.Pos.Y), e.Cost
	}

	for _, part := range []struct {
		name string
		fn   func() error
	}{
		{"vertex x", func() error { return WriteSlice(w, vx) }},
		{"vertex y", func() error { return WriteSlice(w, vy) }},
		{"edge offsets", func() error { return WriteSlice(w, off) }},
		{"cells", func() error { return WriteSlice(w, cells) }},
		{"edge from", func() error { return WriteSlice(w, from) }},
		{"edge to", func() error { return WriteSlice(w, to) }},
		{"edge target x", func() error { return WriteSlice(w, tx) }},
		{"edge target y", func() error { return WriteSlice(w, ty) }},
		{"edge cost", func() error { return WriteSlice(w, cost) }},
		{"mapping", func() error { return WriteSlice(w, c.Mapping) }},
	} {
		if err := part.fn(); err != nil {
			return fmt.Errorf("write %s: %w", part.name, err)
		}
	}
	return nil
}

// DecodeChunk reads a chunk written by EncodeChunk and validates its CSR
// arrays and positions against h.
func DecodeChunk(r io.Reader, h *cell.Hierarchy) (*Chunk, error) {
	var hdr chunkHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read chunk header: %w", err)
	}
	if hdr.NumVertices > maxVertices {
		return nil, fmt.Errorf("%w: %d vertices exceeds limit %d", ErrCorrupt, hdr.NumVertices, maxVertices)
	}
	if hdr.NumEdges > maxEdges || hdr.NumMapping > 2*maxEdges {
		return nil, fmt.Errorf("%w: edge count exceeds limit %d", ErrCorrupt, maxEdges)
	}
	nv, ne := int(hdr.NumVertices), int(hdr.NumEdges)

	var (
		vx, vy, off, from, to, tx, ty, mapping []int32
		cells                                  []uint64
		cost                                   []float64
		err                                    error
	)
	read32 := func(dst *[]int32, n int, name string) {
		if err == nil {
			if *dst, err = ReadSlice[int32](r, n); err != nil {
				err = fmt.Errorf("read %s: %w", name, err)
			}
		}
	}
	read32(&vx, nv, "vertex x")
	read32(&vy, nv, "vertex y")
	read32(&off, nv, "edge offsets")
	if err == nil {
		if cells, err = ReadSlice[uint64](r, nv); err != nil {
			err = fmt.Errorf("read cells: %w", err)
		}
	}
	read32(&from, ne, "edge from")
	read32(&to, ne, "edge to")
	read32(&tx, ne, "edge target x")
	read32(&ty, ne, "edge target y")
	if err == nil {
		if cost, err = ReadSlice[float64](r, ne); err != nil {
			err = fmt.Errorf("read edge cost: %w", err)
		}
	}
	read32(&mapping, int(hdr.NumMapping), "mapping")
	if err != nil {
		return nil, err
	}

	c := &Chunk{
		ID:       int(hdr.ID),
		Bounds:   grid.Rect{MinX: int(hdr.MinX), MinY: int(hdr.MinY), MaxX: int(hdr.MaxX), MaxY: int(hdr.MaxY)},
		Vertices: make([]Vertex, nv),
		Edges:    make([]Edge, ne),
		Mapping:  mapping,
	}
	for i := range c.Vertices {
		c.Vertices[i] = Vertex{Pos: grid.Position{X: int(vx[i]), Y: int(vy[i])}, EdgeOffset: off[i], Cell: cells[i]}
	}
	for i := range c.Edges {
		c.Edges[i] = Edge{From: from[i], To: Target{Vertex: to[i], Pos: grid.Position{X: int(tx[i]), Y: int(ty[i])}}, Cost: cost[i]}
	}
	if err := validateCSR(c); err != nil {
		return nil, fmt.Errorf("%w: chunk %d: %v", ErrCorrupt, c.ID, err)
	}
	if err := validatePositions(c, h); err != nil {
		return nil, fmt.Errorf("%w: chunk %d: %v", ErrCorrupt, c.ID, err)
	}
	c.indexPositions()
	return c, nil
}

// validateCSR checks that vertex ranges are contiguous and that every edge
// references valid vertices.
func validateCSR(c *Chunk) error {
	nv := int32(len(c.Vertices))
	prev := int32(0)
	for i, v := range c.Vertices {
		if v.EdgeOffset < prev || int(v.EdgeOffset) > len(c.Mapping) {
			return fmt.Errorf("EdgeOffset not monotonic at %d: %d", i, v.EdgeOffset)
		}
		prev = v.EdgeOffset
	}
	if nv > 0 && c.Vertices[0].EdgeOffset != 0 {
		return fmt.Errorf("first EdgeOffset %d != 0", c.Vertices[0].EdgeOffset)
	}
	for i, e := range c.Edges {
		if e.From < 0 || e.From >= nv {
			return fmt.Errorf("Edges[%d].From=%d out of range", i, e.From)
		}
		if e.To.Vertex < NoVertex || e.To.Vertex >= nv {
			return fmt.Errorf("Edges[%d].To=%d out of range", i, e.To.Vertex)
		}
	}
	for i, m := range c.Mapping {
		if m < 0 || int(m) >= len(c.Edges) {
			return fmt.Errorf("Mapping[%d]=%d out of range", i, m)
		}
	}
	return nil
}

// validatePositions checks that the chunk lies on the grid, that every vertex
// lies in the chunk with its own cell number, and that edges point where
// they claim to.
func validatePositions(c *Chunk, h *cell.Hierarchy) error {
	w, ht := h.Size()
	b := c.Bounds
	if b.MinX < 0 || b.MinY < 0 || b.MaxX > w || b.MaxY > ht || b.MinX >= b.MaxX || b.MinY >= b.MaxY {
		return fmt.Errorf("bounds %+v outside %dx%d grid", b, w, ht)
	}
	for i, v := range c.Vertices {
		if !b.Contains(v.Pos.X, v.Pos.Y) {
			return fmt.Errorf("Vertices[%d] at %v outside bounds", i, v.Pos)
		}
		if want := h.CellOf(v.Pos); v.Cell != want {
			return fmt.Errorf("Vertices[%d] cell %#x, want %#x", i, v.Cell, want)
		}
	}
	for i, e := range c.Edges {
		if math.IsNaN(e.Cost) || e.Cost < 0 || math.IsInf(e.Cost, 0) {
			return fmt.Errorf("Edges[%d] cost %v", i, e.Cost)
		}
		p := e.To.Pos
		if !e.To.IsRemote() {
			if p != c.Vertices[e.To.Vertex].Pos {
				return fmt.Errorf("Edges[%d] target %v is not vertex %d", i, p, e.To.Vertex)
			}
			continue
		}
		if p.X < 0 || p.Y < 0 || p.X >= w || p.Y >= ht || b.Contains(p.X, p.Y) {
			return fmt.Errorf("Edges[%d] remote target %v", i, p)
		}
	}
	return nil
}

// SnapshotHeader identifies the grid and parameters a snapshot was built for.
type SnapshotHeader struct {
	Magic     [8]byte
	Version   uint32
	Width     uint32
	Height    uint32
	ChunkSize uint32
	NumLevels uint32
	Dims      [maxLevels]uint32
	NumChunks uint32
}

// NewSnapshotHeader fills a header for the given grid parameters.
func NewSnapshotHeader(width, height, chunkSize int, dims []int) (SnapshotHeader, error) {
	if len(dims) > maxLevels {
		return SnapshotHeader{}, fmt.Errorf("%d levels exceeds limit %d", len(dims), maxLevels)
	}
	hdr := SnapshotHeader{
		Version:   version,
		Width:     uint32(width),
		Height:    uint32(height),
		ChunkSize: uint32(chunkSize),
		NumLevels: uint32(len(dims)),
	}
	copy(hdr.Magic[:], magicBytes)
	for i, d := range dims {
		hdr.Dims[i] = uint32(d)
	}
	return hdr, nil
}

// Matches reports whether two headers describe the same build parameters.
func (h SnapshotHeader) Matches(o SnapshotHeader) bool {
	h.NumChunks, o.NumChunks = 0, 0
	return h == o
}

// WriteSnapshot writes one payload per chunk id to path, with a CRC32 trailer.
// The file is written to a temporary name and renamed into place.
func WriteSnapshot(path string, hdr SnapshotHeader, payloads map[int][]byte) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath) // clean up on error
	}()

	cw := &crc32Writer{w: f, hash: crc32.NewIEEE()}
	hdr.NumChunks = uint32(len(payloads))
	if err := binary.Write(cw, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	ids := make([]int, 0, len(payloads))
	for id := range payloads {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		p := payloads[id]
		frame := [2]uint32{uint32(id), uint32(len(p))}
		if err := binary.Write(cw, binary.LittleEndian, frame); err != nil {
			return fmt.Errorf("write chunk %d frame: %w", id, err)
		}
		if _, err := cw.Write(p); err != nil {
			return fmt.Errorf("write chunk %d: %w", id, err)
		}
	}

	if err := binary.Write(f, binary.LittleEndian, cw.hash.Sum32()); err != nil {
		return fmt.Errorf("write CRC32: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// ReadSnapshot reads a file written by WriteSnapshot and verifies its checksum.
func ReadSnapshot(path string) (SnapshotHeader, map[int][]byte, error) {
	var hdr SnapshotHeader
	f, err := os.Open(path)
	if err != nil {
		return hdr, nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	cr := &crc32Reader{r: f, hash: crc32.NewIEEE()}
	if err := binary.Read(cr, binary.LittleEndian, &hdr); err != nil {
		return hdr, nil, fmt.Errorf("read header: %w", err)
	}
	if string(hdr.Magic[:]) != magicBytes {
		return hdr, nil, fmt.Errorf("%w: invalid magic bytes %q", ErrCorrupt, hdr.Magic)
	}
	if hdr.Version != version {
		return hdr, nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, hdr.Version)
	}
	if hdr.NumLevels > maxLevels {
		return hdr, nil, fmt.Errorf("%w: %d levels", ErrCorrupt, hdr.NumLevels)
	}

	payloads := make(map[int][]byte, hdr.NumChunks)
	for range hdr.NumChunks {
		var frame [2]uint32
		if err := binary.Read(cr, binary.LittleEndian, &frame); err != nil {
			return hdr, nil, fmt.Errorf("read chunk frame: %w", err)
		}
		if frame[1] > maxPayload {
			return hdr, nil, fmt.Errorf("%w: chunk %d payload of %d bytes", ErrCorrupt, frame[0], frame[1])
		}
		p := make([]byte, frame[1])
		if _, err := io.ReadFull(cr, p); err != nil {
			return hdr, nil, fmt.Errorf("read chunk %d: %w", frame[0], err)
		}
		payloads[int(frame[0])] = p
	}

	expected := cr.hash.Sum32()
	var stored uint32
	if err := binary.Read(f, binary.LittleEndian, &stored); err != nil {
		return hdr, nil, fmt.Errorf("read CRC32: %w", err)
	}
	if stored != expected {
		return hdr, nil, fmt.Errorf("%w: CRC32 mismatch: stored=%08x computed=%08x", ErrCorrupt, stored, expected)
	}
	return hdr, payloads, nil
}

// Fixed is the set of element types that WriteSlice and ReadSlice copy as raw
// little-endian memory.
type Fixed interface {
	~int32 | ~uint32 | ~uint64 | ~float64
}

// WriteSlice writes s without a length prefix.
func WriteSlice[T Fixed](w io.Writer, s []T) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(s[0])))
	_, err := w.Write(b)
	return err
}

// ReadSlice reads n elements written by WriteSlice.
func ReadSlice[T Fixed](r io.Reader, n int) ([]T, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]T, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*int(unsafe.Sizeof(s[0])))
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

// CRC32 wrapping writers/readers.

type crc32Writer struct {
	w    io.Writer
	hash crc32Hash
}

type crc32Hash interface {
	Write([]byte) (int, error)
	Sum32() uint32
}

func (cw *crc32Writer) Write(p []byte) (int, error) {
	cw.hash.Write(p)
	return cw.w.Write(p)
}

type crc32Reader struct {
	r    io.Reader
	hash crc32Hash
}

func (cr *crc32Reader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.hash.Write(p[:n])
	}
	return n, err
}
