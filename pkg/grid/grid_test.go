package grid

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArrayGrid_Walkability(t *testing.T) {
	g := NewArrayGrid(4, 3, Walkable)
	g.SetWeight(1, 1, Blocked)
	g.SetWeight(2, 1, Road)

	assert.True(t, g.IsWalkable(0, 0))
	assert.False(t, g.IsWalkable(1, 1))
	assert.True(t, g.IsWalkable(2, 1), "road cells are walkable")
	assert.False(t, g.IsWalkable(-1, 0))
	assert.False(t, g.IsWalkable(4, 0))
	assert.False(t, g.IsWalkable(0, 3))
	assert.Equal(t, Blocked, g.Weight(10, 10))
	assert.Equal(t, 11, g.CountWalkable())
}

func TestArrayGrid_NoneIsNotWalkable(t *testing.T) {
	g := NewArrayGrid(2, 2, None)
	assert.False(t, g.IsWalkable(0, 0))
	g.Fill(0, 0, 2, 1, Walkable)
	assert.True(t, g.IsWalkable(1, 0))
	assert.False(t, g.IsWalkable(1, 1))
}

func TestPosition_Linear(t *testing.T) {
	for _, p := range []Position{{0, 0}, {3, 5}, {7, 0}, {0, 9}} {
		i := p.Linear(10)
		assert.Equal(t, p, FromLinear(i, 10))
	}
	assert.Equal(t, int32(35), Position{X: 3, Y: 5}.Linear(10))
}

func TestRect_Expand(t *testing.T) {
	r := Rect{MinX: 4, MinY: 4, MaxX: 8, MaxY: 8}
	assert.Equal(t, Rect{MinX: 0, MinY: 0, MaxX: 12, MaxY: 10}, r.Expand(4, 16, 10))
	assert.True(t, r.Contains(4, 7))
	assert.False(t, r.Contains(8, 4))
}

func TestParseText(t *testing.T) {
	src := "....\n.#r.\n....\n"
	g, err := ParseText(strings.NewReader(src))
	require.NoError(t, err)

	w, h := g.Size()
	assert.Equal(t, 4, w)
	assert.Equal(t, 3, h)
	assert.Equal(t, Blocked, g.Weight(1, 1))
	assert.Equal(t, Road, g.Weight(2, 1))
	assert.Equal(t, Walkable, g.Weight(3, 2))
}

func TestParseText_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"ragged", "...\n..\n"},
		{"unknown cell", "..x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseText(strings.NewReader(tt.src))
			assert.ErrorIs(t, err, ErrBadMap)
		})
	}
}

func TestParseMovingAI(t *testing.T) {
	src := "type octile\nheight 2\nwidth 3\nmap\n.@T\nG.S\n"
	g, err := ParseMovingAI(strings.NewReader(src))
	require.NoError(t, err)

	w, h := g.Size()
	assert.Equal(t, 3, w)
	assert.Equal(t, 2, h)
	assert.True(t, g.IsWalkable(0, 0))
	assert.False(t, g.IsWalkable(1, 0))
	assert.False(t, g.IsWalkable(2, 0))
	assert.True(t, g.IsWalkable(0, 1))
	assert.True(t, g.IsWalkable(2, 1))
}

func TestParseMovingAI_HeaderMismatch(t *testing.T) {
	_, err := ParseMovingAI(strings.NewReader("type octile\nheight 3\nwidth 3\nmap\n...\n...\n"))
	assert.ErrorIs(t, err, ErrBadMap)

	_, err = ParseMovingAI(strings.NewReader("type octile\nmap\n...\n"))
	assert.ErrorIs(t, err, ErrBadMap)
}

func TestParseScenarios(t *testing.T) {
	src := "version 1\n0\tarena.map\t49\t49\t1\t11\t1\t12\t1.00000000\n3\tarena.map\t49\t49\t5\t6\t20\t30\t29.21320343\n"
	scen, err := ParseScenarios(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, scen, 2)
	assert.Equal(t, Position{X: 1, Y: 11}, scen[0].Start)
	assert.Equal(t, Position{X: 20, Y: 30}, scen[1].Goal)
	assert.Equal(t, 3, scen[1].Bucket)
	assert.InDelta(t, 29.21320343, scen[1].Optimal, 1e-9)
}

func TestLoad_PicksFormatByExtension(t *testing.T) {
	dir := t.TempDir()
	mapPath := filepath.Join(dir, "tiny.map")
	require.NoError(t, os.WriteFile(mapPath, []byte("type octile\nheight 1\nwidth 2\nmap\n.@\n"), 0o644))
	txtPath := filepath.Join(dir, "tiny.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte(".#\n"), 0o644))

	g, err := Load(mapPath, "")
	require.NoError(t, err)
	assert.False(t, g.IsWalkable(1, 0))

	g, err = Load(txtPath, "")
	require.NoError(t, err)
	assert.True(t, g.IsWalkable(0, 0))

	_, err = Load(txtPath, "bogus")
	assert.Error(t, err)
}

func TestPad(t *testing.T) {
	g := NewArrayGrid(5, 3, Walkable)
	g.SetWeight(4, 2, Road)
	g.SetWeight(0, 1, Blocked)

	p := Pad(g, 4)
	w, h := p.Size()
	assert.Equal(t, 8, w)
	assert.Equal(t, 4, h)
	assert.Equal(t, Road, p.Weight(4, 2))
	assert.Equal(t, Blocked, p.Weight(0, 1))
	assert.Equal(t, Walkable, p.Weight(2, 2))
	assert.Equal(t, Blocked, p.Weight(2, 3), "padding row")
	assert.Equal(t, Blocked, p.Weight(6, 0), "padding column")
	assert.Equal(t, g.CountWalkable(), p.CountWalkable())

	assert.Same(t, g, Pad(g, 1))
}
