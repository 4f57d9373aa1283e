package grid

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrBadMap is returned for malformed map or scenario input.
var ErrBadMap = errors.New("malformed map")

// ParseText reads a plain character map: one row per line, y grows downwards,
// '.' walkable, 'r' or '=' road, '#' or '@' blocked, ' ' unpainted.
func ParseText(r io.Reader) (*ArrayGrid, error) {
	var rows []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" && len(rows) == 0 {
			continue
		}
		rows = append(rows, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read map: %w", err)
	}
	for len(rows) > 0 && rows[len(rows)-1] == "" {
		rows = rows[:len(rows)-1]
	}
	return fromRows(rows, textKind)
}

func textKind(c byte) (CellKind, bool) {
	switch c {
	case '.':
		return Walkable, true
	case 'r', '=':
		return Road, true
	case '#', '@':
		return Blocked, true
	case ' ':
		return None, true
	}
	return None, false
}

// ParseMovingAI reads the octile map format used by the MovingAI benchmark sets.
func ParseMovingAI(r io.Reader) (*ArrayGrid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	width, height := -1, -1
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "map" {
			break
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		n, err := strconv.Atoi(fields[1])
		switch fields[0] {
		case "height":
			if err != nil {
				return nil, fmt.Errorf("%w: height %q", ErrBadMap, fields[1])
			}
			height = n
		case "width":
			if err != nil {
				return nil, fmt.Errorf("%w: width %q", ErrBadMap, fields[1])
			}
			width = n
		}
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: missing width or height header", ErrBadMap)
	}

	rows := make([]string, 0, height)
	for len(rows) < height && sc.Scan() {
		rows = append(rows, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read map: %w", err)
	}
	if len(rows) != height {
		return nil, fmt.Errorf("%w: got %d rows, header says %d", ErrBadMap, len(rows), height)
	}
	g, err := fromRows(rows, movingAIKind)
	if err != nil {
		return nil, err
	}
	if g.width != width {
		return nil, fmt.Errorf("%w: got width %d, header says %d", ErrBadMap, g.width, width)
	}
	return g, nil
}

func movingAIKind(c byte) (CellKind, bool) {
	switch c {
	case '.', 'G', 'S':
		return Walkable, true
	case '@', 'O', 'T', 'W':
		return Blocked, true
	}
	return None, false
}

func fromRows(rows []string, kind func(byte) (CellKind, bool)) (*ArrayGrid, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrBadMap)
	}
	width := len(rows[0])
	g := NewArrayGrid(width, len(rows), None)
	for y, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrBadMap, y, len(row), width)
		}
		for x := 0; x < width; x++ {
			k, ok := kind(row[x])
			if !ok {
				return nil, fmt.Errorf("%w: unknown cell %q at (%d,%d)", ErrBadMap, row[x], x, y)
			}
			g.SetWeight(x, y, k)
		}
	}
	return g, nil
}

// Load reads a map file. Format is "text", "movingai", or "" to pick by extension.
func Load(path, format string) (*ArrayGrid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open map: %w", err)
	}
	defer f.Close()

	if format == "" {
		format = "text"
		if strings.HasSuffix(path, ".map") {
			format = "movingai"
		}
	}
	switch format {
	case "text":
		return ParseText(f)
	case "movingai":
		return ParseMovingAI(f)
	}
	return nil, fmt.Errorf("unknown map format %q", format)
}

// Scenario is one query of a MovingAI .scen file.
type Scenario struct {
	Bucket  int
	Map     string
	Width   int
	Height  int
	Start   Position
	Goal    Position
	Optimal float64
}

// ParseScenarios reads a MovingAI "version 1" scenario file.
func ParseScenarios(r io.Reader) ([]Scenario, error) {
	var out []Scenario
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "version") {
			continue
		}
		f := strings.Fields(line)
		if len(f) != 9 {
			return nil, fmt.Errorf("%w: scenario line %d has %d fields", ErrBadMap, lineNo, len(f))
		}
		var ints [7]int
		for i, idx := range []int{0, 2, 3, 4, 5, 6, 7} {
			n, err := strconv.Atoi(f[idx])
			if err != nil {
				return nil, fmt.Errorf("%w: scenario line %d: %v", ErrBadMap, lineNo, err)
			}
			ints[i] = n
		}
		opt, err := strconv.ParseFloat(f[8], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: scenario line %d: %v", ErrBadMap, lineNo, err)
		}
		out = append(out, Scenario{
			Bucket:  ints[0],
			Map:     f[1],
			Width:   ints[1],
			Height:  ints[2],
			Start:   Position{X: ints[3], Y: ints[4]},
			Goal:    Position{X: ints[5], Y: ints[6]},
			Optimal: opt,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read scenarios: %w", err)
	}
	return out, nil
}
