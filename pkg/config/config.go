// Package config loads the YAML configuration shared by the grid_router
// binaries.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"grid_router/pkg/cell"
	"grid_router/pkg/geo"
	"grid_router/pkg/routing"
)

// EnvPath names the environment variable that overrides the config path.
const EnvPath = "GRID_ROUTER_CONFIG"

// ErrInvalid is wrapped by every Validate failure. It is the same sentinel
// the engine uses for grid-dependent checks.
var ErrInvalid = cell.ErrInvalid

// Config is the full configuration file.
type Config struct {
	LogLevel string         `yaml:"log_level"`
	Grid     GridConfig     `yaml:"grid"`
	Build    BuildConfig    `yaml:"build"`
	Search   SearchConfig   `yaml:"search"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	OSM      OSMConfig      `yaml:"osm"`
}

// GridConfig locates the map and the prebuilt snapshot.
type GridConfig struct {
	Path     string `yaml:"path"`
	Format   string `yaml:"format"` // text, movingai, osm, or empty to pick by extension
	Snapshot string `yaml:"snapshot"`
}

// BuildConfig holds graph construction parameters.
type BuildConfig struct {
	ChunkSize       int   `yaml:"chunk_size"`
	LevelDimensions []int `yaml:"level_dimensions"`
	MaxClearance    int   `yaml:"max_clearance"` // 0 = unbounded; NewEngine rejects caps below the longest open run
	Workers         int   `yaml:"workers"`       // 0 = GOMAXPROCS
}

// SearchConfig holds query limits.
type SearchConfig struct {
	MaxTicks   int `yaml:"max_ticks"` // 0 = unlimited
	SnapRadius int `yaml:"snap_radius"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr          string        `yaml:"addr"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	QueryTimeout  time.Duration `yaml:"query_timeout"`
	MaxConcurrent int           `yaml:"max_concurrent"`
	CORSOrigin    string        `yaml:"cors_origin"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// OSMConfig controls rasterization of OpenStreetMap extracts.
type OSMConfig struct {
	CellMeters float64 `yaml:"cell_meters"`
	MinLat     float64 `yaml:"min_lat"`
	MaxLat     float64 `yaml:"max_lat"`
	MinLon     float64 `yaml:"min_lon"`
	MaxLon     float64 `yaml:"max_lon"`
}

// BBox returns the configured bounding box. It is zero when unset.
func (o OSMConfig) BBox() geo.BBox {
	return geo.BBox{MinLat: o.MinLat, MaxLat: o.MaxLat, MinLon: o.MinLon, MaxLon: o.MaxLon}
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		LogLevel: "info",
		Grid: GridConfig{
			Path:     "data/map.txt",
			Snapshot: "data/graph.bin",
		},
		Build: BuildConfig{
			ChunkSize:       64,
			LevelDimensions: []int{8, 16, 32, 64},
		},
		Search: SearchConfig{
			SnapRadius: 8,
		},
		Server: ServerConfig{
			Addr:          ":8090",
			ReadTimeout:   5 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   60 * time.Second,
			QueryTimeout:  5 * time.Second,
			MaxConcurrent: 64,
			CORSOrigin:    "*",
		},
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "grid_router",
			Password: "grid_router",
			DBName:   "grid_router",
			SSLMode:  "disable",
		},
		OSM: OSMConfig{
			CellMeters: 2,
		},
	}
}

// Load reads a config file over the defaults. A missing file yields the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Path returns the config path from EnvPath, or fallback when unset.
func Path(fallback string) string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return fallback
}

// Validate checks everything that does not depend on the grid size.
func (c Config) Validate() error {
	b := c.Build
	if b.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size %d", ErrInvalid, b.ChunkSize)
	}
	if len(b.LevelDimensions) == 0 {
		return fmt.Errorf("%w: level_dimensions is empty", ErrInvalid)
	}
	prev := 1
	for i, d := range b.LevelDimensions {
		if d <= prev || d%prev != 0 {
			return fmt.Errorf("%w: level_dimensions %v are not an ascending divisor chain", ErrInvalid, b.LevelDimensions)
		}
		if b.ChunkSize%d != 0 {
			return fmt.Errorf("%w: level %d dimension %d does not divide chunk_size %d", ErrInvalid, i+1, d, b.ChunkSize)
		}
		prev = d
	}
	if b.Workers < 0 || b.MaxClearance < 0 {
		return fmt.Errorf("%w: workers %d, max_clearance %d", ErrInvalid, b.Workers, b.MaxClearance)
	}
	if c.Search.MaxTicks < 0 || c.Search.SnapRadius < 0 {
		return fmt.Errorf("%w: max_ticks %d, snap_radius %d", ErrInvalid, c.Search.MaxTicks, c.Search.SnapRadius)
	}
	if c.Server.MaxConcurrent <= 0 {
		return fmt.Errorf("%w: max_concurrent %d", ErrInvalid, c.Server.MaxConcurrent)
	}
	if c.OSM.CellMeters <= 0 {
		return fmt.Errorf("%w: osm cell_meters %.2f", ErrInvalid, c.OSM.CellMeters)
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, err
	}
	return l, nil
}

// Routing returns the engine parameters.
func (c Config) Routing() routing.Config {
	return routing.Config{
		ChunkSize:       c.Build.ChunkSize,
		LevelDimensions: c.Build.LevelDimensions,
		MaxClearance:    c.Build.MaxClearance,
		Workers:         c.Build.Workers,
		MaxTicks:        c.Search.MaxTicks,
	}
}
