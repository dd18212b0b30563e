// Package config loads this tool's settings the teacher's way: defaults
// baked into the struct literal, overlaid by an optional YAML file,
// overlaid by environment variables, with CLI flags taking the final
// word when explicitly passed.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds every setting a run needs, whether it arrived via flag,
// env var, or config file.
type Config struct {
	Service   ServiceConfig   `koanf:"service"`
	Paths     PathsConfig     `koanf:"paths"`
	Filter    FilterConfig    `koanf:"filter"`
	Elevation ElevationConfig `koanf:"elevation"`
}

type ServiceConfig struct {
	LogLevel      string `koanf:"log_level"`
	MetricsListen string `koanf:"metrics_listen"`
}

// PathsConfig holds the default input/output/mapping locations; every
// field here is also settable via a same-named CLI flag, which wins
// when passed explicitly.
type PathsConfig struct {
	InputPBF      string   `koanf:"input_pbf"`
	OutputPBF     string   `koanf:"output_pbf"`
	CountryCSV    string   `koanf:"country_csv"`
	ElevationTIFF []string `koanf:"elevation_tiff"`
}

type FilterConfig struct {
	WithNodeFiltering bool `koanf:"with_node_filtering"`
	RemoveMetadata    bool `koanf:"remove_metadata"`
}

type ElevationConfig struct {
	Enabled         bool    `koanf:"enabled"`
	BatchSize       int     `koanf:"batch_size"`
	TotalBufferSize int     `koanf:"total_buffer_size"`
	WaySplitting    bool    `koanf:"way_splitting"`
	ResolutionLon   float64 `koanf:"resolution_lon"`
	ResolutionLat   float64 `koanf:"resolution_lat"`
}

// Load reads path (if non-empty and present) as YAML, overlays
// OSMTRANSFORM_-prefixed environment variables, fills in defaults for
// anything still unset, and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// Overlay environment variables: OSMTRANSFORM_ELEVATION__BATCH_SIZE → elevation.batch_size
	if err := k.Load(env.Provider("OSMTRANSFORM_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "OSMTRANSFORM_")
		s = strings.ToLower(s)
		s = strings.ReplaceAll(s, "__", ".")
		return s
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env config: %w", err)
	}

	cfg := &Config{
		Service: ServiceConfig{
			LogLevel: "info",
		},
		Elevation: ElevationConfig{
			BatchSize:       500,
			TotalBufferSize: 5000,
			ResolutionLon:   0.0001,
			ResolutionLat:   0.0001,
		},
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if len(cfg.Paths.ElevationTIFF) == 1 && strings.Contains(cfg.Paths.ElevationTIFF[0], ",") {
		cfg.Paths.ElevationTIFF = strings.Split(cfg.Paths.ElevationTIFF[0], ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate mirrors the teacher's field-by-field validation style.
func (c *Config) Validate() error {
	if c.Paths.InputPBF == "" {
		return fmt.Errorf("config: paths.input_pbf is required")
	}
	if c.Paths.OutputPBF == "" {
		return fmt.Errorf("config: paths.output_pbf is required")
	}
	if c.Elevation.Enabled {
		if c.Elevation.BatchSize <= 0 {
			return fmt.Errorf("config: elevation.batch_size must be > 0 (got %d)", c.Elevation.BatchSize)
		}
		if c.Elevation.TotalBufferSize <= 0 {
			return fmt.Errorf("config: elevation.total_buffer_size must be > 0 (got %d)", c.Elevation.TotalBufferSize)
		}
		if c.Elevation.TotalBufferSize < c.Elevation.BatchSize {
			return fmt.Errorf("config: elevation.total_buffer_size (%d) must be >= elevation.batch_size (%d)",
				c.Elevation.TotalBufferSize, c.Elevation.BatchSize)
		}
		if len(c.Paths.ElevationTIFF) == 0 {
			return fmt.Errorf("config: elevation.enabled requires at least one paths.elevation_tiff entry")
		}
		if c.Elevation.WaySplitting {
			if c.Elevation.ResolutionLon <= 0 {
				return fmt.Errorf("config: elevation.resolution_lon must be > 0 (got %f)", c.Elevation.ResolutionLon)
			}
			if c.Elevation.ResolutionLat <= 0 {
				return fmt.Errorf("config: elevation.resolution_lat must be > 0 (got %f)", c.Elevation.ResolutionLat)
			}
		}
	}
	return nil
}
