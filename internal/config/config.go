// Package config handles configuration loading for the slide preview server.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the preview server's configuration. The reader
// library itself (Open/ReadPlane/...) takes no configuration beyond a
// slide path; this struct configures only the ambient HTTP layer on top
// of it.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Slides SlidesConfig `yaml:"slides"`
	Cache  CacheConfig  `yaml:"cache"`
	Render RenderConfig `yaml:"render"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// SlidesConfig locates the slide containers the preview server serves.
type SlidesConfig struct {
	Dir          string `yaml:"dir"`           // directory scanned for *.sldy/*.sldyz
	DefaultSlide string `yaml:"default_slide"` // basename (no suffix) of the default slide; no preview route reads it
}

// CacheConfig contains caching settings for rendered tiles and decoded planes.
type CacheConfig struct {
	TileCacheSizeMB int `yaml:"tile_cache_size_mb"`
	TileTTLMinutes  int `yaml:"tile_ttl_minutes"`
	PlaneCacheEntries int `yaml:"plane_cache_entries"`
}

// RenderConfig contains rendering settings.
type RenderConfig struct {
	TileSize        int    `yaml:"tile_size"`
	DefaultColormap string `yaml:"default_colormap"`
}

// Load reads configuration from a YAML file. A missing file is not an
// error — it returns DefaultConfig().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultConfig(), nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Slides: SlidesConfig{
			Dir: "./data/slides",
		},
		Cache: CacheConfig{
			TileCacheSizeMB:   512,
			TileTTLMinutes:    10,
			PlaneCacheEntries: 64,
		},
		Render: RenderConfig{
			TileSize:        512,
			DefaultColormap: "grays",
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if cfg.Slides.Dir == "" {
		cfg.Slides.Dir = defaults.Slides.Dir
	}
	if cfg.Cache.TileCacheSizeMB == 0 {
		cfg.Cache.TileCacheSizeMB = defaults.Cache.TileCacheSizeMB
	}
	if cfg.Cache.TileTTLMinutes == 0 {
		cfg.Cache.TileTTLMinutes = defaults.Cache.TileTTLMinutes
	}
	if cfg.Cache.PlaneCacheEntries == 0 {
		cfg.Cache.PlaneCacheEntries = defaults.Cache.PlaneCacheEntries
	}
	if cfg.Render.TileSize == 0 {
		cfg.Render.TileSize = defaults.Render.TileSize
	}
	if cfg.Render.DefaultColormap == "" {
		cfg.Render.DefaultColormap = defaults.Render.DefaultColormap
	}
}
