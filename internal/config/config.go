// Package config handles configuration loading for the canopy
// statistics server.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/canopystats/server/internal/data/regionstore"
)

// Config represents the server configuration.
type Config struct {
	Tiles   TilesConfig   `yaml:"tiles"`
	Regions RegionsConfig `yaml:"regions"`
	Cache   CacheConfig   `yaml:"cache"`
	Compute ComputeConfig `yaml:"compute"`
	Jobs    JobsConfig    `yaml:"jobs"`
	Render  RenderConfig  `yaml:"render"`
}

// TilesConfig locates the pre-tiled grid arrays and the on-demand
// region arrays. URL wins over Dir when both are set.
type TilesConfig struct {
	GridURL        string `yaml:"grid_url"`
	GridDir        string `yaml:"grid_dir"`
	GridPrefix     string `yaml:"grid_prefix"`
	OnDemandURL    string `yaml:"on_demand_url"`
	OnDemandDir    string `yaml:"on_demand_dir"`
	OnDemandPrefix string `yaml:"on_demand_prefix"`
}

// RegionsConfig contains region geometry and catalog settings.
type RegionsConfig struct {
	OverpassEndpoint       string              `yaml:"overpass_endpoint"`
	OverpassTimeoutSeconds int                 `yaml:"overpass_timeout_seconds"`
	Catalog                []regionstore.Entry `yaml:"catalog"`
}

// CacheConfig contains caching settings.
type CacheConfig struct {
	ChunkSizeMB     int `yaml:"chunk_size_mb"`
	ChunkTTLMinutes int `yaml:"chunk_ttl_minutes"`
	TileEntries     int `yaml:"tile_entries"`
	ResultEntries   int `yaml:"result_entries"`
}

// ComputeConfig contains aggregation settings.
type ComputeConfig struct {
	ChunkSize           int `yaml:"chunk_size"`
	FetchConcurrency    int `yaml:"fetch_concurrency"`
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds"`
}

// JobsConfig contains async job settings.
type JobsConfig struct {
	SQLitePath    string `yaml:"sqlite_path"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	RetentionDays int    `yaml:"retention_days"`
}

// RenderConfig contains quicklook rendering settings.
type RenderConfig struct {
	Colormap string `yaml:"colormap"`
	MaxDim   int    `yaml:"max_dim"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		return DefaultConfig(), nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	return &cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Tiles: TilesConfig{
			GridDir:        "./data/tiles",
			GridPrefix:     "tiles",
			OnDemandDir:    "./data/regions",
			OnDemandPrefix: "regions",
		},
		Regions: RegionsConfig{
			OverpassTimeoutSeconds: 30,
		},
		Cache: CacheConfig{
			ChunkSizeMB:     256,
			ChunkTTLMinutes: 10,
			TileEntries:     32,
			ResultEntries:   256,
		},
		Compute: ComputeConfig{
			ChunkSize:           64,
			FetchConcurrency:    6,
			FetchTimeoutSeconds: 60,
		},
		Jobs: JobsConfig{
			SQLitePath:    "./data/jobs.db",
			MaxConcurrent: 1,
			RetentionDays: 7,
		},
		Render: RenderConfig{
			Colormap: "viridis",
			MaxDim:   1024,
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Tiles.GridURL == "" && cfg.Tiles.GridDir == "" {
		cfg.Tiles.GridDir = defaults.Tiles.GridDir
	}
	if cfg.Tiles.GridPrefix == "" {
		cfg.Tiles.GridPrefix = defaults.Tiles.GridPrefix
	}
	if cfg.Tiles.OnDemandURL == "" && cfg.Tiles.OnDemandDir == "" {
		cfg.Tiles.OnDemandDir = defaults.Tiles.OnDemandDir
	}
	if cfg.Tiles.OnDemandPrefix == "" {
		cfg.Tiles.OnDemandPrefix = defaults.Tiles.OnDemandPrefix
	}
	if cfg.Regions.OverpassTimeoutSeconds == 0 {
		cfg.Regions.OverpassTimeoutSeconds = defaults.Regions.OverpassTimeoutSeconds
	}
	if cfg.Cache.ChunkSizeMB == 0 {
		cfg.Cache.ChunkSizeMB = defaults.Cache.ChunkSizeMB
	}
	if cfg.Cache.ChunkTTLMinutes == 0 {
		cfg.Cache.ChunkTTLMinutes = defaults.Cache.ChunkTTLMinutes
	}
	if cfg.Cache.TileEntries == 0 {
		cfg.Cache.TileEntries = defaults.Cache.TileEntries
	}
	if cfg.Cache.ResultEntries == 0 {
		cfg.Cache.ResultEntries = defaults.Cache.ResultEntries
	}
	if cfg.Compute.ChunkSize == 0 {
		cfg.Compute.ChunkSize = defaults.Compute.ChunkSize
	}
	if cfg.Compute.FetchConcurrency == 0 {
		cfg.Compute.FetchConcurrency = defaults.Compute.FetchConcurrency
	}
	if cfg.Compute.FetchTimeoutSeconds == 0 {
		cfg.Compute.FetchTimeoutSeconds = defaults.Compute.FetchTimeoutSeconds
	}
	if cfg.Jobs.SQLitePath == "" {
		cfg.Jobs.SQLitePath = defaults.Jobs.SQLitePath
	}
	if cfg.Jobs.MaxConcurrent == 0 {
		cfg.Jobs.MaxConcurrent = defaults.Jobs.MaxConcurrent
	}
	if cfg.Jobs.RetentionDays == 0 {
		cfg.Jobs.RetentionDays = defaults.Jobs.RetentionDays
	}
	if cfg.Render.Colormap == "" {
		cfg.Render.Colormap = defaults.Render.Colormap
	}
	if cfg.Render.MaxDim == 0 {
		cfg.Render.MaxDim = defaults.Render.MaxDim
	}
}
