package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_FullConfig(t *testing.T) {
	content := `
tiles:
  grid_url: "https://tiles.example.com/v1"
  grid_prefix: "conus"
  on_demand_dir: "/data/regions"
regions:
  overpass_endpoint: "https://overpass.example.com/api/interpreter"
  catalog:
    - region: "north carolina"
      path: "/data/arrays/nc"
      format: "chunked"
    - region: "oregon"
      path: "/data/arrays/or"
      format: "tiledb"
      bands: 12
      height: 20000
      width: 15000
cache:
  chunk_size_mb: 128
compute:
  fetch_concurrency: 12
jobs:
  sqlite_path: "/data/jobs.db"
`
	cfg := loadFromString(t, content)

	if cfg.Tiles.GridURL != "https://tiles.example.com/v1" {
		t.Errorf("unexpected grid_url: %s", cfg.Tiles.GridURL)
	}
	if cfg.Tiles.GridPrefix != "conus" {
		t.Errorf("unexpected grid_prefix: %s", cfg.Tiles.GridPrefix)
	}
	if len(cfg.Regions.Catalog) != 2 {
		t.Fatalf("expected 2 catalog entries, got %d", len(cfg.Regions.Catalog))
	}
	if cfg.Regions.Catalog[1].Format != "tiledb" || cfg.Regions.Catalog[1].Bands != 12 {
		t.Errorf("unexpected catalog entry: %+v", cfg.Regions.Catalog[1])
	}
	if cfg.Cache.ChunkSizeMB != 128 {
		t.Errorf("expected chunk cache 128, got %d", cfg.Cache.ChunkSizeMB)
	}
	if cfg.Compute.FetchConcurrency != 12 {
		t.Errorf("expected fetch concurrency 12, got %d", cfg.Compute.FetchConcurrency)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	content := `
tiles:
  grid_dir: "/data/tiles"
`
	cfg := loadFromString(t, content)

	if cfg.Tiles.GridDir != "/data/tiles" {
		t.Errorf("unexpected grid_dir: %s", cfg.Tiles.GridDir)
	}
	if cfg.Tiles.GridPrefix != "tiles" {
		t.Errorf("expected default grid_prefix, got %q", cfg.Tiles.GridPrefix)
	}
	if cfg.Cache.ChunkSizeMB != 256 {
		t.Errorf("expected default chunk cache 256, got %d", cfg.Cache.ChunkSizeMB)
	}
	if cfg.Compute.ChunkSize != 64 {
		t.Errorf("expected default chunk size 64, got %d", cfg.Compute.ChunkSize)
	}
	if cfg.Compute.FetchTimeoutSeconds != 60 {
		t.Errorf("expected default fetch timeout 60, got %d", cfg.Compute.FetchTimeoutSeconds)
	}
	if cfg.Jobs.RetentionDays != 7 {
		t.Errorf("expected default retention 7, got %d", cfg.Jobs.RetentionDays)
	}
	if cfg.Render.Colormap != "viridis" {
		t.Errorf("expected default colormap viridis, got %q", cfg.Render.Colormap)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load of missing file should fall back to defaults: %v", err)
	}
	if cfg.Tiles.GridDir != "./data/tiles" {
		t.Errorf("unexpected default grid_dir: %s", cfg.Tiles.GridDir)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("tiles: ["), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	return cfg
}
