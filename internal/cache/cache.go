// Package cache provides the process-wide caches: raw chunk bytes,
// decoded raster tiles and aggregation results. All three are
// bounded, so memory stays predictable regardless of how many regions
// a process serves.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/canopystats/server/internal/data/raster"
)

// Config contains cache configuration.
type Config struct {
	// ChunkCacheSizeMB bounds the raw chunk byte cache.
	ChunkCacheSizeMB int
	// ChunkTTL is how long chunk bytes stay resident.
	ChunkTTL time.Duration
	// TileCacheEntries bounds the decoded tile LRU by entry count.
	TileCacheEntries int
	// ResultCacheEntries bounds the aggregation result LRU.
	ResultCacheEntries int
}

// DefaultConfig returns sensible defaults: 256 MB of chunk bytes for
// 10 minutes, 32 decoded tiles, 256 results.
func DefaultConfig() Config {
	return Config{
		ChunkCacheSizeMB:   256,
		ChunkTTL:           10 * time.Minute,
		TileCacheEntries:   32,
		ResultCacheEntries: 256,
	}
}

// Manager owns the caches. It is constructed once and injected into
// whatever needs it; there is deliberately no package-level instance.
type Manager struct {
	chunkCache  *bigcache.BigCache
	tileCache   *lru.Cache[string, *raster.Tile]
	resultCache *lru.Cache[string, []byte]
}

// NewManager creates a cache manager from cfg. Zero fields fall back
// to defaults.
func NewManager(cfg Config) (*Manager, error) {
	def := DefaultConfig()
	if cfg.ChunkCacheSizeMB <= 0 {
		cfg.ChunkCacheSizeMB = def.ChunkCacheSizeMB
	}
	if cfg.ChunkTTL <= 0 {
		cfg.ChunkTTL = def.ChunkTTL
	}
	if cfg.TileCacheEntries <= 0 {
		cfg.TileCacheEntries = def.TileCacheEntries
	}
	if cfg.ResultCacheEntries <= 0 {
		cfg.ResultCacheEntries = def.ResultCacheEntries
	}

	chunkConfig := bigcache.Config{
		Shards:             1024,
		LifeWindow:         cfg.ChunkTTL,
		CleanWindow:        cfg.ChunkTTL / 2,
		MaxEntriesInWindow: 100000,
		MaxEntrySize:       1024 * 1024, // one compressed chunk
		HardMaxCacheSize:   cfg.ChunkCacheSizeMB,
		Verbose:            false,
	}
	chunkCache, err := bigcache.New(context.Background(), chunkConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create chunk cache: %w", err)
	}

	tileCache, err := lru.New[string, *raster.Tile](cfg.TileCacheEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create tile cache: %w", err)
	}

	resultCache, err := lru.New[string, []byte](cfg.ResultCacheEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create result cache: %w", err)
	}

	return &Manager{
		chunkCache:  chunkCache,
		tileCache:   tileCache,
		resultCache: resultCache,
	}, nil
}

// Chunks returns a view satisfying raster.ByteCache.
func (m *Manager) Chunks() raster.ByteCache { return chunkView{m.chunkCache} }

type chunkView struct {
	c *bigcache.BigCache
}

func (v chunkView) Get(key string) ([]byte, bool) {
	data, err := v.c.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (v chunkView) Set(key string, value []byte) {
	// an over-capacity entry failing to cache is not an error
	_ = v.c.Set(key, value)
}

// GetTile returns a decoded tile from the LRU.
func (m *Manager) GetTile(id string) (*raster.Tile, bool) {
	return m.tileCache.Get(id)
}

// SetTile stores a decoded tile.
func (m *Manager) SetTile(id string, t *raster.Tile) {
	m.tileCache.Add(id, t)
}

// GetResult returns a cached aggregation result.
func (m *Manager) GetResult(key string) ([]byte, bool) {
	return m.resultCache.Get(key)
}

// SetResult stores an aggregation result.
func (m *Manager) SetResult(key string, data []byte) {
	m.resultCache.Add(key, data)
}

// ResultKey builds the result cache key for a request.
func ResultKey(region, metric string) string {
	return fmt.Sprintf("agg:%s:%s", region, metric)
}

// Stats returns cache statistics for logging.
func (m *Manager) Stats() map[string]interface{} {
	return map[string]interface{}{
		"chunk_cache_len":  m.chunkCache.Len(),
		"chunk_cache_cap":  m.chunkCache.Capacity(),
		"tile_cache_len":   m.tileCache.Len(),
		"result_cache_len": m.resultCache.Len(),
	}
}

// Close releases the chunk cache.
func (m *Manager) Close() error {
	return m.chunkCache.Close()
}
