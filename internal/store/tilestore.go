// Package store resolves tile identifiers to decoded raster tiles,
// with per-process caching and de-duplicated concurrent fetches.
package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/canopystats/server/internal/cache"
	"github.com/canopystats/server/internal/data/raster"
	"github.com/canopystats/server/internal/grid"
)

// Fetcher retrieves and decodes one tile. Implementations are remote
// (object store) or synthetic (tests).
type Fetcher interface {
	FetchTile(ctx context.Context, desc grid.TileDescriptor) (*raster.Tile, error)
}

// TileStore caches decoded tiles by id. A fetch or decode failure is
// logged and reported as a nil tile; callers treat missing tiles as
// skippable, never fatal.
type TileStore struct {
	fetcher Fetcher
	cache   *cache.Manager
	timeout time.Duration
	flight  singleflight.Group
}

// DefaultFetchTimeout bounds one tile fetch.
const DefaultFetchTimeout = 60 * time.Second

// New builds a tile store. cacheMgr may be nil to disable caching
// (tests); timeout <= 0 means DefaultFetchTimeout.
func New(fetcher Fetcher, cacheMgr *cache.Manager, timeout time.Duration) *TileStore {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &TileStore{fetcher: fetcher, cache: cacheMgr, timeout: timeout}
}

// Load returns the decoded tile for desc, or nil if it cannot be
// fetched. Concurrent first-loads of the same id are collapsed into
// one fetch; each fetch runs under its own timeout.
func (s *TileStore) Load(ctx context.Context, desc grid.TileDescriptor) *raster.Tile {
	if s.cache != nil {
		if tile, ok := s.cache.GetTile(desc.ID); ok {
			return tile
		}
	}

	v, err, _ := s.flight.Do(desc.ID, func() (interface{}, error) {
		// re-check under the flight: a racing caller may have filled
		// the cache while we waited
		if s.cache != nil {
			if tile, ok := s.cache.GetTile(desc.ID); ok {
				return tile, nil
			}
		}

		fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		tile, err := s.fetcher.FetchTile(fetchCtx, desc)
		if err != nil {
			return nil, fmt.Errorf("fetch of %s failed: %w", desc.ID, err)
		}
		if s.cache != nil {
			s.cache.SetTile(desc.ID, tile)
		}
		return tile, nil
	})
	if err != nil {
		log.Printf("[TileStore] %v", err)
		return nil
	}
	return v.(*raster.Tile)
}

// GridFetcher reads tiles laid out as chunked arrays under
// <prefix>/<tile id> in an object store.
type GridFetcher struct {
	store  raster.ObjectStore
	prefix string
}

// NewGridFetcher builds a fetcher over store. prefix defaults to
// "tiles".
func NewGridFetcher(store raster.ObjectStore, prefix string) *GridFetcher {
	if prefix == "" {
		prefix = "tiles"
	}
	return &GridFetcher{store: store, prefix: prefix}
}

func (f *GridFetcher) FetchTile(ctx context.Context, desc grid.TileDescriptor) (*raster.Tile, error) {
	r, err := raster.OpenArray(ctx, f.store, f.prefix+"/"+desc.ID)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.ReadAll(ctx)
}
