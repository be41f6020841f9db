package tier

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/canopystats/server/internal/data/raster"
	"github.com/canopystats/server/internal/grid"
	"github.com/canopystats/server/internal/metrics"
	"github.com/canopystats/server/internal/region"
	"github.com/canopystats/server/internal/stats"
	"github.com/canopystats/server/internal/store"
)

// BoundsResolver resolves a region name to projected bounds.
// Satisfied by region.Resolver.
type BoundsResolver interface {
	Resolve(ctx context.Context, name string) (grid.BBox, bool)
}

var _ BoundsResolver = (*region.Resolver)(nil)

// GridTier aggregates over the continental tile grid: resolve the
// region to a projected bbox, enumerate intersecting tiles, fetch
// them with bounded concurrency and merge per-tile accumulators.
// Merge commutativity makes the result independent of completion
// order.
type GridTier struct {
	grid        *grid.Grid
	bounds      BoundsResolver
	tiles       *store.TileStore
	calc        *metrics.Calculator
	concurrency int
}

// DefaultFetchConcurrency bounds in-flight tile fetches per request.
const DefaultFetchConcurrency = 6

// NewGridTier wires the grid tier. concurrency <= 0 means
// DefaultFetchConcurrency.
func NewGridTier(g *grid.Grid, bounds BoundsResolver, tiles *store.TileStore, calc *metrics.Calculator, concurrency int) *GridTier {
	if concurrency <= 0 {
		concurrency = DefaultFetchConcurrency
	}
	return &GridTier{grid: g, bounds: bounds, tiles: tiles, calc: calc, concurrency: concurrency}
}

func (t *GridTier) Name() ID { return TierContinentalGrid }

// tileCoverage is the shared bookkeeping of one grid aggregation.
type tileCoverage struct {
	expected  uint32
	processed uint32
	failed    uint32
}

// forEachTile resolves the region, enumerates tiles and runs work on
// every tile that loads, with bounded concurrency. work must be safe
// for concurrent calls. available is false when the tier cannot serve
// the region at all (unresolvable bounds, zero intersecting tiles, or
// not a single tile loaded).
func (t *GridTier) forEachTile(ctx context.Context, regionName string, work func(ctx context.Context, tile *raster.Tile) error) (cov tileCoverage, available bool, err error) {
	bbox, ok := t.bounds.Resolve(ctx, regionName)
	if !ok {
		log.Printf("[GridTier] no bounds for %q", regionName)
		return cov, false, nil
	}

	coords := t.grid.TilesIntersecting(bbox)
	if len(coords) == 0 {
		log.Printf("[GridTier] bounds of %q intersect no tiles", regionName)
		return cov, false, nil
	}
	cov.expected = uint32(len(coords))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)

	for _, c := range coords {
		desc := t.grid.Descriptor(c.Col, c.Row)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tile := t.tiles.Load(gctx, desc)
			if tile == nil {
				mu.Lock()
				cov.failed++
				mu.Unlock()
				return nil
			}
			if err := work(gctx, tile); err != nil {
				// a cancelled computation aborts the request; any
				// other fault just skips the tile
				if gctx.Err() != nil {
					return err
				}
				log.Printf("[GridTier] processing %s failed: %v", desc.ID, err)
				mu.Lock()
				cov.failed++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			cov.processed++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return cov, true, err
	}

	if cov.processed == 0 {
		// nothing loaded: let a later tier try instead of reporting
		// confident emptiness
		log.Printf("[GridTier] all %d tiles failed for %q", cov.expected, regionName)
		return cov, false, nil
	}
	if cov.failed > 0 {
		log.Printf("[GridTier] partial coverage for %q: %d/%d tiles", regionName, cov.processed, cov.expected)
	}
	return cov, true, nil
}

func (t *GridTier) Aggregate(ctx context.Context, regionName string, metric metrics.Metric) (*Result, error) {
	var mu sync.Mutex
	var merged metrics.TileAccumulators

	cov, available, err := t.forEachTile(ctx, regionName, func(ctx context.Context, tile *raster.Tile) error {
		var acc metrics.TileAccumulators
		if err := t.calc.Accumulate(ctx, tile, metric, &acc); err != nil {
			return err
		}
		mu.Lock()
		merged.Merge(&acc)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, nil
	}

	res := resultFrom(regionName, metric, &merged)
	res.TilesExpected = cov.expected
	res.TilesProcessed = cov.processed
	res.TilesFailed = cov.failed
	return res, nil
}

func (t *GridTier) AggregateBiomass(ctx context.Context, regionName string) (*BiomassResult, error) {
	var mu sync.Mutex
	var merged stats.Accumulator

	cov, available, err := t.forEachTile(ctx, regionName, func(ctx context.Context, tile *raster.Tile) error {
		var acc stats.Accumulator
		if err := t.calc.AccumulateBiomass(ctx, tile, &acc); err != nil {
			return err
		}
		mu.Lock()
		merged.Merge(&acc)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, nil
	}

	res := biomassFrom(regionName, &merged)
	res.TilesExpected = cov.expected
	res.TilesProcessed = cov.processed
	res.TilesFailed = cov.failed
	return res, nil
}
