package tier

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/canopystats/server/internal/data/raster"
	"github.com/canopystats/server/internal/grid"
	"github.com/canopystats/server/internal/metrics"
	"github.com/canopystats/server/internal/store"
)

type fixedBounds struct {
	bbox grid.BBox
	ok   bool
}

func (f fixedBounds) Resolve(ctx context.Context, name string) (grid.BBox, bool) {
	return f.bbox, f.ok
}

// gridFetcher serves synthetic tiles: every pixel has two species at
// equal biomass, except tiles listed in fail, which error.
type gridFetcher struct {
	fail map[string]bool
}

func (f *gridFetcher) FetchTile(ctx context.Context, desc grid.TileDescriptor) (*raster.Tile, error) {
	if f.fail[desc.ID] {
		return nil, errors.New("synthetic fetch failure")
	}
	tile := raster.NewTile(2, 8, 8)
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			tile.Set(0, row, col, 50)
			tile.Set(1, row, col, 50)
		}
	}
	return tile, nil
}

func newTestGridTier(t *testing.T, fail map[string]bool, bounds BoundsResolver) *GridTier {
	t.Helper()
	g, err := grid.New(0, 0, 100, 4, 4)
	if err != nil {
		t.Fatalf("grid.New failed: %v", err)
	}
	tiles := store.New(&gridFetcher{fail: fail}, nil, time.Second)
	return NewGridTier(g, bounds, tiles, metrics.NewCalculator(4), 3)
}

func TestGridTierAggregates(t *testing.T) {
	// bbox covering tiles (0,0) and (1,0)
	bounds := fixedBounds{bbox: grid.BBox{MinX: 10, MinY: 10, MaxX: 190, MaxY: 90}, ok: true}
	gt := newTestGridTier(t, nil, bounds)

	res, err := gt.Aggregate(context.Background(), "testland", metrics.Shannon)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if res == nil {
		t.Fatal("expected a result")
	}
	if res.TilesExpected != 2 || res.TilesProcessed != 2 || res.TilesFailed != 0 {
		t.Errorf("coverage = %d/%d failed %d, want 2/2/0", res.TilesProcessed, res.TilesExpected, res.TilesFailed)
	}
	if res.PixelCount != 128 {
		t.Errorf("pixel count = %d, want 128", res.PixelCount)
	}
	if math.Abs(res.Mean-math.Log(2)) > 1e-9 {
		t.Errorf("mean = %v, want ln 2", res.Mean)
	}
	if res.RichnessMax != 2 {
		t.Errorf("richness max = %d, want 2", res.RichnessMax)
	}
}

func TestGridTierPartialFailure(t *testing.T) {
	bounds := fixedBounds{bbox: grid.BBox{MinX: 10, MinY: 10, MaxX: 190, MaxY: 90}, ok: true}
	gt := newTestGridTier(t, map[string]bool{"tile_0001_0000": true}, bounds)

	res, err := gt.Aggregate(context.Background(), "testland", metrics.Richness)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if res == nil {
		t.Fatal("expected a partial result, not unavailability")
	}
	if res.TilesProcessed != 1 || res.TilesFailed != 1 || res.TilesExpected != 2 {
		t.Errorf("coverage = %d/%d failed %d, want 1/2/1", res.TilesProcessed, res.TilesExpected, res.TilesFailed)
	}
	if res.PixelCount != 64 {
		t.Errorf("pixel count = %d, want 64", res.PixelCount)
	}
}

func TestGridTierAllTilesFailed(t *testing.T) {
	bounds := fixedBounds{bbox: grid.BBox{MinX: 10, MinY: 10, MaxX: 90, MaxY: 90}, ok: true}
	gt := newTestGridTier(t, map[string]bool{"tile_0000_0000": true}, bounds)

	res, err := gt.Aggregate(context.Background(), "testland", metrics.Shannon)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if res != nil {
		t.Error("expected tier unavailable when no tile loads")
	}
}

func TestGridTierUnresolvableRegion(t *testing.T) {
	gt := newTestGridTier(t, nil, fixedBounds{ok: false})
	res, err := gt.Aggregate(context.Background(), "atlantis", metrics.Shannon)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if res != nil {
		t.Error("expected tier unavailable for unresolvable region")
	}
}

func TestGridTierBBoxOutsideGrid(t *testing.T) {
	bounds := fixedBounds{bbox: grid.BBox{MinX: 5000, MinY: 5000, MaxX: 6000, MaxY: 6000}, ok: true}
	gt := newTestGridTier(t, nil, bounds)
	res, err := gt.Aggregate(context.Background(), "elsewhere", metrics.Shannon)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if res != nil {
		t.Error("expected tier unavailable when bbox intersects no tiles")
	}
}

func TestGridTierBiomass(t *testing.T) {
	bounds := fixedBounds{bbox: grid.BBox{MinX: 10, MinY: 10, MaxX: 90, MaxY: 90}, ok: true}
	gt := newTestGridTier(t, nil, bounds)

	res, err := gt.AggregateBiomass(context.Background(), "testland")
	if err != nil {
		t.Fatalf("AggregateBiomass failed: %v", err)
	}
	if res == nil {
		t.Fatal("expected a result")
	}
	if res.PixelCount != 64 || res.MeanMgHa != 100 {
		t.Errorf("got count %d mean %v, want 64 and 100", res.PixelCount, res.MeanMgHa)
	}
	if math.Abs(res.AreaHectares-64*metrics.PixelAreaHa) > 1e-12 {
		t.Errorf("area = %v", res.AreaHectares)
	}
}

func TestGridTierCancellation(t *testing.T) {
	bounds := fixedBounds{bbox: grid.BBox{MinX: 0, MinY: 0, MaxX: 400, MaxY: 400}, ok: true}
	gt := newTestGridTier(t, nil, bounds)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := gt.Aggregate(ctx, "testland", metrics.Shannon); err == nil {
		t.Error("expected cancellation error")
	}
}
