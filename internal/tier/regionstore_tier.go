package tier

import (
	"context"

	"github.com/canopystats/server/internal/data/regionstore"
	"github.com/canopystats/server/internal/metrics"
	"github.com/canopystats/server/internal/stats"
)

// RegionStoreTier serves regions that have a pre-built whole-region
// array cataloged. Highest priority: one array read beats fetching
// dozens of grid tiles.
type RegionStoreTier struct {
	catalog *regionstore.Catalog
	calc    *metrics.Calculator
}

// NewRegionStoreTier wires the region-store tier.
func NewRegionStoreTier(catalog *regionstore.Catalog, calc *metrics.Calculator) *RegionStoreTier {
	return &RegionStoreTier{catalog: catalog, calc: calc}
}

func (t *RegionStoreTier) Name() ID { return TierRegionStore }

func (t *RegionStoreTier) Aggregate(ctx context.Context, region string, metric metrics.Metric) (*Result, error) {
	r, closer, err := t.catalog.OpenReader(ctx, region)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, nil
	}
	defer closer()

	var acc metrics.TileAccumulators
	if err := t.calc.Accumulate(ctx, r, metric, &acc); err != nil {
		return nil, err
	}
	res := resultFrom(region, metric, &acc)
	res.TilesExpected = 1
	res.TilesProcessed = 1
	return res, nil
}

func (t *RegionStoreTier) AggregateBiomass(ctx context.Context, region string) (*BiomassResult, error) {
	r, closer, err := t.catalog.OpenReader(ctx, region)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, nil
	}
	defer closer()

	var acc stats.Accumulator
	if err := t.calc.AccumulateBiomass(ctx, r, &acc); err != nil {
		return nil, err
	}
	res := biomassFrom(region, &acc)
	res.TilesExpected = 1
	res.TilesProcessed = 1
	return res, nil
}
