package tier

import (
	"context"
	"errors"
	"io/fs"
	"strings"

	"github.com/canopystats/server/internal/data/raster"
	"github.com/canopystats/server/internal/metrics"
	"github.com/canopystats/server/internal/stats"
)

// OnDemandTier streams a region's array straight from a remote object
// store, window by window, without decoding the whole array. Last
// resort: slower than the grid tier but covers regions the grid has
// no tiles for.
type OnDemandTier struct {
	store  raster.ObjectStore
	prefix string
	calc   *metrics.Calculator
}

// NewOnDemandTier wires the on-demand tier. prefix defaults to
// "regions".
func NewOnDemandTier(store raster.ObjectStore, prefix string, calc *metrics.Calculator) *OnDemandTier {
	if prefix == "" {
		prefix = "regions"
	}
	return &OnDemandTier{store: store, prefix: prefix, calc: calc}
}

func (t *OnDemandTier) Name() ID { return TierOnDemand }

// RegionSlug converts a region name to its storage key segment:
// lowercased, spaces replaced with underscores.
func RegionSlug(region string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(region)), " ", "_")
}

// open returns the region's streaming reader, or (nil, nil) when the
// remote store has no array for it.
func (t *OnDemandTier) open(ctx context.Context, region string) (*raster.Reader, error) {
	r, err := raster.OpenArray(ctx, t.store, t.prefix+"/"+RegionSlug(region))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

func (t *OnDemandTier) Aggregate(ctx context.Context, region string, metric metrics.Metric) (*Result, error) {
	r, err := t.open(ctx, region)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, nil
	}
	defer r.Close()

	var acc metrics.TileAccumulators
	if err := t.calc.Accumulate(ctx, r, metric, &acc); err != nil {
		return nil, err
	}
	res := resultFrom(region, metric, &acc)
	res.TilesExpected = 1
	res.TilesProcessed = 1
	return res, nil
}

func (t *OnDemandTier) AggregateBiomass(ctx context.Context, region string) (*BiomassResult, error) {
	r, err := t.open(ctx, region)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, nil
	}
	defer r.Close()

	var acc stats.Accumulator
	if err := t.calc.AccumulateBiomass(ctx, r, &acc); err != nil {
		return nil, err
	}
	res := biomassFrom(region, &acc)
	res.TilesExpected = 1
	res.TilesProcessed = 1
	return res, nil
}
