// Package tier orchestrates region aggregation across an ordered set
// of data tiers: pre-built region stores, the continental tile grid,
// and on-demand remote arrays. Tiers are tried in priority order;
// a tier that cannot serve a request reports (nil, nil) and the next
// tier gets a chance. Faults inside a tier, panics included, are
// caught at the tier boundary and demoted to unavailability. Only
// when every tier declines does the caller see a hard error.
package tier

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/canopystats/server/internal/metrics"
	"github.com/canopystats/server/internal/stats"
)

// ID names a tier in results and logs.
type ID string

const (
	TierRegionStore     ID = "region_store"
	TierContinentalGrid ID = "continental_grid"
	TierOnDemand        ID = "on_demand"
)

var (
	// ErrAllTiersExhausted is the only hard failure of a resolution:
	// every tier declined the request.
	ErrAllTiersExhausted = errors.New("all data tiers exhausted for region")
	// ErrRegionNotResolvable marks a region no bounds source knows.
	ErrRegionNotResolvable = errors.New("region bounds not resolvable")
)

// Result is a completed diversity aggregation. TilesProcessed below
// TilesExpected marks partial coverage; NoData marks a region whose
// tiles loaded but contained no forested pixels.
type Result struct {
	Location     string         `json:"location"`
	Metric       metrics.Metric `json:"metric"`
	Mean         float64        `json:"mean"`
	Std          float64        `json:"std"`
	Min          float64        `json:"min"`
	Max          float64        `json:"max"`
	PixelCount   uint64         `json:"pixel_count"`
	RichnessMean float64        `json:"richness_mean"`
	RichnessMax  uint32         `json:"richness_max"`

	TilesProcessed uint32 `json:"tiles_processed"`
	TilesExpected  uint32 `json:"tiles_expected"`
	TilesFailed    uint32 `json:"tiles_failed"`

	SourceTier ID   `json:"source_tier"`
	NoData     bool `json:"no_data,omitempty"`
}

// BiomassResult is a completed total-biomass aggregation.
type BiomassResult struct {
	Location   string  `json:"location"`
	MeanMgHa   float64 `json:"mean_mg_ha"`
	StdMgHa    float64 `json:"std_mg_ha"`
	MinMgHa    float64 `json:"min_mg_ha"`
	MaxMgHa    float64 `json:"max_mg_ha"`
	PixelCount uint64  `json:"pixel_count"`
	// TotalBiomassMg is mean density times forested area.
	TotalBiomassMg float64 `json:"total_biomass_mg"`
	AreaHectares   float64 `json:"area_hectares"`
	AreaAcres      float64 `json:"area_acres"`

	TilesProcessed uint32 `json:"tiles_processed"`
	TilesExpected  uint32 `json:"tiles_expected"`
	TilesFailed    uint32 `json:"tiles_failed"`

	SourceTier ID   `json:"source_tier"`
	NoData     bool `json:"no_data,omitempty"`
}

// Tier is one data-resolution strategy. Aggregate returns (nil, nil)
// when the tier cannot serve the region; an error is treated the same
// way by the resolver, after logging.
type Tier interface {
	Name() ID
	Aggregate(ctx context.Context, region string, metric metrics.Metric) (*Result, error)
	AggregateBiomass(ctx context.Context, region string) (*BiomassResult, error)
}

// Resolver tries tiers in order.
type Resolver struct {
	tiers []Tier
}

// NewResolver builds a resolver over the given tiers, highest
// priority first.
func NewResolver(tiers ...Tier) *Resolver {
	return &Resolver{tiers: tiers}
}

// Aggregate resolves (region, metric) through the tier chain.
func (r *Resolver) Aggregate(ctx context.Context, region string, metric metrics.Metric) (*Result, error) {
	for _, t := range r.tiers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := safeAggregate(ctx, t, region, metric)
		if res != nil {
			res.SourceTier = t.Name()
			return res, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrAllTiersExhausted, region)
}

// AggregateBiomass resolves a biomass request through the tier chain.
func (r *Resolver) AggregateBiomass(ctx context.Context, region string) (*BiomassResult, error) {
	for _, t := range r.tiers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := safeAggregateBiomass(ctx, t, region)
		if res != nil {
			res.SourceTier = t.Name()
			return res, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrAllTiersExhausted, region)
}

// safeAggregate runs one tier with a panic guard. Any fault becomes
// "tier unavailable".
func safeAggregate(ctx context.Context, t Tier, region string, metric metrics.Metric) (res *Result) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[TierResolver] tier %s panicked for %q: %v", t.Name(), region, rec)
			res = nil
		}
	}()

	res, err := t.Aggregate(ctx, region, metric)
	if err != nil {
		log.Printf("[TierResolver] tier %s failed for %q: %v", t.Name(), region, err)
		return nil
	}
	return res
}

func safeAggregateBiomass(ctx context.Context, t Tier, region string) (res *BiomassResult) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[TierResolver] tier %s panicked for %q: %v", t.Name(), region, rec)
			res = nil
		}
	}()

	res, err := t.AggregateBiomass(ctx, region)
	if err != nil {
		log.Printf("[TierResolver] tier %s failed for %q: %v", t.Name(), region, err)
		return nil
	}
	return res
}

// resultFrom builds a Result from merged accumulators. A zero-count
// accumulator produces a valid no-data result.
func resultFrom(region string, metric metrics.Metric, acc *metrics.TileAccumulators) *Result {
	m := acc.Metric.Snapshot()
	r := acc.Richness.Snapshot()
	return &Result{
		Location:     region,
		Metric:       metric,
		Mean:         m.Mean,
		Std:          m.Std,
		Min:          m.Min,
		Max:          m.Max,
		PixelCount:   m.Count,
		RichnessMean: r.Mean,
		RichnessMax:  acc.RichnessMax,
		NoData:       m.Count == 0,
	}
}

// biomassFrom builds a BiomassResult from a merged accumulator.
func biomassFrom(region string, acc *stats.Accumulator) *BiomassResult {
	s := acc.Snapshot()
	areaHa := float64(s.Count) * metrics.PixelAreaHa
	return &BiomassResult{
		Location:       region,
		MeanMgHa:       s.Mean,
		StdMgHa:        s.Std,
		MinMgHa:        s.Min,
		MaxMgHa:        s.Max,
		PixelCount:     s.Count,
		TotalBiomassMg: s.Mean * areaHa,
		AreaHectares:   areaHa,
		AreaAcres:      areaHa * metrics.HaToAcres,
		NoData:         s.Count == 0,
	}
}
