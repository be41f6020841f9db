// Package service is the application-facing surface: region metric
// and biomass aggregation, dominant-species reports and region
// comparison, with result caching in front of the tier resolver.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"

	"github.com/canopystats/server/internal/cache"
	"github.com/canopystats/server/internal/data/raster"
	"github.com/canopystats/server/internal/data/regionstore"
	"github.com/canopystats/server/internal/metrics"
	"github.com/canopystats/server/internal/species"
	"github.com/canopystats/server/internal/tier"
)

// Aggregator resolves aggregation requests. Satisfied by
// tier.Resolver.
type Aggregator interface {
	Aggregate(ctx context.Context, region string, metric metrics.Metric) (*tier.Result, error)
	AggregateBiomass(ctx context.Context, region string) (*tier.BiomassResult, error)
}

// RegionOpener yields a windowed reader over one region's array plus
// its band species codes. (nil, nil, nil, nil) means the opener has
// no data for the region.
type RegionOpener interface {
	OpenRegion(ctx context.Context, region string) (raster.WindowReader, []uint16, func(), error)
}

// Service wires the resolver, caches and species labeling into the
// operations callers use.
type Service struct {
	resolver Aggregator
	cache    *cache.Manager
	calc     *metrics.Calculator
	openers  []RegionOpener
}

// New builds a service. cacheMgr may be nil to disable result
// caching; openers back the dominant-species report.
func New(resolver Aggregator, cacheMgr *cache.Manager, calc *metrics.Calculator, openers ...RegionOpener) *Service {
	if calc == nil {
		calc = metrics.NewCalculator(0)
	}
	return &Service{resolver: resolver, cache: cacheMgr, calc: calc, openers: openers}
}

// AggregateRegionMetric computes a diversity metric for a region.
// Full-coverage results are cached; partial results are always
// recomputed so a transient tile failure does not stick.
func (s *Service) AggregateRegionMetric(ctx context.Context, region string, metric metrics.Metric) (*tier.Result, error) {
	key := cache.ResultKey(region, metric.String())
	if s.cache != nil {
		if data, ok := s.cache.GetResult(key); ok {
			var res tier.Result
			if err := json.Unmarshal(data, &res); err == nil {
				return &res, nil
			}
			log.Printf("[Service] dropping corrupt cached result for %s", key)
		}
	}

	res, err := s.resolver.Aggregate(ctx, region, metric)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && res.TilesFailed == 0 {
		if data, err := json.Marshal(res); err == nil {
			s.cache.SetResult(key, data)
		}
	}
	return res, nil
}

// AggregateRegionBiomass computes total-biomass statistics for a
// region.
func (s *Service) AggregateRegionBiomass(ctx context.Context, region string) (*tier.BiomassResult, error) {
	key := cache.ResultKey(region, "biomass")
	if s.cache != nil {
		if data, ok := s.cache.GetResult(key); ok {
			var res tier.BiomassResult
			if err := json.Unmarshal(data, &res); err == nil {
				return &res, nil
			}
			log.Printf("[Service] dropping corrupt cached result for %s", key)
		}
	}

	res, err := s.resolver.AggregateBiomass(ctx, region)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && res.TilesFailed == 0 {
		if data, err := json.Marshal(res); err == nil {
			s.cache.SetResult(key, data)
		}
	}
	return res, nil
}

// SpeciesBiomass is one row of a dominant-species report.
type SpeciesBiomass struct {
	Code           uint16  `json:"spcd"`
	CommonName     string  `json:"common_name"`
	TotalBiomassMg float64 `json:"total_biomass_mg"`
	PixelCount     uint64  `json:"pixel_count"`
	Share          float64 `json:"share"`
}

// DominantSpecies returns the topN species by total biomass in a
// region, labeled through the species catalog. Share is each species'
// fraction of the region's summed biomass.
func (s *Service) DominantSpecies(ctx context.Context, region string, topN int) ([]SpeciesBiomass, error) {
	if topN <= 0 {
		topN = 5
	}

	for _, opener := range s.openers {
		r, codes, closer, err := opener.OpenRegion(ctx, region)
		if err != nil {
			log.Printf("[Service] opening %q for species report failed: %v", region, err)
			continue
		}
		if r == nil {
			continue
		}
		report, err := s.speciesReport(ctx, r, codes, topN)
		closer()
		if err != nil {
			return nil, err
		}
		return report, nil
	}
	return nil, fmt.Errorf("%w: %s", tier.ErrAllTiersExhausted, region)
}

func (s *Service) speciesReport(ctx context.Context, r raster.WindowReader, codes []uint16, topN int) ([]SpeciesBiomass, error) {
	totals, err := s.calc.SpeciesTotals(ctx, r)
	if err != nil {
		return nil, err
	}

	var grand float64
	for _, bt := range totals {
		grand += bt.TotalMgHa
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].TotalMgHa > totals[j].TotalMgHa })
	if topN < len(totals) {
		totals = totals[:topN]
	}

	out := make([]SpeciesBiomass, 0, len(totals))
	for _, bt := range totals {
		code := uint16(bt.Band)
		if bt.Band < len(codes) {
			code = codes[bt.Band]
		}
		row := SpeciesBiomass{
			Code:           code,
			CommonName:     species.Label(code),
			TotalBiomassMg: bt.TotalMgHa,
			PixelCount:     bt.PixelCount,
		}
		if grand > 0 {
			row.Share = bt.TotalMgHa / grand
		}
		out = append(out, row)
	}
	return out, nil
}

// Comparison reports how two regions differ on one metric.
type Comparison struct {
	Metric            metrics.Metric `json:"metric"`
	First             *tier.Result   `json:"first"`
	Second            *tier.Result   `json:"second"`
	Difference        float64        `json:"difference"`
	PercentDifference float64        `json:"percent_difference"`
	Higher            string         `json:"higher"`
}

// CompareRegions aggregates both regions and reports the difference
// of their means (first minus second).
func (s *Service) CompareRegions(ctx context.Context, first, second string, metric metrics.Metric) (*Comparison, error) {
	r1, err := s.AggregateRegionMetric(ctx, first, metric)
	if err != nil {
		return nil, fmt.Errorf("aggregating %q: %w", first, err)
	}
	r2, err := s.AggregateRegionMetric(ctx, second, metric)
	if err != nil {
		return nil, fmt.Errorf("aggregating %q: %w", second, err)
	}

	c := &Comparison{
		Metric:     metric,
		First:      r1,
		Second:     r2,
		Difference: r1.Mean - r2.Mean,
		Higher:     first,
	}
	if r2.Mean > r1.Mean {
		c.Higher = second
	}
	if r2.Mean != 0 {
		c.PercentDifference = c.Difference / r2.Mean * 100
	}
	return c, nil
}

// CatalogOpener adapts a region-store catalog to RegionOpener.
type CatalogOpener struct {
	Catalog *regionstore.Catalog
}

func (o CatalogOpener) OpenRegion(ctx context.Context, region string) (raster.WindowReader, []uint16, func(), error) {
	entry, ok := o.Catalog.Lookup(region)
	if !ok {
		return nil, nil, nil, nil
	}
	r, closer, err := o.Catalog.OpenReader(ctx, region)
	if err != nil || r == nil {
		return nil, nil, nil, err
	}
	codes := entry.BandCodes
	if len(codes) == 0 {
		if cr, ok := r.(interface{ Meta() *raster.ArrayMeta }); ok {
			codes = cr.Meta().BandCodes
		}
	}
	return r, codes, closer, nil
}

// RemoteOpener adapts an on-demand object store to RegionOpener.
type RemoteOpener struct {
	Store  raster.ObjectStore
	Prefix string
}

func (o RemoteOpener) OpenRegion(ctx context.Context, region string) (raster.WindowReader, []uint16, func(), error) {
	prefix := o.Prefix
	if prefix == "" {
		prefix = "regions"
	}
	r, err := raster.OpenArray(ctx, o.Store, prefix+"/"+tier.RegionSlug(region))
	if err != nil {
		return nil, nil, nil, err
	}
	return r, r.Meta().BandCodes, r.Close, nil
}
