// Package main is the entry point for the canopy statistics tool.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/canopystats/server/internal/cache"
	"github.com/canopystats/server/internal/config"
	"github.com/canopystats/server/internal/data/raster"
	"github.com/canopystats/server/internal/data/regionstore"
	"github.com/canopystats/server/internal/grid"
	"github.com/canopystats/server/internal/jobs"
	"github.com/canopystats/server/internal/jobs/jobstore"
	"github.com/canopystats/server/internal/metrics"
	"github.com/canopystats/server/internal/region"
	"github.com/canopystats/server/internal/render"
	"github.com/canopystats/server/internal/service"
	"github.com/canopystats/server/internal/store"
	"github.com/canopystats/server/internal/tier"
)

func main() {
	configPath := flag.String("config", "config/server.yaml", "Path to configuration file")
	regionName := flag.String("region", "", "Region name to aggregate")
	metricName := flag.String("metric", "shannon", "Diversity metric: shannon, simpson or richness")
	biomass := flag.Bool("biomass", false, "Compute biomass statistics instead of a diversity metric")
	topSpecies := flag.Int("top-species", 0, "Report the top N species by biomass")
	compareWith := flag.String("compare", "", "Second region to compare against")
	quicklookPath := flag.String("quicklook", "", "Write a PNG quicklook of the region's metric to this path")
	async := flag.Bool("async", false, "Run the aggregation as a persisted job")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *regionName == "" {
		log.Fatalf("A -region is required")
	}

	metric, err := metrics.ParseMetric(*metricName)
	if err != nil {
		log.Fatalf("Invalid metric: %v", err)
	}

	cacheManager, err := cache.NewManager(cache.Config{
		ChunkCacheSizeMB:   cfg.Cache.ChunkSizeMB,
		ChunkTTL:           time.Duration(cfg.Cache.ChunkTTLMinutes) * time.Minute,
		TileCacheEntries:   cfg.Cache.TileEntries,
		ResultCacheEntries: cfg.Cache.ResultEntries,
	})
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	defer cacheManager.Close()

	gridStore := raster.NewCachedStore(objectStore(cfg.Tiles.GridURL, cfg.Tiles.GridDir), cacheManager.Chunks())
	onDemandStore := raster.NewCachedStore(objectStore(cfg.Tiles.OnDemandURL, cfg.Tiles.OnDemandDir), cacheManager.Chunks())

	calc := metrics.NewCalculator(cfg.Compute.ChunkSize)
	fetchTimeout := time.Duration(cfg.Compute.FetchTimeoutSeconds) * time.Second

	tiles := store.New(store.NewGridFetcher(gridStore, cfg.Tiles.GridPrefix), cacheManager, fetchTimeout)
	bounds := region.NewResolver(region.NewOverpassProvider(
		cfg.Regions.OverpassEndpoint,
		time.Duration(cfg.Regions.OverpassTimeoutSeconds)*time.Second,
	))

	catalog, err := regionstore.NewCatalog(cfg.Regions.Catalog)
	if err != nil {
		log.Fatalf("Invalid region catalog: %v", err)
	}

	resolver := tier.NewResolver(buildTiers(cfg, bounds, tiles, onDemandStore, catalog, calc)...)

	openers := []service.RegionOpener{
		service.CatalogOpener{Catalog: catalog},
		service.RemoteOpener{Store: onDemandStore, Prefix: cfg.Tiles.OnDemandPrefix},
	}
	svc := service.New(resolver, cacheManager, calc, openers...)

	// Cancel on interrupt so partial work is abandoned cleanly
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Println("Interrupted, cancelling...")
		cancel()
	}()

	if *quicklookPath != "" {
		if err := writeQuicklook(ctx, cfg, openers, *regionName, metric, *quicklookPath); err != nil {
			log.Fatalf("Quicklook failed: %v", err)
		}
		log.Printf("Wrote quicklook for %q to %s", *regionName, *quicklookPath)
		return
	}

	params := jobstore.JobParams{
		Kind:         jobstore.JobKindMetric,
		Region:       *regionName,
		Metric:       metric.String(),
		SecondRegion: *compareWith,
		TopN:         *topSpecies,
	}
	switch {
	case *compareWith != "":
		params.Kind = jobstore.JobKindCompare
	case *topSpecies > 0:
		params.Kind = jobstore.JobKindSpecies
	case *biomass:
		params.Kind = jobstore.JobKindBiomass
	}

	if *async {
		runJob(ctx, cfg, svc, params)
		return
	}

	out, err := runDirect(ctx, svc, params)
	if err != nil {
		log.Fatalf("Aggregation failed: %v", err)
	}
	printJSON(out)
}

// buildTiers assembles the fallback chain in priority order: the
// pre-built region store first (one array read), then the continental
// grid, then on-demand streaming as the last resort.
func buildTiers(cfg *config.Config, bounds tier.BoundsResolver, tiles *store.TileStore, onDemandStore raster.ObjectStore, catalog *regionstore.Catalog, calc *metrics.Calculator) []tier.Tier {
	return []tier.Tier{
		tier.NewRegionStoreTier(catalog, calc),
		tier.NewGridTier(grid.DefaultCONUS(), bounds, tiles, calc, cfg.Compute.FetchConcurrency),
		tier.NewOnDemandTier(onDemandStore, cfg.Tiles.OnDemandPrefix, calc),
	}
}

// objectStore picks HTTP or local directory access. URL wins when
// both are configured.
func objectStore(url, dir string) raster.ObjectStore {
	if url != "" {
		return raster.NewHTTPStore(url, nil)
	}
	return raster.NewDirStore(dir)
}

func runDirect(ctx context.Context, svc *service.Service, params jobstore.JobParams) (any, error) {
	metric, err := metrics.ParseMetric(params.Metric)
	if err != nil {
		return nil, err
	}
	switch params.Kind {
	case jobstore.JobKindBiomass:
		return svc.AggregateRegionBiomass(ctx, params.Region)
	case jobstore.JobKindSpecies:
		return svc.DominantSpecies(ctx, params.Region, params.TopN)
	case jobstore.JobKindCompare:
		return svc.CompareRegions(ctx, params.Region, params.SecondRegion, metric)
	default:
		return svc.AggregateRegionMetric(ctx, params.Region, metric)
	}
}

func runJob(ctx context.Context, cfg *config.Config, svc *service.Service, params jobstore.JobParams) {
	manager, err := jobs.NewManager(jobs.ManagerConfig{
		MaxConcurrent: cfg.Jobs.MaxConcurrent,
		SQLitePath:    cfg.Jobs.SQLitePath,
		RetentionDays: cfg.Jobs.RetentionDays,
	})
	if err != nil {
		log.Fatalf("Failed to initialize job manager: %v", err)
	}
	manager.Executor = jobs.ServiceExecutor(svc)
	manager.Start()
	defer manager.Stop()

	job, err := manager.Submit(params)
	if err != nil {
		log.Fatalf("Failed to submit job: %v", err)
	}
	log.Printf("Submitted job %s (%s on %q)", job.ID, job.Params.Kind, job.Params.Region)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	done := ctx.Done()
	for {
		select {
		case <-done:
			// cancel once, then keep polling on the ticker until the
			// job reaches a terminal state
			manager.Cancel(job.ID)
			done = nil
			continue
		case <-ticker.C:
		}

		current := manager.Get(job.ID)
		if current == nil {
			log.Fatalf("Job %s disappeared", job.ID)
		}
		switch current.Status {
		case jobstore.JobStatusCompleted:
			printJSON(current)
			return
		case jobstore.JobStatusFailed, jobstore.JobStatusCancelled:
			log.Fatalf("Job %s %s: %s", current.ID, current.Status, current.Error)
		}
	}
}

func writeQuicklook(ctx context.Context, cfg *config.Config, openers []service.RegionOpener, regionName string, metric metrics.Metric, path string) error {
	quicklook := render.NewQuicklook(render.Config{
		Colormap: cfg.Render.Colormap,
		MaxDim:   cfg.Render.MaxDim,
	})
	for _, opener := range openers {
		r, _, closer, err := opener.OpenRegion(ctx, regionName)
		if err != nil || r == nil {
			continue
		}
		data, err := quicklook.RenderMetric(ctx, r, metric)
		closer()
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0644)
	}
	return fmt.Errorf("no stored array found for region %q", regionName)
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
	fmt.Println(string(data))
}
