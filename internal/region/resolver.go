// Package region resolves human region names (states, counties,
// administrative areas) to bounding boxes in the tile grid's
// projected coordinate system. The primary path asks an external
// geometry provider and reprojects; a static table of precomputed
// bounds covers a known subset of regions when the provider cannot.
package region

import (
	"context"
	"log"

	"github.com/canopystats/server/internal/grid"
)

// Resolver turns region names into projected bounding boxes. A failed
// resolution is an expected outcome, reported via the ok flag rather
// than an error, so callers can fall through to other data tiers.
type Resolver struct {
	provider GeometryProvider
	proj     *Albers
}

// NewResolver builds a resolver over the given provider. provider may
// be nil, in which case only the static fallback table is consulted.
func NewResolver(provider GeometryProvider) *Resolver {
	return &Resolver{
		provider: provider,
		proj:     NewAlbersCONUS(),
	}
}

// Resolve returns the projected bounds for name. ok is false when
// neither the provider nor the fallback table knows the region;
// provider failures are logged and demoted to fallback lookups.
func (r *Resolver) Resolve(ctx context.Context, name string) (grid.BBox, bool) {
	if r.provider != nil {
		geo, err := r.provider.RegionBounds(ctx, name)
		if err != nil {
			log.Printf("[Region] provider lookup for %q failed: %v", name, err)
		} else if geo != nil {
			return r.proj.ProjectBounds(*geo), true
		}
	}

	if b, ok := lookupFallback(name); ok {
		log.Printf("[Region] using fallback bounds for %q", name)
		return b, true
	}
	return grid.BBox{}, false
}
