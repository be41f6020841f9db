package region

import (
	"strings"

	"github.com/canopystats/server/internal/grid"
)

// fallbackBounds holds precomputed EPSG:5070 bounding boxes for a
// subset of US states, used when the geometry provider is unreachable
// or has no match. Values are approximate envelopes, generous enough
// that every tile covering the state is enumerated.
var fallbackBounds = map[string]grid.BBox{
	"north carolina": {MinX: 1090000, MinY: 1335000, MaxX: 1750000, MaxY: 1690000},
	"california":     {MinX: -2280000, MinY: 1200000, MaxX: -1640000, MaxY: 2450000},
	"texas":          {MinX: -1030000, MinY: 280000, MaxX: 180000, MaxY: 1310000},
	"colorado":       {MinX: -1090000, MinY: 1740000, MaxX: -510000, MaxY: 2210000},
	"oregon":         {MinX: -2290000, MinY: 2380000, MaxX: -1680000, MaxY: 2890000},
	"washington":     {MinX: -2130000, MinY: 2730000, MaxX: -1580000, MaxY: 3160000},
	"georgia":        {MinX: 870000, MinY: 950000, MaxX: 1420000, MaxY: 1420000},
	"florida":        {MinX: 780000, MinY: 290000, MaxX: 1600000, MaxY: 980000},
	"new york":       {MinX: 1310000, MinY: 2180000, MaxX: 1950000, MaxY: 2620000},
	"minnesota":      {MinX: -100000, MinY: 2240000, MaxX: 410000, MaxY: 2870000},
	"montana":        {MinX: -1460000, MinY: 2370000, MaxX: -610000, MaxY: 2920000},
	"arizona":        {MinX: -1620000, MinY: 1080000, MaxX: -1090000, MaxY: 1640000},
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(name, "_", " ")))
}

// lookupFallback returns the static bounds for name, if known.
func lookupFallback(name string) (grid.BBox, bool) {
	b, ok := fallbackBounds[normalizeName(name)]
	return b, ok
}
