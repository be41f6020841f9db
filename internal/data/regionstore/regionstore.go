// Package regionstore provides read access to pre-built whole-region
// biomass arrays. Two on-disk formats are supported: the chunked
// layout the raster package reads, and dense TileDB arrays. TileDB
// support links a native library and is therefore compiled in only
// with "-tags tiledb"; without it the catalog still loads and TileDB
// entries report ErrUnsupported.
package regionstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/canopystats/server/internal/data/raster"
)

// ErrUnsupported indicates this binary was built without TileDB
// support.
var ErrUnsupported = errors.New("tiledb support is not enabled in this build (build with: go build -tags tiledb)")

// Format identifies the on-disk layout of one region entry.
const (
	FormatChunked = "chunked"
	FormatTileDB  = "tiledb"
)

// Entry describes one pre-built region array.
type Entry struct {
	Region string   `yaml:"region"`
	Path   string   `yaml:"path"`
	Format string   `yaml:"format"`
	// Shape, required for TileDB entries; chunked entries carry their
	// shape in meta.json.
	Bands     int      `yaml:"bands,omitempty"`
	Height    int      `yaml:"height,omitempty"`
	Width     int      `yaml:"width,omitempty"`
	BandCodes []uint16 `yaml:"band_codes,omitempty"`
}

// Catalog maps normalized region names to their stored arrays.
type Catalog struct {
	entries map[string]Entry
}

// NewCatalog builds a catalog from entries. Later duplicates win.
func NewCatalog(entries []Entry) (*Catalog, error) {
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		if e.Region == "" || e.Path == "" {
			return nil, fmt.Errorf("regionstore: entry missing region or path: %+v", e)
		}
		switch e.Format {
		case FormatChunked, "":
			e.Format = FormatChunked
		case FormatTileDB:
			if e.Bands <= 0 || e.Height <= 0 || e.Width <= 0 {
				return nil, fmt.Errorf("regionstore: tiledb entry %q needs bands/height/width", e.Region)
			}
		default:
			return nil, fmt.Errorf("regionstore: unknown format %q for %q", e.Format, e.Region)
		}
		m[normalize(e.Region)] = e
	}
	return &Catalog{entries: m}, nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(name, "_", " ")))
}

// Lookup returns the entry for a region name, if present.
func (c *Catalog) Lookup(region string) (Entry, bool) {
	e, ok := c.entries[normalize(region)]
	return e, ok
}

// Len returns the number of cataloged regions.
func (c *Catalog) Len() int { return len(c.entries) }

// OpenReader opens the stored array for region. The returned closer
// releases decoder or native resources and must be called. A missing
// region returns (nil, nil, nil): not an error, the region simply is
// not pre-built.
func (c *Catalog) OpenReader(ctx context.Context, region string) (raster.WindowReader, func(), error) {
	e, ok := c.Lookup(region)
	if !ok {
		return nil, nil, nil
	}

	switch e.Format {
	case FormatChunked:
		r, err := raster.OpenArray(ctx, raster.NewDirStore(e.Path), ".")
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open chunked array for %q: %w", e.Region, err)
		}
		return r, r.Close, nil
	case FormatTileDB:
		r, err := NewTileDBReader(e)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	default:
		return nil, nil, fmt.Errorf("regionstore: unknown format %q", e.Format)
	}
}
