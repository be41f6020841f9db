// Package grid maps projected bounding boxes to fixed-size tile
// coordinates and identifiers. A Grid is immutable after construction
// and every derived value (tile id, tile bbox) is deterministic, so
// tile descriptors are never persisted, only recomputed.
package grid

import (
	"fmt"
)

// BBox is an axis-aligned bounding box in the grid's projected CRS,
// in meters. Min is inclusive, Max is exclusive for indexing purposes.
type BBox struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Intersects reports whether b and o overlap.
func (b BBox) Intersects(o BBox) bool {
	return b.MinX < o.MaxX && o.MinX < b.MaxX &&
		b.MinY < o.MaxY && o.MinY < b.MaxY
}

// Width returns MaxX - MinX.
func (b BBox) Width() float64 { return b.MaxX - b.MinX }

// Height returns MaxY - MinY.
func (b BBox) Height() float64 { return b.MaxY - b.MinY }

// Coord addresses a single tile by column and row.
type Coord struct {
	Col uint32
	Row uint32
}

// TileDescriptor bundles everything needed to locate and fetch one
// tile. Derived from (col, row); recomputable at any time.
type TileDescriptor struct {
	Col  uint32 `json:"col"`
	Row  uint32 `json:"row"`
	ID   string `json:"id"`
	BBox BBox   `json:"bbox"`
}

// Grid is a fixed partition of a projected extent into square tiles.
// Rows increase northward from the origin, columns eastward.
type Grid struct {
	originX   float64
	originY   float64
	tileSizeM float64
	cols      uint32
	rows      uint32
}

// New constructs a grid anchored at origin (the extent's lower-left
// corner) with cols x rows square tiles of tileSizeM meters.
func New(originX, originY, tileSizeM float64, cols, rows uint32) (*Grid, error) {
	if tileSizeM <= 0 {
		return nil, fmt.Errorf("grid: tile size must be positive, got %v", tileSizeM)
	}
	if cols == 0 || rows == 0 {
		return nil, fmt.Errorf("grid: dimensions must be positive, got %dx%d", cols, rows)
	}
	return &Grid{
		originX:   originX,
		originY:   originY,
		tileSizeM: tileSizeM,
		cols:      cols,
		rows:      rows,
	}, nil
}

// DefaultCONUS returns the standard continental-US deployment grid:
// EPSG:5070 Albers, 512-pixel tiles of 30 m pixels (15 360 m per
// tile), covering the CONUS extent.
func DefaultCONUS() *Grid {
	g, _ := New(-2356000, 270000, 15360, 304, 196)
	return g
}

// Cols returns the number of tile columns.
func (g *Grid) Cols() uint32 { return g.cols }

// Rows returns the number of tile rows.
func (g *Grid) Rows() uint32 { return g.rows }

// TileSizeM returns the tile edge length in meters.
func (g *Grid) TileSizeM() float64 { return g.tileSizeM }

// Extent returns the bounding box of the whole grid.
func (g *Grid) Extent() BBox {
	return BBox{
		MinX: g.originX,
		MinY: g.originY,
		MaxX: g.originX + float64(g.cols)*g.tileSizeM,
		MaxY: g.originY + float64(g.rows)*g.tileSizeM,
	}
}

// TileID returns the identifier for tile (col, row). Zero-padded so
// ids sort in coordinate order; injective over the grid's range.
func (g *Grid) TileID(col, row uint32) string {
	return fmt.Sprintf("tile_%04d_%04d", col, row)
}

// ParseTileID is the inverse of TileID. It rejects ids outside the
// grid's configured range.
func (g *Grid) ParseTileID(id string) (Coord, error) {
	var col, row uint32
	if _, err := fmt.Sscanf(id, "tile_%04d_%04d", &col, &row); err != nil {
		return Coord{}, fmt.Errorf("grid: malformed tile id %q: %w", id, err)
	}
	if col >= g.cols || row >= g.rows {
		return Coord{}, fmt.Errorf("grid: tile id %q out of range %dx%d", id, g.cols, g.rows)
	}
	return Coord{Col: col, Row: row}, nil
}

// TileBBox returns the projected bounds of tile (col, row).
func (g *Grid) TileBBox(col, row uint32) BBox {
	minX := g.originX + float64(col)*g.tileSizeM
	minY := g.originY + float64(row)*g.tileSizeM
	return BBox{MinX: minX, MinY: minY, MaxX: minX + g.tileSizeM, MaxY: minY + g.tileSizeM}
}

// Descriptor returns the full descriptor for tile (col, row).
func (g *Grid) Descriptor(col, row uint32) TileDescriptor {
	return TileDescriptor{
		Col:  col,
		Row:  row,
		ID:   g.TileID(col, row),
		BBox: g.TileBBox(col, row),
	}
}

// TilesIntersecting enumerates every tile whose bounds overlap b,
// clamped to the grid extent. Tiles are whole units: any overlap, no
// matter how small, includes the tile in full. Returns nil when b
// lies entirely outside the grid.
func (g *Grid) TilesIntersecting(b BBox) []Coord {
	ext := g.Extent()
	if !b.Intersects(ext) {
		return nil
	}

	minCol := int(floorDiv(b.MinX-g.originX, g.tileSizeM))
	minRow := int(floorDiv(b.MinY-g.originY, g.tileSizeM))
	maxCol := int(ceilDiv(b.MaxX-g.originX, g.tileSizeM)) - 1
	maxRow := int(ceilDiv(b.MaxY-g.originY, g.tileSizeM)) - 1

	minCol = clamp(minCol, 0, int(g.cols)-1)
	maxCol = clamp(maxCol, 0, int(g.cols)-1)
	minRow = clamp(minRow, 0, int(g.rows)-1)
	maxRow = clamp(maxRow, 0, int(g.rows)-1)

	out := make([]Coord, 0, (maxCol-minCol+1)*(maxRow-minRow+1))
	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			out = append(out, Coord{Col: uint32(col), Row: uint32(row)})
		}
	}
	return out
}

func floorDiv(x, size float64) float64 {
	q := x / size
	f := float64(int(q))
	if q < 0 && q != f {
		f--
	}
	return f
}

func ceilDiv(x, size float64) float64 {
	q := x / size
	f := float64(int(q))
	if q > 0 && q != f {
		f++
	}
	return f
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
