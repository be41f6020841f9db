package raster

import (
	"context"
	"fmt"
)

// Tile is a fully-decoded multi-band raster held in memory, stored
// band-major as float32 to halve residency versus float64. Tiles are
// written once by their loader and shared read-only afterwards.
type Tile struct {
	bands  int
	height int
	width  int
	data   []float32

	// BandCodes maps band index to species code, when known.
	BandCodes []uint16
}

// NewTile allocates a zeroed tile of the given shape.
func NewTile(bands, height, width int) *Tile {
	return &Tile{
		bands:  bands,
		height: height,
		width:  width,
		data:   make([]float32, bands*height*width),
	}
}

// Bands returns the number of species bands.
func (t *Tile) Bands() int { return t.bands }

// Height returns the tile height in pixels.
func (t *Tile) Height() int { return t.height }

// Width returns the tile width in pixels.
func (t *Tile) Width() int { return t.width }

// At returns the value at (band, row, col). No bounds checking beyond
// the slice's own.
func (t *Tile) At(band, row, col int) float32 {
	return t.data[(band*t.height+row)*t.width+col]
}

// Set assigns the value at (band, row, col).
func (t *Tile) Set(band, row, col int, v float32) {
	t.data[(band*t.height+row)*t.width+col] = v
}

// rowSlice returns one row of one band as a mutable slice.
func (t *Tile) rowSlice(band, row int) []float32 {
	off := (band*t.height + row) * t.width
	return t.data[off : off+t.width]
}

// SizeBytes returns the in-memory footprint of the pixel data.
func (t *Tile) SizeBytes() int { return len(t.data) * 4 }

// ReadWindow implements WindowReader over the in-memory data.
func (t *Tile) ReadWindow(ctx context.Context, band, row, col, height, width int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if band < 0 || band >= t.bands {
		return nil, fmt.Errorf("raster: band %d out of range %d", band, t.bands)
	}
	if row < 0 || col < 0 || height <= 0 || width <= 0 || row+height > t.height || col+width > t.width {
		return nil, fmt.Errorf("raster: window (%d,%d %dx%d) outside tile %dx%d", row, col, height, width, t.height, t.width)
	}

	out := make([]float64, height*width)
	for rr := 0; rr < height; rr++ {
		src := t.rowSlice(band, row+rr)
		dst := out[rr*width : (rr+1)*width]
		for i := 0; i < width; i++ {
			dst[i] = float64(src[col+i])
		}
	}
	return out, nil
}
