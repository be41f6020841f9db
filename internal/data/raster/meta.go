// Package raster reads and writes chunked multi-band raster arrays.
// An array is laid out as a meta.json document plus zstd-compressed
// little-endian float32 chunks under c/<band>/<chunkRow>/<chunkCol>.
// A chunk absent from the store represents an all-fill-value chunk,
// so sparse arrays store nothing for empty areas.
package raster

import (
	"encoding/json"
	"fmt"
)

// ArrayMeta describes one chunked array.
type ArrayMeta struct {
	Bands       int     `json:"bands"`
	Height      int     `json:"height"`
	Width       int     `json:"width"`
	ChunkHeight int     `json:"chunk_height"`
	ChunkWidth  int     `json:"chunk_width"`
	DataType    string  `json:"data_type"`
	Codec       string  `json:"codec"`
	FillValue   float64 `json:"fill_value"`
	// PixelSizeM is the ground size of one pixel, informational.
	PixelSizeM float64 `json:"pixel_size_m,omitempty"`
	// BandCodes maps band index to the species code it carries.
	BandCodes []uint16 `json:"band_codes,omitempty"`
}

// Validate checks the metadata for internal consistency.
func (m *ArrayMeta) Validate() error {
	if m.Bands <= 0 || m.Height <= 0 || m.Width <= 0 {
		return fmt.Errorf("raster: invalid shape %dx%dx%d", m.Bands, m.Height, m.Width)
	}
	if m.ChunkHeight <= 0 || m.ChunkWidth <= 0 {
		return fmt.Errorf("raster: invalid chunk shape %dx%d", m.ChunkHeight, m.ChunkWidth)
	}
	if m.DataType != "float32" {
		return fmt.Errorf("raster: unsupported data_type %q", m.DataType)
	}
	if m.Codec != "zstd" && m.Codec != "" {
		return fmt.Errorf("raster: unsupported codec %q", m.Codec)
	}
	if len(m.BandCodes) != 0 && len(m.BandCodes) != m.Bands {
		return fmt.Errorf("raster: band_codes has %d entries for %d bands", len(m.BandCodes), m.Bands)
	}
	return nil
}

func parseMeta(data []byte) (*ArrayMeta, error) {
	var m ArrayMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse meta.json: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// chunkRows returns the number of chunk rows in the array.
func (m *ArrayMeta) chunkRows() int { return ceilDiv(m.Height, m.ChunkHeight) }

// chunkCols returns the number of chunk columns in the array.
func (m *ArrayMeta) chunkCols() int { return ceilDiv(m.Width, m.ChunkWidth) }

// chunkShapeAt returns the trimmed (height, width) of chunk (cr, cc),
// accounting for partial chunks on the bottom/right edges.
func (m *ArrayMeta) chunkShapeAt(cr, cc int) (int, int, error) {
	if cr < 0 || cr >= m.chunkRows() || cc < 0 || cc >= m.chunkCols() {
		return 0, 0, fmt.Errorf("raster: chunk (%d,%d) out of range %dx%d", cr, cc, m.chunkRows(), m.chunkCols())
	}
	h := min(m.ChunkHeight, m.Height-cr*m.ChunkHeight)
	w := min(m.ChunkWidth, m.Width-cc*m.ChunkWidth)
	return h, w, nil
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
