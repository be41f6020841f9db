//go:build !tiledb

package regionstore

import (
	"context"
	"fmt"
	"os"
)

// TileDBReader is a stub when built without "-tags tiledb".
type TileDBReader struct {
	entry Entry
}

// NewTileDBReader validates the array path so configuration problems
// surface early, but every read reports ErrUnsupported.
func NewTileDBReader(e Entry) (*TileDBReader, error) {
	if _, err := os.Stat(e.Path); err != nil {
		return nil, fmt.Errorf("tiledb array not found at %s: %w", e.Path, err)
	}
	return &TileDBReader{entry: e}, nil
}

// Supported reports whether TileDB reads work in this build.
func (r *TileDBReader) Supported() bool { return false }

func (r *TileDBReader) Bands() int  { return r.entry.Bands }
func (r *TileDBReader) Height() int { return r.entry.Height }
func (r *TileDBReader) Width() int  { return r.entry.Width }

func (r *TileDBReader) ReadWindow(ctx context.Context, band, row, col, height, width int) ([]float64, error) {
	return nil, ErrUnsupported
}

// Close releases nothing in the stub.
func (r *TileDBReader) Close() {}
