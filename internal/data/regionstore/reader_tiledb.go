//go:build tiledb

package regionstore

import (
	"context"
	"fmt"
	"os"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

// TileDBReader reads windows from a dense 3-dimensional TileDB array
// with int64 dimensions (band, y, x) and a float32 "biomass"
// attribute.
type TileDBReader struct {
	entry Entry
	ctx   *tiledb.Context
	arr   *tiledb.Array
}

func NewTileDBReader(e Entry) (*TileDBReader, error) {
	if _, err := os.Stat(e.Path); err != nil {
		return nil, fmt.Errorf("tiledb array not found at %s: %w", e.Path, err)
	}

	tctx, err := tiledb.NewContext(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create TileDB context: %w", err)
	}
	arr, err := tiledb.NewArray(tctx, e.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open array (%s): %w", e.Path, err)
	}
	if err := arr.Open(tiledb.TILEDB_READ); err != nil {
		arr.Free()
		return nil, fmt.Errorf("failed to open array for read: %w", err)
	}

	return &TileDBReader{entry: e, ctx: tctx, arr: arr}, nil
}

// Supported reports whether TileDB reads work in this build.
func (r *TileDBReader) Supported() bool { return true }

func (r *TileDBReader) Bands() int  { return r.entry.Bands }
func (r *TileDBReader) Height() int { return r.entry.Height }
func (r *TileDBReader) Width() int  { return r.entry.Width }

func (r *TileDBReader) ReadWindow(ctx context.Context, band, row, col, height, width int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if band < 0 || band >= r.entry.Bands {
		return nil, fmt.Errorf("regionstore: band %d out of range %d", band, r.entry.Bands)
	}
	if row < 0 || col < 0 || height <= 0 || width <= 0 ||
		row+height > r.entry.Height || col+width > r.entry.Width {
		return nil, fmt.Errorf("regionstore: window (%d,%d %dx%d) outside array %dx%d",
			row, col, height, width, r.entry.Height, r.entry.Width)
	}

	sub, err := r.arr.NewSubarray()
	if err != nil {
		return nil, fmt.Errorf("failed to create subarray: %w", err)
	}
	defer sub.Free()

	if err := sub.AddRangeByName("band", tiledb.MakeRange[int64](int64(band), int64(band))); err != nil {
		return nil, fmt.Errorf("failed to add band range: %w", err)
	}
	if err := sub.AddRangeByName("y", tiledb.MakeRange[int64](int64(row), int64(row+height-1))); err != nil {
		return nil, fmt.Errorf("failed to add y range: %w", err)
	}
	if err := sub.AddRangeByName("x", tiledb.MakeRange[int64](int64(col), int64(col+width-1))); err != nil {
		return nil, fmt.Errorf("failed to add x range: %w", err)
	}

	q, err := tiledb.NewQuery(r.ctx, r.arr)
	if err != nil {
		return nil, fmt.Errorf("failed to create query: %w", err)
	}
	defer q.Free()

	if err := q.SetSubarray(sub); err != nil {
		return nil, fmt.Errorf("failed to set subarray: %w", err)
	}
	if err := q.SetLayout(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return nil, fmt.Errorf("failed to set layout: %w", err)
	}

	buf := make([]float32, height*width)
	if _, err := q.SetDataBuffer("biomass", buf); err != nil {
		return nil, fmt.Errorf("failed to set data buffer: %w", err)
	}

	if err := q.Submit(); err != nil {
		return nil, fmt.Errorf("query submit failed: %w", err)
	}
	status, err := q.Status()
	if err != nil {
		return nil, fmt.Errorf("query status failed: %w", err)
	}
	if status != tiledb.TILEDB_COMPLETED {
		return nil, fmt.Errorf("query did not complete: status %v (window too large for buffer)", status)
	}

	out := make([]float64, len(buf))
	for i, v := range buf {
		out[i] = float64(v)
	}
	return out, nil
}

// Close releases the array and context.
func (r *TileDBReader) Close() {
	if r.arr != nil {
		r.arr.Close()
		r.arr.Free()
	}
	if r.ctx != nil {
		r.ctx.Free()
	}
}
