package raster

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"

	"github.com/klauspost/compress/zstd"
)

// WindowReader is the read interface the metric calculator consumes.
// ReadWindow returns a row-major height*width block of one band,
// converted to float64. Implemented by Reader (streaming) and Tile
// (in-memory).
type WindowReader interface {
	Bands() int
	Height() int
	Width() int
	ReadWindow(ctx context.Context, band, row, col, height, width int) ([]float64, error)
}

// Reader provides windowed access to one chunked array in an
// ObjectStore without materializing the whole array.
type Reader struct {
	store   ObjectStore
	prefix  string
	meta    *ArrayMeta
	decoder *zstd.Decoder
}

// OpenArray opens the array stored under prefix in store by reading
// its meta.json.
func OpenArray(ctx context.Context, store ObjectStore, prefix string) (*Reader, error) {
	data, err := store.Get(ctx, prefix+"/meta.json")
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/meta.json: %w", prefix, err)
	}
	meta, err := parseMeta(data)
	if err != nil {
		return nil, err
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &Reader{store: store, prefix: prefix, meta: meta, decoder: decoder}, nil
}

// Meta returns the array metadata.
func (r *Reader) Meta() *ArrayMeta { return r.meta }

// Bands returns the number of species bands.
func (r *Reader) Bands() int { return r.meta.Bands }

// Height returns the array height in pixels.
func (r *Reader) Height() int { return r.meta.Height }

// Width returns the array width in pixels.
func (r *Reader) Width() int { return r.meta.Width }

// Close releases the decoder.
func (r *Reader) Close() {
	if r.decoder != nil {
		r.decoder.Close()
	}
}

func (r *Reader) chunkKey(band, cr, cc int) string {
	return fmt.Sprintf("%s/c/%d/%d/%d", r.prefix, band, cr, cc)
}

// readChunk fetches, decompresses and decodes chunk (cr, cc) of one
// band. A chunk missing from the store decodes to the fill value.
func (r *Reader) readChunk(ctx context.Context, band, cr, cc int) ([]float32, error) {
	h, w, err := r.meta.chunkShapeAt(cr, cc)
	if err != nil {
		return nil, err
	}

	compressed, err := r.store.Get(ctx, r.chunkKey(band, cr, cc))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			out := make([]float32, h*w)
			if r.meta.FillValue != 0 {
				fill := float32(r.meta.FillValue)
				for i := range out {
					out[i] = fill
				}
			}
			return out, nil
		}
		return nil, err
	}

	raw, err := r.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress of chunk %d/%d/%d failed: %w", band, cr, cc, err)
	}
	if len(raw) < h*w*4 {
		return nil, fmt.Errorf("chunk %d/%d/%d too short: got %d bytes, expected %d", band, cr, cc, len(raw), h*w*4)
	}

	out := make([]float32, h*w)
	for i := range out {
		off := i * 4
		bits := uint32(raw[off]) |
			uint32(raw[off+1])<<8 |
			uint32(raw[off+2])<<16 |
			uint32(raw[off+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}

// ReadWindow reads a height*width window of one band starting at
// (row, col), clipped against nothing: the window must lie inside the
// array.
func (r *Reader) ReadWindow(ctx context.Context, band, row, col, height, width int) ([]float64, error) {
	m := r.meta
	if band < 0 || band >= m.Bands {
		return nil, fmt.Errorf("raster: band %d out of range %d", band, m.Bands)
	}
	if row < 0 || col < 0 || height <= 0 || width <= 0 || row+height > m.Height || col+width > m.Width {
		return nil, fmt.Errorf("raster: window (%d,%d %dx%d) outside array %dx%d", row, col, height, width, m.Height, m.Width)
	}

	out := make([]float64, height*width)

	crStart := row / m.ChunkHeight
	crEnd := (row + height - 1) / m.ChunkHeight
	ccStart := col / m.ChunkWidth
	ccEnd := (col + width - 1) / m.ChunkWidth

	for cr := crStart; cr <= crEnd; cr++ {
		for cc := ccStart; cc <= ccEnd; cc++ {
			chunk, err := r.readChunk(ctx, band, cr, cc)
			if err != nil {
				return nil, err
			}
			_, cw, _ := m.chunkShapeAt(cr, cc)

			chunkRow0 := cr * m.ChunkHeight
			chunkCol0 := cc * m.ChunkWidth
			r0 := max(row, chunkRow0)
			r1 := min(row+height, chunkRow0+m.ChunkHeight)
			if r1 > m.Height {
				r1 = m.Height
			}
			c0 := max(col, chunkCol0)
			c1 := min(col+width, chunkCol0+m.ChunkWidth)
			if c1 > m.Width {
				c1 = m.Width
			}

			for rr := r0; rr < r1; rr++ {
				srcOff := (rr-chunkRow0)*cw + (c0 - chunkCol0)
				dstOff := (rr-row)*width + (c0 - col)
				for i := 0; i < c1-c0; i++ {
					out[dstOff+i] = float64(chunk[srcOff+i])
				}
			}
		}
	}
	return out, nil
}

// ReadAll materializes the whole array as an in-memory Tile. Intended
// for grid tiles, which are sized to fit comfortably in memory.
func (r *Reader) ReadAll(ctx context.Context) (*Tile, error) {
	m := r.meta
	t := NewTile(m.Bands, m.Height, m.Width)
	t.BandCodes = append([]uint16(nil), m.BandCodes...)

	for band := 0; band < m.Bands; band++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for cr := 0; cr < m.chunkRows(); cr++ {
			for cc := 0; cc < m.chunkCols(); cc++ {
				chunk, err := r.readChunk(ctx, band, cr, cc)
				if err != nil {
					return nil, err
				}
				ch, cw, _ := m.chunkShapeAt(cr, cc)
				row0 := cr * m.ChunkHeight
				col0 := cc * m.ChunkWidth
				for rr := 0; rr < ch; rr++ {
					dst := t.rowSlice(band, row0+rr)
					copy(dst[col0:col0+cw], chunk[rr*cw:(rr+1)*cw])
				}
			}
		}
	}
	return t, nil
}
