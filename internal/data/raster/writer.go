package raster

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// WriteArray persists a tile as a chunked array under dir, producing
// meta.json plus zstd chunks. Chunks that contain only the fill value
// are skipped entirely; readers synthesize them on demand. Used by
// ingest tooling and tests.
func WriteArray(dir string, t *Tile, chunkHeight, chunkWidth int, meta ArrayMeta) error {
	meta.Bands = t.Bands()
	meta.Height = t.Height()
	meta.Width = t.Width()
	meta.ChunkHeight = chunkHeight
	meta.ChunkWidth = chunkWidth
	meta.DataType = "float32"
	meta.Codec = "zstd"
	if len(t.BandCodes) > 0 {
		meta.BandCodes = t.BandCodes
	}
	if err := meta.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create array dir: %w", err)
	}

	metaBytes, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode meta.json: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), metaBytes, 0o644); err != nil {
		return fmt.Errorf("failed to write meta.json: %w", err)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	defer encoder.Close()

	fill := float32(meta.FillValue)
	for band := 0; band < meta.Bands; band++ {
		for cr := 0; cr < meta.chunkRows(); cr++ {
			for cc := 0; cc < meta.chunkCols(); cc++ {
				ch, cw, _ := meta.chunkShapeAt(cr, cc)
				raw := make([]byte, ch*cw*4)
				allFill := true
				for rr := 0; rr < ch; rr++ {
					src := t.rowSlice(band, cr*chunkHeight+rr)
					for i := 0; i < cw; i++ {
						v := src[cc*chunkWidth+i]
						if v != fill {
							allFill = false
						}
						bits := math.Float32bits(v)
						off := (rr*cw + i) * 4
						raw[off] = byte(bits)
						raw[off+1] = byte(bits >> 8)
						raw[off+2] = byte(bits >> 16)
						raw[off+3] = byte(bits >> 24)
					}
				}
				if allFill {
					continue
				}

				chunkDir := filepath.Join(dir, "c", fmt.Sprint(band), fmt.Sprint(cr))
				if err := os.MkdirAll(chunkDir, 0o755); err != nil {
					return fmt.Errorf("failed to create chunk dir: %w", err)
				}
				compressed := encoder.EncodeAll(raw, nil)
				path := filepath.Join(chunkDir, fmt.Sprint(cc))
				if err := os.WriteFile(path, compressed, 0o644); err != nil {
					return fmt.Errorf("failed to write chunk %s: %w", path, err)
				}
			}
		}
	}
	return nil
}
