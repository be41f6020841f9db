package metrics

import (
	"context"
	"math"

	"github.com/canopystats/server/internal/data/raster"
	"github.com/canopystats/server/internal/stats"
)

// TileAccumulators holds the per-tile running state for one metric
// request: the requested metric's accumulator, a richness
// accumulator, and the running richness maximum.
type TileAccumulators struct {
	Metric      stats.Accumulator
	Richness    stats.Accumulator
	RichnessMax uint32
}

// Merge folds other into t. Safe with an empty other.
func (t *TileAccumulators) Merge(other *TileAccumulators) {
	if other == nil {
		return
	}
	t.Metric.Merge(&other.Metric)
	t.Richness.Merge(&other.Richness)
	if other.RichnessMax > t.RichnessMax {
		t.RichnessMax = other.RichnessMax
	}
}

// Calculator walks a raster in fixed-size square spatial chunks so
// peak memory is bounded by chunk area times band count, independent
// of the raster's size.
type Calculator struct {
	chunkSize int
}

// DefaultChunkSize is the spatial chunk edge in pixels.
const DefaultChunkSize = 64

// NewCalculator returns a calculator with the given chunk edge;
// non-positive means DefaultChunkSize.
func NewCalculator(chunkSize int) *Calculator {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Calculator{chunkSize: chunkSize}
}

// Accumulate computes the requested diversity metric over every
// forested pixel of r and feeds acc. A pixel is forested when at
// least one band is positive; pixels with zero total biomass never
// enter the population. Cancellation is honored between chunks.
func (c *Calculator) Accumulate(ctx context.Context, r raster.WindowReader, metric Metric, acc *TileAccumulators) error {
	bands, height, width := r.Bands(), r.Height(), r.Width()

	metricVals := make([]float64, 0, c.chunkSize*c.chunkSize)
	richnessVals := make([]float64, 0, c.chunkSize*c.chunkSize)
	windows := make([][]float64, bands)

	for row := 0; row < height; row += c.chunkSize {
		for col := 0; col < width; col += c.chunkSize {
			if err := ctx.Err(); err != nil {
				return err
			}
			h := min(c.chunkSize, height-row)
			w := min(c.chunkSize, width-col)

			for b := 0; b < bands; b++ {
				win, err := r.ReadWindow(ctx, b, row, col, h, w)
				if err != nil {
					return err
				}
				windows[b] = win
			}

			metricVals = metricVals[:0]
			richnessVals = richnessVals[:0]
			for i := 0; i < h*w; i++ {
				var total float64
				richness := 0
				for b := 0; b < bands; b++ {
					v := windows[b][i]
					if v > 0 {
						total += v
						richness++
					}
				}
				if total <= 0 {
					continue
				}

				var value float64
				switch metric {
				case Shannon:
					for b := 0; b < bands; b++ {
						if v := windows[b][i]; v > 0 {
							p := v / total
							value -= p * math.Log(p)
						}
					}
				case Simpson:
					sum := 0.0
					for b := 0; b < bands; b++ {
						if v := windows[b][i]; v > 0 {
							p := v / total
							sum += p * p
						}
					}
					value = 1 - sum
				case Richness:
					value = float64(richness)
				}

				metricVals = append(metricVals, value)
				richnessVals = append(richnessVals, float64(richness))
				if uint32(richness) > acc.RichnessMax {
					acc.RichnessMax = uint32(richness)
				}
			}

			acc.Metric.Update(metricVals)
			acc.Richness.Update(richnessVals)
		}
	}
	return nil
}

// AccumulateBiomass feeds acc with the per-pixel total biomass
// (sum over bands) of every forested pixel.
func (c *Calculator) AccumulateBiomass(ctx context.Context, r raster.WindowReader, acc *stats.Accumulator) error {
	bands, height, width := r.Bands(), r.Height(), r.Width()

	vals := make([]float64, 0, c.chunkSize*c.chunkSize)
	windows := make([][]float64, bands)

	for row := 0; row < height; row += c.chunkSize {
		for col := 0; col < width; col += c.chunkSize {
			if err := ctx.Err(); err != nil {
				return err
			}
			h := min(c.chunkSize, height-row)
			w := min(c.chunkSize, width-col)

			for b := 0; b < bands; b++ {
				win, err := r.ReadWindow(ctx, b, row, col, h, w)
				if err != nil {
					return err
				}
				windows[b] = win
			}

			vals = vals[:0]
			for i := 0; i < h*w; i++ {
				var total float64
				for b := 0; b < bands; b++ {
					if v := windows[b][i]; v > 0 {
						total += v
					}
				}
				if total > 0 {
					vals = append(vals, total)
				}
			}
			acc.Update(vals)
		}
	}
	return nil
}

// BandTotal summarizes one band across a raster.
type BandTotal struct {
	Band       int
	TotalMgHa  float64
	PixelCount uint64
}

// SpeciesTotals computes, for every band, the total biomass and the
// count of pixels where the band is positive. Drives dominant-species
// reports.
func (c *Calculator) SpeciesTotals(ctx context.Context, r raster.WindowReader) ([]BandTotal, error) {
	bands, height, width := r.Bands(), r.Height(), r.Width()
	totals := make([]BandTotal, bands)
	for b := range totals {
		totals[b].Band = b
	}

	for row := 0; row < height; row += c.chunkSize {
		for col := 0; col < width; col += c.chunkSize {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			h := min(c.chunkSize, height-row)
			w := min(c.chunkSize, width-col)

			for b := 0; b < bands; b++ {
				win, err := r.ReadWindow(ctx, b, row, col, h, w)
				if err != nil {
					return nil, err
				}
				for _, v := range win {
					if v > 0 {
						totals[b].TotalMgHa += v
						totals[b].PixelCount++
					}
				}
			}
		}
	}
	return totals, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
