// Package render produces quicklook images of per-pixel metric maps
// using fogleman/gg.
package render

import (
	"bytes"
	"context"
	"image/color"
	"image/png"
	"math"
	"sync"

	"github.com/fogleman/gg"

	"github.com/canopystats/server/internal/data/raster"
	"github.com/canopystats/server/internal/metrics"
	"github.com/canopystats/server/pkg/colormap"
)

// Config contains renderer configuration.
type Config struct {
	Colormap string // colormap name, viridis when empty
	MaxDim   int    // output cap per axis (default 1024)
}

// Quicklook renders a raster's per-pixel metric values to a PNG.
// Rasters larger than MaxDim on either axis are subsampled by a
// uniform stride so memory stays proportional to the output image.
type Quicklook struct {
	cfg        Config
	cmap       colormap.Colormap
	bufferPool sync.Pool
}

// NewQuicklook creates a new quicklook renderer.
func NewQuicklook(cfg Config) *Quicklook {
	if cfg.MaxDim <= 0 {
		cfg.MaxDim = 1024
	}
	return &Quicklook{
		cfg:  cfg,
		cmap: colormap.ByName(cfg.Colormap),
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 32*1024))
			},
		},
	}
}

// RenderMetric renders the metric over every forested pixel of r.
// Non-forest pixels are left white.
func (q *Quicklook) RenderMetric(ctx context.Context, r raster.WindowReader, metric metrics.Metric) ([]byte, error) {
	bands, height, width := r.Bands(), r.Height(), r.Width()

	stride := 1
	if m := max(height, width); m > q.cfg.MaxDim {
		stride = (m + q.cfg.MaxDim - 1) / q.cfg.MaxDim
	}
	outW := (width + stride - 1) / stride
	outH := (height + stride - 1) / stride

	dc := gg.NewContext(outW, outH)
	dc.SetColor(color.White)
	dc.Clear()

	scale := metricScale(metric, bands)
	pixel := make([]float64, bands)
	rows := make([][]float64, bands)

	for outY := 0; outY < outH; outY++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := outY * stride
		for b := 0; b < bands; b++ {
			win, err := r.ReadWindow(ctx, b, row, 0, 1, width)
			if err != nil {
				return nil, err
			}
			rows[b] = win
		}

		for outX := 0; outX < outW; outX++ {
			col := outX * stride
			for b := 0; b < bands; b++ {
				pixel[b] = rows[b][col]
			}
			value, ok := metrics.PixelValue(metric, pixel)
			if !ok {
				continue
			}
			dc.SetColor(q.cmap.At(value / scale))
			dc.SetPixel(outX, outY)
		}
	}

	return q.encodeContext(dc)
}

// metricScale is the upper bound used to normalize metric values into
// [0, 1] for coloring.
func metricScale(metric metrics.Metric, bands int) float64 {
	switch metric {
	case metrics.Shannon:
		if bands > 1 {
			return math.Log(float64(bands))
		}
		return 1
	case metrics.Richness:
		return float64(bands)
	default:
		return 1
	}
}

func (q *Quicklook) encodeContext(dc *gg.Context) ([]byte, error) {
	buf := q.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		q.bufferPool.Put(buf)
	}()

	// Use fast PNG encoder
	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, dc.Image()); err != nil {
		return nil, err
	}

	// Copy buffer contents (buffer will be reused)
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}
