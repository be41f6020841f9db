package render

import (
	"bytes"
	"context"
	"image/png"
	"testing"

	"github.com/canopystats/server/internal/data/raster"
	"github.com/canopystats/server/internal/metrics"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func testTile() *raster.Tile {
	t := raster.NewTile(2, 8, 8)
	for row := 0; row < 8; row++ {
		for col := 0; col < 4; col++ {
			t.Set(0, row, col, 50)
			t.Set(1, row, col, 50)
		}
	}
	return t
}

func TestRenderMetricProducesPNG(t *testing.T) {
	q := NewQuicklook(Config{})
	data, err := q.RenderMetric(context.Background(), testTile(), metrics.Shannon)
	if err != nil {
		t.Fatalf("RenderMetric failed: %v", err)
	}
	if !bytes.HasPrefix(data, pngMagic) {
		t.Fatal("output is not a PNG")
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding output failed: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 8 || b.Dy() != 8 {
		t.Errorf("image is %dx%d, want 8x8", b.Dx(), b.Dy())
	}

	// left half is forested and gets a colormap color, right half
	// stays white
	r, g, bl, _ := img.At(1, 1).RGBA()
	if r == 0xffff && g == 0xffff && bl == 0xffff {
		t.Error("forested pixel rendered white")
	}
	r, g, bl, _ = img.At(6, 6).RGBA()
	if r != 0xffff || g != 0xffff || bl != 0xffff {
		t.Error("non-forest pixel is not white")
	}
}

func TestRenderMetricSubsamples(t *testing.T) {
	tile := raster.NewTile(1, 100, 40)
	for row := 0; row < 100; row++ {
		for col := 0; col < 40; col++ {
			tile.Set(0, row, col, 10)
		}
	}

	q := NewQuicklook(Config{MaxDim: 25, Colormap: "magma"})
	data, err := q.RenderMetric(context.Background(), tile, metrics.Richness)
	if err != nil {
		t.Fatalf("RenderMetric failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding output failed: %v", err)
	}
	b := img.Bounds()
	if b.Dy() != 25 || b.Dx() != 10 {
		t.Errorf("image is %dx%d, want 10x25", b.Dx(), b.Dy())
	}
}

func TestRenderMetricCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := NewQuicklook(Config{})
	if _, err := q.RenderMetric(ctx, testTile(), metrics.Simpson); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
