package metrics

import (
	"context"
	"math"
	"testing"

	"github.com/canopystats/server/internal/data/raster"
	"github.com/canopystats/server/internal/stats"
)

func TestParseMetric(t *testing.T) {
	cases := map[string]Metric{
		"shannon":  Shannon,
		"Simpson":  Simpson,
		"RICHNESS": Richness,
		" shannon": Shannon,
	}
	for in, want := range cases {
		got, err := ParseMetric(in)
		if err != nil {
			t.Errorf("ParseMetric(%q) failed: %v", in, err)
		} else if got != want {
			t.Errorf("ParseMetric(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseMetric("entropy"); err == nil {
		t.Error("expected error for unknown metric")
	}
}

// uniformTile builds a tile where every pixel has the given per-band
// biomass values.
func uniformTile(height, width int, perBand []float32) *raster.Tile {
	tile := raster.NewTile(len(perBand), height, width)
	for b, v := range perBand {
		if v == 0 {
			continue
		}
		for row := 0; row < height; row++ {
			for col := 0; col < width; col++ {
				tile.Set(b, row, col, v)
			}
		}
	}
	return tile
}

func TestFiveEqualSpecies(t *testing.T) {
	// every pixel: 5 species at biomass 100 each
	tile := uniformTile(10, 10, []float32{100, 100, 100, 100, 100})
	calc := NewCalculator(4)

	for _, tc := range []struct {
		metric Metric
		want   float64
	}{
		{Shannon, math.Log(5)},
		{Simpson, 0.8},
		{Richness, 5},
	} {
		var acc TileAccumulators
		if err := calc.Accumulate(context.Background(), tile, tc.metric, &acc); err != nil {
			t.Fatalf("%v: Accumulate failed: %v", tc.metric, err)
		}
		s := acc.Metric.Snapshot()
		if s.Count != 100 {
			t.Errorf("%v: count = %d, want 100", tc.metric, s.Count)
		}
		if math.Abs(s.Mean-tc.want) > 1e-9 {
			t.Errorf("%v: mean = %v, want %v", tc.metric, s.Mean, tc.want)
		}
		if s.Std > 1e-9 {
			t.Errorf("%v: std = %v, want 0 for uniform data", tc.metric, s.Std)
		}
		if acc.RichnessMax != 5 {
			t.Errorf("%v: richness max = %d, want 5", tc.metric, acc.RichnessMax)
		}
	}
}

func TestAllZeroPixelsExcluded(t *testing.T) {
	tile := raster.NewTile(3, 8, 8)
	// only one forested pixel
	tile.Set(0, 2, 3, 50)
	tile.Set(1, 2, 3, 50)

	var acc TileAccumulators
	calc := NewCalculator(0)
	if err := calc.Accumulate(context.Background(), tile, Shannon, &acc); err != nil {
		t.Fatalf("Accumulate failed: %v", err)
	}
	s := acc.Metric.Snapshot()
	if s.Count != 1 {
		t.Fatalf("count = %d, want 1 (zero-biomass pixels excluded)", s.Count)
	}
	if math.Abs(s.Mean-math.Log(2)) > 1e-9 {
		t.Errorf("mean = %v, want ln 2", s.Mean)
	}
	if acc.Richness.Snapshot().Mean != 2 {
		t.Errorf("richness mean = %v, want 2", acc.Richness.Snapshot().Mean)
	}
}

func TestEmptyTileIsNoData(t *testing.T) {
	tile := raster.NewTile(4, 16, 16)
	var acc TileAccumulators
	if err := NewCalculator(8).Accumulate(context.Background(), tile, Simpson, &acc); err != nil {
		t.Fatalf("Accumulate failed: %v", err)
	}
	if acc.Metric.Count() != 0 || acc.RichnessMax != 0 {
		t.Errorf("expected empty accumulators, got count=%d max=%d", acc.Metric.Count(), acc.RichnessMax)
	}
}

func TestChunkedMatchesWhole(t *testing.T) {
	// varied data: ensure chunk partitioning does not change results
	tile := raster.NewTile(3, 50, 37)
	for b := 0; b < 3; b++ {
		for row := 0; row < 50; row++ {
			for col := 0; col < 37; col++ {
				if (row+col+b)%4 == 0 {
					tile.Set(b, row, col, float32(1+b*10+row+col))
				}
			}
		}
	}

	var whole, chunked TileAccumulators
	if err := NewCalculator(1024).Accumulate(context.Background(), tile, Shannon, &whole); err != nil {
		t.Fatalf("whole Accumulate failed: %v", err)
	}
	if err := NewCalculator(7).Accumulate(context.Background(), tile, Shannon, &chunked); err != nil {
		t.Fatalf("chunked Accumulate failed: %v", err)
	}

	sw, sc := whole.Metric.Snapshot(), chunked.Metric.Snapshot()
	if sw.Count != sc.Count {
		t.Fatalf("counts differ: %d vs %d", sw.Count, sc.Count)
	}
	if math.Abs(sw.Mean-sc.Mean) > 1e-9 || math.Abs(sw.Std-sc.Std) > 1e-9 {
		t.Errorf("chunked stats differ: %+v vs %+v", sw, sc)
	}
	if whole.RichnessMax != chunked.RichnessMax {
		t.Errorf("richness max differs: %d vs %d", whole.RichnessMax, chunked.RichnessMax)
	}
}

func TestAccumulateCancellation(t *testing.T) {
	tile := raster.NewTile(2, 256, 256)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var acc TileAccumulators
	if err := NewCalculator(16).Accumulate(ctx, tile, Shannon, &acc); err == nil {
		t.Error("expected cancellation error")
	}
}

func TestAccumulateBiomass(t *testing.T) {
	tile := uniformTile(5, 5, []float32{30, 20, 0})
	var acc stats.Accumulator
	if err := NewCalculator(3).AccumulateBiomass(context.Background(), tile, &acc); err != nil {
		t.Fatalf("AccumulateBiomass failed: %v", err)
	}
	s := acc.Snapshot()
	if s.Count != 25 {
		t.Errorf("count = %d, want 25", s.Count)
	}
	if s.Mean != 50 || s.Min != 50 || s.Max != 50 {
		t.Errorf("snapshot = %+v, want mean/min/max 50", s)
	}
}

func TestSpeciesTotals(t *testing.T) {
	tile := raster.NewTile(3, 4, 4)
	// band 0: 2 pixels of 10; band 2: full coverage of 5; band 1 empty
	tile.Set(0, 0, 0, 10)
	tile.Set(0, 3, 3, 10)
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			tile.Set(2, row, col, 5)
		}
	}

	totals, err := NewCalculator(2).SpeciesTotals(context.Background(), tile)
	if err != nil {
		t.Fatalf("SpeciesTotals failed: %v", err)
	}
	if totals[0].TotalMgHa != 20 || totals[0].PixelCount != 2 {
		t.Errorf("band 0 = %+v", totals[0])
	}
	if totals[1].TotalMgHa != 0 || totals[1].PixelCount != 0 {
		t.Errorf("band 1 = %+v", totals[1])
	}
	if totals[2].TotalMgHa != 80 || totals[2].PixelCount != 16 {
		t.Errorf("band 2 = %+v", totals[2])
	}
}

func TestTileAccumulatorsMerge(t *testing.T) {
	var a, b TileAccumulators
	a.Metric.Update([]float64{1, 2})
	a.RichnessMax = 3
	b.Metric.Update([]float64{3})
	b.RichnessMax = 7

	a.Merge(&b)
	if a.Metric.Count() != 3 {
		t.Errorf("count = %d, want 3", a.Metric.Count())
	}
	if a.RichnessMax != 7 {
		t.Errorf("richness max = %d, want 7", a.RichnessMax)
	}
	a.Merge(nil) // no-op
}
