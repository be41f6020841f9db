package stats

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"gonum.org/v1/gonum/stat"
)

func almostEqual(a, b, tol float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	if scale == 0 {
		return math.Abs(a-b) < tol
	}
	return math.Abs(a-b)/scale < tol
}

func TestEmptyAccumulator(t *testing.T) {
	var a Accumulator
	s := a.Snapshot()
	if s.Count != 0 || s.Mean != 0 || s.Std != 0 || s.Min != 0 || s.Max != 0 {
		t.Errorf("empty accumulator snapshot = %+v, want all zeros", s)
	}
}

func TestSingleValue(t *testing.T) {
	var a Accumulator
	a.Add(5.0)
	s := a.Snapshot()
	if s.Count != 1 {
		t.Errorf("count = %d, want 1", s.Count)
	}
	if s.Mean != 5.0 || s.Min != 5.0 || s.Max != 5.0 {
		t.Errorf("snapshot = %+v, want mean/min/max 5.0", s)
	}
	if s.Std != 0 {
		t.Errorf("std = %v, want 0", s.Std)
	}
}

func TestBatchMatchesIncremental(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	values := make([]float64, 1000)
	for i := range values {
		values[i] = rng.NormFloat64()*10 + 50
	}

	var batch Accumulator
	batch.Update(values)

	var incr Accumulator
	for _, v := range values {
		incr.Add(v)
	}

	sb, si := batch.Snapshot(), incr.Snapshot()
	if sb.Count != si.Count {
		t.Fatalf("counts differ: %d vs %d", sb.Count, si.Count)
	}
	if !almostEqual(sb.Mean, si.Mean, 1e-10) {
		t.Errorf("mean differs: %v vs %v", sb.Mean, si.Mean)
	}
	if !almostEqual(sb.Std, si.Std, 1e-10) {
		t.Errorf("std differs: %v vs %v", sb.Std, si.Std)
	}
}

func TestAgainstGonum(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	values := make([]float64, 5000)
	for i := range values {
		values[i] = rng.Float64() * 200
	}

	var a Accumulator
	a.Update(values)

	wantMean := stat.Mean(values, nil)
	// stat.Variance is the sample variance; convert to population.
	n := float64(len(values))
	wantVar := stat.Variance(values, nil) * (n - 1) / n

	if !almostEqual(a.Mean(), wantMean, 1e-10) {
		t.Errorf("mean = %v, want %v", a.Mean(), wantMean)
	}
	if !almostEqual(a.Variance(), wantVar, 1e-9) {
		t.Errorf("variance = %v, want %v", a.Variance(), wantVar)
	}
}

func TestMergeMatchesSinglePass(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	values := make([]float64, 2400)
	for i := range values {
		values[i] = rng.NormFloat64() * 100
	}

	var whole Accumulator
	whole.Update(values)
	want := whole.Snapshot()

	for _, parts := range []int{1, 2, 3, 7, 50} {
		var merged Accumulator
		size := (len(values) + parts - 1) / parts
		for start := 0; start < len(values); start += size {
			end := start + size
			if end > len(values) {
				end = len(values)
			}
			var p Accumulator
			p.Update(values[start:end])
			merged.Merge(&p)
		}
		got := merged.Snapshot()
		if got.Count != want.Count {
			t.Fatalf("parts=%d: count = %d, want %d", parts, got.Count, want.Count)
		}
		if !almostEqual(got.Mean, want.Mean, 1e-9) {
			t.Errorf("parts=%d: mean = %v, want %v", parts, got.Mean, want.Mean)
		}
		if !almostEqual(got.Std, want.Std, 1e-9) {
			t.Errorf("parts=%d: std = %v, want %v", parts, got.Std, want.Std)
		}
		if got.Min != want.Min || got.Max != want.Max {
			t.Errorf("parts=%d: min/max = %v/%v, want %v/%v", parts, got.Min, got.Max, want.Min, want.Max)
		}
	}
}

func TestMergeRandomPartitions(t *testing.T) {
	rng := rand.New(rand.NewSource(4242))
	values := make([]float64, 2000)
	for i := range values {
		values[i] = rng.NormFloat64()*50 + 10
	}

	var whole Accumulator
	whole.Update(values)
	want := whole.Snapshot()

	for k := 1; k <= 50; k++ {
		// k segments with random cut points; duplicate cuts yield
		// empty segments, which must also merge cleanly
		cuts := make([]int, 0, k+1)
		cuts = append(cuts, 0)
		for i := 0; i < k-1; i++ {
			cuts = append(cuts, rng.Intn(len(values)+1))
		}
		cuts = append(cuts, len(values))
		sort.Ints(cuts)

		var merged Accumulator
		for i := 0; i+1 < len(cuts); i++ {
			var p Accumulator
			p.Update(values[cuts[i]:cuts[i+1]])
			merged.Merge(&p)
		}

		got := merged.Snapshot()
		if got.Count != want.Count {
			t.Fatalf("k=%d: count = %d, want %d", k, got.Count, want.Count)
		}
		if !almostEqual(got.Mean, want.Mean, 1e-9) {
			t.Errorf("k=%d: mean = %v, want %v", k, got.Mean, want.Mean)
		}
		if !almostEqual(got.Std, want.Std, 1e-9) {
			t.Errorf("k=%d: std = %v, want %v", k, got.Std, want.Std)
		}
		if got.Min != want.Min || got.Max != want.Max {
			t.Errorf("k=%d: min/max = %v/%v, want %v/%v", k, got.Min, got.Max, want.Min, want.Max)
		}
	}
}

func TestMergeAssociative(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	var a, b, c Accumulator
	for i := 0; i < 100; i++ {
		a.Add(rng.NormFloat64() * 5)
	}
	for i := 0; i < 37; i++ {
		b.Add(rng.Float64() * 1000)
	}
	for i := 0; i < 3; i++ {
		c.Add(rng.NormFloat64())
	}

	// (a+b)+c
	left, lb := a, b
	left.Merge(&lb)
	left.Merge(&c)

	// a+(b+c)
	bc := b
	bc.Merge(&c)
	right := a
	right.Merge(&bc)

	ls, rs := left.Snapshot(), right.Snapshot()
	if ls.Count != rs.Count || ls.Min != rs.Min || ls.Max != rs.Max {
		t.Errorf("count/min/max differ: %+v vs %+v", ls, rs)
	}
	if !almostEqual(ls.Mean, rs.Mean, 1e-9) {
		t.Errorf("mean differs: %v vs %v", ls.Mean, rs.Mean)
	}
	if !almostEqual(ls.Std, rs.Std, 1e-9) {
		t.Errorf("std differs: %v vs %v", ls.Std, rs.Std)
	}
}

func TestMergeConcrete(t *testing.T) {
	var a, b, c Accumulator
	a.Update([]float64{1, 2, 3})
	b.Update([]float64{4, 5})
	c.Update([]float64{6})

	a.Merge(&b)
	a.Merge(&c)

	s := a.Snapshot()
	if s.Count != 6 {
		t.Errorf("count = %d, want 6", s.Count)
	}
	if !almostEqual(s.Mean, 3.5, 1e-12) {
		t.Errorf("mean = %v, want 3.5", s.Mean)
	}
	if s.Min != 1 || s.Max != 6 {
		t.Errorf("min/max = %v/%v, want 1/6", s.Min, s.Max)
	}
	// population variance of 1..6 is 35/12
	if !almostEqual(s.Std, math.Sqrt(35.0/12.0), 1e-12) {
		t.Errorf("std = %v, want %v", s.Std, math.Sqrt(35.0/12.0))
	}
}

func TestMergeConcreteAnyOrder(t *testing.T) {
	parts := [][]float64{{1, 2, 3}, {4, 5}, {6}}
	orders := [][3]int{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2},
		{1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}

	for _, order := range orders {
		var acc Accumulator
		for _, i := range order {
			var p Accumulator
			p.Update(parts[i])
			acc.Merge(&p)
		}

		s := acc.Snapshot()
		if s.Count != 6 {
			t.Errorf("order %v: count = %d, want 6", order, s.Count)
		}
		if !almostEqual(s.Mean, 3.5, 1e-12) {
			t.Errorf("order %v: mean = %v, want 3.5", order, s.Mean)
		}
		if s.Min != 1 || s.Max != 6 {
			t.Errorf("order %v: min/max = %v/%v, want 1/6", order, s.Min, s.Max)
		}
		if !almostEqual(s.Std, math.Sqrt(35.0/12.0), 1e-12) {
			t.Errorf("order %v: std = %v, want %v", order, s.Std, math.Sqrt(35.0/12.0))
		}
	}
}

func TestMergeEmptyIsNoop(t *testing.T) {
	var a Accumulator
	a.Update([]float64{10, 20})
	before := a.Snapshot()

	var empty Accumulator
	a.Merge(&empty)
	a.Merge(nil)

	if a.Snapshot() != before {
		t.Errorf("merging empty changed snapshot: %+v vs %+v", a.Snapshot(), before)
	}

	// merging into an empty accumulator adopts the other side
	var dst Accumulator
	dst.Merge(&a)
	if dst.Snapshot() != before {
		t.Errorf("merge into empty = %+v, want %+v", dst.Snapshot(), before)
	}
}

func TestUpdateEmptySlice(t *testing.T) {
	var a Accumulator
	a.Update(nil)
	a.Update([]float64{})
	if a.Count() != 0 {
		t.Errorf("count = %d, want 0", a.Count())
	}
}

func TestReset(t *testing.T) {
	var a Accumulator
	a.Update([]float64{1, 2, 3})
	a.Reset()
	if a.Snapshot() != (Summary{}) {
		t.Errorf("snapshot after reset = %+v, want zero", a.Snapshot())
	}
	a.Update([]float64{7})
	if a.Mean() != 7 {
		t.Errorf("mean after reuse = %v, want 7", a.Mean())
	}
}
