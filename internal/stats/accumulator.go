// Package stats provides a mergeable streaming accumulator for basic
// summary statistics. It implements Welford's online algorithm in its
// parallel form, so partial accumulators built over disjoint slices of
// data can be merged into a result identical (up to floating point
// rounding) to a single sequential pass.
package stats

import "math"

// Accumulator tracks count, mean, variance, minimum and maximum of a
// stream of float64 values without retaining the values themselves.
// The zero value is an empty accumulator ready for use.
//
// Accumulator is not safe for concurrent use. The intended pattern is
// one accumulator per goroutine, merged afterwards.
type Accumulator struct {
	count uint64
	mean  float64
	m2    float64
	min   float64
	max   float64
}

// NewAccumulator returns an empty accumulator. Equivalent to
// &Accumulator{}; provided for symmetry with the rest of the package.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Update folds a batch of values into the accumulator. Values are
// ingested as-is; callers filter NaN or masked samples beforehand.
// An empty batch leaves the accumulator unchanged.
func (a *Accumulator) Update(values []float64) {
	n := uint64(len(values))
	if n == 0 {
		return
	}

	var sum float64
	bmin := values[0]
	bmax := values[0]
	for _, v := range values {
		sum += v
		if v < bmin {
			bmin = v
		}
		if v > bmax {
			bmax = v
		}
	}
	bmean := sum / float64(n)

	var bm2 float64
	for _, v := range values {
		d := v - bmean
		bm2 += d * d
	}

	a.combine(n, bmean, bm2, bmin, bmax)
}

// Add folds a single value into the accumulator.
func (a *Accumulator) Add(v float64) {
	a.combine(1, v, 0, v, v)
}

// Merge folds another accumulator into this one. Merging is
// commutative up to floating point rounding, so the order in which
// partial accumulators arrive does not matter. Merging an empty
// accumulator is a no-op, and other is left unchanged.
func (a *Accumulator) Merge(other *Accumulator) {
	if other == nil || other.count == 0 {
		return
	}
	a.combine(other.count, other.mean, other.m2, other.min, other.max)
}

// combine implements the parallel-Welford merge of a partial
// (count, mean, m2, min, max) into the receiver.
func (a *Accumulator) combine(n uint64, mean, m2, bmin, bmax float64) {
	if a.count == 0 {
		a.count = n
		a.mean = mean
		a.m2 = m2
		a.min = bmin
		a.max = bmax
		return
	}

	total := a.count + n
	delta := mean - a.mean
	a.mean += delta * float64(n) / float64(total)
	a.m2 += m2 + delta*delta*float64(a.count)*float64(n)/float64(total)
	a.count = total
	if bmin < a.min {
		a.min = bmin
	}
	if bmax > a.max {
		a.max = bmax
	}
}

// Count returns the number of values ingested so far.
func (a *Accumulator) Count() uint64 { return a.count }

// Mean returns the running mean, or 0 if no values were ingested.
func (a *Accumulator) Mean() float64 { return a.mean }

// Variance returns the population variance (m2/count), or 0 if no
// values were ingested.
func (a *Accumulator) Variance() float64 {
	if a.count == 0 {
		return 0
	}
	return a.m2 / float64(a.count)
}

// Std returns the population standard deviation.
func (a *Accumulator) Std() float64 { return math.Sqrt(a.Variance()) }

// Min returns the minimum value seen, or 0 if no values were ingested.
func (a *Accumulator) Min() float64 {
	if a.count == 0 {
		return 0
	}
	return a.min
}

// Max returns the maximum value seen, or 0 if no values were ingested.
func (a *Accumulator) Max() float64 {
	if a.count == 0 {
		return 0
	}
	return a.max
}

// Reset returns the accumulator to its empty state.
func (a *Accumulator) Reset() { *a = Accumulator{} }

// Summary is a point-in-time snapshot of an accumulator. An empty
// accumulator snapshots to the zero Summary.
type Summary struct {
	Count uint64  `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Snapshot returns the current statistics. The accumulator remains
// usable afterwards.
func (a *Accumulator) Snapshot() Summary {
	if a.count == 0 {
		return Summary{}
	}
	return Summary{
		Count: a.count,
		Mean:  a.mean,
		Std:   a.Std(),
		Min:   a.min,
		Max:   a.max,
	}
}
