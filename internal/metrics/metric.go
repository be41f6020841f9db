// Package metrics computes per-pixel diversity and biomass values
// over multi-band rasters in bounded-memory spatial chunks, feeding
// mergeable accumulators.
package metrics

import (
	"fmt"
	"math"
	"strings"
)

// Metric identifies one of the supported diversity metrics.
type Metric int

const (
	// Shannon is H' = -sum(p_i ln p_i) over positive proportions.
	Shannon Metric = iota
	// Simpson is 1 - sum(p_i^2).
	Simpson
	// Richness is the count of bands positive at a pixel.
	Richness
)

// ParseMetric parses a metric name, case-insensitively.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "shannon":
		return Shannon, nil
	case "simpson":
		return Simpson, nil
	case "richness":
		return Richness, nil
	default:
		return 0, fmt.Errorf("unknown metric %q (want shannon, simpson or richness)", s)
	}
}

func (m Metric) String() string {
	switch m {
	case Shannon:
		return "shannon"
	case Simpson:
		return "simpson"
	case Richness:
		return "richness"
	default:
		return fmt.Sprintf("metric(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler for JSON results.
func (m Metric) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Metric) UnmarshalText(text []byte) error {
	parsed, err := ParseMetric(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

const (
	// PixelAreaHa is the ground area of one 30 m pixel in hectares.
	PixelAreaHa = 0.09
	// HaToAcres converts hectares to acres.
	HaToAcres = 2.471
)

// PixelValue computes metric for one pixel given its per-band biomass
// values. ok is false when the pixel carries no positive biomass and
// so is outside the forested population.
func PixelValue(metric Metric, bands []float64) (value float64, ok bool) {
	var total float64
	richness := 0
	for _, v := range bands {
		if v > 0 {
			total += v
			richness++
		}
	}
	if total <= 0 {
		return 0, false
	}

	switch metric {
	case Shannon:
		for _, v := range bands {
			if v > 0 {
				p := v / total
				value -= p * math.Log(p)
			}
		}
	case Simpson:
		sum := 0.0
		for _, v := range bands {
			if v > 0 {
				p := v / total
				sum += p * p
			}
		}
		value = 1 - sum
	case Richness:
		value = float64(richness)
	}
	return value, true
}
