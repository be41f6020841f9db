package region

import (
	"math"

	"github.com/canopystats/server/internal/grid"
)

// Albers is a forward Albers Equal-Area Conic projection on the GRS80
// ellipsoid. Constants are precomputed at construction; the projection
// is safe for concurrent use.
type Albers struct {
	a    float64
	e    float64
	e2   float64
	n    float64
	c    float64
	rho0 float64
	lon0 float64
}

// NewAlbersCONUS returns the EPSG:5070 projection (CONUS Albers):
// standard parallels 29.5 and 45.5, latitude of origin 23, central
// meridian -96, false easting/northing 0.
func NewAlbersCONUS() *Albers {
	return newAlbers(29.5, 45.5, 23.0, -96.0)
}

func newAlbers(lat1, lat2, lat0, lon0 float64) *Albers {
	const (
		a    = 6378137.0
		invF = 298.257222101
	)
	f := 1 / invF
	e2 := 2*f - f*f

	p := &Albers{
		a:    a,
		e:    math.Sqrt(e2),
		e2:   e2,
		lon0: rad(lon0),
	}

	phi1 := rad(lat1)
	phi2 := rad(lat2)
	phi0 := rad(lat0)

	m1 := p.m(phi1)
	m2 := p.m(phi2)
	q1 := p.q(phi1)
	q2 := p.q(phi2)
	q0 := p.q(phi0)

	p.n = (m1*m1 - m2*m2) / (q2 - q1)
	p.c = m1*m1 + p.n*q1
	p.rho0 = p.rho(q0)
	return p
}

func rad(deg float64) float64 { return deg * math.Pi / 180 }

// m is the Snyder auxiliary cos(phi)/sqrt(1 - e^2 sin^2 phi).
func (p *Albers) m(phi float64) float64 {
	s := math.Sin(phi)
	return math.Cos(phi) / math.Sqrt(1-p.e2*s*s)
}

// q is the Snyder authalic-latitude auxiliary.
func (p *Albers) q(phi float64) float64 {
	s := math.Sin(phi)
	es := p.e * s
	return (1 - p.e2) * (s/(1-p.e2*s*s) - (1/(2*p.e))*math.Log((1-es)/(1+es)))
}

func (p *Albers) rho(q float64) float64 {
	return p.a * math.Sqrt(p.c-p.n*q) / p.n
}

// Forward projects geographic coordinates (degrees) to projected
// meters.
func (p *Albers) Forward(lon, lat float64) (x, y float64) {
	theta := p.n * (rad(lon) - p.lon0)
	r := p.rho(p.q(rad(lat)))
	x = r * math.Sin(theta)
	y = p.rho0 - r*math.Cos(theta)
	return x, y
}

// ProjectBounds projects a geographic bounding box to a projected
// envelope. Because conic projections curve parallels, the corners
// alone underestimate the extent; edge midpoints are projected too
// and the envelope taken over all samples.
func (p *Albers) ProjectBounds(b GeoBounds) grid.BBox {
	midLat := (b.MinLat + b.MaxLat) / 2
	midLon := (b.MinLon + b.MaxLon) / 2
	pts := [][2]float64{
		{b.MinLon, b.MinLat},
		{b.MinLon, b.MaxLat},
		{b.MaxLon, b.MinLat},
		{b.MaxLon, b.MaxLat},
		{b.MinLon, midLat},
		{b.MaxLon, midLat},
		{midLon, b.MinLat},
		{midLon, b.MaxLat},
	}

	var out grid.BBox
	for i, pt := range pts {
		x, y := p.Forward(pt[0], pt[1])
		if i == 0 {
			out = grid.BBox{MinX: x, MinY: y, MaxX: x, MaxY: y}
			continue
		}
		out.MinX = math.Min(out.MinX, x)
		out.MinY = math.Min(out.MinY, y)
		out.MaxX = math.Max(out.MaxX, x)
		out.MaxY = math.Max(out.MaxY, y)
	}
	return out
}
