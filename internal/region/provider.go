package region

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	overpass "github.com/serjvanilla/go-overpass"
)

// GeoBounds is a geographic (WGS84) bounding box in degrees.
type GeoBounds struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// GeometryProvider resolves a region name to its geographic bounds.
// A (nil, nil) return means the provider has no answer for the name;
// an error means the lookup itself failed.
type GeometryProvider interface {
	RegionBounds(ctx context.Context, name string) (*GeoBounds, error)
}

// OverpassProvider resolves administrative boundary names through an
// Overpass API endpoint.
type OverpassProvider struct {
	client  overpass.Client
	timeout time.Duration
}

// DefaultOverpassEndpoint is the public Overpass API instance.
const DefaultOverpassEndpoint = "https://overpass-api.de/api/interpreter"

// NewOverpassProvider builds a provider against the given endpoint
// with at most one in-flight query and the given per-query timeout.
func NewOverpassProvider(endpoint string, timeout time.Duration) *OverpassProvider {
	if endpoint == "" {
		endpoint = DefaultOverpassEndpoint
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}
	return &OverpassProvider{
		client:  overpass.NewWithSettings(endpoint, 1, httpClient),
		timeout: timeout,
	}
}

// RegionBounds looks up the named administrative boundary and returns
// the envelope of its member nodes.
func (p *OverpassProvider) RegionBounds(ctx context.Context, name string) (*GeoBounds, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		[out:json];
		relation["boundary"="administrative"]["name"=%q];
		>;
		out skel qt;
	`, name)

	result, err := p.client.Query(query)
	if err != nil {
		return nil, fmt.Errorf("overpass query for %q failed: %w", name, err)
	}
	if len(result.Nodes) == 0 {
		return nil, nil
	}

	var b GeoBounds
	first := true
	for _, node := range result.Nodes {
		if first {
			b = GeoBounds{MinLat: node.Lat, MinLon: node.Lon, MaxLat: node.Lat, MaxLon: node.Lon}
			first = false
			continue
		}
		if node.Lat < b.MinLat {
			b.MinLat = node.Lat
		}
		if node.Lat > b.MaxLat {
			b.MaxLat = node.Lat
		}
		if node.Lon < b.MinLon {
			b.MinLon = node.Lon
		}
		if node.Lon > b.MaxLon {
			b.MaxLon = node.Lon
		}
	}
	log.Printf("[Region] overpass resolved %q to %d boundary nodes", name, len(result.Nodes))
	return &b, nil
}
