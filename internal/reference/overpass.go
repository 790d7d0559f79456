package reference

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"github.com/serjvanilla/go-overpass"
)

const DefaultOverpassEndpoint = "https://overpass-api.de/api/interpreter"

// OverpassSignals pulls traffic signal nodes from OpenStreetMap.
type OverpassSignals struct {
	client *overpass.Client
	bound  orb.Bound
}

func NewOverpassSignals(endpoint string, bound orb.Bound, timeout time.Duration) *OverpassSignals {
	if endpoint == "" {
		endpoint = DefaultOverpassEndpoint
	}
	httpClient := &http.Client{
		Timeout: timeout,
	}
	client := overpass.NewWithSettings(endpoint, 2, httpClient)
	return &OverpassSignals{client: &client, bound: bound}
}

// Query renders the Overpass QL for the configured bounding box.
func (o *OverpassSignals) Query() string {
	// Overpass bbox order is south,west,north,east.
	return fmt.Sprintf(`[out:json];node["highway"="traffic_signals"](%f,%f,%f,%f);out body;`,
		o.bound.Min.Lat(), o.bound.Min.Lon(), o.bound.Max.Lat(), o.bound.Max.Lon())
}

// Signals returns the signal locations ordered by OSM node id.
func (o *OverpassSignals) Signals(ctx context.Context) ([]orb.Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := o.client.Query(o.Query())
	if err != nil {
		return nil, fmt.Errorf("overpass signals query failed: %w", err)
	}

	ids := make([]int64, 0, len(result.Nodes))
	for id := range result.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	signals := make([]orb.Point, 0, len(ids))
	for _, id := range ids {
		n := result.Nodes[id]
		signals = append(signals, orb.Point{n.Lon, n.Lat})
	}
	return signals, nil
}
