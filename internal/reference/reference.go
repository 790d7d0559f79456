// Package reference loads the static lookup tables joined onto accident
// records: road geometries, census population areas, traffic signal
// locations and traffic volume counts. Loaded Data is never mutated.
package reference

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"

	"cityflow/internal/geo"
)

// Road is a named road segment with its precomputed curve ratio.
type Road struct {
	Name   string
	Line   orb.LineString
	Curve  float64
	Length float64
}

// PopulationArea is a census polygon with its demographics.
type PopulationArea struct {
	Ring              orb.Ring
	MedianAge         float64
	PopulationDensity float64
}

// Data holds every reference table for one pipeline run.
type Data struct {
	Roads   []Road
	Areas   []PopulationArea
	Signals []orb.Point
	// Volumes maps a route name to its mean vehicle count for the target year.
	Volumes map[string]float64

	signalLon []float64
	signalLat []float64
	areaIndex rtree.RTree
}

// NewData builds the lookup structures over the given tables.
func NewData(roads []Road, areas []PopulationArea, signals []orb.Point, volumes map[string]float64) *Data {
	d := &Data{
		Roads:     roads,
		Areas:     areas,
		Signals:   signals,
		Volumes:   volumes,
		signalLon: make([]float64, len(signals)),
		signalLat: make([]float64, len(signals)),
	}
	if d.Volumes == nil {
		d.Volumes = map[string]float64{}
	}
	for i, s := range signals {
		d.signalLon[i] = s.Lon()
		d.signalLat[i] = s.Lat()
	}
	for i, a := range areas {
		b := a.Ring.Bound()
		d.areaIndex.Insert(
			[2]float64{b.Min.X(), b.Min.Y()},
			[2]float64{b.Max.X(), b.Max.Y()},
			i,
		)
	}
	return d
}

// SignalsWithin counts signals no further than radius metres from p.
func (d *Data) SignalsWithin(p orb.Point, radius float64) int {
	if len(d.signalLon) == 0 {
		return 0
	}
	dists, err := geo.Haversine([]float64{p.Lon()}, []float64{p.Lat()}, d.signalLon, d.signalLat)
	if err != nil {
		return 0
	}
	n := 0
	for _, m := range dists {
		if m <= radius {
			n++
		}
	}
	return n
}

// AreaAt returns the first population area, in load order, whose ring contains p.
func (d *Data) AreaAt(p orb.Point) (PopulationArea, bool) {
	var candidates []int
	pt := [2]float64{p.X(), p.Y()}
	d.areaIndex.Search(pt, pt, func(_, _ [2]float64, v interface{}) bool {
		candidates = append(candidates, v.(int))
		return true
	})
	sort.Ints(candidates)
	for _, i := range candidates {
		if geo.PointInPolygon(p, d.Areas[i].Ring) {
			return d.Areas[i], true
		}
	}
	return PopulationArea{}, false
}

// RouteVolumes returns the per-route mean counts for every route accepted by match.
func (d *Data) RouteVolumes(match func(route string) bool) []float64 {
	routes := make([]string, 0, len(d.Volumes))
	for r := range d.Volumes {
		if match(r) {
			routes = append(routes, r)
		}
	}
	sort.Strings(routes)
	out := make([]float64, 0, len(routes))
	for _, r := range routes {
		if v := d.Volumes[r]; !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
