package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// EarthRadius is the sphere radius in metres used by every distance in the pipeline.
const EarthRadius = 6_367_000.0

var ErrLengthMismatch = errors.New("coordinate slices differ in length")

// Haversine returns the great-circle distance in metres between
// (lon1[i], lat1[i]) and (lon2[i], lat2[i]). Inputs are degrees.
// A slice of length 1 is broadcast against the others. Inputs are not modified.
func Haversine(lon1, lat1, lon2, lat2 []float64) ([]float64, error) {
	n := 1
	for _, s := range [][]float64{lon1, lat1, lon2, lat2} {
		switch {
		case len(s) == 0:
			return nil, fmt.Errorf("haversine: empty input: %w", ErrLengthMismatch)
		case len(s) == 1 || len(s) == n:
		case n == 1:
			n = len(s)
		default:
			return nil, fmt.Errorf("haversine: lengths %d and %d: %w", n, len(s), ErrLengthMismatch)
		}
	}

	at := func(s []float64, i int) float64 {
		if len(s) == 1 {
			return s[0]
		}
		return s[i]
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = HaversinePoint(at(lon1, i), at(lat1, i), at(lon2, i), at(lat2, i))
	}
	return out, nil
}

// HaversinePoint is the scalar form of Haversine.
func HaversinePoint(lon1, lat1, lon2, lat2 float64) float64 {
	lon1, lat1 = radians(lon1), radians(lat1)
	lon2, lat2 = radians(lon2), radians(lat2)

	dlon := lon2 - lon1
	dlat := lat2 - lat1
	a := math.Pow(math.Sin(dlat/2), 2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dlon/2), 2)
	return 2 * EarthRadius * math.Asin(math.Sqrt(a))
}

// Distance is HaversinePoint over orb points (X=lon, Y=lat).
func Distance(a, b orb.Point) float64 {
	return HaversinePoint(a.Lon(), a.Lat(), b.Lon(), b.Lat())
}

// PathLength sums the segment distances of line in metres.
func PathLength(line orb.LineString) float64 {
	var total float64
	for i := 1; i < len(line); i++ {
		total += Distance(line[i-1], line[i])
	}
	return total
}

// PolylineCurvature is the ratio of path length to the straight-line distance
// between the first and last points. Lines with fewer than two points or with
// coincident endpoints have curvature 0.
func PolylineCurvature(line orb.LineString) float64 {
	if len(line) < 2 {
		return 0
	}
	straight := Distance(line[0], line[len(line)-1])
	if straight == 0 {
		return 0
	}
	return PathLength(line) / straight
}

// PointInPolygon reports whether p lies inside ring.
func PointInPolygon(p orb.Point, ring orb.Ring) bool {
	if len(ring) < 3 {
		return false
	}
	return planar.RingContains(ring, p)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
