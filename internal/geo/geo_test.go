package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestHaversineSamePointIsZero(t *testing.T) {
	points := [][2]float64{
		{-80.8431, 35.2271},
		{0, 0},
		{179.9, -89.9},
	}
	for _, p := range points {
		if d := HaversinePoint(p[0], p[1], p[0], p[1]); d != 0 {
			t.Errorf("HaversinePoint(%v, %v) = %v, want 0", p, p, d)
		}
	}
}

func TestHaversineSymmetric(t *testing.T) {
	a := [2]float64{-80.8431, 35.2271}
	b := [2]float64{-80.7300, 35.3100}

	ab := HaversinePoint(a[0], a[1], b[0], b[1])
	ba := HaversinePoint(b[0], b[1], a[0], a[1])
	if math.Abs(ab-ba) > 1e-9 {
		t.Errorf("distance not symmetric: %v vs %v", ab, ba)
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// One degree of latitude on a 6,367 km sphere.
	got := HaversinePoint(0, 0, 0, 1)
	want := EarthRadius * math.Pi / 180
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestHaversineBroadcast(t *testing.T) {
	lon1 := []float64{-80.84}
	lat1 := []float64{35.22}
	lon2 := []float64{-80.84, -80.85, -80.90}
	lat2 := []float64{35.22, 35.23, 35.30}

	got, err := Haversine(lon1, lat1, lon2, lat2)
	if err != nil {
		t.Fatalf("Haversine: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0] != 0 {
		t.Errorf("got[0] = %v, want 0", got[0])
	}
	for i := 1; i < len(got); i++ {
		want := HaversinePoint(lon1[0], lat1[0], lon2[i], lat2[i])
		if got[i] != want {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want)
		}
	}
	if lon2[2] != -80.90 || lat1[0] != 35.22 {
		t.Error("inputs were modified")
	}
}

func TestHaversineLengthMismatch(t *testing.T) {
	_, err := Haversine([]float64{1, 2}, []float64{1, 2, 3}, []float64{0}, []float64{0})
	if !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("err = %v, want ErrLengthMismatch", err)
	}
}

func TestPolylineCurvature(t *testing.T) {
	tests := []struct {
		name string
		line orb.LineString
		want float64
	}{
		{"straight two-point line", orb.LineString{{-80.84, 35.22}, {-80.80, 35.25}}, 1},
		{"repeated single point", orb.LineString{{-80.84, 35.22}, {-80.84, 35.22}}, 0},
		{"loop back to start", orb.LineString{{-80.84, 35.22}, {-80.80, 35.25}, {-80.84, 35.22}}, 0},
		{"single point", orb.LineString{{-80.84, 35.22}}, 0},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PolylineCurvature(tt.line)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("PolylineCurvature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPolylineCurvatureBentLine(t *testing.T) {
	line := orb.LineString{{0, 0}, {0, 0.01}, {0.01, 0.01}}
	got := PolylineCurvature(line)
	// Two legs of a right triangle over its hypotenuse is close to sqrt(2).
	if math.Abs(got-math.Sqrt2) > 0.001 {
		t.Errorf("PolylineCurvature() = %v, want ~%v", got, math.Sqrt2)
	}
}

func TestPointInPolygon(t *testing.T) {
	square := orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}

	tests := []struct {
		name string
		p    orb.Point
		want bool
	}{
		{"center", orb.Point{0.5, 0.5}, true},
		{"outside", orb.Point{1.5, 0.5}, false},
		{"far away", orb.Point{-80.84, 35.22}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PointInPolygon(tt.p, square); got != tt.want {
				t.Errorf("PointInPolygon(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}

	if PointInPolygon(orb.Point{0, 0}, orb.Ring{{0, 0}, {1, 1}}) {
		t.Error("degenerate ring should contain nothing")
	}
}
