package reference

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"testing"
	"testing/fstest"

	"github.com/paulmach/orb"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"roads.csv": {Data: []byte(
			"STREETNAME,ShapeSTLength,coordinates\n" +
				"I-85,1200.5,\"-80.80,35.20,-80.79,35.21\"\n" +
				"Main St,,\"-80.84,35.22,-80.83,35.22\"\n" +
				"Broken Rd,10,\"-80.84,35.22,-80.83\"\n",
		)},
		"census_population.csv": {Data: []byte(
			"coordinates,PopSqMi,MedianAge\n" +
				"\"-81,35,-80,35,-80,36,-81,36\",2500,34.5\n" +
				"\"-81,35,-80,35,-80,36,-81,36,-81,35\",9999,99\n",
		)},
		"signals.csv": {Data: []byte(
			"X,Y\n-80.84,35.22\n-80.85,35.23\nbad,35.0\n",
		)},
		"traffic_volumes.csv": {Data: []byte(
			"COUNTY,ROUTE,AADT 2018,AADT 2019\n" +
				"MECKLENBURG,I-85,\"100,000\",\"120,000\"\n" +
				"Mecklenburg,I-85,\"100,000\",\"80,000\"\n" +
				"MECKLENBURG,US 74,n/a,\"30,000\"\n" +
				"GASTON,I-85,\"1\",\"1\"\n",
		)},
	}
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestLoaderLoad(t *testing.T) {
	l := NewLoader(testFS(), Options{County: "Mecklenburg", Year: 2019}, quietLogger())
	d, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(d.Roads) != 2 {
		t.Fatalf("roads = %d, want 2 (bad coordinate row skipped)", len(d.Roads))
	}
	if d.Roads[0].Name != "I-85" || d.Roads[0].Length != 1200.5 {
		t.Errorf("road[0] = %+v", d.Roads[0])
	}
	if d.Roads[1].Name != "MAIN ST" {
		t.Errorf("road[1] name = %q, want MAIN ST", d.Roads[1].Name)
	}
	if d.Roads[1].Length <= 0 {
		t.Errorf("road[1] length should fall back to path length, got %v", d.Roads[1].Length)
	}
	if math.Abs(d.Roads[1].Curve-1) > 1e-9 {
		t.Errorf("straight road curve = %v, want 1", d.Roads[1].Curve)
	}

	if len(d.Areas) != 2 {
		t.Fatalf("areas = %d, want 2", len(d.Areas))
	}
	if !d.Areas[0].Ring.Closed() {
		t.Error("open ring should be closed on load")
	}

	if len(d.Signals) != 2 {
		t.Errorf("signals = %d, want 2", len(d.Signals))
	}

	if got := d.Volumes["I-85"]; got != 100000 {
		t.Errorf("I-85 volume = %v, want 100000", got)
	}
	if got := d.Volumes["US 74"]; got != 30000 {
		t.Errorf("US 74 volume = %v, want 30000", got)
	}
	if len(d.Volumes) != 2 {
		t.Errorf("volumes = %v, want only Mecklenburg routes", d.Volumes)
	}
}

func TestLoaderMissingColumn(t *testing.T) {
	fsys := testFS()
	fsys["signals.csv"] = &fstest.MapFile{Data: []byte("LON,LAT\n-80,35\n")}

	_, err := NewLoader(fsys, Options{County: "Mecklenburg", Year: 2019}, quietLogger()).Load(context.Background())
	if err == nil {
		t.Fatal("expected error for missing signal columns")
	}
}

func TestLoaderMissingYear(t *testing.T) {
	_, err := NewLoader(testFS(), Options{County: "Mecklenburg", Year: 2030}, quietLogger()).Load(context.Background())
	if err == nil {
		t.Fatal("expected error for unknown year")
	}
}

type stubSignals struct {
	pts []orb.Point
	err error
}

func (s stubSignals) Signals(context.Context) ([]orb.Point, error) { return s.pts, s.err }

func TestLoaderSignalSource(t *testing.T) {
	src := stubSignals{pts: []orb.Point{{-80.84, 35.22}}}
	d, err := NewLoader(testFS(), Options{County: "Mecklenburg", Year: 2019}, quietLogger()).
		WithSignalSource(src).
		Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(d.Signals) != 1 {
		t.Errorf("signals = %d, want 1 from source", len(d.Signals))
	}

	boom := errors.New("boom")
	_, err = NewLoader(testFS(), Options{County: "Mecklenburg", Year: 2019}, quietLogger()).
		WithSignalSource(stubSignals{err: boom}).
		Load(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestParseCoordinates(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []orb.Point
		wantErr bool
	}{
		{"pairs", "-80.84,35.22,-80.83,35.23", []orb.Point{{-80.84, 35.22}, {-80.83, 35.23}}, false},
		{"bracketed", "[-80.84, 35.22]", []orb.Point{{-80.84, 35.22}}, false},
		{"odd count", "-80.84,35.22,-80.83", nil, true},
		{"empty", "", nil, true},
		{"not a number", "a,b", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCoordinates(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("point %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestAreaAtFirstMatch(t *testing.T) {
	square := orb.Ring{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}
	inner := orb.Ring{{0.5, 0.5}, {1.5, 0.5}, {1.5, 1.5}, {0.5, 1.5}, {0.5, 0.5}}
	d := NewData(nil, []PopulationArea{
		{Ring: inner, MedianAge: 30, PopulationDensity: 100},
		{Ring: square, MedianAge: 40, PopulationDensity: 200},
	}, nil, nil)

	a, ok := d.AreaAt(orb.Point{1, 1})
	if !ok || a.MedianAge != 30 {
		t.Errorf("AreaAt(1,1) = %+v, %v; want first ring", a, ok)
	}
	a, ok = d.AreaAt(orb.Point{1.8, 1.8})
	if !ok || a.MedianAge != 40 {
		t.Errorf("AreaAt(1.8,1.8) = %+v, %v; want outer ring", a, ok)
	}
	if _, ok := d.AreaAt(orb.Point{5, 5}); ok {
		t.Error("AreaAt outside every ring should miss")
	}
}

func TestSignalsWithin(t *testing.T) {
	d := NewData(nil, nil, []orb.Point{{-80.84, 35.22}, {-80.8405, 35.2205}, {-80.90, 35.30}}, nil)
	if got := d.SignalsWithin(orb.Point{-80.84, 35.22}, 500); got != 2 {
		t.Errorf("SignalsWithin = %d, want 2", got)
	}
	empty := NewData(nil, nil, nil, nil)
	if got := empty.SignalsWithin(orb.Point{-80.84, 35.22}, 500); got != 0 {
		t.Errorf("empty SignalsWithin = %d, want 0", got)
	}
}

func TestCacheLoadsOnce(t *testing.T) {
	c := NewCache(0)
	calls := 0
	load := func(context.Context) (*Data, error) {
		calls++
		return NewData(nil, nil, nil, nil), nil
	}
	key := Key("dir", Options{County: "Mecklenburg", Year: 2019})
	for i := 0; i < 3; i++ {
		if _, err := c.Get(context.Background(), key, load); err != nil {
			t.Fatalf("Get: %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("load called %d times, want 1", calls)
	}
}

func TestOverpassQuery(t *testing.T) {
	o := NewOverpassSignals("", orb.Bound{Min: orb.Point{-81, 35}, Max: orb.Point{-80, 36}}, 0)
	want := `[out:json];node["highway"="traffic_signals"](35.000000,-81.000000,36.000000,-80.000000);out body;`
	if got := o.Query(); got != want {
		t.Errorf("Query() = %q\nwant %q", got, want)
	}
}
