package reference

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"cityflow/internal/geo"
)

// Files names the four reference tables inside the loader's file system.
type Files struct {
	Roads      string
	Population string
	Signals    string
	Volumes    string
}

// DefaultFiles matches the layout of the published reference_data directory.
var DefaultFiles = Files{
	Roads:      "roads.csv",
	Population: "census_population.csv",
	Signals:    "signals.csv",
	Volumes:    "traffic_volumes.csv",
}

// Options selects which slice of the traffic volume table is used.
type Options struct {
	Files  Files
	County string
	Year   int
}

// SignalSource supplies signal locations from somewhere other than the signals file.
type SignalSource interface {
	Signals(ctx context.Context) ([]orb.Point, error)
}

type Loader struct {
	fsys    fs.FS
	opts    Options
	signals SignalSource
	logger  *log.Logger
}

func NewLoader(fsys fs.FS, opts Options, logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.Default()
	}
	if opts.Files == (Files{}) {
		opts.Files = DefaultFiles
	}
	return &Loader{fsys: fsys, opts: opts, logger: logger}
}

// WithSignalSource makes Load take signals from src instead of the signals file.
func (l *Loader) WithSignalSource(src SignalSource) *Loader {
	l.signals = src
	return l
}

// Load reads all four tables and builds the lookup structures.
func (l *Loader) Load(ctx context.Context) (*Data, error) {
	roads, err := l.loadRoads()
	if err != nil {
		return nil, err
	}
	areas, err := l.loadPopulation()
	if err != nil {
		return nil, err
	}

	var signals []orb.Point
	if l.signals != nil {
		signals, err = l.signals.Signals(ctx)
	} else {
		signals, err = l.loadSignals()
	}
	if err != nil {
		return nil, err
	}

	volumes, err := l.loadVolumes()
	if err != nil {
		return nil, err
	}

	l.logger.Printf("reference data loaded: roads=%d areas=%d signals=%d routes=%d",
		len(roads), len(areas), len(signals), len(volumes))
	return NewData(roads, areas, signals, volumes), nil
}

func (l *Loader) loadRoads() ([]Road, error) {
	t, err := readTable(l.fsys, l.opts.Files.Roads, "STREETNAME", "coordinates")
	if err != nil {
		return nil, err
	}

	roads := make([]Road, 0, len(t.rows))
	for i, row := range t.rows {
		line, err := ParseCoordinates(t.get(row, "coordinates"))
		if err != nil || len(line) < 2 {
			l.logger.Printf("roads: skipping row %d: bad coordinates: %v", i+1, err)
			continue
		}
		ls := orb.LineString(line)
		length := parseFloat(t.get(row, "ShapeSTLength"))
		if math.IsNaN(length) {
			length = geo.PathLength(ls)
		}
		roads = append(roads, Road{
			Name:   strings.ToUpper(strings.TrimSpace(t.get(row, "STREETNAME"))),
			Line:   ls,
			Curve:  geo.PolylineCurvature(ls),
			Length: length,
		})
	}
	return roads, nil
}

func (l *Loader) loadPopulation() ([]PopulationArea, error) {
	t, err := readTable(l.fsys, l.opts.Files.Population, "coordinates", "PopSqMi", "MedianAge")
	if err != nil {
		return nil, err
	}

	areas := make([]PopulationArea, 0, len(t.rows))
	for i, row := range t.rows {
		pts, err := ParseCoordinates(t.get(row, "coordinates"))
		if err != nil || len(pts) < 3 {
			l.logger.Printf("population: skipping row %d: bad coordinates: %v", i+1, err)
			continue
		}
		ring := orb.Ring(pts)
		if !ring.Closed() {
			ring = append(ring, ring[0])
		}
		areas = append(areas, PopulationArea{
			Ring:              ring,
			MedianAge:         parseFloat(t.get(row, "MedianAge")),
			PopulationDensity: parseFloat(t.get(row, "PopSqMi")),
		})
	}
	return areas, nil
}

func (l *Loader) loadSignals() ([]orb.Point, error) {
	t, err := readTable(l.fsys, l.opts.Files.Signals, "X", "Y")
	if err != nil {
		return nil, err
	}

	signals := make([]orb.Point, 0, len(t.rows))
	for _, row := range t.rows {
		x, y := parseFloat(t.get(row, "X")), parseFloat(t.get(row, "Y"))
		if math.IsNaN(x) || math.IsNaN(y) {
			continue
		}
		signals = append(signals, orb.Point{x, y})
	}
	return signals, nil
}

// loadVolumes keeps the target county's rows and averages the target year's
// counts per route. Duplicate route rows collapse into one mean.
func (l *Loader) loadVolumes() (map[string]float64, error) {
	t, err := readTable(l.fsys, l.opts.Files.Volumes, "COUNTY", "ROUTE")
	if err != nil {
		return nil, err
	}

	year := strconv.Itoa(l.opts.Year)
	yearCol := ""
	for _, h := range t.header {
		if strings.Contains(h, year) {
			yearCol = h
			break
		}
	}
	if yearCol == "" {
		return nil, fmt.Errorf("%s: no count column for year %s", l.opts.Files.Volumes, year)
	}

	sums := map[string]float64{}
	counts := map[string]int{}
	for _, row := range t.rows {
		if !strings.EqualFold(strings.TrimSpace(t.get(row, "COUNTY")), l.opts.County) {
			continue
		}
		v := parseFloat(strings.ReplaceAll(t.get(row, yearCol), ",", ""))
		if math.IsNaN(v) {
			continue
		}
		route := strings.ToUpper(strings.TrimSpace(t.get(row, "ROUTE")))
		sums[route] += v
		counts[route]++
	}

	volumes := make(map[string]float64, len(sums))
	for route, sum := range sums {
		volumes[route] = sum / float64(counts[route])
	}
	return volumes, nil
}

// ParseCoordinates reads a flat "lon,lat,lon,lat,..." list. The source
// stores longitude first, which is also orb's X/Y order.
func ParseCoordinates(s string) ([]orb.Point, error) {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		return nil, errors.New("empty coordinate list")
	}
	parts := strings.Split(s, ",")
	if len(parts)%2 != 0 {
		return nil, fmt.Errorf("odd coordinate count %d", len(parts))
	}

	pts := make([]orb.Point, 0, len(parts)/2)
	for i := 0; i < len(parts); i += 2 {
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return nil, fmt.Errorf("longitude %q: %w", parts[i], err)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[i+1]), 64)
		if err != nil {
			return nil, fmt.Errorf("latitude %q: %w", parts[i+1], err)
		}
		pts = append(pts, orb.Point{lon, lat})
	}
	return pts, nil
}

type table struct {
	header []string
	index  map[string]int
	rows   [][]string
}

func (t *table) get(row []string, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func readTable(fsys fs.FS, name string, required ...string) (*table, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", name, err)
	}
	t := &table{header: header, index: make(map[string]int, len(header))}
	for i, h := range header {
		t.index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, col := range required {
		if _, ok := t.index[col]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", name, col)
		}
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
