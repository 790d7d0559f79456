// Package features derives model feature vectors from accident records by
// joining them against the reference tables.
package features

import (
	"log"
	"math"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/stat"

	"cityflow/internal/accident"
	"cityflow/internal/reference"
)

// DefaultSignalRadius is the distance in metres within which a signal counts as near.
const DefaultSignalRadius = 500.0

type Config struct {
	Highways     []string
	SignalRadius float64
	Location     *time.Location
	SpeedRules   []SpeedRule
}

// Joiner turns accident records into feature vectors. It only reads the
// reference data and may be reused across runs.
type Joiner struct {
	ref    *reference.Data
	cfg    Config
	tokens Tokenizer
	logger *log.Logger
}

func NewJoiner(ref *reference.Data, cfg Config, logger *log.Logger) *Joiner {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Highways == nil {
		cfg.Highways = DefaultHighways
	}
	if cfg.SignalRadius <= 0 {
		cfg.SignalRadius = DefaultSignalRadius
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.SpeedRules == nil {
		cfg.SpeedRules = SpeedRules
	}
	return &Joiner{
		ref:    ref,
		cfg:    cfg,
		tokens: NewTokenizer(cfg.Highways),
		logger: logger,
	}
}

type roadMatch struct {
	name   string
	curve  float64
	length float64
	volume float64
}

// Join returns one vector per record in input order, with missing numerics
// imputed by column mean.
func (j *Joiner) Join(records []accident.Record) []Vector {
	out := make([]Vector, len(records))
	matches := map[string]roadMatch{}
	unmatched := 0

	for i, r := range records {
		v := Vector{
			EventNo:    r.EventNo,
			Division:   r.Division,
			IsAccident: 1,
		}
		j.timeParts(&v, r.DateTimeAdd)

		m := roadMatch{name: GenericStreet, curve: math.NaN(), length: math.NaN(), volume: math.NaN()}
		if token, ok := j.tokens.Token(r.Address); ok {
			cached, seen := matches[token]
			if !seen {
				cached = j.matchRoad(token)
				matches[token] = cached
			}
			m = cached
		}
		if m.name == GenericStreet {
			unmatched++
		}
		v.StreetName = m.name
		v.RoadCurve = m.curve
		v.RoadLength = m.length
		v.RoadVolume = m.volume
		v.RoadSpeed = InferSpeed(r.Address, j.cfg.SpeedRules)

		p := orb.Point{r.Longitude, r.Latitude}
		v.SignalsNear = j.ref.SignalsWithin(p, j.cfg.SignalRadius)
		v.MedianAge, v.PopulationDensity = math.NaN(), math.NaN()
		if area, ok := j.ref.AreaAt(p); ok {
			v.MedianAge = area.MedianAge
			v.PopulationDensity = area.PopulationDensity
		}

		j.weather(&v, r.Weather)
		out[i] = v
	}

	if unmatched > 0 {
		j.logger.Printf("feature join: %d of %d records matched no reference road", unmatched, len(records))
	}
	Impute(out)
	return out
}

func (j *Joiner) timeParts(v *Vector, ts time.Time) {
	t := ts.In(j.cfg.Location)
	v.Month = int(t.Month())
	v.Day = t.Day()
	v.Hour = t.Hour()
	v.Minute = t.Minute()
	v.DayOfWeek = (int(t.Weekday()) + 6) % 7
}

func (j *Joiner) weather(v *Vector, w *accident.Weather) {
	nan := math.NaN()
	v.WeatherTemp, v.WeatherRain3h, v.WeatherVisibility, v.WeatherWindSpeed, v.SunriseHour = nan, nan, nan, nan, nan
	if w == nil {
		return
	}
	v.WeatherTemp = w.Temperature
	v.WeatherWindSpeed = w.WindSpeed
	if w.Rain3h != nil {
		v.WeatherRain3h = *w.Rain3h
	}
	if w.Visibility != nil {
		v.WeatherVisibility = *w.Visibility
	}
	if w.Sunrise > 0 {
		v.SunriseHour = float64(time.Unix(w.Sunrise, 0).In(j.cfg.Location).Hour())
	}
}

// matchRoad finds reference roads whose name contains token. The most
// frequent matching name wins, ties going to the one seen first.
func (j *Joiner) matchRoad(token string) roadMatch {
	m := roadMatch{name: GenericStreet, curve: math.NaN(), length: math.NaN(), volume: math.NaN()}

	counts := map[string]int{}
	var order []string
	var curves, lengths []float64
	for _, road := range j.ref.Roads {
		if !strings.Contains(road.Name, token) {
			continue
		}
		if counts[road.Name] == 0 {
			order = append(order, road.Name)
		}
		counts[road.Name]++
		curves = append(curves, road.Curve)
		lengths = append(lengths, road.Length)
	}
	best := 0
	for _, name := range order {
		if counts[name] > best {
			m.name, best = name, counts[name]
		}
	}
	if len(curves) > 0 {
		m.curve = stat.Mean(curves, nil)
		m.length = stat.Mean(lengths, nil)
	}

	vols := j.ref.RouteVolumes(func(route string) bool { return strings.Contains(route, token) })
	if len(vols) > 0 {
		m.volume = stat.Mean(vols, nil)
	}
	return m
}

// Impute replaces NaN numerics with the mean of the column's other values.
// A column with no values at all is left NaN.
func Impute(vs []Vector) {
	for _, c := range numericColumns {
		present := make([]float64, 0, len(vs))
		for i := range vs {
			if x := *c.field(&vs[i]); !math.IsNaN(x) {
				present = append(present, x)
			}
		}
		if len(present) == 0 || len(present) == len(vs) {
			continue
		}
		mean := stat.Mean(present, nil)
		for i := range vs {
			if f := c.field(&vs[i]); math.IsNaN(*f) {
				*f = mean
			}
		}
	}
}
