// Package feed fetches the current CMPD accident list over REST or SOAP and
// converts it into typed records.
package feed

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"cityflow/internal/accident"
)

var ErrStatus = errors.New("unexpected response status")

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02 15:04:05",
	"1/2/2006 3:04:05 PM",
}

// fields is one upstream event keyed by the normalized field names.
type fields struct {
	EventNo     string
	DateTimeAdd string
	Division    string
	Address     string
	EventType   string
	EventDesc   string
	Latitude    string
	Longitude   string
	XCoord      string
	YCoord      string
	Raw         map[string]any
}

// builder turns upstream fields into validated records.
type builder struct {
	loc      *time.Location
	validate *validator.Validate
	logger   *log.Logger
}

func newBuilder(loc *time.Location, logger *log.Logger) builder {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = log.Default()
	}
	return builder{loc: loc, validate: validator.New(), logger: logger}
}

func (b builder) record(f fields) (accident.Record, error) {
	ts, err := b.parseTime(f.DateTimeAdd)
	if err != nil {
		return accident.Record{}, err
	}
	lat, err := coordinate("Latitude", f.Latitude)
	if err != nil {
		return accident.Record{}, fmt.Errorf("event %q: %w", f.EventNo, err)
	}
	lon, err := coordinate("Longitude", f.Longitude)
	if err != nil {
		return accident.Record{}, fmt.Errorf("event %q: %w", f.EventNo, err)
	}
	r := accident.Record{
		EventNo:     strings.TrimSpace(f.EventNo),
		DateTimeAdd: ts,
		Division:    strings.TrimSpace(f.Division),
		Address:     strings.TrimSpace(f.Address),
		EventType:   strings.TrimSpace(f.EventType),
		EventDesc:   strings.TrimSpace(f.EventDesc),
		Latitude:    lat,
		Longitude:   lon,
		XCoord:      number(f.XCoord),
		YCoord:      number(f.YCoord),
		Raw:         f.Raw,
	}
	if err := b.validate.Struct(r); err != nil {
		return accident.Record{}, fmt.Errorf("event %q: %w", r.EventNo, err)
	}
	return r, nil
}

// collect builds records from every item, logging and skipping the invalid ones.
func (b builder) collect(items []fields) []accident.Record {
	out := make([]accident.Record, 0, len(items))
	for _, f := range items {
		r, err := b.record(f)
		if err != nil {
			b.logger.Printf("feed: skipping invalid event: %v", err)
			continue
		}
		out = append(out, r)
	}
	return out
}

func (b builder) parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("missing DateTimeAdd")
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, b.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized DateTimeAdd %q", s)
}

// coordinate parses a required latitude or longitude. Unlike number it has
// no 0 fallback.
func coordinate(name, s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("missing %s", name)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", name, s, err)
	}
	return v, nil
}

func number(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
