// Package ingest reconciles a freshly fetched accident batch against the
// persisted store and writes only the events the store has not seen.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"cityflow/internal/accident"
)

// DefaultLookupLimit caps how many ids one FindIDs call may ask about.
const DefaultLookupLimit = 1000

type Feed interface {
	Fetch(ctx context.Context) ([]accident.Record, error)
}

type Weather interface {
	Get(ctx context.Context, lat, lon float64) (*accident.Weather, error)
}

type Store interface {
	FindIDs(ctx context.Context, collection string, ids []string, limit int) ([]string, error)
	InsertBulk(ctx context.Context, collection string, records []accident.Record) error
}

// Publisher announces newly inserted records.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte) error
}

type Config struct {
	LookupCollection string
	InsertCollection string
	LookupLimit      int
	Subject          string
}

type Result struct {
	Fetched  int
	Existing int
	Inserted int
}

type Engine struct {
	feed      Feed
	weather   Weather
	store     Store
	cfg       Config
	publisher Publisher
	logger    *log.Logger
}

func NewEngine(feed Feed, weather Weather, store Store, cfg Config, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.LookupLimit <= 0 {
		cfg.LookupLimit = DefaultLookupLimit
	}
	if cfg.InsertCollection == "" {
		cfg.InsertCollection = cfg.LookupCollection
	}
	return &Engine{feed: feed, weather: weather, store: store, cfg: cfg, logger: logger}
}

// WithPublisher sets where inserted records are announced. Publishing is best effort.
func (e *Engine) WithPublisher(p Publisher) *Engine {
	e.publisher = p
	return e
}

// Run performs one fetch, reconcile, enrich and insert pass. Any collaborator
// error aborts the pass before anything is written.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	var res Result

	batch, err := e.feed.Fetch(ctx)
	if err != nil {
		return res, fmt.Errorf("fetch feed: %w", err)
	}
	res.Fetched = len(batch)

	current := accident.IDs(batch)
	existing, err := e.existingIDs(ctx, unique(current))
	if err != nil {
		return res, err
	}
	res.Existing = len(existing)

	fresh := NewIDs(current, existing)
	if len(fresh) == 0 {
		e.logger.Printf("ingest: fetched=%d existing=%d new=0", res.Fetched, res.Existing)
		return res, nil
	}

	records := Select(batch, fresh)
	for i := range records {
		w, err := e.weather.Get(ctx, records[i].Latitude, records[i].Longitude)
		if err != nil {
			return res, fmt.Errorf("weather for %s: %w", records[i].EventNo, err)
		}
		records[i].Weather = w
	}

	if err := e.store.InsertBulk(ctx, e.cfg.InsertCollection, records); err != nil {
		return res, fmt.Errorf("insert %d records into %s: %w", len(records), e.cfg.InsertCollection, err)
	}
	res.Inserted = len(records)
	e.logger.Printf("ingest: fetched=%d existing=%d new=%d", res.Fetched, res.Existing, res.Inserted)

	e.publish(ctx, records)
	return res, nil
}

// existingIDs asks the store about ids in chunks no larger than the lookup
// limit. When inserts go to a separate collection it is searched too, so
// records written by earlier runs are recognized.
func (e *Engine) existingIDs(ctx context.Context, ids []string) ([]string, error) {
	collections := []string{e.cfg.LookupCollection}
	if e.cfg.InsertCollection != e.cfg.LookupCollection {
		collections = append(collections, e.cfg.InsertCollection)
	}

	var found []string
	seen := make(map[string]struct{}, len(ids))
	limit := e.cfg.LookupLimit
	for _, coll := range collections {
		for start := 0; start < len(ids); start += limit {
			end := min(start+limit, len(ids))
			got, err := e.store.FindIDs(ctx, coll, ids[start:end], limit)
			if err != nil {
				return nil, fmt.Errorf("lookup existing ids in %s: %w", coll, err)
			}
			for _, id := range got {
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				found = append(found, id)
			}
		}
	}
	return found, nil
}

func (e *Engine) publish(ctx context.Context, records []accident.Record) {
	if e.publisher == nil {
		return
	}
	for _, r := range records {
		payload, err := json.Marshal(r)
		if err != nil {
			e.logger.Printf("ingest: marshal %s: %v", r.EventNo, err)
			continue
		}
		if err := e.publisher.Publish(ctx, e.cfg.Subject, payload); err != nil {
			e.logger.Printf("ingest: publish %s: %v", r.EventNo, err)
		}
	}
}

// NewIDs returns current minus existing, in order of first appearance in
// current. Duplicates in current collapse to one id and empty ids are dropped.
func NewIDs(current, existing []string) []string {
	known := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		known[id] = struct{}{}
	}
	var out []string
	for _, id := range current {
		if id == "" {
			continue
		}
		if _, ok := known[id]; ok {
			continue
		}
		known[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Select returns copies of the first record for each id, in ids order.
func Select(batch []accident.Record, ids []string) []accident.Record {
	byID := make(map[string]accident.Record, len(batch))
	for _, r := range batch {
		if _, ok := byID[r.EventNo]; !ok {
			byID[r.EventNo] = r
		}
	}
	out := make([]accident.Record, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
