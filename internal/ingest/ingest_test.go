package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"reflect"
	"sort"
	"testing"

	"cityflow/internal/accident"
)

type fakeFeed struct {
	records []accident.Record
	err     error
}

func (f *fakeFeed) Fetch(context.Context) ([]accident.Record, error) {
	return f.records, f.err
}

type fakeWeather struct {
	calls int
	err   error
}

func (w *fakeWeather) Get(_ context.Context, lat, lon float64) (*accident.Weather, error) {
	w.calls++
	if w.err != nil {
		return nil, w.err
	}
	return &accident.Weather{Temperature: lat + lon, Category: "Clear"}, nil
}

type memStore struct {
	ids        map[string]bool
	inserts    [][]accident.Record
	lookups    [][]string
	insertErr  error
	lookupErr  error
	collection string
}

func newMemStore(ids ...string) *memStore {
	s := &memStore{ids: map[string]bool{}}
	for _, id := range ids {
		s.ids[id] = true
	}
	return s
}

func (s *memStore) FindIDs(_ context.Context, _ string, ids []string, limit int) ([]string, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	s.lookups = append(s.lookups, append([]string(nil), ids...))
	var out []string
	for _, id := range ids {
		if s.ids[id] && len(out) < limit {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *memStore) InsertBulk(_ context.Context, collection string, records []accident.Record) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.collection = collection
	s.inserts = append(s.inserts, records)
	for _, r := range records {
		s.ids[r.EventNo] = true
	}
	return nil
}

type fakePublisher struct {
	subjects []string
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, subject string, _ []byte) error {
	p.subjects = append(p.subjects, subject)
	return p.err
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func records(ids ...string) []accident.Record {
	out := make([]accident.Record, len(ids))
	for i, id := range ids {
		out[i] = accident.Record{EventNo: id, Latitude: 35.2, Longitude: -80.8, Address: "addr " + id}
	}
	return out
}

func TestRunInsertsOnlyNew(t *testing.T) {
	feed := &fakeFeed{records: records("A1", "A2")}
	weather := &fakeWeather{}
	store := newMemStore("A1")

	e := NewEngine(feed, weather, store, Config{LookupCollection: "accidents"}, quietLogger())
	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := Result{Fetched: 2, Existing: 1, Inserted: 1}
	if res != want {
		t.Errorf("result = %+v, want %+v", res, want)
	}
	if len(store.inserts) != 1 || len(store.inserts[0]) != 1 {
		t.Fatalf("inserts = %v, want one 1-element batch", store.inserts)
	}
	got := store.inserts[0][0]
	if got.EventNo != "A2" || got.Weather == nil || got.Address != "addr A2" {
		t.Errorf("inserted = %+v", got)
	}
	if weather.calls != 1 {
		t.Errorf("weather calls = %d, want 1", weather.calls)
	}
	if store.collection != "accidents" {
		t.Errorf("insert collection = %q, want lookup collection by default", store.collection)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	feed := &fakeFeed{records: records("A1", "A2", "A3")}
	store := newMemStore()
	e := NewEngine(feed, &fakeWeather{}, store, Config{LookupCollection: "accidents"}, quietLogger())

	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Inserted != 0 || len(store.inserts) != 1 {
		t.Errorf("second run inserted %d, total insert calls %d", res.Inserted, len(store.inserts))
	}
}

func TestRunNoNewRecordsSkipsWrite(t *testing.T) {
	store := newMemStore("A1", "A2", "A3")
	weather := &fakeWeather{}
	e := NewEngine(&fakeFeed{records: records("A1", "A2")}, weather, store, Config{}, quietLogger())

	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Inserted != 0 || len(store.inserts) != 0 || weather.calls != 0 {
		t.Errorf("res=%+v inserts=%d weather=%d", res, len(store.inserts), weather.calls)
	}
}

func TestRunChunksLookups(t *testing.T) {
	store := newMemStore("A2", "A5")
	e := NewEngine(&fakeFeed{records: records("A1", "A2", "A3", "A4", "A5")}, &fakeWeather{}, store,
		Config{LookupCollection: "accidents", LookupLimit: 2}, quietLogger())

	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantLookups := [][]string{{"A1", "A2"}, {"A3", "A4"}, {"A5"}}
	if !reflect.DeepEqual(store.lookups, wantLookups) {
		t.Errorf("lookups = %v, want %v", store.lookups, wantLookups)
	}
	if res.Existing != 2 || res.Inserted != 3 {
		t.Errorf("res = %+v", res)
	}
}

func TestRunSeparateInsertCollection(t *testing.T) {
	store := newMemStore()
	e := NewEngine(&fakeFeed{records: records("A1")}, &fakeWeather{}, store,
		Config{LookupCollection: "accidents", InsertCollection: "accidentsv2"}, quietLogger())
	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if store.collection != "accidentsv2" {
		t.Errorf("collection = %q, want accidentsv2", store.collection)
	}
}

// collectionStore keeps ids per collection and rejects duplicate inserts
// the way a primary key or unique index would.
type collectionStore struct {
	ids map[string]map[string]bool
}

func newCollectionStore() *collectionStore {
	return &collectionStore{ids: map[string]map[string]bool{}}
}

func (s *collectionStore) FindIDs(_ context.Context, collection string, ids []string, limit int) ([]string, error) {
	var out []string
	for _, id := range ids {
		if s.ids[collection][id] && len(out) < limit {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *collectionStore) InsertBulk(_ context.Context, collection string, records []accident.Record) error {
	if s.ids[collection] == nil {
		s.ids[collection] = map[string]bool{}
	}
	for _, r := range records {
		if s.ids[collection][r.EventNo] {
			return fmt.Errorf("duplicate key %s in %s", r.EventNo, collection)
		}
	}
	for _, r := range records {
		s.ids[collection][r.EventNo] = true
	}
	return nil
}

func TestRunSeparateInsertCollectionIsIdempotent(t *testing.T) {
	store := newCollectionStore()
	store.ids["accidents"] = map[string]bool{"A0": true}
	feed := &fakeFeed{records: records("A0", "A1", "A2")}
	weather := &fakeWeather{}
	e := NewEngine(feed, weather, store,
		Config{LookupCollection: "accidents", InsertCollection: "accidentsv2"}, quietLogger())

	first, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if first.Existing != 1 || first.Inserted != 2 {
		t.Errorf("first = %+v, want Existing 1 Inserted 2", first)
	}

	second, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.Existing != 3 || second.Inserted != 0 {
		t.Errorf("second = %+v, want Existing 3 Inserted 0", second)
	}
	if weather.calls != 2 {
		t.Errorf("weather calls = %d, want 2", weather.calls)
	}
	if store.ids["accidentsv2"]["A0"] {
		t.Error("A0 already in the lookup collection must not be copied")
	}
}

func TestRunErrorsAbortBeforeWrite(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name    string
		feed    *fakeFeed
		weather *fakeWeather
		store   *memStore
	}{
		{"feed", &fakeFeed{err: boom}, &fakeWeather{}, newMemStore()},
		{"lookup", &fakeFeed{records: records("A1")}, &fakeWeather{}, &memStore{ids: map[string]bool{}, lookupErr: boom}},
		{"weather", &fakeFeed{records: records("A1", "A2")}, &fakeWeather{err: boom}, newMemStore()},
		{"insert", &fakeFeed{records: records("A1")}, &fakeWeather{}, &memStore{ids: map[string]bool{}, insertErr: boom}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(tt.feed, tt.weather, tt.store, Config{}, quietLogger())
			res, err := e.Run(context.Background())
			if !errors.Is(err, boom) {
				t.Fatalf("err = %v, want boom", err)
			}
			if res.Inserted != 0 || len(tt.store.inserts) != 0 {
				t.Errorf("write happened: res=%+v inserts=%d", res, len(tt.store.inserts))
			}
		})
	}
}

func TestRunPublishesInserted(t *testing.T) {
	pub := &fakePublisher{err: errors.New("unreachable")}
	e := NewEngine(&fakeFeed{records: records("A1", "A2")}, &fakeWeather{}, newMemStore(),
		Config{Subject: "cityflow:accidents"}, quietLogger()).WithPublisher(pub)

	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("publish failure should not fail the run: %v", err)
	}
	if res.Inserted != 2 || len(pub.subjects) != 2 || pub.subjects[0] != "cityflow:accidents" {
		t.Errorf("res=%+v subjects=%v", res, pub.subjects)
	}
}

func TestNewIDs(t *testing.T) {
	tests := []struct {
		name     string
		current  []string
		existing []string
		want     []string
	}{
		{"difference", []string{"A1", "A2"}, []string{"A1"}, []string{"A2"}},
		{"subset", []string{"A1"}, []string{"A1", "A2"}, nil},
		{"existing only ids ignored", []string{"B"}, []string{"A", "C"}, []string{"B"}},
		{"duplicates collapse", []string{"A", "B", "A"}, nil, []string{"A", "B"}},
		{"empty id dropped", []string{"", "A"}, nil, []string{"A"}},
		{"empty", nil, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewIDs(tt.current, tt.existing)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NewIDs = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewIDsOrderIndependent(t *testing.T) {
	a := NewIDs([]string{"C", "A", "B", "D"}, []string{"B", "X"})
	b := NewIDs([]string{"D", "B", "A", "C"}, []string{"X", "B"})
	sort.Strings(a)
	sort.Strings(b)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("%v != %v", a, b)
	}
}
