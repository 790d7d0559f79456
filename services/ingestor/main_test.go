package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"cityflow/config"
	"cityflow/internal/feed"
	"cityflow/internal/ingest"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeRunner struct {
	res ingest.Result
	err error
}

func (f fakeRunner) Run(context.Context) (ingest.Result, error) {
	return f.res, f.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("PIPELINE_SETTINGS", "")
	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	return cfg
}

func TestNewFeed(t *testing.T) {
	cfg := testConfig(t)

	tests := []struct {
		kind     string
		endpoint string
		wantErr  bool
		check    func(ingest.Feed) bool
	}{
		{"soap", "", false, func(f ingest.Feed) bool { _, ok := f.(*feed.SOAP); return ok }},
		{"rest", "http://feed.local/accidents", false, func(f ingest.Feed) bool { _, ok := f.(*feed.REST); return ok }},
		{"rest", "", true, nil},
		{"ftp", "", true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.kind+tt.endpoint, func(t *testing.T) {
			cfg.Feed.Kind = tt.kind
			cfg.Feed.Endpoint = tt.endpoint
			f, err := newFeed(cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("newFeed: %v", err)
			}
			if !tt.check(f) {
				t.Errorf("newFeed(%q) returned %T", tt.kind, f)
			}
		})
	}
}

func TestEngineConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.LookupCollection = "accidents"
	cfg.Store.InsertCollection = "accidentsv2"
	cfg.Store.LookupLimit = 250

	got := engineConfig(cfg)
	want := ingest.Config{
		LookupCollection: "accidents",
		InsertCollection: "accidentsv2",
		LookupLimit:      250,
		Subject:          cfg.Notify.Channel,
	}
	if got != want {
		t.Errorf("engineConfig() = %+v, want %+v", got, want)
	}
}

func TestRunCycleMetrics(t *testing.T) {
	runs := testutil.ToFloat64(cyclesRun)
	failed := testutil.ToFloat64(cyclesFailed)
	fetched := testutil.ToFloat64(recordsFetched)
	inserted := testutil.ToFloat64(recordsInserted)

	runCycle(context.Background(), fakeRunner{res: ingest.Result{Fetched: 5, Existing: 3, Inserted: 2}})
	runCycle(context.Background(), fakeRunner{res: ingest.Result{Fetched: 4}, err: errors.New("weather down")})

	if d := testutil.ToFloat64(cyclesRun) - runs; d != 2 {
		t.Errorf("cycles delta = %v, want 2", d)
	}
	if d := testutil.ToFloat64(cyclesFailed) - failed; d != 1 {
		t.Errorf("failed delta = %v, want 1", d)
	}
	if d := testutil.ToFloat64(recordsFetched) - fetched; d != 9 {
		t.Errorf("fetched delta = %v, want 9", d)
	}
	if d := testutil.ToFloat64(recordsInserted) - inserted; d != 2 {
		t.Errorf("inserted delta = %v, want 2", d)
	}
}

func TestDialPublishersSkipsDisabledTransports(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.Host = ""
	cfg.Notify.MQTTBroker = ""
	cfg.Notify.NATSURL = ""

	pubs, closeAll := dialPublishers(context.Background(), cfg)
	defer closeAll()
	if len(pubs) != 0 {
		t.Errorf("publishers = %d, want 0", len(pubs))
	}
}

func TestHandleHealth(t *testing.T) {
	w := httptest.NewRecorder()
	handleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Errorf("health = %d %q", w.Code, w.Body.String())
	}
}
