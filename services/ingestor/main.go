package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cityflow/config"
	"cityflow/internal/feed"
	"cityflow/internal/ingest"
	"cityflow/internal/notify"
	"cityflow/internal/store"
	"cityflow/internal/weather"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cyclesRun = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cityflow_ingestor_cycles_total",
		Help: "Total number of ingestion cycles started.",
	})
	recordsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cityflow_ingestor_records_fetched_total",
		Help: "Total number of accident records returned by the feed.",
	})
	recordsInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cityflow_ingestor_records_inserted_total",
		Help: "Total number of new accident records written to the store.",
	})
	cyclesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cityflow_ingestor_cycles_failed_total",
		Help: "Total number of ingestion cycles aborted by an error.",
	})
	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cityflow_ingestor_cycle_duration_seconds",
		Help:    "Duration of a full ingestion cycle.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60},
	})
)

// runner is the part of ingest.Engine the loop drives.
type runner interface {
	Run(ctx context.Context) (ingest.Result, error)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer st.Close(context.Background())

	src, err := newFeed(cfg)
	if err != nil {
		log.Fatalf("feed init failed: %v", err)
	}
	wx := weather.NewClient(cfg.Weather.Endpoint, cfg.Weather.APIKey, cfg.Weather.Units, cfg.Weather.Timeout)

	engine := ingest.NewEngine(src, wx, st, engineConfig(cfg), log.Default())
	publishers, closeAll := dialPublishers(ctx, cfg)
	defer closeAll()
	if len(publishers) > 0 {
		engine.WithPublisher(publishers)
	}

	go serveHTTP(cfg.Server.MetricsAddr)

	log.Printf("ingestor running: store=%s feed=%s interval=%s lookup=%s insert=%s publishers=%d",
		cfg.Store.Backend, cfg.Feed.Kind, cfg.Schedule.IngestInterval,
		cfg.Store.LookupCollection, cfg.Store.InsertCollection, len(publishers))

	runCycle(ctx, engine)

	ticker := time.NewTicker(cfg.Schedule.IngestInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runCycle(ctx, engine)
		case <-ctx.Done():
			log.Printf("ingestor shutting down")
			return
		}
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	uri := cfg.Database.GetDSN()
	if cfg.Store.Backend == "mongo" || cfg.Store.Backend == "mongodb" {
		uri = cfg.Store.MongoURI
	}
	st, err := store.Open(ctx, cfg.Store.Backend, uri, cfg.Store.MongoDatabase)
	if err != nil {
		return nil, err
	}

	collections := []string{cfg.Store.LookupCollection}
	if cfg.Store.InsertCollection != cfg.Store.LookupCollection {
		collections = append(collections, cfg.Store.InsertCollection)
	}
	for _, c := range collections {
		switch s := st.(type) {
		case *store.Postgres:
			err = s.EnsureSchema(ctx, c)
		case *store.Mongo:
			s.Transactions = cfg.Store.MongoTransactions
			err = s.EnsureIndexes(ctx, c)
		}
		if err != nil {
			st.Close(ctx)
			return nil, err
		}
	}
	return st, nil
}

func newFeed(cfg *config.Config) (ingest.Feed, error) {
	loc := cfg.Pipeline.Location()
	switch cfg.Feed.Kind {
	case "soap", "":
		endpoint := cfg.Feed.Endpoint
		if endpoint == "" {
			endpoint = feed.DefaultSOAPEndpoint
		}
		return feed.NewSOAP(endpoint, cfg.Feed.Timeout, loc, log.Default()), nil
	case "rest":
		if cfg.Feed.Endpoint == "" {
			return nil, fmt.Errorf("FEED_ENDPOINT is required for the rest feed")
		}
		return feed.NewREST(cfg.Feed.Endpoint, cfg.Feed.Timeout, loc, log.Default()), nil
	default:
		return nil, fmt.Errorf("unknown feed kind %q", cfg.Feed.Kind)
	}
}

func engineConfig(cfg *config.Config) ingest.Config {
	return ingest.Config{
		LookupCollection: cfg.Store.LookupCollection,
		InsertCollection: cfg.Store.InsertCollection,
		LookupLimit:      cfg.Store.LookupLimit,
		Subject:          cfg.Notify.Channel,
	}
}

// dialPublishers connects every configured transport. A transport that
// cannot be reached is skipped so ingestion still runs.
func dialPublishers(ctx context.Context, cfg *config.Config) (notify.Multi, func()) {
	var pubs notify.Multi
	var closers []func()

	if cfg.Redis.Host != "" {
		client, err := notify.DialRedis(ctx, cfg.Redis.URL())
		if err != nil {
			log.Printf("redis unavailable, skipping: %v", err)
		} else {
			pubs = append(pubs, notify.NewRedis(client))
			closers = append(closers, func() { client.Close() })
		}
	}
	if cfg.Notify.MQTTBroker != "" {
		client, err := notify.DialMQTT(cfg.Notify.MQTTBroker, "ingestor")
		if err != nil {
			log.Printf("mqtt unavailable, skipping: %v", err)
		} else {
			pubs = append(pubs, notify.NewMQTT(client, cfg.Notify.MQTTTopicPrefix, 5*time.Second))
			closers = append(closers, func() { client.Disconnect(250) })
		}
	}
	if cfg.Notify.NATSURL != "" {
		nc, err := notify.DialNATS(cfg.Notify.NATSURL)
		if err != nil {
			log.Printf("nats unavailable, skipping: %v", err)
		} else {
			pubs = append(pubs, notify.NewNATS(nc))
			closers = append(closers, func() { nc.Drain() })
		}
	}

	return pubs, func() {
		for _, c := range closers {
			c()
		}
	}
}

func runCycle(ctx context.Context, r runner) {
	start := time.Now()
	cyclesRun.Inc()
	defer func() {
		cycleDuration.Observe(time.Since(start).Seconds())
	}()

	res, err := r.Run(ctx)
	recordsFetched.Add(float64(res.Fetched))
	if err != nil {
		cyclesFailed.Inc()
		log.Printf("ingest cycle failed: %v", err)
		return
	}
	recordsInserted.Add(float64(res.Inserted))
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func serveHTTP(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", handleHealth)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("metrics server listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("metrics server failed: %v", err)
	}
}
