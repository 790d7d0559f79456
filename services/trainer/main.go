package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cityflow/config"
	"cityflow/internal/accident"
	"cityflow/internal/features"
	"cityflow/internal/negatives"
	"cityflow/internal/notify"
	"cityflow/internal/recorder"
	"cityflow/internal/reference"
	"cityflow/internal/store"
	"cityflow/internal/trainset"

	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// summaryChannel carries one JSON recorder.Run per finished build.
const summaryChannel = "cityflow:training-runs"

var errNoRecords = errors.New("store returned no accident records")

var (
	buildsRun = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cityflow_trainer_builds_total",
		Help: "Total number of training-set builds started.",
	})
	buildsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cityflow_trainer_builds_failed_total",
		Help: "Total number of training-set builds aborted by an error.",
	})
	rowsProduced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cityflow_trainer_rows_total",
		Help: "Total number of training rows produced, by label.",
	}, []string{"label"})
	buildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cityflow_trainer_build_duration_seconds",
		Help:    "Duration of a full training-set build.",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
	})
)

type reader interface {
	ReadAll(ctx context.Context, collection string, limit int, order accident.SortOrder) ([]accident.Record, error)
}

// builder runs one pass of feature join, negative sampling, assembly and
// split, then hands the result to every recorder.
type builder struct {
	store      reader
	collection string
	readLimit  int
	reference  func(ctx context.Context) (*reference.Data, error)
	settings   config.PipelineConfig
	recorders  []recorder.Recorder
	publisher  notify.Publisher
	logger     *log.Logger
}

func main() {
	os.Exit(run())
}

// run wires the trainer and returns the process exit code. Deferred
// connection cleanup runs before main exits.
func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("config load failed: %v", err)
		return 1
	}
	if err := cfg.Pipeline.Validate(); err != nil {
		log.Printf("invalid pipeline settings: %v", err)
		return 1
	}

	uri := cfg.Database.GetDSN()
	if cfg.Store.Backend == "mongo" || cfg.Store.Backend == "mongodb" {
		uri = cfg.Store.MongoURI
	}
	st, err := store.Open(ctx, cfg.Store.Backend, uri, cfg.Store.MongoDatabase)
	if err != nil {
		log.Printf("store init failed: %v", err)
		return 1
	}
	defer st.Close(context.Background())

	b := &builder{
		store:      st,
		collection: cfg.Store.InsertCollection,
		readLimit:  cfg.Store.ReadLimit,
		reference:  referenceSource(cfg.Pipeline, reference.NewCache(0)),
		settings:   cfg.Pipeline,
		recorders:  []recorder.Recorder{recorder.CSV{Dir: cfg.Pipeline.OutputDir}},
		logger:     log.Default(),
	}

	db, err := recorder.Connect(ctx, cfg.Database.GetDSN())
	if err != nil {
		log.Printf("training db unavailable, writing CSV only: %v", err)
	} else {
		defer db.Close()
		pg := recorder.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Printf("training schema init failed: %v", err)
			return 1
		}
		b.recorders = append(b.recorders, pg)
	}

	if client, err := notify.DialRedis(ctx, cfg.Redis.URL()); err != nil {
		log.Printf("redis unavailable, run summaries will not be published: %v", err)
	} else {
		defer client.Close()
		b.publisher = notify.NewRedis(client)
	}

	if cfg.Schedule.TrainRunOnce {
		return runOnce(ctx, b)
	}

	go serveHTTP(cfg.Server.MetricsAddr)

	log.Printf("trainer running: interval=%s collection=%s read_limit=%d iterations=%d test_fraction=%.2f seed=%d",
		cfg.Schedule.TrainInterval, b.collection, b.readLimit,
		cfg.Pipeline.Iterations, cfg.Pipeline.TestFraction, cfg.Pipeline.Seed)

	runCycle(ctx, b)

	ticker := time.NewTicker(cfg.Schedule.TrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runCycle(ctx, b)
		case <-ctx.Done():
			log.Printf("trainer shutting down")
			return 0
		}
	}
}

// runOnce performs a single build and maps its outcome to an exit code.
func runOnce(ctx context.Context, b *builder) int {
	if _, err := runCycle(ctx, b); err != nil {
		return 1
	}
	return 0
}

// referenceSource loads reference tables from ReferenceDir through cache.
// When a bounding box is configured, signals come from Overpass instead of
// the signals file.
func referenceSource(p config.PipelineConfig, cache *reference.Cache) func(context.Context) (*reference.Data, error) {
	opts := reference.Options{County: p.County, Year: p.Year}
	source := "files:" + p.ReferenceDir

	var signals reference.SignalSource
	if len(p.OverpassBBox) == 4 {
		endpoint := p.OverpassEndpoint
		if endpoint == "" {
			endpoint = reference.DefaultOverpassEndpoint
		}
		bound := orb.Bound{
			Min: orb.Point{p.OverpassBBox[0], p.OverpassBBox[1]},
			Max: orb.Point{p.OverpassBBox[2], p.OverpassBBox[3]},
		}
		signals = reference.NewOverpassSignals(endpoint, bound, 60*time.Second)
		source += "+overpass"
	}

	return func(ctx context.Context) (*reference.Data, error) {
		return cache.Get(ctx, reference.Key(source, opts), func(ctx context.Context) (*reference.Data, error) {
			l := reference.NewLoader(os.DirFS(p.ReferenceDir), opts, log.Default())
			if signals != nil {
				l.WithSignalSource(signals)
			}
			return l.Load(ctx)
		})
	}
}

func runCycle(ctx context.Context, b *builder) (recorder.Run, error) {
	start := time.Now()
	buildsRun.Inc()
	defer func() {
		buildDuration.Observe(time.Since(start).Seconds())
	}()

	run, err := b.build(ctx)
	if err != nil {
		buildsFailed.Inc()
		log.Printf("training-set build failed: %v", err)
		return run, err
	}
	rowsProduced.WithLabelValues("accident").Add(float64(run.Positives))
	rowsProduced.WithLabelValues("non_accident").Add(float64(run.Negatives))
	log.Printf("training-set build %s completed: positives=%d negatives=%d train=%d test=%d (%.2fs)",
		run.ID, run.Positives, run.Negatives, run.TrainRows, run.TestRows, time.Since(start).Seconds())
	return run, nil
}

func (b *builder) build(ctx context.Context) (recorder.Run, error) {
	records, err := b.store.ReadAll(ctx, b.collection, b.readLimit, accident.Descending)
	if err != nil {
		return recorder.Run{}, fmt.Errorf("read %s: %w", b.collection, err)
	}
	if len(records) == 0 {
		return recorder.Run{}, errNoRecords
	}

	ref, err := b.reference(ctx)
	if err != nil {
		return recorder.Run{}, fmt.Errorf("load reference data: %w", err)
	}

	joiner := features.NewJoiner(ref, features.Config{
		Highways:     b.settings.Highways,
		SignalRadius: b.settings.SignalRadius,
		Location:     b.settings.Location(),
	}, b.logger)
	positives := joiner.Join(records)

	rng := rand.New(rand.NewPCG(b.settings.Seed, b.settings.Seed))
	negs := negatives.NewGenerator(rng, b.logger).Generate(positives, b.settings.Iterations)

	frame, err := trainset.NewAssembler(b.logger).Assemble(positives, negs)
	if err != nil {
		return recorder.Run{}, err
	}
	set, err := trainset.Split(frame, b.settings.TestFraction, b.settings.Seed)
	if err != nil {
		return recorder.Run{}, err
	}

	run := recorder.NewRun(len(positives), len(negs), set)
	run.TestFraction = b.settings.TestFraction
	run.Seed = int64(b.settings.Seed)
	run.MissingColumns = strings.Join(frame.Missing, ",")
	run.OutputDir = b.settings.OutputDir

	for _, r := range b.recorders {
		if err := r.Record(ctx, run, set); err != nil {
			return run, fmt.Errorf("record run %s: %w", run.ID, err)
		}
	}

	b.publish(ctx, run)
	return run, nil
}

func (b *builder) publish(ctx context.Context, run recorder.Run) {
	if b.publisher == nil {
		return
	}
	data, err := json.Marshal(run)
	if err != nil {
		b.logger.Printf("json marshal failed for run=%s: %v", run.ID, err)
		return
	}
	if err := b.publisher.Publish(ctx, summaryChannel, data); err != nil {
		b.logger.Printf("redis publish failed for run=%s: %v", run.ID, err)
	}
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
