package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/briefwire/briefwire/internal/api"
	"github.com/briefwire/briefwire/internal/cloudsql"
	"github.com/briefwire/briefwire/internal/config"
	"github.com/briefwire/briefwire/internal/dashboard"
	"github.com/briefwire/briefwire/internal/database"
	"github.com/briefwire/briefwire/internal/digest"
	"github.com/briefwire/briefwire/internal/enrich"
	"github.com/briefwire/briefwire/internal/fetch"
	"github.com/briefwire/briefwire/internal/health"
	"github.com/briefwire/briefwire/internal/ledger"
	"github.com/briefwire/briefwire/internal/logging"
	"github.com/briefwire/briefwire/internal/metrics"
	"github.com/briefwire/briefwire/internal/models"
	"github.com/briefwire/briefwire/internal/pipeline"
	"github.com/briefwire/briefwire/internal/scheduler"
	"github.com/briefwire/briefwire/internal/server"
	"log/slog"
)

// store is the union of every repository contract the process wires
// together. Both the Postgres store and the in-memory store satisfy it.
type store interface {
	api.SourceRepository
	api.ScheduleRepository
	api.ErrorLister
	ledger.RunRepository
	fetch.ItemWriter
	fetch.ErrorRecorder
	pipeline.ItemRepository
	digest.ItemReader
	digest.Store
	dashboard.QueueReader
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting briefwire")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage: Postgres when configured (directly or through Cloud SQL),
	// otherwise in-memory for development.
	var repo store
	dbURL, err := cloudsql.ResolveDatabaseURL()
	if err != nil {
		logger.Warn("no database configured, using in-memory store", "reason", err)
		repo = database.NewMemoryStore()
	} else {
		logger.Info("connecting to database", "config", cloudsql.ConnectionInfo())

		dbCfg := database.Config{
			URL:                dbURL,
			MaxConnections:     cfg.Database.MaxConnections,
			MaxIdleConnections: cfg.Database.MaxIdleConnections,
			ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
			ConnectTimeout:     cfg.Database.ConnectTimeout,
		}
		db, err := database.Connect(ctx, dbCfg)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := database.RunMigrations(db, logger); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		repo = database.NewPostgresStore(db)
	}

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	led := ledger.New(repo, logger, false)
	runs := scheduler.NewState()

	thresholds := health.Thresholds{
		Degraded: cfg.Orchestra.DegradedAfter,
		Dead:     cfg.Orchestra.DeadAfter,
	}

	fetchSched := fetch.NewScheduler(
		repo, repo, repo, led,
		[]fetch.Extractor{fetch.NewFeedExtractor(), fetch.NewAgentExtractor()},
		thresholds, collector, logger,
		fetch.Config{Concurrency: cfg.Orchestra.FetchConcurrency, Timeout: cfg.Orchestra.FetchTimeout},
	)

	var enricher pipeline.Enricher
	if cfg.OpenAI.APIKey != "" {
		openaiEnricher, err := enrich.NewOpenAIEnricher(cfg.OpenAI, logger)
		if err != nil {
			logger.Error("failed to init openai enricher", "error", err)
			os.Exit(1)
		}
		logger.Info("using openai enricher", "model", cfg.OpenAI.Model, "embedding_model", cfg.OpenAI.EmbeddingModel)
		enricher = openaiEnricher
	} else {
		logger.Warn("no OPENAI_API_KEY set, using rule-based enricher")
		enricher = enrich.NewRuleBasedEnricher()
	}

	runner := pipeline.NewRunner(enricher, repo, led, collector, logger,
		pipeline.RunnerConfig{StageTimeout: cfg.Orchestra.StageTimeout})
	coordinator := pipeline.NewCoordinator(runner, repo, led, logger,
		pipeline.CoordinatorConfig{MaxItems: cfg.Orchestra.BatchSize, Concurrency: cfg.Orchestra.PipelineConcurrency})

	digestGen := digest.NewGenerator(repo, repo, led, logger)

	if err := seedSchedules(ctx, repo, cfg.Orchestra); err != nil {
		logger.Error("failed to seed schedules", "error", err)
		os.Exit(1)
	}

	fetchLoop := scheduler.NewTaskScheduler(models.FamilyFetch, repo, func(ctx context.Context) error {
		interval := cfg.Orchestra.FetchInterval
		if sc, err := repo.GetSchedule(ctx, models.FamilyFetch); err == nil && sc != nil {
			if d := sc.EffectiveInterval(); d > 0 {
				interval = d
			}
		}
		_, _, err := fetchSched.RunDue(ctx, interval, runs)
		return err
	}, logger)

	pipelineLoop := scheduler.NewTaskScheduler(models.FamilyPipeline, repo, func(ctx context.Context) error {
		batchSize := cfg.Orchestra.BatchSize
		if sc, err := repo.GetSchedule(ctx, models.FamilyPipeline); err == nil && sc != nil && sc.BatchSize > 0 {
			batchSize = sc.BatchSize
		}
		_, _, err := coordinator.RunBatch(ctx, batchSize, runs)
		return err
	}, logger)

	digestLoop := scheduler.NewTaskScheduler(models.FamilyDigest, repo, digestGen.Run, logger)

	go fetchLoop.Start(ctx)
	go pipelineLoop.Start(ctx)
	go digestLoop.Start(ctx)

	aggregator := dashboard.NewAggregator(repo, repo, repo, repo, led, fetchSched, runs)

	mux := http.NewServeMux()
	api.SetupRoutes(mux, aggregator, led, api.Stores{
		Sources:   repo,
		Schedules: repo,
		Digests:   repo,
		Errors:    repo,
	}, fetchSched, fetchSched, coordinator, runs, cfg.Orchestra.FetchInterval, logger)
	mux.Handle("/metrics", collector.Handler())

	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		fetchLoop.Stop()
		pipelineLoop.Stop()
		digestLoop.Stop()
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown failed", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("briefwire stopped")
}

// seedSchedules installs the default per-family schedules on first start;
// existing rows are left alone so operator changes survive restarts.
func seedSchedules(ctx context.Context, schedules api.ScheduleRepository, cfg config.OrchestrationConfig) error {
	defaults := []models.ScheduleConfig{
		{Family: models.FamilyFetch, Enabled: true, Interval: cfg.FetchInterval},
		{Family: models.FamilyPipeline, Enabled: true, Interval: cfg.PipelineInterval, BatchSize: cfg.BatchSize},
		{Family: models.FamilyDigest, Enabled: true, TimeOfDay: cfg.DigestTimeOfDay},
	}
	for _, def := range defaults {
		existing, err := schedules.GetSchedule(ctx, def.Family)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if err := schedules.UpsertSchedule(ctx, def); err != nil {
			return err
		}
	}
	return nil
}
