package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/briefwire/briefwire/internal/dashboard"
	"github.com/briefwire/briefwire/internal/ledger"
	"github.com/briefwire/briefwire/internal/scheduler"
	"log/slog"
)

// Stores bundles the persistence surfaces the API needs. One storage
// implementation typically satisfies all of them.
type Stores struct {
	Sources   SourceRepository
	Schedules ScheduleRepository
	Digests   DigestReader
	Errors    ErrorLister
}

// SetupRoutes configures all API routes
func SetupRoutes(
	mux *http.ServeMux,
	aggregator *dashboard.Aggregator,
	led *ledger.Ledger,
	stores Stores,
	fetcher FetchRunner,
	retrier Retrier,
	pipeline PipelineRunner,
	runs *scheduler.State,
	fetchInterval time.Duration,
	logger *slog.Logger,
) {
	dashboardHandler := NewDashboardHandler(aggregator, logger)
	runHandlers := NewRunHandlers(led, stores.Errors, logger)
	sourceHandlers := NewSourceHandlers(stores.Sources, retrier, logger)
	controlHandlers := NewControlHandlers(fetcher, pipeline, stores.Schedules, runs, fetchInterval, logger)
	scheduleHandlers := NewScheduleHandlers(stores.Schedules, logger)
	digestHandler := NewDigestHandler(stores.Digests, logger)

	// Dashboard
	mux.HandleFunc("/api/dashboard", dashboardHandler.GetSnapshot)

	// Run ledger
	mux.HandleFunc("/api/runs", runHandlers.ListRuns)
	mux.HandleFunc("/api/runs/", runHandlers.GetRun)
	mux.HandleFunc("/api/ingestion-errors", runHandlers.ListErrors)

	// Sources
	mux.HandleFunc("/api/sources", sourceHandlers.HandleSources)
	mux.HandleFunc("/api/sources/", sourceHandlers.HandleSourceByID)

	// Operator controls
	mux.HandleFunc("/api/control/run-fetch", controlHandlers.TriggerFetch)
	mux.HandleFunc("/api/control/run-pipeline", controlHandlers.TriggerPipeline)
	mux.HandleFunc("/api/control/stop", controlHandlers.StopTask)

	// Schedules
	mux.HandleFunc("/api/schedules", scheduleHandlers.ListSchedules)
	mux.HandleFunc("/api/schedules/", scheduleHandlers.HandleScheduleByFamily)

	// Digest
	mux.HandleFunc("/api/digest/latest", digestHandler.GetLatest)

	// Liveness
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
}
