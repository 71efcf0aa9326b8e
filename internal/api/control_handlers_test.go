package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/briefwire/briefwire/internal/api"
	"github.com/briefwire/briefwire/internal/database"
	"github.com/briefwire/briefwire/internal/models"
	"github.com/briefwire/briefwire/internal/scheduler"
)

type fakeFetchRunner struct {
	mu    sync.Mutex
	calls int
	done  chan struct{}
}

func (f *fakeFetchRunner) RunDue(ctx context.Context, interval time.Duration, runs *scheduler.State) (string, models.FetchMeta, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	close(f.done)
	return "run-1", models.FetchMeta{Inserted: 1}, nil
}

type fakePipelineRunner struct {
	mu        sync.Mutex
	batchSize int
	done      chan struct{}
}

func (f *fakePipelineRunner) RunBatch(ctx context.Context, maxItems int, runs *scheduler.State) (string, models.BatchMeta, error) {
	f.mu.Lock()
	f.batchSize = maxItems
	f.mu.Unlock()
	close(f.done)
	return "run-2", models.BatchMeta{}, nil
}

func newControlHandlers(fetcher api.FetchRunner, pipeline api.PipelineRunner, runs *scheduler.State) *api.ControlHandlers {
	return api.NewControlHandlers(fetcher, pipeline, database.NewMemoryStore(), runs, 15*time.Minute, discard())
}

func TestTriggerFetchRunsInBackground(t *testing.T) {
	fetcher := &fakeFetchRunner{done: make(chan struct{})}
	handlers := newControlHandlers(fetcher, &fakePipelineRunner{done: make(chan struct{})}, scheduler.NewState())

	req := httptest.NewRequest(http.MethodPost, "/api/control/run-fetch", nil)
	rec := httptest.NewRecorder()
	handlers.TriggerFetch(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	select {
	case <-fetcher.done:
	case <-time.After(time.Second):
		t.Fatal("fetch was never triggered")
	}
}

func TestTriggerPipelinePassesBatchSize(t *testing.T) {
	pipeline := &fakePipelineRunner{done: make(chan struct{})}
	handlers := newControlHandlers(&fakeFetchRunner{done: make(chan struct{})}, pipeline, scheduler.NewState())

	req := httptest.NewRequest(http.MethodPost, "/api/control/run-pipeline", strings.NewReader(`{"batch_size":7}`))
	rec := httptest.NewRecorder()
	handlers.TriggerPipeline(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	select {
	case <-pipeline.done:
	case <-time.After(time.Second):
		t.Fatal("pipeline was never triggered")
	}
	pipeline.mu.Lock()
	defer pipeline.mu.Unlock()
	if pipeline.batchSize != 7 {
		t.Errorf("expected batch size 7, got %d", pipeline.batchSize)
	}
}

func TestStopTask(t *testing.T) {
	runs := scheduler.NewState()
	token := runs.Register("run-9")
	handlers := newControlHandlers(&fakeFetchRunner{done: make(chan struct{})}, &fakePipelineRunner{done: make(chan struct{})}, runs)

	req := httptest.NewRequest(http.MethodPost, "/api/control/stop", strings.NewReader(`{"run_id":"run-9"}`))
	rec := httptest.NewRecorder()
	handlers.StopTask(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if !token.Stopped() {
		t.Error("stop request did not cancel the run token")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/control/stop", strings.NewReader(`{"run_id":"missing"}`))
	rec = httptest.NewRecorder()
	handlers.StopTask(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown run, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/control/stop", strings.NewReader(`{}`))
	rec = httptest.NewRecorder()
	handlers.StopTask(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing run_id, got %d", rec.Code)
	}
}
