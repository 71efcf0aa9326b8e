package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/briefwire/briefwire/internal/ledger"
	"github.com/briefwire/briefwire/internal/models"
	"github.com/google/uuid"
)

// MemoryStore implements every repository contract in memory. It backs
// tests and lets the server run without Postgres in development mode.
type MemoryStore struct {
	mu        sync.RWMutex
	sources   map[string]models.Source
	items     map[string]models.ContentItem
	runs      map[string]models.RunRecord
	schedules map[models.TaskFamily]models.ScheduleConfig
	digests   []models.Digest
	errors    []models.IngestionError
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sources:   make(map[string]models.Source),
		items:     make(map[string]models.ContentItem),
		runs:      make(map[string]models.RunRecord),
		schedules: make(map[models.TaskFamily]models.ScheduleConfig),
	}
}

// --- sources ---

func (m *MemoryStore) CreateSource(ctx context.Context, src models.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[src.ID] = src
	return nil
}

func (m *MemoryStore) GetSource(ctx context.Context, id string) (*models.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src, ok := m.sources[id]
	if !ok {
		return nil, nil
	}
	return &src, nil
}

func (m *MemoryStore) ListSources(ctx context.Context, includeInactive bool) ([]models.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Source, 0, len(m.sources))
	for _, src := range m.sources {
		if !includeInactive && !src.Active {
			continue
		}
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) UpdateSource(ctx context.Context, src models.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sources[src.ID]; !ok {
		return nil
	}
	m.sources[src.ID] = src
	return nil
}

// DeleteSource removes the source and cascades to its content items.
func (m *MemoryStore) DeleteSource(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sources, id)
	for itemID, item := range m.items {
		if item.SourceID == id {
			delete(m.items, itemID)
		}
	}
	return nil
}

// --- content items ---

func (m *MemoryStore) InsertItem(ctx context.Context, item models.ContentItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
	return nil
}

func (m *MemoryStore) GetItem(ctx context.Context, id string) (*models.ContentItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (m *MemoryStore) ItemExists(ctx context.Context, sourceID, url string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, item := range m.items {
		if item.SourceID == sourceID && item.URL == url {
			return true, nil
		}
	}
	return false, nil
}

// ListPendingItems returns unprocessed items oldest-fetched-first.
func (m *MemoryStore) ListPendingItems(ctx context.Context, limit int) ([]models.ContentItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.ContentItem, 0)
	for _, item := range m.items {
		if item.ProcessedAt == nil {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FetchedAt.Before(out[j].FetchedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CountPendingItems(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, item := range m.items {
		if item.ProcessedAt == nil {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) UpdateItem(ctx context.Context, item models.ContentItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; !ok {
		return nil
	}
	m.items[item.ID] = item
	return nil
}

func (m *MemoryStore) ListProcessedSince(ctx context.Context, since time.Time, limit int) ([]models.ContentItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.ContentItem, 0)
	for _, item := range m.items {
		if item.ProcessedAt != nil && item.ProcessedAt.After(since) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := 0.0, 0.0
		if out[i].Score != nil {
			si = *out[i].Score
		}
		if out[j].Score != nil {
			sj = *out[j].Score
		}
		return si > sj
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- run records ---

func (m *MemoryStore) CreateRun(ctx context.Context, rec models.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[rec.ID] = rec
	return nil
}

func (m *MemoryStore) GetRun(ctx context.Context, id string) (*models.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MemoryStore) UpdateRun(ctx context.Context, rec models.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[rec.ID]; !ok {
		return nil
	}
	m.runs[rec.ID] = rec
	return nil
}

func (m *MemoryStore) ListRuns(ctx context.Context, filter ledger.RunFilter) ([]models.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.RunRecord, 0)
	for _, rec := range m.runs {
		if filter.Kind != "" && rec.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// --- schedules ---

func (m *MemoryStore) GetSchedule(ctx context.Context, family models.TaskFamily) (*models.ScheduleConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.schedules[family]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

func (m *MemoryStore) UpsertSchedule(ctx context.Context, cfg models.ScheduleConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[cfg.Family] = cfg
	return nil
}

func (m *MemoryStore) ListSchedules(ctx context.Context) ([]models.ScheduleConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.ScheduleConfig, 0, len(m.schedules))
	for _, cfg := range m.schedules {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Family < out[j].Family })
	return out, nil
}

// --- digests ---

func (m *MemoryStore) StoreDigest(ctx context.Context, d models.Digest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.digests = append(m.digests, d)
	return nil
}

func (m *MemoryStore) LatestDigest(ctx context.Context) (*models.Digest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.digests) == 0 {
		return nil, nil
	}
	latest := m.digests[0]
	for _, d := range m.digests[1:] {
		if d.GeneratedAt.After(latest.GeneratedAt) {
			latest = d
		}
	}
	return &latest, nil
}

// --- ingestion errors ---

func (m *MemoryStore) RecordError(ctx context.Context, e models.IngestionError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	m.errors = append(m.errors, e)
	return nil
}

func (m *MemoryStore) ListErrors(ctx context.Context, limit int) ([]models.IngestionError, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.IngestionError, len(m.errors))
	copy(out, m.errors)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
