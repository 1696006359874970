package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"Screener/internal/domain/models"
	domsvc "Screener/internal/domain/service"
	"Screener/pkg/config"
)

var day = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func rec(key string, price float64, d time.Time) models.MetricRecord {
	return models.MetricRecord{Key: key, Price: price, ObservedDate: d}
}

// countingStore is an in-memory snapshot table that counts calls and can fail writes.
type countingStore struct {
	mu        sync.Mutex
	name      string
	rows      []models.MetricRecord
	reads     int
	writes    int
	sizes     []int
	failRead  bool
	failWrite func(n int) bool
}

func newStore(seed ...models.MetricRecord) *countingStore {
	return &countingStore{name: "metrics", rows: append([]models.MetricRecord(nil), seed...)}
}

func (s *countingStore) Name() string { return s.name }

func (s *countingStore) Read(_ context.Context) []models.MetricRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.failRead {
		// adapters degrade an unreadable table to empty
		return nil
	}
	return append([]models.MetricRecord(nil), s.rows...)
}

func (s *countingStore) Write(_ context.Context, rows []models.MetricRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.failWrite != nil && s.failWrite(s.writes) {
		return errors.New("store unavailable")
	}
	s.sizes = append(s.sizes, len(rows))
	s.rows = append([]models.MetricRecord(nil), rows...)
	return nil
}

func (s *countingStore) snapshot() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(models.Snapshot(nil), s.rows...)
}

// fakeSource answers from a table of prices; absent keys fail.
type fakeSource struct {
	mu     sync.Mutex
	prices map[string]float64
	fail   func(key string) bool
	calls  []string
}

func (f *fakeSource) Fetch(_ context.Context, key string) (models.MetricRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, key)
	if f.fail != nil && f.fail(key) {
		return models.MetricRecord{}, domsvc.ErrFetch
	}
	p, ok := f.prices[key]
	if !ok {
		return models.MetricRecord{}, domsvc.ErrFetch
	}
	return models.MetricRecord{Key: key, Price: p, ROE: models.Float(20), PEG: models.Float(1)}, nil
}

// timedSource records when each fetch went out.
type timedSource struct {
	fakeSource
	at []time.Time
}

func (f *timedSource) Fetch(ctx context.Context, key string) (models.MetricRecord, error) {
	f.mu.Lock()
	f.at = append(f.at, time.Now())
	f.mu.Unlock()
	return f.fakeSource.Fetch(ctx, key)
}

func (f *fakeSource) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type staticKeys map[string][]string

func (s staticKeys) Keys(_ context.Context, universe string) ([]string, error) {
	keys, ok := s[universe]
	if !ok {
		return nil, ErrUnknownUniverse
	}
	return keys, nil
}

type countingPacer struct{ waits int }

func (p *countingPacer) Wait(ctx context.Context) error {
	p.waits++
	return ctx.Err()
}

type fakeRosterSource struct {
	rows  map[string]models.Roster
	err   error
	calls int
}

func (f *fakeRosterSource) FetchRoster(_ context.Context, universe string) (models.Roster, error) {
	f.calls++
	if f.err != nil {
		return models.Roster{}, f.err
	}
	return append(models.Roster(nil), f.rows[universe]...), nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Sync.Timezone = "UTC"
	cfg.Roster.RefreshInterval = 720 * time.Hour
	cfg.Roster.CacheTTL = time.Hour
	cfg.MetricSource.CacheTTL = time.Hour
	cfg.Universes = []config.Universe{
		{Name: "CAC40", SourceURL: "https://example.org/cac", SymbolSuffix: ".PA"},
		{Name: "SP500", SourceURL: "https://example.org/sp", ReplaceDots: true},
	}
	return cfg
}
