package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"Screener/internal/domain/models"
	mid "Screener/internal/middleware"
	"Screener/pkg/cache"
)

type captureSink struct {
	mu      sync.Mutex
	batches [][]models.MetricRecord
}

func (s *captureSink) PublishRecords(_ context.Context, _ string, records []models.MetricRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, records)
	return nil
}

func (s *captureSink) Close() error { return nil }

func TestSyncSkipsFailuresAndInvalidRecords(t *testing.T) {
	store := newStore()
	source := &fakeSource{prices: map[string]float64{"AAA": 10, "CCC": 0}}
	keys := staticKeys{"CAC40": {"AAA", "BBB", "---", "CCC"}}
	engine := NewSyncEngine(keys, source, store)

	report, err := engine.Sync(context.Background(), "CAC40", day, nil)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if report.TotalInUniverse != 3 || report.Missing != 3 {
		t.Fatalf("unexpected counts %+v", report)
	}
	if report.NewlyFetched != 1 || report.Failed != 2 {
		t.Fatalf("unexpected outcome %+v", report)
	}
	got := store.snapshot()
	if len(got) != 1 || got[0].Key != "AAA" || !got[0].ObservedOn(day) {
		t.Fatalf("unexpected table %+v", got)
	}
	for _, k := range source.called() {
		if k == "---" {
			t.Fatalf("invalid key was fetched")
		}
	}

	again, err := engine.Sync(context.Background(), "CAC40", day, nil)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if again.AlreadySynced != 1 || again.Missing != 2 {
		t.Fatalf("expected AAA skipped on rerun, got %+v", again)
	}
}

func TestSyncFlushesEveryBatch(t *testing.T) {
	prices := map[string]float64{}
	keys := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		k := fmt.Sprintf("K%02d", i)
		keys = append(keys, k)
		prices[k] = float64(i + 1)
	}
	store := newStore()
	engine := NewSyncEngine(staticKeys{"SP500": keys}, &fakeSource{prices: prices}, store, WithBatchSize(5))

	report, err := engine.Sync(context.Background(), "SP500", day, nil)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if store.writes != 3 || report.Flushes != 3 {
		t.Fatalf("expected 3 writes, got %d (report %d)", store.writes, report.Flushes)
	}
	want := []int{5, 10, 12}
	for i, n := range want {
		if store.sizes[i] != n {
			t.Fatalf("write %d: expected table size %d, got %d", i, n, store.sizes[i])
		}
	}
}

func TestSyncConvergesAcrossRuns(t *testing.T) {
	keys := make([]string, 0, 9)
	prices := map[string]float64{}
	failuresLeft := map[string]int{}
	for i := 0; i < 9; i++ {
		k := fmt.Sprintf("T%d", i)
		keys = append(keys, k)
		prices[k] = 1
		failuresLeft[k] = i % 3
	}
	source := &fakeSource{prices: prices, fail: func(key string) bool {
		if failuresLeft[key] > 0 {
			failuresLeft[key]--
			return true
		}
		return false
	}}
	store := newStore()
	engine := NewSyncEngine(staticKeys{"U": keys}, source, store, WithBatchSize(4))

	runs := 0
	for {
		report, err := engine.Sync(context.Background(), "U", day, nil)
		if err != nil {
			t.Fatalf("run %d: %v", runs, err)
		}
		if report.Missing == 0 {
			break
		}
		runs++
		if runs > 5 {
			t.Fatalf("did not converge, last report %+v", report)
		}
	}
	if runs != 3 {
		t.Fatalf("expected 3 fetching runs, got %d", runs)
	}

	calls := map[string]int{}
	for _, k := range source.called() {
		calls[k]++
	}
	for i, k := range keys {
		if calls[k] != i%3+1 {
			t.Fatalf("%s fetched %d times, expected %d", k, calls[k], i%3+1)
		}
	}
	if got := store.snapshot(); len(got) != len(keys) {
		t.Fatalf("expected %d rows, got %d", len(keys), len(got))
	}
}

func TestSyncContinuesAfterWriteFailure(t *testing.T) {
	keys := []string{"A1", "A2", "A3", "B1", "B2", "B3"}
	prices := map[string]float64{}
	for _, k := range keys {
		prices[k] = 2
	}
	store := newStore()
	store.failWrite = func(n int) bool { return n == 1 }
	sink := &captureSink{}
	engine := NewSyncEngine(staticKeys{"U": keys}, &fakeSource{prices: prices}, store,
		WithBatchSize(3), WithRecordSink(sink))

	report, err := engine.Sync(context.Background(), "U", day, nil)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if report.Flushes != 2 || report.FlushErrors != 1 || report.NewlyFetched != 6 {
		t.Fatalf("unexpected report %+v", report)
	}
	got := store.snapshot()
	if len(got) != 3 || got[0].Key != "B1" {
		t.Fatalf("expected only second batch persisted, got %+v", got)
	}
	if len(sink.batches) != 1 || len(sink.batches[0]) != 3 {
		t.Fatalf("expected one published batch, got %d", len(sink.batches))
	}

	again, err := engine.Sync(context.Background(), "U", day, nil)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if again.Missing != 3 || again.NewlyFetched != 3 {
		t.Fatalf("expected lost batch refetched, got %+v", again)
	}
}

func TestSyncRejectsHeldGuard(t *testing.T) {
	locker := cache.NewMemoryCache()
	defer locker.Close()
	ctx := context.Background()
	if ok, _ := locker.TryLock(ctx, "sync:metrics", time.Minute); !ok {
		t.Fatalf("could not take lock")
	}

	source := &fakeSource{prices: map[string]float64{"AAA": 1}}
	engine := NewSyncEngine(staticKeys{"U": {"AAA"}}, source, newStore(), WithLocker(locker, time.Minute))

	_, err := engine.Sync(ctx, "U", day, nil)
	if !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("expected ErrSyncInProgress, got %v", err)
	}
	if len(source.called()) != 0 {
		t.Fatalf("no fetch expected while guard is held")
	}
	if engine.Running() {
		t.Fatalf("local flag must be released after rejection")
	}

	if err := locker.Unlock(ctx, "sync:metrics"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, err := engine.Sync(ctx, "U", day, nil); err != nil {
		t.Fatalf("sync after unlock: %v", err)
	}
	if ok, _ := locker.TryLock(ctx, "sync:metrics", time.Minute); !ok {
		t.Fatalf("engine did not release the guard")
	}
}

type blockingSource struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingSource) Fetch(_ context.Context, key string) (models.MetricRecord, error) {
	close(b.started)
	<-b.release
	return models.MetricRecord{Key: key, Price: 1}, nil
}

func TestSyncRejectsOverlappingRun(t *testing.T) {
	source := &blockingSource{started: make(chan struct{}), release: make(chan struct{})}
	engine := NewSyncEngine(staticKeys{"U": {"AAA"}}, source, newStore())

	done := make(chan error, 1)
	go func() {
		_, err := engine.Sync(context.Background(), "U", day, nil)
		done <- err
	}()
	<-source.started

	if !engine.Running() {
		t.Fatalf("expected engine to report a running sync")
	}
	if _, err := engine.Sync(context.Background(), "U", day, nil); !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("expected ErrSyncInProgress, got %v", err)
	}

	close(source.release)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
}

func TestSyncPacesBetweenFetches(t *testing.T) {
	pacer := &countingPacer{}
	source := &fakeSource{prices: map[string]float64{"A": 1, "B": 1, "C": 1, "D": 1}}
	engine := NewSyncEngine(staticKeys{"U": {"A", "B", "C", "D"}}, source, newStore(), WithPacer(pacer))

	if _, err := engine.Sync(context.Background(), "U", day, nil); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if pacer.waits != 4 {
		t.Fatalf("expected a wait before each of 4 fetches, got %d", pacer.waits)
	}
}

func TestSyncSpacesEveryFetchWithFixedPacer(t *testing.T) {
	const interval = 50 * time.Millisecond
	pacer := mid.NewFixedPacer(interval)
	source := &timedSource{fakeSource: fakeSource{prices: map[string]float64{"A": 1, "B": 1, "C": 1}}}
	engine := NewSyncEngine(staticKeys{"U": {"A", "B", "C"}}, source, newStore(), WithPacer(pacer))

	if _, err := engine.Sync(context.Background(), "U", day, nil); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if _, err := engine.Sync(context.Background(), "U", day.AddDate(0, 0, 1), nil); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if len(source.at) != 6 {
		t.Fatalf("expected 6 fetches over two runs, got %d", len(source.at))
	}
	for i := 1; i < len(source.at); i++ {
		if gap := source.at[i].Sub(source.at[i-1]); gap < interval {
			t.Fatalf("fetch %d and %d were %v apart, want at least %v", i-1, i, gap, interval)
		}
	}
}

type cancellingSource struct {
	fakeSource
	cancelOn string
	cancel   context.CancelFunc
}

func (c *cancellingSource) Fetch(ctx context.Context, key string) (models.MetricRecord, error) {
	r, err := c.fakeSource.Fetch(ctx, key)
	if key == c.cancelOn {
		c.cancel()
	}
	return r, err
}

func TestSyncFlushesPendingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := &cancellingSource{
		fakeSource: fakeSource{prices: map[string]float64{"A": 1, "B": 1, "C": 1, "D": 1}},
		cancelOn:   "B",
		cancel:     cancel,
	}
	store := newStore()
	engine := NewSyncEngine(staticKeys{"U": {"A", "B", "C", "D"}}, source, store, WithBatchSize(10))

	report, err := engine.Sync(ctx, "U", day, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report.NewlyFetched != 2 {
		t.Fatalf("expected 2 fetched before cancel, got %+v", report)
	}
	if got := store.snapshot(); len(got) != 2 {
		t.Fatalf("expected pending batch flushed, got %+v", got)
	}
}

func TestSyncUnknownUniverse(t *testing.T) {
	store := newStore()
	engine := NewSyncEngine(staticKeys{}, &fakeSource{}, store)
	if _, err := engine.Sync(context.Background(), "NOPE", day, nil); !errors.Is(err, ErrUnknownUniverse) {
		t.Fatalf("expected ErrUnknownUniverse, got %v", err)
	}
	if store.writes != 0 {
		t.Fatalf("unexpected write")
	}
}

func TestSyncReportsProgress(t *testing.T) {
	source := &fakeSource{prices: map[string]float64{"A": 1, "C": 1}}
	engine := NewSyncEngine(staticKeys{"U": {"A", "B", "C"}}, source, newStore())

	var events []models.SyncProgress
	if _, err := engine.Sync(context.Background(), "U", day, func(p models.SyncProgress) {
		events = append(events, p)
	}); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("expected 3 fetch events and a final one, got %d", len(events))
	}
	if events[1].Key != "B" || events[1].OK || events[1].Processed != 2 || events[1].Total != 3 {
		t.Fatalf("unexpected event %+v", events[1])
	}
	last := events[len(events)-1]
	if !last.Done || last.Processed != 3 || last.AsOf != "2024-01-01" {
		t.Fatalf("unexpected final event %+v", last)
	}
}
