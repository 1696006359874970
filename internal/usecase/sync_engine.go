package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"Screener/internal/domain/models"
	domrepo "Screener/internal/domain/repository"
	domsvc "Screener/internal/domain/service"
	applogger "Screener/pkg/logger"
	"Screener/pkg/metrics"
	"Screener/pkg/util"
)

// DefaultBatchSize is the flush threshold when none is configured.
const DefaultBatchSize = 5

// Pacer spaces successive fetches.
type Pacer interface {
	Wait(ctx context.Context) error
}

// KeyProvider returns the ordered reference keys of a universe.
type KeyProvider interface {
	Keys(ctx context.Context, universe string) ([]string, error)
}

// ProgressFunc is called after every fetch attempt and once when a run ends.
type ProgressFunc func(models.SyncProgress)

// SyncEngine archives the metrics of a universe for one day, fetching only
// keys absent from the store for that day. Fetches are sequential and paced;
// successful records are flushed through MergeAndWrite every batchSize records.
type SyncEngine struct {
	keys      KeyProvider
	source    domsvc.MetricSource
	store     domrepo.SnapshotStore
	locker    domrepo.Locker
	pacer     Pacer
	sink      domrepo.RecordSink
	metrics   domrepo.Metrics
	log       *applogger.Logger
	batchSize int
	lockTTL   time.Duration

	mu      sync.Mutex
	running bool
}

type SyncEngineOption func(*SyncEngine)

// WithBatchSize sets the flush threshold.
func WithBatchSize(n int) SyncEngineOption {
	return func(e *SyncEngine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithPacer sets the delay policy between fetches.
func WithPacer(p Pacer) SyncEngineOption {
	return func(e *SyncEngine) { e.pacer = p }
}

// WithRecordSink publishes every successfully flushed batch.
func WithRecordSink(s domrepo.RecordSink) SyncEngineOption {
	return func(e *SyncEngine) { e.sink = s }
}

// WithLocker sets the run guard and how long a crashed run may hold it.
func WithLocker(l domrepo.Locker, ttl time.Duration) SyncEngineOption {
	return func(e *SyncEngine) {
		e.locker = l
		if ttl > 0 {
			e.lockTTL = ttl
		}
	}
}

func WithSyncMetrics(m domrepo.Metrics) SyncEngineOption {
	return func(e *SyncEngine) { e.metrics = m }
}

func WithSyncLogger(l *applogger.Logger) SyncEngineOption {
	return func(e *SyncEngine) { e.log = l }
}

func NewSyncEngine(keys KeyProvider, source domsvc.MetricSource, store domrepo.SnapshotStore, opts ...SyncEngineOption) *SyncEngine {
	e := &SyncEngine{
		keys:      keys,
		source:    source,
		store:     store,
		batchSize: DefaultBatchSize,
		lockTTL:   2 * time.Hour,
		pacer:     noPacer{},
		metrics:   metrics.Nop{},
		log:       applogger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Table returns the name of the table this engine writes.
func (e *SyncEngine) Table() string { return e.store.Name() }

// Running reports whether this process is currently running a sync.
func (e *SyncEngine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *SyncEngine) guardKey() string { return "sync:" + e.store.Name() }

// acquire takes the process-local flag, then the shared lock when a Locker is set.
func (e *SyncEngine) acquire(ctx context.Context) (func(), error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	e.running = true
	e.mu.Unlock()

	done := func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}

	if e.locker == nil {
		return done, nil
	}
	ok, err := e.locker.TryLock(ctx, e.guardKey(), e.lockTTL)
	if err != nil {
		done()
		return nil, fmt.Errorf("acquire sync guard: %w", err)
	}
	if !ok {
		done()
		return nil, ErrSyncInProgress
	}
	return func() {
		uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := e.locker.Unlock(uctx, e.guardKey()); err != nil {
			e.log.Warn("release sync guard failed", applogger.String("key", e.guardKey()), applogger.Error(err))
		}
		done()
	}, nil
}

// Sync runs one pass for universe on day asOf. Per-key failures are skipped
// and retried only by a later run; flush failures are logged and the run
// continues. On context cancellation the pending batch is flushed and the
// context error is returned with the partial report.
func (e *SyncEngine) Sync(ctx context.Context, universe string, asOf time.Time, onProgress ProgressFunc) (models.SyncReport, error) {
	start := time.Now()
	asOf = util.Day(asOf)
	report := models.SyncReport{Universe: universe, AsOf: util.FormatDate(asOf)}

	release, err := e.acquire(ctx)
	if err != nil {
		return report, err
	}
	defer release()

	keys, err := e.keys.Keys(ctx, universe)
	if err != nil {
		if errors.Is(err, ErrUnknownUniverse) {
			return report, err
		}
		e.log.Warn("roster unavailable, nothing to sync",
			applogger.String("universe", universe),
			applogger.Error(err),
		)
		keys = nil
	}
	keys = validKeys(keys)

	snapshot := models.Snapshot(e.store.Read(ctx))
	synced := snapshot.KeysOn(asOf)

	missing := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := synced[k]; !ok {
			missing = append(missing, k)
		}
	}

	report.TotalInUniverse = len(keys)
	report.AlreadySynced = len(keys) - len(missing)
	report.Missing = len(missing)

	log := e.log.With(
		applogger.String("universe", universe),
		applogger.String("as_of", report.AsOf),
		applogger.String("table", e.store.Name()),
	)
	log.Info("sync started",
		applogger.Int("total", report.TotalInUniverse),
		applogger.Int("already_synced", report.AlreadySynced),
		applogger.Int("missing", report.Missing),
	)

	emit := func(p models.SyncProgress) {
		if onProgress != nil {
			p.Universe, p.AsOf, p.Total = universe, report.AsOf, len(missing)
			onProgress(p)
		}
	}

	pending := make([]models.MetricRecord, 0, e.batchSize)
	flush := func(fctx context.Context) {
		if len(pending) == 0 {
			return
		}
		batch := pending
		pending = make([]models.MetricRecord, 0, e.batchSize)
		e.flush(fctx, log, universe, batch, &report)
	}

	var runErr error
	for i, key := range missing {
		// a pacer shared across runs blocks here for fetch 0 too
		if err := e.pacer.Wait(ctx); err != nil {
			runErr = err
			break
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		rec, ok := e.fetch(ctx, log, key, asOf)
		e.metrics.RecordFetch(universe, ok)
		if ok {
			pending = append(pending, rec)
			report.NewlyFetched++
			e.metrics.RecordLastPrice(rec.Key, rec.Price)
		} else {
			report.Failed++
		}
		emit(models.SyncProgress{Key: key, OK: ok, Processed: i + 1})

		if len(pending) >= e.batchSize {
			flush(ctx)
		}
	}

	// the remainder is flushed even when the run was cancelled
	flush(context.WithoutCancel(ctx))

	report.Duration = time.Since(start)
	e.metrics.RecordLatency("sync_"+universe, report.Duration.Seconds())
	emit(models.SyncProgress{Processed: report.NewlyFetched + report.Failed, Done: true})

	fields := []applogger.Field{
		applogger.Int("newly_fetched", report.NewlyFetched),
		applogger.Int("failed", report.Failed),
		applogger.Int("flushes", report.Flushes),
		applogger.Int("flush_errors", report.FlushErrors),
		applogger.Duration("duration_ms", report.Duration),
	}
	if runErr != nil {
		log.Warn("sync interrupted", append(fields, applogger.Error(runErr))...)
		return report, runErr
	}
	log.Info("sync finished", fields...)
	return report, nil
}

// fetch returns the record stamped with asOf, or false when the source
// failed or returned a record that may not be persisted.
func (e *SyncEngine) fetch(ctx context.Context, log *applogger.Logger, key string, asOf time.Time) (models.MetricRecord, bool) {
	rec, err := e.source.Fetch(ctx, key)
	if err != nil {
		log.Debug("fetch skipped", applogger.String("ticker", key), applogger.Error(err))
		return models.MetricRecord{}, false
	}
	rec.Key = key
	rec.ObservedDate = asOf
	if !rec.Valid() {
		log.Debug("fetch discarded", applogger.String("ticker", key), applogger.Float64("price", rec.Price))
		return models.MetricRecord{}, false
	}
	return rec, true
}

func (e *SyncEngine) flush(ctx context.Context, log *applogger.Logger, universe string, batch []models.MetricRecord, report *models.SyncReport) {
	start := time.Now()
	n, err := MergeAndWrite(ctx, e.store, batch)
	report.Flushes++
	e.metrics.RecordFlush(e.store.Name(), len(batch), err)
	e.metrics.RecordLatency("flush", time.Since(start).Seconds())
	if err != nil {
		report.FlushErrors++
		e.metrics.RecordError("flush")
		log.Error("flush failed, continuing", applogger.Int("size", len(batch)), applogger.Error(err))
		return
	}
	log.Info("flushed batch", applogger.Int("size", n), applogger.Duration("duration_ms", time.Since(start)))

	if e.sink != nil {
		if err := e.sink.PublishRecords(ctx, universe, batch); err != nil {
			e.metrics.RecordError("publish")
			log.Warn("publish flushed records failed", applogger.Error(err))
		}
	}
}

// validKeys drops keys without a letter and duplicates, keeping order.
func validKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if !models.IsValidKey(k) {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

type noPacer struct{}

func (noPacer) Wait(ctx context.Context) error { return ctx.Err() }
