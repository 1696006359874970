package repository

import (
	"context"
	"time"

	"Screener/internal/domain/models"
)

// Table is a remote worksheet read and written as a whole.
// Read never fails: an unreadable or missing table reads as empty.
// Write replaces the entire content of the table.
type Table[T any] interface {
	Name() string
	Read(ctx context.Context) []T
	Write(ctx context.Context, rows []T) error
}

// SnapshotStore holds the metrics table.
type SnapshotStore = Table[models.MetricRecord]

// RosterStore holds the roster table (all universes in one table).
type RosterStore = Table[models.RosterEntry]

// RecordSink receives records after they were durably flushed.
type RecordSink interface {
	PublishRecords(ctx context.Context, universe string, records []models.MetricRecord) error
	Close() error
}

// Locker is a best-effort mutual exclusion primitive with expiry.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type Metrics interface {
	RecordFetch(universe string, ok bool)
	RecordFlush(table string, size int, err error)
	RecordError(kind string)
	RecordLastPrice(key string, price float64)
	RecordLatency(op string, seconds float64)
}
