package service

import (
	"context"
	"errors"

	"Screener/internal/domain/models"
)

// ErrFetch wraps every metric source failure. Unknown keys, transport errors
// and upstream throttling all surface as ErrFetch and are handled alike.
var ErrFetch = errors.New("metric fetch failed")

// MetricSource looks up the current fundamentals of one key.
// It enforces no pacing; callers space their calls.
type MetricSource interface {
	Fetch(ctx context.Context, key string) (models.MetricRecord, error)
}

// RosterSource lists the constituents of a universe from its authoritative page.
// A failed fetch or parse yields an empty roster and the cause.
type RosterSource interface {
	FetchRoster(ctx context.Context, universe string) (models.Roster, error)
}
