package usecase

import (
	"context"
	"errors"
	"fmt"

	"Screener/internal/domain/models"
	applogger "Screener/pkg/logger"
	"Screener/pkg/queue"
)

// SyncJobType is the queue message type of asynchronous sync requests.
const SyncJobType = "sync_universe"

// SyncJob runs queued sync requests on the Redis queue workers.
type SyncJob struct {
	runner *SyncRunner
	log    *applogger.Logger
}

func NewSyncJob(runner *SyncRunner, l *applogger.Logger) *SyncJob {
	if l == nil {
		l = applogger.Nop()
	}
	return &SyncJob{runner: runner, log: l}
}

func (j *SyncJob) Name() string { return "SyncUniverseJob" }

func (j *SyncJob) Type() string { return SyncJobType }

// Handle runs the request. A held guard or an unknown universe is
// acknowledged, not retried.
func (j *SyncJob) Handle(ctx context.Context, payload interface{}) error {
	req, err := queue.ParsePayload[models.SyncRequest](payload)
	if err != nil {
		return fmt.Errorf("sync job payload: %w", err)
	}

	report, err := j.runner.Run(ctx, *req)
	switch {
	case errors.Is(err, ErrSyncInProgress):
		j.log.Info("queued sync dropped, run in progress", applogger.String("universe", req.Universe))
		return nil
	case errors.Is(err, ErrUnknownUniverse):
		j.log.Warn("queued sync for unknown universe", applogger.String("universe", req.Universe))
		return nil
	case err != nil:
		return err
	}
	j.log.Info("queued sync done",
		applogger.String("universe", report.Universe),
		applogger.String("as_of", report.AsOf),
		applogger.Int("newly_fetched", report.NewlyFetched),
	)
	return nil
}

var _ queue.Job = (*SyncJob)(nil)
