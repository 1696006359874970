package usecase

import (
	"context"
	"errors"
	"fmt"

	"Screener/internal/domain/models"
	"Screener/pkg/config"
	applogger "Screener/pkg/logger"
	"Screener/pkg/util"
)

// ProgressPublisher fans sync progress out to live subscribers.
type ProgressPublisher interface {
	PublishProgress(models.SyncProgress)
}

// SyncRunner resolves sync requests from every trigger (HTTP, queue, kafka,
// scheduler) into engine runs.
type SyncRunner struct {
	cfg      *config.Config
	engine   *SyncEngine
	progress ProgressPublisher
	log      *applogger.Logger
}

func NewSyncRunner(cfg *config.Config, engine *SyncEngine, progress ProgressPublisher, l *applogger.Logger) *SyncRunner {
	if l == nil {
		l = applogger.Nop()
	}
	return &SyncRunner{cfg: cfg, engine: engine, progress: progress, log: l}
}

// Engine exposes the underlying engine.
func (r *SyncRunner) Engine() *SyncEngine { return r.engine }

// Run syncs req.Universe for req.AsOf, or today in the configured timezone
// when AsOf is empty.
func (r *SyncRunner) Run(ctx context.Context, req models.SyncRequest) (models.SyncReport, error) {
	if _, ok := r.cfg.Universe(req.Universe); !ok {
		return models.SyncReport{Universe: req.Universe}, fmt.Errorf("%w: %s", ErrUnknownUniverse, req.Universe)
	}
	asOf := util.Today(r.cfg.Location())
	if req.AsOf != "" {
		d, ok := util.ParseDate(req.AsOf)
		if !ok {
			return models.SyncReport{Universe: req.Universe}, fmt.Errorf("invalid as_of %q", req.AsOf)
		}
		asOf = d
	}

	var onProgress ProgressFunc
	if r.progress != nil {
		onProgress = r.progress.PublishProgress
	}
	return r.engine.Sync(ctx, req.Universe, asOf, onProgress)
}

// RunAll syncs every configured universe for today, one after the other.
// A held guard or a failed universe does not stop the remaining ones.
func (r *SyncRunner) RunAll(ctx context.Context) {
	for _, u := range r.cfg.Universes {
		if ctx.Err() != nil {
			return
		}
		_, err := r.Run(ctx, models.SyncRequest{Universe: u.Name})
		switch {
		case err == nil:
		case errors.Is(err, ErrSyncInProgress):
			r.log.Info("scheduled sync skipped, run in progress", applogger.String("universe", u.Name))
		default:
			r.log.Error("scheduled sync failed", applogger.String("universe", u.Name), applogger.Error(err))
		}
	}
}
