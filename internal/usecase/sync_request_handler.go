package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"Screener/internal/domain/models"
	domrepo "Screener/internal/domain/repository"
	pkgkafka "Screener/pkg/kafka"
	applogger "Screener/pkg/logger"
)

// SyncRequestHandler consumes sync requests from Kafka.
type SyncRequestHandler struct {
	topic   string
	runner  *SyncRunner
	metrics domrepo.Metrics
	log     *applogger.Logger
}

func NewSyncRequestHandler(topic string, runner *SyncRunner, m domrepo.Metrics, l *applogger.Logger) *SyncRequestHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &SyncRequestHandler{topic: topic, runner: runner, metrics: m, log: l}
}

func (h *SyncRequestHandler) Topic() string { return h.topic }

// incoming message schema: {universe, as_of}
func (h *SyncRequestHandler) Handle(ctx context.Context, b []byte) error {
	var req models.SyncRequest
	if err := json.Unmarshal(b, &req); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode sync request: %w", err)
	}

	report, err := h.runner.Run(ctx, req)
	switch {
	case errors.Is(err, ErrSyncInProgress):
		h.log.Info("sync request acknowledged, run in progress", applogger.String("universe", req.Universe))
		return nil
	case errors.Is(err, ErrUnknownUniverse):
		h.metrics.RecordError("consumer_universe")
		h.log.Warn("sync request for unknown universe", applogger.String("universe", req.Universe))
		return nil
	case err != nil:
		h.metrics.RecordError("consumer_sync")
		return err
	}
	h.metrics.RecordLatency("sync_request_seconds", report.Duration.Seconds())
	return nil
}

var _ pkgkafka.MessageHandler = (*SyncRequestHandler)(nil)
