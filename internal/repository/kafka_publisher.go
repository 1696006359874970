package repository

import (
	"context"

	"Screener/internal/domain/models"
	domrepo "Screener/internal/domain/repository"
	pkgkafka "Screener/pkg/kafka"
	"Screener/pkg/util"
)

// metricEvent is the wire shape of a flushed record on the metrics topic.
type metricEvent struct {
	Universe string   `json:"indice"`
	Key      string   `json:"ticker"`
	ROE      *float64 `json:"roe"`
	PEG      *float64 `json:"peg"`
	Price    float64  `json:"prix"`
	Date     string   `json:"date_recup"`
}

// KafkaPublisher implements RecordSink for Kafka. Messages are keyed by
// ticker so one key's history stays on one partition.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ domrepo.RecordSink = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishRecords(ctx context.Context, universe string, records []models.MetricRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(records))
	for i, r := range records {
		msgs[i] = pkgkafka.Message{
			Key:     []byte(r.Key),
			Value:   toMetricEvent(universe, r),
			Headers: map[string]string{"universe": universe},
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func toMetricEvent(universe string, r models.MetricRecord) metricEvent {
	return metricEvent{
		Universe: universe,
		Key:      r.Key,
		ROE:      r.ROE,
		PEG:      r.PEG,
		Price:    r.Price,
		Date:     util.FormatDate(r.ObservedDate),
	}
}

// Close is a no-op: the producer is shared and closed by its owner.
func (p *KafkaPublisher) Close() error {
	return nil
}
