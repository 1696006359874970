package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrDuplicate is returned when a keyed message is already waiting.
var ErrDuplicate = errors.New("queue: message already pending")

type QueueService interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// Keyed payloads are deduplicated: while a message with the same key is
// pending or retrying, publishing another one fails with ErrDuplicate.
type Keyed interface {
	JobKey() string
}

// StatsReporter is implemented by queues that can report their lengths.
type StatsReporter interface {
	Stats(ctx context.Context) (Stats, error)
}

// QueueConfig contains the configuration for the queue
type QueueConfig struct {
	Workers    int           // 0 publishes only
	RetryLimit int           // retries after the first attempt
	RetryDelay time.Duration // delay before a retry becomes due
	PendingTTL time.Duration // lifetime of a dedupe key if its message is lost
}

// Message represents a message in the queue
type Message struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Key       string      `json:"key,omitempty"`
	Payload   interface{} `json:"payload"`
	Attempts  int         `json:"attempts"`
	Timestamp time.Time   `json:"timestamp"`
}

// Stats are the queue lengths.
type Stats struct {
	Pending  int64 `json:"pending"`
	Retrying int64 `json:"retrying"`
	Dead     int64 `json:"dead"`
}

// Outcome is what happens to a message whose handler failed.
type Outcome int

const (
	OutcomeRetry Outcome = iota
	OutcomeDead
)

// nextAttempt bumps the attempt count of a failed message and tells whether
// it is retried (and when) or moved to the dead letter list.
func nextAttempt(msg Message, limit int, delay time.Duration, now time.Time) (Message, Outcome, time.Time) {
	if msg.Attempts >= limit {
		return msg, OutcomeDead, time.Time{}
	}
	msg.Attempts++
	return msg, OutcomeRetry, now.Add(delay)
}

// jobKey returns the dedupe key of a typed payload, or "".
func jobKey(msgType string, payload interface{}) string {
	k, ok := payload.(Keyed)
	if !ok || k.JobKey() == "" {
		return ""
	}
	return msgType + ":" + k.JobKey()
}

func ParsePayload[T any](payload interface{}) (*T, error) {
	var result T

	switch p := payload.(type) {
	case *T:
		return p, nil
	case T:
		return &p, nil
	case map[string]interface{}:
		jsonData, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal map to json: %w", err)
		}
		if err := json.Unmarshal(jsonData, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal json to struct: %w", err)
		}
		return &result, nil
	case json.RawMessage:
		if err := json.Unmarshal(p, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
		return &result, nil
	default:
		return nil, fmt.Errorf("invalid payload type: %T", payload)
	}
}
