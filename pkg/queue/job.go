package queue

import "context"

// Job handles one message type. Returning an error schedules a retry until
// the retry limit, then dead-letters the message.
type Job interface {
	Name() string
	Type() string
	Handle(ctx context.Context, payload interface{}) error
}
