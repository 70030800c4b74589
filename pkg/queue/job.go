package queue

import "context"

// Job handles one message type.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Type is the message type routed to this job.
	Type() string

	// Handle processes one payload. A returned error schedules a retry or
	// moves the message to the dead-letter list.
	Handle(ctx context.Context, payload interface{}) error
}
