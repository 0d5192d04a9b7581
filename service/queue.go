package service

import (
	"context"
	"time"
)

// Job is one unit of ingestion work. Attempts counts deliveries, so the
// first dequeue of a job sees Attempts == 1.
type Job struct {
	ID         string
	DocumentID string
	Attempts   int
	EnqueuedAt time.Time
}

// JobQueue is an at-least-once work queue. A dequeued job stays invisible
// for the visibility timeout; if it is neither acked nor nacked in time it
// is redelivered with a bumped attempt count. Delivery order is best-effort
// oldest-first, not guaranteed.
type JobQueue interface {
	// Enqueue adds a job for the document and returns it.
	Enqueue(ctx context.Context, documentID string) (*Job, error)

	// Dequeue returns the next visible job, waiting up to wait for one to
	// appear. It returns (nil, nil) when the wait expires with nothing to do.
	Dequeue(ctx context.Context, wait time.Duration) (*Job, error)

	// Ack removes a completed job. Acking an unknown job is a no-op.
	Ack(ctx context.Context, job *Job) error

	// Nack makes the job visible again after retryAfter.
	Nack(ctx context.Context, job *Job, retryAfter time.Duration) error

	// Depth reports how many jobs are currently visible.
	Depth(ctx context.Context) (int, error)
}
