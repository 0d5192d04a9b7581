package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/config"
)

// PGQueue is the durable JobQueue backed by Postgres. Claims use
// FOR UPDATE SKIP LOCKED so concurrent workers never double-claim a job,
// and visibility is a visible_at column, so a worker that dies mid-job
// loses its claim once the timeout passes.
type PGQueue struct {
	pool         *pgxpool.Pool
	visibility   time.Duration
	pollInterval time.Duration
}

func NewPGQueue(pool *pgxpool.Pool, cfg *config.QueueConfig) *PGQueue {
	return &PGQueue{
		pool:         pool,
		visibility:   cfg.VisibilityTimeout(),
		pollInterval: cfg.PollInterval(),
	}
}

func (q *PGQueue) EnsureSchema(ctx context.Context) error {
	_, err := q.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS ingest_jobs (
			id UUID PRIMARY KEY,
			document_id UUID NOT NULL,
			attempts INT NOT NULL DEFAULT 0,
			visible_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			enqueued_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create ingest_jobs table: %w", err)
	}

	_, err = q.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS idx_ingest_jobs_visible
		ON ingest_jobs (visible_at, enqueued_at)`)
	if err != nil {
		return fmt.Errorf("failed to create ingest_jobs index: %w", err)
	}
	return nil
}

func (q *PGQueue) Enqueue(ctx context.Context, documentID string) (*Job, error) {
	job := Job{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		EnqueuedAt: time.Now(),
	}

	_, err := q.pool.Exec(ctx,
		`INSERT INTO ingest_jobs (id, document_id, enqueued_at) VALUES ($1, $2, $3)`,
		job.ID, job.DocumentID, job.EnqueuedAt)
	if err != nil {
		return nil, TransientErr("queue", fmt.Errorf("failed to enqueue job: %w", err))
	}
	return &job, nil
}

func (q *PGQueue) Dequeue(ctx context.Context, wait time.Duration) (*Job, error) {
	deadline := time.Now().Add(wait)
	for {
		job, err := q.claim(ctx)
		if err != nil {
			return nil, err
		}
		if job != nil {
			return job, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		poll := q.pollInterval
		if poll > remaining {
			poll = remaining
		}
		if err := sleepContext(ctx, poll); err != nil {
			return nil, err
		}
	}
}

// claim atomically picks the oldest visible job and pushes its visibility
// out by the timeout. Clock arithmetic stays on the database side so
// concurrent workers agree on what is visible.
func (q *PGQueue) claim(ctx context.Context) (*Job, error) {
	var job Job
	err := q.pool.QueryRow(ctx, `
		UPDATE ingest_jobs
		SET visible_at = now() + make_interval(secs => $1),
		    attempts = attempts + 1
		WHERE id = (
			SELECT id FROM ingest_jobs
			WHERE visible_at <= now()
			ORDER BY enqueued_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, document_id, attempts, enqueued_at`,
		q.visibility.Seconds(),
	).Scan(&job.ID, &job.DocumentID, &job.Attempts, &job.EnqueuedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, TransientErr("queue", fmt.Errorf("failed to claim job: %w", err))
	}
	return &job, nil
}

func (q *PGQueue) Ack(ctx context.Context, job *Job) error {
	_, err := q.pool.Exec(ctx, `DELETE FROM ingest_jobs WHERE id = $1`, job.ID)
	if err != nil {
		return TransientErr("queue", fmt.Errorf("failed to ack job: %w", err))
	}
	return nil
}

func (q *PGQueue) Nack(ctx context.Context, job *Job, retryAfter time.Duration) error {
	_, err := q.pool.Exec(ctx,
		`UPDATE ingest_jobs SET visible_at = now() + make_interval(secs => $2) WHERE id = $1`,
		job.ID, retryAfter.Seconds())
	if err != nil {
		return TransientErr("queue", fmt.Errorf("failed to nack job: %w", err))
	}
	return nil
}

func (q *PGQueue) Depth(ctx context.Context) (int, error) {
	var depth int
	err := q.pool.QueryRow(ctx,
		`SELECT count(*) FROM ingest_jobs WHERE visible_at <= now()`).Scan(&depth)
	if err != nil {
		return 0, TransientErr("queue", fmt.Errorf("failed to count jobs: %w", err))
	}
	return depth, nil
}
