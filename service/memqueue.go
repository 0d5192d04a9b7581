package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue is the single-process JobQueue used when no database is
// configured. Visibility is tracked per job: a job is deliverable whenever
// its visibleAt is in the past, which covers fresh jobs, nacked jobs and
// jobs whose visibility timeout expired without an ack.
type MemoryQueue struct {
	mu         sync.Mutex
	jobs       map[string]*memJob
	visibility time.Duration
	wake       chan struct{}
}

type memJob struct {
	job       Job
	visibleAt time.Time
}

func NewMemoryQueue(visibility time.Duration) *MemoryQueue {
	return &MemoryQueue{
		jobs:       make(map[string]*memJob),
		visibility: visibility,
		wake:       make(chan struct{}, 1),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, documentID string) (*Job, error) {
	now := time.Now()
	job := Job{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		EnqueuedAt: now,
	}

	q.mu.Lock()
	q.jobs[job.ID] = &memJob{job: job, visibleAt: now}
	q.mu.Unlock()

	q.signal()
	return &job, nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context, wait time.Duration) (*Job, error) {
	deadline := time.Now().Add(wait)
	for {
		if job := q.tryDequeue(); job != nil {
			return job, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		poll := 50 * time.Millisecond
		if poll > remaining {
			poll = remaining
		}

		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-q.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (q *MemoryQueue) tryDequeue() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	var picked *memJob
	for _, j := range q.jobs {
		if j.visibleAt.After(now) {
			continue
		}
		if picked == nil || j.job.EnqueuedAt.Before(picked.job.EnqueuedAt) {
			picked = j
		}
	}
	if picked == nil {
		return nil
	}

	picked.visibleAt = now.Add(q.visibility)
	picked.job.Attempts++
	job := picked.job
	return &job
}

func (q *MemoryQueue) Ack(ctx context.Context, job *Job) error {
	q.mu.Lock()
	delete(q.jobs, job.ID)
	q.mu.Unlock()
	return nil
}

func (q *MemoryQueue) Nack(ctx context.Context, job *Job, retryAfter time.Duration) error {
	q.mu.Lock()
	if j, ok := q.jobs[job.ID]; ok {
		j.visibleAt = time.Now().Add(retryAfter)
	}
	q.mu.Unlock()

	q.signal()
	return nil
}

func (q *MemoryQueue) Depth(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	depth := 0
	for _, j := range q.jobs {
		if !j.visibleAt.After(now) {
			depth++
		}
	}
	return depth, nil
}

func (q *MemoryQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
