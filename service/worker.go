package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/config"
	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/model"
	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/pkg/logger"
)

const maxRetryBackoff = 2 * time.Minute

// Processor runs the ingestion pipeline for one document.
type Processor interface {
	Process(ctx context.Context, documentID string) error
}

// Worker drains the job queue with a pool of goroutines. Transient failures
// are nacked with exponential backoff until the attempt budget runs out;
// every other failure is terminal, marking the document failed and acking
// the job so it cannot poison the queue.
type Worker struct {
	queue       JobQueue
	store       DocumentStore
	processor   Processor
	concurrency int
	dequeueWait time.Duration
	maxAttempts int
	timeout     time.Duration
	baseBackoff time.Duration
}

func NewWorker(queue JobQueue, store DocumentStore, processor Processor, cfg *config.Config) *Worker {
	return &Worker{
		queue:       queue,
		store:       store,
		processor:   processor,
		concurrency: cfg.Worker.Concurrency,
		dequeueWait: cfg.Queue.DequeueWait(),
		maxAttempts: cfg.Queue.MaxAttempts,
		timeout:     cfg.Worker.ProcessTimeout(),
		baseBackoff: 5 * time.Second,
	}
}

// Run blocks until ctx is cancelled and every worker goroutine has drained.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.loop(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (w *Worker) loop(ctx context.Context, workerID int) {
	logger.Info(ctx, "worker started", "worker", workerID)
	for {
		job, err := w.queue.Dequeue(ctx, w.dequeueWait)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info(ctx, "worker stopped", "worker", workerID)
				return
			}
			logger.Error(ctx, "dequeue failed", "worker", workerID, "error", err)
			if serr := sleepContext(ctx, time.Second); serr != nil {
				return
			}
			continue
		}
		if job == nil {
			if ctx.Err() != nil {
				logger.Info(ctx, "worker stopped", "worker", workerID)
				return
			}
			continue
		}

		w.handle(ctx, job)
	}
}

func (w *Worker) handle(ctx context.Context, job *Job) {
	jobCtx := logger.WithJob(ctx, job.ID)

	runCtx, cancel := context.WithTimeout(jobCtx, w.timeout)
	err := w.runJob(runCtx, job)
	cancel()

	// Shutdown mid-job: leave the job unacked so the visibility timeout
	// redelivers it, and do not mark the document failed.
	if ctx.Err() != nil {
		logger.Info(jobCtx, "shutdown during job, leaving for redelivery", "document_id", job.DocumentID)
		return
	}

	if err == nil {
		if aerr := w.queue.Ack(jobCtx, job); aerr != nil {
			logger.Error(jobCtx, "failed to ack job", "error", aerr)
		}
		return
	}

	if IsTransient(err) && job.Attempts < w.maxAttempts {
		delay := w.backoff(job.Attempts)
		logger.Warn(jobCtx, "transient failure, will retry",
			"document_id", job.DocumentID,
			"attempt", job.Attempts,
			"retry_in", delay,
			"error", err,
		)
		if nerr := w.queue.Nack(jobCtx, job, delay); nerr != nil {
			logger.Error(jobCtx, "failed to nack job", "error", nerr)
		}
		return
	}

	detail := ErrorDetail(err)
	if IsTransient(err) {
		detail = fmt.Sprintf("%s (gave up after %d attempts)", detail, job.Attempts)
	}
	logger.Error(jobCtx, "job failed permanently",
		"document_id", job.DocumentID,
		"attempt", job.Attempts,
		"kind", string(KindOf(err)),
		"error", err,
	)
	if uerr := w.store.UpdateStatus(jobCtx, job.DocumentID, model.StatusFailed, detail); uerr != nil {
		logger.Error(jobCtx, "failed to mark document failed", "error", uerr)
	}
	if aerr := w.queue.Ack(jobCtx, job); aerr != nil {
		logger.Error(jobCtx, "failed to ack job", "error", aerr)
	}
}

func (w *Worker) runJob(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = StructuralErr("process", fmt.Errorf("panic: %v", r))
		}
	}()

	err = w.processor.Process(ctx, job.DocumentID)
	if err != nil && KindOf(err) == KindInternal && errors.Is(err, context.DeadlineExceeded) {
		err = TransientErr("process", fmt.Errorf("processing timed out after %s", w.timeout))
	}
	return err
}

func (w *Worker) backoff(attempt int) time.Duration {
	delay := w.baseBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxRetryBackoff {
			return maxRetryBackoff
		}
	}
	return delay
}
