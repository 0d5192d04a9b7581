package service

import (
	"context"
	"testing"
	"time"
)

func TestMemoryQueueEnqueueDequeueAck(t *testing.T) {
	q := NewMemoryQueue(time.Minute)
	ctx := context.Background()

	enqueued, err := q.Enqueue(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if enqueued.ID == "" {
		t.Error("Expected job ID to be set")
	}

	job, err := q.Dequeue(ctx, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if job == nil {
		t.Fatal("Expected a job")
	}
	if job.DocumentID != "doc-1" {
		t.Errorf("Expected document doc-1, got %s", job.DocumentID)
	}
	if job.Attempts != 1 {
		t.Errorf("Expected 1 attempt on first delivery, got %d", job.Attempts)
	}

	if err := q.Ack(ctx, job); err != nil {
		t.Fatalf("Ack failed: %v", err)
	}

	again, err := q.Dequeue(ctx, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if again != nil {
		t.Errorf("Expected no job after ack, got %+v", again)
	}
}

func TestMemoryQueueEmptyTimesOut(t *testing.T) {
	q := NewMemoryQueue(time.Minute)

	job, err := q.Dequeue(context.Background(), 30*time.Millisecond)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if job != nil {
		t.Errorf("Expected nil job from empty queue, got %+v", job)
	}
}

func TestMemoryQueueNackRedelivers(t *testing.T) {
	q := NewMemoryQueue(time.Minute)
	ctx := context.Background()

	q.Enqueue(ctx, "doc-1")
	job, _ := q.Dequeue(ctx, 100*time.Millisecond)
	if job == nil {
		t.Fatal("Expected a job")
	}

	if err := q.Nack(ctx, job, 0); err != nil {
		t.Fatalf("Nack failed: %v", err)
	}

	redelivered, err := q.Dequeue(ctx, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if redelivered == nil {
		t.Fatal("Expected redelivery after nack")
	}
	if redelivered.ID != job.ID {
		t.Errorf("Expected same job ID %s, got %s", job.ID, redelivered.ID)
	}
	if redelivered.Attempts != 2 {
		t.Errorf("Expected 2 attempts after redelivery, got %d", redelivered.Attempts)
	}
}

func TestMemoryQueueNackDelay(t *testing.T) {
	q := NewMemoryQueue(time.Minute)
	ctx := context.Background()

	q.Enqueue(ctx, "doc-1")
	job, _ := q.Dequeue(ctx, 100*time.Millisecond)
	q.Nack(ctx, job, 60*time.Millisecond)

	immediate, err := q.Dequeue(ctx, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if immediate != nil {
		t.Error("Expected job to stay invisible during the nack delay")
	}

	delayed, err := q.Dequeue(ctx, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if delayed == nil {
		t.Fatal("Expected job after the nack delay elapsed")
	}
	if delayed.Attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", delayed.Attempts)
	}
}

func TestMemoryQueueVisibilityTimeoutRedelivers(t *testing.T) {
	q := NewMemoryQueue(30 * time.Millisecond)
	ctx := context.Background()

	q.Enqueue(ctx, "doc-1")
	first, _ := q.Dequeue(ctx, 100*time.Millisecond)
	if first == nil {
		t.Fatal("Expected a job")
	}

	// No ack: the visibility timeout should expire and the job come back.
	second, err := q.Dequeue(ctx, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if second == nil {
		t.Fatal("Expected redelivery after visibility timeout")
	}
	if second.ID != first.ID {
		t.Errorf("Expected same job ID %s, got %s", first.ID, second.ID)
	}
	if second.Attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", second.Attempts)
	}
}

func TestMemoryQueueDepth(t *testing.T) {
	q := NewMemoryQueue(time.Minute)
	ctx := context.Background()

	for _, id := range []string{"doc-1", "doc-2", "doc-3"} {
		q.Enqueue(ctx, id)
	}

	depth, err := q.Depth(ctx)
	if err != nil {
		t.Fatalf("Depth failed: %v", err)
	}
	if depth != 3 {
		t.Errorf("Expected depth 3, got %d", depth)
	}

	q.Dequeue(ctx, 100*time.Millisecond)
	depth, _ = q.Depth(ctx)
	if depth != 2 {
		t.Errorf("Expected depth 2 with one job in flight, got %d", depth)
	}
}

func TestMemoryQueueOldestFirst(t *testing.T) {
	q := NewMemoryQueue(time.Minute)
	ctx := context.Background()

	q.Enqueue(ctx, "doc-old")
	time.Sleep(2 * time.Millisecond)
	q.Enqueue(ctx, "doc-new")

	job, err := q.Dequeue(ctx, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if job.DocumentID != "doc-old" {
		t.Errorf("Expected oldest job first, got %s", job.DocumentID)
	}
}

func TestMemoryQueueDequeueCancelled(t *testing.T) {
	q := NewMemoryQueue(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := q.Dequeue(ctx, time.Second)
	if err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
