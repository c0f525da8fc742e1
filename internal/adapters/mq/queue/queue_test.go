package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	job := NewJob(42, "Season_1_week_1", ReasonCompleted)
	if job.ID == "" || job.EnqueuedAt.IsZero() {
		t.Fatalf("expected an ID and timestamp, got %+v", job)
	}
	if err := q.Enqueue(ctx, job); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.ID != job.ID || got.GuildID != 42 || got.Name != "Season_1_week_1" {
		t.Errorf("unexpected job %+v", got)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := q.Enqueue(ctx, NewJob(1, fmt.Sprintf("t%d", i), ReasonRequested)); err != nil {
			t.Fatalf("expected enqueue to succeed, got %v", err)
		}
	}

	err := q.Enqueue(ctx, NewJob(1, "t2", ReasonRequested))
	if !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(16))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const producers, perProducer = 8, 50

	var consumed sync.Map
	var wg sync.WaitGroup
	var count sync.WaitGroup
	count.Add(producers * perProducer)
	for i := 0; i < 4; i++ {
		go func() {
			for j := range q.Dequeue(ctx) {
				consumed.Store(j.ID, j)
				count.Done()
			}
		}()
	}

	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for n := 0; n < perProducer; n++ {
				j := NewJob(uint64(id), fmt.Sprintf("t%d_%d", id, n), ReasonCompleted)
				for q.Enqueue(ctx, j) != nil {
					time.Sleep(time.Millisecond)
				}
			}
		}(p)
	}
	wg.Wait()

	done := make(chan struct{})
	go func() { count.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for consumers")
	}

	n := 0
	consumed.Range(func(_, _ any) bool { n++; return true })
	if n != producers*perProducer {
		t.Errorf("expected %d distinct jobs, got %d", producers*perProducer, n)
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if err := q.Enqueue(ctx, NewJob(1, "a", ReasonCompleted)); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}

	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected second close to be a no-op, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if err := q.Enqueue(ctx, NewJob(1, "b", ReasonCompleted)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	var names []string
	for j := range q.Dequeue(ctx) {
		names = append(names, j.Name)
	}
	if len(names) != 1 || names[0] != "a" {
		t.Errorf("expected the pending job to drain, got %v", names)
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := q.Enqueue(ctx, NewJob(1, "a", ReasonCompleted)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	select {
	case j := <-q.Dequeue(ctx):
		t.Errorf("expected no job, got %+v", j)
	default:
	}
}

func TestInMemoryQueue_LenCountsWaitingJobs(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	// Idle consumers must not pull jobs out of the count.
	consumers := []<-chan Job{q.Dequeue(ctx), q.Dequeue(ctx), q.Dequeue(ctx)}
	for i := 0; i < 2; i++ {
		if err := q.Enqueue(ctx, NewJob(1, fmt.Sprintf("t%d", i), ReasonRequested)); err != nil {
			t.Fatalf("expected enqueue to succeed, got %v", err)
		}
	}
	time.Sleep(10 * time.Millisecond)
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
	if err := q.Enqueue(ctx, NewJob(1, "t2", ReasonRequested)); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull at capacity, got %v", err)
	}

	<-consumers[0]
	q.Received()
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1 after a receive, got %d", l)
	}
}
