package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Queue hands pending run IDs to the worker pool.
type Queue interface {
	Enqueue(ctx context.Context, runID string) error
	Dequeue(ctx context.Context) (string, error)
	Close()
}

// MemoryQueue is a bounded in-memory run queue with context-aware
// operations.
type MemoryQueue struct {
	ch      chan string
	closeMu sync.Mutex
	closed  bool
}

// NewMemoryQueue constructs a queue with the provided capacity.
func NewMemoryQueue(capacity int) *MemoryQueue {
	return &MemoryQueue{
		ch: make(chan string, capacity),
	}
}

// Enqueue pushes a run into the queue or returns if the context ends.
func (q *MemoryQueue) Enqueue(ctx context.Context, runID string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- runID:
		return nil
	}
}

// Dequeue pops the next run, respecting context cancellation.
func (q *MemoryQueue) Dequeue(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case runID, ok := <-q.ch:
		if !ok {
			return "", errors.New("queue closed")
		}
		return runID, nil
	}
}

// Close closes the underlying channel for shutdown.
func (q *MemoryQueue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
