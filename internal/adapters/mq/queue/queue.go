// Package queue defines the contract for scheduling out-of-band scoring
// work. Ingestion enqueues and returns; nothing on the request path ever
// waits for a score.
package queue

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/okian/cubetrics/pkg/metrics"
)

// defaultCapacity bounds the in-memory queue.
const defaultCapacity = 10000

// Request asks the scoring workers to score one solve.
type Request struct {
	SolveID uuid.UUID
	UserID  string
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a request. Returns false when the queue is full or
	// closed; the solve is already persisted either way, so a dropped
	// request only delays its score.
	Enqueue(ctx context.Context, req Request) bool

	// Dequeue returns a channel receiving requests as they arrive. The
	// channel closes when the queue closes.
	Dequeue(ctx context.Context) <-chan Request

	// Len returns the current number of queued requests.
	Len(ctx context.Context) int

	// Close gracefully shuts down the queue.
	Close() error
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	requests chan Request
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.requests = make(chan Request, q.capacity)
	metrics.UpdateScoreQueueCapacity(q.capacity)
	metrics.UpdateScoreQueueSize(0)
	return q
}

// Enqueue adds a request without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, req Request) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordScoreQueueDrop()
		return false
	}
	select {
	case q.requests <- req:
		metrics.UpdateScoreQueueSize(len(q.requests))
		return true
	case <-ctx.Done():
		metrics.RecordScoreQueueDrop()
		return false
	default:
		metrics.RecordScoreQueueDrop()
		return false
	}
}

// Dequeue returns a channel receiving requests as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Request {
	out := make(chan Request)
	go func() {
		defer close(out)
		for req := range q.requests {
			select {
			case out <- req:
				metrics.UpdateScoreQueueSize(len(q.requests))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued requests.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return len(q.requests)
}

// Close shuts down the queue. Enqueue returns false afterwards.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.requests)
	q.closed = true
	return nil
}
