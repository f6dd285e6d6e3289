// Package queue holds the bounded in-memory task queue that feeds the
// contract's single consumer.
package queue

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/okian/scorekeeper/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Task states. A task leaves taskPending exactly once.
const (
	taskPending int32 = iota
	taskClaimed
	taskAbandoned
)

// Task is one unit of serialized work. Done receives exactly one value: the
// result of Run, or the context error when the task was abandoned before it
// started. Done must be buffered so the consumer never blocks on it.
type Task struct {
	Op   string
	Ctx  context.Context //nolint:containedctx // carried to the consumer with the work
	Run  func(ctx context.Context) error
	Done chan error

	state *atomic.Int32
}

// NewTask builds a pending Task with a buffered Done channel.
func NewTask(ctx context.Context, op string, run func(ctx context.Context) error) Task {
	return Task{Op: op, Ctx: ctx, Run: run, Done: make(chan error, 1), state: new(atomic.Int32)}
}

// Claim marks the task as taken by the consumer. It fails when the submitter
// abandoned the task first.
func (t Task) Claim() bool {
	return t.state.CompareAndSwap(taskPending, taskClaimed)
}

// Abandon withdraws a task that the consumer has not claimed yet. Once it
// fails, the task runs to completion and its result arrives on Done.
func (t Task) Abandon() bool {
	return t.state.CompareAndSwap(taskPending, taskAbandoned)
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a task. It returns false if the queue is full or closed.
	Enqueue(ctx context.Context, t Task) bool

	// Dequeue returns the channel tasks are delivered on. It is closed
	// after Close once drained.
	Dequeue(ctx context.Context) <-chan Task

	// Len returns the current number of queued tasks.
	Len(ctx context.Context) int

	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	tasks    chan Task
	capacity int

	mu     sync.RWMutex
	closed bool
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.tasks = make(chan Task, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a task to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, t Task) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejected("closed")
		return false
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueRejected("context_cancelled")
		return false
	}

	select {
	case q.tasks <- t:
		metrics.UpdateQueueSize(len(q.tasks))
		return true
	default:
		metrics.RecordQueueRejected("queue_full")
		return false
	}
}

// Dequeue implements Queue.
func (q *InMemoryQueue) Dequeue(context.Context) <-chan Task {
	return q.tasks
}

// Len implements Queue.
func (q *InMemoryQueue) Len(context.Context) int {
	size := len(q.tasks)
	metrics.UpdateQueueSize(size)
	return size
}

// Capacity returns the configured maximum number of queued tasks.
func (q *InMemoryQueue) Capacity() int {
	return q.capacity
}

// Close stops accepting tasks. Tasks already queued are still delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.tasks)
	q.closed = true
	return nil
}

// IsClosed implements Queue.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
