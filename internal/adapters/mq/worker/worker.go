// Package worker runs queued tasks one at a time so every contract operation
// observes a consistent store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/scorekeeper/internal/adapters/mq/queue"
	"github.com/okian/scorekeeper/pkg/logger"
	"github.com/okian/scorekeeper/pkg/metrics"
)

// Sentinel kinds for executor errors.
var (
	// ErrBusy is returned when the queue is full.
	ErrBusy = errors.New("executor busy")
	// ErrStopped is returned once the executor no longer accepts work.
	ErrStopped = errors.New("executor stopped")
	// ErrTaskPanicked wraps a panic recovered from a task.
	ErrTaskPanicked = errors.New("task panicked")
)

// Queue defines how the worker receives tasks.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Task
	Len(ctx context.Context) int
}

// Worker is the single consumer of a Queue.
type Worker struct {
	queue  Queue
	name   string
	logger logger.Logger
	done   chan struct{}
}

// NewWorker creates a worker reading from q.
func NewWorker(q Queue, opts ...Option) *Worker {
	w := &Worker{
		queue: q,
		name:  "worker",
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run processes tasks until the queue is closed and drained or ctx is done.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	tasks := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-tasks:
			if !ok {
				return
			}
			w.process(ctx, task)
		}
	}
}

// Done is closed when Run returns.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) process(ctx context.Context, task queue.Task) {
	defer metrics.UpdateQueueSize(w.queue.Len(ctx))

	// The submitter gave up before the task reached the front.
	if !task.Claim() {
		metrics.RecordQueueRejected("abandoned")
		task.Done <- task.Ctx.Err()
		return
	}
	if err := task.Ctx.Err(); err != nil {
		metrics.RecordQueueRejected("abandoned")
		task.Done <- err
		return
	}

	start := time.Now()
	err := run(task)
	w.logger.Debug(ctx, "task finished",
		logger.String("op", task.Op),
		logger.Float64("latency_ms", float64(time.Since(start).Microseconds())/1000),
		logger.Bool("ok", err == nil),
	)
	task.Done <- err
}

func run(task queue.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrTaskPanicked, task.Op, r)
		}
	}()
	return task.Run(task.Ctx)
}

// Executor pairs a bounded queue with its single worker.
type Executor struct {
	queue   *queue.InMemoryQueue
	worker  *Worker
	logger  logger.Logger
	started atomic.Bool
	stop    sync.Once
}

// NewExecutor creates an executor whose queue holds at most capacity tasks.
func NewExecutor(capacity int, opts ...Option) *Executor {
	q := queue.NewInMemoryQueue(queue.WithCapacity(capacity))
	w := NewWorker(q, opts...)
	return &Executor{queue: q, worker: w, logger: w.logger}
}

// Start launches the worker. Calls after the first are no-ops.
func (e *Executor) Start(ctx context.Context) {
	if e.started.CompareAndSwap(false, true) {
		go e.worker.Run(ctx)
	}
}

// Submit queues fn and waits for its result. It fails fast with ErrBusy when
// the queue is full and ErrStopped after Stop. Cancelling ctx withdraws a task
// that has not started; once the worker has claimed it, Submit waits for the
// real result so a reported failure never hides an applied write.
func (e *Executor) Submit(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	task := queue.NewTask(ctx, op, fn)
	if !e.queue.Enqueue(ctx, task) {
		switch {
		case e.queue.IsClosed():
			return ErrStopped
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			return fmt.Errorf("%w: %d tasks queued", ErrBusy, e.queue.Capacity())
		}
	}

	select {
	case err := <-task.Done:
		return err
	case <-ctx.Done():
		if task.Abandon() {
			return ctx.Err()
		}
		return <-task.Done
	case <-e.worker.Done():
		// The worker may have finished the task just before exiting.
		select {
		case err := <-task.Done:
			return err
		default:
			if !task.Abandon() {
				return <-task.Done
			}
			return ErrStopped
		}
	}
}

// Pending returns the number of queued tasks.
func (e *Executor) Pending(ctx context.Context) int {
	return e.queue.Len(ctx)
}

// Capacity returns the queue bound.
func (e *Executor) Capacity() int {
	return e.queue.Capacity()
}

// Stop closes the queue and waits for the worker to drain it.
func (e *Executor) Stop(ctx context.Context) error {
	e.stop.Do(func() {
		_ = e.queue.Close()
	})
	if !e.started.Load() {
		return nil
	}
	select {
	case <-e.worker.Done():
		return nil
	case <-ctx.Done():
		e.logger.Warn(ctx, "executor shutdown timed out", logger.Int("pending", e.queue.Len(ctx)))
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
