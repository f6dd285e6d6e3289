package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"

	"github.com/okian/scorekeeper/internal/adapters/mq/queue"
	"github.com/okian/scorekeeper/internal/adapters/mq/worker"
	logging "github.com/okian/scorekeeper/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logging.Init(); err != nil {
		panic(err)
	}
	goleak.VerifyTestMain(m)
}

func TestWorker(t *testing.T) {
	convey.Convey("Given a worker over an in-memory queue", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		w := worker.NewWorker(q, worker.WithName("test-worker"))
		go w.Run(ctx)
		defer func() {
			_ = q.Close()
			<-w.Done()
		}()

		convey.Convey("When a task is queued", func() {
			task := queue.NewTask(ctx, "set_score", func(context.Context) error { return nil })
			convey.So(q.Enqueue(ctx, task), convey.ShouldBeTrue)

			convey.Convey("Then its result is delivered", func() {
				convey.So(<-task.Done, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a task fails", func() {
			boom := errors.New("boom")
			task := queue.NewTask(ctx, "set_score", func(context.Context) error { return boom })
			convey.So(q.Enqueue(ctx, task), convey.ShouldBeTrue)

			convey.Convey("Then the error is delivered unchanged", func() {
				convey.So(<-task.Done, convey.ShouldEqual, boom)
			})
		})

		convey.Convey("When a task panics", func() {
			task := queue.NewTask(ctx, "explode", func(context.Context) error { panic("kaboom") })
			convey.So(q.Enqueue(ctx, task), convey.ShouldBeTrue)

			convey.Convey("Then the panic becomes an error and the worker keeps going", func() {
				convey.So(errors.Is(<-task.Done, worker.ErrTaskPanicked), convey.ShouldBeTrue)

				next := queue.NewTask(ctx, "after", func(context.Context) error { return nil })
				convey.So(q.Enqueue(ctx, next), convey.ShouldBeTrue)
				convey.So(<-next.Done, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the submitter gave up before the task ran", func() {
			cctx, cancel := context.WithCancel(ctx)
			ran := false
			task := queue.NewTask(cctx, "late", func(context.Context) error { ran = true; return nil })
			cancel()
			// Enqueue directly: the queue itself refuses cancelled contexts.
			convey.So(q.Enqueue(ctx, task), convey.ShouldBeTrue)

			convey.Convey("Then it is skipped with the context error", func() {
				convey.So(errors.Is(<-task.Done, context.Canceled), convey.ShouldBeTrue)
				convey.So(ran, convey.ShouldBeFalse)
			})
		})
	})
}

func TestExecutor(t *testing.T) {
	convey.Convey("Given a started executor", t, func() {
		ctx := context.Background()
		e := worker.NewExecutor(16)
		e.Start(ctx)
		defer func() { _ = e.Stop(ctx) }()

		convey.Convey("When many goroutines submit concurrently", func() {
			const n = 100
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				running int
				overlap bool
				total   int
			)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for {
						err := e.Submit(ctx, "inc", func(context.Context) error {
							mu.Lock()
							running++
							if running > 1 {
								overlap = true
							}
							mu.Unlock()

							total++ // only ever touched from the worker goroutine

							mu.Lock()
							running--
							mu.Unlock()
							return nil
						})
						if !errors.Is(err, worker.ErrBusy) {
							return
						}
						time.Sleep(time.Millisecond)
					}
				}()
			}
			wg.Wait()

			convey.Convey("Then every task ran exactly once and never in parallel", func() {
				convey.So(total, convey.ShouldEqual, n)
				convey.So(overlap, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When a task returns an error", func() {
			boom := errors.New("boom")
			err := e.Submit(ctx, "fail", func(context.Context) error { return boom })
			convey.So(err, convey.ShouldEqual, boom)
		})

		convey.Convey("When the executor is stopped", func() {
			convey.So(e.Stop(ctx), convey.ShouldBeNil)
			err := e.Submit(ctx, "late", func(context.Context) error { return nil })
			convey.So(errors.Is(err, worker.ErrStopped), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given an executor whose queue is full", t, func() {
		ctx := context.Background()
		e := worker.NewExecutor(1)
		e.Start(ctx)
		defer func() { _ = e.Stop(ctx) }()

		release := make(chan struct{})
		started := make(chan struct{})
		blockerDone := make(chan error, 1)
		go func() {
			blockerDone <- e.Submit(ctx, "block", func(context.Context) error {
				close(started)
				<-release
				return nil
			})
		}()
		<-started

		fillerDone := make(chan error, 1)
		go func() {
			fillerDone <- e.Submit(ctx, "fill", func(context.Context) error { return nil })
		}()
		for e.Pending(ctx) == 0 {
			time.Sleep(time.Millisecond)
		}

		convey.Convey("When another task is submitted", func() {
			err := e.Submit(ctx, "overflow", func(context.Context) error { return nil })
			close(release)

			convey.Convey("Then it is rejected without waiting", func() {
				convey.So(errors.Is(err, worker.ErrBusy), convey.ShouldBeTrue)
				convey.So(<-blockerDone, convey.ShouldBeNil)
				convey.So(<-fillerDone, convey.ShouldBeNil)
			})
		})
	})
}

func TestExecutor_CancelledSubmitter(t *testing.T) {
	convey.Convey("Given a started executor", t, func() {
		ctx := context.Background()
		e := worker.NewExecutor(4)
		e.Start(ctx)
		defer func() { _ = e.Stop(ctx) }()

		convey.Convey("When the submitter cancels after its task started", func() {
			cctx, cancel := context.WithCancel(ctx)
			started := make(chan struct{})
			var applied atomic.Bool
			done := make(chan error, 1)
			go func() {
				done <- e.Submit(cctx, "set_score", func(context.Context) error {
					close(started)
					time.Sleep(50 * time.Millisecond)
					applied.Store(true)
					return nil
				})
			}()
			<-started
			cancel()
			err := <-done

			convey.Convey("Then it gets the task's own result, not the cancellation", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(applied.Load(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the submitter cancels while its task is still queued", func() {
			started := make(chan struct{})
			release := make(chan struct{})
			blockerDone := make(chan error, 1)
			go func() {
				blockerDone <- e.Submit(ctx, "block", func(context.Context) error {
					close(started)
					<-release
					return nil
				})
			}()
			<-started

			cctx, cancel := context.WithCancel(ctx)
			var ran atomic.Bool
			done := make(chan error, 1)
			go func() {
				done <- e.Submit(cctx, "queued", func(context.Context) error {
					ran.Store(true)
					return nil
				})
			}()
			for e.Pending(ctx) == 0 {
				time.Sleep(time.Millisecond)
			}
			cancel()
			err := <-done
			close(release)
			convey.So(<-blockerDone, convey.ShouldBeNil)

			convey.Convey("Then the task is withdrawn and never runs", func() {
				convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
				// A follow-up task runs after the withdrawn one was skipped.
				convey.So(e.Submit(ctx, "after", func(context.Context) error { return nil }), convey.ShouldBeNil)
				convey.So(ran.Load(), convey.ShouldBeFalse)
			})
		})
	})
}
