package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/cubetrics/internal/adapters/mq/queue"
	"github.com/okian/cubetrics/internal/adapters/mq/worker"
)

// recordingEngine collects the solve ids it was asked to score.
type recordingEngine struct {
	mu     sync.Mutex
	scored []uuid.UUID
	fail   map[uuid.UUID]error
	seen   chan uuid.UUID
}

func newRecordingEngine() *recordingEngine {
	return &recordingEngine{
		fail: make(map[uuid.UUID]error),
		seen: make(chan uuid.UUID, 64),
	}
}

func (e *recordingEngine) ScoreStored(_ context.Context, solveID uuid.UUID) error {
	e.mu.Lock()
	e.scored = append(e.scored, solveID)
	err := e.fail[solveID]
	e.mu.Unlock()
	e.seen <- solveID
	return err
}

func (e *recordingEngine) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.scored)
}

func TestWorker(t *testing.T) {
	Convey("Given a worker over a queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		engine := newRecordingEngine()
		w := worker.New(q, engine, worker.WithName("test-worker"))
		ctx := context.Background()

		Convey("When a request is enqueued", func() {
			go w.Run(ctx)

			solveID := uuid.New()
			So(q.Enqueue(ctx, queue.Request{SolveID: solveID, UserID: "u1"}), ShouldBeTrue)

			Convey("Then the engine scores it", func() {
				select {
				case got := <-engine.seen:
					So(got, ShouldEqual, solveID)
				case <-time.After(time.Second):
					t.Fatal("request never reached the engine")
				}

				So(w.Shutdown(ctx), ShouldBeNil)
			})
		})

		Convey("When the engine fails a request", func() {
			go w.Run(ctx)

			bad := uuid.New()
			good := uuid.New()
			engine.fail[bad] = errors.New("scoring broke")

			So(q.Enqueue(ctx, queue.Request{SolveID: bad, UserID: "u1"}), ShouldBeTrue)
			So(q.Enqueue(ctx, queue.Request{SolveID: good, UserID: "u1"}), ShouldBeTrue)

			Convey("Then the failure does not stop later requests", func() {
				for i := 0; i < 2; i++ {
					select {
					case <-engine.seen:
					case <-time.After(time.Second):
						t.Fatal("worker stalled after a failure")
					}
				}
				So(engine.count(), ShouldEqual, 2)

				So(w.Shutdown(ctx), ShouldBeNil)
			})
		})

		Convey("When the worker is shut down", func() {
			go w.Run(ctx)

			Convey("Then Shutdown returns promptly", func() {
				So(w.Shutdown(ctx), ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	Convey("Given a pool of workers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		engine := newRecordingEngine()
		pool := worker.NewPool(4, q, engine)
		ctx := context.Background()

		Convey("When many requests are enqueued", func() {
			pool.Start(ctx)

			const n = 20
			for i := 0; i < n; i++ {
				So(q.Enqueue(ctx, queue.Request{SolveID: uuid.New(), UserID: "u1"}), ShouldBeTrue)
			}

			Convey("Then every request is scored exactly once", func() {
				for i := 0; i < n; i++ {
					select {
					case <-engine.seen:
					case <-time.After(2 * time.Second):
						t.Fatalf("only %d of %d requests processed", i, n)
					}
				}
				So(engine.count(), ShouldEqual, n)

				So(pool.Shutdown(ctx), ShouldBeNil)
			})
		})

		Convey("When the pool shuts down with work still queued", func() {
			const n = 10
			for i := 0; i < n; i++ {
				So(q.Enqueue(ctx, queue.Request{SolveID: uuid.New(), UserID: "u1"}), ShouldBeTrue)
			}
			pool.Start(ctx)

			Convey("Then shutdown drains the queue before returning", func() {
				So(pool.Shutdown(ctx), ShouldBeNil)
				So(engine.count(), ShouldEqual, n)
			})
		})
	})
}
