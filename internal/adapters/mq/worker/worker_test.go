package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/duelkit/internal/adapters/mq/queue"
	"github.com/okian/duelkit/internal/adapters/mq/worker"
	logging "github.com/okian/duelkit/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// recorder is a Handler that remembers which tournaments it exported.
type recorder struct {
	mu     sync.Mutex
	seen   map[string]int
	errs   map[string]error
	delay  time.Duration
	panics map[string]bool
}

func newRecorder() *recorder {
	return &recorder{seen: map[string]int{}, errs: map[string]error{}, panics: map[string]bool{}}
}

func (r *recorder) Handle(ctx context.Context, j queue.Job) error {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.panics[j.Name] {
		panic("boom")
	}
	r.seen[j.Name]++
	return r.errs[j.Name]
}

func (r *recorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen[name]
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.seen {
		n += c
	}
	return n
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a new worker pool", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		h := newRecorder()

		convey.Convey("When creating a pool with default count", func() {
			pool := worker.NewPool(0, q, h)

			convey.Convey("Then it has at least one worker", func() {
				convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
				convey.So(pool.Active(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When a started pool receives jobs", func() {
			pool := worker.NewPool(2, q, h)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.Start(ctx)

			for _, name := range []string{"S_1", "S_2", "S_3"} {
				convey.So(q.Enqueue(ctx, queue.NewJob(7, name, queue.ReasonCompleted)), convey.ShouldBeNil)
			}

			convey.Convey("Then every job is handled once", func() {
				convey.So(waitFor(func() bool { return h.total() == 3 }), convey.ShouldBeTrue)
				convey.So(h.count("S_1"), convey.ShouldEqual, 1)
				convey.So(h.count("S_2"), convey.ShouldEqual, 1)
				convey.So(h.count("S_3"), convey.ShouldEqual, 1)
			})

			convey.Convey("And when shutting down", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
				defer shutdownCancel()

				err := pool.Shutdown(shutdownCtx)

				convey.Convey("Then pending jobs drain and the queue is closed", func() {
					convey.So(err, convey.ShouldBeNil)
					convey.So(h.total(), convey.ShouldEqual, 3)
					convey.So(q.IsClosed(), convey.ShouldBeTrue)
				})
			})
		})

		convey.Convey("When a handler fails or panics", func() {
			h.errs["bad"] = errors.New("disk full")
			h.panics["worse"] = true
			pool := worker.NewPool(1, q, h)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.Start(ctx)

			for _, name := range []string{"bad", "worse", "good"} {
				convey.So(q.Enqueue(ctx, queue.NewJob(1, name, queue.ReasonRequested)), convey.ShouldBeNil)
			}

			convey.Convey("Then the worker keeps going", func() {
				convey.So(waitFor(func() bool { return h.count("good") == 1 }), convey.ShouldBeTrue)
				convey.So(h.count("bad"), convey.ShouldEqual, 1)
			})
		})
	})
}

func TestWorkerOptions(t *testing.T) {
	convey.Convey("Given a worker with a short job timeout", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue()
		var got error
		done := make(chan struct{})
		h := worker.HandlerFunc(func(ctx context.Context, _ queue.Job) error {
			<-ctx.Done()
			got = ctx.Err()
			close(done)
			return got
		})
		w := worker.NewInMemoryWorker(q, h, worker.WithName("slow"), worker.WithJobTimeout(20*time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.So(q.Enqueue(ctx, queue.NewJob(1, "slow", queue.ReasonRequested)), convey.ShouldBeNil)

		convey.Convey("Then the handler context expires", func() {
			select {
			case <-done:
			case <-time.After(2 * time.Second):
			}
			convey.So(errors.Is(got, context.DeadlineExceeded), convey.ShouldBeTrue)
			convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
		})
	})
}

func TestWorkerConcurrency(t *testing.T) {
	convey.Convey("Given a worker pool with multiple workers", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(32))
		h := newRecorder()
		h.delay = time.Millisecond
		pool := worker.NewPool(4, q, h)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When many producers enqueue concurrently", func() {
			const producers, perProducer = 5, 20
			var wg sync.WaitGroup
			for i := 0; i < producers; i++ {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					for j := 0; j < perProducer; j++ {
						job := queue.NewJob(uint64(id), fmt.Sprintf("t-%d-%d", id, j), queue.ReasonCompleted)
						for q.Enqueue(ctx, job) != nil {
							time.Sleep(time.Millisecond)
						}
					}
				}(i)
			}
			wg.Wait()

			convey.Convey("Then every job is handled exactly once", func() {
				convey.So(waitFor(func() bool { return h.total() == producers*perProducer }), convey.ShouldBeTrue)
				convey.So(h.count("t-3-7"), convey.ShouldEqual, 1)
				pool.UpdateMetrics()
				convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})
	})
}
