package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/hookscore/internal/adapters/mq/queue"
	"github.com/okian/hookscore/internal/adapters/mq/worker"
	logging "github.com/okian/hookscore/pkg/logger"
)

type mockProcessor struct {
	mu        sync.Mutex
	processed []string
	failures  map[string]error
}

func newMockProcessor() *mockProcessor {
	return &mockProcessor{failures: make(map[string]error)}
}

func (m *mockProcessor) Process(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed = append(m.processed, id)
	return m.failures[id]
}

func (m *mockProcessor) seen() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.processed...)
}

func (m *mockProcessor) fail(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[id] = err
}

func TestWorker(t *testing.T) {
	convey.Convey("Given a worker over an in-memory queue", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		proc := newMockProcessor()
		w := worker.New(q, proc, worker.WithName("test-worker"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When ids are enqueued", func() {
			convey.So(q.Enqueue(ctx, "evt-1"), convey.ShouldBeNil)
			convey.So(q.Enqueue(ctx, "evt-2"), convey.ShouldBeNil)

			convey.Convey("Then each id is processed in order", func() {
				convey.So(waitFor(func() bool { return len(proc.seen()) == 2 }), convey.ShouldBeTrue)
				convey.So(proc.seen(), convey.ShouldResemble, []string{"evt-1", "evt-2"})
			})
		})

		convey.Convey("When processing one id fails", func() {
			proc.fail("bad", errors.New("boom"))
			convey.So(q.Enqueue(ctx, "bad"), convey.ShouldBeNil)
			convey.So(q.Enqueue(ctx, "good"), convey.ShouldBeNil)

			convey.Convey("Then the worker keeps going", func() {
				convey.So(waitFor(func() bool { return len(proc.seen()) == 2 }), convey.ShouldBeTrue)
				convey.So(proc.seen()[1], convey.ShouldEqual, "good")
			})
		})

		convey.Convey("When the worker is shut down", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()

			convey.Convey("Then it stops and a second shutdown is harmless", func() {
				convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
				convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of workers", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		proc := newMockProcessor()
		pool := worker.NewPool(4, q, proc)
		convey.So(pool.Size(), convey.ShouldEqual, 4)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
			convey.So(q.Enqueue(ctx, id), convey.ShouldBeNil)
		}

		convey.Convey("Then every id is processed exactly once", func() {
			convey.So(waitFor(func() bool { return len(proc.seen()) == 6 }), convey.ShouldBeTrue)
			convey.So(proc.seen(), convey.ShouldContain, "a")
			convey.So(proc.seen(), convey.ShouldContain, "f")
		})

		convey.Convey("Then shutdown closes the queue", func() {
			convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
			convey.So(q.IsClosed(), convey.ShouldBeTrue)
		})
	})

	convey.Convey("A non-positive worker count defaults to at least one worker", t, func() {
		_ = logging.Init()
		pool := worker.NewPool(0, queue.NewInMemoryQueue(), newMockProcessor())
		convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
	})
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
