package poller_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/hookscore/internal/adapters/mq/poller"
	"github.com/okian/hookscore/internal/domain/model"
	logging "github.com/okian/hookscore/pkg/logger"
)

// fakeStore keeps events in memory and hides processed ones from scans.
type fakeStore struct {
	mu        sync.Mutex
	events    []model.InboundEvent
	processed map[string]bool
	listErr   error
}

func (s *fakeStore) ListUnprocessed(_ context.Context, limit int) ([]model.InboundEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	sorted := append([]model.InboundEvent(nil), s.events...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ReceivedAt.Before(sorted[j].ReceivedAt) })

	var out []model.InboundEvent
	for _, ev := range sorted {
		if s.processed[ev.ID] {
			continue
		}
		out = append(out, ev)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakeHandler struct {
	store *fakeStore
	mu    sync.Mutex
	order []string
	fail  map[string]error
	block chan struct{}
}

func (h *fakeHandler) ProcessEvent(_ context.Context, ev *model.InboundEvent) error {
	if h.block != nil {
		<-h.block
	}
	h.mu.Lock()
	h.order = append(h.order, ev.ID)
	err := h.fail[ev.ID]
	h.mu.Unlock()
	if err != nil {
		return err
	}
	h.store.mu.Lock()
	h.store.processed[ev.ID] = true
	h.store.mu.Unlock()
	return nil
}

func (h *fakeHandler) seen() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.order...)
}

func newFixture(n int) (*fakeStore, *fakeHandler) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{processed: map[string]bool{}}
	// inserted newest first so ordering comes from received_at
	for i := n - 1; i >= 0; i-- {
		store.events = append(store.events, model.InboundEvent{
			ID:         string(rune('a' + i)),
			DeliveryID: "d-" + string(rune('a'+i)),
			ReceivedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	return store, &fakeHandler{store: store, fail: map[string]error{}}
}

func TestPollerTick(t *testing.T) {
	convey.Convey("Given a poller over 12 stored events", t, func() {
		_ = logging.Init()
		ctx := context.Background()
		store, handler := newFixture(12)
		p := poller.New(store, handler, poller.WithBatchSize(10))

		convey.Convey("When one tick runs", func() {
			rep := p.Tick(ctx)

			convey.Convey("Then the ten oldest are processed oldest first", func() {
				convey.So(rep.Picked, convey.ShouldEqual, 10)
				convey.So(rep.Failed, convey.ShouldEqual, 0)
				convey.So(handler.seen(), convey.ShouldResemble,
					[]string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"})
			})

			convey.Convey("Then the next tick picks up the remainder", func() {
				rep2 := p.Tick(ctx)
				convey.So(rep2.Picked, convey.ShouldEqual, 2)
				convey.So(handler.seen()[10:], convey.ShouldResemble, []string{"k", "l"})
				convey.So(p.Tick(ctx).Picked, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When one event fails", func() {
			handler.fail["b"] = errors.New("boom")
			rep := p.Tick(ctx)

			convey.Convey("Then the others still succeed and the failure is retried", func() {
				convey.So(rep.Failed, convey.ShouldEqual, 1)
				convey.So(store.processed["a"], convey.ShouldBeTrue)
				convey.So(store.processed["c"], convey.ShouldBeTrue)
				convey.So(store.processed["b"], convey.ShouldBeFalse)

				delete(handler.fail, "b")
				rep2 := p.Tick(ctx)
				convey.So(rep2.Failed, convey.ShouldEqual, 0)
				convey.So(store.processed["b"], convey.ShouldBeTrue)
			})
		})

		convey.Convey("When listing fails", func() {
			store.listErr = errors.New("db down")
			rep := p.Tick(ctx)

			convey.Convey("Then the error is reported and nothing is processed", func() {
				convey.So(rep.ListError, convey.ShouldNotBeNil)
				convey.So(handler.seen(), convey.ShouldBeEmpty)
			})
		})
	})
}

func TestPollerOverlap(t *testing.T) {
	convey.Convey("Given a tick blocked inside the handler", t, func() {
		_ = logging.Init()
		ctx := context.Background()
		store, handler := newFixture(1)
		handler.block = make(chan struct{})
		p := poller.New(store, handler)

		first := make(chan poller.Report)
		go func() { first <- p.Tick(ctx) }()
		time.Sleep(20 * time.Millisecond)

		convey.Convey("Then a concurrent tick is skipped", func() {
			convey.So(p.Tick(ctx).Skipped, convey.ShouldBeTrue)
			close(handler.block)
			rep := <-first
			convey.So(rep.Skipped, convey.ShouldBeFalse)
			convey.So(rep.Picked, convey.ShouldEqual, 1)
		})
	})
}

func TestPollerRun(t *testing.T) {
	convey.Convey("Given a running poller with a short interval", t, func() {
		_ = logging.Init()
		store, handler := newFixture(3)
		p := poller.New(store, handler,
			poller.WithInterval(10*time.Millisecond),
			poller.WithBatchSize(1),
		)
		convey.So(p.Interval(), convey.ShouldEqual, 10*time.Millisecond)
		convey.So(p.BatchSize(), convey.ShouldEqual, 1)

		ctx, cancel := context.WithCancel(context.Background())
		stopped := make(chan struct{})
		go func() {
			p.Run(ctx)
			close(stopped)
		}()

		convey.Convey("Then all events drain and cancel stops it", func() {
			deadline := time.Now().Add(2 * time.Second)
			for len(handler.seen()) < 3 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			convey.So(handler.seen(), convey.ShouldResemble, []string{"a", "b", "c"})

			cancel()
			select {
			case <-stopped:
			case <-time.After(2 * time.Second):
				t.Fatal("poller did not stop")
			}
		})
	})
}

func TestPollerRunWaitsForBatch(t *testing.T) {
	convey.Convey("Given a running poller whose batch is blocked in the handler", t, func() {
		_ = logging.Init()
		store, handler := newFixture(3)
		handler.block = make(chan struct{})
		p := poller.New(store, handler, poller.WithInterval(time.Hour))

		ctx, cancel := context.WithCancel(context.Background())
		stopped := make(chan struct{})
		go func() {
			p.Run(ctx)
			close(stopped)
		}()
		time.Sleep(20 * time.Millisecond)

		convey.Convey("When the context is cancelled mid-batch", func() {
			cancel()

			convey.Convey("Then Run waits and the whole batch completes", func() {
				select {
				case <-stopped:
					t.Fatal("poller returned while a tick was running")
				case <-time.After(50 * time.Millisecond):
				}

				close(handler.block)
				select {
				case <-stopped:
				case <-time.After(2 * time.Second):
					t.Fatal("poller did not stop")
				}
				convey.So(handler.seen(), convey.ShouldResemble, []string{"a", "b", "c"})
			})
		})
	})
}
