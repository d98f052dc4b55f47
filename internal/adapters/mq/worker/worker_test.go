package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/betedge/internal/adapters/mq/queue"
	worker "github.com/okian/betedge/internal/adapters/mq/worker"
	"github.com/okian/betedge/internal/domain/odds"
	"github.com/okian/betedge/internal/domain/picks"
	logging "github.com/okian/betedge/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	if err := logging.Init(); err != nil {
		panic(err)
	}
	goleak.VerifyTestMain(m)
}

type mockAnalyzer struct {
	mu     sync.Mutex
	errors map[string]error
}

func newMockAnalyzer() *mockAnalyzer {
	return &mockAnalyzer{errors: make(map[string]error)}
}

func (a *mockAnalyzer) setError(gameID string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errors[gameID] = err
}

func (a *mockAnalyzer) Analyze(_ context.Context, job queue.Job) (picks.Recommendation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err, ok := a.errors[job.Game.ID]; ok {
		return picks.Recommendation{}, err
	}
	return picks.Recommendation{GameID: job.Game.ID, Sport: job.Sport, Score: 1}, nil
}

type mockPublisher struct {
	mu   sync.Mutex
	recs map[string]picks.Recommendation
	err  error
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{recs: make(map[string]picks.Recommendation)}
}

func (p *mockPublisher) Publish(_ context.Context, rec picks.Recommendation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.recs[rec.GameID] = rec
	return nil
}

func (p *mockPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.recs)
}

func job(gameID string) queue.Job {
	return queue.Job{JobID: "job-" + gameID, Sport: odds.NBA, Game: odds.Game{ID: gameID}}
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

func TestPool(t *testing.T) {
	convey.Convey("Given a worker pool over a real queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		analyzer := newMockAnalyzer()
		publisher := newMockPublisher()
		pool := worker.NewPool(4, q, analyzer, publisher)
		ctx := context.Background()

		convey.So(pool.Size(), convey.ShouldEqual, 4)

		convey.Convey("When jobs are enqueued", func() {
			pool.Start(ctx)
			pool.Start(ctx) // no-op
			for i := 0; i < 20; i++ {
				convey.So(q.Enqueue(ctx, job(fmt.Sprintf("g%d", i))), convey.ShouldBeTrue)
			}

			convey.Convey("Then every game is analysed and published", func() {
				convey.So(waitFor(func() bool { return publisher.count() == 20 }), convey.ShouldBeTrue)
				convey.So(pool.Processed(), convey.ShouldEqual, 20)
				convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When analysis fails for one game", func() {
			analyzer.setError("bad", errors.New("no prices"))
			pool.Start(ctx)
			q.Enqueue(ctx, job("bad"))
			q.Enqueue(ctx, job("good"))

			convey.Convey("Then the worker keeps going", func() {
				convey.So(waitFor(func() bool { return publisher.count() == 1 }), convey.ShouldBeTrue)
				convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)
				convey.So(pool.Processed(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When publishing fails", func() {
			publisher.err = errors.New("board unavailable")
			pool.Start(ctx)
			q.Enqueue(ctx, job("g1"))

			convey.Convey("Then nothing is counted as processed", func() {
				convey.So(waitFor(func() bool { return q.Len(ctx) == 0 }), convey.ShouldBeTrue)
				pool.Stop()
				convey.So(pool.Processed(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When shutting down with pending jobs", func() {
			for i := 0; i < 10; i++ {
				q.Enqueue(ctx, job(fmt.Sprintf("p%d", i)))
			}
			pool.Start(ctx)

			convey.Convey("Then the queue is drained before workers exit", func() {
				convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)
				convey.So(publisher.count(), convey.ShouldEqual, 10)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When stopped without being started", func() {
			pool.Stop()
			convey.So(pool.Processed(), convey.ShouldEqual, 0)
		})
	})
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a single worker", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(4))
		publisher := newMockPublisher()
		w := worker.NewInMemoryWorker(q, newMockAnalyzer(), publisher,
			worker.WithName("solo"),
			worker.WithLogger(logging.NewNop()),
		)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			w.Run(ctx)
			close(done)
		}()

		q.Enqueue(ctx, job("only"))
		convey.So(waitFor(func() bool { return publisher.count() == 1 }), convey.ShouldBeTrue)

		convey.Convey("Then cancelling its context stops it", func() {
			cancel()
			select {
			case <-done:
			case <-time.After(time.Second):
				convey.So("worker did not stop", convey.ShouldBeEmpty)
			}
			_ = q.Close()
		})
	})
}
