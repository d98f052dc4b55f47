package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	service "github.com/okian/betedge/internal/app"
	"github.com/okian/betedge/internal/adapters/mq/queue"
	"github.com/okian/betedge/internal/adapters/oddsapi"
	"github.com/okian/betedge/internal/adapters/repository"
	"github.com/okian/betedge/internal/domain/dedupe"
	"github.com/okian/betedge/internal/domain/odds"
	"github.com/okian/betedge/internal/domain/picks"
	"github.com/okian/betedge/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var errUpstream = errors.New("upstream down")

type fakeFetcher struct {
	mu      sync.Mutex
	calls   map[odds.Sport]int
	games   map[odds.Sport][]odds.Game
	err     error
	started chan struct{}
	release chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{calls: map[odds.Sport]int{}, games: map[odds.Sport][]odds.Game{}}
}

func (f *fakeFetcher) FetchOdds(ctx context.Context, sport odds.Sport) (oddsapi.Result, error) {
	f.mu.Lock()
	f.calls[sport]++
	started, release := f.started, f.release
	games, err := f.games[sport], f.err
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return oddsapi.Result{}, ctx.Err()
		}
	}
	if err != nil {
		return oddsapi.Result{}, err
	}
	return oddsapi.Result{Games: games, Quota: odds.Quota{Remaining: 480, Used: 20}}, nil
}

func (f *fakeFetcher) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeFetcher) callCount(s odds.Sport) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[s]
}

type recordingQueue struct {
	mu     sync.Mutex
	jobs   []queue.Job
	reject bool
}

func (q *recordingQueue) Enqueue(_ context.Context, j queue.Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.reject {
		return false
	}
	q.jobs = append(q.jobs, j)
	return true
}

func (q *recordingQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func testGame(id string, updated time.Time) odds.Game {
	return odds.Game{
		ID:           id,
		SportKey:     odds.NFL.Key(),
		HomeTeam:     "Home " + id,
		AwayTeam:     "Away " + id,
		CommenceTime: updated.Add(24 * time.Hour),
		Bookmakers: []odds.Bookmaker{
			{Key: "draftkings", Title: "DraftKings", LastUpdate: updated, Markets: []odds.Market{
				{Key: odds.MarketH2H, Outcomes: []odds.Outcome{{Name: "Home " + id, Price: 1.8}, {Name: "Away " + id, Price: 2.1}}},
			}},
			{Key: "fanduel", Title: "FanDuel", LastUpdate: updated, Markets: []odds.Market{
				{Key: odds.MarketH2H, Outcomes: []odds.Outcome{{Name: "Home " + id, Price: 1.85}, {Name: "Away " + id, Price: 2.05}}},
			}},
		},
	}
}

type refresherFixture struct {
	cache   *repository.OddsCache
	board   *repository.PickBoard
	queue   *recordingQueue
	fetcher *fakeFetcher
}

func newRefresherFixture(ctx context.Context, sports ...odds.Sport) *refresherFixture {
	return &refresherFixture{
		cache:   repository.NewOddsCache(ctx, sports),
		board:   repository.NewPickBoard(),
		queue:   &recordingQueue{},
		fetcher: newFakeFetcher(),
	}
}

func (f *refresherFixture) refresher(opts ...service.RefresherOption) *service.Refresher {
	return service.NewRefresher(f.cache, f.board, f.queue, dedupe.NewInMemoryDeduper(), opts...)
}

func TestRefresher_Demo(t *testing.T) {
	Convey("Given a refresher without an upstream fetcher", t, func() {
		ctx := context.Background()
		fx := newRefresherFixture(ctx, odds.NFL)
		defer func() { _ = fx.cache.Close() }()
		r := fx.refresher(service.WithMaxGames(3))

		Convey("When a sport is refreshed", func() {
			report, err := r.Refresh(ctx, odds.NFL)
			So(err, ShouldBeNil)

			Convey("Then mock games are cached, capped and enqueued", func() {
				So(report.Source, ShouldEqual, repository.SourceMock)
				So(report.Games, ShouldEqual, 3)
				So(report.Enqueued, ShouldEqual, 3)

				snap, ok := fx.cache.Get(ctx, odds.NFL)
				So(ok, ShouldBeTrue)
				So(len(snap.Games), ShouldEqual, 3)
				So(snap.Source, ShouldEqual, repository.SourceMock)
			})

			Convey("Then an immediate second refresh enqueues nothing new", func() {
				again, err := r.Refresh(ctx, odds.NFL)
				So(err, ShouldBeNil)
				So(again.Games, ShouldEqual, 3)
				So(again.Enqueued, ShouldEqual, 0)
				So(fx.queue.count(), ShouldEqual, 3)
			})
		})
	})
}

func TestRefresher_Live(t *testing.T) {
	Convey("Given a refresher with an upstream fetcher", t, func() {
		ctx := context.Background()
		now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
		fx := newRefresherFixture(ctx, odds.NFL, odds.MLB)
		defer func() { _ = fx.cache.Close() }()
		fx.fetcher.games[odds.NFL] = []odds.Game{testGame("a", now), testGame("b", now)}

		Convey("A successful fetch stores a live snapshot with its quota", func() {
			r := fx.refresher(service.WithFetcher(fx.fetcher), service.WithRefresherClock(func() time.Time { return now }))
			report, err := r.Refresh(ctx, odds.NFL)
			So(err, ShouldBeNil)
			So(report.Source, ShouldEqual, repository.SourceLive)
			So(report.Enqueued, ShouldEqual, 2)

			snap, _ := fx.cache.Get(ctx, odds.NFL)
			So(snap.Quota.Remaining, ShouldEqual, 480)
			So(snap.UpdatedAt.Equal(now), ShouldBeTrue)
		})

		Convey("A failed fetch keeps the previous games and records the error", func() {
			r := fx.refresher(service.WithFetcher(fx.fetcher))
			_, err := r.Refresh(ctx, odds.NFL)
			So(err, ShouldBeNil)

			fx.fetcher.setErr(errUpstream)
			report, err := r.Refresh(ctx, odds.NFL)
			So(errors.Is(err, errUpstream), ShouldBeTrue)
			So(report.Error, ShouldContainSubstring, "upstream down")
			So(report.Source, ShouldEqual, repository.SourceLive)

			snap, _ := fx.cache.Get(ctx, odds.NFL)
			So(len(snap.Games), ShouldEqual, 2)
			So(snap.LastError, ShouldContainSubstring, "upstream down")
		})

		Convey("A failed fetch with an empty cache falls back to mock data", func() {
			fx.fetcher.setErr(errUpstream)
			r := fx.refresher(service.WithFetcher(fx.fetcher))
			report, err := r.Refresh(ctx, odds.NFL)
			So(err, ShouldNotBeNil)
			So(report.Source, ShouldEqual, repository.SourceMock)
			So(report.Games, ShouldBeGreaterThan, 0)
		})

		Convey("Without fallback an empty cache stays empty", func() {
			fx.fetcher.setErr(errUpstream)
			r := fx.refresher(service.WithFetcher(fx.fetcher), service.WithFallbackToMock(false))
			report, err := r.Refresh(ctx, odds.NFL)
			So(err, ShouldNotBeNil)
			So(report.Source, ShouldEqual, repository.SourceNone)
			So(report.Games, ShouldEqual, 0)
		})

		Convey("An offseason sport is skipped without calling upstream", func() {
			r := fx.refresher(
				service.WithFetcher(fx.fetcher),
				service.WithOffseason(map[odds.Sport][]int{odds.MLB: {10}}),
				service.WithRefresherClock(func() time.Time { return now }),
			)
			report, err := r.Refresh(ctx, odds.MLB)
			So(err, ShouldBeNil)
			So(report.Skipped, ShouldBeTrue)
			So(fx.fetcher.callCount(odds.MLB), ShouldEqual, 0)
		})

		Convey("A rejected job is retried on the next refresh", func() {
			r := fx.refresher(service.WithFetcher(fx.fetcher))
			fx.queue.reject = true
			report, err := r.Refresh(ctx, odds.NFL)
			So(err, ShouldBeNil)
			So(report.Enqueued, ShouldEqual, 0)

			fx.queue.reject = false
			report, err = r.Refresh(ctx, odds.NFL)
			So(err, ShouldBeNil)
			So(report.Enqueued, ShouldEqual, 2)
		})

		Convey("Games that left the slate are pruned from the board", func() {
			fx.board.Upsert(ctx, picks.Recommendation{GameID: "gone", Sport: odds.NFL, Score: 3})
			fx.board.Upsert(ctx, picks.Recommendation{GameID: "a", Sport: odds.NFL, Score: 2})
			r := fx.refresher(service.WithFetcher(fx.fetcher))
			report, err := r.Refresh(ctx, odds.NFL)
			So(err, ShouldBeNil)
			So(report.Pruned, ShouldEqual, 1)

			_, err = fx.board.Get(ctx, "gone")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("The refresh log keeps the odds source apart from the caller", func() {
			core, logs := observer.New(zapcore.InfoLevel)
			r := fx.refresher(service.WithFetcher(fx.fetcher), service.WithRefresherLogger(logger.FromZap(zap.New(core))))
			_, err := r.Refresh(ctx, odds.NFL)
			So(err, ShouldBeNil)

			entries := logs.FilterMessage("sport refreshed").All()
			So(len(entries), ShouldEqual, 1)
			fields := entries[0].ContextMap()
			So(fields["odds_source"], ShouldEqual, string(repository.SourceLive))
			So(fields["source"], ShouldContainSubstring, "refresher.go")
		})

		Convey("A game that leaves and rejoins the slate is analysed again", func() {
			r := fx.refresher(service.WithFetcher(fx.fetcher))
			first, err := r.Refresh(ctx, odds.NFL)
			So(err, ShouldBeNil)
			So(first.Enqueued, ShouldEqual, 2)
			fx.board.Upsert(ctx, picks.Recommendation{GameID: "a", Sport: odds.NFL, Score: 2})
			fx.board.Upsert(ctx, picks.Recommendation{GameID: "b", Sport: odds.NFL, Score: 1})

			fx.fetcher.mu.Lock()
			fx.fetcher.games[odds.NFL] = []odds.Game{testGame("b", now)}
			fx.fetcher.mu.Unlock()
			dropped, err := r.Refresh(ctx, odds.NFL)
			So(err, ShouldBeNil)
			So(dropped.Pruned, ShouldEqual, 1)
			So(dropped.Enqueued, ShouldEqual, 0)

			fx.fetcher.mu.Lock()
			fx.fetcher.games[odds.NFL] = []odds.Game{testGame("a", now), testGame("b", now)}
			fx.fetcher.mu.Unlock()
			back, err := r.Refresh(ctx, odds.NFL)
			So(err, ShouldBeNil)
			So(back.Enqueued, ShouldEqual, 1)
			So(fx.queue.count(), ShouldEqual, 3)
			So(fx.queue.jobs[2].Game.ID, ShouldEqual, "a")
		})

		Convey("RefreshAll visits every sport", func() {
			r := fx.refresher(service.WithFetcher(fx.fetcher), service.WithSportDelay(time.Millisecond))
			So(r.RefreshAll(ctx), ShouldBeNil)
			So(fx.fetcher.callCount(odds.NFL), ShouldEqual, 1)
			So(fx.fetcher.callCount(odds.MLB), ShouldEqual, 1)
		})
	})
}

func TestRefresher_SingleFlight(t *testing.T) {
	Convey("Given an upstream call that blocks", t, func() {
		ctx := context.Background()
		fx := newRefresherFixture(ctx, odds.NFL)
		defer func() { _ = fx.cache.Close() }()
		fx.fetcher.started = make(chan struct{}, 2)
		fx.fetcher.release = make(chan struct{})
		fx.fetcher.games[odds.NFL] = []odds.Game{testGame("a", time.Now())}
		r := fx.refresher(service.WithFetcher(fx.fetcher))

		Convey("Concurrent refreshes of one sport share the request", func() {
			var wg sync.WaitGroup
			reports := make([]service.RefreshReport, 2)
			wg.Add(1)
			go func() {
				defer wg.Done()
				reports[0], _ = r.Refresh(ctx, odds.NFL)
			}()
			<-fx.fetcher.started

			wg.Add(1)
			go func() {
				defer wg.Done()
				reports[1], _ = r.Refresh(ctx, odds.NFL)
			}()
			time.Sleep(50 * time.Millisecond)
			close(fx.fetcher.release)
			wg.Wait()

			So(fx.fetcher.callCount(odds.NFL), ShouldEqual, 1)
			So(reports[0].Games, ShouldEqual, 1)
			So(reports[1].Games, ShouldEqual, 1)
		})
	})
}

func TestRefresher_StartStop(t *testing.T) {
	Convey("Given a started demo refresher", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		fx := newRefresherFixture(ctx, odds.NFL, odds.NBA)
		defer func() { _ = fx.cache.Close() }()
		r := fx.refresher(service.WithSchedule("@every 1h"))

		So(r.Start(ctx), ShouldBeNil)
		So(r.Start(ctx), ShouldBeNil)

		Convey("Then the initial refresh fills every sport", func() {
			So(eventually(5*time.Second, func() bool {
				for _, st := range fx.cache.Status(ctx) {
					if st.Games == 0 {
						return false
					}
				}
				return true
			}), ShouldBeTrue)

			Convey("And a manual trigger is accepted while running", func() {
				So(r.Trigger(odds.NBA), ShouldBeTrue)
			})
		})

		Convey("Then Stop is idempotent and rejects later triggers", func() {
			r.Stop()
			r.Stop()
			So(r.Trigger(), ShouldBeFalse)
		})

		Reset(func() { r.Stop() })
	})

	Convey("Given an invalid schedule", t, func() {
		ctx := context.Background()
		fx := newRefresherFixture(ctx, odds.NFL)
		defer func() { _ = fx.cache.Close() }()
		r := fx.refresher(service.WithSchedule("not a schedule"))

		Convey("Then Start fails", func() {
			So(r.Start(ctx), ShouldNotBeNil)
			So(r.Trigger(), ShouldBeFalse)
		})
	})
}

func eventually(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}
