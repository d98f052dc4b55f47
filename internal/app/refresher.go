package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/okian/betedge/internal/adapters/mockodds"
	"github.com/okian/betedge/internal/adapters/mq/queue"
	"github.com/okian/betedge/internal/adapters/oddsapi"
	"github.com/okian/betedge/internal/adapters/repository"
	"github.com/okian/betedge/internal/domain/dedupe"
	"github.com/okian/betedge/internal/domain/odds"
	"github.com/okian/betedge/pkg/logger"
	"github.com/okian/betedge/pkg/metrics"
)

const (
	defaultSchedule = "@every 30m"
	defaultMaxGames = 15

	// Mock slates are regenerated once per window so unchanged demo games
	// keep their fingerprint between refreshes.
	mockWindow = 6 * time.Hour
)

// OddsFetcher loads the current odds for a sport from upstream.
type OddsFetcher interface {
	FetchOdds(ctx context.Context, sport odds.Sport) (oddsapi.Result, error)
}

// Enqueuer accepts analysis jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, j queue.Job) bool
}

// RefreshReport describes one sport refresh.
type RefreshReport struct {
	Sport    odds.Sport        `json:"sport"`
	Source   repository.Source `json:"source"`
	Games    int               `json:"games"`
	Enqueued int               `json:"enqueued"`
	Pruned   int               `json:"pruned"`
	Skipped  bool              `json:"skipped,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Refresher is the only component that talks to the odds API. It refreshes
// every sport on a cron schedule and hands new game versions to the workers.
type Refresher struct {
	cache   *repository.OddsCache
	board   *repository.PickBoard
	queue   Enqueuer
	deduper dedupe.Deduper
	fetcher OddsFetcher

	sports    []odds.Sport
	schedule  string
	delay     time.Duration
	fallback  bool
	offseason map[odds.Sport]map[time.Month]bool
	maxGames  int
	now       func() time.Time
	logger    logger.Logger

	group singleflight.Group

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	runCtx  context.Context //nolint:containedctx // background refreshes outlive the caller
	wg      sync.WaitGroup
	running bool
}

// NewRefresher builds a refresher for the cache's sports. Without a fetcher it
// serves mock data.
func NewRefresher(cache *repository.OddsCache, board *repository.PickBoard, q Enqueuer, d dedupe.Deduper, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		cache:     cache,
		board:     board,
		queue:     q,
		deduper:   d,
		sports:    cache.Sports(),
		schedule:  defaultSchedule,
		fallback:  true,
		offseason: map[odds.Sport]map[time.Month]bool{},
		maxGames:  defaultMaxGames,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("refresher")
	}
	return r
}

// Start runs one refresh of every sport in the background, then follows the
// cron schedule until Stop or ctx ends.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(r.schedule, func() { r.refreshAllLogged(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule refresh %q: %w", r.schedule, err)
	}

	r.cron = c
	r.cancel = cancel
	r.runCtx = runCtx
	r.running = true

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.refreshAllLogged(runCtx)
	}()
	c.Start()

	r.logger.Info(ctx, "refresher started",
		logger.String("schedule", r.schedule),
		logger.Int("sports", len(r.sports)),
		logger.Bool("demo", r.fetcher == nil),
	)
	return nil
}

// Stop halts the schedule and waits for running refreshes.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	c, cancel := r.cron, r.cancel
	r.mu.Unlock()

	cancel()
	<-c.Stop().Done()
	r.wg.Wait()
	r.logger.Info(context.Background(), "refresher stopped")
}

// Trigger refreshes sports in the background, or every sport when none are
// given. It returns false when the refresher is not running.
func (r *Refresher) Trigger(sports ...odds.Sport) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return false
	}

	ctx := r.runCtx
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if len(sports) == 0 {
			r.refreshAllLogged(ctx)
			return
		}
		for _, s := range sports {
			if _, err := r.Refresh(ctx, s); err != nil {
				r.logger.Warn(ctx, "triggered refresh failed", logger.String("sport", string(s)), logger.Error(err))
			}
		}
	}()
	return true
}

func (r *Refresher) refreshAllLogged(ctx context.Context) {
	if err := r.RefreshAll(ctx); err != nil {
		r.logger.Warn(ctx, "refresh finished with errors", logger.Error(err))
	}
}

// RefreshAll refreshes one sport at a time, pausing between sports. It
// returns the first error after every sport has been tried.
func (r *Refresher) RefreshAll(ctx context.Context) error {
	g := new(errgroup.Group)
	g.SetLimit(1)

	for i, sport := range r.sports {
		pause := r.delay
		if i == 0 {
			pause = 0
		}
		g.Go(func() error {
			if pause > 0 {
				t := time.NewTimer(pause)
				defer t.Stop()
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-t.C:
				}
			}
			_, err := r.Refresh(ctx, sport)
			return err
		})
	}
	return g.Wait()
}

// Refresh updates one sport. Concurrent calls for the same sport share a
// single upstream request.
func (r *Refresher) Refresh(ctx context.Context, sport odds.Sport) (RefreshReport, error) {
	v, err, _ := r.group.Do(string(sport), func() (any, error) {
		return r.refresh(ctx, sport)
	})
	report, _ := v.(RefreshReport)
	return report, err
}

func (r *Refresher) refresh(ctx context.Context, sport odds.Sport) (RefreshReport, error) {
	now := r.now()
	report := RefreshReport{Sport: sport}

	if r.inOffseason(sport, now) {
		metrics.RecordOddsFetch(string(sport), "skipped")
		r.logger.Debug(ctx, "sport in offseason", logger.String("sport", string(sport)))
		report.Skipped = true
		return report, nil
	}

	prev, _ := r.cache.Get(ctx, sport)
	snap := repository.Snapshot{
		Sport:     sport,
		UpdatedAt: now,
		Quota:     prev.Quota,
	}

	var fetchErr error
	if r.fetcher == nil {
		snap.Games, snap.Source = r.mockGames(sport, now), repository.SourceMock
		metrics.RecordOddsFetch(string(sport), string(repository.SourceMock))
	} else {
		res, err := r.fetcher.FetchOdds(ctx, sport)
		switch {
		case err == nil:
			snap.Games, snap.Source, snap.Quota = res.Games, repository.SourceLive, res.Quota
		case len(prev.Games) > 0:
			fetchErr = err
			snap.Games, snap.Source, snap.UpdatedAt = prev.Games, prev.Source, prev.UpdatedAt
		case r.fallback:
			fetchErr = err
			snap.Games, snap.Source = r.mockGames(sport, now), repository.SourceMock
			metrics.RecordOddsFetch(string(sport), string(repository.SourceMock))
		default:
			fetchErr = err
			snap.Source, snap.UpdatedAt = prev.Source, prev.UpdatedAt
		}
	}
	if fetchErr != nil {
		snap.LastError = fetchErr.Error()
		report.Error = snap.LastError
		r.logger.Warn(ctx, "odds fetch failed",
			logger.String("sport", string(sport)),
			logger.String("serving", string(snap.Source)),
			logger.Error(fetchErr),
		)
	}

	if len(snap.Games) > r.maxGames {
		snap.Games = snap.Games[:r.maxGames]
	}
	if err := r.cache.Put(ctx, snap); err != nil {
		return report, fmt.Errorf("refresh %s: %w", sport, err)
	}
	report.Source = snap.Source
	report.Games = len(snap.Games)

	ids := make([]string, 0, len(snap.Games))
	current := make(map[string]struct{}, len(snap.Games))
	for _, g := range snap.Games {
		ids = append(ids, g.ID)
		current[g.ID] = struct{}{}
		if r.enqueue(ctx, sport, g) {
			report.Enqueued++
		}
	}
	// A game that left the slate loses its board entry, so its version must
	// be analysed again if it returns.
	for _, g := range prev.Games {
		if _, ok := current[g.ID]; !ok {
			r.deduper.Unrecord(ctx, g.Fingerprint())
		}
	}
	report.Pruned = r.board.Retain(ctx, sport, ids)

	r.logger.Info(ctx, "sport refreshed",
		logger.String("sport", string(sport)),
		logger.String("odds_source", string(snap.Source)),
		logger.Int("games", report.Games),
		logger.Int("enqueued", report.Enqueued),
	)
	if fetchErr != nil {
		return report, fmt.Errorf("refresh %s: %w", sport, fetchErr)
	}
	return report, nil
}

// enqueue hands a game version to the workers unless it was analysed before.
func (r *Refresher) enqueue(ctx context.Context, sport odds.Sport, g odds.Game) bool { //nolint:gocritic // Game is copied into the job anyway
	fp := g.Fingerprint()
	if r.deduper.SeenAndRecord(ctx, fp) {
		metrics.RecordAnalysisSkipped()
		return false
	}

	job := queue.Job{
		JobID:       uuid.NewString(),
		Sport:       sport,
		Game:        g,
		Fingerprint: fp,
	}
	if !r.queue.Enqueue(ctx, job) {
		r.deduper.Unrecord(ctx, fp)
		r.logger.Warn(ctx, "analysis queue rejected game",
			logger.String("sport", string(sport)),
			logger.String("game_id", g.ID),
		)
		return false
	}
	return true
}

func (r *Refresher) mockGames(sport odds.Sport, now time.Time) []odds.Game {
	window := now.UTC().Truncate(mockWindow)
	return mockodds.Generate(sport, window, window.Unix())
}

func (r *Refresher) inOffseason(sport odds.Sport, now time.Time) bool {
	return r.offseason[sport][now.Month()]
}
