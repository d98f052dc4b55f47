// Package service wires the odds pipeline, the pick board and the account
// store into the operations the HTTP layer serves.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	eventqueue "github.com/okian/betedge/internal/adapters/mq/queue"
	workerpool "github.com/okian/betedge/internal/adapters/mq/worker"
	"github.com/okian/betedge/internal/adapters/oddsapi"
	"github.com/okian/betedge/internal/adapters/repository"
	"github.com/okian/betedge/internal/adapters/repository/sqlstore"
	"github.com/okian/betedge/internal/config"
	"github.com/okian/betedge/internal/domain/account"
	"github.com/okian/betedge/internal/domain/analysis"
	"github.com/okian/betedge/internal/domain/dedupe"
	"github.com/okian/betedge/internal/domain/ledger"
	"github.com/okian/betedge/internal/domain/odds"
	"github.com/okian/betedge/internal/domain/picks"
	"github.com/okian/betedge/pkg/logger"
	"github.com/okian/betedge/pkg/metrics"
)

const (
	shutdownTimeout = 10 * time.Second
	sessionSweep    = "@hourly"
)

// gameAnalyzer runs the analysis and pick generation for a queued game.
type gameAnalyzer struct {
	predictor analysis.Predictor
}

func (a gameAnalyzer) Analyze(_ context.Context, job eventqueue.Job) (picks.Recommendation, error) { //nolint:gocritic // Job arrives by value from the queue
	if job.Game.ID == "" {
		return picks.Recommendation{}, errors.New("game has no id")
	}
	return recommend(job.Game, job.Sport, a.predictor), nil
}

func recommend(g odds.Game, sport odds.Sport, p analysis.Predictor) picks.Recommendation { //nolint:gocritic // read-only copy
	a := analysis.Analyze(g, sport, p)
	return picks.Generate(g, sport, a, analysis.BestLines(g))
}

// boardPublisher puts recommendations on the board while their game is
// still cached.
type boardPublisher struct {
	board *repository.PickBoard
	cache *repository.OddsCache
}

func (p boardPublisher) Publish(ctx context.Context, rec picks.Recommendation) error { //nolint:gocritic // Recommendation is stored by value
	if _, _, ok := p.cache.FindGame(ctx, rec.GameID); !ok {
		return nil
	}
	p.board.Upsert(ctx, rec)
	return nil
}

// engine holds the components that live between Start and Stop.
type engine struct {
	sports      []odds.Sport
	cache       *repository.OddsCache
	board       *repository.PickBoard
	queue       *eventqueue.InMemoryQueue
	deduper     dedupe.Deduper
	pool        *workerpool.Pool
	refresher   *Refresher
	store       *sqlstore.Store
	accounts    *account.Service
	maintenance *cron.Cron
	predictor   analysis.Predictor
	cancel      context.CancelFunc
}

// Service implements the dependencies of the HTTP API.
type Service struct {
	mu sync.RWMutex

	cfg     *config.Config
	fetcher OddsFetcher
	now     func() time.Time
	logger  logger.Logger

	eng *engine
}

// New constructs a Service. Nothing runs until Start.
func New(opts ...Option) *Service {
	s := &Service{
		cfg: config.New(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store and starts the workers, the refresher and the
// session sweeper. Starting a started service does nothing.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.eng != nil {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting betedge service...")

	sports, err := parseSports(s.cfg.SportList())
	if err != nil {
		return err
	}
	store, err := sqlstore.Open(ctx, s.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	e := &engine{
		sports:    sports,
		store:     store,
		cancel:    cancel,
		predictor: analysis.ConsensusPredictor{},
		cache:     repository.NewOddsCache(runCtx, sports),
		board:     repository.NewPickBoard(),
		queue:     eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.cfg.QueueSize)),
		deduper:   dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.cfg.DedupeSize)),
		accounts: account.NewService(store,
			account.WithAccessCodes(s.cfg.AccessCodeList()),
			account.WithSessionTTL(s.cfg.SessionTTL()),
			account.WithClock(s.now),
		),
	}

	e.pool = workerpool.NewPool(s.cfg.WorkerCount, e.queue,
		gameAnalyzer{predictor: e.predictor},
		boardPublisher{board: e.board, cache: e.cache},
	)
	e.pool.Start(runCtx)

	e.refresher = NewRefresher(e.cache, e.board, e.queue, e.deduper,
		WithFetcher(s.oddsFetcher()),
		WithSchedule(s.cfg.RefreshSchedule),
		WithSportDelay(s.cfg.SportDelay()),
		WithFallbackToMock(s.cfg.FallbackToMock),
		WithOffseason(offseason(s.cfg.Offseason)),
		WithMaxGames(s.cfg.MaxGamesPerSport),
		WithRefresherClock(s.now),
	)
	if err := e.refresher.Start(runCtx); err != nil {
		s.teardown(e)
		return err
	}

	e.maintenance = cron.New()
	if _, err := e.maintenance.AddFunc(sessionSweep, func() { s.sweepSessions(runCtx, store) }); err != nil {
		s.teardown(e)
		return fmt.Errorf("schedule session sweep: %w", err)
	}
	e.maintenance.Start()

	s.eng = e
	s.logger.Info(ctx, "betedge service started",
		logger.Int("workers", s.cfg.WorkerCount),
		logger.Int("queueSize", s.cfg.QueueSize),
		logger.Int("dedupeSize", s.cfg.DedupeSize),
		logger.Bool("demoMode", s.demoMode()),
		logger.String("db", s.cfg.DBPath),
	)
	return nil
}

// Stop shuts the service down, draining queued analysis first.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.eng == nil {
		return
	}
	s.logger.Info(context.Background(), "stopping betedge service...")
	s.teardown(s.eng)
	s.eng = nil
	s.logger.Info(context.Background(), "betedge service stopped")
}

func (s *Service) teardown(e *engine) {
	ctx := context.Background()
	if e.refresher != nil {
		e.refresher.Stop()
	}
	if e.maintenance != nil {
		<-e.maintenance.Stop().Done()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	if err := e.pool.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	cancel()

	e.cancel()
	_ = e.cache.Close()
	if err := e.store.Close(); err != nil {
		s.logger.Error(ctx, "close store", logger.Error(err))
	}
}

func (s *Service) engine() (*engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.eng == nil {
		return nil, ErrNotStarted
	}
	return s.eng, nil
}

func (s *Service) oddsFetcher() OddsFetcher {
	if s.fetcher != nil {
		return s.fetcher
	}
	if s.cfg.DemoMode() {
		return nil
	}
	return oddsapi.New(s.cfg.OddsAPIKey,
		oddsapi.WithBaseURL(s.cfg.OddsAPIBase),
		oddsapi.WithTimeout(s.cfg.RequestTimeout()),
		oddsapi.WithRegions(s.cfg.Regions),
		oddsapi.WithMarkets(s.cfg.Markets),
		oddsapi.WithOddsFormat(s.cfg.OddsFormat),
		oddsapi.WithBookmakers(s.cfg.BookmakerList()),
	)
}

func (s *Service) demoMode() bool {
	return s.fetcher == nil && s.cfg.DemoMode()
}

func (s *Service) sweepSessions(ctx context.Context, store *sqlstore.Store) {
	n, err := store.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		s.logger.Error(ctx, "session sweep failed", logger.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info(ctx, "expired sessions removed", logger.Int64("count", n))
	}
}

// Config returns the configuration the service runs with.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// DemoMode reports whether odds come from the mock generator.
func (s *Service) DemoMode() bool {
	return s.demoMode()
}

// Sports returns the tracked sports.
func (s *Service) Sports() []odds.Sport {
	sports, _ := parseSports(s.cfg.SportList())
	return sports
}

// TopPicks returns up to n recommendations with an edge, best first. An empty
// sport means every sport.
func (s *Service) TopPicks(ctx context.Context, sport string, n int) ([]picks.Recommendation, error) {
	e, err := s.engine()
	if err != nil {
		return nil, err
	}
	sp, err := optionalSport(sport)
	if err != nil {
		return nil, err
	}
	return e.board.TopN(ctx, n, sp)
}

// SportBoard returns every analysed game of a sport in commence order.
func (s *Service) SportBoard(ctx context.Context, sport string) (odds.Sport, []picks.Recommendation, error) {
	e, err := s.engine()
	if err != nil {
		return "", nil, err
	}
	sp, err := odds.ParseSport(sport)
	if err != nil {
		return "", nil, err
	}
	return sp, e.board.BySport(ctx, sp), nil
}

// GameAnalysis returns the recommendation for a game. A cached game that the
// workers have not reached yet is analysed on the spot.
func (s *Service) GameAnalysis(ctx context.Context, gameID string) (picks.Recommendation, error) {
	e, err := s.engine()
	if err != nil {
		return picks.Recommendation{}, err
	}
	rec, err := e.board.Get(ctx, gameID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return picks.Recommendation{}, err
	}
	g, sport, ok := e.cache.FindGame(ctx, gameID)
	if !ok {
		return picks.Recommendation{}, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	return recommend(g, sport, e.predictor), nil
}

// CacheStatus reports the freshness of every sport.
func (s *Service) CacheStatus(ctx context.Context) ([]repository.SportStatus, error) {
	e, err := s.engine()
	if err != nil {
		return nil, err
	}
	return e.cache.Status(ctx), nil
}

// Refresh schedules an immediate background refresh of one sport, or all of
// them when sport is empty.
func (s *Service) Refresh(ctx context.Context, sport string) error {
	e, err := s.engine()
	if err != nil {
		return err
	}
	sp, err := optionalSport(sport)
	if err != nil {
		return err
	}
	var sports []odds.Sport
	if sp != "" {
		sports = append(sports, sp)
	}
	if !e.refresher.Trigger(sports...) {
		return ErrNotStarted
	}
	s.logger.Info(ctx, "refresh requested", logger.String("sport", sport))
	return nil
}

// RefreshNow refreshes every sport and waits for the result.
func (s *Service) RefreshNow(ctx context.Context) error {
	e, err := s.engine()
	if err != nil {
		return err
	}
	return e.refresher.RefreshAll(ctx)
}

// Signup records a waitlist email. created is false for an address already
// on the list.
func (s *Service) Signup(ctx context.Context, email string) (created bool, err error) {
	e, err := s.engine()
	if err != nil {
		return false, err
	}
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return false, ErrInvalidEmail
	}
	created, err = e.store.AddSignup(ctx, email)
	if err != nil {
		return false, err
	}
	metrics.RecordSignup(created)
	return created, nil
}

// SignupCount returns the number of waitlist emails.
func (s *Service) SignupCount(ctx context.Context) (int, error) {
	e, err := s.engine()
	if err != nil {
		return 0, err
	}
	return e.store.CountSignups(ctx)
}

func (s *Service) Register(ctx context.Context, username, email, password, accessCode string) (account.Session, error) {
	e, err := s.engine()
	if err != nil {
		return account.Session{}, err
	}
	return e.accounts.Register(ctx, username, email, password, accessCode)
}

func (s *Service) Login(ctx context.Context, username, password string) (account.Session, error) {
	e, err := s.engine()
	if err != nil {
		return account.Session{}, err
	}
	return e.accounts.Login(ctx, username, password)
}

func (s *Service) Logout(ctx context.Context, token string) error {
	e, err := s.engine()
	if err != nil {
		return err
	}
	return e.accounts.Logout(ctx, token)
}

// Authenticate resolves a session token to its username.
func (s *Service) Authenticate(ctx context.Context, token string) (string, error) {
	e, err := s.engine()
	if err != nil {
		return "", err
	}
	return e.accounts.Authenticate(ctx, token)
}

// SessionTTL returns the session lifetime used for cookies.
func (s *Service) SessionTTL() time.Duration {
	return s.cfg.SessionTTL()
}

// PlaceBet tracks a bet for username. Replaying a request id returns the
// first bet with duplicate set.
func (s *Service) PlaceBet(ctx context.Context, username string, b ledger.Bet) (ledger.Bet, bool, error) {
	e, err := s.engine()
	if err != nil {
		return ledger.Bet{}, false, err
	}
	b.Username = username
	stored, duplicate, err := e.store.PlaceBet(ctx, b)
	if err != nil {
		return ledger.Bet{}, false, err
	}
	if !duplicate {
		metrics.RecordBetPlaced()
	}
	return stored, duplicate, nil
}

// Bets lists a user's bets, newest first.
func (s *Service) Bets(ctx context.Context, username string) ([]ledger.Bet, error) {
	e, err := s.engine()
	if err != nil {
		return nil, err
	}
	return e.store.ListBets(ctx, username)
}

// SettleBet records win, loss or push for a pending bet.
func (s *Service) SettleBet(ctx context.Context, id, result string) (ledger.Bet, error) {
	e, err := s.engine()
	if err != nil {
		return ledger.Bet{}, err
	}
	r, err := ledger.ParseResult(result)
	if err != nil {
		return ledger.Bet{}, err
	}
	b, err := e.store.SettleBet(ctx, id, r)
	if err != nil {
		return b, err
	}
	metrics.RecordBetSettled(string(r))
	return b, nil
}

// Performance summarises a user's tracked bets.
func (s *Service) Performance(ctx context.Context, username string) (ledger.Performance, error) {
	e, err := s.engine()
	if err != nil {
		return ledger.Performance{}, err
	}
	return e.store.Performance(ctx, username)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.eng != nil,
		"workerCount": s.cfg.WorkerCount,
		"queueSize":   s.cfg.QueueSize,
		"dedupeSize":  s.cfg.DedupeSize,
		"demoMode":    s.demoMode(),
	}

	if e := s.eng; e != nil {
		queueLen := e.queue.Len(ctx)
		onBoard := e.board.Count(ctx)

		stats["queueLength"] = queueLen
		stats["picksOnBoard"] = onBoard
		stats["analysed"] = e.pool.Processed()
		stats["versionsSeen"] = e.deduper.Size()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdatePicksOnBoard(onBoard)
		metrics.UpdateWorkerActiveCount(e.pool.Size())
	}

	return stats
}

func parseSports(names []string) ([]odds.Sport, error) {
	sports := make([]odds.Sport, 0, len(names))
	for _, n := range names {
		sp, err := odds.ParseSport(n)
		if err != nil {
			return nil, err
		}
		sports = append(sports, sp)
	}
	if len(sports) == 0 {
		return nil, fmt.Errorf("%w: no sports configured", config.ErrInvalidConfig)
	}
	return sports, nil
}

func optionalSport(s string) (odds.Sport, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	return odds.ParseSport(s)
}

func offseason(in map[string][]int) map[odds.Sport][]int {
	out := make(map[odds.Sport][]int, len(in))
	for name, months := range in {
		if sp, err := odds.ParseSport(name); err == nil {
			out[sp] = months
		}
	}
	return out
}
