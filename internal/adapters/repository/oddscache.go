package repository

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/okian/betedge/internal/domain/odds"
	"github.com/okian/betedge/pkg/metrics"
)

// Source records where a snapshot's games came from.
type Source string

const (
	SourceNone Source = "none"
	SourceLive Source = "live"
	SourceMock Source = "mock"
)

// Snapshot is the cached state of one sport.
type Snapshot struct {
	Sport     odds.Sport
	Games     []odds.Game
	UpdatedAt time.Time
	Source    Source
	Quota     odds.Quota
	LastError string
}

// SportStatus is the public view of a snapshot's freshness.
type SportStatus struct {
	Sport             odds.Sport `json:"sport"`
	Games             int        `json:"games"`
	LastUpdated       *string    `json:"last_updated"`
	AgeMinutes        *float64   `json:"age_minutes"`
	Source            Source     `json:"source"`
	Error             string     `json:"error,omitempty"`
	RequestsRemaining *int       `json:"requests_remaining"`
}

// OddsCache keeps the latest snapshot per sport. Reads never touch the network.
type OddsCache struct {
	mu    sync.RWMutex
	snaps map[odds.Sport]Snapshot
	order []odds.Sport
	now   func() time.Time

	metricsUpdateInterval time.Duration
	wg                    sync.WaitGroup
	stopChan              chan struct{}
	stopOnce              sync.Once
}

// NewOddsCache constructs a cache tracking sports and starts the background
// metrics updater, which stops with ctx or Close.
func NewOddsCache(ctx context.Context, sports []odds.Sport, opts ...CacheOption) *OddsCache {
	c := &OddsCache{
		snaps:                 make(map[odds.Sport]Snapshot, len(sports)),
		order:                 append([]odds.Sport(nil), sports...),
		now:                   time.Now,
		metricsUpdateInterval: 30 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, s := range sports {
		c.snaps[s] = Snapshot{Sport: s, Source: SourceNone, Quota: odds.UnknownQuota}
	}

	c.startMetricsUpdater(ctx)
	return c
}

// Sports returns the tracked sports in configured order.
func (c *OddsCache) Sports() []odds.Sport {
	return append([]odds.Sport(nil), c.order...)
}

// Put replaces the snapshot of snap.Sport.
func (c *OddsCache) Put(_ context.Context, snap Snapshot) error {
	c.mu.Lock()
	if _, ok := c.snaps[snap.Sport]; !ok {
		c.mu.Unlock()
		return ErrUnknownSport
	}
	snap.Games = append([]odds.Game(nil), snap.Games...)
	c.snaps[snap.Sport] = snap
	c.mu.Unlock()

	metrics.UpdateCachedGames(string(snap.Sport), len(snap.Games))
	if snap.Quota.Remaining >= 0 {
		metrics.UpdateAPIRequestsRemaining(snap.Quota.Remaining)
	}
	return nil
}

// Get returns a copy of the snapshot for sport.
func (c *OddsCache) Get(_ context.Context, sport odds.Sport) (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap, ok := c.snaps[sport]
	if !ok {
		return Snapshot{}, false
	}
	snap.Games = append([]odds.Game(nil), snap.Games...)
	return snap, true
}

// FindGame searches every sport for a game id.
func (c *OddsCache) FindGame(_ context.Context, id string) (odds.Game, odds.Sport, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, s := range c.order {
		for _, g := range c.snaps[s].Games {
			if g.ID == id {
				return g, s, true
			}
		}
	}
	return odds.Game{}, "", false
}

// Status reports every sport's freshness in configured order.
func (c *OddsCache) Status(_ context.Context) []SportStatus {
	now := c.now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]SportStatus, 0, len(c.order))
	for _, s := range c.order {
		snap := c.snaps[s]
		st := SportStatus{
			Sport:  s,
			Games:  len(snap.Games),
			Source: snap.Source,
			Error:  snap.LastError,
		}
		if !snap.UpdatedAt.IsZero() {
			ts := snap.UpdatedAt.UTC().Format(time.RFC3339)
			age := math.Round(now.Sub(snap.UpdatedAt).Minutes()*10) / 10
			st.LastUpdated = &ts
			st.AgeMinutes = &age
		}
		if snap.Quota.Remaining >= 0 {
			r := snap.Quota.Remaining
			st.RequestsRemaining = &r
		}
		out = append(out, st)
	}
	return out
}

// Close stops the metrics updater.
func (c *OddsCache) Close() error {
	c.stopOnce.Do(func() { close(c.stopChan) })
	c.wg.Wait()
	return nil
}

func (c *OddsCache) startMetricsUpdater(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stopChan:
				return
			case <-ticker.C:
				c.updateMetrics()
			}
		}
	}()
}

func (c *OddsCache) updateMetrics() {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	for s, snap := range c.snaps {
		if snap.UpdatedAt.IsZero() {
			continue
		}
		metrics.UpdateCacheAge(string(s), now.Sub(snap.UpdatedAt).Seconds())
	}
}
