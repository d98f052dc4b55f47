package service

import (
	"time"

	"github.com/okian/betedge/internal/config"
	"github.com/okian/betedge/internal/domain/odds"
	"github.com/okian/betedge/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig replaces the default configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithOddsFetcher overrides the upstream client built from the config.
func WithOddsFetcher(f OddsFetcher) Option {
	return func(s *Service) {
		if f != nil {
			s.fetcher = f
		}
	}
}

// WithClock sets the time source used by the refresher and accounts.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// RefresherOption applies a configuration option to the Refresher.
type RefresherOption func(*Refresher)

// WithFetcher sets the upstream odds source. Without one the refresher runs
// in demo mode.
func WithFetcher(f OddsFetcher) RefresherOption {
	return func(r *Refresher) {
		r.fetcher = f
	}
}

// WithSchedule sets the cron spec for periodic refreshes.
func WithSchedule(spec string) RefresherOption {
	return func(r *Refresher) {
		if spec != "" {
			r.schedule = spec
		}
	}
}

// WithSportDelay sets the pause between sports in a full refresh.
func WithSportDelay(d time.Duration) RefresherOption {
	return func(r *Refresher) {
		if d >= 0 {
			r.delay = d
		}
	}
}

// WithFallbackToMock controls whether a failed fetch with an empty cache
// serves mock data.
func WithFallbackToMock(enabled bool) RefresherOption {
	return func(r *Refresher) {
		r.fallback = enabled
	}
}

// WithOffseason sets the months in which each sport is not fetched.
func WithOffseason(months map[odds.Sport][]int) RefresherOption {
	return func(r *Refresher) {
		r.offseason = make(map[odds.Sport]map[time.Month]bool, len(months))
		for sport, ms := range months {
			set := make(map[time.Month]bool, len(ms))
			for _, m := range ms {
				set[time.Month(m)] = true
			}
			r.offseason[sport] = set
		}
	}
}

// WithMaxGames caps the games kept per sport.
func WithMaxGames(n int) RefresherOption {
	return func(r *Refresher) {
		if n > 0 {
			r.maxGames = n
		}
	}
}

// WithRefresherClock sets the refresher's time source.
func WithRefresherClock(now func() time.Time) RefresherOption {
	return func(r *Refresher) {
		if now != nil {
			r.now = now
		}
	}
}

// WithRefresherLogger sets the refresher's logger.
func WithRefresherLogger(l logger.Logger) RefresherOption {
	return func(r *Refresher) {
		if l != nil {
			r.logger = l
		}
	}
}
