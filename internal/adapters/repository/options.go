// Package repository holds the in-memory odds cache and pick board.
package repository

import "time"

// BoardOption applies a configuration option to the PickBoard.
type BoardOption func(*PickBoard)

// WithDegree sets the btree degree.
func WithDegree(degree int) BoardOption {
	return func(b *PickBoard) {
		if degree >= 2 {
			b.degree = degree
		}
	}
}

// CacheOption applies a configuration option to the OddsCache.
type CacheOption func(*OddsCache)

// WithMetricsUpdateInterval sets how often cache age gauges are refreshed.
func WithMetricsUpdateInterval(interval time.Duration) CacheOption {
	return func(c *OddsCache) {
		if interval > 0 {
			c.metricsUpdateInterval = interval
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *OddsCache) {
		if now != nil {
			c.now = now
		}
	}
}
