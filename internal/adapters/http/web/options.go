package web

import (
	"regexp"
	"time"

	"github.com/okian/betedge/internal/domain/odds"
	"github.com/okian/betedge/pkg/logger"
)

// Option configures the page handler.
type Option func(*config)

type config struct {
	analyticsID string
	maxPicks    int
	location    *time.Location
	logger      logger.Logger
}

func defaultConfig() config {
	return config{
		maxPicks: 5,
		location: odds.Eastern(),
	}
}

// Measurement ids end up inside a script block, so only the gtag alphabet
// is accepted.
var analyticsIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,32}$`)

// WithAnalyticsID enables the Google Analytics tag. Ids outside
// [A-Za-z0-9-] are ignored.
func WithAnalyticsID(id string) Option {
	return func(c *config) {
		if analyticsIDPattern.MatchString(id) {
			c.analyticsID = id
		}
	}
}

// WithMaxPicks sets how many picks the landing page shows.
func WithMaxPicks(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxPicks = n
		}
	}
}

// WithLocation sets the zone game times are shown in.
func WithLocation(loc *time.Location) Option {
	return func(c *config) {
		if loc != nil {
			c.location = loc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}
