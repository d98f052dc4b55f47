package api

import "github.com/okian/betedge/pkg/logger"

const (
	defaultMaxPicks = 5
	maxPicksLimit   = 20
)

type serverConfig struct {
	version       string
	adminToken    string
	corsOrigin    string
	maxPicks      int
	secureCookies bool
	logger        logger.Logger
}

func defaultServerConfig() serverConfig {
	return serverConfig{
		version:    "dev",
		corsOrigin: "*",
		maxPicks:   defaultMaxPicks,
	}
}

// Option configures a Server.
type Option func(*serverConfig)

// WithVersion sets the version reported by /api/status.
func WithVersion(v string) Option {
	return func(c *serverConfig) {
		if v != "" {
			c.version = v
		}
	}
}

// WithAdminToken sets the token required by admin routes. Empty disables them.
func WithAdminToken(token string) Option {
	return func(c *serverConfig) {
		c.adminToken = token
	}
}

// WithCORSOrigin sets Access-Control-Allow-Origin for /api routes.
func WithCORSOrigin(origin string) Option {
	return func(c *serverConfig) {
		if origin != "" {
			c.corsOrigin = origin
		}
	}
}

// WithMaxPicks sets the default pick count of /api/picks.
func WithMaxPicks(n int) Option {
	return func(c *serverConfig) {
		if n > 0 && n <= maxPicksLimit {
			c.maxPicks = n
		}
	}
}

// WithSecureCookies marks session cookies Secure.
func WithSecureCookies(secure bool) Option {
	return func(c *serverConfig) {
		c.secureCookies = secure
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(c *serverConfig) {
		if l != nil {
			c.logger = l
		}
	}
}
