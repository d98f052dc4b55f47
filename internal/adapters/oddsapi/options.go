package oddsapi

import (
	"net/http"
	"strings"
	"time"
)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base, e.g. for a test server.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.base = strings.TrimRight(base, "/")
		}
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRegions sets the regions query parameter.
func WithRegions(regions string) Option {
	return func(c *Client) {
		if regions != "" {
			c.regions = regions
		}
	}
}

// WithMarkets sets the markets query parameter.
func WithMarkets(markets string) Option {
	return func(c *Client) {
		if markets != "" {
			c.markets = markets
		}
	}
}

// WithOddsFormat requests "decimal" or "american" prices. Prices are always
// returned to callers as decimal.
func WithOddsFormat(format string) Option {
	return func(c *Client) {
		if format == FormatDecimal || format == FormatAmerican {
			c.format = format
		}
	}
}

// WithBookmakers restricts the books returned upstream.
func WithBookmakers(books []string) Option {
	return func(c *Client) {
		c.bookmakers = append([]string(nil), books...)
	}
}
