// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and BETEDGE_* env vars.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the log encoder: json or console.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":10000".
	Addr string `koanf:"addr"`

	// OddsAPIKey authenticates against the-odds-api. Empty runs in demo mode on mock data.
	OddsAPIKey  string `koanf:"odds_api_key"`
	OddsAPIBase string `koanf:"odds_api_base"`
	Regions     string `koanf:"regions"`
	Markets     string `koanf:"markets"`
	OddsFormat  string `koanf:"odds_format"`
	// Bookmakers restricts upstream books (comma separated); empty means all.
	Bookmakers string `koanf:"bookmakers"`

	// Sports lists the sports to track, comma separated short names.
	Sports string `koanf:"sports"`

	// RefreshSchedule is a cron spec for the server-side odds refresh.
	RefreshSchedule  string `koanf:"refresh_schedule"`
	RequestTimeoutMS int    `koanf:"request_timeout_ms"`
	SportDelayMS     int    `koanf:"sport_delay_ms"`
	FallbackToMock   bool   `koanf:"fallback_to_mock"`
	// Offseason maps a sport to the months (1-12) in which it is not fetched.
	Offseason map[string][]int `koanf:"offseason"`

	QueueSize        int `koanf:"queue_size"`
	WorkerCount      int `koanf:"worker_count"`
	DedupeSize       int `koanf:"dedupe_size"`
	MaxPicks         int `koanf:"max_picks"`
	MaxGamesPerSport int `koanf:"max_games_per_sport"`

	DBPath          string `koanf:"db_path"`
	SessionTTLHours int    `koanf:"session_ttl_hours"`
	AccessCodes     string `koanf:"access_codes"`
	AdminToken      string `koanf:"admin_token"`
	AnalyticsID     string `koanf:"analytics_id"`
	CORSOrigin      string `koanf:"cors_origin"`
	// SecureCookies marks session cookies Secure; enable behind TLS.
	SecureCookies bool `koanf:"secure_cookies"`

	// MetricsNamespace prefixes every exported Prometheus metric.
	MetricsNamespace string `koanf:"metrics_namespace"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "json",
		Addr:             ":10000",
		OddsAPIBase:      "https://api.the-odds-api.com/v4",
		Regions:          "us",
		Markets:          "h2h,spreads,totals",
		OddsFormat:       "decimal",
		Sports:           "nfl,nba,mlb,ncaaf",
		RefreshSchedule:  "@every 30m",
		RequestTimeoutMS: 10_000,
		SportDelayMS:     2_000,
		FallbackToMock:   true,
		Offseason: map[string][]int{
			"mlb": {12, 1, 2},
		},
		QueueSize:        10_000,
		WorkerCount:      4,
		DedupeSize:       50_000,
		MaxPicks:         5,
		MaxGamesPerSport: 15,
		DBPath:           "betedge.db",
		SessionTTLHours:  168,
		AccessCodes:      "BETA2024,EARLY2024,VIP2024,ML2024",
		CORSOrigin:       "*",
		MetricsNamespace: "betedge",
	}
}

// DemoMode reports whether the service runs without an odds API key.
func (c *Config) DemoMode() bool {
	return strings.TrimSpace(c.OddsAPIKey) == ""
}

// RequestTimeout returns the upstream request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// SportDelay returns the pause between sports during a full refresh.
func (c *Config) SportDelay() time.Duration {
	return time.Duration(c.SportDelayMS) * time.Millisecond
}

// SessionTTL returns the lifetime of a login session.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// SportList returns the configured sports, trimmed and lower-cased.
func (c *Config) SportList() []string {
	return splitList(c.Sports, strings.ToLower)
}

// AccessCodeList returns the configured registration access codes.
func (c *Config) AccessCodeList() []string {
	return splitList(c.AccessCodes, strings.TrimSpace)
}

// BookmakerList returns the configured bookmaker keys.
func (c *Config) BookmakerList() []string {
	return splitList(c.Bookmakers, strings.ToLower)
}

func splitList(s string, norm func(string) string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = norm(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
