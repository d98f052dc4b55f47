package smoke

import (
	"fmt"
	"net/url"
	"time"
)

// Defaults for a run.
const (
	DefaultBaseURL    = "http://localhost:10000"
	DefaultSignups    = 20
	DefaultWorkers    = 4
	DefaultTimeout    = 10 * time.Second
	DefaultAccessCode = "BETA2024"
)

// Config holds the settings of one smoke run.
type Config struct {
	BaseURL    string
	Signups    int
	Workers    int
	Timeout    time.Duration
	AccessCode string
	// AdminToken enables the settle check when set.
	AdminToken string
	// WaitForPicks polls /api/picks until it is non-empty or the wait ends.
	WaitForPicks time.Duration
	Verbose      bool
}

// DefaultConfig returns a config for a local server.
func DefaultConfig() Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		Signups:    DefaultSignups,
		Workers:    DefaultWorkers,
		Timeout:    DefaultTimeout,
		AccessCode: DefaultAccessCode,
	}
}

// Validate checks the config.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: base url %q", ErrInvalidConfig, c.BaseURL)
	}
	if c.Signups < 1 {
		return fmt.Errorf("%w: signups must be positive", ErrInvalidConfig)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	if c.AccessCode == "" {
		return fmt.Errorf("%w: access code is required", ErrInvalidConfig)
	}
	return nil
}
