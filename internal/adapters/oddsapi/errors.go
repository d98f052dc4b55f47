package oddsapi

import "errors"

var (
	// ErrUnauthorized is returned for a missing or rejected API key (HTTP 401).
	ErrUnauthorized = errors.New("odds api: unauthorized")
	// ErrQuotaExceeded is returned when the monthly request quota is spent (HTTP 429).
	ErrQuotaExceeded = errors.New("odds api: quota exceeded")
	// ErrUpstream covers every other non-200 response and transport failure.
	ErrUpstream = errors.New("odds api: upstream error")
	// ErrNoAPIKey is returned when FetchOdds is called without a key.
	ErrNoAPIKey = errors.New("odds api: no api key configured")
)
