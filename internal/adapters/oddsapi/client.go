// Package oddsapi fetches odds from the-odds-api v4.
package oddsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/betedge/internal/domain/odds"
	"github.com/okian/betedge/pkg/logger"
	"github.com/okian/betedge/pkg/metrics"
)

const (
	DefaultBaseURL = "https://api.the-odds-api.com/v4"

	FormatDecimal  = "decimal"
	FormatAmerican = "american"

	headerRemaining = "x-requests-remaining"
	headerUsed      = "x-requests-used"

	maxErrorBody = 256
)

// Result is one successful fetch.
type Result struct {
	Games []odds.Game
	Quota odds.Quota
}

// Client calls the odds endpoint for a sport.
type Client struct {
	http       *http.Client
	apiKey     string
	base       string
	timeout    time.Duration
	regions    string
	markets    string
	format     string
	bookmakers []string
}

// New returns a client authenticating with apiKey.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{},
		apiKey:  apiKey,
		base:    DefaultBaseURL,
		timeout: 10 * time.Second,
		regions: "us",
		markets: "h2h,spreads,totals",
		format:  FormatDecimal,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchOdds returns the upcoming games of sport with every book's prices.
func (c *Client) FetchOdds(ctx context.Context, sport odds.Sport) (Result, error) {
	start := time.Now()
	res, err := c.fetch(ctx, sport)
	metrics.RecordOddsFetchLatency(string(sport), float64(time.Since(start).Milliseconds()))
	metrics.RecordOddsFetch(string(sport), resultLabel(err))
	if res.Quota.Remaining >= 0 {
		metrics.UpdateAPIRequestsRemaining(res.Quota.Remaining)
	}
	return res, err
}

func (c *Client) fetch(ctx context.Context, sport odds.Sport) (Result, error) {
	res := Result{Quota: odds.UnknownQuota}
	if c.apiKey == "" {
		return res, ErrNoAPIKey
	}
	if sport.Key() == "" {
		return res, fmt.Errorf("%w: %s", odds.ErrUnknownSport, sport)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(sport), nil)
	if err != nil {
		return res, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	res.Quota = parseQuota(resp.Header)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return res, ErrUnauthorized
	case http.StatusTooManyRequests:
		return res, ErrQuotaExceeded
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return res, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var games []odds.Game
	if err := json.NewDecoder(resp.Body).Decode(&games); err != nil {
		return res, fmt.Errorf("%w: decode: %w", ErrUpstream, err)
	}
	if c.format == FormatAmerican {
		toDecimal(games)
	}
	res.Games = games

	logger.Get().Debug(ctx, "odds fetched",
		logger.String("sport", string(sport)),
		logger.Int("games", len(games)),
		logger.Int("requests_remaining", res.Quota.Remaining),
	)
	return res, nil
}

func (c *Client) endpoint(sport odds.Sport) string {
	q := url.Values{}
	q.Set("apiKey", c.apiKey)
	q.Set("regions", c.regions)
	q.Set("markets", c.markets)
	q.Set("oddsFormat", c.format)
	if len(c.bookmakers) > 0 {
		q.Set("bookmakers", strings.Join(c.bookmakers, ","))
	}
	return fmt.Sprintf("%s/sports/%s/odds?%s", c.base, sport.Key(), q.Encode())
}

func parseQuota(h http.Header) odds.Quota {
	q := odds.UnknownQuota
	if v, err := strconv.Atoi(strings.TrimSpace(h.Get(headerRemaining))); err == nil {
		q.Remaining = v
	} else if f, ferr := strconv.ParseFloat(strings.TrimSpace(h.Get(headerRemaining)), 64); ferr == nil {
		q.Remaining = int(f)
	}
	if v, err := strconv.Atoi(strings.TrimSpace(h.Get(headerUsed))); err == nil {
		q.Used = v
	} else if f, ferr := strconv.ParseFloat(strings.TrimSpace(h.Get(headerUsed)), 64); ferr == nil {
		q.Used = int(f)
	}
	return q
}

func toDecimal(games []odds.Game) {
	for gi := range games {
		for bi := range games[gi].Bookmakers {
			for mi := range games[gi].Bookmakers[bi].Markets {
				outs := games[gi].Bookmakers[bi].Markets[mi].Outcomes
				for oi := range outs {
					outs[oi].Price = odds.AmericanToDecimal(outs[oi].Price)
				}
			}
		}
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	default:
		return "error"
	}
}
