// Package smoke exercises a running BetEdge server end to end: health,
// status, cache, picks, signups, an account and a tracked bet.
package smoke

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/betedge/pkg/logger"
)

const (
	pollInterval  = 250 * time.Millisecond
	fallbackGame  = "smoke-game"
	fallbackPick  = "Smoke Home ML"
	fallbackPrice = 1.91
)

// runner holds the state shared by the steps of one run.
type runner struct {
	cfg    Config
	client *client
	report *Report
	logger logger.Logger

	pick  pickRef
	betID string
}

type check struct {
	name string
	fn   func(context.Context) (string, error)
}

type pickRef struct {
	GameID string
	Pick   string
	Type   string
	Price  float64
}

// Run executes every check against cfg.BaseURL. The report lists each step;
// the error wraps ErrCheckFailed and names the first failing step.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c, err := newClient(cfg.BaseURL, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	defer c.close()

	r := &runner{
		cfg:    cfg,
		client: c,
		report: &Report{RunID: uuid.NewString(), BaseURL: cfg.BaseURL, Started: time.Now()},
		logger: logger.Get().Named("smoke"),
	}
	r.logger.Info(ctx, "starting smoke run",
		logger.String("runID", r.report.RunID),
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("signups", cfg.Signups),
		logger.Int("workers", cfg.Workers))

	steps := []check{
		{"health", r.checkHealth},
		{"status", r.checkStatus},
		{"cache-status", r.checkCache},
		{"picks", r.checkPicks},
		{"signups", r.checkSignups},
		{"register", r.checkRegister},
		{"dashboard", r.checkDashboard},
		{"place-bet", r.checkPlaceBet},
		{"performance", r.checkPerformance},
	}
	if cfg.AdminToken != "" {
		steps = append(steps, check{"settle", r.checkSettle})
	}

	defer func() { r.report.Duration = time.Since(r.report.Started) }()
	for _, s := range steps {
		if err := r.step(ctx, s.name, s.fn); err != nil {
			r.logger.Error(ctx, "smoke step failed", logger.String("step", s.name), logger.Error(err))
			return r.report, fmt.Errorf("%w: %s: %w", ErrCheckFailed, s.name, err)
		}
	}
	r.logger.Info(ctx, "smoke run passed", logger.String("runID", r.report.RunID))
	return r.report, nil
}

func (r *runner) step(ctx context.Context, name string, fn func(context.Context) (string, error)) error {
	start := time.Now()
	detail, err := fn(ctx)
	st := Step{Name: name, OK: err == nil, Detail: detail, Duration: time.Since(start)}
	if err != nil {
		st.Detail = err.Error()
	}
	r.report.Steps = append(r.report.Steps, st)
	if r.cfg.Verbose {
		r.logger.Info(ctx, "smoke step",
			logger.String("step", name), logger.Bool("ok", st.OK),
			logger.String("detail", st.Detail), logger.Duration("took", st.Duration))
	}
	return err
}

func (r *runner) checkHealth(ctx context.Context) (string, error) {
	resp, err := r.client.get(ctx, "/health")
	if err != nil {
		return "", err
	}
	if err := resp.expect(http.StatusOK); err != nil {
		return "", err
	}
	if strings.TrimSpace(string(resp.body)) != "OK" {
		return "", fmt.Errorf("unexpected health body %q", snippet(resp.body))
	}
	return "OK", nil
}

func (r *runner) checkStatus(ctx context.Context) (string, error) {
	var out struct {
		Status   string   `json:"status"`
		Version  string   `json:"version"`
		Sports   []string `json:"sports"`
		DemoMode bool     `json:"demo_mode"`
	}
	resp, err := r.client.get(ctx, "/api/status")
	if err != nil {
		return "", err
	}
	if err := resp.expect(http.StatusOK); err != nil {
		return "", err
	}
	if err := resp.decode(&out); err != nil {
		return "", err
	}
	if out.Status != "online" {
		return "", fmt.Errorf("status is %q", out.Status)
	}
	if len(out.Sports) == 0 {
		return "", errors.New("no sports configured")
	}
	mode := "live"
	if out.DemoMode {
		mode = "demo"
	}
	return fmt.Sprintf("version %s, %s mode, sports %s", out.Version, mode, strings.Join(out.Sports, ",")), nil
}

func (r *runner) checkCache(ctx context.Context) (string, error) {
	var out map[string]struct {
		Games  int    `json:"games"`
		Source string `json:"source"`
	}
	resp, err := r.client.get(ctx, "/api/cache-status")
	if err != nil {
		return "", err
	}
	if err := resp.expect(http.StatusOK); err != nil {
		return "", err
	}
	if err := resp.decode(&out); err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", errors.New("cache status lists no sports")
	}
	parts := make([]string, 0, len(out))
	for _, sport := range slices.Sorted(maps.Keys(out)) {
		s := out[sport]
		parts = append(parts, fmt.Sprintf("%s=%d(%s)", sport, s.Games, s.Source))
	}
	return strings.Join(parts, " "), nil
}

type picksPayload struct {
	Picks []struct {
		GameID string `json:"game_id"`
		Game   string `json:"game"`
		Bets   []struct {
			Type  string  `json:"type"`
			Pick  string  `json:"pick"`
			Price float64 `json:"odds"`
		} `json:"bets"`
	} `json:"picks"`
}

// checkPicks reads the top picks, polling for up to WaitForPicks while the
// first refresh is still running.
func (r *runner) checkPicks(ctx context.Context) (string, error) {
	deadline := time.Now().Add(r.cfg.WaitForPicks)
	for {
		var out picksPayload
		resp, err := r.client.get(ctx, "/api/picks?limit=5")
		if err != nil {
			return "", err
		}
		if err := resp.expect(http.StatusOK); err != nil {
			return "", err
		}
		if err := resp.decode(&out); err != nil {
			return "", err
		}
		for _, p := range out.Picks {
			for _, b := range p.Bets {
				if b.Type == "ARBITRAGE" || b.Price <= 1 {
					continue
				}
				r.pick = pickRef{GameID: p.GameID, Pick: b.Pick, Type: b.Type, Price: b.Price}
				return fmt.Sprintf("%d picks, betting %s on %s", len(out.Picks), b.Pick, p.Game), nil
			}
		}
		if !time.Now().Before(deadline) {
			r.pick = pickRef{GameID: fallbackGame, Pick: fallbackPick, Type: "MONEYLINE", Price: fallbackPrice}
			return fmt.Sprintf("%d picks, none bettable; using a placeholder game", len(out.Picks)), nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

type signupPayload struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	AlreadyRegistered bool   `json:"already_registered"`
}

func (r *runner) signupCount(ctx context.Context) (int, error) {
	var out struct {
		Total int `json:"total_signups"`
	}
	resp, err := r.client.get(ctx, "/api/stats")
	if err != nil {
		return 0, err
	}
	if err := resp.expect(http.StatusOK); err != nil {
		return 0, err
	}
	if err := resp.decode(&out); err != nil {
		return 0, err
	}
	return out.Total, nil
}

func (r *runner) email(i int) string {
	return fmt.Sprintf("smoke-%s-%d@example.com", r.report.RunID, i)
}

// checkSignups posts unique emails concurrently, re-posts one of them and
// verifies the signup counter moved by the number created.
func (r *runner) checkSignups(ctx context.Context) (string, error) {
	before, err := r.signupCount(ctx)
	if err != nil {
		return "", err
	}

	var created, duplicate, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i := range r.cfg.Signups {
		g.Go(func() error {
			var out signupPayload
			resp, err := r.client.postJSON(gctx, "/api/subscribe", map[string]string{"email": r.email(i)}, "")
			if err == nil {
				err = resp.expect(http.StatusOK)
			}
			if err == nil {
				err = resp.decode(&out)
			}
			switch {
			case err != nil || !out.Success:
				failed.Add(1)
			case out.AlreadyRegistered:
				duplicate.Add(1)
			default:
				created.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	r.report.SignupsCreated = int(created.Load())
	r.report.SignupsDuplicate = int(duplicate.Load())
	r.report.SignupsFailed = int(failed.Load())
	if r.report.SignupsFailed > 0 {
		return "", fmt.Errorf("%d of %d signups failed", r.report.SignupsFailed, r.cfg.Signups)
	}

	var again signupPayload
	resp, err := r.client.postJSON(ctx, "/api/subscribe", map[string]string{"email": strings.ToUpper(r.email(0))}, "")
	if err != nil {
		return "", err
	}
	if err := resp.expect(http.StatusOK); err != nil {
		return "", err
	}
	if err := resp.decode(&again); err != nil {
		return "", err
	}
	if !again.AlreadyRegistered {
		return "", errors.New("repeated signup was not recognised")
	}

	after, err := r.signupCount(ctx)
	if err != nil {
		return "", err
	}
	if after < before+r.report.SignupsCreated {
		return "", fmt.Errorf("signup count %d, want at least %d", after, before+r.report.SignupsCreated)
	}
	return fmt.Sprintf("%d created, %d already listed, total %d", r.report.SignupsCreated, r.report.SignupsDuplicate, after), nil
}

func (r *runner) checkRegister(ctx context.Context) (string, error) {
	username := "smoke_" + strings.ReplaceAll(r.report.RunID, "-", "")[:12]
	form := url.Values{
		"username":    {username},
		"email":       {"register-" + r.report.RunID + "@example.com"},
		"password":    {uuid.NewString()},
		"access_code": {r.cfg.AccessCode},
	}
	resp, err := r.client.postForm(ctx, "/register", form)
	if err != nil {
		return "", err
	}
	if err := resp.expect(http.StatusSeeOther); err != nil {
		return "", err
	}
	if loc := resp.header.Get("Location"); loc != "/dashboard" {
		return "", fmt.Errorf("redirected to %q", loc)
	}
	r.report.Username = username
	return "registered " + username, nil
}

func (r *runner) checkDashboard(ctx context.Context) (string, error) {
	resp, err := r.client.get(ctx, "/dashboard")
	if err != nil {
		return "", err
	}
	if err := resp.expect(http.StatusOK); err != nil {
		return "", err
	}
	if !strings.Contains(string(resp.body), r.report.Username) && !strings.Contains(string(resp.body), "Games Available") {
		return "", errors.New("dashboard did not render for the session")
	}
	return "session accepted", nil
}

type placeBetPayload struct {
	Success   bool   `json:"success"`
	BetID     string `json:"bet_id"`
	Duplicate bool   `json:"duplicate"`
}

// checkPlaceBet places a bet and replays it with the same request id.
func (r *runner) checkPlaceBet(ctx context.Context) (string, error) {
	body := map[string]any{
		"gameId":    r.pick.GameID,
		"pick":      r.pick.Pick,
		"type":      r.pick.Type,
		"odds":      r.pick.Price,
		"units":     1,
		"requestId": uuid.NewString(),
	}

	var first, second placeBetPayload
	for i, out := range []*placeBetPayload{&first, &second} {
		resp, err := r.client.postJSON(ctx, "/api/place-bet", body, "")
		if err != nil {
			return "", err
		}
		if err := resp.expect(http.StatusOK); err != nil {
			return "", fmt.Errorf("attempt %d: %w", i+1, err)
		}
		if err := resp.decode(out); err != nil {
			return "", err
		}
	}
	switch {
	case !first.Success || first.BetID == "":
		return "", errors.New("bet was not recorded")
	case first.Duplicate:
		return "", errors.New("first bet reported as duplicate")
	case !second.Duplicate || second.BetID != first.BetID:
		return "", fmt.Errorf("replay created bet %q, want duplicate of %q", second.BetID, first.BetID)
	}
	r.betID = first.BetID
	r.report.BetID = first.BetID
	return "bet " + first.BetID, nil
}

type performancePayload struct {
	TotalBets int     `json:"total_bets"`
	Wins      int     `json:"wins"`
	Pending   int     `json:"pending"`
	Profit    float64 `json:"profit"`
}

func (r *runner) performance(ctx context.Context) (performancePayload, error) {
	var out performancePayload
	resp, err := r.client.get(ctx, "/api/performance")
	if err != nil {
		return out, err
	}
	if err := resp.expect(http.StatusOK); err != nil {
		return out, err
	}
	return out, resp.decode(&out)
}

func (r *runner) checkPerformance(ctx context.Context) (string, error) {
	perf, err := r.performance(ctx)
	if err != nil {
		return "", err
	}
	if perf.TotalBets != 1 || perf.Pending != 1 {
		return "", fmt.Errorf("performance shows %d bets (%d pending), want 1 pending", perf.TotalBets, perf.Pending)
	}
	return "1 pending bet", nil
}

func (r *runner) checkSettle(ctx context.Context) (string, error) {
	resp, err := r.client.postJSON(ctx, "/api/bets/"+url.PathEscape(r.betID)+"/settle",
		map[string]string{"result": "win"}, r.cfg.AdminToken)
	if err != nil {
		return "", err
	}
	if err := resp.expect(http.StatusOK); err != nil {
		return "", err
	}
	perf, err := r.performance(ctx)
	if err != nil {
		return "", err
	}
	if perf.Wins != 1 || perf.Pending != 0 {
		return "", fmt.Errorf("after settling: %d wins, %d pending", perf.Wins, perf.Pending)
	}
	return fmt.Sprintf("settled as win, profit %+.2f units", perf.Profit), nil
}
