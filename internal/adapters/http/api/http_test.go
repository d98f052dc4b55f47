package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/betedge/internal/adapters/http/api"
	"github.com/okian/betedge/internal/adapters/repository"
	service "github.com/okian/betedge/internal/app"
	"github.com/okian/betedge/internal/domain/account"
	"github.com/okian/betedge/internal/domain/analysis"
	"github.com/okian/betedge/internal/domain/ledger"
	"github.com/okian/betedge/internal/domain/odds"
	"github.com/okian/betedge/internal/domain/picks"
	"github.com/okian/betedge/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const adminToken = "s3cret"

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type mockDeps struct {
	mu       sync.Mutex
	recs     []picks.Recommendation
	lastN    int
	signups  map[string]bool
	sessions map[string]string
	bets     map[string]ledger.Bet
	betSeq   int
	refresh  []string
}

func newMockDeps() *mockDeps {
	return &mockDeps{
		recs: []picks.Recommendation{
			{
				GameID: "g1", Sport: odds.NFL, HomeTeam: "Chiefs", AwayTeam: "Bills",
				CommenceTime: time.Date(2026, 10, 18, 17, 0, 0, 0, time.UTC),
				Analysis:     analysis.Analysis{HasOdds: true, Confidence: 72.5, Level: analysis.High},
				Bets:         []picks.Bet{{Type: picks.Moneyline, Pick: "Chiefs ML", Price: 1.9, ExpectedValue: 0.3775}},
				Score:        37.75,
			},
		},
		signups:  map[string]bool{},
		sessions: map[string]string{},
		bets:     map[string]ledger.Bet{},
	}
}

func (m *mockDeps) TopPicks(_ context.Context, sport string, n int) ([]picks.Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastN = n
	if sport != "" {
		if _, err := odds.ParseSport(sport); err != nil {
			return nil, err
		}
	}
	return m.recs, nil
}

func (m *mockDeps) SportBoard(_ context.Context, sport string) (odds.Sport, []picks.Recommendation, error) {
	sp, err := odds.ParseSport(sport)
	if err != nil {
		return "", nil, err
	}
	return sp, m.recs, nil
}

func (m *mockDeps) GameAnalysis(_ context.Context, id string) (picks.Recommendation, error) {
	for _, rec := range m.recs {
		if rec.GameID == id {
			return rec, nil
		}
	}
	return picks.Recommendation{}, fmt.Errorf("%w: %s", service.ErrGameNotFound, id)
}

func (m *mockDeps) Sports() []odds.Sport { return []odds.Sport{odds.NFL, odds.NBA} }
func (m *mockDeps) DemoMode() bool        { return true }

func (m *mockDeps) CacheStatus(context.Context) ([]repository.SportStatus, error) {
	return []repository.SportStatus{{Sport: odds.NFL, Games: 1, Source: repository.SourceMock}}, nil
}

func (m *mockDeps) Refresh(_ context.Context, sport string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh = append(m.refresh, sport)
	return nil
}

func (m *mockDeps) Signup(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return false, service.ErrInvalidEmail
	}
	if m.signups[email] {
		return false, nil
	}
	m.signups[email] = true
	return true, nil
}

func (m *mockDeps) SignupCount(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.signups), nil
}

func (m *mockDeps) Register(_ context.Context, username, _, password, code string) (account.Session, error) {
	if code != "BETA2024" {
		return account.Session{}, account.ErrInvalidAccessCode
	}
	if len(password) < 6 || len(password) > 72 {
		return account.Session{}, account.ErrInvalidInput
	}
	return m.open(username), nil
}

func (m *mockDeps) Login(_ context.Context, username, password string) (account.Session, error) {
	if password != "secret1" {
		return account.Session{}, account.ErrInvalidCredentials
	}
	return m.open(username), nil
}

func (m *mockDeps) open(username string) account.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	token := "tok-" + username
	m.sessions[token] = username
	return account.Session{Token: token, Username: username, ExpiresAt: time.Now().Add(time.Hour)}
}

func (m *mockDeps) Logout(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *mockDeps) Authenticate(_ context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.sessions[token]
	if !ok {
		return "", account.ErrUnauthenticated
	}
	return user, nil
}

func (m *mockDeps) PlaceBet(_ context.Context, username string, b ledger.Bet) (ledger.Bet, bool, error) {
	if err := b.Validate(); err != nil {
		return ledger.Bet{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.bets {
		if b.RequestID != "" && existing.Username == username && existing.RequestID == b.RequestID {
			return existing, true, nil
		}
	}
	m.betSeq++
	b.ID = fmt.Sprintf("bet-%d", m.betSeq)
	b.Username = username
	b.Status = ledger.Pending
	m.bets[b.ID] = b
	return b, false, nil
}

func (m *mockDeps) Bets(_ context.Context, username string) ([]ledger.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ledger.Bet
	for _, b := range m.bets {
		if b.Username == username {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockDeps) SettleBet(_ context.Context, id, result string) (ledger.Bet, error) {
	r, err := ledger.ParseResult(result)
	if err != nil {
		return ledger.Bet{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bets[id]
	if !ok {
		return ledger.Bet{}, ledger.ErrNotFound
	}
	if b.Status != ledger.Pending {
		return b, ledger.ErrAlreadySettled
	}
	b.Status = r
	m.bets[id] = b
	return b, nil
}

func (m *mockDeps) Performance(ctx context.Context, username string) (ledger.Performance, error) {
	bets, _ := m.Bets(ctx, username)
	return ledger.Summarize(bets), nil
}

func (m *mockDeps) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true}
}

func newMux(deps *mockDeps, opts ...api.Option) *http.ServeMux {
	mux := http.NewServeMux()
	opts = append([]api.Option{api.WithLogger(logger.NewNop()), api.WithMaxPicks(3)}, opts...)
	api.NewServer(deps, opts...).Register(context.Background(), mux)
	return mux
}

func do(mux http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func form(method, target string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func withSession(req *http.Request, token string) *http.Request {
	req.AddCookie(&http.Cookie{Name: api.SessionCookie, Value: token})
	return req
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestServer_Register(t *testing.T) {
	Convey("Given a nil mux", t, func() {
		Convey("Then Register panics", func() {
			So(func() { api.NewServer(newMockDeps()).Register(context.Background(), nil) }, ShouldPanic)
		})
	})
}

func TestHealthAndStatus(t *testing.T) {
	Convey("Given the API server", t, func() {
		deps := newMockDeps()
		mux := newMux(deps, api.WithVersion("1.2.3"))

		Convey("GET /health answers OK", func() {
			w := do(mux, httptest.NewRequest(http.MethodGet, "/health", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldEqual, "OK")
		})

		Convey("GET /healthz and /metrics expose Prometheus text", func() {
			_ = do(mux, httptest.NewRequest(http.MethodGet, "/health", nil))
			for _, path := range []string{"/healthz", "/metrics"} {
				w := do(mux, httptest.NewRequest(http.MethodGet, path, nil))
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "betedge_http_requests_total")
			}
		})

		Convey("GET /stats returns the service stats", func() {
			w := do(mux, httptest.NewRequest(http.MethodGet, "/stats", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["started"], ShouldEqual, true)
		})

		Convey("GET /api/status describes the service", func() {
			w := do(mux, httptest.NewRequest(http.MethodGet, "/api/status", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["status"], ShouldEqual, "online")
			So(body["version"], ShouldEqual, "1.2.3")
			So(body["demo_mode"], ShouldEqual, true)
			So(body["sports"], ShouldResemble, []any{"nfl", "nba"})
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
		})

		Convey("GET /api/cache-status is keyed by sport", func() {
			w := do(mux, httptest.NewRequest(http.MethodGet, "/api/cache-status", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			var body map[string]repository.SportStatus
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			So(body, ShouldContainKey, "nfl")
			So(body["nfl"].Games, ShouldEqual, 1)
			So(body["nfl"].Source, ShouldEqual, repository.SourceMock)
		})

		Convey("OPTIONS on an API route is a CORS preflight", func() {
			w := do(mux, httptest.NewRequest(http.MethodOptions, "/api/picks", nil))
			So(w.Code, ShouldEqual, http.StatusNoContent)
			So(w.Header().Get("Access-Control-Allow-Methods"), ShouldContainSubstring, "POST")
		})
	})
}

func TestRefresh(t *testing.T) {
	Convey("Given the refresh endpoint", t, func() {
		deps := newMockDeps()

		Convey("Without a configured token every caller is refused", func() {
			mux := newMux(deps)
			req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
			req.Header.Set("X-Admin-Token", "")
			So(do(mux, req).Code, ShouldEqual, http.StatusForbidden)
		})

		Convey("With a configured token", func() {
			mux := newMux(deps, api.WithAdminToken(adminToken))

			Convey("A wrong token is refused", func() {
				req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
				req.Header.Set("X-Admin-Token", "nope")
				w := do(mux, req)
				So(w.Code, ShouldEqual, http.StatusForbidden)
				So(decode(w)["code"], ShouldEqual, "forbidden")
			})

			Convey("The right token starts a refresh", func() {
				req := httptest.NewRequest(http.MethodPost, "/api/refresh?sport=nba", nil)
				req.Header.Set("X-Admin-Token", adminToken)
				So(do(mux, req).Code, ShouldEqual, http.StatusAccepted)
				So(deps.refresh, ShouldResemble, []string{"nba"})
			})
		})
	})
}

func TestPicks(t *testing.T) {
	Convey("Given the picks endpoints", t, func() {
		deps := newMockDeps()
		mux := newMux(deps)

		Convey("GET /api/picks defaults to the configured pick count", func() {
			w := do(mux, httptest.NewRequest(http.MethodGet, "/api/picks", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastN, ShouldEqual, 3)

			body := decode(w)
			So(body["generated"], ShouldNotBeEmpty)
			list := body["picks"].([]any)
			So(len(list), ShouldEqual, 1)
			pick := list[0].(map[string]any)
			So(pick["game"], ShouldEqual, "Chiefs vs Bills")
			So(pick["stars"], ShouldEqual, float64(3))
			So(pick["commence_time"], ShouldEqual, "2026-10-18T17:00:00Z")
		})

		Convey("GET /api/picks validates the limit", func() {
			for _, limit := range []string{"0", "21", "abc"} {
				w := do(mux, httptest.NewRequest(http.MethodGet, "/api/picks?limit="+limit, nil))
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			}
			w := do(mux, httptest.NewRequest(http.MethodGet, "/api/picks?limit=20", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastN, ShouldEqual, 20)
		})

		Convey("An unknown sport is a bad request", func() {
			w := do(mux, httptest.NewRequest(http.MethodGet, "/api/picks?sport=darts", nil))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			w = do(mux, httptest.NewRequest(http.MethodGet, "/api/games/darts", nil))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("GET /api/games/{sport} includes the analysis", func() {
			w := do(mux, httptest.NewRequest(http.MethodGet, "/api/games/NFL", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["sport"], ShouldEqual, "nfl")
			game := body["games"].([]any)[0].(map[string]any)
			So(game["analysis"], ShouldNotBeNil)
		})

		Convey("GET /api/analysis/{game_id} finds known games only", func() {
			w := do(mux, httptest.NewRequest(http.MethodGet, "/api/analysis/g1", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["level"], ShouldEqual, "HIGH")

			w = do(mux, httptest.NewRequest(http.MethodGet, "/api/analysis/zzz", nil))
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decode(w)["code"], ShouldEqual, "not_found")
		})

		Convey("A write method on a read route is rejected", func() {
			w := do(mux, httptest.NewRequest(http.MethodPost, "/api/picks", nil))
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestSignup(t *testing.T) {
	Convey("Given the signup endpoints", t, func() {
		deps := newMockDeps()
		mux := newMux(deps)

		Convey("A JSON signup succeeds once", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/subscribe", strings.NewReader(`{"email":"fan@example.com"}`))
			req.Header.Set("Content-Type", "application/json")
			w := do(mux, req)
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["success"], ShouldEqual, true)
			So(body["already_registered"], ShouldEqual, false)

			w = do(mux, form(http.MethodPost, "/signup", url.Values{"email": {"FAN@example.com"}}))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["already_registered"], ShouldEqual, true)

			w = do(mux, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
			So(decode(w)["total_signups"], ShouldEqual, float64(1))
		})

		Convey("An invalid email is a bad request", func() {
			w := do(mux, form(http.MethodPost, "/signup", url.Values{"email": {"nobody"}}))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["success"], ShouldEqual, false)

			req := httptest.NewRequest(http.MethodPost, "/api/subscribe", strings.NewReader(`{not json`))
			So(do(mux, req).Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestAuth(t *testing.T) {
	Convey("Given the account forms", t, func() {
		deps := newMockDeps()
		mux := newMux(deps)

		Convey("Register sets a session cookie and redirects", func() {
			w := do(mux, form(http.MethodPost, "/register", url.Values{
				"username": {"sharp"}, "email": {"s@example.com"}, "password": {"secret1"}, "access_code": {"BETA2024"},
			}))
			So(w.Code, ShouldEqual, http.StatusSeeOther)
			So(w.Header().Get("Location"), ShouldEqual, "/dashboard")
			cookies := w.Result().Cookies()
			So(len(cookies), ShouldEqual, 1)
			So(cookies[0].Name, ShouldEqual, api.SessionCookie)
			So(cookies[0].Value, ShouldEqual, "tok-sharp")
			So(cookies[0].HttpOnly, ShouldBeTrue)
		})

		Convey("Register rejects a bad access code with 400", func() {
			w := do(mux, form(http.MethodPost, "/register", url.Values{
				"username": {"sharp"}, "email": {"s@example.com"}, "password": {"secret1"}, "access_code": {"NOPE"},
			}))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Register rejects an overlong password with 400", func() {
			w := do(mux, form(http.MethodPost, "/register", url.Values{
				"username": {"sharp"}, "email": {"s@example.com"}, "password": {strings.Repeat("p", 80)}, "access_code": {"BETA2024"},
			}))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Result().Cookies(), ShouldBeEmpty)
		})

		Convey("Login checks credentials", func() {
			w := do(mux, form(http.MethodPost, "/login", url.Values{"username": {"sharp"}, "password": {"bad"}}))
			So(w.Code, ShouldEqual, http.StatusBadRequest)

			w = do(mux, form(http.MethodPost, "/login", url.Values{"username": {""}, "password": {"secret1"}}))
			So(w.Code, ShouldEqual, http.StatusBadRequest)

			w = do(mux, form(http.MethodPost, "/login", url.Values{"username": {"sharp"}, "password": {"secret1"}}))
			So(w.Code, ShouldEqual, http.StatusSeeOther)
		})

		Convey("Logout clears the cookie and the session", func() {
			deps.open("sharp")
			w := do(mux, withSession(httptest.NewRequest(http.MethodPost, "/logout", nil), "tok-sharp"))
			So(w.Code, ShouldEqual, http.StatusSeeOther)
			So(w.Header().Get("Location"), ShouldEqual, "/")
			So(w.Result().Cookies()[0].MaxAge, ShouldBeLessThan, 0)

			_, err := deps.Authenticate(context.Background(), "tok-sharp")
			So(errors.Is(err, account.ErrUnauthenticated), ShouldBeTrue)
		})
	})
}

func TestBets(t *testing.T) {
	Convey("Given a logged in user", t, func() {
		deps := newMockDeps()
		mux := newMux(deps, api.WithAdminToken(adminToken))
		deps.open("sharp")
		place := func(body string, token string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/api/place-bet", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			if token != "" {
				req = withSession(req, token)
			}
			return do(mux, req)
		}
		const bet = `{"gameId":"g1","pick":"Chiefs ML","type":"MONEYLINE","odds":1.9,"units":2,"requestId":"r1"}`

		Convey("Placing a bet needs a session", func() {
			So(place(bet, "").Code, ShouldEqual, http.StatusUnauthorized)
			So(place(bet, "tok-ghost").Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("A bet is placed once per request id", func() {
			w := place(bet, "tok-sharp")
			So(w.Code, ShouldEqual, http.StatusOK)
			first := decode(w)
			So(first["success"], ShouldEqual, true)
			So(first["duplicate"], ShouldEqual, false)

			w = place(bet, "tok-sharp")
			again := decode(w)
			So(again["duplicate"], ShouldEqual, true)
			So(again["bet_id"], ShouldEqual, first["bet_id"])
		})

		Convey("An invalid bet is a bad request", func() {
			So(place(`{"gameId":"g1","pick":"x","odds":0.5}`, "tok-sharp").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Bets settle once with the admin token", func() {
			id := decode(place(bet, "tok-sharp"))["bet_id"].(string)
			settle := func(token, body string) *httptest.ResponseRecorder {
				req := httptest.NewRequest(http.MethodPost, "/api/bets/"+id+"/settle", strings.NewReader(body))
				req.Header.Set("X-Admin-Token", token)
				return do(mux, req)
			}

			So(settle("wrong", `{"result":"win"}`).Code, ShouldEqual, http.StatusForbidden)
			So(settle(adminToken, `{"result":"maybe"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(settle(adminToken, `{"result":"win"}`).Code, ShouldEqual, http.StatusOK)
			So(settle(adminToken, `{"result":"loss"}`).Code, ShouldEqual, http.StatusConflict)

			w := do(mux, withSession(httptest.NewRequest(http.MethodGet, "/api/performance", nil), "tok-sharp"))
			So(w.Code, ShouldEqual, http.StatusOK)
			perf := decode(w)
			So(perf["wins"], ShouldEqual, float64(1))
			So(perf["profit"], ShouldAlmostEqual, 1.8)

			w = do(mux, withSession(httptest.NewRequest(http.MethodGet, "/api/bets", nil), "tok-sharp"))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(len(decode(w)["bets"].([]any)), ShouldEqual, 1)
		})
	})
}

func TestOpError(t *testing.T) {
	Convey("Given operation errors", t, func() {
		cause := errors.New("boom")

		Convey("WrapKind matches both the kind and the cause", func() {
			err := api.WrapKind("api.op", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "bad request: boom")
		})

		Convey("NewKind carries only the kind", func() {
			err := api.NewKind("api.op", api.ErrForbidden)
			So(errors.Is(err, api.ErrForbidden), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "forbidden")
		})

		Convey("Wrap of nil is nil", func() {
			So(api.Wrap("api.op", nil), ShouldBeNil)
		})
	})
}
