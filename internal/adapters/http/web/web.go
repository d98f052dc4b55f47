// Package web renders the HTML pages: the public picks page, the sport
// dashboards and the account forms.
package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/a-h/templ"

	"github.com/okian/betedge/internal/adapters/http/api"
	"github.com/okian/betedge/internal/adapters/repository"
	"github.com/okian/betedge/internal/domain/ledger"
	"github.com/okian/betedge/internal/domain/odds"
	"github.com/okian/betedge/internal/domain/picks"
	"github.com/okian/betedge/pkg/logger"
)

// Dependencies is the read side of the service the pages need.
type Dependencies interface {
	api.Authenticator
	TopPicks(ctx context.Context, sport string, n int) ([]picks.Recommendation, error)
	SportBoard(ctx context.Context, sport string) (odds.Sport, []picks.Recommendation, error)
	Sports() []odds.Sport
	DemoMode() bool
	CacheStatus(ctx context.Context) ([]repository.SportStatus, error)
	Performance(ctx context.Context, username string) (ledger.Performance, error)
}

// Handler serves the HTML pages.
type Handler struct {
	deps Dependencies
	cfg  config
}

// NewHandler creates the page handler.
func NewHandler(deps Dependencies, opts ...Option) *Handler {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.Get().Named("web")
	}
	return &Handler{deps: deps, cfg: cfg}
}

// Register attaches the page routes to mux.
func (h *Handler) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("GET /{$}", api.MetricsMiddleware(h.HandleLanding, "page_landing"))
	mux.HandleFunc("GET /dashboard", api.MetricsMiddleware(h.HandleDashboard, "page_dashboard"))
	mux.HandleFunc("GET /dashboard/{sport}", api.MetricsMiddleware(h.HandlePublicBoard, "page_board"))
	mux.HandleFunc("GET /login", api.MetricsMiddleware(h.HandleLogin, "page_login"))
	mux.HandleFunc("GET /register", api.MetricsMiddleware(h.HandleRegister, "page_register"))
}

// HandleLanding renders the top picks with the email signup form.
func (h *Handler) HandleLanding(w http.ResponseWriter, r *http.Request) {
	recs, err := h.deps.TopPicks(r.Context(), "", h.cfg.maxPicks)
	if err != nil {
		h.fail(w, r, "landing", err)
		return
	}
	view := landingView{
		Picks:    recs,
		Sports:   h.deps.Sports(),
		DemoMode: h.deps.DemoMode(),
		Location: h.cfg.location,
	}
	h.render(w, r, http.StatusOK, page("BetEdge AI: Today's Top Picks", h.cfg.analyticsID, landing(view)))
}

// HandleDashboard renders the full analysis for one sport. It needs a session.
func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := api.SessionToken(r)
	if token == "" {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	user, err := h.deps.Authenticate(ctx, token)
	if err != nil {
		h.cfg.logger.Debug(ctx, "dashboard session rejected", logger.Error(err))
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	sportName := r.URL.Query().Get("sport")
	if sportName == "" {
		sportName = string(odds.NFL)
	}
	sport, recs, err := h.deps.SportBoard(ctx, sportName)
	if err != nil {
		h.fail(w, r, "dashboard", err)
		return
	}
	if len(recs) == 0 {
		h.noGames(w, r, sport)
		return
	}

	perf, err := h.deps.Performance(ctx, user)
	if err != nil {
		h.cfg.logger.Warn(ctx, "performance unavailable", logger.String("user", user), logger.Error(err))
	}
	view := newDashboardView(user, sport, h.deps.Sports(), recs, perf, h.deps.DemoMode(), h.cfg.location)
	h.render(w, r, http.StatusOK, page(sport.Title()+" Betting Analysis", h.cfg.analyticsID, dashboard(view)))
}

// HandlePublicBoard renders the cached games of a sport without a session.
func (h *Handler) HandlePublicBoard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sport, recs, err := h.deps.SportBoard(ctx, r.PathValue("sport"))
	if err != nil {
		h.fail(w, r, "board", err)
		return
	}
	if len(recs) == 0 {
		h.noGames(w, r, sport)
		return
	}
	view := boardView{
		Sport:    sport,
		Sports:   h.deps.Sports(),
		Picks:    recs,
		Status:   h.status(ctx, sport),
		Location: h.cfg.location,
	}
	h.render(w, r, http.StatusOK, page(sport.Title()+" Odds Board", h.cfg.analyticsID, board(view)))
}

// HandleLogin renders the login form.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, page("Login", h.cfg.analyticsID, loginForm()))
}

// HandleRegister renders the registration form.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, page("Create Account", h.cfg.analyticsID, registerForm()))
}

func (h *Handler) noGames(w http.ResponseWriter, r *http.Request, sport odds.Sport) {
	view := noGamesView{Sport: sport, Status: h.status(r.Context(), sport)}
	h.render(w, r, http.StatusOK, page("No "+sport.Title()+" Games", h.cfg.analyticsID, noGames(view)))
}

// status returns the cache entry for sport, or a zero entry.
func (h *Handler) status(ctx context.Context, sport odds.Sport) repository.SportStatus {
	all, err := h.deps.CacheStatus(ctx)
	if err != nil {
		h.cfg.logger.Warn(ctx, "cache status unavailable", logger.Error(err))
		return repository.SportStatus{Sport: sport, Source: repository.SourceNone}
	}
	for _, st := range all {
		if st.Sport == sport {
			return st
		}
	}
	return repository.SportStatus{Sport: sport, Source: repository.SourceNone}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	templ.Handler(c, templ.WithStatus(status)).ServeHTTP(w, r)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, pageName string, err error) {
	status := http.StatusInternalServerError
	msg := "Something went wrong. Please try again shortly."
	switch {
	case errors.Is(err, odds.ErrUnknownSport):
		status = http.StatusNotFound
		msg = "We don't cover that sport yet."
	default:
		h.cfg.logger.Error(r.Context(), "page render failed",
			logger.String("page", pageName), logger.Error(err))
	}
	h.render(w, r, status, page("BetEdge AI", h.cfg.analyticsID, errorPage(msg)))
}
