// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/okian/betedge/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Each handler depends only on the
// slice of it that it uses.
type Dependencies interface {
	PicksDependencies
	StatusDependencies
	SignupDependencies
	AccountDependencies
	BetDependencies
	StatsProvider
}

// Server wires HTTP routes for the JSON API and the form endpoints.
type Server struct {
	cfg serverConfig

	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	statusHandler *StatusHandler
	picksHandler  *PicksHandler
	signupHandler *SignupHandler
	authHandler   *AuthHandler
	betsHandler   *BetsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	cfg := defaultServerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.Get().Named("api")
	}

	return &Server{
		cfg:           cfg,
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(deps, deps),
		statusHandler: NewStatusHandler(deps, cfg.version, cfg.adminToken, cfg.logger),
		picksHandler:  NewPicksHandler(deps, cfg.maxPicks),
		signupHandler: NewSignupHandler(deps),
		authHandler:   NewAuthHandler(deps, cfg.secureCookies),
		betsHandler:   NewBetsHandler(deps, cfg.adminToken),
	}
}

// Register attaches all API routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	// Scrape endpoints stay outside the metrics middleware.
	mux.Handle("GET /healthz", s.healthHandler.Metrics())
	mux.Handle("GET /metrics", s.healthHandler.Metrics())

	mux.HandleFunc("GET /health", MetricsMiddleware(s.healthHandler.HandleHealth, "health"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /signup", MetricsMiddleware(s.signupHandler.HandleSignup, "signup"))
	mux.HandleFunc("POST /register", MetricsMiddleware(s.authHandler.HandleRegister, "register"))
	mux.HandleFunc("POST /login", MetricsMiddleware(s.authHandler.HandleLogin, "login"))
	mux.HandleFunc("POST /logout", MetricsMiddleware(s.authHandler.HandleLogout, "logout"))

	s.api(mux, "GET /api/status", "api_status", s.statusHandler.HandleStatus)
	s.api(mux, "GET /api/cache-status", "api_cache_status", s.statusHandler.HandleCacheStatus)
	s.api(mux, "POST /api/refresh", "api_refresh", s.statusHandler.HandleRefresh)
	s.api(mux, "GET /api/picks", "api_picks", s.picksHandler.HandleTopPicks)
	s.api(mux, "GET /api/games/{sport}", "api_games", s.picksHandler.HandleSportGames)
	s.api(mux, "GET /api/analysis/{game_id}", "api_analysis", s.picksHandler.HandleGameAnalysis)
	s.api(mux, "POST /api/subscribe", "api_subscribe", s.signupHandler.HandleSignup)
	s.api(mux, "GET /api/stats", "api_stats", s.statsHandler.HandleSignupStats)
	s.api(mux, "POST /api/place-bet", "api_place_bet", s.betsHandler.HandlePlaceBet)
	s.api(mux, "GET /api/bets", "api_bets", s.betsHandler.HandleListBets)
	s.api(mux, "GET /api/performance", "api_performance", s.betsHandler.HandlePerformance)
	s.api(mux, "POST /api/bets/{id}/settle", "api_settle", s.betsHandler.HandleSettle)
	mux.HandleFunc("OPTIONS /api/", CORSMiddleware(s.cfg.corsOrigin, handlePreflight))
}

func (s *Server) api(mux *http.ServeMux, pattern, endpoint string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, CORSMiddleware(s.cfg.corsOrigin, MetricsMiddleware(h, endpoint)))
}

func handlePreflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeErr picks the status and code from err.
func writeErr(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		// Keep internals out of the response body.
		writeError(w, status, code, nil)
		return
	}
	writeError(w, status, code, err)
}

// decodeBody reads a JSON object, or a form post as a flat map of strings.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if !isForm(r) {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			return fmt.Errorf("decode json: %w", err)
		}
		return nil
	}

	if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return fmt.Errorf("parse form: %w", err)
	}
	flat := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		flat[k] = r.PostForm.Get(k)
	}
	buf, err := json.Marshal(flat)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(buf, dst); err != nil {
		return fmt.Errorf("decode form: %w", err)
	}
	return nil
}

func isForm(r *http.Request) bool {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return ct == "application/x-www-form-urlencoded" || strings.HasPrefix(ct, "multipart/form-data")
}
