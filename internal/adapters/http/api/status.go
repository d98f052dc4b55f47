package api

import (
	"context"
	"net/http"

	"github.com/okian/betedge/internal/adapters/repository"
	"github.com/okian/betedge/internal/domain/odds"
	"github.com/okian/betedge/pkg/logger"
)

var features = []string{"top_picks", "analysis", "arbitrage", "line_shopping", "bet_tracking", "performance"}

// StatusDependencies exposes service state and the refresh trigger.
type StatusDependencies interface {
	Sports() []odds.Sport
	DemoMode() bool
	CacheStatus(ctx context.Context) ([]repository.SportStatus, error)
	Refresh(ctx context.Context, sport string) error
}

// StatusHandler handles status and cache requests.
type StatusHandler struct {
	deps       StatusDependencies
	version    string
	adminToken string
	logger     logger.Logger
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(deps StatusDependencies, version, adminToken string, l logger.Logger) *StatusHandler {
	return &StatusHandler{deps: deps, version: version, adminToken: adminToken, logger: l}
}

type statusResponse struct {
	Status   string       `json:"status"`
	Version  string       `json:"version"`
	Sports   []odds.Sport `json:"sports"`
	Features []string     `json:"features"`
	DemoMode bool         `json:"demo_mode"`
}

// HandleStatus handles GET /api/status.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Status:   "online",
		Version:  h.version,
		Sports:   h.deps.Sports(),
		Features: features,
		DemoMode: h.deps.DemoMode(),
	})
}

// HandleCacheStatus handles GET /api/cache-status. The body is an object
// keyed by sport.
func (h *StatusHandler) HandleCacheStatus(w http.ResponseWriter, r *http.Request) {
	const op = "api.cache_status"
	status, err := h.deps.CacheStatus(r.Context())
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	bySport := make(map[odds.Sport]repository.SportStatus, len(status))
	for _, s := range status {
		bySport[s.Sport] = s
	}
	writeJSON(w, http.StatusOK, bySport)
}

type refreshResponse struct {
	Status string `json:"status"`
	Sport  string `json:"sport,omitempty"`
}

// HandleRefresh handles POST /api/refresh?sport=. The refresh runs in the
// background.
func (h *StatusHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	const op = "api.refresh"
	if !adminAllowed(r, h.adminToken) {
		writeErr(w, NewKind(op, ErrForbidden))
		return
	}
	sport := r.URL.Query().Get("sport")
	if err := h.deps.Refresh(r.Context(), sport); err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	h.logger.Info(r.Context(), "manual refresh accepted", logger.String("sport", sport))
	writeJSON(w, http.StatusAccepted, refreshResponse{Status: "refreshing", Sport: sport})
}
