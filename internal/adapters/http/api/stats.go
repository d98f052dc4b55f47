package api

import (
	"context"
	"net/http"
)

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// SignupCounter reports the waitlist size.
type SignupCounter interface {
	SignupCount(ctx context.Context) (int, error)
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	statsProvider StatsProvider
	signups       SignupCounter
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider, signups SignupCounter) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider, signups: signups}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.statsProvider.GetStats())
}

type signupStatsResponse struct {
	TotalSignups int `json:"total_signups"`
}

// HandleSignupStats handles GET /api/stats.
func (h *StatsHandler) HandleSignupStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.signup_stats"
	n, err := h.signups.SignupCount(r.Context())
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, signupStatsResponse{TotalSignups: n})
}
