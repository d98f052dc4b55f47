package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/betedge/internal/domain/ledger"
)

// BetDependencies tracks user bets.
type BetDependencies interface {
	Authenticator
	PlaceBet(ctx context.Context, username string, b ledger.Bet) (ledger.Bet, bool, error)
	Bets(ctx context.Context, username string) ([]ledger.Bet, error)
	SettleBet(ctx context.Context, id, result string) (ledger.Bet, error)
	Performance(ctx context.Context, username string) (ledger.Performance, error)
}

// BetsHandler handles bet tracking requests.
type BetsHandler struct {
	deps       BetDependencies
	adminToken string
}

// NewBetsHandler creates a new bets handler. Settling needs adminToken.
func NewBetsHandler(deps BetDependencies, adminToken string) *BetsHandler {
	return &BetsHandler{deps: deps, adminToken: adminToken}
}

type placeBetRequest struct {
	GameID    string  `json:"gameId"`
	Pick      string  `json:"pick"`
	Type      string  `json:"type"`
	Odds      float64 `json:"odds"`
	Units     float64 `json:"units"`
	RequestID string  `json:"requestId"`
}

type placeBetResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	BetID     string `json:"bet_id"`
	Duplicate bool   `json:"duplicate"`
}

// HandlePlaceBet handles POST /api/place-bet.
func (h *BetsHandler) HandlePlaceBet(w http.ResponseWriter, r *http.Request) {
	const op = "api.place_bet"
	user, err := authenticate(r, h.deps)
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}

	var req placeBetRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.Units == 0 {
		req.Units = 1
	}

	bet, duplicate, err := h.deps.PlaceBet(r.Context(), user, ledger.Bet{
		RequestID: req.RequestID,
		GameID:    req.GameID,
		Pick:      req.Pick,
		Type:      req.Type,
		Price:     req.Odds,
		Units:     req.Units,
	})
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}

	msg := "Bet placed successfully"
	if duplicate {
		msg = "Bet already recorded"
	}
	writeJSON(w, http.StatusOK, placeBetResponse{Success: true, Message: msg, BetID: bet.ID, Duplicate: duplicate})
}

type betsResponse struct {
	Bets []ledger.Bet `json:"bets"`
}

// HandleListBets handles GET /api/bets.
func (h *BetsHandler) HandleListBets(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_bets"
	user, err := authenticate(r, h.deps)
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	bets, err := h.deps.Bets(r.Context(), user)
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, betsResponse{Bets: bets})
}

// HandlePerformance handles GET /api/performance.
func (h *BetsHandler) HandlePerformance(w http.ResponseWriter, r *http.Request) {
	const op = "api.performance"
	user, err := authenticate(r, h.deps)
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	perf, err := h.deps.Performance(r.Context(), user)
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, perf)
}

type settleRequest struct {
	Result string `json:"result"`
}

// HandleSettle handles POST /api/bets/{id}/settle.
func (h *BetsHandler) HandleSettle(w http.ResponseWriter, r *http.Request) {
	const op = "api.settle_bet"
	if !adminAllowed(r, h.adminToken) {
		writeErr(w, NewKind(op, ErrForbidden))
		return
	}
	var req settleRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	bet, err := h.deps.SettleBet(r.Context(), r.PathValue("id"), req.Result)
	if errors.Is(err, ledger.ErrAlreadySettled) {
		writeError(w, http.StatusConflict, "already_settled", Wrap(op, err))
		return
	}
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, bet)
}
