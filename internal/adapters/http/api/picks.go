package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/betedge/internal/domain/analysis"
	"github.com/okian/betedge/internal/domain/odds"
	"github.com/okian/betedge/internal/domain/picks"
)

// PicksDependencies reads the pick board.
type PicksDependencies interface {
	TopPicks(ctx context.Context, sport string, n int) ([]picks.Recommendation, error)
	SportBoard(ctx context.Context, sport string) (odds.Sport, []picks.Recommendation, error)
	GameAnalysis(ctx context.Context, gameID string) (picks.Recommendation, error)
}

// PicksHandler handles pick and analysis requests.
type PicksHandler struct {
	deps     PicksDependencies
	maxPicks int
}

// NewPicksHandler creates a handler whose default limit is maxPicks.
func NewPicksHandler(deps PicksDependencies, maxPicks int) *PicksHandler {
	return &PicksHandler{deps: deps, maxPicks: maxPicks}
}

// pickView is the public shape of one recommendation.
type pickView struct {
	GameID       string             `json:"game_id"`
	Sport        odds.Sport         `json:"sport"`
	Game         string             `json:"game"`
	HomeTeam     string             `json:"home_team"`
	AwayTeam     string             `json:"away_team"`
	CommenceTime string             `json:"commence_time"`
	Confidence   float64            `json:"confidence"`
	Level        analysis.Level     `json:"level"`
	Stars        int                `json:"stars"`
	Bets         []picks.Bet        `json:"bets"`
	Analysis     *analysis.Analysis `json:"analysis,omitempty"`
}

func toView(rec picks.Recommendation, withAnalysis bool) pickView { //nolint:gocritic // read-only copy
	v := pickView{
		GameID:     rec.GameID,
		Sport:      rec.Sport,
		Game:       rec.Matchup(),
		HomeTeam:   rec.HomeTeam,
		AwayTeam:   rec.AwayTeam,
		Confidence: rec.Analysis.Confidence,
		Level:      rec.Analysis.Level,
		Stars:      picks.Stars(rec.Analysis.Confidence),
		Bets:       rec.Bets,
	}
	if !rec.CommenceTime.IsZero() {
		v.CommenceTime = rec.CommenceTime.UTC().Format(time.RFC3339)
	}
	if v.Bets == nil {
		v.Bets = []picks.Bet{}
	}
	if withAnalysis {
		a := rec.Analysis
		v.Analysis = &a
	}
	return v
}

func toViews(recs []picks.Recommendation, withAnalysis bool) []pickView {
	out := make([]pickView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toView(rec, withAnalysis))
	}
	return out
}

type picksResponse struct {
	Picks     []pickView `json:"picks"`
	Generated string     `json:"generated"`
}

// HandleTopPicks handles GET /api/picks?sport=&limit=.
func (h *PicksHandler) HandleTopPicks(w http.ResponseWriter, r *http.Request) {
	const op = "api.top_picks"
	n := h.maxPicks
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 || v > maxPicksLimit {
			writeError(w, http.StatusBadRequest, "bad_request",
				WrapKind(op, ErrBadRequest, errLimit))
			return
		}
		n = v
	}

	recs, err := h.deps.TopPicks(r.Context(), r.URL.Query().Get("sport"), n)
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, picksResponse{
		Picks:     toViews(recs, false),
		Generated: time.Now().UTC().Format(time.RFC3339),
	})
}

type sportGamesResponse struct {
	Sport odds.Sport `json:"sport"`
	Games []pickView `json:"games"`
}

// HandleSportGames handles GET /api/games/{sport}.
func (h *PicksHandler) HandleSportGames(w http.ResponseWriter, r *http.Request) {
	const op = "api.sport_games"
	sport, recs, err := h.deps.SportBoard(r.Context(), r.PathValue("sport"))
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sportGamesResponse{Sport: sport, Games: toViews(recs, true)})
}

// HandleGameAnalysis handles GET /api/analysis/{game_id}.
func (h *PicksHandler) HandleGameAnalysis(w http.ResponseWriter, r *http.Request) {
	const op = "api.game_analysis"
	rec, err := h.deps.GameAnalysis(r.Context(), r.PathValue("game_id"))
	if err != nil {
		writeErr(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, toView(rec, true))
}

var errLimit = errors.New("limit must be between 1 and 20")
