// Package picks turns an analysed game into concrete bet recommendations
// and ranks them for the public board.
package picks

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/okian/betedge/internal/domain/analysis"
	"github.com/okian/betedge/internal/domain/odds"
)

// BetType names the kind of wager.
type BetType string

const (
	Spread    BetType = "SPREAD"
	Moneyline BetType = "MONEYLINE"
	Total     BetType = "TOTAL"
	Arbitrage BetType = "ARBITRAGE"
)

const (
	spreadThreshold    = 75.0
	moneylineThreshold = 65.0
	totalConfidence    = 65.0
	arbConfidence      = 100.0

	spreadUnits    = 2.0
	moneylineUnits = 1.0
	totalUnits     = 1.0
	arbUnits       = 5.0
)

// Bet is one recommended wager.
type Bet struct {
	Type          BetType        `json:"type"`
	Pick          string         `json:"pick"`
	Price         float64        `json:"odds"`
	Book          string         `json:"book,omitempty"`
	Confidence    float64        `json:"confidence"`
	Units         float64        `json:"suggested_unit"`
	Priority      int            `json:"priority"`
	Reason        string         `json:"reason"`
	ExpectedValue float64        `json:"expected_value"`
	ProfitMargin  float64        `json:"profit_margin,omitempty"`
	Legs          []analysis.Leg `json:"legs,omitempty"`
}

// Recommendation is the full set of bets for one game.
type Recommendation struct {
	GameID       string            `json:"game_id"`
	Sport        odds.Sport        `json:"sport"`
	HomeTeam     string            `json:"home_team"`
	AwayTeam     string            `json:"away_team"`
	CommenceTime time.Time         `json:"commence_time"`
	Analysis     analysis.Analysis `json:"analysis"`
	Bets         []Bet             `json:"bets"`
	// Score ranks recommendations; -Inf when there is nothing to bet.
	Score float64 `json:"-"`
}

// Matchup renders "Home vs Away".
func (r Recommendation) Matchup() string {
	return r.HomeTeam + " vs " + r.AwayTeam
}

// Primary returns the highest-priority bet.
func (r Recommendation) Primary() (Bet, bool) {
	if len(r.Bets) == 0 {
		return Bet{}, false
	}
	return r.Bets[0], true
}

// HasArbitrage reports whether an arbitrage bet was generated.
func (r Recommendation) HasArbitrage() bool {
	for _, b := range r.Bets {
		if b.Type == Arbitrage {
			return true
		}
	}
	return false
}

// Eligible reports whether the recommendation belongs on the public board:
// it has a positive-EV bet or an arbitrage.
func (r Recommendation) Eligible() bool {
	return r.HasArbitrage() || r.hasPositiveEV()
}

func (r Recommendation) hasPositiveEV() bool {
	for _, b := range r.Bets {
		if b.Type != Arbitrage && b.ExpectedValue > 0 {
			return true
		}
	}
	return false
}

// ExpectedValue is p(d-1) - (1-p) per unit staked at decimal price d.
func ExpectedValue(p, decimal float64) float64 {
	return p*(decimal-1) - (1 - p)
}

// Stars rates a confidence from one to five.
func Stars(confidence float64) int {
	s := int(confidence / 20)
	if s < 1 {
		return 1
	}
	if s > 5 {
		return 5
	}
	return s
}

// Generate builds the recommendation for a game from its analysis and the
// best available lines.
func Generate(game odds.Game, sport odds.Sport, a analysis.Analysis, lines analysis.Lines) Recommendation {
	rec := Recommendation{
		GameID:       game.ID,
		Sport:        sport,
		HomeTeam:     game.HomeTeam,
		AwayTeam:     game.AwayTeam,
		CommenceTime: game.CommenceTime,
		Analysis:     a,
		Bets:         []Bet{},
	}

	if a.HasOdds {
		fav := a.FavoriteTeam
		switch {
		case a.Confidence >= spreadThreshold:
			if l, ok := lines.Get(odds.MarketSpreads, fav); ok && l.Point != nil {
				rec.Bets = append(rec.Bets, Bet{
					Type:       Spread,
					Pick:       fmt.Sprintf("%s %+.1f", fav, *l.Point),
					Price:      l.Price,
					Book:       l.BookTitle,
					Confidence: a.Confidence,
					Units:      spreadUnits,
					Priority:   1,
					Reason:     fmt.Sprintf("Strong edge on %s favorite", a.Favorite),
				})
			}
		case a.Confidence >= moneylineThreshold:
			if l, ok := lines.Get(odds.MarketH2H, fav); ok {
				rec.Bets = append(rec.Bets, Bet{
					Type:       Moneyline,
					Pick:       fav + " ML",
					Price:      l.Price,
					Book:       l.BookTitle,
					Confidence: a.Confidence,
					Units:      moneylineUnits,
					Priority:   2,
					Reason:     fmt.Sprintf("Value on %s moneyline", fav),
				})
			}
		}
	}

	if t := a.Total; t != nil && t.Pick != analysis.PickPass {
		outcome := odds.Over
		if t.Pick == analysis.PickUnder {
			outcome = odds.Under
		}
		if l, ok := lines.Get(odds.MarketTotals, outcome); ok {
			rec.Bets = append(rec.Bets, Bet{
				Type:       Total,
				Pick:       fmt.Sprintf("%s %.1f", strings.ToUpper(outcome), t.Line),
				Price:      l.Price,
				Book:       l.BookTitle,
				Confidence: totalConfidence,
				Units:      totalUnits,
				Priority:   3,
				Reason:     fmt.Sprintf("Line %.1f vs league average %.1f", t.Line, t.LeagueAverage),
			})
		}
	}

	if arb := a.Arbitrage; arb != nil {
		rec.Bets = append(rec.Bets, Bet{
			Type:         Arbitrage,
			Pick:         "Bet both sides across books",
			Confidence:   arbConfidence,
			Units:        arbUnits,
			Priority:     0,
			Reason:       fmt.Sprintf("Guaranteed %.2f%% margin", arb.ProfitMargin),
			ProfitMargin: arb.ProfitMargin,
			Legs:         arb.Legs,
		})
	}

	for i := range rec.Bets {
		b := &rec.Bets[i]
		if b.Type == Arbitrage {
			continue
		}
		b.ExpectedValue = math.Round(ExpectedValue(b.Confidence/100, b.Price)*10000) / 10000
	}
	sort.SliceStable(rec.Bets, func(i, j int) bool {
		return rec.Bets[i].Priority < rec.Bets[j].Priority
	})
	rec.Score = Score(rec)
	return rec
}

// Score ranks a recommendation: the arbitrage margin when present, otherwise
// the best expected value in percent, otherwise -Inf.
func Score(rec Recommendation) float64 {
	best := math.Inf(-1)
	for _, b := range rec.Bets {
		if b.Type == Arbitrage {
			return b.ProfitMargin
		}
		if ev := b.ExpectedValue * 100; ev > best {
			best = ev
		}
	}
	return best
}

// SelectTop returns at most n recommendations with a positive-EV bet or an
// arbitrage, ordered by score then game id, one per game.
func SelectTop(recs []Recommendation, n int) []Recommendation {
	if n <= 0 {
		return nil
	}
	candidates := make([]Recommendation, 0, len(recs))
	for _, r := range recs {
		if r.Eligible() {
			candidates = append(candidates, r)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return Less(candidates[i], candidates[j])
	})

	out := make([]Recommendation, 0, n)
	seen := make(map[string]struct{}, n)
	for _, r := range candidates {
		if _, dup := seen[r.GameID]; dup {
			continue
		}
		seen[r.GameID] = struct{}{}
		out = append(out, r)
		if len(out) == n {
			break
		}
	}
	return out
}

// Less orders recommendations by score descending, then game id ascending.
func Less(a, b Recommendation) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.GameID < b.GameID
}
