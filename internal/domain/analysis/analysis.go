// Package analysis turns bookmaker prices into a confidence-scored view of a game.
package analysis

import (
	"math"

	"github.com/okian/betedge/internal/domain/odds"
)

const (
	baseConfidence    = 50.0
	maxOddsConfidence = 85.0
	confidenceSlope   = 70.0
	modelWeight       = 0.6
	oddsWeight        = 0.4

	totalBand           = 0.05
	totalConfidence     = 65.0
	totalPassConfidence = 45.0
)

// Side of a head-to-head market.
type Side string

const (
	Home Side = "home"
	Away Side = "away"
)

// Level buckets a confidence score.
type Level string

const (
	Elite Level = "ELITE"
	High  Level = "HIGH"
	Good  Level = "GOOD"
	Fair  Level = "FAIR"
	Avoid Level = "AVOID"
)

// LevelFor maps a confidence score to its level.
func LevelFor(confidence float64) Level {
	switch {
	case confidence >= 80:
		return Elite
	case confidence >= 70:
		return High
	case confidence >= 60:
		return Good
	case confidence >= 50:
		return Fair
	default:
		return Avoid
	}
}

// Total pick values.
const (
	PickOver  = "over"
	PickUnder = "under"
	PickPass  = "pass"
)

// TotalPrediction compares the posted total against the league average.
type TotalPrediction struct {
	Line          float64 `json:"line"`
	LeagueAverage float64 `json:"league_average"`
	Pick          string  `json:"pick"`
	Confidence    float64 `json:"confidence"`
}

// Leg is one side of an arbitrage.
type Leg struct {
	Side       Side    `json:"side"`
	Team       string  `json:"team"`
	Book       string  `json:"book"`
	Price      float64 `json:"price"`
	StakeShare float64 `json:"stake_share"`
}

// Arbitrage describes a guaranteed-profit split across books.
type Arbitrage struct {
	Implied      float64 `json:"implied"`
	ProfitMargin float64 `json:"profit_margin"`
	Legs         []Leg   `json:"legs"`
}

// Analysis is the outcome of analysing one game.
type Analysis struct {
	HasOdds         bool             `json:"has_odds"`
	AvgHomePrice    float64          `json:"avg_home_price"`
	AvgAwayPrice    float64          `json:"avg_away_price"`
	HomeProbability float64          `json:"home_probability"`
	AwayProbability float64          `json:"away_probability"`
	Favorite        Side             `json:"favorite"`
	FavoriteTeam    string           `json:"favorite_team"`
	OddsConfidence  float64          `json:"odds_confidence"`
	ModelUsed       bool             `json:"model_used"`
	ModelConfidence float64          `json:"model_confidence,omitempty"`
	Confidence      float64          `json:"confidence"`
	Level           Level            `json:"level"`
	Edge            float64          `json:"edge"`
	Spread          *float64         `json:"spread,omitempty"`
	Total           *TotalPrediction `json:"total,omitempty"`
	Arbitrage       *Arbitrage       `json:"arbitrage,omitempty"`
}

// Analyze scores a game from its bookmaker prices. A nil predictor means odds only.
func Analyze(game odds.Game, sport odds.Sport, predictor Predictor) Analysis {
	a := Analysis{
		Confidence: baseConfidence,
		Level:      Fair,
		Total:      analyzeTotal(game, sport),
		Arbitrage:  findArbitrage(game),
	}

	homePrices, awayPrices := h2hPrices(game)
	if len(homePrices) == 0 && len(awayPrices) == 0 {
		return a
	}
	a.HasOdds = true

	a.AvgHomePrice = round(mean(homePrices), 3)
	a.AvgAwayPrice = round(mean(awayPrices), 3)
	pHome, pAway := 0.5, 0.5
	if a.AvgHomePrice > 0 {
		pHome = odds.ImpliedProbability(a.AvgHomePrice)
	}
	if a.AvgAwayPrice > 0 {
		pAway = odds.ImpliedProbability(a.AvgAwayPrice)
	}
	a.HomeProbability = round(pHome, 4)
	a.AwayProbability = round(pAway, 4)

	pFav := pAway
	a.Favorite = Away
	if pHome > pAway {
		pFav = pHome
		a.Favorite = Home
	}
	a.OddsConfidence = math.Min(maxOddsConfidence, baseConfidence+(pFav-0.5)*confidenceSlope)
	a.Confidence = a.OddsConfidence

	if predictor != nil {
		if p, ok := predictor.Predict(game, sport); ok {
			a.ModelUsed = true
			a.ModelConfidence = p.Confidence
			a.Confidence = modelWeight*p.Confidence + oddsWeight*a.OddsConfidence
			a.Favorite = p.Winner
		}
	}

	a.OddsConfidence = round(a.OddsConfidence, 1)
	a.Confidence = round(a.Confidence, 1)
	a.Level = LevelFor(a.Confidence)
	a.Edge = round(math.Abs(pHome-pAway)*100, 1)
	a.FavoriteTeam = game.AwayTeam
	if a.Favorite == Home {
		a.FavoriteTeam = game.HomeTeam
	}

	if _, m, ok := game.FirstMarket(odds.MarketSpreads); ok {
		if o, found := m.Outcome(game.HomeTeam); found && o.Point != nil {
			a.Spread = odds.Pt(*o.Point)
		}
	}
	return a
}

// h2hPrices collects each book's home and away prices, skipping missing ones.
func h2hPrices(game odds.Game) (home, away []float64) {
	for _, b := range game.Bookmakers {
		m, ok := b.Market(odds.MarketH2H)
		if !ok {
			continue
		}
		if o, found := m.Outcome(game.HomeTeam); found && o.Price > 0 {
			home = append(home, o.Price)
		}
		if o, found := m.Outcome(game.AwayTeam); found && o.Price > 0 {
			away = append(away, o.Price)
		}
	}
	return home, away
}

func analyzeTotal(game odds.Game, sport odds.Sport) *TotalPrediction {
	_, m, ok := game.FirstMarket(odds.MarketTotals)
	if !ok || len(m.Outcomes) == 0 || m.Outcomes[0].Point == nil {
		return nil
	}
	line := *m.Outcomes[0].Point
	avg := sport.LeagueAverageTotal()
	if line <= 0 || avg <= 0 {
		return nil
	}

	t := &TotalPrediction{Line: line, LeagueAverage: avg, Pick: PickPass, Confidence: totalPassConfidence}
	switch {
	case line > avg*(1+totalBand):
		t.Pick, t.Confidence = PickUnder, totalConfidence
	case line < avg*(1-totalBand):
		t.Pick, t.Confidence = PickOver, totalConfidence
	}
	return t
}

func findArbitrage(game odds.Game) *Arbitrage {
	var (
		books             int
		bestHome, bestAwy Leg
	)
	for _, b := range game.Bookmakers {
		m, ok := b.Market(odds.MarketH2H)
		if !ok {
			continue
		}
		books++
		if o, found := m.Outcome(game.HomeTeam); found && o.Price > bestHome.Price {
			bestHome = Leg{Side: Home, Team: game.HomeTeam, Book: b.Title, Price: o.Price}
		}
		if o, found := m.Outcome(game.AwayTeam); found && o.Price > bestAwy.Price {
			bestAwy = Leg{Side: Away, Team: game.AwayTeam, Book: b.Title, Price: o.Price}
		}
	}
	if books < 2 || bestHome.Price <= 1 || bestAwy.Price <= 1 {
		return nil
	}

	implied := 1/bestHome.Price + 1/bestAwy.Price
	if implied >= 1 {
		return nil
	}
	bestHome.StakeShare = round((1/bestHome.Price)/implied, 4)
	bestAwy.StakeShare = round((1/bestAwy.Price)/implied, 4)
	return &Arbitrage{
		Implied:      round(implied, 4),
		ProfitMargin: round((1-implied)*100, 2),
		Legs:         []Leg{bestHome, bestAwy},
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
