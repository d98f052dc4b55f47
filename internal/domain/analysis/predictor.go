package analysis

import (
	"math"

	"github.com/okian/betedge/internal/domain/odds"
)

// Prediction is a model's view of who wins.
type Prediction struct {
	Winner     Side
	Confidence float64
}

// Predictor supplies an independent win prediction that is blended into the
// odds-derived confidence. ok is false when it has no opinion.
type Predictor interface {
	Predict(game odds.Game, sport odds.Sport) (p Prediction, ok bool)
}

// PredictorFunc adapts a function to Predictor.
type PredictorFunc func(game odds.Game, sport odds.Sport) (Prediction, bool)

// Predict calls f.
func (f PredictorFunc) Predict(game odds.Game, sport odds.Sport) (Prediction, bool) {
	return f(game, sport)
}

const (
	minConsensusBooks      = 2
	minConsensusConfidence = 50.0
	maxConsensusConfidence = 90.0
)

// ConsensusPredictor averages the vig-free win probabilities of every book
// quoting both sides of the moneyline.
type ConsensusPredictor struct{}

// Predict implements Predictor.
func (ConsensusPredictor) Predict(game odds.Game, _ odds.Sport) (Prediction, bool) {
	var (
		sum   float64
		books int
	)
	for _, b := range game.Bookmakers {
		m, ok := b.Market(odds.MarketH2H)
		if !ok {
			continue
		}
		h, hok := m.Outcome(game.HomeTeam)
		a, aok := m.Outcome(game.AwayTeam)
		if !hok || !aok || h.Price <= 1 || a.Price <= 1 {
			continue
		}
		ih, ia := 1/h.Price, 1/a.Price
		sum += ih / (ih + ia)
		books++
	}
	if books < minConsensusBooks {
		return Prediction{}, false
	}

	home := sum / float64(books)
	p := Prediction{Winner: Away, Confidence: (1 - home) * 100}
	if home > 0.5 {
		p = Prediction{Winner: Home, Confidence: home * 100}
	}
	p.Confidence = round(math.Max(minConsensusConfidence, math.Min(maxConsensusConfidence, p.Confidence)), 1)
	return p, true
}
