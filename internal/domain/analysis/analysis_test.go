package analysis_test

import (
	"testing"

	"github.com/okian/betedge/internal/domain/analysis"
	"github.com/okian/betedge/internal/domain/odds"
	. "github.com/smartystreets/goconvey/convey"
)

const (
	home = "Kansas City Chiefs"
	away = "Buffalo Bills"
)

func h2hBook(key string, homePrice, awayPrice float64) odds.Bookmaker {
	return odds.Bookmaker{
		Key:   key,
		Title: key,
		Markets: []odds.Market{{
			Key: odds.MarketH2H,
			Outcomes: []odds.Outcome{
				{Name: home, Price: homePrice},
				{Name: away, Price: awayPrice},
			},
		}},
	}
}

func totalsBook(key string, point, over, under float64) odds.Bookmaker {
	return odds.Bookmaker{
		Key:   key,
		Title: key,
		Markets: []odds.Market{{
			Key: odds.MarketTotals,
			Outcomes: []odds.Outcome{
				{Name: odds.Over, Price: over, Point: odds.Pt(point)},
				{Name: odds.Under, Price: under, Point: odds.Pt(point)},
			},
		}},
	}
}

func game(books ...odds.Bookmaker) odds.Game {
	return odds.Game{ID: "g1", HomeTeam: home, AwayTeam: away, Bookmakers: books}
}

type fixedPredictor struct {
	p  analysis.Prediction
	ok bool
}

func (f fixedPredictor) Predict(odds.Game, odds.Sport) (analysis.Prediction, bool) {
	return f.p, f.ok
}

func TestAnalyze(t *testing.T) {
	Convey("Given a game with one moneyline book", t, func() {
		g := game(h2hBook("draftkings", 1.5, 2.6))

		Convey("When analysing on odds alone", func() {
			a := analysis.Analyze(g, odds.NFL, nil)

			Convey("Then the home favourite gets an odds-derived confidence", func() {
				So(a.HasOdds, ShouldBeTrue)
				So(a.Favorite, ShouldEqual, analysis.Home)
				So(a.FavoriteTeam, ShouldEqual, home)
				So(a.Confidence, ShouldEqual, 61.7)
				So(a.OddsConfidence, ShouldEqual, 61.7)
				So(a.Level, ShouldEqual, analysis.Good)
				So(a.Edge, ShouldEqual, 28.2)
				So(a.ModelUsed, ShouldBeFalse)
				So(a.Arbitrage, ShouldBeNil)
				So(a.Total, ShouldBeNil)
			})
		})

		Convey("When a predictor agrees strongly", func() {
			a := analysis.Analyze(g, odds.NFL, fixedPredictor{
				p:  analysis.Prediction{Winner: analysis.Home, Confidence: 90},
				ok: true,
			})

			Convey("Then confidence blends 60/40 model and odds", func() {
				So(a.ModelUsed, ShouldBeTrue)
				So(a.Confidence, ShouldEqual, 78.7)
				So(a.Level, ShouldEqual, analysis.High)
			})
		})

		Convey("When a predictor picks the underdog", func() {
			a := analysis.Analyze(g, odds.NFL, fixedPredictor{
				p:  analysis.Prediction{Winner: analysis.Away, Confidence: 60},
				ok: true,
			})

			Convey("Then the favourite follows the model", func() {
				So(a.Favorite, ShouldEqual, analysis.Away)
				So(a.FavoriteTeam, ShouldEqual, away)
			})
		})

		Convey("When the predictor has no opinion", func() {
			a := analysis.Analyze(g, odds.NFL, fixedPredictor{})
			So(a.ModelUsed, ShouldBeFalse)
			So(a.Confidence, ShouldEqual, 61.7)
		})
	})

	Convey("Given a game without moneyline prices", t, func() {
		g := game(totalsBook("fanduel", 55, 1.9, 1.9))
		a := analysis.Analyze(g, odds.NFL, analysis.ConsensusPredictor{})

		Convey("Then it falls back to a neutral fair rating but still reads the total", func() {
			So(a.HasOdds, ShouldBeFalse)
			So(a.Confidence, ShouldEqual, 50)
			So(a.Level, ShouldEqual, analysis.Fair)
			So(a.Total, ShouldNotBeNil)
			So(a.Total.Pick, ShouldEqual, analysis.PickUnder)
		})
	})

	Convey("Given posted totals around the league average", t, func() {
		cases := []struct {
			point float64
			pick  string
			conf  float64
		}{
			{55, analysis.PickUnder, 65},
			{40, analysis.PickOver, 65},
			{47, analysis.PickPass, 45},
		}
		for _, c := range cases {
			a := analysis.Analyze(game(totalsBook("b", c.point, 1.9, 1.9)), odds.NFL, nil)
			So(a.Total.Pick, ShouldEqual, c.pick)
			So(a.Total.Confidence, ShouldEqual, c.conf)
			So(a.Total.LeagueAverage, ShouldEqual, 47)
		}

		Convey("Then a non-positive line yields no total prediction", func() {
			a := analysis.Analyze(game(totalsBook("b", 0, 1.9, 1.9)), odds.NFL, nil)
			So(a.Total, ShouldBeNil)
		})
	})

	Convey("Given two books whose best prices cross", t, func() {
		g := game(h2hBook("a", 2.2, 1.7), h2hBook("b", 1.8, 2.3))
		a := analysis.Analyze(g, odds.NBA, nil)

		Convey("Then an arbitrage is reported with both legs", func() {
			So(a.Arbitrage, ShouldNotBeNil)
			So(a.Arbitrage.ProfitMargin, ShouldEqual, 11.07)
			So(a.Arbitrage.Legs, ShouldHaveLength, 2)
			So(a.Arbitrage.Legs[0].Book, ShouldEqual, "a")
			So(a.Arbitrage.Legs[1].Book, ShouldEqual, "b")
			So(a.Arbitrage.Legs[0].StakeShare+a.Arbitrage.Legs[1].StakeShare, ShouldAlmostEqual, 1, 0.001)
		})
	})

	Convey("Given books without a crossing price", t, func() {
		g := game(h2hBook("a", 1.9, 1.9), h2hBook("b", 1.95, 1.87))
		So(analysis.Analyze(g, odds.NBA, nil).Arbitrage, ShouldBeNil)
	})

	Convey("Given a home spread", t, func() {
		g := game(odds.Bookmaker{Key: "dk", Markets: []odds.Market{{
			Key: odds.MarketSpreads,
			Outcomes: []odds.Outcome{
				{Name: home, Price: 1.91, Point: odds.Pt(-3.5)},
				{Name: away, Price: 1.91, Point: odds.Pt(3.5)},
			},
		}}}, h2hBook("fd", 1.6, 2.4))
		a := analysis.Analyze(g, odds.NFL, nil)
		So(*a.Spread, ShouldEqual, -3.5)
	})
}

func TestLevelFor(t *testing.T) {
	Convey("Given confidence thresholds", t, func() {
		So(analysis.LevelFor(80), ShouldEqual, analysis.Elite)
		So(analysis.LevelFor(79.9), ShouldEqual, analysis.High)
		So(analysis.LevelFor(60), ShouldEqual, analysis.Good)
		So(analysis.LevelFor(50), ShouldEqual, analysis.Fair)
		So(analysis.LevelFor(49.9), ShouldEqual, analysis.Avoid)
	})
}

func TestConsensusPredictor(t *testing.T) {
	Convey("Given the consensus predictor", t, func() {
		p := analysis.ConsensusPredictor{}

		Convey("When only one book quotes the moneyline", func() {
			_, ok := p.Predict(game(h2hBook("a", 1.5, 2.6)), odds.NFL)
			So(ok, ShouldBeFalse)
		})

		Convey("When books disagree narrowly", func() {
			pred, ok := p.Predict(game(h2hBook("a", 2.2, 1.7), h2hBook("b", 1.8, 2.3)), odds.NFL)
			So(ok, ShouldBeTrue)
			So(pred.Winner, ShouldEqual, analysis.Away)
			So(pred.Confidence, ShouldEqual, 50.2)
		})

		Convey("When books agree on a heavy favourite", func() {
			pred, ok := p.Predict(game(h2hBook("a", 1.05, 10), h2hBook("b", 1.05, 10)), odds.NFL)
			So(ok, ShouldBeTrue)
			So(pred.Winner, ShouldEqual, analysis.Home)
			So(pred.Confidence, ShouldEqual, 90)
		})
	})
}

func TestBestLines(t *testing.T) {
	Convey("Given several books quoting the same outcomes", t, func() {
		g := game(h2hBook("a", 1.9, 2.0), h2hBook("b", 2.05, 1.8), totalsBook("c", 48.5, 1.87, 1.95))
		lines := analysis.BestLines(g)

		Convey("Then each outcome keeps its highest price and book", func() {
			l, ok := lines.Get(odds.MarketH2H, home)
			So(ok, ShouldBeTrue)
			So(l.Price, ShouldEqual, 2.05)
			So(l.Book, ShouldEqual, "b")

			l, ok = lines.Get(odds.MarketH2H, away)
			So(ok, ShouldBeTrue)
			So(l.Book, ShouldEqual, "a")

			l, ok = lines.Get(odds.MarketTotals, odds.Under)
			So(ok, ShouldBeTrue)
			So(*l.Point, ShouldEqual, 48.5)

			_, ok = lines.Get(odds.MarketSpreads, home)
			So(ok, ShouldBeFalse)
		})
	})
}
