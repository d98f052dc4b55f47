package web

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/okian/betedge/internal/domain/analysis"
	"github.com/okian/betedge/internal/domain/ledger"
	"github.com/okian/betedge/internal/domain/odds"
	"github.com/okian/betedge/internal/domain/picks"
	. "github.com/smartystreets/goconvey/convey"
)

type failingWriter struct{ n int }

func (f *failingWriter) Write(p []byte) (int, error) {
	f.n++
	return 0, errors.New("closed")
}

func TestFormatting(t *testing.T) {
	Convey("Given the formatting helpers", t, func() {
		So(formatPrice(2.5), ShouldEqual, "2.50 (+150)")
		So(formatPrice(1.5), ShouldEqual, "1.50 (-200)")
		So(formatPrice(1), ShouldEqual, "N/A")
		So(formatEV(-0.052), ShouldEqual, "-5.2%")
		So(starRating(7), ShouldEqual, "★★★★★")
		So(starRating(0), ShouldEqual, "☆☆☆☆☆")
		So(barWidth(130), ShouldEqual, "100%")
		So(barWidth(math.NaN()), ShouldEqual, "0%")
		So(levelColor(analysis.Good), ShouldEqual, "#FFC107")
		So(levelColor("UNKNOWN"), ShouldEqual, "#9E9E9E")
	})
}

func TestComponents(t *testing.T) {
	Convey("Given the page components", t, func() {
		ctx := context.Background()

		Convey("Text is escaped and markup is not", func() {
			var buf bytes.Buffer
			So(errorPage(`"Tom & Jerry" <3`).Render(ctx, &buf), ShouldBeNil)
			So(buf.String(), ShouldContainSubstring, "<p>&#34;Tom &amp; Jerry&#34; &lt;3</p>")
		})

		Convey("A failing writer surfaces its error", func() {
			fw := &failingWriter{}
			So(loginForm().Render(ctx, fw), ShouldNotBeNil)
			So(fw.n, ShouldBeGreaterThan, 0)
		})

		Convey("A cancelled context renders nothing", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			var buf bytes.Buffer
			So(errors.Is(registerForm().Render(cctx, &buf), context.Canceled), ShouldBeTrue)
			So(buf.Len(), ShouldEqual, 0)
		})

		Convey("Strong bets and expected value carry their classes", func() {
			var buf bytes.Buffer
			So(betRow(picks.Bet{Type: picks.Spread, Pick: "Chiefs -3.5", Price: 1.91, Confidence: 72}).Render(ctx, &buf), ShouldBeNil)
			So(buf.String(), ShouldContainSubstring, `<div class="bet-recommendation strong">`)
			So(buf.String(), ShouldContainSubstring, "SPREAD: Chiefs -3.5")

			buf.Reset()
			rec := picks.Recommendation{
				HomeTeam: "Chiefs", AwayTeam: "Bills",
				Bets: []picks.Bet{{Type: picks.Moneyline, Pick: "Bills ML", Price: 2.5, ExpectedValue: -0.05}},
			}
			So(pickCard(rec, time.UTC).Render(ctx, &buf), ShouldBeNil)
			So(buf.String(), ShouldContainSubstring, `<span class="detail-value ev-negative">-5.0%</span>`)
		})

		Convey("Sport tabs mark the active sport", func() {
			var buf bytes.Buffer
			So(sportTabs([]odds.Sport{odds.NFL, odds.NBA}, odds.NBA, publicBoardHref).Render(ctx, &buf), ShouldBeNil)
			So(buf.String(), ShouldContainSubstring, `<a class="nav-tab" href="/dashboard/nfl">`)
			So(buf.String(), ShouldContainSubstring, `<a class="nav-tab active" href="/dashboard/nba">`)
		})
	})
}

func TestDashboardView(t *testing.T) {
	Convey("Given recommendations for a sport", t, func() {
		recs := []picks.Recommendation{
			{GameID: "quiet", HomeTeam: "A", AwayTeam: "B"},
			{GameID: "arb", HomeTeam: "C", AwayTeam: "D", Bets: []picks.Bet{{Type: picks.Arbitrage, Confidence: 100}}},
			{GameID: "mixed", HomeTeam: "E", AwayTeam: "F", Bets: []picks.Bet{
				{Type: picks.Spread, Confidence: 76},
				{Type: picks.Total, Confidence: 65},
			}},
		}

		Convey("Games without bets are dropped and alerts are split", func() {
			v := newDashboardView("sharp", "nfl", nil, recs, ledger.Performance{}, false, nil)
			So(len(v.Games), ShouldEqual, 2)
			So(len(v.Arbitrage), ShouldEqual, 1)
			So(v.Arbitrage[0].Game, ShouldEqual, "C vs D")
			So(len(v.Elite), ShouldEqual, 1)
			So(v.Elite[0].Game, ShouldEqual, "E vs F")
		})
	})
}
