package web

//go:generate templ generate -f views.templ

import (
	"fmt"
	"net/url"
	"time"

	"github.com/a-h/templ"

	"github.com/okian/betedge/internal/adapters/repository"
	"github.com/okian/betedge/internal/domain/analysis"
	"github.com/okian/betedge/internal/domain/ledger"
	"github.com/okian/betedge/internal/domain/odds"
	"github.com/okian/betedge/internal/domain/picks"
)

const (
	maxBetsPerCard   = 4
	maxArbAlerts     = 3
	eliteConfidence  = 75.0
	strongConfidence = 70.0
)

var sportIcons = map[odds.Sport]string{
	odds.NFL:   "🏈",
	odds.NCAAF: "🎓",
	odds.NBA:   "🏀",
	odds.MLB:   "⚾",
}

type landingView struct {
	Picks    []picks.Recommendation
	Sports   []odds.Sport
	DemoMode bool
	Location *time.Location
}

type alert struct {
	Game string
	Bet  picks.Bet
}

type dashboardView struct {
	User        string
	Sport       odds.Sport
	Sports      []odds.Sport
	Games       []picks.Recommendation
	Arbitrage   []alert
	Elite       []alert
	Performance ledger.Performance
	DemoMode    bool
	Location    *time.Location
}

func newDashboardView(user string, sport odds.Sport, sports []odds.Sport, recs []picks.Recommendation,
	perf ledger.Performance, demo bool, loc *time.Location,
) dashboardView {
	v := dashboardView{
		User:        user,
		Sport:       sport,
		Sports:      sports,
		Performance: perf,
		DemoMode:    demo,
		Location:    loc,
	}
	for _, rec := range recs {
		if len(rec.Bets) == 0 {
			continue
		}
		v.Games = append(v.Games, rec)
		for _, b := range rec.Bets {
			switch {
			case b.Type == picks.Arbitrage:
				v.Arbitrage = append(v.Arbitrage, alert{Game: rec.Matchup(), Bet: b})
			case b.Confidence >= eliteConfidence:
				v.Elite = append(v.Elite, alert{Game: rec.Matchup(), Bet: b})
			}
		}
	}
	return v
}

type boardView struct {
	Sport    odds.Sport
	Sports   []odds.Sport
	Picks    []picks.Recommendation
	Status   repository.SportStatus
	Location *time.Location
}

type noGamesView struct {
	Sport  odds.Sport
	Status repository.SportStatus
}

func tabLabel(s odds.Sport) string { return sportIcons[s] + " " + s.Title() }

func publicBoardHref(s odds.Sport) string { return "/dashboard/" + url.PathEscape(string(s)) }
func dashboardHref(s odds.Sport) string   { return "/dashboard?sport=" + url.QueryEscape(string(s)) }
func analysisHref(gameID string) string   { return "/api/analysis/" + url.PathEscape(gameID) }

func gtagSrc(id string) string {
	return "https://www.googletagmanager.com/gtag/js?id=" + url.QueryEscape(id)
}

// gtagInit returns the inline tag setup. WithAnalyticsID only admits ids in
// [A-Za-z0-9-], so the id is safe inside the script.
func gtagInit(id string) string {
	return `<script>window.dataLayer=window.dataLayer||[];function gtag(){dataLayer.push(arguments);}` +
		`gtag('js',new Date());gtag('config','` + templ.EscapeString(id) + `');</script>`
}

const gtagNoop = `<script>function gtag(){}</script>`

func bestOdds(b picks.Bet) string {
	s := formatPrice(b.Price)
	if b.Book != "" {
		s += " @ " + b.Book
	}
	return s
}

func betOdds(b picks.Bet) string {
	s := fmt.Sprintf("Odds: %s | Units: %g", formatPrice(b.Price), b.Units)
	if b.Book != "" {
		s += " | " + b.Book
	}
	return s
}

// fillStyle sizes and colours the confidence bar.
func fillStyle(a analysis.Analysis) string {
	return "width: " + barWidth(a.Confidence) + "; background: " + levelColor(a.Level) + ";"
}

func analysisLine(a analysis.Analysis) string {
	s := fmt.Sprintf("%s confidence", a.Level)
	if a.FavoriteTeam != "" {
		s += " | Favorite: " + a.FavoriteTeam
	}
	if a.Edge != 0 {
		s += fmt.Sprintf(" | Edge: %.1f%%", a.Edge)
	}
	return s
}

func dataStatus(demo bool) string {
	if demo {
		return "DEMO"
	}
	return "LIVE"
}

const signupScript = `<script>
document.getElementById('signup-form').addEventListener('submit', async function (e) {
  e.preventDefault();
  const out = document.getElementById('signup-message');
  const email = this.elements.email.value;
  try {
    const res = await fetch('/api/subscribe', {
      method: 'POST',
      headers: {'Content-Type': 'application/json'},
      body: JSON.stringify({email: email})
    });
    const data = await res.json();
    out.textContent = data.message;
    if (data.success) {
      gtag('event', 'sign_up', {method: 'email'});
      this.reset();
    }
  } catch (err) {
    out.textContent = 'Signup failed, please try again.';
  }
});
</script>`

const dashboardScript = `<script>
document.querySelectorAll('.place-bet').forEach(function (btn) {
  btn.addEventListener('click', async function () {
    const d = btn.dataset;
    gtag('event', 'place_bet', {event_category: 'betting', event_label: d.pick, game_id: d.game});
    const res = await fetch('/api/place-bet', {
      method: 'POST',
      headers: {'Content-Type': 'application/json'},
      body: JSON.stringify({
        gameId: d.game,
        pick: d.pick,
        type: d.type,
        odds: parseFloat(d.odds),
        units: parseFloat(d.units),
        requestId: crypto.randomUUID()
      })
    });
    const data = await res.json();
    alert(data.success ? 'Bet placed: ' + d.pick : data.message);
  });
});
setTimeout(function () { location.reload(); }, 300000);
</script>`
