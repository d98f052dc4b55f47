// Package mockodds produces deterministic demo games for when no live odds
// are available.
package mockodds

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/okian/betedge/internal/domain/odds"
)

type matchup struct{ home, away string }

var fixtures = map[odds.Sport][]matchup{
	odds.NFL: {
		{"Kansas City Chiefs", "Buffalo Bills"},
		{"Dallas Cowboys", "Philadelphia Eagles"},
		{"San Francisco 49ers", "Los Angeles Rams"},
		{"Baltimore Ravens", "Cincinnati Bengals"},
		{"Green Bay Packers", "Chicago Bears"},
		{"New England Patriots", "New York Jets"},
		{"Pittsburgh Steelers", "Cleveland Browns"},
		{"Miami Dolphins", "Jacksonville Jaguars"},
		{"Tennessee Titans", "Houston Texans"},
		{"Seattle Seahawks", "Arizona Cardinals"},
		{"Las Vegas Raiders", "Denver Broncos"},
		{"Tampa Bay Buccaneers", "New Orleans Saints"},
		{"Minnesota Vikings", "Detroit Lions"},
		{"Indianapolis Colts", "Los Angeles Chargers"},
		{"Atlanta Falcons", "Carolina Panthers"},
	},
	odds.NBA: {
		{"Los Angeles Lakers", "Boston Celtics"},
		{"Golden State Warriors", "Phoenix Suns"},
		{"Milwaukee Bucks", "Miami Heat"},
		{"Denver Nuggets", "Dallas Mavericks"},
		{"Philadelphia 76ers", "Brooklyn Nets"},
		{"Memphis Grizzlies", "Sacramento Kings"},
		{"Cleveland Cavaliers", "New York Knicks"},
		{"Portland Trail Blazers", "Utah Jazz"},
		{"Atlanta Hawks", "Orlando Magic"},
		{"Toronto Raptors", "Chicago Bulls"},
		{"San Antonio Spurs", "Houston Rockets"},
		{"Indiana Pacers", "Detroit Pistons"},
	},
	odds.MLB: {
		{"New York Yankees", "Boston Red Sox"},
		{"Los Angeles Dodgers", "San Francisco Giants"},
		{"Houston Astros", "Texas Rangers"},
		{"Atlanta Braves", "New York Mets"},
		{"Philadelphia Phillies", "Washington Nationals"},
		{"Chicago Cubs", "St. Louis Cardinals"},
		{"San Diego Padres", "Arizona Diamondbacks"},
		{"Tampa Bay Rays", "Baltimore Orioles"},
		{"Cleveland Guardians", "Minnesota Twins"},
		{"Toronto Blue Jays", "Seattle Mariners"},
		{"Milwaukee Brewers", "Cincinnati Reds"},
	},
	odds.NCAAF: {
		{"Alabama", "Georgia"},
		{"Ohio State", "Michigan"},
		{"Texas", "Oklahoma"},
		{"USC", "Notre Dame"},
		{"Florida State", "Miami"},
		{"Penn State", "Michigan State"},
		{"Oregon", "Washington"},
		{"LSU", "Auburn"},
		{"Tennessee", "Florida"},
		{"Clemson", "South Carolina"},
		{"Wisconsin", "Iowa"},
		{"UCLA", "Stanford"},
	},
}

// totalRange is the [min, max) band of posted totals per sport.
func totalRange(s odds.Sport) (float64, float64) {
	switch s {
	case odds.NBA:
		return 210, 240
	case odds.MLB:
		return 7, 11
	default:
		return 38, 58
	}
}

// Generate returns the demo slate for sport. The same seed always yields the
// same prices; commence times are spread over the 72 hours after now.
func Generate(sport odds.Sport, now time.Time, seed int64) []odds.Game {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // demo data only
	lo, hi := totalRange(sport)
	now = now.UTC()

	teams := fixtures[sport]
	games := make([]odds.Game, 0, len(teams))
	for i, t := range teams {
		homeML := round(uniform(rng, 1.5, 3.0), 2)
		awayML := round(uniform(rng, 1.5, 3.0), 2)
		spread := round(uniform(rng, -14, 14), 1)
		total := round(uniform(rng, lo, hi), 1)
		kickoff := now.Truncate(time.Hour).Add(time.Duration(1+rng.Intn(72)) * time.Hour)

		games = append(games, odds.Game{
			ID:           fmt.Sprintf("mock_%s_%02d", sport, i+1),
			SportKey:     sport.Key(),
			SportTitle:   sport.Title(),
			CommenceTime: kickoff,
			HomeTeam:     t.home,
			AwayTeam:     t.away,
			Bookmakers: []odds.Bookmaker{
				{
					Key:        "draftkings",
					Title:      "DraftKings",
					LastUpdate: now,
					Markets: []odds.Market{
						{Key: odds.MarketH2H, LastUpdate: now, Outcomes: []odds.Outcome{
							{Name: t.home, Price: homeML},
							{Name: t.away, Price: awayML},
						}},
						{Key: odds.MarketSpreads, LastUpdate: now, Outcomes: []odds.Outcome{
							{Name: t.home, Price: 1.91, Point: odds.Pt(-spread)},
							{Name: t.away, Price: 1.91, Point: odds.Pt(spread)},
						}},
						{Key: odds.MarketTotals, LastUpdate: now, Outcomes: []odds.Outcome{
							{Name: odds.Over, Price: 1.87, Point: odds.Pt(total)},
							{Name: odds.Under, Price: 1.95, Point: odds.Pt(total)},
						}},
					},
				},
				{
					Key:        "fanduel",
					Title:      "FanDuel",
					LastUpdate: now,
					Markets: []odds.Market{
						{Key: odds.MarketH2H, LastUpdate: now, Outcomes: []odds.Outcome{
							{Name: t.home, Price: round(homeML+0.05, 2)},
							{Name: t.away, Price: round(awayML-0.05, 2)},
						}},
					},
				},
			},
		})
	}
	return games
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
