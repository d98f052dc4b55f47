package odds

import (
	"fmt"
	"strings"
)

// Sport is one of the leagues the service tracks.
type Sport string

const (
	NFL   Sport = "nfl"
	NBA   Sport = "nba"
	MLB   Sport = "mlb"
	NCAAF Sport = "ncaaf"
)

var sportKeys = map[Sport]string{
	NFL:   "americanfootball_nfl",
	NBA:   "basketball_nba",
	MLB:   "baseball_mlb",
	NCAAF: "americanfootball_ncaaf",
}

// League average game totals used by the over/under model.
var leagueAverages = map[Sport]float64{
	NFL:   47,
	NBA:   220,
	MLB:   8.5,
	NCAAF: 55,
}

// AllSports returns the tracked sports in display order.
func AllSports() []Sport {
	return []Sport{NFL, NBA, MLB, NCAAF}
}

// ParseSport accepts a short name ("nfl") or an upstream key ("americanfootball_nfl").
func ParseSport(s string) (Sport, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if _, ok := sportKeys[Sport(s)]; ok {
		return Sport(s), nil
	}
	for sp, key := range sportKeys {
		if key == s {
			return sp, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSport, s)
}

// Key returns the the-odds-api sport key.
func (s Sport) Key() string {
	return sportKeys[s]
}

// Title returns the display name, e.g. "NFL".
func (s Sport) Title() string {
	return strings.ToUpper(string(s))
}

// LeagueAverageTotal returns the typical combined score for the league.
func (s Sport) LeagueAverageTotal() float64 {
	return leagueAverages[s]
}

func (s Sport) String() string {
	return string(s)
}
