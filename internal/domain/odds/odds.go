// Package odds models bookmaker odds as delivered by the-odds-api v4.
package odds

import (
	"encoding/json"
	"fmt"
	"time"
)

// Market keys.
const (
	MarketH2H     = "h2h"
	MarketSpreads = "spreads"
	MarketTotals  = "totals"
)

// Total outcome names.
const (
	Over  = "Over"
	Under = "Under"
)

// Game is one scheduled event with the prices of every bookmaker.
type Game struct {
	ID           string      `json:"id"`
	SportKey     string      `json:"sport_key"`
	SportTitle   string      `json:"sport_title,omitempty"`
	CommenceTime time.Time   `json:"commence_time"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	Bookmakers   []Bookmaker `json:"bookmakers"`
}

// Bookmaker is one book's markets for a game.
type Bookmaker struct {
	Key        string    `json:"key"`
	Title      string    `json:"title"`
	LastUpdate time.Time `json:"last_update"`
	Markets    []Market  `json:"markets"`
}

// Market is a set of outcomes for one bet type.
type Market struct {
	Key        string    `json:"key"`
	LastUpdate time.Time `json:"last_update"`
	Outcomes   []Outcome `json:"outcomes"`
}

// Outcome is a single priced selection. Price is decimal odds.
type Outcome struct {
	Name  string   `json:"name"`
	Price float64  `json:"price"`
	Point *float64 `json:"point,omitempty"`
}

// Pt returns a pointer to v, for building outcomes with a point.
func Pt(v float64) *float64 {
	return &v
}

// Outcome returns the outcome named name.
func (m Market) Outcome(name string) (Outcome, bool) {
	for _, o := range m.Outcomes {
		if o.Name == name {
			return o, true
		}
	}
	return Outcome{}, false
}

// Market returns the bookmaker's market with the given key.
func (b Bookmaker) Market(key string) (Market, bool) {
	for _, m := range b.Markets {
		if m.Key == key {
			return m, true
		}
	}
	return Market{}, false
}

// FirstMarket returns the first bookmaker offering market key, with that market.
func (g Game) FirstMarket(key string) (Bookmaker, Market, bool) {
	for _, b := range g.Bookmakers {
		if m, ok := b.Market(key); ok {
			return b, m, true
		}
	}
	return Bookmaker{}, Market{}, false
}

// Fingerprint identifies a priced version of the game: it changes whenever
// any bookmaker republishes its lines.
func (g Game) Fingerprint() string {
	var latest time.Time
	for _, b := range g.Bookmakers {
		if b.LastUpdate.After(latest) {
			latest = b.LastUpdate
		}
		for _, m := range b.Markets {
			if m.LastUpdate.After(latest) {
				latest = m.LastUpdate
			}
		}
	}
	var ts int64
	if !latest.IsZero() {
		ts = latest.Unix()
	}
	return fmt.Sprintf("%s@%d/%d", g.ID, ts, len(g.Bookmakers))
}

// Matchup renders "Home vs Away".
func (g Game) Matchup() string {
	return g.HomeTeam + " vs " + g.AwayTeam
}

// UnmarshalJSON tolerates malformed timestamps, leaving them zero.
func (g *Game) UnmarshalJSON(data []byte) error {
	type alias Game
	aux := struct {
		*alias
		CommenceTime string `json:"commence_time"`
	}{alias: (*alias)(g)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	g.CommenceTime = parseTime(aux.CommenceTime)
	return nil
}

// UnmarshalJSON tolerates malformed timestamps, leaving them zero.
func (b *Bookmaker) UnmarshalJSON(data []byte) error {
	type alias Bookmaker
	aux := struct {
		*alias
		LastUpdate string `json:"last_update"`
	}{alias: (*alias)(b)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	b.LastUpdate = parseTime(aux.LastUpdate)
	return nil
}

// UnmarshalJSON tolerates malformed timestamps, leaving them zero.
func (m *Market) UnmarshalJSON(data []byte) error {
	type alias Market
	aux := struct {
		*alias
		LastUpdate string `json:"last_update"`
	}{alias: (*alias)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.LastUpdate = parseTime(aux.LastUpdate)
	return nil
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// Quota is the upstream request allowance reported with each fetch.
// Negative values mean the header was absent.
type Quota struct {
	Remaining int `json:"remaining"`
	Used      int `json:"used"`
}

// UnknownQuota is the quota of a response without quota headers.
var UnknownQuota = Quota{Remaining: -1, Used: -1}
