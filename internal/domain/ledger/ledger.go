// Package ledger tracks the bets users record against recommendations and
// summarises their results.
package ledger

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	ErrInvalidBet     = errors.New("invalid bet")
	ErrInvalidResult  = errors.New("invalid result")
	ErrAlreadySettled = errors.New("bet already settled")
	ErrNotFound       = errors.New("bet not found")
)

// Result of a settled bet.
type Result string

const (
	Pending Result = "pending"
	Win     Result = "win"
	Loss    Result = "loss"
	Push    Result = "push"
)

// ParseResult accepts win, loss or push in any case.
func ParseResult(s string) (Result, error) {
	switch r := Result(strings.ToLower(strings.TrimSpace(s))); r {
	case Win, Loss, Push:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidResult, s)
	}
}

// Bet is a wager a user tracked.
type Bet struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	RequestID string     `json:"request_id,omitempty"`
	GameID    string     `json:"game_id"`
	Pick      string     `json:"pick"`
	Type      string     `json:"type,omitempty"`
	Price     float64    `json:"odds"`
	Units     float64    `json:"units"`
	Status    Result     `json:"status"`
	PlacedAt  time.Time  `json:"placed_at"`
	SettledAt *time.Time `json:"settled_at,omitempty"`
}

// Validate checks the fields a user supplies.
func (b Bet) Validate() error {
	switch {
	case strings.TrimSpace(b.GameID) == "":
		return fmt.Errorf("%w: game id is required", ErrInvalidBet)
	case strings.TrimSpace(b.Pick) == "":
		return fmt.Errorf("%w: pick is required", ErrInvalidBet)
	case b.Price <= 1:
		return fmt.Errorf("%w: odds must be decimal and above 1", ErrInvalidBet)
	case b.Units <= 0:
		return fmt.Errorf("%w: units must be positive", ErrInvalidBet)
	}
	return nil
}

// Profit returns the units won or lost by a settled bet.
func (b Bet) Profit() float64 {
	switch b.Status {
	case Win:
		return b.Units * (b.Price - 1)
	case Loss:
		return -b.Units
	default:
		return 0
	}
}

// Performance summarises a user's tracked bets.
type Performance struct {
	TotalBets int     `json:"total_bets"`
	Wins      int     `json:"wins"`
	Losses    int     `json:"losses"`
	Pushes    int     `json:"pushes"`
	Pending   int     `json:"pending"`
	Profit    float64 `json:"profit"`
	ROI       float64 `json:"roi"`
	WinRate   float64 `json:"win_rate"`
}

// Summarize computes performance in units. ROI is profit over settled stake.
func Summarize(bets []Bet) Performance {
	var (
		p       Performance
		settled float64
	)
	for _, b := range bets {
		p.TotalBets++
		switch b.Status {
		case Win:
			p.Wins++
			settled += b.Units
		case Loss:
			p.Losses++
			settled += b.Units
		case Push:
			p.Pushes++
			settled += b.Units
		default:
			p.Pending++
		}
		p.Profit += b.Profit()
	}
	p.Profit = round2(p.Profit)
	if settled > 0 {
		p.ROI = round2(p.Profit / settled * 100)
	}
	if decided := p.Wins + p.Losses; decided > 0 {
		p.WinRate = round2(float64(p.Wins) / float64(decided) * 100)
	}
	return p
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
