package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/btree"

	"github.com/okian/betedge/internal/domain/odds"
	"github.com/okian/betedge/internal/domain/picks"
	"github.com/okian/betedge/pkg/metrics"
)

const defaultDegree = 16

// boardKey orders the board: score DESC, then game id ASC.
type boardKey struct {
	score  float64
	gameID string
}

func lessKey(a, b boardKey) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.gameID < b.gameID
}

// PickBoard is an ordered index of the latest recommendation per game.
type PickBoard struct {
	mu     sync.RWMutex
	tree   *btree.BTreeG[boardKey]
	byID   map[string]picks.Recommendation
	degree int
}

// NewPickBoard constructs an empty board.
func NewPickBoard(opts ...BoardOption) *PickBoard {
	b := &PickBoard{
		degree: defaultDegree,
		byID:   make(map[string]picks.Recommendation),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.tree = btree.NewG[boardKey](b.degree, lessKey)
	return b
}

// Upsert stores rec, replacing any earlier recommendation for the same game.
func (b *PickBoard) Upsert(_ context.Context, rec picks.Recommendation) {
	b.mu.Lock()
	if old, ok := b.byID[rec.GameID]; ok {
		b.tree.Delete(boardKey{score: old.Score, gameID: old.GameID})
	}
	b.byID[rec.GameID] = rec
	b.tree.ReplaceOrInsert(boardKey{score: rec.Score, gameID: rec.GameID})
	n := len(b.byID)
	b.mu.Unlock()

	metrics.UpdatePicksOnBoard(n)
}

// Retain drops every game of sport whose id is not in ids and returns how
// many were removed.
func (b *PickBoard) Retain(_ context.Context, sport odds.Sport, ids []string) int {
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}

	b.mu.Lock()
	removed := 0
	for id, rec := range b.byID {
		if rec.Sport != sport {
			continue
		}
		if _, ok := keep[id]; ok {
			continue
		}
		b.tree.Delete(boardKey{score: rec.Score, gameID: id})
		delete(b.byID, id)
		removed++
	}
	n := len(b.byID)
	b.mu.Unlock()

	metrics.UpdatePicksOnBoard(n)
	return removed
}

// TopN returns up to n eligible recommendations in board order. An empty
// sport means all sports.
func (b *PickBoard) TopN(_ context.Context, n int, sport odds.Sport) ([]picks.Recommendation, error) {
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]picks.Recommendation, 0, n)
	b.tree.Ascend(func(k boardKey) bool {
		rec := b.byID[k.gameID]
		if (sport == "" || rec.Sport == sport) && rec.Eligible() {
			out = append(out, rec)
		}
		return len(out) < n
	})
	return out, nil
}

// Get returns the recommendation for a game.
func (b *PickBoard) Get(_ context.Context, gameID string) (picks.Recommendation, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.byID[gameID]
	if !ok {
		return picks.Recommendation{}, ErrNotFound
	}
	return rec, nil
}

// BySport returns every recommendation for sport ordered by commence time.
func (b *PickBoard) BySport(_ context.Context, sport odds.Sport) []picks.Recommendation {
	b.mu.RLock()
	out := make([]picks.Recommendation, 0, len(b.byID))
	for _, rec := range b.byID {
		if rec.Sport == sport {
			out = append(out, rec)
		}
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].CommenceTime, out[j].CommenceTime
		if !ti.Equal(tj) {
			return commencesBefore(ti, tj)
		}
		return out[i].GameID < out[j].GameID
	})
	return out
}

// commencesBefore orders known times first, unknown (zero) times last.
func commencesBefore(a, b time.Time) bool {
	if a.IsZero() != b.IsZero() {
		return b.IsZero()
	}
	return a.Before(b)
}

// Count returns the number of games on the board.
func (b *PickBoard) Count(_ context.Context) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byID)
}
