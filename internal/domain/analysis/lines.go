package analysis

import "github.com/okian/betedge/internal/domain/odds"

// Line is the best available price for one outcome.
type Line struct {
	Price     float64  `json:"price"`
	Point     *float64 `json:"point,omitempty"`
	Book      string   `json:"book"`
	BookTitle string   `json:"book_title"`
}

// Lines indexes best lines by market key, then outcome name.
type Lines map[string]map[string]Line

// Get returns the best line for an outcome of a market.
func (l Lines) Get(market, outcome string) (Line, bool) {
	line, ok := l[market][outcome]
	return line, ok
}

// BestLines shops every bookmaker for the highest price per market outcome.
func BestLines(game odds.Game) Lines {
	out := make(Lines)
	for _, b := range game.Bookmakers {
		for _, m := range b.Markets {
			for _, o := range m.Outcomes {
				if o.Price <= 0 {
					continue
				}
				byName, ok := out[m.Key]
				if !ok {
					byName = make(map[string]Line)
					out[m.Key] = byName
				}
				if cur, seen := byName[o.Name]; seen && cur.Price >= o.Price {
					continue
				}
				line := Line{Price: o.Price, Book: b.Key, BookTitle: b.Title}
				if o.Point != nil {
					line.Point = odds.Pt(*o.Point)
				}
				byName[o.Name] = line
			}
		}
	}
	return out
}
