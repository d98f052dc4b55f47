package web

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/okian/betedge/internal/adapters/repository"
	"github.com/okian/betedge/internal/domain/analysis"
	"github.com/okian/betedge/internal/domain/odds"
)

var levelColors = map[analysis.Level]string{
	analysis.Elite: "#4CAF50",
	analysis.High:  "#66BB6A",
	analysis.Good:  "#FFC107",
	analysis.Fair:  "#FF9800",
	analysis.Avoid: "#F44336",
}

func levelColor(l analysis.Level) string {
	if c, ok := levelColors[l]; ok {
		return c
	}
	return "#9E9E9E"
}

func starRating(n int) string {
	n = max(0, min(n, 5))
	return strings.Repeat("★", n) + strings.Repeat("☆", 5-n)
}

// formatPrice renders decimal odds with the American equivalent, e.g. "1.91 (-110)".
func formatPrice(decimal float64) string {
	if decimal <= 1 {
		return "N/A"
	}
	return fmt.Sprintf("%.2f (%+.0f)", decimal, odds.DecimalToAmerican(decimal))
}

// formatEV renders a per-unit expected value as a signed percentage.
func formatEV(ev float64) string {
	return fmt.Sprintf("%+.1f%%", ev*100)
}

// barWidth clamps a confidence into a CSS percentage.
func barWidth(confidence float64) string {
	if math.IsNaN(confidence) {
		confidence = 0
	}
	return fmt.Sprintf("%.0f%%", math.Max(0, math.Min(100, confidence)))
}

func gameTime(t time.Time, loc *time.Location) string {
	return odds.FormatGameTime(t, loc)
}

func lastUpdated(st repository.SportStatus) string {
	if st.LastUpdated == nil || *st.LastUpdated == "" {
		return "Never"
	}
	return *st.LastUpdated
}
