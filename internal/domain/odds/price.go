package odds

import (
	"fmt"
	"math"
)

// AmericanToDecimal converts an American price (+150, -110) to decimal odds.
// Zero has no decimal equivalent and yields 0.
func AmericanToDecimal(american float64) float64 {
	switch {
	case american > 0:
		return 1 + american/100
	case american < 0:
		return 1 + 100/math.Abs(american)
	default:
		return 0
	}
}

// DecimalToAmerican converts decimal odds to an American price. Prices at or
// below 1 yield 0.
func DecimalToAmerican(decimal float64) float64 {
	switch {
	case decimal >= 2:
		return (decimal - 1) * 100
	case decimal > 1:
		return -100 / (decimal - 1)
	default:
		return 0
	}
}

// ImpliedProbability returns 1/decimal, or 0 for prices at or below 1.
func ImpliedProbability(decimal float64) float64 {
	if decimal <= 1 {
		return 0
	}
	return 1 / decimal
}

// FormatAmerican renders a decimal price as a signed American line, e.g. "+150".
func FormatAmerican(decimal float64) string {
	a := math.Round(DecimalToAmerican(decimal))
	if a > 0 {
		return fmt.Sprintf("+%.0f", a)
	}
	return fmt.Sprintf("%.0f", a)
}
