package parimutuel

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// OddsFormat selects a display convention for decimal odds.
type OddsFormat string

const (
	FormatDecimal    OddsFormat = "decimal"
	FormatAmerican   OddsFormat = "american"
	FormatFractional OddsFormat = "fractional"
)

// fractionalDenominators are the denominators tried when converting decimal
// odds to a fractional quote. Matches the denominators used on traditional
// tote boards.
var fractionalDenominators = []int64{1, 2, 3, 4, 5, 6, 8, 10}

// FormatOdds renders decimal odds in the requested convention. Unknown
// formats fall back to decimal with 2 dp.
func FormatOdds(odds decimal.Decimal, format OddsFormat) string {
	switch format {
	case FormatAmerican:
		return formatAmerican(odds)
	case FormatFractional:
		return formatFractional(odds)
	default:
		return odds.Round(OddsScale).StringFixed(OddsScale)
	}
}

// formatAmerican converts decimal odds to the American convention:
// decimal 2.50 → +150, decimal 1.67 → -149. Decimal odds at or below 1
// have no meaningful American quote and render as -100.
func formatAmerican(odds decimal.Decimal) string {
	f := odds.InexactFloat64()
	if f <= 1 {
		return "-100"
	}
	if f >= 2 {
		return fmt.Sprintf("+%d", int(math.Round((f-1)*100)))
	}
	return fmt.Sprintf("%d", int(math.Round(-100/(f-1))))
}

// formatFractional converts decimal odds to the closest fractional quote
// over the fixed denominator set: decimal 3.50 → "5/2". The fractional part
// is odds − 1 (profit per unit staked).
func formatFractional(odds decimal.Decimal) string {
	profit := odds.Sub(one)
	if profit.LessThanOrEqual(decimal.Zero) {
		return "0/1"
	}

	pf := profit.InexactFloat64()
	bestNum, bestDen := int64(math.Round(pf)), int64(1)
	bestErr := math.Abs(pf - float64(bestNum))

	for _, den := range fractionalDenominators {
		num := int64(math.Round(pf * float64(den)))
		if num < 1 {
			continue
		}
		err := math.Abs(pf - float64(num)/float64(den))
		if err < bestErr {
			bestNum, bestDen = num, den
			bestErr = err
		}
	}

	// Reduce, keeping the denominator within the allowed set.
	g := gcd(bestNum, bestDen)
	return fmt.Sprintf("%d/%d", bestNum/g, bestDen/g)
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}
