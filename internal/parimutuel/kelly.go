package parimutuel

import "github.com/shopspring/decimal"

// Kelly computes a fractional-Kelly stake for a bet at the given decimal
// odds, believing the outcome has probability p:
//
//	b  = odds − 1          (net odds)
//	f* = (b·p − q) / b     with q = 1 − p
//	stake = bankroll × f* × fraction
//
// Returns zero when the edge is non-positive (f* ≤ 0), when odds offer no
// profit (odds ≤ 1), or when the probability is outside (0, 1). The result
// is rounded to 2 dp.
func Kelly(probability, odds, bankroll, fraction decimal.Decimal) decimal.Decimal {
	if probability.LessThanOrEqual(decimal.Zero) || probability.GreaterThanOrEqual(one) {
		return decimal.Zero
	}
	b := odds.Sub(one)
	if b.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	q := one.Sub(probability)
	f := b.Mul(probability).Sub(q).Div(b)
	if f.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	return bankroll.Mul(f).Mul(fraction).Round(PayoutScale)
}
