// Package parimutuel implements pool-share odds and payout arithmetic for
// parimutuel markets: the pool (minus a fee) is shared proportionally among
// winning bettors based on their stake relative to the total winning stake.
//
// All functions are pure — market state is passed as arguments, not stored.
// All monetary values use shopspring/decimal — never float64 for money.
package parimutuel

import (
	"github.com/shopspring/decimal"

	"github.com/oddsline/wager-engine/internal/model"
)

// Rounding scales for derived values.
const (
	OddsScale        int32 = 2
	ProbabilityScale int32 = 3
	PayoutScale      int32 = 2
)

var one = decimal.NewFromInt(1)

// OutcomeOdds holds the derived odds and probability for one outcome.
type OutcomeOdds struct {
	OutcomeID   string
	Odds        decimal.Decimal
	Probability decimal.Decimal
}

// Odds computes live decimal odds and implied probability for every outcome
// of a market.
//
// With an empty pool, or for an outcome nobody has backed, a uniform prior
// applies: odds = outcomeCount, probability = 1/outcomeCount. Otherwise
//
//	odds        = pool × (1 − feeRate) / outcomeTotal   (2 dp)
//	probability = outcomeTotal / pool                   (3 dp)
func Odds(m *model.Market) []OutcomeOdds {
	n := len(m.Outcomes)
	out := make([]OutcomeOdds, 0, n)

	count := decimal.NewFromInt(int64(n))
	uniformOdds := count
	uniformProb := decimal.Zero
	if n > 0 {
		uniformProb = one.Div(count).Round(ProbabilityScale)
	}

	netPool := m.TotalPool.Mul(one.Sub(m.FeeRate))

	for i := range m.Outcomes {
		o := &m.Outcomes[i]
		if m.TotalPool.IsZero() || o.TotalBets.IsZero() {
			out = append(out, OutcomeOdds{
				OutcomeID:   o.ID,
				Odds:        uniformOdds,
				Probability: uniformProb,
			})
			continue
		}
		out = append(out, OutcomeOdds{
			OutcomeID:   o.ID,
			Odds:        netPool.Div(o.TotalBets).Round(OddsScale),
			Probability: o.TotalBets.Div(m.TotalPool).Round(ProbabilityScale),
		})
	}
	return out
}

// Apply recomputes odds and probabilities in place on the market's outcomes.
// Stored odds are presentation only; readers must call this before trusting
// them.
func Apply(m *model.Market) {
	for _, oo := range Odds(m) {
		if o := m.Outcome(oo.OutcomeID); o != nil {
			o.Odds = oo.Odds
			o.Probability = oo.Probability
		}
	}
}

// PotentialPayout simulates adding amount to the named outcome and to the
// pool, then returns the bettor's share of the resulting net pool:
//
//	payout = amount / (outcomeTotal + amount) × (pool + amount) × (1 − feeRate)
//
// rounded to 2 dp. Returns zero if the outcome does not exist on the market.
// This is the payout the bettor would receive if the pool froze immediately
// after their bet and their outcome won.
func PotentialPayout(amount decimal.Decimal, outcomeID string, m *model.Market) decimal.Decimal {
	o := m.Outcome(outcomeID)
	if o == nil {
		return decimal.Zero
	}

	newOutcomeTotal := o.TotalBets.Add(amount)
	if newOutcomeTotal.IsZero() {
		return decimal.Zero
	}
	newNetPool := m.TotalPool.Add(amount).Mul(one.Sub(m.FeeRate))

	return amount.Div(newOutcomeTotal).Mul(newNetPool).Round(PayoutScale)
}

// Payouts computes the per-bettor payout map for market resolution.
//
// If nobody backed the winning outcome there is no one to distribute the
// pool to, so every bettor is refunded their full stake. Otherwise each
// winning bettor receives
//
//	stake / winningTotal × pool × (1 − feeRate)
//
// rounded to 2 dp and accumulated per bettor (a bettor may hold several
// bets on the winner). Bets already refunded are excluded from both paths.
func Payouts(m *model.Market, winningOutcomeID string, bets []model.Bet) map[string]decimal.Decimal {
	payouts := make(map[string]decimal.Decimal)

	var winningTotal decimal.Decimal
	for i := range bets {
		b := &bets[i]
		if b.Status == model.BetRefunded {
			continue
		}
		if b.OutcomeID == winningOutcomeID {
			winningTotal = winningTotal.Add(b.Amount)
		}
	}

	if winningTotal.IsZero() {
		// Refund-all: stake back in full, no fee taken.
		for i := range bets {
			b := &bets[i]
			if b.Status == model.BetRefunded {
				continue
			}
			payouts[b.BettorID] = payouts[b.BettorID].Add(b.Amount)
		}
		return payouts
	}

	netPool := m.TotalPool.Mul(one.Sub(m.FeeRate))
	for i := range bets {
		b := &bets[i]
		if b.Status == model.BetRefunded || b.OutcomeID != winningOutcomeID {
			continue
		}
		share := b.Amount.Div(winningTotal).Mul(netPool).Round(PayoutScale)
		payouts[b.BettorID] = payouts[b.BettorID].Add(share)
	}
	return payouts
}
