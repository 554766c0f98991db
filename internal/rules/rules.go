// Package rules holds the pure precondition checks run before every market
// mutation. Each check returns nil or an *apperr.Error with a distinct code;
// nothing here touches storage or mutates state.
package rules

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/oddsline/wager-engine/internal/apperr"
	"github.com/oddsline/wager-engine/internal/model"
)

// MaxFeeRate caps the fraction of the pool an application may retain.
var MaxFeeRate = decimal.NewFromFloat(0.5)

// CreateMarket validates market-creation input shape: question present, at
// least two outcome labels, a close time in the future, fee rate in
// [0, MaxFeeRate], and non-negative min/max bet bounds with min ≤ max
// (zero means unset).
func CreateMarket(question string, outcomeLabels []string, feeRate decimal.Decimal, closesAt, now time.Time, minBet, maxBet decimal.Decimal) error {
	if question == "" {
		return apperr.New(apperr.CodeInvalidConfig, "market question is required")
	}
	if len(outcomeLabels) < 2 {
		return apperr.New(apperr.CodeInvalidConfig, "market needs at least 2 outcomes, got %d", len(outcomeLabels))
	}
	for i, label := range outcomeLabels {
		if label == "" {
			return apperr.New(apperr.CodeInvalidConfig, "outcome %d has an empty label", i)
		}
	}
	if !closesAt.After(now) {
		return apperr.New(apperr.CodeInvalidConfig, "close time must be in the future")
	}
	if feeRate.IsNegative() || feeRate.GreaterThan(MaxFeeRate) {
		return apperr.New(apperr.CodeInvalidConfig, "fee rate must be in [0, %s], got %s", MaxFeeRate, feeRate)
	}
	if minBet.IsNegative() || maxBet.IsNegative() {
		return apperr.New(apperr.CodeInvalidConfig, "bet bounds must be non-negative")
	}
	if !maxBet.IsZero() && minBet.GreaterThan(maxBet) {
		return apperr.New(apperr.CodeInvalidConfig, "min bet %s exceeds max bet %s", minBet, maxBet)
	}
	return nil
}

// PlaceBet validates a bet against the market's current state: the market
// must be open and not past its close time, the outcome must exist, the
// amount must be positive and within the market's min/max bounds, and the
// bettor must be on the allowlist when one is configured.
func PlaceBet(m *model.Market, bettorID, outcomeID string, amount decimal.Decimal, now time.Time) error {
	if m.Status != model.MarketOpen {
		return apperr.New(apperr.CodeInvalidInput, "market %s is %s, not open for betting", m.ID, m.Status)
	}
	if !now.Before(m.ClosesAt) {
		return apperr.New(apperr.CodeInvalidInput, "market %s is past its close time", m.ID)
	}
	if bettorID == "" {
		return apperr.New(apperr.CodeInvalidInput, "bettor id is required")
	}
	if m.Outcome(outcomeID) == nil {
		return apperr.New(apperr.CodeOutcomeNotFound, "outcome %s not found on market %s", outcomeID, m.ID)
	}
	if !amount.IsPositive() {
		return apperr.New(apperr.CodeInvalidInput, "bet amount must be positive, got %s", amount)
	}
	if !m.MinBet.IsZero() && amount.LessThan(m.MinBet) {
		return apperr.New(apperr.CodeInvalidInput, "bet amount %s below market minimum %s", amount, m.MinBet)
	}
	if !m.MaxBet.IsZero() && amount.GreaterThan(m.MaxBet) {
		return apperr.New(apperr.CodeInvalidInput, "bet amount %s above market maximum %s", amount, m.MaxBet)
	}
	if !m.AllowsBettor(bettorID) {
		return apperr.New(apperr.CodeInvalidInput, "bettor %s is not on the market allowlist", bettorID)
	}
	return nil
}

// Resolve validates a resolution request: the market must not already be in
// a terminal state, and the candidate winning outcome must exist on it.
func Resolve(m *model.Market, winningOutcomeID string) error {
	if m.Status == model.MarketResolved {
		return apperr.New(apperr.CodeConflict, "market %s is already resolved", m.ID)
	}
	if m.Status == model.MarketCancelled {
		return apperr.New(apperr.CodeConflict, "market %s is cancelled", m.ID)
	}
	if m.Outcome(winningOutcomeID) == nil {
		return apperr.New(apperr.CodeOutcomeNotFound, "winning outcome %s not found on market %s", winningOutcomeID, m.ID)
	}
	return nil
}

// Cancel validates a cancellation request. Resolved markets cannot be
// cancelled, and cancelling twice is a conflict.
func Cancel(m *model.Market) error {
	if m.Status == model.MarketResolved {
		return apperr.New(apperr.CodeConflict, "market %s is resolved and cannot be cancelled", m.ID)
	}
	if m.Status == model.MarketCancelled {
		return apperr.New(apperr.CodeConflict, "market %s is already cancelled", m.ID)
	}
	return nil
}
