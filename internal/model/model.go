// Package model defines the core domain types shared across the wager engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Market lifecycle states. Open markets accept bets; closed markets await
// resolution. Resolved and cancelled are terminal.
const (
	MarketOpen      = "open"
	MarketClosed    = "closed"
	MarketResolved  = "resolved"
	MarketCancelled = "cancelled"
)

// Outcome type classifications.
const (
	OutcomeBinary   = "binary"
	OutcomeMultiple = "multiple"
	OutcomeScalar   = "scalar"
)

// Bet lifecycle states.
const (
	BetPending   = "pending"
	BetConfirmed = "confirmed"
	BetWon       = "won"
	BetLost      = "lost"
	BetRefunded  = "refunded"
)

// Outcome is one of the mutually exclusive options bettors can back within
// a market. Odds and Probability are derived on read from the pool split;
// stored values are never the source of truth.
type Outcome struct {
	ID          string          `json:"id" db:"id"`
	Label       string          `json:"label" db:"label"`
	TotalBets   decimal.Decimal `json:"total_bets" db:"total_bets"`
	BetCount    int             `json:"bet_count" db:"bet_count"`
	Odds        decimal.Decimal `json:"odds" db:"odds"`
	Probability decimal.Decimal `json:"probability" db:"probability"`
}

// Market is a parimutuel betting pool over an ordered list of outcomes.
// Invariant: TotalPool equals the sum of all non-refunded bet amounts, and
// len(Outcomes) >= 2.
type Market struct {
	ID               string            `json:"id" db:"id"`
	AppID            string            `json:"app_id" db:"app_id"`
	Question         string            `json:"question" db:"question"`
	Outcomes         []Outcome         `json:"outcomes" db:"outcomes"`
	OutcomeType      string            `json:"outcome_type" db:"outcome_type"`
	Status           string            `json:"status" db:"status"`
	TotalPool        decimal.Decimal   `json:"total_pool" db:"total_pool"`
	FeeRate          decimal.Decimal   `json:"fee_rate" db:"fee_rate"`
	WinningOutcomeID string            `json:"winning_outcome_id,omitempty" db:"winning_outcome_id"`
	AllowedBettors   []string          `json:"allowed_bettors,omitempty" db:"allowed_bettors"`
	MinBet           decimal.Decimal   `json:"min_bet" db:"min_bet"` // zero = no minimum
	MaxBet           decimal.Decimal   `json:"max_bet" db:"max_bet"` // zero = no maximum
	Metadata         map[string]string `json:"metadata,omitempty" db:"metadata"`
	CreatedAt        time.Time         `json:"created_at" db:"created_at"`
	ClosesAt         time.Time         `json:"closes_at" db:"closes_at"`
	ResolvedAt       *time.Time        `json:"resolved_at,omitempty" db:"resolved_at"`
}

// Outcome returns the outcome with the given ID, or nil if absent.
func (m *Market) Outcome(id string) *Outcome {
	for i := range m.Outcomes {
		if m.Outcomes[i].ID == id {
			return &m.Outcomes[i]
		}
	}
	return nil
}

// Terminal reports whether the market can no longer change state.
func (m *Market) Terminal() bool {
	return m.Status == MarketResolved || m.Status == MarketCancelled
}

// AllowsBettor reports whether the bettor may participate. An empty
// allowlist admits everyone.
func (m *Market) AllowsBettor(bettorID string) bool {
	if len(m.AllowedBettors) == 0 {
		return true
	}
	for _, id := range m.AllowedBettors {
		if id == bettorID {
			return true
		}
	}
	return false
}

// Bet is a stake placed against one outcome of a market. Immutable after
// placement except for the status/payout transition at resolution or
// cancellation. OddsAtPlacement records the decimal odds shown to the
// bettor when the bet was taken; final payouts are computed from the
// resolved pool, not from these odds.
type Bet struct {
	ID              string          `json:"id" db:"id"`
	MarketID        string          `json:"market_id" db:"market_id"`
	BettorID        string          `json:"bettor_id" db:"bettor_id"`
	OutcomeID       string          `json:"outcome_id" db:"outcome_id"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	PotentialPayout decimal.Decimal `json:"potential_payout" db:"potential_payout"`
	Status          string          `json:"status" db:"status"`
	Payout          decimal.Decimal `json:"payout" db:"payout"`
	OddsAtPlacement decimal.Decimal `json:"odds_at_placement" db:"odds_at_placement"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// Settled reports whether the bet has reached a terminal status.
func (b *Bet) Settled() bool {
	return b.Status == BetWon || b.Status == BetLost || b.Status == BetRefunded
}

// User tracks a bettor's balance and lifetime totals. Users are created
// lazily on first reference with a configurable starting balance.
type User struct {
	ID           string          `json:"id" db:"id"`
	Balance      decimal.Decimal `json:"balance" db:"balance"`
	TotalWagered decimal.Decimal `json:"total_wagered" db:"total_wagered"`
	TotalWon     decimal.Decimal `json:"total_won" db:"total_won"`
	TotalLost    decimal.Decimal `json:"total_lost" db:"total_lost"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// MarketStats summarizes betting activity on a single market.
type MarketStats struct {
	MarketID      string                     `json:"market_id"`
	Status        string                     `json:"status"`
	TotalPool     decimal.Decimal            `json:"total_pool"`
	BetCount      int                        `json:"bet_count"`
	BettorCount   int                        `json:"bettor_count"`
	LargestBet    decimal.Decimal            `json:"largest_bet"`
	AverageBet    decimal.Decimal            `json:"average_bet"`
	OutcomeTotals map[string]decimal.Decimal `json:"outcome_totals"`
}

// Snapshot is a full export of engine state, produced and consumed by
// Store.Export and Store.Import.
type Snapshot struct {
	Markets    []Market  `json:"markets"`
	Bets       []Bet     `json:"bets"`
	Users      []User    `json:"users"`
	ExportedAt time.Time `json:"exported_at"`
}

// StoreStats reports entity counts held by a store.
type StoreStats struct {
	Markets int `json:"markets"`
	Bets    int `json:"bets"`
	Users   int `json:"users"`
}
