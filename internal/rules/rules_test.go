package rules

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oddsline/wager-engine/internal/apperr"
	"github.com/oddsline/wager-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func openMarket() *model.Market {
	return &model.Market{
		ID:     "mkt_1",
		Status: model.MarketOpen,
		Outcomes: []model.Outcome{
			{ID: "out_yes", Label: "Yes"},
			{ID: "out_no", Label: "No"},
		},
		FeeRate:  d(0.05),
		ClosesAt: time.Now().Add(time.Hour),
	}
}

func assertCode(t *testing.T, err error, code apperr.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	if got := apperr.CodeOf(err); got != code {
		t.Fatalf("expected code %s, got %s (%v)", code, got, err)
	}
}

func TestCreateMarket(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	labels := []string{"Yes", "No"}

	if err := CreateMarket("Will it rain?", labels, d(0.05), future, now, decimal.Zero, decimal.Zero); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}

	assertCode(t, CreateMarket("", labels, d(0.05), future, now, decimal.Zero, decimal.Zero), apperr.CodeInvalidConfig)
	assertCode(t, CreateMarket("q", []string{"Yes"}, d(0.05), future, now, decimal.Zero, decimal.Zero), apperr.CodeInvalidConfig)
	assertCode(t, CreateMarket("q", []string{"Yes", ""}, d(0.05), future, now, decimal.Zero, decimal.Zero), apperr.CodeInvalidConfig)
	assertCode(t, CreateMarket("q", labels, d(0.05), now.Add(-time.Minute), now, decimal.Zero, decimal.Zero), apperr.CodeInvalidConfig)
	assertCode(t, CreateMarket("q", labels, d(0.05), now, now, decimal.Zero, decimal.Zero), apperr.CodeInvalidConfig)
	assertCode(t, CreateMarket("q", labels, d(-0.01), future, now, decimal.Zero, decimal.Zero), apperr.CodeInvalidConfig)
	assertCode(t, CreateMarket("q", labels, d(0.51), future, now, decimal.Zero, decimal.Zero), apperr.CodeInvalidConfig)
	assertCode(t, CreateMarket("q", labels, d(0.05), future, now, d(-1), decimal.Zero), apperr.CodeInvalidConfig)
	assertCode(t, CreateMarket("q", labels, d(0.05), future, now, d(100), d(50)), apperr.CodeInvalidConfig)

	// Fee rate at the cap is allowed, and min without max is fine.
	if err := CreateMarket("q", labels, MaxFeeRate, future, now, d(100), decimal.Zero); err != nil {
		t.Fatalf("boundary input rejected: %v", err)
	}
}

func TestPlaceBet(t *testing.T) {
	now := time.Now()

	if err := PlaceBet(openMarket(), "alice", "out_yes", d(50), now); err != nil {
		t.Fatalf("valid bet rejected: %v", err)
	}

	closed := openMarket()
	closed.Status = model.MarketClosed
	assertCode(t, PlaceBet(closed, "alice", "out_yes", d(50), now), apperr.CodeInvalidInput)

	expired := openMarket()
	expired.ClosesAt = now.Add(-time.Minute)
	assertCode(t, PlaceBet(expired, "alice", "out_yes", d(50), now), apperr.CodeInvalidInput)

	assertCode(t, PlaceBet(openMarket(), "", "out_yes", d(50), now), apperr.CodeInvalidInput)
	assertCode(t, PlaceBet(openMarket(), "alice", "out_missing", d(50), now), apperr.CodeOutcomeNotFound)
	assertCode(t, PlaceBet(openMarket(), "alice", "out_yes", decimal.Zero, now), apperr.CodeInvalidInput)
	assertCode(t, PlaceBet(openMarket(), "alice", "out_yes", d(-10), now), apperr.CodeInvalidInput)
}

func TestPlaceBet_Bounds(t *testing.T) {
	now := time.Now()
	m := openMarket()
	m.MinBet = d(10)
	m.MaxBet = d(100)

	assertCode(t, PlaceBet(m, "alice", "out_yes", d(5), now), apperr.CodeInvalidInput)
	assertCode(t, PlaceBet(m, "alice", "out_yes", d(150), now), apperr.CodeInvalidInput)
	if err := PlaceBet(m, "alice", "out_yes", d(10), now); err != nil {
		t.Fatalf("bet at minimum rejected: %v", err)
	}
	if err := PlaceBet(m, "alice", "out_yes", d(100), now); err != nil {
		t.Fatalf("bet at maximum rejected: %v", err)
	}
}

func TestPlaceBet_Allowlist(t *testing.T) {
	now := time.Now()
	m := openMarket()
	m.AllowedBettors = []string{"alice", "bob"}

	if err := PlaceBet(m, "alice", "out_yes", d(50), now); err != nil {
		t.Fatalf("allowlisted bettor rejected: %v", err)
	}
	assertCode(t, PlaceBet(m, "mallory", "out_yes", d(50), now), apperr.CodeInvalidInput)
}

func TestResolve(t *testing.T) {
	if err := Resolve(openMarket(), "out_yes"); err != nil {
		t.Fatalf("resolve of open market rejected: %v", err)
	}

	closed := openMarket()
	closed.Status = model.MarketClosed
	if err := Resolve(closed, "out_no"); err != nil {
		t.Fatalf("resolve of closed market rejected: %v", err)
	}

	resolved := openMarket()
	resolved.Status = model.MarketResolved
	assertCode(t, Resolve(resolved, "out_yes"), apperr.CodeConflict)

	cancelled := openMarket()
	cancelled.Status = model.MarketCancelled
	assertCode(t, Resolve(cancelled, "out_yes"), apperr.CodeConflict)

	assertCode(t, Resolve(openMarket(), "out_missing"), apperr.CodeOutcomeNotFound)
}

func TestCancel(t *testing.T) {
	if err := Cancel(openMarket()); err != nil {
		t.Fatalf("cancel of open market rejected: %v", err)
	}

	closed := openMarket()
	closed.Status = model.MarketClosed
	if err := Cancel(closed); err != nil {
		t.Fatalf("cancel of closed market rejected: %v", err)
	}

	resolved := openMarket()
	resolved.Status = model.MarketResolved
	assertCode(t, Cancel(resolved), apperr.CodeConflict)

	cancelled := openMarket()
	cancelled.Status = model.MarketCancelled
	assertCode(t, Cancel(cancelled), apperr.CodeConflict)
}
