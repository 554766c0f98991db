// Package engine implements the market/bet/user lifecycle on top of a
// pluggable Store: market creation and state transitions, bet placement,
// parimutuel resolution with payout distribution, and balance bookkeeping.
//
// The service holds no entity state of its own — every operation re-reads
// from the store. Mutating operations are serialized by a service-level
// mutex so multi-entity updates (debit + bet, payout + status flips) cannot
// interleave within one process. All monetary values use shopspring/decimal.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oddsline/wager-engine/internal/apperr"
	"github.com/oddsline/wager-engine/internal/event"
	"github.com/oddsline/wager-engine/internal/ident"
	"github.com/oddsline/wager-engine/internal/model"
	"github.com/oddsline/wager-engine/internal/parimutuel"
	"github.com/oddsline/wager-engine/internal/rules"
	"github.com/oddsline/wager-engine/internal/store"
)

// Config holds engine-level defaults.
type Config struct {
	// StartingBalance is credited to users created lazily on first
	// reference.
	StartingBalance decimal.Decimal

	// DefaultFeeRate applies to markets created without an explicit fee.
	DefaultFeeRate decimal.Decimal
}

// Service orchestrates market, bet, and user operations over a Store and
// publishes domain events through its own Registry.
type Service struct {
	store  store.Store
	events *event.Registry
	cfg    Config
	mu     sync.Mutex
}

// NewService creates a wager engine over the given store.
func NewService(st store.Store, cfg Config) *Service {
	return &Service{
		store:  st,
		events: event.NewRegistry(),
		cfg:    cfg,
	}
}

// Events returns the service's event registry for subscriptions.
func (s *Service) Events() *event.Registry {
	return s.events
}

// --- Input types ---

// CreateMarketInput describes a new market.
type CreateMarketInput struct {
	AppID          string           `json:"app_id"`
	Question       string           `json:"question"`
	OutcomeLabels  []string         `json:"outcomes"`
	OutcomeType    string           `json:"outcome_type,omitempty"` // defaults: binary for 2 outcomes, multiple otherwise
	FeeRate        *decimal.Decimal `json:"fee_rate,omitempty"`     // nil → engine default
	ClosesAt       time.Time        `json:"closes_at"`
	AllowedBettors []string         `json:"allowed_bettors,omitempty"`
	MinBet         decimal.Decimal  `json:"min_bet"`
	MaxBet         decimal.Decimal  `json:"max_bet"`
}

// PlaceBetInput describes a bet to place.
type PlaceBetInput struct {
	MarketID  string          `json:"market_id"`
	BettorID  string          `json:"bettor_id"`
	OutcomeID string          `json:"outcome_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// ResolveMarketInput names the market and its winning outcome.
type ResolveMarketInput struct {
	MarketID         string `json:"market_id"`
	WinningOutcomeID string `json:"winning_outcome_id"`
}

// MarketFilter narrows ListMarkets results. Zero values match everything.
type MarketFilter struct {
	Status string
	AppID  string
}

// --- Market lifecycle ---

// CreateMarket validates the input, builds a market with uniform initial
// odds, persists it, and emits market:created.
func (s *Service) CreateMarket(ctx context.Context, in CreateMarketInput) (*model.Market, error) {
	now := time.Now().UTC()

	feeRate := s.cfg.DefaultFeeRate
	if in.FeeRate != nil {
		feeRate = *in.FeeRate
	}

	if err := rules.CreateMarket(in.Question, in.OutcomeLabels, feeRate, in.ClosesAt, now, in.MinBet, in.MaxBet); err != nil {
		return nil, err
	}

	outcomeType := in.OutcomeType
	if outcomeType == "" {
		outcomeType = model.OutcomeMultiple
		if len(in.OutcomeLabels) == 2 {
			outcomeType = model.OutcomeBinary
		}
	}

	outcomes := make([]model.Outcome, 0, len(in.OutcomeLabels))
	for _, label := range in.OutcomeLabels {
		outcomes = append(outcomes, model.Outcome{
			ID:    ident.New(ident.PrefixOutcome),
			Label: label,
		})
	}

	market := &model.Market{
		ID:             ident.Market(),
		AppID:          in.AppID,
		Question:       in.Question,
		Outcomes:       outcomes,
		OutcomeType:    outcomeType,
		Status:         model.MarketOpen,
		TotalPool:      decimal.Zero,
		FeeRate:        feeRate,
		AllowedBettors: in.AllowedBettors,
		MinBet:         in.MinBet,
		MaxBet:         in.MaxBet,
		CreatedAt:      now,
		ClosesAt:       in.ClosesAt.UTC(),
	}
	parimutuel.Apply(market) // uniform prior on an empty pool

	if err := s.store.CreateMarket(ctx, market); err != nil {
		return nil, err
	}

	slog.Info("market created",
		"id", market.ID,
		"app", market.AppID,
		"outcomes", len(market.Outcomes),
		"fee_rate", feeRate.String(),
		"closes_at", market.ClosesAt,
	)

	s.events.Emit(event.Event{Kind: event.MarketCreated, Market: market})
	return market, nil
}

// GetMarket returns a market with odds recomputed live from the pool split.
// Stored odds are never trusted.
func (s *Service) GetMarket(ctx context.Context, id string) (*model.Market, error) {
	m, err := s.store.GetMarket(ctx, id)
	if err != nil {
		return nil, err
	}
	parimutuel.Apply(m)
	return m, nil
}

// ListMarkets returns markets matching the filter, odds recomputed live.
func (s *Service) ListMarkets(ctx context.Context, filter MarketFilter) ([]model.Market, error) {
	markets, err := s.store.ListMarkets(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]model.Market, 0, len(markets))
	for i := range markets {
		m := &markets[i]
		if filter.Status != "" && m.Status != filter.Status {
			continue
		}
		if filter.AppID != "" && m.AppID != filter.AppID {
			continue
		}
		parimutuel.Apply(m)
		result = append(result, *m)
	}
	return result, nil
}

// CloseMarket forces an open market to CLOSED and emits market:closed.
func (s *Service) CloseMarket(ctx context.Context, id string) (*model.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.store.GetMarket(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status != model.MarketOpen {
		return nil, apperr.New(apperr.CodeConflict, "market %s is %s, only open markets can be closed", id, m.Status)
	}

	m.Status = model.MarketClosed
	if err := s.store.UpdateMarket(ctx, m); err != nil {
		return nil, err
	}

	slog.Info("market closed", "id", m.ID)
	s.events.Emit(event.Event{Kind: event.MarketClosed, Market: m})
	return m, nil
}

// ResolveMarket settles a market: it fixes the winning outcome, persists the
// RESOLVED market before touching any bet, then walks the bets marking them
// won or lost and crediting winners from the fee-reduced pool. If nobody
// backed the winner, every bet is refunded instead and the pool drains to
// zero (TotalPool counts only non-refunded bets). Emits one bet:won /
// bet:lost / bet:refunded per bet, then one market:resolved.
func (s *Service) ResolveMarket(ctx context.Context, in ResolveMarketInput) (*model.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.store.GetMarket(ctx, in.MarketID)
	if err != nil {
		return nil, err
	}
	if err := rules.Resolve(m, in.WinningOutcomeID); err != nil {
		return nil, err
	}

	bets, err := s.store.ListBetsByMarket(ctx, in.MarketID)
	if err != nil {
		return nil, err
	}

	var winningTotal decimal.Decimal
	for i := range bets {
		if bets[i].Status != model.BetRefunded && bets[i].OutcomeID == in.WinningOutcomeID {
			winningTotal = winningTotal.Add(bets[i].Amount)
		}
	}
	refundAll := winningTotal.IsZero()

	// Per-bettor credit amounts; per-bet payouts below use the same share
	// formula, so the map equals the sum of the bets it covers.
	payouts := parimutuel.Payouts(m, in.WinningOutcomeID, bets)

	// Market is persisted before the bet loop runs; a failure mid-loop
	// leaves the market resolved with some bets still pending.
	now := time.Now().UTC()
	m.Status = model.MarketResolved
	m.WinningOutcomeID = in.WinningOutcomeID
	m.ResolvedAt = &now
	if err := s.store.UpdateMarket(ctx, m); err != nil {
		return nil, err
	}

	netPool := m.TotalPool.Mul(decimal.NewFromInt(1).Sub(m.FeeRate))

	for i := range bets {
		b := &bets[i]
		if b.Status == model.BetRefunded {
			continue
		}

		var kind event.Kind
		switch {
		case refundAll:
			// No winning stake to share the pool with; stakes go back
			// in full and no fee is taken. The pool only counts
			// non-refunded bets, so each refund drains it.
			b.Status = model.BetRefunded
			b.Payout = b.Amount
			if o := m.Outcome(b.OutcomeID); o != nil {
				o.TotalBets = o.TotalBets.Sub(b.Amount)
				o.BetCount--
			}
			m.TotalPool = m.TotalPool.Sub(b.Amount)
			kind = event.BetRefunded
		case b.OutcomeID == in.WinningOutcomeID:
			b.Status = model.BetWon
			b.Payout = b.Amount.Div(winningTotal).Mul(netPool).Round(parimutuel.PayoutScale)
			kind = event.BetWon
		default:
			b.Status = model.BetLost
			b.Payout = decimal.Zero
			kind = event.BetLost
		}

		if err := s.store.SaveBet(ctx, b); err != nil {
			return nil, err
		}
		if b.Status == model.BetLost {
			if err := s.recordLoss(ctx, b.BettorID, b.Amount); err != nil {
				return nil, err
			}
		}

		s.events.Emit(event.Event{Kind: kind, Bet: b, Market: m, Amount: b.Payout})
	}

	if refundAll {
		// Persist the drained pool and outcome totals.
		parimutuel.Apply(m)
		if err := s.store.UpdateMarket(ctx, m); err != nil {
			return nil, err
		}
	}

	for bettorID, amount := range payouts {
		if err := s.creditUser(ctx, bettorID, amount, !refundAll); err != nil {
			return nil, err
		}
	}

	slog.Info("market resolved",
		"id", m.ID,
		"winning_outcome", in.WinningOutcomeID,
		"pool", m.TotalPool.String(),
		"bets", len(bets),
		"refund_all", refundAll,
	)

	s.events.Emit(event.Event{Kind: event.MarketResolved, Market: m})
	return m, nil
}

// CancelMarket refunds every bet's full stake, marks the bets refunded,
// flips the market to CANCELLED, and records the optional reason in the
// market metadata. Resolved markets cannot be cancelled.
func (s *Service) CancelMarket(ctx context.Context, id, reason string) (*model.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.store.GetMarket(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := rules.Cancel(m); err != nil {
		return nil, err
	}

	bets, err := s.store.ListBetsByMarket(ctx, id)
	if err != nil {
		return nil, err
	}

	for i := range bets {
		b := &bets[i]
		if b.Status == model.BetRefunded {
			continue
		}
		b.Status = model.BetRefunded
		b.Payout = b.Amount
		// The pool only counts non-refunded bets.
		if o := m.Outcome(b.OutcomeID); o != nil {
			o.TotalBets = o.TotalBets.Sub(b.Amount)
			o.BetCount--
		}
		m.TotalPool = m.TotalPool.Sub(b.Amount)

		if err := s.store.SaveBet(ctx, b); err != nil {
			return nil, err
		}
		if err := s.creditUser(ctx, b.BettorID, b.Amount, false); err != nil {
			return nil, err
		}
		s.events.Emit(event.Event{Kind: event.BetRefunded, Bet: b, Market: m, Amount: b.Amount})
	}

	parimutuel.Apply(m)
	m.Status = model.MarketCancelled
	if reason != "" {
		if m.Metadata == nil {
			m.Metadata = make(map[string]string)
		}
		m.Metadata["cancel_reason"] = reason
	}
	if err := s.store.UpdateMarket(ctx, m); err != nil {
		return nil, err
	}

	slog.Info("market cancelled", "id", m.ID, "reason", reason, "bets_refunded", len(bets))
	s.events.Emit(event.Event{Kind: event.MarketCancelled, Market: m, Reason: reason})
	return m, nil
}

// CheckAndCloseExpiredMarkets closes every open market past its close time
// and emits market:closed per market. Returns the IDs of markets closed.
func (s *Service) CheckAndCloseExpiredMarkets(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	markets, err := s.store.ListMarkets(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var closed []string
	for i := range markets {
		m := &markets[i]
		if m.Status != model.MarketOpen || now.Before(m.ClosesAt) {
			continue
		}
		m.Status = model.MarketClosed
		if err := s.store.UpdateMarket(ctx, m); err != nil {
			return closed, err
		}
		closed = append(closed, m.ID)
		slog.Info("market auto-closed", "id", m.ID, "closes_at", m.ClosesAt)
		s.events.Emit(event.Event{Kind: event.MarketClosed, Market: m})
	}
	return closed, nil
}

// --- Betting ---

// PlaceBet validates the bet, lazily creates the bettor, checks their
// balance, computes the potential payout against the current pool state,
// debits the stake, bumps the outcome and pool totals, persists bet and
// market, and emits bet:placed.
func (s *Service) PlaceBet(ctx context.Context, in PlaceBetInput) (*model.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.store.GetMarket(ctx, in.MarketID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := rules.PlaceBet(m, in.BettorID, in.OutcomeID, in.Amount, now); err != nil {
		return nil, err
	}

	user, err := s.getOrCreateUser(ctx, in.BettorID)
	if err != nil {
		return nil, err
	}
	if user.Balance.LessThan(in.Amount) {
		return nil, apperr.New(apperr.CodeInsufficientBalance,
			"bettor %s has balance %s, needs %s", in.BettorID, user.Balance, in.Amount)
	}

	// Odds and potential payout reflect the pool before this bet joins it.
	var oddsAtPlacement decimal.Decimal
	for _, oo := range parimutuel.Odds(m) {
		if oo.OutcomeID == in.OutcomeID {
			oddsAtPlacement = oo.Odds
			break
		}
	}
	potential := parimutuel.PotentialPayout(in.Amount, in.OutcomeID, m)

	user.Balance = user.Balance.Sub(in.Amount)
	user.TotalWagered = user.TotalWagered.Add(in.Amount)
	if err := s.store.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	s.events.Emit(event.Event{Kind: event.UserBalanceChanged, User: user, Amount: in.Amount.Neg()})

	outcome := m.Outcome(in.OutcomeID)
	outcome.TotalBets = outcome.TotalBets.Add(in.Amount)
	outcome.BetCount++
	m.TotalPool = m.TotalPool.Add(in.Amount)
	parimutuel.Apply(m)
	if err := s.store.UpdateMarket(ctx, m); err != nil {
		return nil, err
	}
	s.events.Emit(event.Event{Kind: event.MarketUpdated, Market: m})

	bet := &model.Bet{
		ID:              ident.Bet(),
		MarketID:        in.MarketID,
		BettorID:        in.BettorID,
		OutcomeID:       in.OutcomeID,
		Amount:          in.Amount,
		PotentialPayout: potential,
		Status:          model.BetConfirmed,
		OddsAtPlacement: oddsAtPlacement,
		CreatedAt:       now,
	}
	if err := s.store.SaveBet(ctx, bet); err != nil {
		return nil, err
	}

	slog.Info("bet placed",
		"id", bet.ID,
		"market", in.MarketID,
		"bettor", in.BettorID,
		"outcome", in.OutcomeID,
		"amount", in.Amount.String(),
		"potential_payout", potential.String(),
	)

	s.events.Emit(event.Event{Kind: event.BetPlaced, Bet: bet, Market: m, Amount: in.Amount})
	return bet, nil
}

// PotentialPayout computes the payout a bet of amount on outcomeID would
// receive if the pool froze right after placement.
func (s *Service) PotentialPayout(ctx context.Context, marketID, outcomeID string, amount decimal.Decimal) (decimal.Decimal, error) {
	m, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		return decimal.Zero, err
	}
	return parimutuel.PotentialPayout(amount, outcomeID, m), nil
}

// --- Users & funds ---

// AddFunds credits a user's balance. Non-positive amounts are rejected.
func (s *Service) AddFunds(ctx context.Context, userID string, amount decimal.Decimal) (*model.User, error) {
	if !amount.IsPositive() {
		return nil, apperr.New(apperr.CodeInvalidInput, "amount must be positive, got %s", amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.getOrCreateUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Balance = user.Balance.Add(amount)
	if err := s.store.SaveUser(ctx, user); err != nil {
		return nil, err
	}

	slog.Info("funds added", "user", userID, "amount", amount.String(), "balance", user.Balance.String())
	s.events.Emit(event.Event{Kind: event.UserBalanceChanged, User: user, Amount: amount})
	return user, nil
}

// GetOrCreateUser returns the user, creating them with the configured
// starting balance when absent.
func (s *Service) GetOrCreateUser(ctx context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateUser(ctx, id)
}

// GetUser returns a user by ID.
func (s *Service) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.store.GetUser(ctx, id)
}

// --- Reads & derivations ---

// GetBet returns a bet by ID.
func (s *Service) GetBet(ctx context.Context, id string) (*model.Bet, error) {
	return s.store.GetBet(ctx, id)
}

// BetsByMarket returns all bets on a market, oldest first.
func (s *Service) BetsByMarket(ctx context.Context, marketID string) ([]model.Bet, error) {
	return s.store.ListBetsByMarket(ctx, marketID)
}

// BetsByUser returns all bets by a bettor, oldest first.
func (s *Service) BetsByUser(ctx context.Context, bettorID string) ([]model.Bet, error) {
	return s.store.ListBetsByUser(ctx, bettorID)
}

// MarketStats derives activity statistics for a market from its bets.
func (s *Service) MarketStats(ctx context.Context, marketID string) (*model.MarketStats, error) {
	m, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	bets, err := s.store.ListBetsByMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}

	stats := &model.MarketStats{
		MarketID:      m.ID,
		Status:        m.Status,
		TotalPool:     m.TotalPool,
		OutcomeTotals: make(map[string]decimal.Decimal, len(m.Outcomes)),
	}
	for _, o := range m.Outcomes {
		stats.OutcomeTotals[o.ID] = o.TotalBets
	}

	bettors := make(map[string]struct{})
	var total decimal.Decimal
	for i := range bets {
		b := &bets[i]
		if b.Status == model.BetRefunded {
			continue
		}
		stats.BetCount++
		bettors[b.BettorID] = struct{}{}
		total = total.Add(b.Amount)
		if b.Amount.GreaterThan(stats.LargestBet) {
			stats.LargestBet = b.Amount
		}
	}
	stats.BettorCount = len(bettors)
	if stats.BetCount > 0 {
		stats.AverageBet = total.Div(decimal.NewFromInt(int64(stats.BetCount))).Round(parimutuel.PayoutScale)
	}
	return stats, nil
}

// Stats returns entity counts from the underlying store.
func (s *Service) Stats(ctx context.Context) (model.StoreStats, error) {
	return s.store.Stats(ctx)
}

// Export snapshots all stored state.
func (s *Service) Export(ctx context.Context) (*model.Snapshot, error) {
	return s.store.Export(ctx)
}

// Import replaces all stored state with a snapshot.
func (s *Service) Import(ctx context.Context, snap *model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Import(ctx, snap)
}

// Clear removes all stored entities.
func (s *Service) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Clear(ctx)
}

// --- internal helpers (callers hold s.mu) ---

func (s *Service) getOrCreateUser(ctx context.Context, id string) (*model.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err == nil {
		return user, nil
	}
	if !apperr.Is(err, apperr.CodeUserNotFound) {
		return nil, err
	}

	user = &model.User{
		ID:        id,
		Balance:   s.cfg.StartingBalance,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveUser(ctx, user); err != nil {
		return nil, err
	}

	slog.Info("user created", "id", id, "starting_balance", s.cfg.StartingBalance.String())
	s.events.Emit(event.Event{Kind: event.UserCreated, User: user})
	return user, nil
}

// creditUser adds amount to the user's balance; asWin also bumps TotalWon.
func (s *Service) creditUser(ctx context.Context, userID string, amount decimal.Decimal, asWin bool) error {
	user, err := s.getOrCreateUser(ctx, userID)
	if err != nil {
		return err
	}
	user.Balance = user.Balance.Add(amount)
	if asWin {
		user.TotalWon = user.TotalWon.Add(amount)
	}
	if err := s.store.SaveUser(ctx, user); err != nil {
		return err
	}
	s.events.Emit(event.Event{Kind: event.UserBalanceChanged, User: user, Amount: amount})
	return nil
}

func (s *Service) recordLoss(ctx context.Context, userID string, amount decimal.Decimal) error {
	user, err := s.getOrCreateUser(ctx, userID)
	if err != nil {
		return err
	}
	user.TotalLost = user.TotalLost.Add(amount)
	return s.store.SaveUser(ctx, user)
}
