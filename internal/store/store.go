// Package store defines the persistence interface for the wager engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing and embedded use).
package store

import (
	"context"

	"github.com/oddsline/wager-engine/internal/model"
)

// Store is the persistence interface. The engine never caches entities
// across calls — every operation re-reads through this interface, so any
// conforming implementation is swappable without touching the engine.
//
// Not-found lookups return apperr-coded errors (MARKET_NOT_FOUND,
// BET_NOT_FOUND, USER_NOT_FOUND) so callers can branch without string
// matching.
type Store interface {
	// --- Market operations ---

	// CreateMarket persists a new market.
	CreateMarket(ctx context.Context, m *model.Market) error

	// GetMarket retrieves a market by ID.
	GetMarket(ctx context.Context, id string) (*model.Market, error)

	// ListMarkets returns all markets.
	ListMarkets(ctx context.Context) ([]model.Market, error)

	// UpdateMarket overwrites a market's stored state.
	UpdateMarket(ctx context.Context, m *model.Market) error

	// DeleteMarket removes a market by ID.
	DeleteMarket(ctx context.Context, id string) error

	// --- Bet operations ---

	// SaveBet inserts a bet, or overwrites it if the ID already exists
	// (status/payout transitions at resolution).
	SaveBet(ctx context.Context, b *model.Bet) error

	// GetBet retrieves a bet by ID.
	GetBet(ctx context.Context, id string) (*model.Bet, error)

	// ListBetsByMarket returns all bets placed on a market.
	ListBetsByMarket(ctx context.Context, marketID string) ([]model.Bet, error)

	// ListBetsByUser returns all bets placed by a bettor.
	ListBetsByUser(ctx context.Context, bettorID string) ([]model.Bet, error)

	// DeleteBet removes a bet by ID.
	DeleteBet(ctx context.Context, id string) error

	// --- User operations ---

	// SaveUser inserts or overwrites a user record.
	SaveUser(ctx context.Context, u *model.User) error

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, id string) (*model.User, error)

	// DeleteUser removes a user by ID.
	DeleteUser(ctx context.Context, id string) error

	// --- Maintenance ---

	// Clear removes all stored entities.
	Clear(ctx context.Context) error

	// Stats returns entity counts.
	Stats(ctx context.Context) (model.StoreStats, error)

	// Export produces a full snapshot of stored state.
	Export(ctx context.Context) (*model.Snapshot, error)

	// Import replaces stored state with the snapshot's contents.
	Import(ctx context.Context, snap *model.Snapshot) error
}
