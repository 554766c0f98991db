package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oddsline/wager-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for the hot lookups: markets and users. Writes go to the primary
// store and invalidate the cache; reads check Redis first then fall back.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateMarket(ctx context.Context, m *model.Market) error {
	if err := s.primary.CreateMarket(ctx, m); err != nil {
		return err
	}
	s.cacheJSON(ctx, marketKey(m.ID), m)
	return nil
}

func (s *CachedStore) UpdateMarket(ctx context.Context, m *model.Market) error {
	if err := s.primary.UpdateMarket(ctx, m); err != nil {
		return err
	}
	// Invalidate; next read re-populates.
	s.rdb.Del(ctx, marketKey(m.ID))
	return nil
}

func (s *CachedStore) DeleteMarket(ctx context.Context, id string) error {
	if err := s.primary.DeleteMarket(ctx, id); err != nil {
		return err
	}
	s.rdb.Del(ctx, marketKey(id))
	return nil
}

func (s *CachedStore) SaveBet(ctx context.Context, b *model.Bet) error {
	if err := s.primary.SaveBet(ctx, b); err != nil {
		return err
	}
	s.rdb.Del(ctx, betKey(b.ID))
	return nil
}

func (s *CachedStore) DeleteBet(ctx context.Context, id string) error {
	if err := s.primary.DeleteBet(ctx, id); err != nil {
		return err
	}
	s.rdb.Del(ctx, betKey(id))
	return nil
}

func (s *CachedStore) SaveUser(ctx context.Context, u *model.User) error {
	if err := s.primary.SaveUser(ctx, u); err != nil {
		return err
	}
	s.rdb.Del(ctx, userKey(u.ID))
	return nil
}

func (s *CachedStore) DeleteUser(ctx context.Context, id string) error {
	if err := s.primary.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.rdb.Del(ctx, userKey(id))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetMarket(ctx context.Context, id string) (*model.Market, error) {
	var m model.Market
	if s.readJSON(ctx, marketKey(id), &m) {
		return &m, nil
	}

	fresh, err := s.primary.GetMarket(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheJSON(ctx, marketKey(id), fresh)
	return fresh, nil
}

func (s *CachedStore) GetBet(ctx context.Context, id string) (*model.Bet, error) {
	var b model.Bet
	if s.readJSON(ctx, betKey(id), &b) {
		return &b, nil
	}

	fresh, err := s.primary.GetBet(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheJSON(ctx, betKey(id), fresh)
	return fresh, nil
}

func (s *CachedStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if s.readJSON(ctx, userKey(id), &u) {
		return &u, nil
	}

	fresh, err := s.primary.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheJSON(ctx, userKey(id), fresh)
	return fresh, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	return s.primary.ListMarkets(ctx)
}

func (s *CachedStore) ListBetsByMarket(ctx context.Context, marketID string) ([]model.Bet, error) {
	return s.primary.ListBetsByMarket(ctx, marketID)
}

func (s *CachedStore) ListBetsByUser(ctx context.Context, bettorID string) ([]model.Bet, error) {
	return s.primary.ListBetsByUser(ctx, bettorID)
}

func (s *CachedStore) Stats(ctx context.Context) (model.StoreStats, error) {
	return s.primary.Stats(ctx)
}

func (s *CachedStore) Export(ctx context.Context) (*model.Snapshot, error) {
	return s.primary.Export(ctx)
}

func (s *CachedStore) Import(ctx context.Context, snap *model.Snapshot) error {
	if err := s.primary.Import(ctx, snap); err != nil {
		return err
	}
	return s.flushKeys(ctx)
}

func (s *CachedStore) Clear(ctx context.Context) error {
	if err := s.primary.Clear(ctx); err != nil {
		return err
	}
	return s.flushKeys(ctx)
}

// --- Cache helpers ---

func (s *CachedStore) cacheJSON(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func (s *CachedStore) readJSON(ctx context.Context, key string, v any) bool {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

// flushKeys drops every cached entity by prefix scan. Only used by Clear
// and Import, which are rare administrative operations.
func (s *CachedStore) flushKeys(ctx context.Context) error {
	for _, pattern := range []string{"wager:market:*", "wager:bet:*", "wager:user:*"} {
		iter := s.rdb.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			s.rdb.Del(ctx, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return err
		}
	}
	return nil
}

func marketKey(id string) string { return fmt.Sprintf("wager:market:%s", id) }
func betKey(id string) string    { return fmt.Sprintf("wager:bet:%s", id) }
func userKey(id string) string   { return fmt.Sprintf("wager:user:%s", id) }
