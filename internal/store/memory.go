package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oddsline/wager-engine/internal/apperr"
	"github.com/oddsline/wager-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing,
// development, and embedded single-process use. Not suitable for production
// services (no persistence).
type MemoryStore struct {
	mu      sync.RWMutex
	markets map[string]*model.Market
	bets    map[string]*model.Bet
	users   map[string]*model.User
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		markets: make(map[string]*model.Market),
		bets:    make(map[string]*model.Bet),
		users:   make(map[string]*model.User),
	}
}

// cloneMarket copies a market including its slices and metadata map, so
// callers can never mutate stored state through a returned pointer.
func cloneMarket(m *model.Market) *model.Market {
	c := *m
	c.Outcomes = append([]model.Outcome(nil), m.Outcomes...)
	if m.AllowedBettors != nil {
		c.AllowedBettors = append([]string(nil), m.AllowedBettors...)
	}
	if m.Metadata != nil {
		c.Metadata = make(map[string]string, len(m.Metadata))
		for k, v := range m.Metadata {
			c.Metadata[k] = v
		}
	}
	if m.ResolvedAt != nil {
		t := *m.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}

func (s *MemoryStore) CreateMarket(_ context.Context, m *model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.markets[m.ID]; exists {
		return apperr.New(apperr.CodeConflict, "market %s already exists", m.ID)
	}
	s.markets[m.ID] = cloneMarket(m)
	return nil
}

func (s *MemoryStore) GetMarket(_ context.Context, id string) (*model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[id]
	if !ok {
		return nil, apperr.New(apperr.CodeMarketNotFound, "market %s not found", id)
	}
	return cloneMarket(m), nil
}

func (s *MemoryStore) ListMarkets(_ context.Context) ([]model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	markets := make([]model.Market, 0, len(s.markets))
	for _, m := range s.markets {
		markets = append(markets, *cloneMarket(m))
	}
	return markets, nil
}

func (s *MemoryStore) UpdateMarket(_ context.Context, m *model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markets[m.ID]; !ok {
		return apperr.New(apperr.CodeMarketNotFound, "market %s not found", m.ID)
	}
	s.markets[m.ID] = cloneMarket(m)
	return nil
}

func (s *MemoryStore) DeleteMarket(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markets[id]; !ok {
		return apperr.New(apperr.CodeMarketNotFound, "market %s not found", id)
	}
	delete(s.markets, id)
	return nil
}

func (s *MemoryStore) SaveBet(_ context.Context, b *model.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *b
	s.bets[b.ID] = &copy
	return nil
}

func (s *MemoryStore) GetBet(_ context.Context, id string) (*model.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bets[id]
	if !ok {
		return nil, apperr.New(apperr.CodeBetNotFound, "bet %s not found", id)
	}
	copy := *b
	return &copy, nil
}

func (s *MemoryStore) ListBetsByMarket(_ context.Context, marketID string) ([]model.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Bet
	for _, b := range s.bets {
		if b.MarketID == marketID {
			result = append(result, *b)
		}
	}
	sortBetsByTime(result)
	return result, nil
}

func (s *MemoryStore) ListBetsByUser(_ context.Context, bettorID string) ([]model.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Bet
	for _, b := range s.bets {
		if b.BettorID == bettorID {
			result = append(result, *b)
		}
	}
	sortBetsByTime(result)
	return result, nil
}

func (s *MemoryStore) DeleteBet(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bets[id]; !ok {
		return apperr.New(apperr.CodeBetNotFound, "bet %s not found", id)
	}
	delete(s.bets, id)
	return nil
}

func (s *MemoryStore) SaveUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *u
	s.users[u.ID] = &copy
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperr.New(apperr.CodeUserNotFound, "user %s not found", id)
	}
	copy := *u
	return &copy, nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return apperr.New(apperr.CodeUserNotFound, "user %s not found", id)
	}
	delete(s.users, id)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.markets = make(map[string]*model.Market)
	s.bets = make(map[string]*model.Bet)
	s.users = make(map[string]*model.User)
	return nil
}

func (s *MemoryStore) Stats(_ context.Context) (model.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return model.StoreStats{
		Markets: len(s.markets),
		Bets:    len(s.bets),
		Users:   len(s.users),
	}, nil
}

func (s *MemoryStore) Export(_ context.Context) (*model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &model.Snapshot{
		Markets:    make([]model.Market, 0, len(s.markets)),
		Bets:       make([]model.Bet, 0, len(s.bets)),
		Users:      make([]model.User, 0, len(s.users)),
		ExportedAt: time.Now().UTC(),
	}
	for _, m := range s.markets {
		snap.Markets = append(snap.Markets, *cloneMarket(m))
	}
	for _, b := range s.bets {
		snap.Bets = append(snap.Bets, *b)
	}
	for _, u := range s.users {
		snap.Users = append(snap.Users, *u)
	}
	return snap, nil
}

func (s *MemoryStore) Import(_ context.Context, snap *model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.markets = make(map[string]*model.Market, len(snap.Markets))
	s.bets = make(map[string]*model.Bet, len(snap.Bets))
	s.users = make(map[string]*model.User, len(snap.Users))

	for i := range snap.Markets {
		s.markets[snap.Markets[i].ID] = cloneMarket(&snap.Markets[i])
	}
	for i := range snap.Bets {
		b := snap.Bets[i]
		s.bets[b.ID] = &b
	}
	for i := range snap.Users {
		u := snap.Users[i]
		s.users[u.ID] = &u
	}
	return nil
}

// sortBetsByTime orders bets oldest-first, with ID as a tiebreaker so
// listings are stable when timestamps collide.
func sortBetsByTime(bets []model.Bet) {
	sort.Slice(bets, func(i, j int) bool {
		if bets[i].CreatedAt.Equal(bets[j].CreatedAt) {
			return bets[i].ID < bets[j].ID
		}
		return bets[i].CreatedAt.Before(bets[j].CreatedAt)
	})
}
