// Package event provides the typed publish/subscribe registry for domain
// events. Every Registry is owned by one engine instance — there is no
// package-level bus. Dispatch is synchronous and in subscription order, so
// the per-bet / market:resolved ordering the engine promises holds for
// subscribers too.
package event

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oddsline/wager-engine/internal/model"
)

// Kind names a domain event.
type Kind string

const (
	MarketCreated   Kind = "market:created"
	MarketUpdated   Kind = "market:updated"
	MarketClosed    Kind = "market:closed"
	MarketResolved  Kind = "market:resolved"
	MarketCancelled Kind = "market:cancelled"

	BetPlaced    Kind = "bet:placed"
	BetConfirmed Kind = "bet:confirmed"
	BetWon       Kind = "bet:won"
	BetLost      Kind = "bet:lost"
	BetRefunded  Kind = "bet:refunded"

	UserCreated        Kind = "user:created"
	UserBalanceChanged Kind = "user:balance_changed"
)

// Event is a discriminated payload: Kind says which entity pointers and
// fields are populated. Market events carry Market; bet events carry Bet
// (and Market where the engine has it loaded); user events carry User and,
// for balance changes, the signed Amount applied.
type Event struct {
	Kind      Kind            `json:"kind"`
	Market    *model.Market   `json:"market,omitempty"`
	Bet       *model.Bet      `json:"bet,omitempty"`
	User      *model.User     `json:"user,omitempty"`
	Amount    decimal.Decimal `json:"amount,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	EmittedAt time.Time       `json:"emitted_at"`
}

// Handler receives dispatched events.
type Handler func(Event)

type subscription struct {
	id      int
	kind    Kind // empty = all kinds
	once    bool
	handler Handler
}

// Registry is the observer registry. The zero value is not usable; call
// NewRegistry.
type Registry struct {
	mu     sync.Mutex
	nextID int
	subs   []subscription
}

// NewRegistry creates an empty event registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Subscribe registers a handler for one event kind and returns a
// subscription ID for Unsubscribe.
func (r *Registry) Subscribe(kind Kind, h Handler) int {
	return r.add(kind, h, false)
}

// Once registers a handler that fires at most once for the given kind.
func (r *Registry) Once(kind Kind, h Handler) int {
	return r.add(kind, h, true)
}

// SubscribeAll registers a wildcard handler that receives every event.
func (r *Registry) SubscribeAll(h Handler) int {
	return r.add("", h, false)
}

// Unsubscribe removes a subscription by ID. Unknown IDs are ignored.
func (r *Registry) Unsubscribe(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.subs {
		if r.subs[i].id == id {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			return
		}
	}
}

// Emit dispatches an event to all matching subscribers synchronously.
// Handlers must not call back into the registry's Subscribe/Unsubscribe
// from another goroutine while relying on Emit ordering.
func (r *Registry) Emit(ev Event) {
	if ev.EmittedAt.IsZero() {
		ev.EmittedAt = time.Now().UTC()
	}

	r.mu.Lock()
	matched := make([]subscription, 0, len(r.subs))
	kept := r.subs[:0]
	for _, s := range r.subs {
		if s.kind == "" || s.kind == ev.Kind {
			matched = append(matched, s)
			if s.once {
				continue // consumed
			}
		}
		kept = append(kept, s)
	}
	r.subs = kept
	r.mu.Unlock()

	for _, s := range matched {
		s.handler(ev)
	}
}

func (r *Registry) add(kind Kind, h Handler, once bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.subs = append(r.subs, subscription{id: r.nextID, kind: kind, once: once, handler: h})
	return r.nextID
}
