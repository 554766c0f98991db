package event

import (
	"testing"

	"github.com/oddsline/wager-engine/internal/model"
)

func TestSubscribeReceivesMatchingKind(t *testing.T) {
	r := NewRegistry()

	var got []Kind
	r.Subscribe(BetPlaced, func(ev Event) {
		got = append(got, ev.Kind)
	})

	r.Emit(Event{Kind: BetPlaced})
	r.Emit(Event{Kind: MarketCreated})
	r.Emit(Event{Kind: BetPlaced})

	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	r := NewRegistry()

	var got []Kind
	r.SubscribeAll(func(ev Event) {
		got = append(got, ev.Kind)
	})

	r.Emit(Event{Kind: MarketCreated})
	r.Emit(Event{Kind: BetPlaced})
	r.Emit(Event{Kind: MarketResolved})

	want := []Kind{MarketCreated, BetPlaced, MarketResolved}
	if len(got) != len(want) {
		t.Fatalf("expected %d deliveries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivery %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestOnceFiresExactlyOnce(t *testing.T) {
	r := NewRegistry()

	count := 0
	r.Once(MarketResolved, func(Event) { count++ })

	r.Emit(Event{Kind: MarketResolved})
	r.Emit(Event{Kind: MarketResolved})

	if count != 1 {
		t.Errorf("expected once handler to fire exactly once, got %d", count)
	}
}

func TestOnceIgnoresOtherKinds(t *testing.T) {
	r := NewRegistry()

	count := 0
	r.Once(MarketResolved, func(Event) { count++ })

	// A non-matching emit must not consume the subscription.
	r.Emit(Event{Kind: BetPlaced})
	r.Emit(Event{Kind: MarketResolved})

	if count != 1 {
		t.Errorf("expected once handler to survive non-matching emits, got %d", count)
	}
}

func TestUnsubscribe(t *testing.T) {
	r := NewRegistry()

	count := 0
	id := r.Subscribe(BetPlaced, func(Event) { count++ })

	r.Emit(Event{Kind: BetPlaced})
	r.Unsubscribe(id)
	r.Emit(Event{Kind: BetPlaced})

	if count != 1 {
		t.Errorf("expected 1 delivery after unsubscribe, got %d", count)
	}

	// Unknown IDs are a no-op.
	r.Unsubscribe(9999)
}

func TestEmitSetsEmittedAt(t *testing.T) {
	r := NewRegistry()

	var seen Event
	r.SubscribeAll(func(ev Event) { seen = ev })

	r.Emit(Event{Kind: UserCreated, User: &model.User{ID: "usr_1"}})

	if seen.EmittedAt.IsZero() {
		t.Error("expected EmittedAt to be stamped on emit")
	}
	if seen.User == nil || seen.User.ID != "usr_1" {
		t.Error("expected user payload to pass through")
	}
}

func TestDispatchOrderFollowsSubscriptionOrder(t *testing.T) {
	r := NewRegistry()

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		r.Subscribe(BetPlaced, func(Event) { order = append(order, i) })
	}

	r.Emit(Event{Kind: BetPlaced})

	for i, got := range order {
		if got != i {
			t.Fatalf("expected subscription order preserved, got %v", order)
		}
	}
}
