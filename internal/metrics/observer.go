package metrics

import (
	"sync"

	"github.com/oddsline/wager-engine/internal/event"
	"github.com/oddsline/wager-engine/internal/model"
)

// ObserveEvents wires the engine's event registry into the Prometheus
// collectors. Returns the subscription ID.
//
// The observer tracks which markets it has seen open so the gauge stays
// exact when a market resolves or cancels without an intervening
// market:closed event.
func ObserveEvents(reg *event.Registry) int {
	var mu sync.Mutex
	open := make(map[string]bool)

	markNotOpen := func(id string) {
		mu.Lock()
		defer mu.Unlock()
		if open[id] {
			delete(open, id)
			OpenMarkets.Dec()
		}
	}

	return reg.SubscribeAll(func(ev event.Event) {
		switch ev.Kind {
		case event.BetPlaced:
			appID := ""
			if ev.Market != nil {
				appID = ev.Market.AppID
			}
			BetsTotal.WithLabelValues(appID).Inc()
			if ev.Bet != nil {
				BetAmount.Observe(ev.Bet.Amount.InexactFloat64())
			}
		case event.BetWon:
			PayoutsTotal.Add(ev.Amount.InexactFloat64())
		case event.BetRefunded:
			RefundsTotal.Inc()
		case event.MarketCreated:
			if ev.Market != nil {
				mu.Lock()
				open[ev.Market.ID] = true
				mu.Unlock()
				OpenMarkets.Inc()
			}
		case event.MarketClosed:
			if ev.Market != nil {
				markNotOpen(ev.Market.ID)
			}
		case event.MarketResolved:
			if ev.Market != nil {
				markNotOpen(ev.Market.ID)
			}
			MarketsSettledTotal.WithLabelValues(model.MarketResolved).Inc()
		case event.MarketCancelled:
			if ev.Market != nil {
				markNotOpen(ev.Market.ID)
			}
			MarketsSettledTotal.WithLabelValues(model.MarketCancelled).Inc()
		}
	})
}
