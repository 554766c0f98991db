// Package metrics provides Prometheus instrumentation for the wager engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BetsTotal counts bets placed, partitioned by terminal status once known.
	BetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wager_bets_total",
		Help: "Total number of bets placed",
	}, []string{"app_id"})

	// BetAmount observes stake sizes.
	BetAmount = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wager_bet_amount",
		Help:    "Bet stake amounts",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
	})

	// OpenMarkets tracks the number of markets currently accepting bets.
	OpenMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wager_open_markets",
		Help: "Number of currently open markets",
	})

	// MarketsSettledTotal counts markets reaching a terminal state.
	MarketsSettledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wager_markets_settled_total",
		Help: "Markets resolved or cancelled",
	}, []string{"status"})

	// PayoutsTotal accumulates distributed payout value.
	PayoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wager_payouts_total",
		Help: "Cumulative payout value distributed to winners",
	})

	// RefundsTotal counts refunded bets (cancellations and no-winner pools).
	RefundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wager_refunds_total",
		Help: "Total number of refunded bets",
	})

	// WebSocketClients tracks connected event-feed clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wager_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wager_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wager_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Label with the chi route pattern ("/markets/{marketID}") rather
		// than the raw path, which embeds entity IDs and would grow the
		// label set without bound. The pattern is only populated after the
		// router has matched, so it is read post-ServeHTTP.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				path = p
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
