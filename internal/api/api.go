// Package api exposes the wager engine over HTTP (chi) and streams domain
// events to WebSocket clients. It owns the apperr→status mapping; handlers
// stay thin over the engine facade.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/oddsline/wager-engine/internal/apperr"
	"github.com/oddsline/wager-engine/internal/engine"
	"github.com/oddsline/wager-engine/internal/model"
	"github.com/oddsline/wager-engine/internal/parimutuel"
)

// Handler bundles the engine facade with its HTTP surface.
type Handler struct {
	svc *engine.Service
	hub *Hub // optional WebSocket hub; nil disables the event feed
}

// NewHandler creates the HTTP handler set. Pass nil for hub if the
// WebSocket event feed is not needed.
func NewHandler(svc *engine.Service, hub *Hub) *Handler {
	return &Handler{svc: svc, hub: hub}
}

// Routes mounts all endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	if h.hub != nil {
		r.Get("/ws", h.hub.HandleWS)
	}

	r.Get("/markets", h.ListMarkets)
	r.Post("/markets", h.CreateMarket)
	r.Get("/markets/{marketID}", h.GetMarket)
	r.Get("/markets/{marketID}/odds", h.GetOdds)
	r.Get("/markets/{marketID}/bets", h.MarketBets)
	r.Get("/markets/{marketID}/stats", h.MarketStats)
	r.Get("/markets/{marketID}/payout", h.PotentialPayout)
	r.Post("/markets/{marketID}/close", h.CloseMarket)
	r.Post("/markets/{marketID}/resolve", h.ResolveMarket)
	r.Post("/markets/{marketID}/cancel", h.CancelMarket)
	r.Post("/markets/close-expired", h.CloseExpired)

	r.Post("/bets", h.PlaceBet)
	r.Get("/bets/{betID}", h.GetBet)

	r.Get("/users/{userID}", h.GetUser)
	r.Get("/users/{userID}/bets", h.UserBets)
	r.Post("/users/{userID}/funds", h.AddFunds)
	r.Get("/users/{userID}/kelly", h.KellyStake)

	r.Get("/snapshot", h.ExportSnapshot)
	r.Put("/snapshot", h.ImportSnapshot)
}

// --- Market handlers ---

// CreateMarket handles POST /api/v1/markets.
func (h *Handler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var in engine.CreateMarketInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperr.New(apperr.CodeInvalidInput, "invalid request body"))
		return
	}

	market, err := h.svc.CreateMarket(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, market)
}

// GetMarket handles GET /api/v1/markets/{marketID}.
func (h *Handler) GetMarket(w http.ResponseWriter, r *http.Request) {
	market, err := h.svc.GetMarket(r.Context(), chi.URLParam(r, "marketID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, market)
}

// ListMarkets handles GET /api/v1/markets with optional ?status= and
// ?app_id= filters.
func (h *Handler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	filter := engine.MarketFilter{
		Status: r.URL.Query().Get("status"),
		AppID:  r.URL.Query().Get("app_id"),
	}
	markets, err := h.svc.ListMarkets(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if markets == nil {
		markets = []model.Market{}
	}
	writeJSON(w, http.StatusOK, markets)
}

// GetOdds handles GET /api/v1/markets/{marketID}/odds?format=decimal|american|fractional.
func (h *Handler) GetOdds(w http.ResponseWriter, r *http.Request) {
	market, err := h.svc.GetMarket(r.Context(), chi.URLParam(r, "marketID"))
	if err != nil {
		writeError(w, err)
		return
	}

	format := parimutuel.OddsFormat(r.URL.Query().Get("format"))

	type oddsEntry struct {
		OutcomeID   string          `json:"outcome_id"`
		Label       string          `json:"label"`
		Odds        decimal.Decimal `json:"odds"`
		Display     string          `json:"display"`
		Probability decimal.Decimal `json:"probability"`
	}
	entries := make([]oddsEntry, 0, len(market.Outcomes))
	for _, o := range market.Outcomes {
		entries = append(entries, oddsEntry{
			OutcomeID:   o.ID,
			Label:       o.Label,
			Odds:        o.Odds,
			Display:     parimutuel.FormatOdds(o.Odds, format),
			Probability: o.Probability,
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

// CloseMarket handles POST /api/v1/markets/{marketID}/close.
func (h *Handler) CloseMarket(w http.ResponseWriter, r *http.Request) {
	market, err := h.svc.CloseMarket(r.Context(), chi.URLParam(r, "marketID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, market)
}

// ResolveMarket handles POST /api/v1/markets/{marketID}/resolve.
func (h *Handler) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	var body struct {
		WinningOutcomeID string `json:"winning_outcome_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperr.New(apperr.CodeInvalidInput, "invalid request body"))
		return
	}

	market, err := h.svc.ResolveMarket(r.Context(), engine.ResolveMarketInput{
		MarketID:         chi.URLParam(r, "marketID"),
		WinningOutcomeID: body.WinningOutcomeID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, market)
}

// CancelMarket handles POST /api/v1/markets/{marketID}/cancel.
func (h *Handler) CancelMarket(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body) // reason is optional
	}

	market, err := h.svc.CancelMarket(r.Context(), chi.URLParam(r, "marketID"), body.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, market)
}

// CloseExpired handles POST /api/v1/markets/close-expired.
func (h *Handler) CloseExpired(w http.ResponseWriter, r *http.Request) {
	closed, err := h.svc.CheckAndCloseExpiredMarkets(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if closed == nil {
		closed = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"closed": closed})
}

// MarketBets handles GET /api/v1/markets/{marketID}/bets.
func (h *Handler) MarketBets(w http.ResponseWriter, r *http.Request) {
	bets, err := h.svc.BetsByMarket(r.Context(), chi.URLParam(r, "marketID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if bets == nil {
		bets = []model.Bet{}
	}
	writeJSON(w, http.StatusOK, bets)
}

// MarketStats handles GET /api/v1/markets/{marketID}/stats.
func (h *Handler) MarketStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.MarketStats(r.Context(), chi.URLParam(r, "marketID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// PotentialPayout handles GET /api/v1/markets/{marketID}/payout?outcome_id=&amount=.
func (h *Handler) PotentialPayout(w http.ResponseWriter, r *http.Request) {
	outcomeID := r.URL.Query().Get("outcome_id")
	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil || !amount.IsPositive() {
		writeError(w, apperr.New(apperr.CodeInvalidInput, "amount must be a positive decimal"))
		return
	}

	payout, err := h.svc.PotentialPayout(r.Context(), chi.URLParam(r, "marketID"), outcomeID, amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]decimal.Decimal{"potential_payout": payout})
}

// --- Bet handlers ---

// PlaceBet handles POST /api/v1/bets.
func (h *Handler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var in engine.PlaceBetInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperr.New(apperr.CodeInvalidInput, "invalid request body"))
		return
	}

	bet, err := h.svc.PlaceBet(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bet)
}

// GetBet handles GET /api/v1/bets/{betID}.
func (h *Handler) GetBet(w http.ResponseWriter, r *http.Request) {
	bet, err := h.svc.GetBet(r.Context(), chi.URLParam(r, "betID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

// --- User handlers ---

// GetUser handles GET /api/v1/users/{userID}.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UserBets handles GET /api/v1/users/{userID}/bets.
func (h *Handler) UserBets(w http.ResponseWriter, r *http.Request) {
	bets, err := h.svc.BetsByUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if bets == nil {
		bets = []model.Bet{}
	}
	writeJSON(w, http.StatusOK, bets)
}

// AddFunds handles POST /api/v1/users/{userID}/funds.
func (h *Handler) AddFunds(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperr.New(apperr.CodeInvalidInput, "invalid request body"))
		return
	}

	user, err := h.svc.AddFunds(r.Context(), chi.URLParam(r, "userID"), body.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// KellyStake handles GET /api/v1/users/{userID}/kelly?probability=&odds=&fraction=.
// Bankroll is the user's current balance.
func (h *Handler) KellyStake(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	probability, err := decimal.NewFromString(q.Get("probability"))
	if err != nil {
		writeError(w, apperr.New(apperr.CodeInvalidInput, "probability must be a decimal"))
		return
	}
	odds, err := decimal.NewFromString(q.Get("odds"))
	if err != nil {
		writeError(w, apperr.New(apperr.CodeInvalidInput, "odds must be a decimal"))
		return
	}
	fraction := decimal.NewFromInt(1)
	if f := q.Get("fraction"); f != "" {
		fraction, err = decimal.NewFromString(f)
		if err != nil {
			writeError(w, apperr.New(apperr.CodeInvalidInput, "fraction must be a decimal"))
			return
		}
	}

	stake := parimutuel.Kelly(probability, odds, user.Balance, fraction)
	writeJSON(w, http.StatusOK, map[string]decimal.Decimal{"stake": stake, "bankroll": user.Balance})
}

// --- Snapshot handlers ---

// ExportSnapshot handles GET /api/v1/snapshot.
func (h *Handler) ExportSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Export(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ImportSnapshot handles PUT /api/v1/snapshot, replacing all stored state.
func (h *Handler) ImportSnapshot(w http.ResponseWriter, r *http.Request) {
	var snap model.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		writeError(w, apperr.New(apperr.CodeInvalidInput, "invalid snapshot body"))
		return
	}
	if err := h.svc.Import(r.Context(), &snap); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps apperr codes to HTTP statuses and writes the structured
// error body.
func writeError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)

	status := http.StatusInternalServerError
	switch code {
	case apperr.CodeInvalidConfig, apperr.CodeInvalidInput:
		status = http.StatusBadRequest
	case apperr.CodeMarketNotFound, apperr.CodeBetNotFound,
		apperr.CodeUserNotFound, apperr.CodeOutcomeNotFound:
		status = http.StatusNotFound
	case apperr.CodeConflict:
		status = http.StatusConflict
	case apperr.CodeInsufficientBalance:
		status = http.StatusPaymentRequired
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"code":  string(code),
		"error": err.Error(),
	})
}
