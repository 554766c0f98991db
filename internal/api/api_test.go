package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/oddsline/wager-engine/internal/engine"
	"github.com/oddsline/wager-engine/internal/model"
	"github.com/oddsline/wager-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func newTestRouter() chi.Router {
	svc := engine.NewService(store.NewMemoryStore(), engine.Config{
		StartingBalance: d(1000),
		DefaultFeeRate:  d(0.05),
	})
	h := NewHandler(svc, nil)

	r := chi.NewRouter()
	r.Route("/api/v1", h.Routes)
	return r
}

func do(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %s: %v", rec.Body.String(), err)
	}
	return v
}

func createTestMarket(t *testing.T, router chi.Router) model.Market {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/v1/markets", map[string]any{
		"app_id":    "app_test",
		"question":  "Will it rain tomorrow?",
		"outcomes":  []string{"Yes", "No"},
		"closes_at": time.Now().Add(time.Hour).Format(time.RFC3339),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create market: status %d: %s", rec.Code, rec.Body.String())
	}
	return decode[model.Market](t, rec)
}

func errCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["code"]
}

func TestCreateMarketEndpoint(t *testing.T) {
	router := newTestRouter()

	m := createTestMarket(t, router)
	if m.ID == "" || m.Status != model.MarketOpen {
		t.Fatalf("unexpected market: %+v", m)
	}
	if len(m.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(m.Outcomes))
	}
	// Default fee applied when the request has none.
	if !m.FeeRate.Equal(d(0.05)) {
		t.Errorf("expected default fee 0.05, got %s", m.FeeRate)
	}
}

func TestCreateMarketEndpoint_Invalid(t *testing.T) {
	router := newTestRouter()

	rec := do(t, router, http.MethodPost, "/api/v1/markets", map[string]any{
		"question":  "q",
		"outcomes":  []string{"only one"},
		"closes_at": time.Now().Add(time.Hour).Format(time.RFC3339),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errCode(t, rec); code != "INVALID_CONFIG" {
		t.Errorf("expected INVALID_CONFIG, got %s", code)
	}
}

func TestGetMarketEndpoint_NotFound(t *testing.T) {
	router := newTestRouter()

	rec := do(t, router, http.MethodGet, "/api/v1/markets/mkt_missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if code := errCode(t, rec); code != "MARKET_NOT_FOUND" {
		t.Errorf("expected MARKET_NOT_FOUND, got %s", code)
	}
}

func TestBetLifecycleEndpoints(t *testing.T) {
	router := newTestRouter()
	m := createTestMarket(t, router)
	yes := m.Outcomes[0].ID

	rec := do(t, router, http.MethodPost, "/api/v1/bets", map[string]any{
		"market_id": m.ID, "bettor_id": "alice", "outcome_id": yes, "amount": "100",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("place bet: status %d: %s", rec.Code, rec.Body.String())
	}
	bet := decode[model.Bet](t, rec)
	if bet.Status != model.BetConfirmed {
		t.Errorf("expected confirmed bet, got %s", bet.Status)
	}

	rec = do(t, router, http.MethodGet, "/api/v1/bets/"+bet.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get bet: status %d", rec.Code)
	}

	rec = do(t, router, http.MethodGet, "/api/v1/markets/"+m.ID+"/bets", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("market bets: status %d", rec.Code)
	}
	if bets := decode[[]model.Bet](t, rec); len(bets) != 1 {
		t.Fatalf("expected 1 bet, got %d", len(bets))
	}

	rec = do(t, router, http.MethodGet, "/api/v1/users/alice/bets", nil)
	if bets := decode[[]model.Bet](t, rec); len(bets) != 1 {
		t.Fatalf("expected 1 user bet, got %d", len(bets))
	}

	// Debit is visible through the user endpoint.
	rec = do(t, router, http.MethodGet, "/api/v1/users/alice", nil)
	user := decode[model.User](t, rec)
	if !user.Balance.Equal(d(900)) {
		t.Errorf("expected balance 900, got %s", user.Balance)
	}
}

func TestPlaceBetEndpoint_InsufficientBalance(t *testing.T) {
	router := newTestRouter()
	m := createTestMarket(t, router)

	rec := do(t, router, http.MethodPost, "/api/v1/bets", map[string]any{
		"market_id": m.ID, "bettor_id": "alice", "outcome_id": m.Outcomes[0].ID, "amount": "5000",
	})
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d: %s", rec.Code, rec.Body.String())
	}
	if code := errCode(t, rec); code != "INSUFFICIENT_BALANCE" {
		t.Errorf("expected INSUFFICIENT_BALANCE, got %s", code)
	}
}

func TestOddsEndpoint(t *testing.T) {
	router := newTestRouter()
	m := createTestMarket(t, router)

	rec := do(t, router, http.MethodGet, "/api/v1/markets/"+m.ID+"/odds", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("odds: status %d", rec.Code)
	}
	type oddsEntry struct {
		OutcomeID string `json:"outcome_id"`
		Display   string `json:"display"`
	}
	entries := decode[[]oddsEntry](t, rec)
	if len(entries) != 2 {
		t.Fatalf("expected 2 odds entries, got %d", len(entries))
	}
	if entries[0].Display != "2.00" {
		t.Errorf("expected uniform prior display 2.00, got %s", entries[0].Display)
	}

	rec = do(t, router, http.MethodGet, "/api/v1/markets/"+m.ID+"/odds?format=american", nil)
	entries = decode[[]oddsEntry](t, rec)
	if entries[0].Display != "+100" {
		t.Errorf("expected american display +100, got %s", entries[0].Display)
	}
}

func TestResolveEndpoint(t *testing.T) {
	router := newTestRouter()
	m := createTestMarket(t, router)
	yes := m.Outcomes[0].ID

	rec := do(t, router, http.MethodPost, "/api/v1/markets/"+m.ID+"/resolve", map[string]any{
		"winning_outcome_id": yes,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve: status %d: %s", rec.Code, rec.Body.String())
	}
	resolved := decode[model.Market](t, rec)
	if resolved.Status != model.MarketResolved {
		t.Errorf("expected resolved, got %s", resolved.Status)
	}

	rec = do(t, router, http.MethodPost, "/api/v1/markets/"+m.ID+"/resolve", map[string]any{
		"winning_outcome_id": yes,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on double resolve, got %d", rec.Code)
	}
	if code := errCode(t, rec); code != "CONFLICT" {
		t.Errorf("expected CONFLICT, got %s", code)
	}
}

func TestCancelEndpoint(t *testing.T) {
	router := newTestRouter()
	m := createTestMarket(t, router)

	rec := do(t, router, http.MethodPost, "/api/v1/markets/"+m.ID+"/cancel", map[string]any{
		"reason": "event postponed",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: status %d: %s", rec.Code, rec.Body.String())
	}
	cancelled := decode[model.Market](t, rec)
	if cancelled.Status != model.MarketCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.Metadata["cancel_reason"] != "event postponed" {
		t.Errorf("expected reason recorded, got %q", cancelled.Metadata["cancel_reason"])
	}
}

func TestCloseEndpoints(t *testing.T) {
	router := newTestRouter()
	m := createTestMarket(t, router)

	rec := do(t, router, http.MethodPost, "/api/v1/markets/"+m.ID+"/close", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("close: status %d", rec.Code)
	}
	rec = do(t, router, http.MethodPost, "/api/v1/markets/"+m.ID+"/close", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on double close, got %d", rec.Code)
	}

	rec = do(t, router, http.MethodPost, "/api/v1/markets/close-expired", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("close-expired: status %d", rec.Code)
	}
	body := decode[map[string][]string](t, rec)
	if body["closed"] == nil {
		t.Error("expected closed list present even when empty")
	}
}

func TestPotentialPayoutEndpoint(t *testing.T) {
	router := newTestRouter()
	m := createTestMarket(t, router)
	yes := m.Outcomes[0].ID

	rec := do(t, router, http.MethodGet,
		"/api/v1/markets/"+m.ID+"/payout?outcome_id="+yes+"&amount=100", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("payout: status %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[map[string]decimal.Decimal](t, rec)
	// First bet in an empty pool with the 5% default fee: 95 back.
	if !body["potential_payout"].Equal(d(95)) {
		t.Errorf("expected 95, got %s", body["potential_payout"])
	}

	rec = do(t, router, http.MethodGet, "/api/v1/markets/"+m.ID+"/payout?outcome_id="+yes+"&amount=nope", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad amount, got %d", rec.Code)
	}
}

func TestUserFundsAndKellyEndpoints(t *testing.T) {
	router := newTestRouter()

	rec := do(t, router, http.MethodPost, "/api/v1/users/alice/funds", map[string]any{"amount": "500"})
	if rec.Code != http.StatusOK {
		t.Fatalf("add funds: status %d: %s", rec.Code, rec.Body.String())
	}
	user := decode[model.User](t, rec)
	if !user.Balance.Equal(d(1500)) {
		t.Errorf("expected 1500 after lazy create plus credit, got %s", user.Balance)
	}

	rec = do(t, router, http.MethodPost, "/api/v1/users/alice/funds", map[string]any{"amount": "-5"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative amount, got %d", rec.Code)
	}

	// p=0.6 at even odds on a 1500 bankroll: full Kelly stakes 300.
	rec = do(t, router, http.MethodGet, "/api/v1/users/alice/kelly?probability=0.6&odds=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("kelly: status %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[map[string]decimal.Decimal](t, rec)
	if !body["stake"].Equal(d(300)) {
		t.Errorf("expected stake 300, got %s", body["stake"])
	}

	rec = do(t, router, http.MethodGet, "/api/v1/users/nobody/kelly?probability=0.6&odds=2", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", rec.Code)
	}
}

func TestSnapshotEndpoints(t *testing.T) {
	router := newTestRouter()
	m := createTestMarket(t, router)

	rec := do(t, router, http.MethodGet, "/api/v1/snapshot", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: status %d", rec.Code)
	}
	snap := decode[model.Snapshot](t, rec)
	if len(snap.Markets) != 1 {
		t.Fatalf("expected 1 market in snapshot, got %d", len(snap.Markets))
	}

	// Importing into a fresh engine restores the market.
	fresh := newTestRouter()
	rec = do(t, fresh, http.MethodPut, "/api/v1/snapshot", snap)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("import: status %d: %s", rec.Code, rec.Body.String())
	}
	rec = do(t, fresh, http.MethodGet, "/api/v1/markets/"+m.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected imported market retrievable, got %d", rec.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	router := newTestRouter()
	m := createTestMarket(t, router)

	rec := do(t, router, http.MethodPost, "/api/v1/bets", map[string]any{
		"market_id": m.ID, "bettor_id": "alice", "outcome_id": m.Outcomes[0].ID, "amount": "100",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("bet: status %d", rec.Code)
	}

	rec = do(t, router, http.MethodGet, "/api/v1/markets/"+m.ID+"/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: status %d", rec.Code)
	}
	stats := decode[model.MarketStats](t, rec)
	if stats.BetCount != 1 || stats.BettorCount != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if !stats.TotalPool.Equal(d(100)) {
		t.Errorf("expected pool 100, got %s", stats.TotalPool)
	}
}
