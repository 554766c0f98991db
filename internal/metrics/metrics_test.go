package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/markets/{marketID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Different entity IDs must collapse onto one pattern label, otherwise
	// the label set grows with every market ever requested.
	counter := HTTPRequestsTotal.WithLabelValues("GET", "/markets/{marketID}", "200")
	before := testutil.ToFloat64(counter)

	for _, path := range []string{"/markets/mkt_aaa", "/markets/mkt_bbb"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s: status %d", path, rec.Code)
		}
	}

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("expected 2 requests under the pattern label, got %v", got)
	}
	for _, raw := range []string{"/markets/mkt_aaa", "/markets/mkt_bbb"} {
		if n := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", raw, "200")); n != 0 {
			t.Errorf("raw path %s leaked into the label set (%v)", raw, n)
		}
	}
}

func TestMiddleware_CapturesStatus(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/missing", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	counter := HTTPRequestsTotal.WithLabelValues("GET", "/missing", "404")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("expected status 404 recorded, got delta %v", got)
	}
}
