package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsHandlerExposesPrometheusMetrics(t *testing.T) {
	body := scrape(t, NewMetrics())
	require.Contains(t, body, "odyssey_supplies_purchases_total 0")
	require.Contains(t, body, "go_goroutines")
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `odyssey_supplies_http_requests_total{code="418",route="/test"} 1`)
	require.Contains(t, body, `odyssey_supplies_http_request_duration_seconds_bucket{route="/test"`)
}

func TestLedgerCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveConsumption("committed")
	metrics.ObserveConsumption("committed")
	metrics.ObserveConsumption("insufficient_stock")
	metrics.ObservePurchase()

	body := scrape(t, metrics)
	require.Contains(t, body, `odyssey_supplies_consumptions_total{outcome="committed"} 2`)
	require.Contains(t, body, `odyssey_supplies_consumptions_total{outcome="insufficient_stock"} 1`)
	require.Contains(t, body, "odyssey_supplies_purchases_total 1")
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveConsumption("committed")
	m.ObservePurchase()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
