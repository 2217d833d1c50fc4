package app

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "github.com/odyssey-erp/odyssey-supplies/testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PG_DSN", "postgres://localhost/supplies_test")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 3, cfg.LedgerMaxRetries)
	require.Equal(t, 120, cfg.RateLimitPerMin)
	require.Equal(t, "0 * * * *", cfg.AlertScanCron)
	require.Equal(t, 168*time.Hour, cfg.IdempotencyRetention)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsNegativeRetries(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LEDGER_MAX_RETRIES", "-1")

	_, err := LoadConfig()
	require.ErrorContains(t, err, "LEDGER_MAX_RETRIES")
}

func TestInTestModeFromImport(t *testing.T) {
	RefreshTestMode()
	require.True(t, InTestMode())
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, &Config{LogFormat: "json", LogLevel: "warn"})
	logger.Info("hidden")
	logger.Warn("shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"msg":"shown"`)
}

func TestRouterHealthAndReadiness(t *testing.T) {
	failing := ReadinessCheck{Name: "redis", Check: func(context.Context) error { return errors.New("dial tcp: refused") }}
	router := NewRouter(RouterParams{
		Config:    &Config{RateLimitPerMin: 100},
		Readiness: []ReadinessCheck{{Name: "postgres", Check: func(context.Context) error { return nil }}, failing},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.JSONEq(t, `{"postgres":"ok","redis":"dial tcp: refused"}`, rec.Body.String())
}
