package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerCountsRuns(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("stock:alert_scan").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("stock:alert_scan").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("stock:alert_scan", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("stock:alert_scan", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("stock:alert_scan")))
}

func TestGaugesAndNilSafety(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.SetCriticalItems(4)
	m.SetCriticalItems(2)
	m.AddPurgedKeys(7)
	m.AddPurgedKeys(-1)
	require.Equal(t, 2.0, testutil.ToFloat64(m.criticalItems))
	require.Equal(t, 7.0, testutil.ToFloat64(m.purgedKeys))

	var nilMetrics *Metrics
	nilMetrics.SetCriticalItems(1)
	require.NoError(t, nilMetrics.Track("x").End(nil))
}
