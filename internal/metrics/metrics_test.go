package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.IncrementViolationsCreated("high")
	m.IncrementViolationsCreated("high")
	m.IncrementBillsPaid()
	m.IncrementNotificationFailures("overdue_reminder")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ViolationsCreated.WithLabelValues("high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BillsPaid))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationFailures.WithLabelValues("overdue_reminder")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementViolationsCreated("low")
		m.IncrementViolationTransition("resolved")
		m.IncrementBillRefresh("created")
		m.IncrementBillsPaid()
		m.IncrementBillsOverdue()
		m.ObserveSweep("ok", time.Second)
		m.IncrementNotificationFailures("violation_notice")
		m.ObserveScoreRecalc(time.Millisecond)
		m.ObserveHTTPRequest("GET", "/health", "200", time.Millisecond)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.IncrementBillsOverdue()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "covenant_bills_overdue_total 1")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
