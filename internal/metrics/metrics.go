package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides observability for the scoring, fining and billing engine.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Violations created, by severity
	ViolationsCreated *prometheus.CounterVec

	// Violation status changes, by target status
	ViolationTransitions *prometheus.CounterVec

	// Monthly bill refreshes, by outcome ("created", "refreshed", "frozen")
	BillRefreshes *prometheus.CounterVec

	BillsPaid    prometheus.Counter
	BillsOverdue prometheus.Counter

	// Sweep runs, by result ("ok", "partial", "canceled", "error")
	SweepRuns     *prometheus.CounterVec
	SweepDuration prometheus.Histogram

	// Notification failures, by kind ("violation_notice", "overdue_reminder")
	NotificationFailures *prometheus.CounterVec

	ScoreRecalcDuration prometheus.Histogram

	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates a Metrics instance registered on a fresh registry that also
// carries the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry registers every metric on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ViolationsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "covenant_violations_created_total",
			Help: "Total violations recorded, by severity",
		}, []string{"severity"}),

		ViolationTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "covenant_violation_transitions_total",
			Help: "Total violation status changes, by target status",
		}, []string{"to"}),

		BillRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "covenant_bill_refreshes_total",
			Help: "Current-month bill refreshes, by outcome",
		}, []string{"outcome"}),

		BillsPaid: f.NewCounter(prometheus.CounterOpts{
			Name: "covenant_bills_paid_total",
			Help: "Total bills marked paid",
		}),

		BillsOverdue: f.NewCounter(prometheus.CounterOpts{
			Name: "covenant_bills_overdue_total",
			Help: "Total bills moved to overdue by the sweep",
		}),

		SweepRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "covenant_overdue_sweep_runs_total",
			Help: "Overdue sweep runs, by result",
		}, []string{"result"}),

		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "covenant_overdue_sweep_duration_seconds",
			Help:    "Duration of one overdue sweep",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),

		NotificationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "covenant_notification_failures_total",
			Help: "Notifications that could not be delivered, by kind",
		}, []string{"kind"}),

		ScoreRecalcDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "covenant_score_recalc_duration_seconds",
			Help:    "Duration of one property score recalculation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}),

		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "covenant_http_request_duration_seconds",
			Help:    "HTTP request latency, by method, route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// IncrementViolationsCreated records a new violation.
func (m *Metrics) IncrementViolationsCreated(severity string) {
	if m != nil {
		m.ViolationsCreated.WithLabelValues(severity).Inc()
	}
}

// IncrementViolationTransition records a violation status change.
func (m *Metrics) IncrementViolationTransition(to string) {
	if m != nil {
		m.ViolationTransitions.WithLabelValues(to).Inc()
	}
}

// IncrementBillRefresh records the outcome of one current-bill upsert.
func (m *Metrics) IncrementBillRefresh(outcome string) {
	if m != nil {
		m.BillRefreshes.WithLabelValues(outcome).Inc()
	}
}

// IncrementBillsPaid records a paid bill.
func (m *Metrics) IncrementBillsPaid() {
	if m != nil {
		m.BillsPaid.Inc()
	}
}

// IncrementBillsOverdue records a bill aged into overdue.
func (m *Metrics) IncrementBillsOverdue() {
	if m != nil {
		m.BillsOverdue.Inc()
	}
}

// ObserveSweep records one sweep run.
func (m *Metrics) ObserveSweep(result string, d time.Duration) {
	if m != nil {
		m.SweepRuns.WithLabelValues(result).Inc()
		m.SweepDuration.Observe(d.Seconds())
	}
}

// IncrementNotificationFailures records an undelivered notification.
func (m *Metrics) IncrementNotificationFailures(kind string) {
	if m != nil {
		m.NotificationFailures.WithLabelValues(kind).Inc()
	}
}

// ObserveScoreRecalc records the duration of a score recalculation.
func (m *Metrics) ObserveScoreRecalc(d time.Duration) {
	if m != nil {
		m.ScoreRecalcDuration.Observe(d.Seconds())
	}
}

// ObserveHTTPRequest records one served request.
func (m *Metrics) ObserveHTTPRequest(method, route, status string, d time.Duration) {
	if m != nil {
		m.HTTPRequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
	}
}
