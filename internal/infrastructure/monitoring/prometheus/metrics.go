// Package prometheus registers the engine's metrics and serves the scrape
// endpoint.
package prometheus

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the engine records into.
type Metrics struct {
	registry *prom.Registry

	// HTTP layer.
	HTTPRequestsTotal   *prom.CounterVec
	HTTPRequestDuration *prom.HistogramVec

	// Sweep.
	SweepRunsTotal       prom.Counter
	SweepDuration        prom.Histogram
	SweepTransitions     *prom.CounterVec
	SweepRemindersFired  prom.Counter
	SweepDeadlinesOpen   prom.Gauge
	SweepErrorsTotal     prom.Counter

	// Risk.
	RiskRecomputeTotal    prom.Counter
	RiskRecomputeDuration prom.Histogram
	RiskScoreValue        *prom.GaugeVec

	// Persistence.
	DBQueryDuration *prom.HistogramVec
}

var defaultDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prom.NewRegistry()
	reg.MustRegister(prom.NewGoCollector())

	m := &Metrics{registry: reg}

	m.HTTPRequestsTotal = prom.NewCounterVec(prom.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests.",
	}, []string{"method", "path", "status_code"})
	m.HTTPRequestDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration.",
		Buckets: defaultDurationBuckets,
	}, []string{"method", "path"})

	m.SweepRunsTotal = prom.NewCounter(prom.CounterOpts{
		Name: "sweep_runs_total",
		Help: "Completed sweep passes.",
	})
	m.SweepDuration = prom.NewHistogram(prom.HistogramOpts{
		Name:    "sweep_duration_seconds",
		Help:    "Duration of one sweep pass.",
		Buckets: defaultDurationBuckets,
	})
	m.SweepTransitions = prom.NewCounterVec(prom.CounterOpts{
		Name: "sweep_transitions_total",
		Help: "Time-driven deadline transitions applied by sweeps.",
	}, []string{"to_status"})
	m.SweepRemindersFired = prom.NewCounter(prom.CounterOpts{
		Name: "sweep_reminders_fired_total",
		Help: "Reminder signals dispatched by sweeps.",
	})
	m.SweepDeadlinesOpen = prom.NewGauge(prom.GaugeOpts{
		Name: "sweep_deadlines_open",
		Help: "Open deadlines examined by the last sweep.",
	})
	m.SweepErrorsTotal = prom.NewCounter(prom.CounterOpts{
		Name: "sweep_errors_total",
		Help: "Per-deadline sweep failures.",
	})

	m.RiskRecomputeTotal = prom.NewCounter(prom.CounterOpts{
		Name: "risk_recompute_total",
		Help: "Batch risk recomputation runs.",
	})
	m.RiskRecomputeDuration = prom.NewHistogram(prom.HistogramOpts{
		Name:    "risk_recompute_duration_seconds",
		Help:    "Duration of one batch risk recomputation.",
		Buckets: []float64{.1, .5, 1, 5, 15, 60, 300},
	})
	m.RiskScoreValue = prom.NewGaugeVec(prom.GaugeOpts{
		Name: "risk_score_value",
		Help: "Current composite risk score per site.",
	}, []string{"site_id", "score_type"})

	m.DBQueryDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Database query duration.",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
	}, []string{"query"})

	reg.MustRegister(
		m.HTTPRequestsTotal, m.HTTPRequestDuration,
		m.SweepRunsTotal, m.SweepDuration, m.SweepTransitions,
		m.SweepRemindersFired, m.SweepDeadlinesOpen, m.SweepErrorsTotal,
		m.RiskRecomputeTotal, m.RiskRecomputeDuration, m.RiskScoreValue,
		m.DBQueryDuration,
	)
	return m
}

// Handler returns the scrape handler bound to this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
