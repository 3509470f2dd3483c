package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vorn/vorn/internal/models"
)

// Metrics groups all Prometheus instruments used by the service. Each
// instance owns its registry so tests and embedded servers do not collide.
type Metrics struct {
	registry *prometheus.Registry

	FilesProcessed     *prometheus.CounterVec
	RowsProcessed      prometheus.Counter
	RuleHits           *prometheus.CounterVec
	ComplianceScore    prometheus.Histogram
	ProcessingDuration prometheus.Histogram
	PersistenceErrors  prometheus.Counter
	Explanations       *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		FilesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Files processed by outcome.",
		}, []string{"result"}),
		RowsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_processed_total",
			Help:      "Rows evaluated against the rule catalog.",
		}),
		RuleHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_hits_total",
			Help:      "Rows on which a rule fired, by rule id.",
		}, []string{"rule_id"}),
		ComplianceScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compliance_score",
			Help:      "File compliance score distribution.",
			Buckets:   []float64{10, 25, 50, 75, 90, 95, 100},
		}),
		ProcessingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_duration_ms",
			Help:      "Time to evaluate one file in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		}),
		PersistenceErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_errors_total",
			Help:      "Failed attempts to store a processed file.",
		}),
		Explanations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "explanations_total",
			Help:      "Explanations served by source.",
		}, []string{"source"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}
}

// ObserveFile records a processed file. A nil result counts as an error.
func (m *Metrics) ObserveFile(res *models.FileResult, d time.Duration) {
	if res == nil {
		m.FilesProcessed.WithLabelValues("error").Inc()
		return
	}
	m.FilesProcessed.WithLabelValues("ok").Inc()
	m.RowsProcessed.Add(float64(res.TotalRows))
	m.ComplianceScore.Observe(float64(res.ComplianceScore))
	m.ProcessingDuration.Observe(float64(d.Milliseconds()))
	for _, s := range res.RulesSummary {
		if s.AffectedRows > 0 {
			m.RuleHits.WithLabelValues(s.RuleID).Add(float64(s.AffectedRows))
		}
	}
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
