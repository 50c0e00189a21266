// Package metrics exposes Prometheus counters for report ingest and the
// Sentry tunnel.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Envelope results recorded by the Sentry tunnel.
const (
	EnvelopeForwarded = "forwarded"
	EnvelopeRejected  = "rejected"
	EnvelopeMalformed = "malformed"
	EnvelopeFailed    = "upstream_error"
)

// Metrics holds the service's collectors on a private registry, so several
// instances (one per test) never collide on registration.
//
// Metrics:
//   - reporter_reports_submitted_total{project,level}
//   - reporter_reports_rejected_total{reason}
//   - reporter_scrub_requests_total
//   - reporter_sentry_envelopes_total{result}
//
// Methods are safe on a nil *Metrics, which records nothing.
type Metrics struct {
	registry *prometheus.Registry

	reportsSubmitted *prometheus.CounterVec
	reportsRejected  *prometheus.CounterVec
	scrubRequests    prometheus.Counter
	envelopes        *prometheus.CounterVec
}

// New creates the collectors together with the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		reportsSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reporter_reports_submitted_total",
				Help: "Reports scrubbed and stored",
			},
			[]string{"project", "level"},
		),
		reportsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reporter_reports_rejected_total",
				Help: "Report submissions that were not stored",
			},
			[]string{"reason"}, // "invalid", "too_large", "internal"
		),
		scrubRequests: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "reporter_scrub_requests_total",
				Help: "Dry-run scrub requests served",
			},
		),
		envelopes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reporter_sentry_envelopes_total",
				Help: "Browser Sentry envelopes handled by the tunnel",
			},
			[]string{"result"},
		),
	}
}

// ReportSubmitted counts a stored report.
func (m *Metrics) ReportSubmitted(project, level string) {
	if m == nil {
		return
	}
	m.reportsSubmitted.WithLabelValues(project, level).Inc()
}

// ReportRejected counts a submission that failed for reason.
func (m *Metrics) ReportRejected(reason string) {
	if m == nil {
		return
	}
	m.reportsRejected.WithLabelValues(reason).Inc()
}

// ScrubRequested counts a dry-run scrub.
func (m *Metrics) ScrubRequested() {
	if m == nil {
		return
	}
	m.scrubRequests.Inc()
}

// Envelope counts a tunnel envelope by result.
func (m *Metrics) Envelope(result string) {
	if m == nil {
		return
	}
	m.envelopes.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
