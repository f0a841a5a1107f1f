package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics groups the counters exported by the content machine. A nil *Metrics is a no-op.
type Metrics struct {
	registry     *prometheus.Registry
	completions  *prometheus.CounterVec
	transcripts  *prometheus.CounterVec
	publications *prometheus.CounterVec
}

// New registers the counters on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contentmachine",
			Name:      "completions_total",
			Help:      "Completion calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		transcripts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contentmachine",
			Name:      "transcripts_total",
			Help:      "Transcript acquisition attempts by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		publications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contentmachine",
			Name:      "publications_total",
			Help:      "Publication attempts by destination and outcome.",
		}, []string{"destination", "outcome"}),
	}
	m.registry.MustRegister(m.completions, m.transcripts, m.publications)
	return m
}

// Completion records one completion call.
func (m *Metrics) Completion(provider string, err error) {
	if m == nil {
		return
	}
	m.completions.WithLabelValues(provider, outcome(err)).Inc()
}

// Transcript records one transcript strategy attempt.
func (m *Metrics) Transcript(strategy string, err error) {
	if m == nil {
		return
	}
	m.transcripts.WithLabelValues(strategy, outcome(err)).Inc()
}

// Publication records one publication attempt.
func (m *Metrics) Publication(destination string, err error) {
	if m == nil {
		return
	}
	m.publications.WithLabelValues(destination, outcome(err)).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
