package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersByOutcome(t *testing.T) {
	m := New()
	m.Publication("medium", nil)
	m.Publication("medium", errors.New("boom"))
	m.Publication("devto", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.publications.WithLabelValues("medium", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.publications.WithLabelValues("medium", OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.publications.WithLabelValues("devto", OutcomeSuccess)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Completion("azure", nil)
	m.Transcript("captions", nil)
	m.Publication("github", nil)
	assert.NotNil(t, m.Handler())
}
