package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
)

func TestNew_RegistersInstruments(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	// Vectors only show up once a series exists
	m.ObserveTransition(entity.SubjectQuote, "SUBMIT", "applied", time.Millisecond)
	m.ObserveActivation("applied", time.Millisecond)
	m.RecordHTTPRequest("GET", "/health", 200, time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"lifecycle_transitions_total",
		"lifecycle_transition_duration_seconds",
		"lifecycle_version_activations_total",
		"lifecycle_version_activation_duration_seconds",
		"lifecycle_http_requests_total",
		"lifecycle_http_request_duration_seconds",
	} {
		assert.True(t, names[want], "missing %s", want)
	}
}

func TestObserveTransition(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveTransition(entity.SubjectPayment, "CONFIRM", "applied", 2*time.Millisecond)
	m.ObserveTransition(entity.SubjectPayment, "CONFIRM", "applied", 3*time.Millisecond)
	m.ObserveTransition(entity.SubjectPayment, "CONFIRM", "unauthorized", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("PAYMENT", "CONFIRM", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("PAYMENT", "CONFIRM", "unauthorized")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.TransitionDuration))
}

func TestObserveActivation(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveActivation("applied", time.Millisecond)
	m.ObserveActivation("noop", time.Millisecond)
	m.ObserveActivation("noop", time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActivationsTotal.WithLabelValues("applied")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ActivationsTotal.WithLabelValues("noop")))
}

func TestRecordHTTPRequest_UnmatchedRoute(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordHTTPRequest("GET", "", 404, time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}
