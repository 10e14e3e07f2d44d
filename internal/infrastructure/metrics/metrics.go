package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/garyjia/doc-lifecycle/internal/application/port"
	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
)

var (
	durationBuckets     = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}
	httpDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
)

// Metrics holds the Prometheus instruments of the lifecycle engine
type Metrics struct {
	TransitionsTotal   *prometheus.CounterVec
	TransitionDuration *prometheus.HistogramVec
	ActivationsTotal   *prometheus.CounterVec
	ActivationDuration prometheus.Histogram

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var _ port.TransitionRecorder = (*Metrics)(nil)

// New creates and registers all instruments with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifecycle_transitions_total",
			Help: "Transition requests by subject type, action and outcome.",
		}, []string{"subject_type", "action", "outcome"}),
		TransitionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lifecycle_transition_duration_seconds",
			Help:    "Time spent in a transition including its unit of work.",
			Buckets: durationBuckets,
		}, []string{"subject_type"}),
		ActivationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifecycle_version_activations_total",
			Help: "Quote version activations by outcome.",
		}, []string{"outcome"}),
		ActivationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lifecycle_version_activation_duration_seconds",
			Help:    "Time spent activating a quote version.",
			Buckets: durationBuckets,
		}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifecycle_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lifecycle_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.TransitionsTotal,
		m.TransitionDuration,
		m.ActivationsTotal,
		m.ActivationDuration,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

// ObserveTransition implements port.TransitionRecorder
func (m *Metrics) ObserveTransition(subjectType entity.SubjectType, action, outcome string, elapsed time.Duration) {
	m.TransitionsTotal.WithLabelValues(subjectType.String(), action, outcome).Inc()
	m.TransitionDuration.WithLabelValues(subjectType.String()).Observe(elapsed.Seconds())
}

// ObserveActivation implements port.TransitionRecorder
func (m *Metrics) ObserveActivation(outcome string, elapsed time.Duration) {
	m.ActivationsTotal.WithLabelValues(outcome).Inc()
	m.ActivationDuration.Observe(elapsed.Seconds())
}

// RecordHTTPRequest records one served request. route is the matched
// pattern, not the raw path.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
