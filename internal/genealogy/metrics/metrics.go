package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the genealogy core: request flow,
// consistency findings and collaborator failures.
type Metrics struct {
	RequestsSubmitted     *prometheus.CounterVec
	RequestsResolved      *prometheus.CounterVec
	ConsistencyViolations *prometheus.CounterVec
	NotificationFailures  prometheus.Counter
	PendingRequests       prometheus.Gauge
}

// New registers the genealogy metrics on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "famtree_requests_submitted_total",
			Help: "Administrative requests submitted, by request type",
		}, []string{"type"}),
		RequestsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "famtree_requests_resolved_total",
			Help: "Administrative requests resolved, by request type and decision",
		}, []string{"type", "decision"}),
		ConsistencyViolations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "famtree_consistency_violations_total",
			Help: "Advisory consistency violations reported by the verifier, by check",
		}, []string{"check"}),
		NotificationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "famtree_notification_failures_total",
			Help: "Notifications the messaging collaborator failed to accept",
		}),
		PendingRequests: factory.NewGauge(prometheus.GaugeOpts{
			Name: "famtree_pending_requests",
			Help: "Requests currently awaiting administrator resolution",
		}),
	}
}

// IncrementSubmitted records a newly pending request.
func (m *Metrics) IncrementSubmitted(requestType string) {
	if m != nil {
		m.RequestsSubmitted.WithLabelValues(requestType).Inc()
	}
}

// IncrementResolved records a resolution outcome.
func (m *Metrics) IncrementResolved(requestType, decision string) {
	if m != nil {
		m.RequestsResolved.WithLabelValues(requestType, decision).Inc()
	}
}

// IncrementViolation records one verifier finding.
func (m *Metrics) IncrementViolation(check string) {
	if m != nil {
		m.ConsistencyViolations.WithLabelValues(check).Inc()
	}
}

// IncrementNotificationFailure records a failed send.
func (m *Metrics) IncrementNotificationFailure() {
	if m != nil {
		m.NotificationFailures.Inc()
	}
}

// SetPending publishes the size of the pending set.
func (m *Metrics) SetPending(n int) {
	if m != nil {
		m.PendingRequests.Set(float64(n))
	}
}
