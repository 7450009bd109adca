package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the auth client.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the stub gateway's /metrics endpoint can use it.
	Registry *prometheus.Registry

	gatewayRequests    *prometheus.CounterVec
	gatewayErrors      *prometheus.CounterVec
	submissions        *prometheus.CounterVec
	submissionDuration *prometheus.HistogramVec
	sessionStoreOps    *prometheus.CounterVec
}

// FlowSnapshot is a read-back of the submission counters, used by the CLI
// when running with --verbose.
type FlowSnapshot struct {
	LoginAttempts    float64
	LoginFailures    float64
	RegisterAttempts float64
	RegisterFailures float64
	GatewayErrors    float64
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		gatewayRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authclient_gateway_requests_total",
				Help: "Total requests to the auth gateway by operation and status.",
			},
			[]string{"operation", "status"},
		),
		gatewayErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authclient_gateway_errors_total",
				Help: "Total classified gateway errors by operation and kind.",
			},
			[]string{"operation", "kind"},
		),
		submissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authclient_submissions_total",
				Help: "Total flow submissions by flow and outcome.",
			},
			[]string{"flow", "outcome"},
		),
		submissionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authclient_submission_duration_seconds",
				Help:    "Duration of flow submissions.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"flow"},
		),
		sessionStoreOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authclient_session_store_ops_total",
				Help: "Session store operations by op and status.",
			},
			[]string{"op", "status"},
		),
	}
}

// IncrGatewayRequest counts a gateway call result ("ok" or "error").
func (m *Metrics) IncrGatewayRequest(operation, status string) {
	m.gatewayRequests.WithLabelValues(operation, status).Inc()
}

// IncrGatewayError counts a classified gateway error kind.
func (m *Metrics) IncrGatewayError(operation, kind string) {
	m.gatewayErrors.WithLabelValues(operation, kind).Inc()
}

// IncrSubmission counts a flow submission outcome.
func (m *Metrics) IncrSubmission(flow, outcome string) {
	m.submissions.WithLabelValues(flow, outcome).Inc()
}

// RecordSubmissionDuration records how long a submission took.
func (m *Metrics) RecordSubmissionDuration(flow string, d time.Duration) {
	m.submissionDuration.WithLabelValues(flow).Observe(d.Seconds())
}

// IncrSessionStoreOp counts a session store operation ("save"/"load"/"clear").
func (m *Metrics) IncrSessionStoreOp(op, status string) {
	m.sessionStoreOps.WithLabelValues(op, status).Inc()
}

// Snapshot returns the current submission counters.
func (m *Metrics) Snapshot() FlowSnapshot {
	loginAttempts := getCounterValue(m.submissions, "login", "authenticated") +
		getCounterValue(m.submissions, "login", "failed")
	registerAttempts := getCounterValue(m.submissions, "register", "authenticated") +
		getCounterValue(m.submissions, "register", "verification_pending") +
		getCounterValue(m.submissions, "register", "account_created_login_failed") +
		getCounterValue(m.submissions, "register", "failed")

	gatewayErrors := getCounterValue(m.gatewayRequests, "login", "error") +
		getCounterValue(m.gatewayRequests, "register", "error")

	return FlowSnapshot{
		LoginAttempts:    loginAttempts,
		LoginFailures:    getCounterValue(m.submissions, "login", "failed"),
		RegisterAttempts: registerAttempts,
		RegisterFailures: getCounterValue(m.submissions, "register", "failed"),
		GatewayErrors:    gatewayErrors,
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for the
// given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
