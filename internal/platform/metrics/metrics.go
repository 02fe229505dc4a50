package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics of the authority server.
type Metrics struct {
	ConsentsRecorded   *prometheus.CounterVec
	OTPChallenges      *prometheus.CounterVec
	AgeSessionsCreated prometheus.Counter
	RequestDuration    *prometheus.HistogramVec
}

// New creates all authority metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics on reg. Tests pass a fresh registry so
// fixtures do not collide.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ConsentsRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "consentgate_authority_consents_recorded_total",
			Help: "Consent records written, by status.",
		}, []string{"status"}),
		OTPChallenges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "consentgate_authority_otp_challenges_total",
			Help: "OTP challenges by phase and outcome.",
		}, []string{"phase", "outcome"}),
		AgeSessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "consentgate_authority_age_sessions_created_total",
			Help: "Age verification sessions created.",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "consentgate_authority_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
