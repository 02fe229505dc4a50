package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consentgate_engine_transitions_total",
			Help: "State transitions taken by the consent engine.",
		},
		[]string{"from", "to"},
	)

	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consentgate_engine_submissions_total",
			Help: "Consent submission attempts by outcome.",
		},
		[]string{"outcome"},
	)

	configRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consentgate_engine_config_refresh_total",
			Help: "Configuration fetch attempts by outcome.",
		},
		[]string{"outcome"},
	)
)
