package gate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	blockedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consentgate_resources_blocked_total",
		Help: "Resources intercepted and queued, by category",
	}, []string{"category"})

	releasedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consentgate_resources_released_total",
		Help: "Queued resources reconstructed after consent, by category",
	}, []string{"category"})

	escapesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consentgate_gating_escapes_total",
		Help: "Subtree-inserted resources that may have executed before interception",
	}, []string{"category"})
)
