package remote

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consentgate_remote_requests_total",
		Help: "Remote authority calls by operation and outcome",
	}, []string{"op", "outcome"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consentgate_remote_retries_total",
		Help: "Retry attempts by operation",
	}, []string{"op"})
)
