// Package metrics exports client API call outcomes to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeSuccess     = "success"
	OutcomeError       = "error"
	OutcomeRateLimited = "rate_limited"
)

// Hook counts API calls by endpoint and outcome.
type Hook struct {
	requests *prometheus.CounterVec
}

// NewHook registers the request counter with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func NewHook(reg prometheus.Registerer) (*Hook, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	h := &Hook{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "twitterhub",
			Name:      "api_requests_total",
			Help:      "Twitter API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
	}
	if err := reg.Register(h.requests); err != nil {
		return nil, err
	}
	return h, nil
}

// Record matches twitter.ClientConfig.MetricsHook.
func (h *Hook) Record(endpoint string, success, rateLimited bool) {
	outcome := OutcomeError
	switch {
	case rateLimited:
		outcome = OutcomeRateLimited
	case success:
		outcome = OutcomeSuccess
	}
	h.requests.WithLabelValues(endpoint, outcome).Inc()
}

// Requests exposes the underlying counter.
func (h *Hook) Requests() *prometheus.CounterVec { return h.requests }
