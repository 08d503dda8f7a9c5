package uploader

import (
	"github.com/sony/gobreaker"

	"influxrelay/internal/logger"
	"influxrelay/internal/metrics"
)

// NewCircuitBreaker creates the breaker that guards delivery attempts. It
// opens once at least MaxFailures attempts were made in the current
// interval and 60% of them failed.
func NewCircuitBreaker(cfg BreakerConfig, log *logger.Logger, m *metrics.Metrics) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MaxFailures && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Info("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String())

			if m == nil {
				return
			}
			m.RecordBreakerState(to.String())
			if to == gobreaker.StateOpen {
				m.RecordBreakerTripped()
			}
		},
	})
}
