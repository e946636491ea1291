package actor

import (
	"errors"
	"time"

	"github.com/berfenger/rfxcom2mqtt/internal/config"

	"github.com/sony/gobreaker"
)

const BREAKER_INTERVAL = 60 * time.Second

func newBreaker(name string, cfg config.SinkConfig) *gobreaker.CircuitBreaker {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 1
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: BREAKER_INTERVAL,
		Timeout:  cfg.BreakerOpen(),
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
	})
}

func breakerRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
