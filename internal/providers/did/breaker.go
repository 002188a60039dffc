package did

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"avatar/internal/infra"
)

// errServerStatus marks 5xx responses so the breaker counts them as failures.
var errServerStatus = errors.New("did: server error status")

// NewBreaker builds the circuit breaker that guards calls to the provider.
// Only transport errors and 5xx responses count against it; a cancelled
// caller does not.
func NewBreaker(name string, logger *infra.Logger) *gobreaker.CircuitBreaker {
	if logger == nil {
		logger = infra.NopLogger()
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("did: breaker state changed")
		},
	})
}
