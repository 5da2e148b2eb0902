package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerSettings configures the circuit around the provider call.
type BreakerSettings struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:                "checkout-provider",
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
	}
}

// Breaker trips after repeated provider failures so that further attempts fail
// fast. One Breaker is shared by every session talking to the same provider.
type Breaker struct {
	cb *gobreaker.CircuitBreaker[*reply]
}

func NewBreaker(settings BreakerSettings, logger *zap.Logger) *Breaker {
	threshold := settings.ConsecutiveFailures
	if threshold == 0 {
		threshold = 1
	}
	return &Breaker{
		cb: gobreaker.NewCircuitBreaker[*reply](gobreaker.Settings{
			Name:        settings.Name,
			MaxRequests: 1,
			Timeout:     settings.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			// a shopper abandoning the request says nothing about the provider
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("checkout breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}),
	}
}

func (b *Breaker) State() string {
	return b.cb.State().String()
}

func (b *Breaker) execute(fn func() (*reply, error)) (*reply, error) {
	if b == nil {
		return fn()
	}
	return b.cb.Execute(fn)
}
