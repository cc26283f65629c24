// Package breaker wraps PriceSource calls in a circuit breaker so a flaky
// upstream feed fails fast instead of hanging every diagnose() call,
// grounded on the teacher's
// internal/infrastructure/providers/circuitbreakers.go.
package breaker

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// PriceSourceBreaker wraps a single named upstream with a gobreaker.
type PriceSourceBreaker struct {
	cb *gobreaker.CircuitBreaker
}

// Config mirrors the teacher's CircuitBreakerConfig shape, trimmed to what
// a single PriceSource call needs.
type Config struct {
	Name                string
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// DefaultConfig is a sane default for a single daily-closes upstream call.
func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// New builds a PriceSourceBreaker from Config.
func New(cfg Config) *PriceSourceBreaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
	}
	return &PriceSourceBreaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn through the breaker. A tripped breaker returns
// gobreaker.ErrOpenState wrapped with the breaker's name, which callers
// surface as a PriceSourceError per §7.
func (b *PriceSourceBreaker) Execute(_ context.Context, fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		return nil, fmt.Errorf("breaker %s: %w", b.cb.Name(), err)
	}
	return result, nil
}

// State returns the current breaker state name, exposed on the health
// endpoint.
func (b *PriceSourceBreaker) State() string {
	return b.cb.State().String()
}
