package gptbot

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/shaharia-lab/gptbot/observability"
)

// CircuitBreakerConfig configures NewCircuitBreakerProvider.
type CircuitBreakerConfig struct {
	// Name identifies the breaker in logs.
	Name string
	// ConsecutiveFailures opens the breaker. Defaults to 5.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before a trial call. Defaults to 30s.
	OpenTimeout time.Duration
	// HalfOpenRequests is the number of trial calls allowed while half-open. Defaults to 1.
	HalfOpenRequests uint32
	Logger           observability.Logger
}

// CircuitBreakerProvider stops calling a failing completion service for a
// while. Calls made while the breaker is open fail fast with
// FailureServiceUnavailable, which the conversation's retry loop treats like
// any other outage.
//
// Only retryable failures count against the breaker.
type CircuitBreakerProvider struct {
	provider CompletionProvider
	breaker  *gobreaker.CircuitBreaker[CompletionResponse]
}

// NewCircuitBreakerProvider wraps provider with a circuit breaker.
func NewCircuitBreakerProvider(provider CompletionProvider, config CircuitBreakerConfig) *CircuitBreakerProvider {
	if config.ConsecutiveFailures == 0 {
		config.ConsecutiveFailures = 5
	}
	if config.OpenTimeout == 0 {
		config.OpenTimeout = 30 * time.Second
	}
	if config.HalfOpenRequests == 0 {
		config.HalfOpenRequests = 1
	}
	if config.Logger == nil {
		config.Logger = observability.NewNullLogger()
	}
	logger := config.Logger

	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.HalfOpenRequests,
		Timeout:     config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(map[string]interface{}{"breaker": name}).
				Warnf("circuit breaker state changed from %s to %s", from, to)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !FailureKindOf(err).Retryable()
		},
	}

	return &CircuitBreakerProvider{
		provider: provider,
		breaker:  gobreaker.NewCircuitBreaker[CompletionResponse](settings),
	}
}

// Complete implements CompletionProvider.
func (c *CircuitBreakerProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	resp, err := c.breaker.Execute(func() (CompletionResponse, error) {
		return c.provider.Complete(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return CompletionResponse{}, NewCompletionError(FailureServiceUnavailable, "completion service circuit is open", err)
	}
	return resp, err
}

// State returns the breaker's current state.
func (c *CircuitBreakerProvider) State() gobreaker.State {
	return c.breaker.State()
}
