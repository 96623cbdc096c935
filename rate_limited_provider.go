package gptbot

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedProvider throttles calls to a completion service on the client
// side.
type RateLimitedProvider struct {
	provider CompletionProvider
	limiter  *rate.Limiter
}

// NewRateLimitedProvider allows requestsPerSecond calls with the given burst.
func NewRateLimitedProvider(provider CompletionProvider, requestsPerSecond float64, burst int) *RateLimitedProvider {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedProvider{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Complete implements CompletionProvider. A context that ends while waiting
// for a token yields FailureCanceled.
func (r *RateLimitedProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return CompletionResponse{}, NewCompletionError(FailureCanceled, "cancelled while waiting for rate limiter", ctx.Err())
		}
		return CompletionResponse{}, NewCompletionError(FailureRateLimited, err.Error(), err)
	}
	return r.provider.Complete(ctx, req)
}
