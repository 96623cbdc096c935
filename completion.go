// Package gptbot is a conversation engine for text-completion models. It keeps
// a rolling transcript inside a fixed token budget, classifies completion
// failures, and retries transient ones with randomized exponential backoff.
package gptbot

import (
	"context"
)

// CompletionRequest is everything a provider needs for a single
// non-streaming, single-sample completion with no custom stop sequence.
type CompletionRequest struct {
	Prompt           string
	MaxTokens        int64
	Temperature      float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

// CompletionResponse is the generated text plus the usage the service
// reported for the call.
type CompletionResponse struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CompletionTime   float64
}

// CompletionProvider is the boundary to a remote text-completion service.
// Implementations return a *CompletionError for every failure they can
// classify.
type CompletionProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// CompletionProviderFunc adapts a function to CompletionProvider.
type CompletionProviderFunc func(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

// Complete calls f(ctx, req).
func (f CompletionProviderFunc) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	return f(ctx, req)
}
