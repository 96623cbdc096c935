package gptbot

import (
	"context"
	"sync"
)

// NoOpsResult is one scripted outcome of NoOpsCompletionProvider.
type NoOpsResult struct {
	Response CompletionResponse
	Err      error
}

// NoOpsCompletionProvider implements CompletionProvider without a remote
// service. It replays scripted outcomes, then falls back to a fixed
// response or error, and records every request it receives.
type NoOpsCompletionProvider struct {
	mu       sync.Mutex
	response CompletionResponse
	err      error
	script   []NoOpsResult
	requests []CompletionRequest
}

// NoOpsOption defines the function signature for option pattern.
type NoOpsOption func(*NoOpsCompletionProvider)

// WithResponse sets the fallback response.
func WithResponse(response CompletionResponse) NoOpsOption {
	return func(n *NoOpsCompletionProvider) {
		n.response = response
	}
}

// WithError makes every unscripted call fail with err.
func WithError(err error) NoOpsOption {
	return func(n *NoOpsCompletionProvider) {
		n.err = err
	}
}

// WithScript queues outcomes returned, in order, before the fallback.
func WithScript(results ...NoOpsResult) NoOpsOption {
	return func(n *NoOpsCompletionProvider) {
		n.script = append(n.script, results...)
	}
}

// NewNoOpsCompletionProvider creates a new NoOpsCompletionProvider with optional configurations.
func NewNoOpsCompletionProvider(opts ...NoOpsOption) *NoOpsCompletionProvider {
	provider := &NoOpsCompletionProvider{
		response: CompletionResponse{
			Text:             " Default NoOps response",
			PromptTokens:     10,
			CompletionTokens: 3,
			TotalTokens:      13,
			CompletionTime:   0.1,
		},
	}

	for _, opt := range opts {
		opt(provider)
	}

	return provider
}

// Complete implements the CompletionProvider interface.
func (n *NoOpsCompletionProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.requests = append(n.requests, req)

	if err := ctx.Err(); err != nil {
		return CompletionResponse{}, err
	}

	if len(n.script) > 0 {
		next := n.script[0]
		n.script = n.script[1:]
		return next.Response, next.Err
	}
	if n.err != nil {
		return CompletionResponse{}, n.err
	}
	return n.response, nil
}

// Calls returns how many times Complete was called.
func (n *NoOpsCompletionProvider) Calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return len(n.requests)
}

// Requests returns a copy of every request received.
func (n *NoOpsCompletionProvider) Requests() []CompletionRequest {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]CompletionRequest, len(n.requests))
	copy(out, n.requests)
	return out
}
