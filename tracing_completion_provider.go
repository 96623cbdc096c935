package gptbot

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/shaharia-lab/gptbot/observability"
)

// TracingCompletionProvider implements the decorator pattern for tracing
type TracingCompletionProvider struct {
	provider CompletionProvider
	name     string
}

// NewTracingCompletionProvider creates a new tracing decorator for any
// CompletionProvider. name is recorded as the provider attribute.
func NewTracingCompletionProvider(provider CompletionProvider, name string) *TracingCompletionProvider {
	return &TracingCompletionProvider{
		provider: provider,
		name:     name,
	}
}

// Complete implements CompletionProvider with added tracing
func (t *TracingCompletionProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	ctx, span := observability.StartSpan(ctx, "CompletionProvider.Complete")
	defer span.End()

	span.SetAttributes(
		attribute.String(observability.ProviderField, t.name),
		attribute.Int("prompt_length", len(req.Prompt)),
		attribute.Int64("max_tokens", req.MaxTokens),
		attribute.Float64("temperature", req.Temperature),
		attribute.Float64("frequency_penalty", req.FrequencyPenalty),
		attribute.Float64("presence_penalty", req.PresencePenalty),
	)

	response, err := t.provider.Complete(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(observability.FailureKindField, FailureKindOf(err).String()))
		return CompletionResponse{}, err
	}

	span.SetAttributes(
		attribute.Int("prompt_tokens", response.PromptTokens),
		attribute.Int("completion_tokens", response.CompletionTokens),
		attribute.Int("total_tokens", response.TotalTokens),
		attribute.Float64("completion_time", response.CompletionTime),
	)

	return response, nil
}
