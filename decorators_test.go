package gptbot

import (
	"context"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func spanAttributes(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracingCompletionProvider(t *testing.T) {
	tests := []struct {
		name       string
		provider   *NoOpsCompletionProvider
		wantStatus codes.Code
		wantKind   string
	}{
		{
			name:       "success",
			provider:   NewNoOpsCompletionProvider(),
			wantStatus: codes.Unset,
		},
		{
			name:       "failure",
			provider:   NewNoOpsCompletionProvider(WithError(NewCompletionError(FailureRateLimited, "429", nil))),
			wantStatus: codes.Error,
			wantKind:   "rate_limited",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := tracetest.NewSpanRecorder()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
			ctx, parent := tp.Tracer("test").Start(context.Background(), "parent")

			traced := NewTracingCompletionProvider(tt.provider, "noop")
			_, err := traced.Complete(ctx, CompletionRequest{Prompt: "Human: hi\nAI: ", MaxTokens: 42})
			parent.End()

			spans := recorder.Ended()
			require.Len(t, spans, 2)
			span := spans[0]
			assert.Equal(t, "CompletionProvider.Complete", span.Name())
			assert.Equal(t, tt.wantStatus, span.Status().Code)

			attrs := spanAttributes(span)
			assert.Equal(t, "noop", attrs["provider"].AsString())
			assert.Equal(t, int64(42), attrs["max_tokens"].AsInt64())

			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, attrs["failure_kind"].AsString())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(13), attrs["total_tokens"].AsInt64())
		})
	}
}

func TestCircuitBreakerProvider_OpensOnTransientFailures(t *testing.T) {
	provider := NewNoOpsCompletionProvider(WithError(NewCompletionError(FailureServiceUnavailable, "503", nil)))
	breaker := NewCircuitBreakerProvider(provider, CircuitBreakerConfig{
		Name:                "test",
		ConsecutiveFailures: 2,
		OpenTimeout:         time.Hour,
	})

	for i := 0; i < 2; i++ {
		_, err := breaker.Complete(context.Background(), CompletionRequest{})
		assert.Equal(t, FailureServiceUnavailable, FailureKindOf(err))
	}
	assert.Equal(t, gobreaker.StateOpen, breaker.State())

	_, err := breaker.Complete(context.Background(), CompletionRequest{})
	assert.Equal(t, FailureServiceUnavailable, FailureKindOf(err))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, provider.Calls(), "open breaker must not call the service")
}

func TestCircuitBreakerProvider_IgnoresCallerErrors(t *testing.T) {
	provider := NewNoOpsCompletionProvider(WithError(NewCompletionError(FailureInvalidRequest, "400", nil)))
	breaker := NewCircuitBreakerProvider(provider, CircuitBreakerConfig{ConsecutiveFailures: 1})

	for i := 0; i < 3; i++ {
		_, err := breaker.Complete(context.Background(), CompletionRequest{})
		assert.Equal(t, FailureInvalidRequest, FailureKindOf(err))
	}
	assert.Equal(t, gobreaker.StateClosed, breaker.State())
	assert.Equal(t, 3, provider.Calls())
}

func TestCircuitBreakerProvider_Success(t *testing.T) {
	breaker := NewCircuitBreakerProvider(NewNoOpsCompletionProvider(), CircuitBreakerConfig{})

	resp, err := breaker.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, 13, resp.TotalTokens)
}

func TestRateLimitedProvider(t *testing.T) {
	provider := NewNoOpsCompletionProvider()
	limited := NewRateLimitedProvider(provider, 0.001, 1)

	_, err := limited.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = limited.Complete(ctx, CompletionRequest{})
	assert.Equal(t, FailureCanceled, FailureKindOf(err))

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = limited.Complete(ctx, CompletionRequest{})
	assert.Equal(t, FailureRateLimited, FailureKindOf(err), "a wait longer than the deadline fails fast")

	assert.Equal(t, 1, provider.Calls())
}
