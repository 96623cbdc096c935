package gptbot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoOpsCompletionProvider(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name     string
		opts     []NoOpsOption
		wantText []string
		wantErr  []error
	}{
		{
			name:     "default response",
			wantText: []string{" Default NoOps response", " Default NoOps response"},
			wantErr:  []error{nil, nil},
		},
		{
			name:     "custom response",
			opts:     []NoOpsOption{WithResponse(CompletionResponse{Text: "custom"})},
			wantText: []string{"custom"},
			wantErr:  []error{nil},
		},
		{
			name:     "error fallback",
			opts:     []NoOpsOption{WithError(boom)},
			wantText: []string{""},
			wantErr:  []error{boom},
		},
		{
			name: "script then fallback",
			opts: []NoOpsOption{
				WithScript(NoOpsResult{Err: boom}, NoOpsResult{Response: CompletionResponse{Text: "second"}}),
			},
			wantText: []string{"", "second", " Default NoOps response"},
			wantErr:  []error{boom, nil, nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := NewNoOpsCompletionProvider(tt.opts...)
			for i := range tt.wantText {
				resp, err := provider.Complete(context.Background(), CompletionRequest{Prompt: "p"})
				assert.Equal(t, tt.wantText[i], resp.Text)
				assert.Equal(t, tt.wantErr[i], err)
			}
			assert.Equal(t, len(tt.wantText), provider.Calls())
		})
	}
}

func TestNoOpsCompletionProvider_CanceledContext(t *testing.T) {
	provider := NewNoOpsCompletionProvider()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := provider.Complete(ctx, CompletionRequest{Prompt: "p"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, provider.Calls())
}

func TestCompletionProviderFunc(t *testing.T) {
	var got CompletionRequest
	provider := CompletionProviderFunc(func(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
		got = req
		return CompletionResponse{Text: "ok"}, nil
	})

	resp, err := provider.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, "hi", got.Prompt)
}
