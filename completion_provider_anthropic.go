package gptbot

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

// AnthropicCompletionProvider implements the CompletionProvider interface
// using Anthropic's Messages API. The flat prompt is sent as a single user
// message and the model continues the open assistant turn.
//
// Anthropic has no frequency or presence penalty; those request fields are
// ignored. Temperature is clamped to Anthropic's [0, 1] range.
type AnthropicCompletionProvider struct {
	client AnthropicClientProvider
	model  anthropic.Model
}

// AnthropicProviderConfig holds the configuration options for creating an Anthropic provider.
type AnthropicProviderConfig struct {
	// Client is the AnthropicClientProvider implementation to use
	Client AnthropicClientProvider

	// Model specifies which Anthropic model to use (e.g., "claude-3-5-sonnet-20240620")
	Model anthropic.Model
}

// NewAnthropicCompletionProvider creates a new Anthropic provider with the specified configuration.
// If no model is specified, it defaults to Claude 3.5 Sonnet.
func NewAnthropicCompletionProvider(config AnthropicProviderConfig) *AnthropicCompletionProvider {
	if config.Model == "" {
		config.Model = anthropic.ModelClaude_3_5_Sonnet_20240620
	}

	return &AnthropicCompletionProvider{
		client: config.Client,
		model:  config.Model,
	}
}

func (p *AnthropicCompletionProvider) prepareMessageParams(req CompletionRequest) anthropic.MessageNewParams {
	temperature := req.Temperature
	if temperature > 1 {
		temperature = 1
	}

	return anthropic.MessageNewParams{
		Model:     anthropic.F(p.model),
		MaxTokens: anthropic.F(req.MaxTokens),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		}),
		Temperature: anthropic.Float(temperature),
	}
}

// Complete implements CompletionProvider.
func (p *AnthropicCompletionProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	startTime := time.Now()

	message, err := p.client.CreateMessage(ctx, p.prepareMessageParams(req))
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return CompletionResponse{}, classifyProviderError(err, apiErr.StatusCode, "")
		}
		return CompletionResponse{}, classifyProviderError(err, 0, "")
	}

	var text strings.Builder
	for _, block := range message.Content {
		if textBlock, ok := block.AsUnion().(anthropic.TextBlock); ok {
			text.WriteString(textBlock.Text)
		}
	}

	return CompletionResponse{
		Text:             text.String(),
		PromptTokens:     int(message.Usage.InputTokens),
		CompletionTokens: int(message.Usage.OutputTokens),
		TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
		CompletionTime:   time.Since(startTime).Seconds(),
	}, nil
}
