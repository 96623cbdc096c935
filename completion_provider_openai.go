package gptbot

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
)

// OpenAICompletionProvider implements the CompletionProvider interface using
// OpenAI's legacy text completions endpoint, which takes the flat prompt as is.
type OpenAICompletionProvider struct {
	client OpenAIClientProvider
	model  openai.CompletionNewParamsModel
}

// OpenAIProviderConfig holds configuration for OpenAI provider.
type OpenAIProviderConfig struct {
	// Client is the OpenAIClientProvider implementation to use
	Client OpenAIClientProvider
	// Model specifies which OpenAI completion model to use (e.g., "gpt-3.5-turbo-instruct")
	Model openai.CompletionNewParamsModel
}

// NewOpenAICompletionProvider creates a new OpenAI provider with the specified configuration.
// If no model is specified, it defaults to gpt-3.5-turbo-instruct.
//
// Example usage:
//
//	provider := NewOpenAICompletionProvider(OpenAIProviderConfig{
//	    Client: NewOpenAIClient("your-api-key"),
//	})
func NewOpenAICompletionProvider(config OpenAIProviderConfig) *OpenAICompletionProvider {
	if config.Model == "" {
		config.Model = openai.CompletionNewParamsModelGPT3_5TurboInstruct
	}

	return &OpenAICompletionProvider{
		client: config.Client,
		model:  config.Model,
	}
}

// createCompletionParams creates OpenAI API parameters from a completion request.
// One sample, no stop sequence, no streaming.
func (p *OpenAICompletionProvider) createCompletionParams(req CompletionRequest) openai.CompletionNewParams {
	return openai.CompletionNewParams{
		Model:            openai.F(p.model),
		Prompt:           openai.F[openai.CompletionNewParamsPromptUnion](shared.UnionString(req.Prompt)),
		MaxTokens:        openai.Int(req.MaxTokens),
		Temperature:      openai.Float(req.Temperature),
		FrequencyPenalty: openai.Float(req.FrequencyPenalty),
		PresencePenalty:  openai.Float(req.PresencePenalty),
		N:                openai.Int(1),
	}
}

// Complete implements CompletionProvider.
func (p *OpenAICompletionProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	startTime := time.Now()

	completion, err := p.client.CreateCompletion(ctx, p.createCompletionParams(req))
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return CompletionResponse{}, classifyProviderError(err, apiErr.StatusCode, apiErr.Message)
		}
		return CompletionResponse{}, classifyProviderError(err, 0, "")
	}

	if len(completion.Choices) == 0 {
		return CompletionResponse{}, &CompletionError{Kind: FailureAPIError, Message: "no choices in response"}
	}

	return CompletionResponse{
		Text:             completion.Choices[0].Text,
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
		TotalTokens:      int(completion.Usage.TotalTokens),
		CompletionTime:   time.Since(startTime).Seconds(),
	}, nil
}
