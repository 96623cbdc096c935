package gptbot

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClientProvider defines the interface for interacting with OpenAI's API.
// This interface abstracts the essential operations used by OpenAICompletionProvider.
type OpenAIClientProvider interface {
	// CreateCompletion creates a new text completion using OpenAI's API.
	CreateCompletion(ctx context.Context, params openai.CompletionNewParams) (*openai.Completion, error)
}

// OpenAIClient implements the OpenAIClientProvider interface using OpenAI's official SDK.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a new instance of OpenAIClient with the provided API key
// and optional client options. SDK retries are disabled; pass
// option.WithMaxRetries to override.
//
// Example usage:
//
//	// Basic usage with API key
//	client := NewOpenAIClient("your-api-key")
//
//	// Usage with custom HTTP client
//	httpClient := &http.Client{Timeout: 30 * time.Second}
//	client := NewOpenAIClient(
//	    "your-api-key",
//	    option.WithHTTPClient(httpClient),
//	)
func NewOpenAIClient(apiKey string, opts ...option.RequestOption) *OpenAIClient {
	opts = append([]option.RequestOption{option.WithMaxRetries(0)}, opts...)
	opts = append(opts, option.WithAPIKey(apiKey))
	return &OpenAIClient{
		client: openai.NewClient(opts...),
	}
}

// CreateCompletion implements the OpenAIClientProvider interface using the OpenAI client.
func (c *OpenAIClient) CreateCompletion(ctx context.Context, params openai.CompletionNewParams) (*openai.Completion, error) {
	return c.client.Completions.New(ctx, params)
}
