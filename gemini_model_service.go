package gptbot

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiModelService defines the interface for interacting with the Gemini model
type GeminiModelService interface {
	GenerateContent(ctx context.Context, config genai.GenerationConfig, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GoogleGeminiService implements GeminiModelService using the genai client
type GoogleGeminiService struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGoogleGeminiService creates a new instance of GoogleGeminiService
func NewGoogleGeminiService(ctx context.Context, apiKey, modelName string) (*GoogleGeminiService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GoogleGeminiService{client: client, model: client.GenerativeModel(modelName)}, nil
}

// GenerateContent sends parts with the given generation config. The shared
// model is copied so concurrent callers do not race on its config.
func (g *GoogleGeminiService) GenerateContent(ctx context.Context, config genai.GenerationConfig, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	model := *g.model
	model.GenerationConfig = config
	return model.GenerateContent(ctx, parts...)
}

// Close releases the underlying client.
func (g *GoogleGeminiService) Close() error {
	return g.client.Close()
}
