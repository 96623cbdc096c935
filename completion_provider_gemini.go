package gptbot

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultGeminiModel is the model name used by the CLI when none is configured.
const DefaultGeminiModel = "gemini-1.5-flash"

// GeminiCompletionProvider implements CompletionProvider using Google's
// Gemini API.
type GeminiCompletionProvider struct {
	service GeminiModelService
}

// NewGeminiCompletionProvider creates a provider backed by service.
func NewGeminiCompletionProvider(service GeminiModelService) (*GeminiCompletionProvider, error) {
	if service == nil {
		return nil, errors.New("GeminiModelService cannot be nil")
	}
	return &GeminiCompletionProvider{service: service}, nil
}

// Complete implements CompletionProvider.
func (p *GeminiCompletionProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	startTime := time.Now()

	var config genai.GenerationConfig
	config.SetCandidateCount(1)
	config.SetTemperature(float32(req.Temperature))
	config.SetMaxOutputTokens(int32(req.MaxTokens))

	resp, err := p.service.GenerateContent(ctx, config, genai.Text(req.Prompt))
	if err != nil {
		return CompletionResponse{}, classifyGeminiError(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return CompletionResponse{}, NewCompletionError(FailureAPIError, "no candidates in Gemini response", nil)
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	out := CompletionResponse{
		Text:           text.String(),
		CompletionTime: time.Since(startTime).Seconds(),
	}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		out.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return out, nil
}

var grpcCodeKinds = map[codes.Code]FailureKind{
	codes.ResourceExhausted:  FailureRateLimited,
	codes.Unavailable:        FailureServiceUnavailable,
	codes.InvalidArgument:    FailureInvalidRequest,
	codes.FailedPrecondition: FailureInvalidRequest,
	codes.NotFound:           FailureInvalidRequest,
	codes.Unauthenticated:    FailureUnauthorized,
	codes.PermissionDenied:   FailureUnauthorized,
}

// classifyGeminiError handles both REST (googleapi) and gRPC status errors.
func classifyGeminiError(err error) *CompletionError {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return classifyProviderError(err, apiErr.Code, apiErr.Message)
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.OK && st.Code() != codes.Unknown {
		if st.Code() == codes.Canceled || st.Code() == codes.DeadlineExceeded {
			return &CompletionError{Kind: FailureCanceled, Message: st.Message(), Err: err}
		}
		kind, known := grpcCodeKinds[st.Code()]
		if !known {
			kind = FailureAPIError
		}
		return &CompletionError{Kind: kind, Message: st.Message(), Err: err}
	}

	return classifyProviderError(err, 0, "")
}
