package gptbot

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockBedrockClient is a mock implementation of BedrockClient
type MockBedrockClient struct {
	mock.Mock
}

func (m *MockBedrockClient) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bedrockruntime.ConverseOutput), args.Error(1)
}

func TestBedrockCompletionProvider_Complete(t *testing.T) {
	mockClient := new(MockBedrockClient)
	provider := NewBedrockCompletionProvider(BedrockProviderConfig{Client: mockClient})

	mockClient.On("Converse", mock.Anything, mock.MatchedBy(func(input *bedrockruntime.ConverseInput) bool {
		if aws.ToString(input.ModelId) != DefaultBedrockModel || len(input.Messages) != 1 {
			return false
		}
		text, ok := input.Messages[0].Content[0].(*types.ContentBlockMemberText)
		return ok &&
			input.Messages[0].Role == types.ConversationRoleUser &&
			text.Value == "Human: Hi\nAI: " &&
			aws.ToInt32(input.InferenceConfig.MaxTokens) == 200 &&
			aws.ToFloat32(input.InferenceConfig.Temperature) == 1
	})).Return(&bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{
			Value: types.Message{
				Role: types.ConversationRoleAssistant,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: " Hello"},
					&types.ContentBlockMemberText{Value: " there."},
				},
			},
		},
		Usage: &types.TokenUsage{
			InputTokens:  aws.Int32(10),
			OutputTokens: aws.Int32(5),
		},
	}, nil)

	resp, err := provider.Complete(context.Background(), CompletionRequest{
		Prompt:      "Human: Hi\nAI: ",
		MaxTokens:   200,
		Temperature: 1.5,
	})
	require.NoError(t, err)
	assert.Equal(t, " Hello there.", resp.Text)
	assert.Equal(t, 10, resp.PromptTokens)
	assert.Equal(t, 5, resp.CompletionTokens)
	assert.Equal(t, 15, resp.TotalTokens)
	mockClient.AssertExpectations(t)
}

func TestBedrockCompletionProvider_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind FailureKind
	}{
		{name: "throttling", err: &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}, wantKind: FailureRateLimited},
		{name: "unavailable", err: &smithy.GenericAPIError{Code: "ServiceUnavailableException"}, wantKind: FailureServiceUnavailable},
		{name: "validation", err: &smithy.GenericAPIError{Code: "ValidationException", Message: "too long"}, wantKind: FailureInvalidRequest},
		{name: "access denied", err: &smithy.GenericAPIError{Code: "AccessDeniedException"}, wantKind: FailureUnauthorized},
		{name: "model timeout", err: &smithy.GenericAPIError{Code: "ModelTimeoutException"}, wantKind: FailureAPIError},
		{name: "unknown code", err: &smithy.GenericAPIError{Code: "SomethingNew"}, wantKind: FailureAPIError},
		{name: "transport error", err: errors.New("connection reset"), wantKind: FailureAPIError},
		{name: "canceled", err: context.Canceled, wantKind: FailureCanceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := new(MockBedrockClient)
			mockClient.On("Converse", mock.Anything, mock.Anything).Return(nil, tt.err)
			provider := NewBedrockCompletionProvider(BedrockProviderConfig{Client: mockClient, Model: "amazon.titan-text-express-v1"})

			_, err := provider.Complete(context.Background(), CompletionRequest{Prompt: "p", MaxTokens: 10})
			assert.Equal(t, tt.wantKind, FailureKindOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestBedrockCompletionProvider_UnexpectedOutput(t *testing.T) {
	mockClient := new(MockBedrockClient)
	mockClient.On("Converse", mock.Anything, mock.Anything).Return(&bedrockruntime.ConverseOutput{}, nil)
	provider := NewBedrockCompletionProvider(BedrockProviderConfig{Client: mockClient})

	_, err := provider.Complete(context.Background(), CompletionRequest{Prompt: "p", MaxTokens: 10})
	assert.Equal(t, FailureAPIError, FailureKindOf(err))
}
