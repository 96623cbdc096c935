package gptbot

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
)

// DefaultBedrockModel is used when BedrockProviderConfig.Model is empty.
const DefaultBedrockModel = "anthropic.claude-3-5-sonnet-20240620-v1:0"

// BedrockCompletionProvider implements CompletionProvider using the AWS
// Bedrock Converse API. The flat prompt is sent as one user message.
type BedrockCompletionProvider struct {
	client BedrockClient
	model  string
}

// BedrockProviderConfig holds the configuration for a BedrockCompletionProvider.
type BedrockProviderConfig struct {
	Client BedrockClient
	Model  string
}

// NewBedrockCompletionProvider creates a new Bedrock provider.
func NewBedrockCompletionProvider(config BedrockProviderConfig) *BedrockCompletionProvider {
	if config.Model == "" {
		config.Model = DefaultBedrockModel
	}
	return &BedrockCompletionProvider{
		client: config.Client,
		model:  config.Model,
	}
}

// Complete implements CompletionProvider.
func (p *BedrockCompletionProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	startTime := time.Now()

	temperature := req.Temperature
	if temperature > 1 {
		temperature = 1
	}

	output, err := p.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(p.model),
		Messages: []types.Message{
			{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: req.Prompt},
				},
			},
		},
		InferenceConfig: &types.InferenceConfiguration{
			Temperature: aws.Float32(float32(temperature)),
			MaxTokens:   aws.Int32(int32(req.MaxTokens)),
		},
	})
	if err != nil {
		return CompletionResponse{}, classifyBedrockError(err)
	}

	msgOutput, ok := output.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return CompletionResponse{}, NewCompletionError(FailureAPIError, "unexpected output type from Bedrock", nil)
	}

	var text strings.Builder
	for _, block := range msgOutput.Value.Content {
		if textBlock, ok := block.(*types.ContentBlockMemberText); ok {
			text.WriteString(textBlock.Value)
		}
	}

	resp := CompletionResponse{
		Text:           text.String(),
		CompletionTime: time.Since(startTime).Seconds(),
	}
	if output.Usage != nil {
		resp.PromptTokens = int(aws.ToInt32(output.Usage.InputTokens))
		resp.CompletionTokens = int(aws.ToInt32(output.Usage.OutputTokens))
		resp.TotalTokens = resp.PromptTokens + resp.CompletionTokens
	}
	return resp, nil
}

// bedrockErrorKinds maps Bedrock exception codes to failure kinds.
var bedrockErrorKinds = map[string]FailureKind{
	"ThrottlingException":           FailureRateLimited,
	"ServiceQuotaExceededException": FailureRateLimited,
	"ServiceUnavailableException":   FailureServiceUnavailable,
	"ModelNotReadyException":        FailureServiceUnavailable,
	"ValidationException":           FailureInvalidRequest,
	"ResourceNotFoundException":     FailureInvalidRequest,
	"AccessDeniedException":         FailureUnauthorized,
	"UnrecognizedClientException":   FailureUnauthorized,
	"InternalServerException":       FailureAPIError,
	"ModelTimeoutException":         FailureAPIError,
	"ModelErrorException":           FailureAPIError,
}

func classifyBedrockError(err error) *CompletionError {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return classifyProviderError(err, 0, "")
	}

	kind, ok := bedrockErrorKinds[apiErr.ErrorCode()]
	if !ok {
		kind = FailureAPIError
	}
	return &CompletionError{Kind: kind, Message: apiErr.ErrorMessage(), Err: err}
}
