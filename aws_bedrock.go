package gptbot

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// BedrockClient interface for AWS Bedrock operations
type BedrockClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockClientWrapper wraps the bedrockruntime.Client to implement the BedrockClient interface
type BedrockClientWrapper struct {
	client *bedrockruntime.Client
}

// NewBedrockClient loads the default AWS configuration (environment, shared
// config, instance role) for region and returns a Bedrock runtime client.
// SDK retries are disabled; the conversation engine retries instead.
func NewBedrockClient(ctx context.Context, region string) (*BedrockClientWrapper, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &BedrockClientWrapper{client: bedrockruntime.NewFromConfig(cfg)}, nil
}

// Converse implements the BedrockClient interface
func (w *BedrockClientWrapper) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	return w.client.Converse(ctx, params, optFns...)
}
