package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/shaharia-lab/gptbot"
	"github.com/shaharia-lab/gptbot/observability"
)

// newLogger creates the configured logger. "logging.backend" is logrus, zap
// or default; "logging.level" is debug, info, warn or error.
func newLogger(v *viper.Viper) (observability.Logger, error) {
	level := v.GetString("logging.level")

	switch backend := v.GetString("logging.backend"); backend {
	case "logrus", "":
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		l := logrus.New()
		l.SetOutput(os.Stderr)
		l.SetLevel(lvl)
		l.SetFormatter(&logrus.JSONFormatter{})
		return observability.NewLogrusLogger(l), nil
	case "zap":
		var zapLevel zapcore.Level
		if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapLevel)
		l, err := cfg.Build()
		if err != nil {
			return nil, err
		}
		return observability.NewZapLogger(l), nil
	case "default":
		return observability.NewDefaultLogger(), nil
	default:
		return nil, fmt.Errorf("invalid log backend %q: must be logrus, zap or default", backend)
	}
}

// newProvider creates the configured completion provider wrapped with
// client-side rate limiting, a circuit breaker and tracing.
func newProvider(ctx context.Context, v *viper.Viper, logger observability.Logger) (gptbot.CompletionProvider, error) {
	name := strings.ToLower(v.GetString("provider.name"))
	model := v.GetString("provider.model")
	apiKey := v.GetString("provider.api_key")

	var provider gptbot.CompletionProvider
	switch name {
	case "openai":
		provider = gptbot.NewOpenAICompletionProvider(gptbot.OpenAIProviderConfig{
			Client: gptbot.NewOpenAIClient(apiKey),
			Model:  openai.CompletionNewParamsModel(model),
		})
	case "anthropic":
		provider = gptbot.NewAnthropicCompletionProvider(gptbot.AnthropicProviderConfig{
			Client: gptbot.NewAnthropicClient(apiKey),
			Model:  anthropic.Model(model),
		})
	case "bedrock":
		client, err := gptbot.NewBedrockClient(ctx, v.GetString("provider.region"))
		if err != nil {
			return nil, err
		}
		provider = gptbot.NewBedrockCompletionProvider(gptbot.BedrockProviderConfig{
			Client: client,
			Model:  model,
		})
	case "gemini":
		if model == "" {
			model = gptbot.DefaultGeminiModel
		}
		service, err := gptbot.NewGoogleGeminiService(ctx, apiKey, model)
		if err != nil {
			return nil, err
		}
		gemini, err := gptbot.NewGeminiCompletionProvider(service)
		if err != nil {
			return nil, err
		}
		provider = gemini
	case "noop":
		provider = gptbot.NewNoOpsCompletionProvider()
	default:
		return nil, fmt.Errorf("unknown provider %q: must be openai, anthropic, bedrock, gemini or noop", name)
	}

	if rps := v.GetFloat64("provider.requests_per_second"); rps > 0 {
		provider = gptbot.NewRateLimitedProvider(provider, rps, v.GetInt("provider.burst"))
	}
	provider = gptbot.NewCircuitBreakerProvider(provider, gptbot.CircuitBreakerConfig{
		Name:                name,
		ConsecutiveFailures: v.GetUint32("provider.breaker_failures"),
		OpenTimeout:         v.GetDuration("provider.breaker_timeout"),
		Logger:              logger.WithFields(map[string]interface{}{observability.ProviderField: name}),
	})
	return gptbot.NewTracingCompletionProvider(provider, name), nil
}

// newUsageRecorder opens the usage ledger selected by "usage.driver"
// (sqlite, postgres or empty for none).
func newUsageRecorder(v *viper.Viper, logger observability.Logger) (*gptbot.SQLUsageRecorder, error) {
	dsn := v.GetString("usage.dsn")
	switch driver := v.GetString("usage.driver"); driver {
	case "":
		return nil, nil
	case "sqlite":
		return gptbot.NewSQLiteUsageRecorder(dsn, logger)
	case "postgres":
		return gptbot.NewPostgresUsageRecorder(dsn, logger)
	default:
		return nil, fmt.Errorf("unknown usage driver %q: must be sqlite or postgres", driver)
	}
}

// loadPersona reads "conversation.persona_file" when set, otherwise the
// built-in persona named by "conversation.persona".
func loadPersona(v *viper.Viper) (gptbot.Persona, error) {
	path := v.GetString("conversation.persona_file")
	if path == "" {
		return gptbot.PersonaByName(v.GetString("conversation.persona"))
	}

	f, err := os.Open(path)
	if err != nil {
		return gptbot.Persona{}, fmt.Errorf("failed to open persona file: %w", err)
	}
	defer f.Close()

	return gptbot.LoadPersona(f)
}

// conversationOptions maps the "conversation" section onto engine options.
func conversationOptions(v *viper.Viper, logger observability.Logger, metrics *gptbot.Metrics, recorder gptbot.UsageRecorder) []gptbot.ConversationOption {
	opts := []gptbot.ConversationOption{
		gptbot.WithSampling(gptbot.SamplingConfig{
			Temperature:      v.GetFloat64("conversation.temperature"),
			FrequencyPenalty: v.GetFloat64("conversation.frequency_penalty"),
			PresencePenalty:  v.GetFloat64("conversation.presence_penalty"),
		}),
		gptbot.WithModelContextLimit(v.GetInt("conversation.context_limit")),
		gptbot.WithCostPerToken(v.GetFloat64("conversation.cost_per_token")),
		gptbot.WithMaxAttempts(v.GetInt("conversation.max_attempts")),
		gptbot.WithBackoff(v.GetDuration("conversation.initial_backoff"), v.GetDuration("conversation.max_backoff")),
		gptbot.WithLogger(logger),
		gptbot.WithMetrics(metrics),
	}
	if recorder != nil {
		opts = append(opts, gptbot.WithUsageRecorder(recorder))
	}
	return opts
}

// newMetrics registers the engine's collectors with the default registry.
func newMetrics() (*gptbot.Metrics, error) {
	return gptbot.NewMetrics(prometheus.DefaultRegisterer)
}
