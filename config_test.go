package gptbot

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/gptbot/observability"
)

func TestNewConversationConfig_Defaults(t *testing.T) {
	cfg := NewConversationConfig()

	assert.Equal(t, SamplingConfig{Temperature: 0.9, FrequencyPenalty: 0, PresencePenalty: 0.6}, cfg.Sampling())
	assert.Equal(t, 4096, cfg.ModelContextLimit())
	assert.Equal(t, 6, cfg.MaxAttempts())
	assert.Equal(t, 0.00002, cfg.costPerToken)
	assert.Equal(t, "Human: ", cfg.humanPrefix)
	assert.Equal(t, "AI: ", cfg.aiPrefix)
	assert.Equal(t, time.Second, cfg.initialBackoff)
	assert.Equal(t, time.Minute, cfg.maxBackoff)
	assert.Equal(t, strings.Repeat(" ", 16), cfg.padding)
	assert.NotNil(t, cfg.logger)
	assert.Nil(t, cfg.metrics)
	assert.Nil(t, cfg.usageRecorder)
}

func TestConversationOptions(t *testing.T) {
	metrics, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	recorder := NewInMemoryUsageRecorder()
	logger := observability.NewDefaultLogger()

	tests := []struct {
		name   string
		option ConversationOption
		check  func(t *testing.T, cfg ConversationConfig)
	}{
		{
			name:   "temperature",
			option: WithTemperature(0.2),
			check:  func(t *testing.T, cfg ConversationConfig) { assert.Equal(t, 0.2, cfg.Sampling().Temperature) },
		},
		{
			name:   "frequency penalty",
			option: WithFrequencyPenalty(0.5),
			check:  func(t *testing.T, cfg ConversationConfig) { assert.Equal(t, 0.5, cfg.Sampling().FrequencyPenalty) },
		},
		{
			name:   "presence penalty",
			option: WithPresencePenalty(0.1),
			check:  func(t *testing.T, cfg ConversationConfig) { assert.Equal(t, 0.1, cfg.Sampling().PresencePenalty) },
		},
		{
			name:   "sampling",
			option: WithSampling(SamplingConfig{Temperature: 1, FrequencyPenalty: 1, PresencePenalty: 1}),
			check: func(t *testing.T, cfg ConversationConfig) {
				assert.Equal(t, SamplingConfig{Temperature: 1, FrequencyPenalty: 1, PresencePenalty: 1}, cfg.Sampling())
			},
		},
		{
			name:   "context limit",
			option: WithModelContextLimit(2048),
			check:  func(t *testing.T, cfg ConversationConfig) { assert.Equal(t, 2048, cfg.ModelContextLimit()) },
		},
		{
			name:   "cost per token",
			option: WithCostPerToken(0.5),
			check:  func(t *testing.T, cfg ConversationConfig) { assert.Equal(t, 0.5, cfg.costPerToken) },
		},
		{
			name:   "prefixes",
			option: WithPrefixes("User: ", "Bot: "),
			check: func(t *testing.T, cfg ConversationConfig) {
				assert.Equal(t, "User: ", cfg.humanPrefix)
				assert.Equal(t, "Bot: ", cfg.aiPrefix)
			},
		},
		{
			name:   "max attempts",
			option: WithMaxAttempts(3),
			check:  func(t *testing.T, cfg ConversationConfig) { assert.Equal(t, 3, cfg.MaxAttempts()) },
		},
		{
			name:   "max attempts floor",
			option: WithMaxAttempts(0),
			check:  func(t *testing.T, cfg ConversationConfig) { assert.Equal(t, 1, cfg.MaxAttempts()) },
		},
		{
			name:   "backoff",
			option: WithBackoff(2*time.Second, 10*time.Second),
			check: func(t *testing.T, cfg ConversationConfig) {
				assert.Equal(t, 2*time.Second, cfg.initialBackoff)
				assert.Equal(t, 10*time.Second, cfg.maxBackoff)
			},
		},
		{
			name:   "padding",
			option: WithRemediationPadding(4),
			check:  func(t *testing.T, cfg ConversationConfig) { assert.Equal(t, "    ", cfg.padding) },
		},
		{
			name:   "negative padding",
			option: WithRemediationPadding(-1),
			check:  func(t *testing.T, cfg ConversationConfig) { assert.Equal(t, "", cfg.padding) },
		},
		{
			name:   "logger",
			option: WithLogger(logger),
			check:  func(t *testing.T, cfg ConversationConfig) { assert.Same(t, logger, cfg.logger) },
		},
		{
			name:   "nil logger keeps default",
			option: WithLogger(nil),
			check:  func(t *testing.T, cfg ConversationConfig) { assert.NotNil(t, cfg.logger) },
		},
		{
			name:   "metrics",
			option: WithMetrics(metrics),
			check:  func(t *testing.T, cfg ConversationConfig) { assert.Same(t, metrics, cfg.metrics) },
		},
		{
			name:   "usage recorder",
			option: WithUsageRecorder(recorder),
			check:  func(t *testing.T, cfg ConversationConfig) { assert.Same(t, recorder, cfg.usageRecorder) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, NewConversationConfig(tt.option))
		})
	}
}

func TestConversation_CustomPrefixes(t *testing.T) {
	provider := NewNoOpsCompletionProvider()
	convo := NewConversation(provider, Persona{Role: "bot", Creator: "me"}, WithPrefixes("User: ", "Bot: "))

	_, err := convo.Send(t.Context(), "ping")
	require.NoError(t, err)

	prompt := provider.Requests()[0].Prompt
	assert.True(t, strings.HasSuffix(prompt, "User: ping\nBot: "))
	assert.Contains(t, prompt, "User: Hello, who are you?\nBot: I am an AI created by me.")
}
