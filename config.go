package gptbot

import (
	"strings"
	"time"

	"github.com/shaharia-lab/gptbot/observability"
)

// Defaults mirror the original davinci-era bot.
const (
	DefaultTemperature        = 0.9
	DefaultFrequencyPenalty   = 0.0
	DefaultPresencePenalty    = 0.6
	DefaultModelContextLimit  = 4096
	DefaultCostPerToken       = 0.0200 / 1000 // USD
	DefaultHumanPrefix        = "Human: "
	DefaultAIPrefix           = "AI: "
	DefaultMaxAttempts        = 6
	DefaultInitialBackoff     = 1 * time.Second
	DefaultMaxBackoff         = 60 * time.Second
	DefaultRemediationPadding = 16
)

// SamplingConfig holds the sampling parameters sent with every completion.
type SamplingConfig struct {
	Temperature      float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

// ConversationConfig is the immutable configuration of a Conversation.
type ConversationConfig struct {
	sampling          SamplingConfig
	modelContextLimit int
	costPerToken      float64
	humanPrefix       string
	aiPrefix          string
	maxAttempts       int
	initialBackoff    time.Duration
	maxBackoff        time.Duration
	padding           string
	logger            observability.Logger
	metrics           *Metrics
	usageRecorder     UsageRecorder
}

// ConversationOption configures a Conversation.
type ConversationOption func(*ConversationConfig)

// NewConversationConfig applies opts on top of the defaults.
//
// Example usage:
//
//	cfg := gptbot.NewConversationConfig(
//	    gptbot.WithTemperature(0.7),
//	    gptbot.WithMaxAttempts(3),
//	)
func NewConversationConfig(opts ...ConversationOption) ConversationConfig {
	cfg := ConversationConfig{
		sampling: SamplingConfig{
			Temperature:      DefaultTemperature,
			FrequencyPenalty: DefaultFrequencyPenalty,
			PresencePenalty:  DefaultPresencePenalty,
		},
		modelContextLimit: DefaultModelContextLimit,
		costPerToken:      DefaultCostPerToken,
		humanPrefix:       DefaultHumanPrefix,
		aiPrefix:          DefaultAIPrefix,
		maxAttempts:       DefaultMaxAttempts,
		initialBackoff:    DefaultInitialBackoff,
		maxBackoff:        DefaultMaxBackoff,
		padding:           strings.Repeat(" ", DefaultRemediationPadding),
		logger:            observability.NewNullLogger(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

// Sampling returns the sampling parameters.
func (c ConversationConfig) Sampling() SamplingConfig { return c.sampling }

// ModelContextLimit returns the combined prompt+completion token limit.
func (c ConversationConfig) ModelContextLimit() int { return c.modelContextLimit }

// MaxAttempts returns the number of attempts SendWithRetry makes for
// transient failures.
func (c ConversationConfig) MaxAttempts() int { return c.maxAttempts }

// WithTemperature sets the sampling temperature.
func WithTemperature(temperature float64) ConversationOption {
	return func(c *ConversationConfig) {
		c.sampling.Temperature = temperature
	}
}

// WithFrequencyPenalty sets the frequency penalty.
func WithFrequencyPenalty(penalty float64) ConversationOption {
	return func(c *ConversationConfig) {
		c.sampling.FrequencyPenalty = penalty
	}
}

// WithPresencePenalty sets the presence penalty.
func WithPresencePenalty(penalty float64) ConversationOption {
	return func(c *ConversationConfig) {
		c.sampling.PresencePenalty = penalty
	}
}

// WithSampling replaces all sampling parameters at once.
func WithSampling(sampling SamplingConfig) ConversationOption {
	return func(c *ConversationConfig) {
		c.sampling = sampling
	}
}

// WithModelContextLimit sets the maximum prompt+completion tokens the model accepts.
func WithModelContextLimit(limit int) ConversationOption {
	return func(c *ConversationConfig) {
		c.modelContextLimit = limit
	}
}

// WithCostPerToken sets the price used by Conversation.Cost.
func WithCostPerToken(cost float64) ConversationOption {
	return func(c *ConversationConfig) {
		c.costPerToken = cost
	}
}

// WithPrefixes sets the line prefixes for human and assistant turns.
func WithPrefixes(human, ai string) ConversationOption {
	return func(c *ConversationConfig) {
		c.humanPrefix = human
		c.aiPrefix = ai
	}
}

// WithMaxAttempts sets how many attempts SendWithRetry makes for transient
// failures. Values below 1 are treated as 1.
func WithMaxAttempts(attempts int) ConversationOption {
	return func(c *ConversationConfig) {
		if attempts < 1 {
			attempts = 1
		}
		c.maxAttempts = attempts
	}
}

// WithBackoff sets the first retry delay and the cap on any single delay.
func WithBackoff(initial, max time.Duration) ConversationOption {
	return func(c *ConversationConfig) {
		c.initialBackoff = initial
		c.maxBackoff = max
	}
}

// WithRemediationPadding sets how many spaces are appended to a message the
// service rejected as invalid before it is sent once more.
func WithRemediationPadding(n int) ConversationOption {
	return func(c *ConversationConfig) {
		if n < 0 {
			n = 0
		}
		c.padding = strings.Repeat(" ", n)
	}
}

// WithLogger sets the logger. A nil logger keeps the NullLogger.
func WithLogger(logger observability.Logger) ConversationOption {
	return func(c *ConversationConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the Prometheus metrics the conversation reports to.
func WithMetrics(metrics *Metrics) ConversationOption {
	return func(c *ConversationConfig) {
		c.metrics = metrics
	}
}

// WithUsageRecorder sets where per-attempt usage records are written.
func WithUsageRecorder(recorder UsageRecorder) ConversationOption {
	return func(c *ConversationConfig) {
		c.usageRecorder = recorder
	}
}
