package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// loadConfig reads configuration from file and environment variables.
// Environment variables use the GPTBOT_ prefix with dots replaced by
// underscores, e.g. GPTBOT_PROVIDER_NAME=anthropic.
func loadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault("provider.name", "openai")
	v.SetDefault("provider.model", "")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.region", "us-east-1")
	v.SetDefault("provider.requests_per_second", 0.0)
	v.SetDefault("provider.burst", 1)
	v.SetDefault("provider.breaker_failures", 5)
	v.SetDefault("provider.breaker_timeout", "30s")

	v.SetDefault("conversation.persona", "default")
	v.SetDefault("conversation.persona_file", "")
	v.SetDefault("conversation.temperature", 0.9)
	v.SetDefault("conversation.frequency_penalty", 0.0)
	v.SetDefault("conversation.presence_penalty", 0.6)
	v.SetDefault("conversation.context_limit", 4096)
	v.SetDefault("conversation.cost_per_token", 0.00002)
	v.SetDefault("conversation.max_attempts", 6)
	v.SetDefault("conversation.initial_backoff", "1s")
	v.SetDefault("conversation.max_backoff", "60s")

	v.SetDefault("logging.backend", "logrus")
	v.SetDefault("logging.level", "info")

	v.SetDefault("usage.driver", "")
	v.SetDefault("usage.dsn", "gptbot.db")

	v.SetDefault("metrics.addr", "")

	v.SetDefault("slack.bot_token", "")
	v.SetDefault("slack.app_token", "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("gptbot")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/gptbot")
	}

	v.SetEnvPrefix("GPTBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	return v, nil
}
