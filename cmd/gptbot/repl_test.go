package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/gptbot"
	"github.com/shaharia-lab/gptbot/relay"
)

func newTestHub(provider gptbot.CompletionProvider) *relay.Hub {
	registry := gptbot.NewSessionRegistry(func() *gptbot.Conversation {
		return gptbot.NewConversation(provider, gptbot.DefaultPersona())
	})
	return relay.NewHub(registry, "", nil)
}

func TestRunREPL(t *testing.T) {
	provider := gptbot.NewNoOpsCompletionProvider(gptbot.WithScript(
		gptbot.NoOpsResult{Response: gptbot.CompletionResponse{Text: " Paris.", TotalTokens: 120}},
	))
	hub := newTestHub(provider)

	in := strings.NewReader("What is the capital of France?\n\n/log\n/cost\n")
	var out bytes.Buffer

	err := runREPL(context.Background(), hub, in, &out)
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "> Paris.\n")
	assert.Contains(t, output, "Human: What is the capital of France?\nAI: Paris.\n")
	assert.Contains(t, output, "Conversation cost so far: $0.0024")
	assert.Equal(t, 1, provider.Calls())
}

func TestRunREPL_CanceledContext(t *testing.T) {
	provider := gptbot.NewNoOpsCompletionProvider()
	hub := newTestHub(provider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := runREPL(ctx, hub, strings.NewReader(""), &out)
	require.NoError(t, err)
	assert.Equal(t, 0, provider.Calls())
}
