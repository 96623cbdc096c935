package relay

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/gptbot"
)

func newTestHub(provider gptbot.CompletionProvider, opts ...gptbot.ConversationOption) (*Hub, *gptbot.SessionRegistry) {
	registry := gptbot.NewSessionRegistry(func() *gptbot.Conversation {
		return gptbot.NewConversation(provider, gptbot.DefaultPersona(), opts...)
	})
	return NewHub(registry, "U_BOT", nil), registry
}

func TestHub_Handle(t *testing.T) {
	tests := []struct {
		name      string
		msg       InboundMessage
		wantOK    bool
		wantReply string
		wantCalls int
	}{
		{
			name:      "user message is relayed",
			msg:       InboundMessage{Key: "c1", AuthorID: "U1", Text: "hello"},
			wantOK:    true,
			wantReply: "Default NoOps response",
			wantCalls: 1,
		},
		{
			name:      "own message is ignored",
			msg:       InboundMessage{Key: "c1", AuthorID: "U_BOT", Text: "hello"},
			wantOK:    false,
			wantCalls: 0,
		},
		{
			name:      "other bot is ignored",
			msg:       InboundMessage{Key: "c1", AuthorID: "U2", FromBot: true, Text: "hello"},
			wantOK:    false,
			wantCalls: 0,
		},
		{
			name:      "blank message is ignored",
			msg:       InboundMessage{Key: "c1", AuthorID: "U1", Text: "   "},
			wantOK:    false,
			wantCalls: 0,
		},
		{
			name:      "cost command",
			msg:       InboundMessage{Key: "c1", AuthorID: "U1", Text: "/cost"},
			wantOK:    true,
			wantReply: "Conversation cost so far: $0.0000",
			wantCalls: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := gptbot.NewNoOpsCompletionProvider()
			hub, _ := newTestHub(provider)

			reply, ok, err := hub.Handle(context.Background(), tt.msg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantReply, reply)
			assert.Equal(t, tt.wantCalls, provider.Calls())
		})
	}
}

func TestHub_OneSessionPerKey(t *testing.T) {
	provider := gptbot.NewNoOpsCompletionProvider()
	hub, registry := newTestHub(provider)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "a"} {
		_, ok, err := hub.Handle(ctx, InboundMessage{Key: key, AuthorID: "U1", Text: "hi"})
		require.NoError(t, err)
		require.True(t, ok)
	}

	sessions, err := registry.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	log, ok, err := hub.Handle(ctx, InboundMessage{Key: "a", AuthorID: "U1", Text: "/log"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, strings.Count(log, "Human: hi"))
}

func TestHub_Reset(t *testing.T) {
	provider := gptbot.NewNoOpsCompletionProvider()
	hub, registry := newTestHub(provider)
	ctx := context.Background()

	_, _, err := hub.Handle(ctx, InboundMessage{Key: "a", AuthorID: "U1", Text: "hi"})
	require.NoError(t, err)

	reply, ok, err := hub.Handle(ctx, InboundMessage{Key: "a", AuthorID: "U1", Text: "/reset"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Conversation reset.", reply)

	sessions, err := registry.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	log, _, err := hub.Handle(ctx, InboundMessage{Key: "a", AuthorID: "U1", Text: "/log"})
	require.NoError(t, err)
	assert.NotContains(t, log, "Human: hi")
}

func TestHub_FailureIsRelayedAsText(t *testing.T) {
	provider := gptbot.NewNoOpsCompletionProvider(
		gptbot.WithError(gptbot.NewCompletionError(gptbot.FailureUnauthorized, "bad key", nil)),
	)
	hub, _ := newTestHub(provider, gptbot.WithBackoff(time.Millisecond, time.Millisecond))

	reply, ok, err := hub.Handle(context.Background(), InboundMessage{Key: "a", AuthorID: "U1", Text: "hi"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, gptbot.FailureUnauthorized.Message(), reply)
}

func TestHub_SetSelfID(t *testing.T) {
	provider := gptbot.NewNoOpsCompletionProvider()
	hub, _ := newTestHub(provider)
	hub.SetSelfID("U_NEW")

	_, ok, err := hub.Handle(context.Background(), InboundMessage{Key: "a", AuthorID: "U_NEW", Text: "hi"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, provider.Calls())
}
