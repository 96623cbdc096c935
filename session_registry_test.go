package gptbot

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(provider CompletionProvider) *SessionRegistry {
	return NewSessionRegistry(func() *Conversation {
		return NewConversation(provider, DefaultPersona(), fastRetry())
	})
}

func TestSessionRegistry_Lifecycle(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(NewNoOpsCompletionProvider())

	first, err := registry.CreateSession(ctx)
	require.NoError(t, err)
	second, err := registry.CreateSession(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	got, err := registry.GetSession(ctx, first.ID)
	require.NoError(t, err)
	assert.Same(t, first, got)

	sessions, err := registry.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.False(t, sessions[1].CreatedAt.Before(sessions[0].CreatedAt))

	require.NoError(t, registry.DeleteSession(ctx, first.ID))
	_, err = registry.GetSession(ctx, first.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, registry.DeleteSession(ctx, first.ID), ErrSessionNotFound)
	assert.ErrorIs(t, registry.DeleteSession(ctx, uuid.New()), ErrSessionNotFound)
}

func TestSessionRegistry_NilFactory(t *testing.T) {
	registry := NewSessionRegistry(func() *Conversation { return nil })
	_, err := registry.CreateSession(context.Background())
	assert.Error(t, err)
}

func TestSession_IndependentConversations(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(NewNoOpsCompletionProvider())

	a, err := registry.CreateSession(ctx)
	require.NoError(t, err)
	b, err := registry.CreateSession(ctx)
	require.NoError(t, err)

	_, err = a.Exchange(ctx, "only in a")
	require.NoError(t, err)

	assert.Contains(t, a.Transcript(), "Human: only in a")
	assert.NotContains(t, b.Transcript(), "only in a")
	assert.Greater(t, a.Cost(), 0.0)
	assert.Equal(t, 0.0, b.Cost())
}

func TestSession_ConcurrentExchangesAreSerialized(t *testing.T) {
	ctx := context.Background()
	provider := NewNoOpsCompletionProvider()
	registry := newTestRegistry(provider)
	session, err := registry.CreateSession(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "Default NoOps response", session.Chat(ctx, "hello"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, provider.Calls())
	assert.Len(t, session.conversation.Turns(), 2+2*20)
	assert.Equal(t, 20*13, session.conversation.CumulativeTokens())
}
