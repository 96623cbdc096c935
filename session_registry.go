package gptbot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when a session ID is unknown.
var ErrSessionNotFound = errors.New("session not found")

// ConversationFactory builds the Conversation owned by a new session.
type ConversationFactory func() *Conversation

// Session pairs a Conversation with the lock that keeps its exchanges
// sequential.
type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time

	mu           sync.Mutex
	conversation *Conversation
}

// Exchange runs SendWithRetry on the session's conversation. Concurrent
// callers are served one at a time.
func (s *Session) Exchange(ctx context.Context, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conversation.SendWithRetry(ctx, message)
}

// Chat is Exchange returning plain text, see Conversation.Chat.
func (s *Session) Chat(ctx context.Context, message string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conversation.Chat(ctx, message)
}

// Cost returns the session's cumulative cost.
func (s *Session) Cost() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conversation.Cost()
}

// Transcript returns the session's transcript for display.
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conversation.Transcript()
}

// SessionRegistry is an in-memory registry of independent conversations.
// Nothing is persisted; sessions end with the process.
type SessionRegistry struct {
	factory  ConversationFactory
	sessions map[uuid.UUID]*Session
	mu       sync.RWMutex
}

// NewSessionRegistry creates a registry that builds conversations with factory.
func NewSessionRegistry(factory ConversationFactory) *SessionRegistry {
	return &SessionRegistry{
		factory:  factory,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// CreateSession starts a new session with a fresh Conversation.
func (r *SessionRegistry) CreateSession(ctx context.Context) (*Session, error) {
	conversation := r.factory()
	if conversation == nil {
		return nil, errors.New("conversation factory returned nil")
	}

	session := &Session{
		ID:           conversation.ID(),
		CreatedAt:    time.Now(),
		conversation: conversation,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.ID] = session
	return session, nil
}

// GetSession retrieves a session by its ID
func (r *SessionRegistry) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return session, nil
}

// ListSessions returns all sessions, oldest first
func (r *SessionRegistry) ListSessions(ctx context.Context) ([]*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// DeleteSession removes a session by its ID
func (r *SessionRegistry) DeleteSession(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; !exists {
		return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	delete(r.sessions, id)
	return nil
}
