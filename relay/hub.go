// Package relay connects chat platforms to gptbot conversations. A Hub maps
// platform conversation keys (a channel, a thread) to sessions and turns each
// inbound message into the text to post back.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/shaharia-lab/gptbot"
	"github.com/shaharia-lab/gptbot/observability"
)

// Commands understood by the Hub. Anything else is sent to the model.
const (
	CostCommand  = "/cost"
	LogCommand   = "/log"
	ResetCommand = "/reset"
)

// InboundMessage is one message received from a chat platform.
type InboundMessage struct {
	// Key identifies the platform conversation, e.g. channel and thread.
	Key      string
	AuthorID string
	// FromBot is set when the platform marks the author as a bot.
	FromBot bool
	Text    string
}

// Hub routes inbound messages to one session per key.
type Hub struct {
	registry *gptbot.SessionRegistry
	selfID   string
	logger   observability.Logger

	mu       sync.Mutex
	sessions map[string]uuid.UUID
}

// NewHub creates a Hub. Messages authored by selfID or by any bot are
// ignored.
func NewHub(registry *gptbot.SessionRegistry, selfID string, logger observability.Logger) *Hub {
	if logger == nil {
		logger = observability.NewNullLogger()
	}
	return &Hub{
		registry: registry,
		selfID:   selfID,
		logger:   logger,
		sessions: make(map[string]uuid.UUID),
	}
}

// SetSelfID sets the author ID whose messages are ignored. Platforms that
// only learn the bot's own ID after connecting call this before relaying.
func (h *Hub) SetSelfID(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.selfID = id
}

// Handle processes msg and returns the text to post back. ok is false when
// nothing should be posted.
func (h *Hub) Handle(ctx context.Context, msg InboundMessage) (reply string, ok bool, err error) {
	if h.isEcho(msg) {
		return "", false, nil
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return "", false, nil
	}

	if text == ResetCommand {
		if err := h.reset(ctx, msg.Key); err != nil {
			return "", false, err
		}
		return "Conversation reset.", true, nil
	}

	session, err := h.session(ctx, msg.Key)
	if err != nil {
		return "", false, err
	}

	switch text {
	case CostCommand:
		return fmt.Sprintf("Conversation cost so far: $%.4f", session.Cost()), true, nil
	case LogCommand:
		return session.Transcript(), true, nil
	}

	h.logger.WithFields(map[string]interface{}{
		observability.ConversationIDField: session.ID.String(),
		"relay_key":                       msg.Key,
	}).Debug("relaying message")

	return session.Chat(ctx, msg.Text), true, nil
}

func (h *Hub) isEcho(msg InboundMessage) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return msg.FromBot || (h.selfID != "" && msg.AuthorID == h.selfID)
}

// session returns the session for key, creating it on first use.
func (h *Hub) session(ctx context.Context, key string) (*gptbot.Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if id, exists := h.sessions[key]; exists {
		session, err := h.registry.GetSession(ctx, id)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, gptbot.ErrSessionNotFound) {
			return nil, err
		}
	}

	session, err := h.registry.CreateSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create session for %q: %w", key, err)
	}
	h.sessions[key] = session.ID
	h.logger.WithFields(map[string]interface{}{
		observability.ConversationIDField: session.ID.String(),
		"relay_key":                       key,
	}).Info("started new conversation")
	return session, nil
}

func (h *Hub) reset(ctx context.Context, key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	id, exists := h.sessions[key]
	if !exists {
		return nil
	}
	delete(h.sessions, key)
	if err := h.registry.DeleteSession(ctx, id); err != nil && !errors.Is(err, gptbot.ErrSessionNotFound) {
		return err
	}
	return nil
}
