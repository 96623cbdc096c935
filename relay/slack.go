package relay

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"golang.org/x/sync/errgroup"

	"github.com/shaharia-lab/gptbot/observability"
)

// SlackPoster is the part of the Slack Web API the relay needs.
type SlackPoster interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackRelay answers Slack messages over Socket Mode. Each thread is its own
// conversation; top-level messages start a new thread.
type SlackRelay struct {
	hub       *Hub
	api       SlackPoster
	botUserID string
	logger    observability.Logger

	client *slack.Client
	socket *socketmode.Client

	inflight errgroup.Group
}

// NewSlackRelay creates a relay using a bot token (xoxb-) and an app-level
// token (xapp-) with the connections:write scope.
func NewSlackRelay(hub *Hub, botToken, appToken string, logger observability.Logger) *SlackRelay {
	api := slack.New(botToken, slack.OptionAppLevelToken(appToken))
	relay := newSlackRelay(hub, api, "", logger)
	relay.client = api
	relay.socket = socketmode.New(api)
	return relay
}

func newSlackRelay(hub *Hub, api SlackPoster, botUserID string, logger observability.Logger) *SlackRelay {
	if logger == nil {
		logger = observability.NewNullLogger()
	}
	return &SlackRelay{
		hub:       hub,
		api:       api,
		botUserID: botUserID,
		logger:    logger,
	}
}

// Run connects to Slack and relays messages until ctx is done. Events are
// acknowledged as they arrive and handled concurrently; Run returns once
// every in-flight reply has finished.
func (s *SlackRelay) Run(ctx context.Context) error {
	if s.client == nil || s.socket == nil {
		return fmt.Errorf("slack relay was not created with NewSlackRelay")
	}

	authResp, err := s.client.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth test failed: %w", err)
	}
	s.botUserID = authResp.UserID
	s.hub.SetSelfID(authResp.UserID)
	s.logger.WithFields(map[string]interface{}{"bot_user_id": s.botUserID}).Info("slack relay started")

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.socket.RunContext(ctx)
	}()
	defer s.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("slack socket mode error: %w", err)
		case evt := <-s.socket.Events:
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok {
				continue
			}
			if evt.Request != nil {
				s.socket.Ack(*evt.Request)
			}

			if ev, ok := eventsAPIEvent.InnerEvent.Data.(*slackevents.MessageEvent); ok {
				s.Dispatch(ctx, ev)
			}
		}
	}
}

// Dispatch handles ev on its own goroutine so a slow exchange in one thread
// does not hold up the others. Messages within a thread still run one at a
// time on their session.
func (s *SlackRelay) Dispatch(ctx context.Context, ev *slackevents.MessageEvent) {
	s.inflight.Go(func() error {
		if err := s.HandleMessageEvent(ctx, ev); err != nil {
			s.logger.WithErr(err).WithFields(map[string]interface{}{"channel": ev.Channel}).
				Error("slack handler error")
		}
		return nil
	})
}

// Wait blocks until every dispatched event has been handled.
func (s *SlackRelay) Wait() {
	_ = s.inflight.Wait()
}

// HandleMessageEvent relays one message event and posts the reply in its
// thread. Bot messages, the relay's own messages and edits are ignored.
func (s *SlackRelay) HandleMessageEvent(ctx context.Context, ev *slackevents.MessageEvent) error {
	if ev.User == "" || ev.SubType != "" {
		return nil
	}

	threadTS := ev.ThreadTimeStamp
	if threadTS == "" {
		threadTS = ev.TimeStamp
	}

	reply, ok, err := s.hub.Handle(ctx, InboundMessage{
		Key:      ev.Channel + ":" + threadTS,
		AuthorID: ev.User,
		FromBot:  ev.BotID != "" || ev.User == s.botUserID,
		Text:     ev.Text,
	})
	if err != nil || !ok {
		return err
	}

	if _, _, err := s.api.PostMessage(ev.Channel,
		slack.MsgOptionText(reply, false),
		slack.MsgOptionTS(threadTS),
	); err != nil {
		return fmt.Errorf("failed to post slack reply: %w", err)
	}
	return nil
}
