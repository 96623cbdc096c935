package gptbot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/shaharia-lab/gptbot/observability"
)

// Conversation owns one dialogue with a completion model: the transcript,
// the sampling configuration and the token counters.
//
// A Conversation is not safe for concurrent use. Send and SendWithRetry
// mutate shared state without locking, so at most one exchange may be in
// flight at a time. Use one Conversation per chat session (see
// SessionRegistry).
type Conversation struct {
	id         uuid.UUID
	provider   CompletionProvider
	persona    Persona
	cfg        ConversationConfig
	logger     observability.Logger
	transcript Transcript

	currentTokens int
	totalTokens   int
}

// NewConversation creates a conversation primed with the persona's
// introduction and greeting.
//
// Example usage:
//
//	provider := gptbot.NewOpenAICompletionProvider(gptbot.OpenAIProviderConfig{
//	    Client: gptbot.NewOpenAIClient(os.Getenv("OPENAI_API_KEY")),
//	})
//	convo := gptbot.NewConversation(provider, gptbot.DefaultPersona(),
//	    gptbot.WithTemperature(0.7),
//	)
//
//	reply, err := convo.SendWithRetry(ctx, "What's the tallest mountain?")
//	if err != nil {
//	    fmt.Println(gptbot.UserMessage(err))
//	}
func NewConversation(provider CompletionProvider, persona Persona, opts ...ConversationOption) *Conversation {
	cfg := NewConversationConfig(opts...)

	greetHuman, greetAI := persona.Greeting()
	transcript := NewTranscript(persona.Introduction(), cfg.humanPrefix, cfg.aiPrefix).
		Append(greetHuman, greetAI)

	id := uuid.New()
	return &Conversation{
		id:         id,
		provider:   provider,
		persona:    persona,
		cfg:        cfg,
		logger:     cfg.logger.WithFields(map[string]interface{}{observability.ConversationIDField: id.String()}),
		transcript: transcript,
		// Initial estimate; replaced by reported usage after the first exchange.
		currentTokens: EstimateTokens(transcript.Render()),
	}
}

// ID returns the conversation's unique identifier.
func (c *Conversation) ID() uuid.UUID { return c.id }

// Persona returns the persona the conversation was created with.
func (c *Conversation) Persona() Persona { return c.persona }

// Config returns the conversation's configuration.
func (c *Conversation) Config() ConversationConfig { return c.cfg }

// TokenEstimate returns the tokens consumed by the transcript as of the last
// successful exchange.
func (c *Conversation) TokenEstimate() int { return c.currentTokens }

// CumulativeTokens returns the tokens billed across all exchanges.
func (c *Conversation) CumulativeTokens() int { return c.totalTokens }

// Cost returns the cumulative cost in USD.
func (c *Conversation) Cost() float64 {
	return c.cfg.costPerToken * float64(c.totalTokens)
}

// Transcript returns the dialogue for display, without the trailing prefix
// that awaits the next human turn.
func (c *Conversation) Transcript() string {
	return c.transcript.Log()
}

// Turns returns the recorded turns, including the seeded greeting.
func (c *Conversation) Turns() []Turn {
	return c.transcript.Turns()
}

// Send makes a single completion attempt for message. On success the
// exchange is appended to the transcript and the counters are updated. On
// failure it returns a *CompletionError and leaves all state untouched.
func (c *Conversation) Send(ctx context.Context, message string) (string, error) {
	return c.send(ctx, message, 1)
}

func (c *Conversation) send(ctx context.Context, message string, attempt int) (string, error) {
	prompt := c.transcript.Prompt(message)
	promptEstimate := c.currentTokens + EstimateTokens(message+c.cfg.aiPrefix)

	if promptEstimate > c.cfg.modelContextLimit {
		err := &CompletionError{
			Kind:    FailureConvoTooLong,
			Message: fmt.Sprintf("estimated %d prompt tokens exceeds the %d token limit", promptEstimate, c.cfg.modelContextLimit),
		}
		c.observe(ctx, attempt, CompletionResponse{}, err)
		return "", err
	}

	resp, err := c.provider.Complete(ctx, CompletionRequest{
		Prompt:           prompt,
		MaxTokens:        int64(c.cfg.modelContextLimit - promptEstimate),
		Temperature:      c.cfg.sampling.Temperature,
		FrequencyPenalty: c.cfg.sampling.FrequencyPenalty,
		PresencePenalty:  c.cfg.sampling.PresencePenalty,
	})
	if err != nil {
		ce := classifyProviderError(err, 0, "")
		c.observe(ctx, attempt, CompletionResponse{}, ce)
		return "", ce
	}

	reply := strings.TrimSpace(resp.Text)
	if resp.TotalTokens <= 0 {
		resp.TotalTokens = EstimateTokens(prompt + reply)
	}

	c.transcript = c.transcript.Append(message, reply)
	c.currentTokens = resp.TotalTokens
	c.totalTokens += resp.TotalTokens

	c.observe(ctx, attempt, resp, nil)
	return reply, nil
}

type attemptOutcome int

const (
	outcomeDone attemptOutcome = iota
	outcomeRetry
	outcomeRemediate
)

func outcomeOf(err error, remediated bool) attemptOutcome {
	kind := FailureKindOf(err)
	switch {
	case kind == FailureInvalidRequest && !remediated:
		return outcomeRemediate
	case kind.Retryable():
		return outcomeRetry
	default:
		return outcomeDone
	}
}

// SendWithRetry sends message and retries transient failures.
//
// A rejected (invalid) message is padded with spaces and sent once more,
// outside the attempt count; a second rejection is final. Service
// unavailability, API errors and rate limiting are retried with the original
// message after a randomized exponential delay, up to the configured number
// of attempts, after which a FailureRetryExhausted error is returned. Success
// and FailureConvoTooLong return immediately.
func (c *Conversation) SendWithRetry(ctx context.Context, message string) (string, error) {
	delays := c.newBackOff()
	remediated := false

	var lastErr error
	for attempt := 1; attempt <= c.cfg.maxAttempts; attempt++ {
		reply, err := c.send(ctx, message, attempt)
		outcome := outcomeOf(err, remediated)

		if outcome == outcomeRemediate {
			remediated = true
			c.cfg.metrics.observeRemediation()
			c.logger.WithFields(map[string]interface{}{observability.AttemptField: attempt}).
				Info("completion rejected as invalid, retrying once with padded message")

			reply, err = c.send(ctx, message+c.cfg.padding, attempt)
			outcome = outcomeOf(err, remediated)
		}

		if outcome == outcomeDone {
			return reply, err
		}

		lastErr = err
		if attempt == c.cfg.maxAttempts {
			break
		}

		delay := delays.NextBackOff()
		if delay > c.cfg.maxBackoff {
			delay = c.cfg.maxBackoff
		}
		c.cfg.metrics.observeRetry(delay)
		c.logger.WithFields(map[string]interface{}{
			observability.AttemptField:     attempt,
			observability.FailureKindField: FailureKindOf(err).String(),
		}).Warnf("completion attempt failed, retrying in %s", delay)

		if err := sleep(ctx, delay); err != nil {
			return "", &CompletionError{Kind: FailureCanceled, Message: "cancelled while waiting to retry", Err: err}
		}
	}

	c.logger.WithErr(lastErr).Errorf("giving up after %d attempts", c.cfg.maxAttempts)
	return "", &CompletionError{
		Kind:     FailureRetryExhausted,
		Message:  fmt.Sprintf("no successful completion after %d attempts", c.cfg.maxAttempts),
		Attempts: c.cfg.maxAttempts,
		Err:      lastErr,
	}
}

// Chat is SendWithRetry for chat adapters: it returns either the reply or
// the user-facing message for the failure, both as plain text.
func (c *Conversation) Chat(ctx context.Context, message string) string {
	reply, err := c.SendWithRetry(ctx, message)
	if err != nil {
		return UserMessage(err)
	}
	return reply
}

func (c *Conversation) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.initialBackoff
	b.MaxInterval = c.cfg.maxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// observe reports one attempt to the logger, metrics and usage recorder.
func (c *Conversation) observe(ctx context.Context, attempt int, resp CompletionResponse, err error) {
	kind := FailureKindOf(err)
	logger := c.logger.WithFields(map[string]interface{}{
		observability.AttemptField:     attempt,
		observability.FailureKindField: kind.String(),
	})

	switch {
	case err == nil:
		logger.Debugf("completion succeeded using %d tokens (%d total)", resp.TotalTokens, c.totalTokens)
	case kind.Retryable():
		logger.WithErr(err).Warn("completion attempt failed")
	default:
		logger.WithErr(err).Error("completion attempt failed")
	}

	c.cfg.metrics.observeAttempt(kind, resp.TotalTokens)

	if c.cfg.usageRecorder == nil {
		return
	}
	record := UsageRecord{
		ConversationID: c.id,
		Attempt:        attempt,
		FailureKind:    kind,
		PromptTokens:   resp.PromptTokens,
		TotalTokens:    resp.TotalTokens,
		Cost:           c.cfg.costPerToken * float64(resp.TotalTokens),
		CreatedAt:      time.Now().UTC(),
	}
	if recErr := c.cfg.usageRecorder.RecordUsage(context.WithoutCancel(ctx), record); recErr != nil {
		logger.WithErr(recErr).Warn("failed to record usage")
	}
}
