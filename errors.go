package gptbot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// FailureKind tags the outcome of a single completion attempt. Kinds are
// mutually exclusive; FailureNone means the attempt succeeded.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureConvoTooLong
	FailureInvalidRequest
	FailureServiceUnavailable
	FailureAPIError
	FailureRateLimited
	FailureRetryExhausted
	FailureUnauthorized
	FailureCanceled
)

var failureKindNames = map[FailureKind]string{
	FailureNone:               "none",
	FailureConvoTooLong:       "convo_too_long",
	FailureInvalidRequest:     "invalid_request",
	FailureServiceUnavailable: "service_unavailable",
	FailureAPIError:           "api_error",
	FailureRateLimited:        "rate_limited",
	FailureRetryExhausted:     "retry_exhausted",
	FailureUnauthorized:       "unauthorized",
	FailureCanceled:           "canceled",
}

var failureKindMessages = map[FailureKind]string{
	FailureConvoTooLong:       "[ERROR] The conversation is already too long.",
	FailureInvalidRequest:     "[ERROR] The conversation is either too long, or that last message was too short/messed up for the model to cope with.",
	FailureServiceUnavailable: "[ERROR] The server is overloaded or not ready yet! Please try again later.",
	FailureAPIError:           "[ERROR] An error occurred with the completion servers! Please try again later.",
	FailureRateLimited:        "[ERROR] API rate limit exceeded! Please try again later.",
	FailureRetryExhausted:     "[ERROR] The completion service kept failing, so I gave up. Please try again later.",
	FailureUnauthorized:       "[ERROR] The bot is not authorized to use the completion service.",
	FailureCanceled:           "[ERROR] The request was cancelled before a reply arrived.",
}

// String returns the snake_case name used in logs, metrics and usage records.
func (k FailureKind) String() string {
	if name, ok := failureKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("failure_kind(%d)", int(k))
}

// Message returns the user-facing text relayed to the chat platform.
func (k FailureKind) Message() string {
	return failureKindMessages[k]
}

// Retryable reports whether waiting and trying again can resolve the failure.
func (k FailureKind) Retryable() bool {
	switch k {
	case FailureServiceUnavailable, FailureAPIError, FailureRateLimited:
		return true
	default:
		return false
	}
}

// CompletionError is returned by Conversation.Send and by completion
// providers for every expected service-side failure.
type CompletionError struct {
	Kind       FailureKind
	StatusCode int
	Message    string
	// Attempts is set on FailureRetryExhausted errors.
	Attempts int
	Err      error
}

// NewCompletionError creates a CompletionError of the given kind.
func NewCompletionError(kind FailureKind, message string, err error) *CompletionError {
	return &CompletionError{Kind: kind, Message: message, Err: err}
}

func (e *CompletionError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// Is matches another *CompletionError by kind, so
// errors.Is(err, &CompletionError{Kind: FailureRateLimited}) works.
func (e *CompletionError) Is(target error) bool {
	var t *CompletionError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// UserMessage returns the text a chat adapter relays for err. Retry
// exhaustion reports how many attempts were made.
func UserMessage(err error) string {
	var ce *CompletionError
	if errors.As(err, &ce) && ce.Kind == FailureRetryExhausted && ce.Attempts > 0 {
		return fmt.Sprintf("[ERROR] The completion service kept failing, so I gave up after %d attempts. Please try again later.", ce.Attempts)
	}
	return FailureKindOf(err).Message()
}

// FailureKindOf extracts the failure kind from err. A nil error is
// FailureNone; an error carrying no kind is treated as FailureAPIError.
func FailureKindOf(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return FailureCanceled
	}
	return FailureAPIError
}

// ClassifyStatusCode maps an HTTP status returned by a completion service to
// a failure kind.
func ClassifyStatusCode(code int) FailureKind {
	switch {
	case code >= 200 && code < 300:
		return FailureNone
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return FailureUnauthorized
	case code == http.StatusTooManyRequests:
		return FailureRateLimited
	case code == http.StatusServiceUnavailable, code == 529:
		// 529 is Anthropic's "overloaded".
		return FailureServiceUnavailable
	case code >= 500:
		return FailureAPIError
	case code == http.StatusBadRequest, code == http.StatusNotFound, code == http.StatusConflict,
		code == http.StatusRequestEntityTooLarge, code == http.StatusUnprocessableEntity:
		return FailureInvalidRequest
	default:
		return FailureAPIError
	}
}

// classifyProviderError turns any provider error into a *CompletionError,
// keeping an existing classification when there is one.
func classifyProviderError(err error, statusCode int, message string) *CompletionError {
	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &CompletionError{Kind: FailureCanceled, Message: err.Error(), Err: err}
	}
	if message == "" {
		message = err.Error()
	}
	kind := FailureAPIError
	if statusCode != 0 {
		kind = ClassifyStatusCode(statusCode)
	}
	return &CompletionError{Kind: kind, StatusCode: statusCode, Message: message, Err: err}
}
