package telegram

import (
	"fmt"
	"net/http"
	"time"
)

// APIError is the ok=false payload of a Bot API response. Description is the
// human-readable text ("Bad Request: chat not found") that gets surfaced to
// users when a moderation action cannot be delivered.
type APIError struct {
	Code        int
	Description string
	RetryAfter  time.Duration
}

func (ae *APIError) Error() string {
	return fmt.Sprintf("%d: %s", ae.Code, ae.Description)
}

// Error wraps any failure of a Bot API call together with the HTTP status it
// arrived with. Unwrap exposes the inner *APIError (when the body decoded)
// for errors.As at call sites.
type Error struct {
	StatusCode int
	Wrapped    error
}

func (e *Error) Error() string {
	if e.Wrapped == nil {
		return fmt.Sprintf("telegram API error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("telegram API error: HTTP %d: %s", e.StatusCode, e.Wrapped)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

func (e *Error) IsThrottled() bool {
	return e.StatusCode == http.StatusTooManyRequests
}
