package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("llm: api key not configured")
	// ErrUpstream covers transport failures and non-2xx responses.
	ErrUpstream = errors.New("llm: upstream request failed")
	// ErrBadResponse covers undecodable or empty responses.
	ErrBadResponse = errors.New("llm: malformed response")
)

// Error wraps a sentinel with the failing operation and the provider's reply.
type Error struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("gemini: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Sentinel
}
