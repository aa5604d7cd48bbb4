// Package apierr turns raw request failures into structured, classified errors.
package apierr

import (
	"errors"
	"fmt"
	"time"
)

// Error is the structured form of every failure surfaced by the API client.
// It is immutable once returned by Classify.
type Error struct {
	Code        Code   `json:"code"`
	Message     string `json:"message"`
	UserMessage string `json:"userMessage"`
	StatusCode  int    `json:"statusCode,omitempty"`
	Details     any    `json:"details,omitempty"`
	Timestamp   string `json:"timestamp"`
	Retryable   bool   `json:"retryable"`

	cause error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Code, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches another *Error by code, so sentinels like ErrRequestExpired work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == e.Message
}

var (
	// ErrRequestExpired rejects offline-queued requests that aged out or exhausted their requeues.
	ErrRequestExpired = &Error{
		Code:        CodeOffline,
		Message:     "request expired",
		UserMessage: msgOffline,
	}

	// ErrMonitorClosed rejects queued requests still pending when the network monitor shuts down.
	ErrMonitorClosed = &Error{
		Code:        CodeOffline,
		Message:     "network monitor closed",
		UserMessage: msgOffline,
	}
)

// Expired returns a timestamped copy of ErrRequestExpired.
func Expired() *Error {
	e := *ErrRequestExpired
	e.Timestamp = timestamp()
	return &e
}

// HTTPError is a non-2xx response, shaped as {response: {status, data}}.
type HTTPError struct {
	Status int
	Data   []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http status %d", e.Status)
}

// CodeOf returns the classified code of err, or CodeUnknown when err is not an *Error.
func CodeOf(err error) Code {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return CodeUnknown
}

// UserMessage returns the user facing message for any error, falling back when it is empty.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	if msg := Classify(err).UserMessage; msg != "" {
		return msg
	}
	return fallback
}

var now = time.Now

func timestamp() string {
	return now().UTC().Format(time.RFC3339Nano)
}
