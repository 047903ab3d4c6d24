// Package apierr classifies failures returned by the GitHub API so that
// callers can decide between retrying and aborting.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrRetryExhausted is returned when all retry attempts are exhausted.
var ErrRetryExhausted = errors.New("retry attempts exhausted")

// ErrMissingCredential is returned before any request is issued when no
// token has been configured.
var ErrMissingCredential = errors.New("GITHUB_TOKEN is not set")

// Kind is the classification of an API failure.
type Kind string

const (
	// KindConfiguration covers problems detected before any request is sent.
	KindConfiguration Kind = "configuration"

	// KindTransient covers rate limiting, 429/502/503 and network failures.
	KindTransient Kind = "transient"

	// KindFatal covers every other 4xx/5xx and malformed responses.
	KindFatal Kind = "fatal"
)

// Error is a classified GitHub API error.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string

	// ResetAt is the provider-reported time at which the rate limit window
	// resets. Zero when unknown.
	ResetAt time.Time

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("github %s error", e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Configuration returns a configuration error wrapping err.
func Configuration(err error) *Error {
	return &Error{Kind: KindConfiguration, Message: "invalid configuration", Err: err}
}

// Transient returns a retryable error.
func Transient(status int, message string) *Error {
	return &Error{Kind: KindTransient, StatusCode: status, Message: message}
}

// Fatal returns a non-retryable error.
func Fatal(status int, message string) *Error {
	return &Error{Kind: KindFatal, StatusCode: status, Message: message}
}

// FromStatus classifies an HTTP status code. 429, 502 and 503 are
// transient, everything else is fatal.
func FromStatus(status int, message string) *Error {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable:
		return Transient(status, message)
	default:
		return Fatal(status, message)
	}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when
// there is none.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// IsRetryable reports whether err should be retried.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}

// ResetAt returns the rate limit reset time carried by err, if any.
func ResetAt(err error) time.Time {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.ResetAt
	}
	return time.Time{}
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
