// Package apperror defines the error vocabulary shared across Takagi's
// HTTP surface. Every handler-facing error boils down to one of the
// sentinels here, which response.go maps to a status code and a
// {"detail": ...} body.
package apperror

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest covers malformed or disallowed input: unknown
	// client_id, insecure redirect_uri, missing required parameters.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrMismatchingState means the state envelope presented at the
	// callback does not describe the redirect_uri it arrived on.
	ErrMismatchingState = errors.New("mismatching state")

	// ErrUnauthorized covers a missing or invalid bearer access token.
	// Handlers answer with an empty 401 body, never a detail message.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound covers disabled or absent routes (root redirect off,
	// webfinger host not recognized, docs disabled).
	ErrNotFound = errors.New("not found")
)

// AppError is a sentinel error plus the human-readable detail that goes
// into the response body.
type AppError struct {
	Err     error
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func InvalidRequest(message string) *AppError {
	return &AppError{Err: ErrInvalidRequest, Message: message}
}

func MismatchingState(message string) *AppError {
	return &AppError{Err: ErrMismatchingState, Message: message}
}

func Unauthorized() *AppError {
	return &AppError{Err: ErrUnauthorized}
}

func NotFound(message string) *AppError {
	return &AppError{Err: ErrNotFound, Message: message}
}

// UpstreamError wraps a non-2xx response GitHub returned to one of our
// calls. Takagi re-raises GitHub's status code and body verbatim rather
// than translating them, so handlers type-switch on this to recover
// both.
type UpstreamError struct {
	Status int
	Body   []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("github upstream error: status %d: %s", e.Status, e.Body)
}

// NewUpstreamError builds an UpstreamError from a GitHub response status
// and raw body.
func NewUpstreamError(status int, body []byte) *UpstreamError {
	return &UpstreamError{Status: status, Body: body}
}
