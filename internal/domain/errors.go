package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy for the conversation core. Callers branch with errors.Is;
// the HTTP layer maps each sentinel to a status code and a stable code
// string so clients can tell "wrong identifier" from "try again shortly".
var (
	// ErrMalformedEnvelope: a message envelope with a missing or unknown role.
	ErrMalformedEnvelope = errors.New("malformed message envelope")

	// ErrInvalidArguments: an ambiguous or insufficient argument combination.
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrOutOfRange: a restart index outside [0, len(history)].
	ErrOutOfRange = errors.New("index out of range")

	// ErrNotFound: a context-store entry or stream job that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSessionNotFound: an unknown or already removed session identifier.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionBusy: the session guard is held by an in-flight turn.
	// This is an expected condition under concurrent use, not a defect.
	ErrSessionBusy = errors.New("session is currently processing another message")
)

// UpstreamError wraps a failed or unparseable model gateway call. The core
// never retries these; the message carries the operation and cause but no
// client configuration (API keys live in the adapter, not the error).
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
