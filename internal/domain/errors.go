// Package domain defines engine-level errors.
// These errors represent playback failures and are independent of the
// underlying audio backend.
package domain

import (
	"errors"
	"fmt"
	"math"
)

// Common errors returned by the audio graph and its collaborators.
var (
	// ErrDecodeFailed is returned when a container/codec cannot be decoded.
	// Surfaced to the user as a playback failure, never retried silently.
	ErrDecodeFailed = errors.New("audio decode failed")

	// ErrLoadTimeout is returned when media never became playable within
	// the load bound. Retryable by user action.
	ErrLoadTimeout = errors.New("audio load timed out")

	// ErrPlaybackRejected is returned when the output device refuses to
	// start playback. Recoverable: the user can retry without reloading.
	ErrPlaybackRejected = errors.New("playback rejected by audio output")

	// ErrInvalidPositionState is returned for non-finite or non-positive
	// durations/positions. Dropped from media-session updates, not surfaced.
	ErrInvalidPositionState = errors.New("invalid position state")

	// ErrInitializeInFlight is returned when Initialize is called while a
	// previous Initialize has not finished.
	ErrInitializeInFlight = errors.New("graph initialization already in flight")

	// ErrNotInitialized is returned when playback is attempted with no
	// graph session alive.
	ErrNotInitialized = errors.New("audio graph not initialized")

	// ErrUnsupportedFormat is returned when the container format is not
	// one the decoders understand.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// ValidatePosition reports whether a position/duration pair is safe to
// forward to the media session. A non-finite or non-positive duration, or
// a non-finite position, yields ErrInvalidPositionState; callers drop the
// update rather than forwarding it. Finite out-of-range positions are not
// an error, they clamp.
func ValidatePosition(position, duration float64) error {
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return ErrInvalidPositionState
	}
	if math.IsNaN(position) || math.IsInf(position, 0) {
		return ErrInvalidPositionState
	}
	return nil
}

// GraphError wraps a low-level audio graph failure with the operation and
// resource it happened on.
type GraphError struct {
	Op      string // Operation that failed (e.g., "initialize", "decode", "play")
	URL     string // Media resource (if applicable)
	Message string // Error message
	Err     error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *GraphError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("audio graph %s failed for %q: %s", e.Op, e.URL, e.Message)
	}
	return fmt.Sprintf("audio graph %s failed: %s", e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *GraphError) Unwrap() error {
	return e.Err
}

// NewGraphError creates a new GraphError.
func NewGraphError(op, url, message string, err error) *GraphError {
	return &GraphError{
		Op:      op,
		URL:     url,
		Message: message,
		Err:     err,
	}
}

// StoreError wraps a state-store failure with the operation that hit it.
type StoreError struct {
	Op      string // Operation that failed (e.g., "save", "load")
	Key     string // Store key involved
	Message string // Error message
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("state store %s %q failed: %s", e.Op, e.Key, e.Message)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(op, key, message string, err error) *StoreError {
	return &StoreError{
		Op:      op,
		Key:     key,
		Message: message,
		Err:     err,
	}
}
