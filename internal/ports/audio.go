// Package ports defines interfaces for dependency inversion.
// These interfaces keep the playback core independent of the audio backend,
// the persistence mechanism and the OS integration.
package ports

import (
	"context"
)

// FrequencySource exposes real-time frequency data from the live audio
// graph's analysis tap without altering the signal path.
//
// Implementations must be thread-safe: the frequency analyzer polls from
// its own frame loop while the audio backend writes samples.
type FrequencySource interface {
	// BinCount returns the number of frequency bins (half the FFT size).
	BinCount() int

	// ByteFrequencyData fills dst with per-bin magnitudes scaled to 0-255,
	// low to high frequency, and returns the number of bins written.
	// A silent or not-yet-started source yields all zeros.
	ByteFrequencyData(dst []byte) int
}

// AudioGraph is the only component allowed to create or destroy the native
// audio pipeline. At most one session (decoder, analysis tap, gain stage,
// output) is alive at any instant.
//
// Implementations must be thread-safe.
type AudioGraph interface {
	// Initialize tears down any existing session and builds a new one for
	// the given URL, leaving it paused at position zero. The load is
	// bounded by the context (callers typically apply a 10s timeout);
	// expiry yields domain.ErrLoadTimeout and undecodable media yields
	// domain.ErrDecodeFailed.
	//
	// A second call while one is in flight fails fast with
	// domain.ErrInitializeInFlight rather than corrupting shared state.
	// Any failure leaves the graph in a clean, re-initializable state.
	Initialize(ctx context.Context, url string) error

	// Initialized reports whether a session is currently alive.
	Initialized() bool

	// Play starts or resumes output. Output-start refusal is surfaced as
	// domain.ErrPlaybackRejected rather than swallowed; Play with no
	// session yields domain.ErrNotInitialized.
	Play() error

	// Pause suspends output, keeping the session and position.
	Pause()

	// SeekTo moves the playback position to the given offset in seconds,
	// clamped to [0, Duration]. No-op without a session.
	SeekTo(seconds float64)

	// CurrentTime returns the playback position in seconds, 0 without a session.
	CurrentTime() float64

	// Duration returns the total duration in seconds, 0 if not yet known.
	Duration() float64

	// SetVolume scales the gain stage, clamped to [0,1].
	SetVolume(v float64)

	// Volume returns the current gain, 1.0 without a session.
	Volume() float64

	// Analyser returns the live analysis tap, or nil without a session.
	Analyser() FrequencySource

	// OnEnded registers fn to run when the current session's media
	// completes naturally. The returned cancel removes the registration.
	// Registrations do not survive Cleanup.
	OnEnded(fn func()) (cancel func())

	// Cleanup disconnects the pipeline, stops output and releases the
	// session. Idempotent and safe to call when nothing is initialized.
	// Skipped with a warning while an Initialize is in flight.
	Cleanup()
}
