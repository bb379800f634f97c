// Package noop provides a media session that talks to no OS surface.
// It backs headless runs and records what was published for tests.
package noop

import (
	"sync"

	"github.com/echoforge/echoforge/internal/ports"
)

// Session implements ports.MediaSession without any OS integration.
//
// Thread-safety: this implementation is thread-safe.
type Session struct {
	mu       sync.Mutex
	metadata ports.NowPlaying
	playing  bool
	position float64
	duration float64
	rate     float64
	handlers ports.TransportHandlers

	positionUpdates int
	closed          bool
}

// NewSession creates a no-op media session.
func NewSession() *Session {
	return &Session{}
}

// SetMetadata records the published metadata.
func (s *Session) SetMetadata(meta ports.NowPlaying) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata = meta
}

// SetPlaybackState records the published playing flag.
func (s *Session) SetPlaybackState(playing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = playing
}

// SetPosition records the published position state.
func (s *Session) SetPosition(position, duration, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = position
	s.duration = duration
	s.rate = rate
	s.positionUpdates++
}

// SetHandlers stores the transport handlers for later invocation.
func (s *Session) SetHandlers(handlers ports.TransportHandlers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = handlers
}

// Close marks the session closed. Safe to call repeatedly.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Metadata returns the last published metadata (for testing).
func (s *Session) Metadata() ports.NowPlaying {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadata
}

// Playing returns the last published playing flag (for testing).
func (s *Session) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Position returns the last published position state (for testing).
func (s *Session) Position() (position, duration, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position, s.duration, s.rate
}

// PositionUpdates returns how many position updates arrived (for testing).
func (s *Session) PositionUpdates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionUpdates
}

// Handlers returns the registered transport handlers (for testing).
func (s *Session) Handlers() ports.TransportHandlers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handlers
}

// Verify that Session implements the MediaSession interface
var _ ports.MediaSession = (*Session)(nil)
