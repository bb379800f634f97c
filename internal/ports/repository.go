// Package ports defines persistence interfaces for session state.
package ports

import (
	"github.com/echoforge/echoforge/internal/domain"
)

// StateRepository persists the durable subset of player state between
// sessions: volume, shuffle, repeat, the playlist and the current track.
// The playing flag is never persisted; playback never auto-resumes.
//
// Thread-safety: implementations must be thread-safe.
type StateRepository interface {
	// Save persists a full snapshot, replacing any previous one.
	Save(snapshot domain.PlayerSnapshot) error

	// Load retrieves the last saved snapshot. When nothing was saved it
	// returns a default snapshot (volume domain.DefaultVolume, repeat off,
	// empty playlist) rather than an error.
	Load() (domain.PlayerSnapshot, error)

	// Clear removes all saved state.
	Clear() error
}
