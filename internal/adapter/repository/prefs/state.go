// Package prefs persists player state through fyne.Preferences, the
// application-scoped key-value store.
package prefs

import (
	"encoding/json"
	"sync"

	"fyne.io/fyne/v2"

	"github.com/echoforge/echoforge/internal/domain"
	"github.com/echoforge/echoforge/internal/ports"
)

// Preference keys. Scalars are stored natively, structured values as JSON.
const (
	keyVolume   = "player.volume"
	keyShuffle  = "player.shuffle"
	keyRepeat   = "player.repeat"
	keyPlaylist = "player.playlist"
	keyCurrent  = "player.current_track"
)

// StateRepository implements ports.StateRepository on fyne.Preferences.
//
// Thread-safe: all operations protected by sync.RWMutex.
type StateRepository struct {
	prefs fyne.Preferences
	mu    sync.RWMutex
}

// NewStateRepository creates a state repository. The preferences
// parameter should be obtained from fyne.App.Preferences().
func NewStateRepository(prefs fyne.Preferences) *StateRepository {
	return &StateRepository{prefs: prefs}
}

// Save persists a full snapshot, replacing any previous one.
func (r *StateRepository) Save(snapshot domain.PlayerSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	playlist, err := json.Marshal(snapshot.Playlist)
	if err != nil {
		return domain.NewStoreError("save", keyPlaylist, "failed to marshal playlist", err)
	}

	current := ""
	if snapshot.CurrentTrack != nil {
		data, err := json.Marshal(snapshot.CurrentTrack)
		if err != nil {
			return domain.NewStoreError("save", keyCurrent, "failed to marshal current track", err)
		}
		current = string(data)
	}

	r.prefs.SetFloat(keyVolume, snapshot.Volume)
	r.prefs.SetBool(keyShuffle, snapshot.Shuffle)
	r.prefs.SetString(keyRepeat, string(snapshot.Repeat))
	r.prefs.SetString(keyPlaylist, string(playlist))
	r.prefs.SetString(keyCurrent, current)

	return nil
}

// Load retrieves the last saved snapshot, falling back to defaults for
// anything missing or corrupt.
func (r *StateRepository) Load() (domain.PlayerSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := domain.PlayerSnapshot{
		Volume:  r.prefs.FloatWithFallback(keyVolume, domain.DefaultVolume),
		Shuffle: r.prefs.Bool(keyShuffle),
		Repeat:  domain.RepeatOff,
	}

	if mode := domain.RepeatMode(r.prefs.String(keyRepeat)); mode.Valid() {
		snapshot.Repeat = mode
	}

	if data := r.prefs.String(keyPlaylist); data != "" {
		var playlist []domain.Track
		if err := json.Unmarshal([]byte(data), &playlist); err != nil {
			return snapshot, domain.NewStoreError("load", keyPlaylist, "failed to unmarshal playlist", err)
		}
		snapshot.Playlist = playlist
	}

	if data := r.prefs.String(keyCurrent); data != "" {
		var track domain.Track
		if err := json.Unmarshal([]byte(data), &track); err != nil {
			return snapshot, domain.NewStoreError("load", keyCurrent, "failed to unmarshal current track", err)
		}
		snapshot.CurrentTrack = &track
	}

	return snapshot, nil
}

// Clear removes all saved state.
func (r *StateRepository) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prefs.RemoveValue(keyVolume)
	r.prefs.RemoveValue(keyShuffle)
	r.prefs.RemoveValue(keyRepeat)
	r.prefs.RemoveValue(keyPlaylist)
	r.prefs.RemoveValue(keyCurrent)

	return nil
}

// Verify interface implementation
var _ ports.StateRepository = (*StateRepository)(nil)
