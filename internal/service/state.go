// Package service provides the playback business logic: the playlist/queue
// state machine and the surface binding it to the audio graph.
package service

import (
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/samber/lo"

	"github.com/echoforge/echoforge/internal/domain"
	"github.com/echoforge/echoforge/internal/ports"
)

// PlayerState is the single source of truth for what should play.
// It holds the current track, playlist, shuffle/repeat flags, intended
// playing state and volume, and is mutated exclusively through its
// transition methods. Invalid transitions are no-ops; no method returns
// an error.
//
// Every mutation publishes events on the bus and persists the durable
// subset to the state repository. Events are published after the internal
// lock is released, so handlers are free to read state back.
//
// Thread-safety: all methods are safe for concurrent use.
type PlayerState struct {
	logger *slog.Logger
	bus    ports.EventBus
	repo   ports.StateRepository

	mu       sync.RWMutex
	current  *domain.Track
	playing  bool
	volume   float64
	playlist []domain.Track
	shuffle  bool
	shuffled []domain.Track
	repeat   domain.RepeatMode
}

// NewPlayerState creates the state machine and hydrates it from the
// repository. The playing flag always starts false; a session never
// auto-resumes playback.
func NewPlayerState(logger *slog.Logger, bus ports.EventBus, repo ports.StateRepository) *PlayerState {
	s := &PlayerState{
		logger: logger.With("component", "playerstate"),
		bus:    bus,
		repo:   repo,
		volume: domain.DefaultVolume,
		repeat: domain.RepeatOff,
	}
	s.hydrate()
	return s
}

// hydrate restores the durable subset from the repository. Corrupt or
// missing fields fall back to defaults rather than failing startup.
func (s *PlayerState) hydrate() {
	snap, err := s.repo.Load()
	if err != nil {
		s.logger.Warn("failed to load saved state, starting fresh", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.volume = clampVolume(snap.Volume)
	s.shuffle = snap.Shuffle
	if snap.Repeat.Valid() {
		s.repeat = snap.Repeat
	}
	s.playlist = dedupeByID(snap.Playlist)
	s.current = snap.CurrentTrack
	if s.shuffle {
		s.reshuffleLocked()
	}

	s.logger.Info("state hydrated",
		"tracks", len(s.playlist),
		"volume", s.volume,
		"shuffle", s.shuffle,
		"repeat", string(s.repeat),
	)
}

// PlayTrack makes track the current track and marks the player as playing.
// Selecting the already current track just resumes it.
func (s *PlayerState) PlayTrack(track domain.Track) {
	s.mu.Lock()

	sameTrack := s.current != nil && s.current.SameAs(track)
	s.current = &track
	s.playing = true

	events := []domain.Event{domain.NewPlayStateChangedEvent(true, &track)}
	if !sameTrack {
		events = append([]domain.Event{domain.NewTrackChangedEvent(&track)}, events...)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.finish(snap, events...)
}

// TogglePlay flips the intended playing state. No-op without a track.
func (s *PlayerState) TogglePlay() {
	s.mu.Lock()

	if s.current == nil {
		s.mu.Unlock()
		return
	}

	s.playing = !s.playing
	playing := s.playing
	track := s.current
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.finish(snap, domain.NewPlayStateChangedEvent(playing, track))
}

// SetVolume stores the volume, clamped to [0,1].
func (s *PlayerState) SetVolume(v float64) {
	s.mu.Lock()
	s.volume = clampVolume(v)
	volume := s.volume
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.finish(snap, domain.NewVolumeChangedEvent(volume))
}

// ToggleShuffle flips shuffle mode, deriving a fresh shuffled ordering
// when it turns on.
func (s *PlayerState) ToggleShuffle() {
	s.mu.Lock()

	s.shuffle = !s.shuffle
	if s.shuffle {
		s.reshuffleLocked()
	} else {
		s.shuffled = nil
	}
	enabled := s.shuffle
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.finish(snap, domain.NewShuffleToggledEvent(enabled))
}

// ToggleRepeat cycles the repeat mode off -> all -> one -> off.
func (s *PlayerState) ToggleRepeat() {
	s.mu.Lock()
	s.repeat = s.repeat.Next()
	mode := s.repeat
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.finish(snap, domain.NewRepeatChangedEvent(mode))
}

// SetPlaylist replaces the playlist wholesale. Duplicate IDs are dropped,
// keeping the first occurrence.
func (s *PlayerState) SetPlaylist(tracks []domain.Track) {
	s.mu.Lock()

	s.playlist = dedupeByID(tracks)
	if s.shuffle {
		s.reshuffleLocked()
	}
	snap := s.snapshotLocked()
	queue := snap.Playlist
	current := snap.CurrentTrack
	s.mu.Unlock()

	s.finish(snap, domain.NewQueueChangedEvent(queue, current))
}

// AddToQueue appends tracks whose ID is not already present. Adding only
// duplicates leaves the playlist untouched and publishes nothing.
func (s *PlayerState) AddToQueue(tracks []domain.Track) {
	s.mu.Lock()

	added := 0
	for _, track := range tracks {
		if s.containsLocked(track.ID) {
			continue
		}
		s.playlist = append(s.playlist, track)
		added++
	}

	if added == 0 {
		s.mu.Unlock()
		return
	}

	if s.shuffle {
		s.reshuffleLocked()
	}
	snap := s.snapshotLocked()
	queue := snap.Playlist
	current := snap.CurrentTrack
	s.mu.Unlock()

	s.finish(snap, domain.NewQueueChangedEvent(queue, current))
}

// PlayNextInQueue places track immediately after the current track's
// playlist position, appending when there is no current track or it is
// not in the playlist. A track already present is moved rather than
// duplicated; queueing the current track itself is a no-op.
func (s *PlayerState) PlayNextInQueue(track domain.Track) {
	s.mu.Lock()

	if s.current != nil && s.current.SameAs(track) {
		s.mu.Unlock()
		return
	}

	s.playlist = lo.Reject(s.playlist, func(t domain.Track, _ int) bool {
		return t.SameAs(track)
	})

	insertAt := len(s.playlist)
	if s.current != nil {
		if _, idx, found := lo.FindIndexOf(s.playlist, func(t domain.Track) bool {
			return t.SameAs(*s.current)
		}); found {
			insertAt = idx + 1
		}
	}

	s.playlist = append(s.playlist[:insertAt], append([]domain.Track{track}, s.playlist[insertAt:]...)...)
	if s.shuffle {
		s.reshuffleLocked()
	}
	snap := s.snapshotLocked()
	queue := snap.Playlist
	current := snap.CurrentTrack
	s.mu.Unlock()

	s.finish(snap, domain.NewQueueChangedEvent(queue, current))
}

// RemoveTrack filters the track with the given ID out of the playlist.
// The currently playing track cannot be removed; only future entries are.
func (s *PlayerState) RemoveTrack(id string) {
	s.mu.Lock()

	if s.current != nil && s.current.ID == id {
		s.mu.Unlock()
		s.logger.Debug("refusing to remove the current track", "id", id)
		return
	}
	if !s.containsLocked(id) {
		s.mu.Unlock()
		return
	}

	s.playlist = lo.Reject(s.playlist, func(t domain.Track, _ int) bool {
		return t.ID == id
	})
	if s.shuffle {
		s.reshuffleLocked()
	}
	snap := s.snapshotLocked()
	queue := snap.Playlist
	current := snap.CurrentTrack
	s.mu.Unlock()

	s.finish(snap, domain.NewQueueChangedEvent(queue, current))
}

// ReorderTracks moves one playlist entry from fromIndex to toIndex.
// The shuffled ordering is deliberately left untouched; reordering is a
// linear-view operation. Out-of-range indices are a no-op.
func (s *PlayerState) ReorderTracks(fromIndex, toIndex int) {
	s.mu.Lock()

	if fromIndex < 0 || fromIndex >= len(s.playlist) ||
		toIndex < 0 || toIndex >= len(s.playlist) ||
		fromIndex == toIndex {
		s.mu.Unlock()
		return
	}

	track := s.playlist[fromIndex]
	s.playlist = append(s.playlist[:fromIndex], s.playlist[fromIndex+1:]...)
	s.playlist = append(s.playlist[:toIndex], append([]domain.Track{track}, s.playlist[toIndex:]...)...)

	snap := s.snapshotLocked()
	queue := snap.Playlist
	current := snap.CurrentTrack
	s.mu.Unlock()

	s.finish(snap, domain.NewQueueChangedEvent(queue, current))
}

// ClearQueue empties the playlist, keeping the current track as the sole
// remaining entry when one is set.
func (s *PlayerState) ClearQueue() {
	s.mu.Lock()

	s.playlist = nil
	if s.current != nil {
		s.playlist = []domain.Track{*s.current}
	}
	if s.shuffle {
		s.reshuffleLocked()
	}
	snap := s.snapshotLocked()
	queue := snap.Playlist
	current := snap.CurrentTrack
	s.mu.Unlock()

	s.finish(snap, domain.NewQueueChangedEvent(queue, current))
}

// PlayNext advances to the next track in the active ordering. With repeat
// one the current track replays; at the end of the queue repeat all wraps
// to the start while repeat off stops playback.
func (s *PlayerState) PlayNext() {
	s.advance(1)
}

// PlayPrev retreats to the previous track in the active ordering, with
// the same boundary rules as PlayNext mirrored to the front of the queue.
func (s *PlayerState) PlayPrev() {
	s.advance(-1)
}

// advance implements PlayNext/PlayPrev. direction is +1 or -1.
func (s *PlayerState) advance(direction int) {
	s.mu.Lock()

	ordering := s.activeOrderingLocked()
	if s.current == nil || len(ordering) == 0 {
		s.mu.Unlock()
		return
	}

	_, idx, found := lo.FindIndexOf(ordering, func(t domain.Track) bool {
		return t.SameAs(*s.current)
	})
	if !found {
		// Ad hoc track outside the queue; nowhere to go.
		s.mu.Unlock()
		return
	}

	if s.repeat == domain.RepeatOne {
		track := *s.current
		s.playing = true
		snap := s.snapshotLocked()
		s.mu.Unlock()

		s.finish(snap,
			domain.NewTrackChangedEvent(&track),
			domain.NewPlayStateChangedEvent(true, &track),
		)
		return
	}

	next := idx + direction
	if next < 0 || next >= len(ordering) {
		if s.repeat != domain.RepeatAll {
			// End of the line: stay on the track but stop playing.
			s.playing = false
			track := s.current
			snap := s.snapshotLocked()
			s.mu.Unlock()

			s.finish(snap, domain.NewPlayStateChangedEvent(false, track))
			return
		}
		next = (next + len(ordering)) % len(ordering)
	}

	track := ordering[next]
	s.current = &track
	wasPlaying := s.playing
	s.playing = true
	snap := s.snapshotLocked()
	s.mu.Unlock()

	events := []domain.Event{domain.NewTrackChangedEvent(&track)}
	if !wasPlaying {
		events = append(events, domain.NewPlayStateChangedEvent(true, &track))
	}
	s.finish(snap, events...)
}

// CurrentTrack returns a copy of the current track, nil when idle.
func (s *PlayerState) CurrentTrack() *domain.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil
	}
	track := *s.current
	return &track
}

// IsPlaying returns the intended playing state.
func (s *PlayerState) IsPlaying() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playing
}

// Volume returns the stored volume.
func (s *PlayerState) Volume() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.volume
}

// Shuffle reports whether shuffle mode is active.
func (s *PlayerState) Shuffle() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shuffle
}

// Repeat returns the current repeat mode.
func (s *PlayerState) Repeat() domain.RepeatMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repeat
}

// Playlist returns a copy of the playlist in insertion order.
func (s *PlayerState) Playlist() []domain.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()

	playlist := make([]domain.Track, len(s.playlist))
	copy(playlist, s.playlist)
	return playlist
}

// ShuffledOrder returns a copy of the derived shuffled ordering, empty
// when shuffle is off.
func (s *PlayerState) ShuffledOrder() []domain.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shuffled := make([]domain.Track, len(s.shuffled))
	copy(shuffled, s.shuffled)
	return shuffled
}

// snapshotLocked builds the durable snapshot. Caller must hold the lock.
func (s *PlayerState) snapshotLocked() domain.PlayerSnapshot {
	playlist := make([]domain.Track, len(s.playlist))
	copy(playlist, s.playlist)

	var current *domain.Track
	if s.current != nil {
		track := *s.current
		current = &track
	}

	return domain.PlayerSnapshot{
		Volume:       s.volume,
		Shuffle:      s.shuffle,
		Repeat:       s.repeat,
		Playlist:     playlist,
		CurrentTrack: current,
	}
}

// finish persists a snapshot and publishes the mutation's events. Called
// without the lock held.
func (s *PlayerState) finish(snap domain.PlayerSnapshot, events ...domain.Event) {
	if err := s.repo.Save(snap); err != nil {
		s.logger.Warn("failed to persist state", "error", err)
	}
	for _, event := range events {
		s.bus.Publish(event)
	}
}

// activeOrderingLocked returns the ordering next/prev navigate over.
// Caller must hold the lock.
func (s *PlayerState) activeOrderingLocked() []domain.Track {
	if s.shuffle {
		return s.shuffled
	}
	return s.playlist
}

// reshuffleLocked derives a fresh Fisher-Yates ordering of the playlist.
// Caller must hold the lock.
func (s *PlayerState) reshuffleLocked() {
	s.shuffled = make([]domain.Track, len(s.playlist))
	copy(s.shuffled, s.playlist)
	rand.Shuffle(len(s.shuffled), func(i, j int) {
		s.shuffled[i], s.shuffled[j] = s.shuffled[j], s.shuffled[i]
	})
}

// containsLocked reports whether a track ID is in the playlist. Caller
// must hold the lock.
func (s *PlayerState) containsLocked(id string) bool {
	return lo.SomeBy(s.playlist, func(t domain.Track) bool {
		return t.ID == id
	})
}

func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func dedupeByID(tracks []domain.Track) []domain.Track {
	return lo.UniqBy(tracks, func(t domain.Track) string {
		return t.ID
	})
}
