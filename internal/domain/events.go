// Package domain defines events for the engine's event-driven core.
// Events decouple the state machine from the player surface and any UI.
package domain

import (
	"time"
)

// Event is the base interface for all events in the engine.
type Event interface {
	// Type returns the event type identifier
	Type() EventType

	// Timestamp returns when the event occurred
	Timestamp() time.Time
}

// EventType is a string identifier for different event types.
type EventType string

// Event type constants define all possible events in the engine.
const (
	// State machine events
	EventTrackChanged     EventType = "player.track_changed"
	EventPlayStateChanged EventType = "player.play_state_changed"
	EventVolumeChanged    EventType = "player.volume_changed"
	EventShuffleToggled   EventType = "player.shuffle_toggled"
	EventRepeatChanged    EventType = "player.repeat_changed"
	EventQueueChanged     EventType = "player.queue_changed"

	// Surface/graph events
	EventTrackEnded    EventType = "graph.track_ended"
	EventProgress      EventType = "graph.progress"
	EventWaveformReady EventType = "graph.waveform_ready"
	EventPlaybackError EventType = "graph.playback_error"
)

// EventHandler is a function that handles events.
type EventHandler func(event Event)

// SubscriptionID uniquely identifies an event subscription.
type SubscriptionID string

// baseEvent provides common event functionality.
type baseEvent struct {
	timestamp time.Time
}

// Timestamp returns when the event occurred.
func (e baseEvent) Timestamp() time.Time {
	return e.timestamp
}

func newBaseEvent() baseEvent {
	return baseEvent{timestamp: time.Now()}
}

// TrackChangedEvent is published when the current track changes.
// Track is nil when the player becomes idle.
type TrackChangedEvent struct {
	baseEvent
	Track *Track
}

// Type returns the event type.
func (e TrackChangedEvent) Type() EventType { return EventTrackChanged }

// NewTrackChangedEvent creates a new TrackChangedEvent.
func NewTrackChangedEvent(track *Track) TrackChangedEvent {
	return TrackChangedEvent{baseEvent: newBaseEvent(), Track: track}
}

// PlayStateChangedEvent is published when intended playback flips.
// Playing reflects intent, decoupled from decode/buffer readiness.
type PlayStateChangedEvent struct {
	baseEvent
	Playing bool
	Track   *Track
}

// Type returns the event type.
func (e PlayStateChangedEvent) Type() EventType { return EventPlayStateChanged }

// NewPlayStateChangedEvent creates a new PlayStateChangedEvent.
func NewPlayStateChangedEvent(playing bool, track *Track) PlayStateChangedEvent {
	return PlayStateChangedEvent{baseEvent: newBaseEvent(), Playing: playing, Track: track}
}

// VolumeChangedEvent is published when the volume changes.
type VolumeChangedEvent struct {
	baseEvent
	Volume float64 // 0.0 to 1.0
}

// Type returns the event type.
func (e VolumeChangedEvent) Type() EventType { return EventVolumeChanged }

// NewVolumeChangedEvent creates a new VolumeChangedEvent.
func NewVolumeChangedEvent(volume float64) VolumeChangedEvent {
	return VolumeChangedEvent{baseEvent: newBaseEvent(), Volume: volume}
}

// ShuffleToggledEvent is published when shuffle mode flips.
type ShuffleToggledEvent struct {
	baseEvent
	Enabled bool
}

// Type returns the event type.
func (e ShuffleToggledEvent) Type() EventType { return EventShuffleToggled }

// NewShuffleToggledEvent creates a new ShuffleToggledEvent.
func NewShuffleToggledEvent(enabled bool) ShuffleToggledEvent {
	return ShuffleToggledEvent{baseEvent: newBaseEvent(), Enabled: enabled}
}

// RepeatChangedEvent is published when the repeat mode cycles.
type RepeatChangedEvent struct {
	baseEvent
	Mode RepeatMode
}

// Type returns the event type.
func (e RepeatChangedEvent) Type() EventType { return EventRepeatChanged }

// NewRepeatChangedEvent creates a new RepeatChangedEvent.
func NewRepeatChangedEvent(mode RepeatMode) RepeatChangedEvent {
	return RepeatChangedEvent{baseEvent: newBaseEvent(), Mode: mode}
}

// QueueChangedEvent is published whenever the playlist mutates.
type QueueChangedEvent struct {
	baseEvent
	Playlist []Track
	Current  *Track
}

// Type returns the event type.
func (e QueueChangedEvent) Type() EventType { return EventQueueChanged }

// NewQueueChangedEvent creates a new QueueChangedEvent.
func NewQueueChangedEvent(playlist []Track, current *Track) QueueChangedEvent {
	return QueueChangedEvent{baseEvent: newBaseEvent(), Playlist: playlist, Current: current}
}

// TrackEndedEvent is published when the graph reports natural completion.
type TrackEndedEvent struct {
	baseEvent
	Track Track
}

// Type returns the event type.
func (e TrackEndedEvent) Type() EventType { return EventTrackEnded }

// NewTrackEndedEvent creates a new TrackEndedEvent.
func NewTrackEndedEvent(track Track) TrackEndedEvent {
	return TrackEndedEvent{baseEvent: newBaseEvent(), Track: track}
}

// ProgressEvent is published periodically while a track is loaded.
// Position and Duration are in seconds.
type ProgressEvent struct {
	baseEvent
	Position float64
	Duration float64
}

// Type returns the event type.
func (e ProgressEvent) Type() EventType { return EventProgress }

// NewProgressEvent creates a new ProgressEvent.
func NewProgressEvent(position, duration float64) ProgressEvent {
	return ProgressEvent{baseEvent: newBaseEvent(), Position: position, Duration: duration}
}

// WaveformReadyEvent is published when peaks for the current track become
// available, either precomputed or freshly extracted.
type WaveformReadyEvent struct {
	baseEvent
	TrackID string
	Peaks   []float64
}

// Type returns the event type.
func (e WaveformReadyEvent) Type() EventType { return EventWaveformReady }

// NewWaveformReadyEvent creates a new WaveformReadyEvent.
func NewWaveformReadyEvent(trackID string, peaks []float64) WaveformReadyEvent {
	return WaveformReadyEvent{baseEvent: newBaseEvent(), TrackID: trackID, Peaks: peaks}
}

// PlaybackErrorEvent is published when loading or starting a track fails.
// Recoverable errors (output rejection) leave the session intact; the rest
// reset the surface to a clean not-loaded state.
type PlaybackErrorEvent struct {
	baseEvent
	Track       *Track
	Err         error
	Recoverable bool
}

// Type returns the event type.
func (e PlaybackErrorEvent) Type() EventType { return EventPlaybackError }

// NewPlaybackErrorEvent creates a new PlaybackErrorEvent.
func NewPlaybackErrorEvent(track *Track, err error, recoverable bool) PlaybackErrorEvent {
	return PlaybackErrorEvent{baseEvent: newBaseEvent(), Track: track, Err: err, Recoverable: recoverable}
}
