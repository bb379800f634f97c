// Package ports defines the OS media-session interface.
package ports

// NowPlaying carries the metadata published to the OS for lock-screen and
// hardware-key surfaces.
type NowPlaying struct {
	TrackID    string
	Title      string
	Artist     string
	ArtworkURL string
}

// TransportHandlers are the actions the OS surface may invoke. Nil
// handlers disable the corresponding control. SeekBy receives a signed
// offset in seconds; SeekTo an absolute position in seconds.
type TransportHandlers struct {
	OnPlay     func()
	OnPause    func()
	OnNext     func()
	OnPrevious func()
	OnSeekBy   func(offset float64)
	OnSeekTo   func(seconds float64)
}

// MediaSession publishes now-playing metadata, playback state and position
// to an OS-level media-control surface and routes its transport actions
// back into the engine.
//
// Implementations must tolerate being driven from the surface's goroutines
// and must be safe to Close more than once.
type MediaSession interface {
	// SetMetadata publishes the current track's metadata. A zero value
	// clears the now-playing entry.
	SetMetadata(meta NowPlaying)

	// SetPlaybackState publishes the intended playing/paused flag.
	SetPlaybackState(playing bool)

	// SetPosition publishes position state. Position and duration are in
	// seconds; rate is the playback rate (1.0 for normal). Callers are
	// responsible for validation; implementations may assume finite,
	// in-range values.
	SetPosition(position, duration, rate float64)

	// SetHandlers registers the transport actions the OS may invoke.
	SetHandlers(handlers TransportHandlers)

	// Close releases the OS registration.
	Close() error
}
