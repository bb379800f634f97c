// Package domain contains the core playback models with no external dependencies.
// This package defines the fundamental entities of the EchoForge playback engine.
package domain

// Track represents a single playable track at the engine boundary.
// The surrounding catalog is responsible for mapping its richer records
// down to this shape. Tracks are immutable once placed in the playlist;
// identity is by ID only.
type Track struct {
	// ID is a unique, stable identifier for the track
	ID string

	// Title is the display title
	Title string

	// Artist is the performing artist name
	Artist string

	// AudioURL is a playable media resource reference (http(s) or file path)
	AudioURL string

	// CoverImageURL optionally references artwork for the track
	CoverImageURL string

	// WaveformData optionally carries precomputed peak amplitudes in [0,1]
	WaveformData []float64
}

// SameAs reports whether two tracks are the same logical track.
// Two entries with the same ID are the same track even if other
// fields differ.
func (t Track) SameAs(other Track) bool {
	return t.ID == other.ID
}

// RepeatMode controls queue navigation at playlist boundaries.
type RepeatMode string

// Available repeat modes.
const (
	// RepeatOff stops playback at the end of the queue
	RepeatOff RepeatMode = "off"

	// RepeatAll wraps around at either end of the queue
	RepeatAll RepeatMode = "all"

	// RepeatOne replays the current track indefinitely
	RepeatOne RepeatMode = "one"
)

// Next returns the mode that follows in the off -> all -> one -> off cycle.
func (m RepeatMode) Next() RepeatMode {
	switch m {
	case RepeatOff:
		return RepeatAll
	case RepeatAll:
		return RepeatOne
	default:
		return RepeatOff
	}
}

// Valid reports whether the mode is one of the three known values.
// Hydration from the state store uses this to reject corrupt data.
func (m RepeatMode) Valid() bool {
	switch m {
	case RepeatOff, RepeatAll, RepeatOne:
		return true
	}
	return false
}

// PlayerSnapshot is the durable subset of player state.
// It is written to the state repository after every mutation and read
// back once at startup. The playing flag is deliberately absent: a
// session never auto-resumes playback.
type PlayerSnapshot struct {
	// Volume is the saved volume level (0.0 to 1.0)
	Volume float64

	// Shuffle indicates whether shuffle mode was active
	Shuffle bool

	// Repeat is the saved repeat mode
	Repeat RepeatMode

	// Playlist is the saved queue in insertion order
	Playlist []Track

	// CurrentTrack is the last loaded track (nil if none)
	CurrentTrack *Track
}

// DefaultVolume is the volume applied when no saved state exists.
const DefaultVolume = 0.8

// WaveformSamples is the default number of peak buckets extracted per track.
const WaveformSamples = 512
