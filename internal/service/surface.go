package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/echoforge/echoforge/internal/domain"
	"github.com/echoforge/echoforge/internal/ports"
	"github.com/echoforge/echoforge/internal/waveform"
)

const (
	// DefaultLoadTimeout bounds how long a track load may take before it
	// fails with domain.ErrLoadTimeout.
	DefaultLoadTimeout = 10 * time.Second

	// progressInterval is how often position/duration are published while
	// a track is loaded.
	progressInterval = 100 * time.Millisecond
)

// Surface is the reactive glue between the state machine and the audio
// graph. It listens for state events, (re)builds the graph session when
// the current track changes, feeds "ended" back into the state machine,
// publishes waveform and progress data, and mirrors everything into the
// OS media session.
//
// Each track change bumps a generation counter; async completions from a
// superseded load are discarded instead of applied.
type Surface struct {
	logger  *slog.Logger
	bus     ports.EventBus
	graph   ports.AudioGraph
	state   *PlayerState
	session ports.MediaSession

	loadTimeout time.Duration

	// loadMu serializes loads so two rapid track changes never race on
	// the graph's single-session lifecycle.
	loadMu sync.Mutex

	mu           sync.Mutex
	generation   uint64
	loadedTrack  *domain.Track
	cancelEnded  func()
	progressStop chan struct{}
	shutdown     bool

	wg   sync.WaitGroup
	subs []domain.SubscriptionID
}

// NewSurface wires the surface to the bus, graph and media session. The
// graph immediately receives the hydrated volume; nothing is loaded until
// a track change event arrives.
func NewSurface(
	logger *slog.Logger,
	bus ports.EventBus,
	graph ports.AudioGraph,
	state *PlayerState,
	session ports.MediaSession,
) *Surface {
	s := &Surface{
		logger:      logger.With("component", "surface"),
		bus:         bus,
		graph:       graph,
		state:       state,
		session:     session,
		loadTimeout: DefaultLoadTimeout,
	}

	s.subs = append(s.subs,
		bus.Subscribe(domain.EventTrackChanged, s.handleTrackChanged),
		bus.Subscribe(domain.EventPlayStateChanged, s.handlePlayStateChanged),
		bus.Subscribe(domain.EventVolumeChanged, s.handleVolumeChanged),
	)

	graph.SetVolume(state.Volume())

	session.SetHandlers(ports.TransportHandlers{
		OnPlay: func() {
			if !state.IsPlaying() {
				state.TogglePlay()
			}
		},
		OnPause: func() {
			if state.IsPlaying() {
				state.TogglePlay()
			}
		},
		OnNext:     state.PlayNext,
		OnPrevious: state.PlayPrev,
		OnSeekBy: func(offset float64) {
			s.SeekTo(graph.CurrentTime() + offset)
		},
		OnSeekTo: s.SeekTo,
	})

	return s
}

// SetLoadTimeout overrides the per-load timeout. Must be called before
// any track change is processed.
func (s *Surface) SetLoadTimeout(d time.Duration) {
	s.loadTimeout = d
}

// SeekTo moves the live session's position. User interaction with the
// waveform/progress control lands here.
func (s *Surface) SeekTo(seconds float64) {
	s.graph.SeekTo(seconds)
	s.publishProgress()
}

// Shutdown unsubscribes from the bus, cancels in-flight loads and loops,
// and tears the graph down. Safe to call once the surface is idle or busy.
func (s *Surface) Shutdown() {
	s.mu.Lock()
	s.shutdown = true
	s.generation++
	s.stopProgressLocked()
	if s.cancelEnded != nil {
		s.cancelEnded()
		s.cancelEnded = nil
	}
	s.loadedTrack = nil
	s.mu.Unlock()

	for _, sub := range s.subs {
		s.bus.Unsubscribe(sub)
	}
	s.subs = nil

	s.wg.Wait()
	s.graph.Cleanup()
	s.session.SetPlaybackState(false)

	s.logger.Info("surface shut down")
}

// handleTrackChanged reacts to the current track changing: it invalidates
// any in-flight load and rebuilds the graph session asynchronously.
func (s *Surface) handleTrackChanged(event domain.Event) {
	e, ok := event.(domain.TrackChangedEvent)
	if !ok {
		return
	}

	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return
	}
	s.generation++
	gen := s.generation
	s.stopProgressLocked()
	if s.cancelEnded != nil {
		s.cancelEnded()
		s.cancelEnded = nil
	}
	s.loadedTrack = nil
	s.mu.Unlock()

	if e.Track == nil {
		s.graph.Cleanup()
		s.session.SetMetadata(ports.NowPlaying{})
		s.session.SetPlaybackState(false)
		return
	}

	// Silence the superseded session right away; the load goroutine tears
	// it down properly once it holds the load lock.
	s.graph.Pause()

	track := *e.Track
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loadTrack(gen, track)
	}()
}

// handlePlayStateChanged drives the graph's play/pause from intent. A
// rejected play is surfaced as a recoverable error without flipping the
// state machine's playing flag.
func (s *Surface) handlePlayStateChanged(event domain.Event) {
	e, ok := event.(domain.PlayStateChangedEvent)
	if !ok {
		return
	}

	if !s.graph.Initialized() || s.LoadedTrack() == nil {
		// No session backs the current track yet. The graph may still hold
		// the superseded track's session, which must not be resumed; the
		// pending load applies intent once the new session attaches.
		return
	}

	if e.Playing {
		if err := s.graph.Play(); err != nil {
			s.logger.Warn("playback start rejected", "error", err)
			s.bus.Publish(domain.NewPlaybackErrorEvent(e.Track, err, true))
			s.session.SetPlaybackState(false)
			return
		}
		s.session.SetPlaybackState(true)
		return
	}

	s.graph.Pause()
	s.session.SetPlaybackState(false)
}

// handleVolumeChanged passes volume straight through to the gain stage.
func (s *Surface) handleVolumeChanged(event domain.Event) {
	e, ok := event.(domain.VolumeChangedEvent)
	if !ok {
		return
	}
	s.graph.SetVolume(e.Volume)
}

// loadTrack tears down the old session and builds a new one for track.
// Loads are serialized; a load that lost the generation race is skipped
// or, when it only loses after completing, torn down again.
func (s *Surface) loadTrack(gen uint64, track domain.Track) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	if !s.isCurrent(gen) {
		s.logger.Debug("skipping superseded load", "title", track.Title)
		return
	}

	s.graph.Cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), s.loadTimeout)
	defer cancel()

	if err := s.graph.Initialize(ctx, track.AudioURL); err != nil {
		if !s.isCurrent(gen) {
			return
		}
		s.logger.Error("track load failed", "title", track.Title, "url", track.AudioURL, "error", err)
		s.bus.Publish(domain.NewPlaybackErrorEvent(&track, err, false))
		s.session.SetPlaybackState(false)
		return
	}

	if !s.isCurrent(gen) {
		// Completed after being superseded; don't leave a stray session.
		s.graph.Cleanup()
		return
	}

	s.attachSession(gen, track)
}

// attachSession registers the ended hook, starts the progress loop and
// publishes metadata and waveform for a freshly loaded track.
func (s *Surface) attachSession(gen uint64, track domain.Track) {
	cancelEnded := s.graph.OnEnded(func() {
		if !s.isCurrent(gen) {
			return
		}
		s.bus.Publish(domain.NewTrackEndedEvent(track))
		s.state.PlayNext()
	})

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		cancelEnded()
		s.graph.Cleanup()
		return
	}
	loaded := track
	s.loadedTrack = &loaded
	s.cancelEnded = cancelEnded
	stop := make(chan struct{})
	s.progressStop = stop
	s.mu.Unlock()

	s.graph.SetVolume(s.state.Volume())

	s.session.SetMetadata(ports.NowPlaying{
		TrackID:    track.ID,
		Title:      track.Title,
		Artist:     track.Artist,
		ArtworkURL: track.CoverImageURL,
	})

	s.publishWaveform(track)

	s.wg.Add(1)
	go s.progressLoop(gen, stop)

	if s.state.IsPlaying() {
		if err := s.graph.Play(); err != nil {
			s.logger.Warn("playback start rejected", "title", track.Title, "error", err)
			s.bus.Publish(domain.NewPlaybackErrorEvent(&track, err, true))
			s.session.SetPlaybackState(false)
			return
		}
		s.session.SetPlaybackState(true)
		return
	}
	s.session.SetPlaybackState(false)
}

// publishWaveform emits precomputed peaks when the track carries them,
// falling back to local-file extraction. Remote tracks without peaks get
// no waveform; the progress loop alone drives their display.
func (s *Surface) publishWaveform(track domain.Track) {
	peaks := track.WaveformData

	if len(peaks) == 0 && !isRemote(track.AudioURL) {
		extracted, err := waveform.ExtractFile(strings.TrimPrefix(track.AudioURL, "file://"), domain.WaveformSamples)
		if err != nil {
			s.logger.Debug("waveform extraction unavailable", "title", track.Title, "error", err)
			return
		}
		peaks = extracted
	}

	if len(peaks) == 0 {
		return
	}
	s.bus.Publish(domain.NewWaveformReadyEvent(track.ID, peaks))
}

// progressLoop publishes position/duration every progressInterval and
// mirrors it into the media session until stopped or superseded.
func (s *Surface) progressLoop(gen uint64, stop chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !s.isCurrent(gen) {
				return
			}
			s.publishProgress()
		}
	}
}

// publishProgress reads the graph's clock, publishes it, and forwards it
// to the media session after validation. Non-finite or non-positive
// durations are dropped rather than forwarded; they are a transient
// decode-in-progress condition, not an error.
func (s *Surface) publishProgress() {
	position := s.graph.CurrentTime()
	duration := s.graph.Duration()

	s.bus.Publish(domain.NewProgressEvent(position, duration))

	if domain.ValidatePosition(position, duration) != nil {
		return
	}
	if position < 0 {
		position = 0
	}
	if position > duration {
		position = duration
	}

	rate := 0.0
	if s.state.IsPlaying() {
		rate = 1.0
	}
	s.session.SetPosition(position, duration, rate)
}

// LoadedTrack returns a copy of the track currently backing the graph
// session, nil while nothing is loaded.
func (s *Surface) LoadedTrack() *domain.Track {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loadedTrack == nil {
		return nil
	}
	track := *s.loadedTrack
	return &track
}

func (s *Surface) isCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == gen && !s.shutdown
}

// stopProgressLocked stops the running progress loop. Caller must hold mu.
func (s *Surface) stopProgressLocked() {
	if s.progressStop != nil {
		close(s.progressStop)
		s.progressStop = nil
	}
}

func isRemote(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}
