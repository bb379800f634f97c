// Package graph owns the native audio pipeline. The Manager is the only
// component that creates or destroys decoder, analysis tap, gain stage and
// speaker output, and it keeps at most one session alive at a time.
package graph

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"

	"github.com/echoforge/echoforge/internal/domain"
	"github.com/echoforge/echoforge/internal/ports"
)

const (
	// outputRate is the fixed speaker sample rate; sources that differ are
	// resampled rather than reinitializing the device.
	outputRate = beep.SampleRate(44100)

	speakerBuffer   = time.Second / 10
	resampleQuality = 4

	// gainBase makes the volume exponent a log2 scale, so 0.5 volume is
	// one exponent step below unity.
	gainBase = 2
)

// session bundles everything belonging to one loaded piece of media.
type session struct {
	url    string
	source beep.StreamSeekCloser
	format beep.Format
	ctrl   *beep.Ctrl
	gain   *effects.Volume
	tap    *analysisTap
}

// Manager is the beep-backed implementation of the AudioGraph interface.
//
// Thread-safety: all methods are safe for concurrent use. Mutations of the
// live streamer chain happen under the speaker lock, session swaps under
// the manager's own mutex, and overlapping Initialize calls are rejected
// up front via an in-flight flag.
type Manager struct {
	logger *slog.Logger

	mu      sync.RWMutex
	session *session
	volume  float64

	initializing atomic.Bool

	endedMu   sync.Mutex
	endedSubs map[int]func()
	nextSub   int

	speakerOnce sync.Once
	speakerErr  error
}

// NewManager creates an audio graph manager. No audio resources are
// acquired until the first Initialize.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger:    logger.With("component", "audiograph"),
		volume:    1.0,
		endedSubs: make(map[int]func()),
	}
}

// Initialize tears down any live session and builds a fresh one for the
// given URL, left paused at position zero. The fetch and decode are
// bounded by ctx.
func (m *Manager) Initialize(ctx context.Context, url string) error {
	if !m.initializing.CompareAndSwap(false, true) {
		m.logger.Warn("initialize rejected, another load is in flight", "url", url)
		return domain.ErrInitializeInFlight
	}
	defer m.initializing.Store(false)

	m.teardown()

	source, format, err := load(ctx, url)
	if err != nil {
		m.logger.Error("failed to load media", "url", url, "error", err)
		return err
	}

	if err := m.ensureSpeaker(); err != nil {
		_ = source.Close()
		m.logger.Error("audio output unavailable", "error", err)
		return domain.NewGraphError("initialize", url, "audio output unavailable", err)
	}

	tap := newAnalysisTap(beep.Resample(resampleQuality, format.SampleRate, outputRate, source))
	ctrl := &beep.Ctrl{Streamer: tap, Paused: true}

	m.mu.Lock()
	gain := &effects.Volume{
		Streamer: ctrl,
		Base:     gainBase,
		Volume:   gainExponent(m.volume),
		Silent:   m.volume == 0,
	}
	sess := &session{url: url, source: source, format: format, ctrl: ctrl, gain: gain, tap: tap}
	m.session = sess
	m.mu.Unlock()

	speaker.Clear()
	speaker.Play(beep.Seq(gain, beep.Callback(func() {
		m.sessionEnded(sess)
	})))

	m.logger.Info("audio graph ready",
		"url", url,
		"sampleRate", int(format.SampleRate),
		"duration", format.SampleRate.D(source.Len()).Seconds(),
	)
	return nil
}

// Initialized reports whether a session is currently alive.
func (m *Manager) Initialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session != nil
}

// Play resumes output. Without a live session the request is refused with
// domain.ErrNotInitialized.
func (m *Manager) Play() error {
	m.mu.RLock()
	sess := m.session
	m.mu.RUnlock()

	if sess == nil {
		return domain.NewGraphError("play", "", "no live session", domain.ErrNotInitialized)
	}

	speaker.Lock()
	sess.ctrl.Paused = false
	speaker.Unlock()

	return nil
}

// Pause suspends output, keeping the session and position intact.
func (m *Manager) Pause() {
	m.mu.RLock()
	sess := m.session
	m.mu.RUnlock()

	if sess == nil {
		return
	}

	speaker.Lock()
	sess.ctrl.Paused = true
	speaker.Unlock()
}

// SeekTo moves the playback position, clamped to the track bounds.
func (m *Manager) SeekTo(seconds float64) {
	m.mu.RLock()
	sess := m.session
	m.mu.RUnlock()

	if sess == nil {
		return
	}
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}

	speaker.Lock()
	defer speaker.Unlock()

	target := sess.format.SampleRate.N(time.Duration(seconds * float64(time.Second)))
	if l := sess.source.Len(); target > l {
		target = l
	}
	if err := sess.source.Seek(target); err != nil {
		m.logger.Warn("seek failed", "seconds", seconds, "error", err)
	}
}

// CurrentTime returns the playback position in seconds.
func (m *Manager) CurrentTime() float64 {
	m.mu.RLock()
	sess := m.session
	m.mu.RUnlock()

	if sess == nil {
		return 0
	}

	speaker.Lock()
	pos := sess.source.Position()
	speaker.Unlock()

	return sess.format.SampleRate.D(pos).Seconds()
}

// Duration returns the total duration in seconds, 0 without a session.
func (m *Manager) Duration() float64 {
	m.mu.RLock()
	sess := m.session
	m.mu.RUnlock()

	if sess == nil {
		return 0
	}

	return sess.format.SampleRate.D(sess.source.Len()).Seconds()
}

// SetVolume applies the gain, clamped to [0,1]. The value persists across
// sessions so a newly initialized graph starts at the last requested level.
func (m *Manager) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}

	m.mu.Lock()
	m.volume = v
	sess := m.session
	m.mu.Unlock()

	if sess == nil {
		return
	}

	speaker.Lock()
	sess.gain.Silent = v == 0
	sess.gain.Volume = gainExponent(v)
	speaker.Unlock()
}

// Volume returns the current gain level.
func (m *Manager) Volume() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.volume
}

// Analyser returns the live analysis tap, or nil without a session.
func (m *Manager) Analyser() ports.FrequencySource {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.session == nil {
		return nil
	}
	return m.session.tap
}

// OnEnded registers fn to run when the current media completes naturally.
func (m *Manager) OnEnded(fn func()) func() {
	m.endedMu.Lock()
	defer m.endedMu.Unlock()

	m.nextSub++
	id := m.nextSub
	m.endedSubs[id] = fn

	return func() {
		m.endedMu.Lock()
		defer m.endedMu.Unlock()
		delete(m.endedSubs, id)
	}
}

// Cleanup releases the live session and drops all ended registrations.
// Safe to call repeatedly. While an Initialize is in flight the call is
// skipped with a warning; the load will replace the session anyway.
func (m *Manager) Cleanup() {
	if m.initializing.Load() {
		m.logger.Warn("cleanup skipped, initialize in flight")
		return
	}

	m.teardown()

	m.endedMu.Lock()
	m.endedSubs = make(map[int]func())
	m.endedMu.Unlock()
}

// teardown detaches and closes the current session, if any.
func (m *Manager) teardown() {
	m.mu.Lock()
	sess := m.session
	m.session = nil
	m.mu.Unlock()

	if sess == nil {
		return
	}

	speaker.Clear()
	if err := sess.source.Close(); err != nil {
		m.logger.Debug("closing source failed", "url", sess.url, "error", err)
	}

	m.logger.Debug("audio graph torn down", "url", sess.url)
}

// sessionEnded fires ended registrations when the given session's media
// drains. Stale callbacks from a replaced session are ignored.
func (m *Manager) sessionEnded(sess *session) {
	m.mu.RLock()
	current := m.session == sess
	m.mu.RUnlock()

	if !current {
		return
	}

	m.logger.Debug("media completed", "url", sess.url)

	m.endedMu.Lock()
	fns := make([]func(), 0, len(m.endedSubs))
	for _, fn := range m.endedSubs {
		fns = append(fns, fn)
	}
	m.endedMu.Unlock()

	// Handlers typically start the next track, which needs the speaker;
	// running them on the mixer goroutine would deadlock.
	for _, fn := range fns {
		go fn()
	}
}

// ensureSpeaker opens the audio device once, at the fixed output rate.
func (m *Manager) ensureSpeaker() error {
	m.speakerOnce.Do(func() {
		m.speakerErr = speaker.Init(outputRate, outputRate.N(speakerBuffer))
	})
	return m.speakerErr
}

// gainExponent converts a linear [0,1] volume into a base-2 exponent for
// the gain stage. Zero is handled by the Silent flag instead.
func gainExponent(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Log2(v)
}

// Verify that Manager implements the AudioGraph interface
var _ ports.AudioGraph = (*Manager)(nil)
