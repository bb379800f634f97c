// Package mock provides an in-memory implementation of the AudioGraph
// interface. It simulates a live audio session without opening an audio
// device, so playback logic can be exercised in plain unit tests.
package mock

import (
	"context"
	"sync"

	"github.com/echoforge/echoforge/internal/domain"
	"github.com/echoforge/echoforge/internal/ports"
)

// defaultDuration is the simulated track length in seconds.
const defaultDuration = 180.0

// Source is a mock FrequencySource with test-settable bins.
type Source struct {
	mu   sync.Mutex
	bins []byte
}

// NewSource creates a source reporting binCount frequency bins.
func NewSource(binCount int) *Source {
	return &Source{bins: make([]byte, binCount)}
}

// SetBins replaces the frequency data returned to pollers.
func (s *Source) SetBins(bins []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.bins, bins)
}

// BinCount returns the number of frequency bins.
func (s *Source) BinCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bins)
}

// ByteFrequencyData copies the configured bins into dst.
func (s *Source) ByteFrequencyData(dst []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copy(dst, s.bins)
}

// Graph is a mock implementation of the AudioGraph interface.
//
// Thread-safety: this implementation is thread-safe.
type Graph struct {
	mu sync.RWMutex

	initialized bool
	playing     bool
	position    float64
	duration    float64
	volume      float64
	lastURL     string

	initializeCount int
	cleanupCount    int

	// Behavior configuration (for testing error scenarios)
	failInitialize bool
	failPlay       bool
	inFlight       bool

	analyser *Source

	endedMu   sync.Mutex
	endedSubs map[int]func()
	nextSub   int
}

// NewGraph creates a new mock audio graph.
func NewGraph() *Graph {
	return &Graph{
		duration:  defaultDuration,
		volume:    1.0,
		endedSubs: make(map[int]func()),
	}
}

// SetFailInitialize configures the mock to fail loads (for testing).
func (g *Graph) SetFailInitialize(fail bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failInitialize = fail
}

// SetFailPlay configures the mock to refuse playback (for testing).
func (g *Graph) SetFailPlay(fail bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failPlay = fail
}

// SetInFlight makes Initialize report an in-flight load (for testing).
func (g *Graph) SetInFlight(inFlight bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inFlight = inFlight
}

// SetDuration overrides the simulated track length in seconds.
func (g *Graph) SetDuration(seconds float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.duration = seconds
}

// Initialize simulates building a session for the given URL.
func (g *Graph) Initialize(ctx context.Context, url string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inFlight {
		return domain.ErrInitializeInFlight
	}
	if err := ctx.Err(); err != nil {
		return domain.NewGraphError("load", url, "media fetch timed out", domain.ErrLoadTimeout)
	}
	if g.failInitialize {
		return domain.NewGraphError("decode", url, "mock decode failure", domain.ErrDecodeFailed)
	}

	g.initialized = true
	g.playing = false
	g.position = 0
	g.lastURL = url
	g.initializeCount++
	g.analyser = NewSource(256)

	return nil
}

// Initialized reports whether a simulated session is alive.
func (g *Graph) Initialized() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.initialized
}

// Play starts simulated playback.
func (g *Graph) Play() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.initialized {
		return domain.NewGraphError("play", "", "no live session", domain.ErrNotInitialized)
	}
	if g.failPlay {
		return domain.NewGraphError("play", g.lastURL, "mock playback refused", domain.ErrPlaybackRejected)
	}

	g.playing = true
	return nil
}

// Pause suspends simulated playback.
func (g *Graph) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.playing = false
}

// SeekTo moves the simulated position, clamped to the track bounds.
func (g *Graph) SeekTo(seconds float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.initialized {
		return
	}
	if seconds < 0 {
		seconds = 0
	}
	if seconds > g.duration {
		seconds = g.duration
	}
	g.position = seconds
}

// CurrentTime returns the simulated position in seconds.
func (g *Graph) CurrentTime() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.position
}

// Duration returns the simulated track length in seconds.
func (g *Graph) Duration() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.initialized {
		return 0
	}
	return g.duration
}

// SetVolume stores the gain, clamped to [0,1].
func (g *Graph) SetVolume(v float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	g.volume = v
}

// Volume returns the stored gain.
func (g *Graph) Volume() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.volume
}

// Analyser returns the mock frequency source, or nil without a session.
func (g *Graph) Analyser() ports.FrequencySource {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.initialized || g.analyser == nil {
		return nil
	}
	return g.analyser
}

// AnalyserSource returns the concrete mock source so tests can set bins.
func (g *Graph) AnalyserSource() *Source {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.analyser
}

// OnEnded registers fn to run when TriggerEnded is called.
func (g *Graph) OnEnded(fn func()) func() {
	g.endedMu.Lock()
	defer g.endedMu.Unlock()

	g.nextSub++
	id := g.nextSub
	g.endedSubs[id] = fn

	return func() {
		g.endedMu.Lock()
		defer g.endedMu.Unlock()
		delete(g.endedSubs, id)
	}
}

// Cleanup releases the simulated session and drops ended registrations.
func (g *Graph) Cleanup() {
	g.mu.Lock()
	g.initialized = false
	g.playing = false
	g.position = 0
	g.analyser = nil
	g.cleanupCount++
	g.mu.Unlock()

	g.endedMu.Lock()
	g.endedSubs = make(map[int]func())
	g.endedMu.Unlock()
}

// TriggerEnded simulates the media completing naturally, running all
// registered handlers synchronously.
func (g *Graph) TriggerEnded() {
	g.endedMu.Lock()
	fns := make([]func(), 0, len(g.endedSubs))
	for _, fn := range g.endedSubs {
		fns = append(fns, fn)
	}
	g.endedMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// SimulateProgress advances the simulated position while playing,
// clamping at the track end.
func (g *Graph) SimulateProgress(deltaSeconds float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.playing {
		return
	}
	g.position += deltaSeconds
	if g.position > g.duration {
		g.position = g.duration
	}
}

// Playing reports whether simulated playback is running (for testing).
func (g *Graph) Playing() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.playing
}

// LastURL returns the URL passed to the most recent Initialize (for testing).
func (g *Graph) LastURL() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lastURL
}

// InitializeCount returns how many loads succeeded (for testing).
func (g *Graph) InitializeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.initializeCount
}

// CleanupCount returns how many times Cleanup ran (for testing).
func (g *Graph) CleanupCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cleanupCount
}

// Verify that Graph implements the AudioGraph interface
var _ ports.AudioGraph = (*Graph)(nil)

// Verify that Source implements the FrequencySource interface
var _ ports.FrequencySource = (*Source)(nil)
