package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echoforge/echoforge/internal/adapter/eventbus"
	graphmock "github.com/echoforge/echoforge/internal/adapter/graph/mock"
	"github.com/echoforge/echoforge/internal/adapter/mediasession/noop"
	"github.com/echoforge/echoforge/internal/adapter/repository/memory"
	"github.com/echoforge/echoforge/internal/domain"
	"github.com/echoforge/echoforge/internal/logger"
	"github.com/echoforge/echoforge/internal/testutil"
)

type surfaceFixture struct {
	state   *PlayerState
	surface *Surface
	graph   *graphmock.Graph
	session *noop.Session
	bus     *eventbus.SyncEventBus
}

func newSurfaceFixture(t *testing.T) *surfaceFixture {
	t.Helper()

	log := logger.NewTestLogger()
	bus := eventbus.NewSyncEventBus(log)
	repo := memory.NewStateRepository()
	graph := graphmock.NewGraph()
	session := noop.NewSession()

	state := NewPlayerState(log, bus, repo)
	surface := NewSurface(log, bus, graph, state, session)

	t.Cleanup(func() {
		surface.Shutdown()
		_ = bus.Close()
	})

	return &surfaceFixture{state: state, surface: surface, graph: graph, session: session, bus: bus}
}

func (f *surfaceFixture) waitLoaded(t *testing.T, id string) {
	t.Helper()
	require.Eventually(t, func() bool {
		loaded := f.surface.LoadedTrack()
		return loaded != nil && loaded.ID == id
	}, 2*time.Second, 5*time.Millisecond, "track %s never finished loading", id)
}

// eventRecorder collects events of one type across goroutines.
type eventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func recordEvents(bus *eventbus.SyncEventBus, eventType domain.EventType) *eventRecorder {
	r := &eventRecorder{}
	bus.Subscribe(eventType, func(e domain.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, e)
	})
	return r
}

func (r *eventRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *eventRecorder) last() domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

func TestSurfaceLoadsTrackOnTrackChange(t *testing.T) {
	f := newSurfaceFixture(t)

	f.state.PlayTrack(track("a"))
	f.waitLoaded(t, "a")

	assert.True(t, f.graph.Initialized())
	assert.Equal(t, "https://cdn.example.com/a.mp3", f.graph.LastURL())
	assert.True(t, f.graph.Playing())
	assert.True(t, f.session.Playing())
	assert.Equal(t, "a", f.session.Metadata().TrackID)
	assert.Equal(t, "Track a", f.session.Metadata().Title)
}

func TestSurfaceAppliesHydratedVolumeToGraph(t *testing.T) {
	f := newSurfaceFixture(t)

	assert.Equal(t, domain.DefaultVolume, f.graph.Volume())
}

func TestSurfaceTogglePlayDrivesGraph(t *testing.T) {
	f := newSurfaceFixture(t)
	f.state.PlayTrack(track("a"))
	f.waitLoaded(t, "a")

	f.state.TogglePlay()
	assert.False(t, f.graph.Playing())
	assert.False(t, f.session.Playing())

	f.state.TogglePlay()
	assert.True(t, f.graph.Playing())
	assert.True(t, f.session.Playing())
}

func TestSurfaceVolumeChangePassesThrough(t *testing.T) {
	f := newSurfaceFixture(t)

	f.state.SetVolume(0.3)

	assert.Equal(t, 0.3, f.graph.Volume())
}

func TestSurfaceEndedAdvancesQueue(t *testing.T) {
	f := newSurfaceFixture(t)
	f.state.SetPlaylist([]domain.Track{track("a"), track("b")})
	f.state.PlayTrack(track("a"))
	f.waitLoaded(t, "a")

	ended := recordEvents(f.bus, domain.EventTrackEnded)

	f.graph.TriggerEnded()
	f.waitLoaded(t, "b")

	assert.Equal(t, "b", f.state.CurrentTrack().ID)
	assert.Equal(t, "https://cdn.example.com/b.mp3", f.graph.LastURL())
	assert.Equal(t, 1, ended.count())
}

func TestSurfaceEndedAtQueueEndStopsPlayback(t *testing.T) {
	f := newSurfaceFixture(t)
	f.state.SetPlaylist([]domain.Track{track("a")})
	f.state.PlayTrack(track("a"))
	f.waitLoaded(t, "a")

	f.graph.TriggerEnded()

	assert.Eventually(t, func() bool {
		return !f.state.IsPlaying() && !f.graph.Playing()
	}, 2*time.Second, 5*time.Millisecond)
	// The session stays loaded on the same track.
	assert.Equal(t, "a", f.state.CurrentTrack().ID)
}

func TestSurfaceRejectedPlayIsRecoverable(t *testing.T) {
	f := newSurfaceFixture(t)
	f.graph.SetFailPlay(true)

	errs := recordEvents(f.bus, domain.EventPlaybackError)

	f.state.PlayTrack(track("a"))

	require.Eventually(t, func() bool { return errs.count() > 0 }, 2*time.Second, 5*time.Millisecond)
	e := errs.last().(domain.PlaybackErrorEvent)
	assert.True(t, e.Recoverable)
	assert.ErrorIs(t, e.Err, domain.ErrPlaybackRejected)
	// Intent is not desynced: the user still wants this track playing.
	assert.True(t, f.state.IsPlaying())
	assert.False(t, f.session.Playing())
}

func TestSurfaceLoadFailureResetsCleanly(t *testing.T) {
	f := newSurfaceFixture(t)
	f.state.SetPlaylist([]domain.Track{track("a"), track("b")})
	f.graph.SetFailInitialize(true)

	errs := recordEvents(f.bus, domain.EventPlaybackError)

	f.state.PlayTrack(track("a"))

	require.Eventually(t, func() bool { return errs.count() > 0 }, 2*time.Second, 5*time.Millisecond)
	e := errs.last().(domain.PlaybackErrorEvent)
	assert.False(t, e.Recoverable)
	assert.ErrorIs(t, e.Err, domain.ErrDecodeFailed)
	assert.Nil(t, f.surface.LoadedTrack())
	// The queue is untouched by the failure.
	assert.Len(t, f.state.Playlist(), 2)
}

func TestSurfacePublishesPrecomputedWaveform(t *testing.T) {
	f := newSurfaceFixture(t)

	ready := recordEvents(f.bus, domain.EventWaveformReady)

	withPeaks := track("a")
	withPeaks.WaveformData = []float64{0.2, 0.8, 0.5}
	f.state.PlayTrack(withPeaks)
	f.waitLoaded(t, "a")

	require.Eventually(t, func() bool { return ready.count() > 0 }, 2*time.Second, 5*time.Millisecond)
	e := ready.last().(domain.WaveformReadyEvent)
	assert.Equal(t, "a", e.TrackID)
	assert.Equal(t, []float64{0.2, 0.8, 0.5}, e.Peaks)
}

func TestSurfaceNoWaveformForRemoteTrackWithoutPeaks(t *testing.T) {
	f := newSurfaceFixture(t)

	ready := recordEvents(f.bus, domain.EventWaveformReady)

	f.state.PlayTrack(track("a"))
	f.waitLoaded(t, "a")

	assert.Zero(t, ready.count())
}

func TestSurfaceProgressLoopPublishesAndMirrors(t *testing.T) {
	f := newSurfaceFixture(t)
	f.graph.SetDuration(200)

	progress := recordEvents(f.bus, domain.EventProgress)

	f.state.PlayTrack(track("a"))
	f.waitLoaded(t, "a")
	f.graph.SimulateProgress(42)

	require.Eventually(t, func() bool {
		position, _, _ := f.session.Position()
		return progress.count() > 0 && position == 42.0
	}, 2*time.Second, 5*time.Millisecond)

	position, duration, rate := f.session.Position()
	assert.Equal(t, 42.0, position)
	assert.Equal(t, 200.0, duration)
	assert.Equal(t, 1.0, rate)
}

func TestSurfaceDropsInvalidDurationFromMediaSession(t *testing.T) {
	f := newSurfaceFixture(t)
	f.graph.SetDuration(0)

	progress := recordEvents(f.bus, domain.EventProgress)

	f.state.PlayTrack(track("a"))
	f.waitLoaded(t, "a")

	require.Eventually(t, func() bool { return progress.count() > 1 }, 2*time.Second, 5*time.Millisecond)
	// Progress events still flow to the UI, but nothing invalid reaches
	// the media session.
	assert.Zero(t, f.session.PositionUpdates())
}

// playObservingGraph records which session URL each successful Play hits.
type playObservingGraph struct {
	*graphmock.Graph

	mu       sync.Mutex
	playURLs []string
}

func (g *playObservingGraph) Play() error {
	err := g.Graph.Play()
	if err == nil {
		g.mu.Lock()
		g.playURLs = append(g.playURLs, g.Graph.LastURL())
		g.mu.Unlock()
	}
	return err
}

func (g *playObservingGraph) played() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.playURLs...)
}

func TestSurfaceTrackSwitchNeverResumesOldSession(t *testing.T) {
	log := logger.NewTestLogger()
	bus := eventbus.NewSyncEventBus(log)
	repo := memory.NewStateRepository()
	graph := &playObservingGraph{Graph: graphmock.NewGraph()}
	session := noop.NewSession()

	state := NewPlayerState(log, bus, repo)
	surface := NewSurface(log, bus, graph, state, session)
	t.Cleanup(func() {
		surface.Shutdown()
		_ = bus.Close()
	})

	state.SetPlaylist([]domain.Track{track("a"), track("b")})
	state.PlayTrack(track("a"))
	require.Eventually(t, func() bool {
		loaded := surface.LoadedTrack()
		return loaded != nil && loaded.ID == "a"
	}, 2*time.Second, 5*time.Millisecond)

	state.TogglePlay()
	require.False(t, graph.Playing())

	// Switching tracks while paused must not resume the old session in
	// the window before the new one is built.
	state.PlayTrack(track("b"))
	require.Eventually(t, func() bool {
		loaded := surface.LoadedTrack()
		return loaded != nil && loaded.ID == "b"
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{
		"https://cdn.example.com/a.mp3",
		"https://cdn.example.com/b.mp3",
	}, graph.played())
}

func TestSurfaceRapidTrackSwitchLandsOnLatest(t *testing.T) {
	f := newSurfaceFixture(t)
	f.state.SetPlaylist([]domain.Track{track("a"), track("b"), track("c")})

	f.state.PlayTrack(track("a"))
	f.state.PlayTrack(track("b"))
	f.state.PlayTrack(track("c"))

	f.waitLoaded(t, "c")
	assert.Equal(t, "https://cdn.example.com/c.mp3", f.graph.LastURL())
	assert.Equal(t, "c", f.session.Metadata().TrackID)
}

func TestSurfaceSeekToClampsThroughGraph(t *testing.T) {
	f := newSurfaceFixture(t)
	f.graph.SetDuration(100)
	f.state.PlayTrack(track("a"))
	f.waitLoaded(t, "a")

	f.surface.SeekTo(250)
	assert.Equal(t, 100.0, f.graph.CurrentTime())

	f.surface.SeekTo(-3)
	assert.Equal(t, 0.0, f.graph.CurrentTime())
}

func TestSurfaceTransportHandlersRouteToState(t *testing.T) {
	f := newSurfaceFixture(t)
	f.state.SetPlaylist([]domain.Track{track("a"), track("b")})
	f.state.PlayTrack(track("a"))
	f.waitLoaded(t, "a")

	handlers := f.session.Handlers()
	require.NotNil(t, handlers.OnPause)
	require.NotNil(t, handlers.OnNext)

	handlers.OnPause()
	assert.False(t, f.state.IsPlaying())

	handlers.OnPlay()
	assert.True(t, f.state.IsPlaying())

	handlers.OnNext()
	f.waitLoaded(t, "b")
	assert.Equal(t, "b", f.state.CurrentTrack().ID)

	handlers.OnPrevious()
	f.waitLoaded(t, "a")
	assert.Equal(t, "a", f.state.CurrentTrack().ID)
}

func TestSurfaceShutdownStopsEverything(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	log := logger.NewTestLogger()
	bus := eventbus.NewSyncEventBus(log)
	repo := memory.NewStateRepository()
	graph := graphmock.NewGraph()
	session := noop.NewSession()

	state := NewPlayerState(log, bus, repo)
	surface := NewSurface(log, bus, graph, state, session)

	state.PlayTrack(track("a"))
	require.Eventually(t, func() bool {
		return surface.LoadedTrack() != nil
	}, 2*time.Second, 5*time.Millisecond)

	surface.Shutdown()

	assert.False(t, graph.Initialized())
	assert.False(t, session.Playing())

	// Callbacks from the torn-down session must not come back to life.
	graph.TriggerEnded()
	time.Sleep(20 * time.Millisecond)
	assert.Nil(t, surface.LoadedTrack())

	// A track change after shutdown is ignored.
	state.PlayTrack(track("b"))
	time.Sleep(20 * time.Millisecond)
	assert.Nil(t, surface.LoadedTrack())

	require.NoError(t, bus.Close())
}
