// Package app provides application-level orchestration and dependency injection.
// This package wires together all components and manages the engine lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"

	"github.com/echoforge/echoforge/internal/adapter/eventbus"
	"github.com/echoforge/echoforge/internal/adapter/graph"
	graphmock "github.com/echoforge/echoforge/internal/adapter/graph/mock"
	"github.com/echoforge/echoforge/internal/adapter/mediasession/mpris"
	"github.com/echoforge/echoforge/internal/adapter/mediasession/noop"
	"github.com/echoforge/echoforge/internal/adapter/repository/prefs"
	"github.com/echoforge/echoforge/internal/analyzer"
	"github.com/echoforge/echoforge/internal/domain"
	"github.com/echoforge/echoforge/internal/library"
	"github.com/echoforge/echoforge/internal/logger"
	"github.com/echoforge/echoforge/internal/ports"
	"github.com/echoforge/echoforge/internal/service"
	"github.com/echoforge/echoforge/internal/visual"
)

// Application is the root structure holding every wired component.
// It follows constructor-based dependency injection: NewApplication builds
// the full graph of dependencies and Shutdown releases them in reverse.
type Application struct {
	logger  *slog.Logger
	fyneApp fyne.App

	// Infrastructure
	eventBus     *eventbus.SyncEventBus
	audioGraph   ports.AudioGraph
	stateRepo    ports.StateRepository
	mediaSession ports.MediaSession

	// Engine
	playerState *service.PlayerState
	surface     *service.Surface
	scanner     *library.Scanner
	analyzer    *analyzer.Analyzer

	// Visualization, built on first request
	visualizerOnce sync.Once
	visualizer     *visual.ReactorWidget

	shutdownOnce sync.Once
}

// Config holds application configuration.
type Config struct {
	// AppID is the unique application identifier
	AppID string

	// AppName is the display name
	AppName string

	// UseMockGraph swaps the beep audio graph for the mock (for testing
	// and machines without an audio device)
	UseMockGraph bool

	// DisableMediaSession skips the MPRIS export entirely
	DisableMediaSession bool

	// LogLevel controls logging verbosity
	LogLevel slog.Level

	// TestFyneApp allows injecting a test Fyne app (nil for production)
	TestFyneApp fyne.App
}

// DefaultConfig returns the default application configuration.
func DefaultConfig() Config {
	loggerCfg := logger.DefaultConfig()
	return Config{
		AppID:    "com.echoforge.app",
		AppName:  "EchoForge",
		LogLevel: loggerCfg.Level,
	}
}

// NewApplication creates the application with all dependencies wired.
func NewApplication(config Config) (*Application, error) {
	app := &Application{}

	if config.TestFyneApp != nil {
		app.fyneApp = config.TestFyneApp
	} else {
		app.fyneApp = fyneapp.NewWithID(config.AppID)
	}

	app.logger = logger.NewLogger(logger.Config{
		Level:  config.LogLevel,
		Format: "text",
	})
	app.logger.Info("initializing application",
		slog.String("app_id", config.AppID),
		slog.String("app_name", config.AppName))

	app.eventBus = eventbus.NewSyncEventBus(app.logger)

	if config.UseMockGraph {
		app.audioGraph = graphmock.NewGraph()
	} else {
		app.audioGraph = graph.NewManager(app.logger)
	}

	app.stateRepo = prefs.NewStateRepository(app.fyneApp.Preferences())

	app.playerState = service.NewPlayerState(
		app.logger,
		app.eventBus,
		app.stateRepo,
	)

	app.mediaSession = app.connectMediaSession(config)

	app.surface = service.NewSurface(
		app.logger,
		app.eventBus,
		app.audioGraph,
		app.playerState,
		app.mediaSession,
	)

	app.scanner = library.NewScanner(app.logger)
	app.analyzer = analyzer.New(app.logger, &liveSource{graph: app.audioGraph})

	return app, nil
}

// connectMediaSession exports the MPRIS surface, falling back to the no-op
// session when the bus is unavailable. An engine without OS media controls
// is degraded, not broken.
func (a *Application) connectMediaSession(config Config) ports.MediaSession {
	if config.DisableMediaSession {
		return noop.NewSession()
	}

	session, err := mpris.New(a.logger)
	if err != nil {
		a.logger.Warn("media session unavailable, continuing without OS controls",
			slog.Any("error", err))
		return noop.NewSession()
	}
	return session
}

// LoadLibrary scans a directory and replaces the queue with its tracks.
// Returns the number of tracks found.
func (a *Application) LoadLibrary(ctx context.Context, dir string) (int, error) {
	tracks, err := a.scanner.Scan(ctx, dir)
	if err != nil {
		return 0, fmt.Errorf("library scan failed: %w", err)
	}

	a.playerState.SetPlaylist(tracks)
	return len(tracks), nil
}

// Visualizer returns the beat-reactive canvas widget, building it and
// starting the analysis loop on first call. The widget follows play-state
// events; the caller only needs to place it in a container.
func (a *Application) Visualizer() *visual.ReactorWidget {
	a.visualizerOnce.Do(func() {
		renderer := visual.NewRenderer()
		w := visual.NewReactorWidget(renderer)

		a.eventBus.Subscribe(domain.EventPlayStateChanged, func(e domain.Event) {
			if ev, ok := e.(domain.PlayStateChangedEvent); ok {
				w.SetPlaying(ev.Playing)
			}
		})
		w.SetPlaying(a.playerState.IsPlaying())

		a.visualizer = w
	})
	return a.visualizer
}

// StartAnalysis begins the per-frame polling loop, feeding the visualizer
// and the given beat callback (nil for none).
func (a *Application) StartAnalysis(onBeat analyzer.BeatFunc) {
	var onFrame analyzer.FrameFunc
	if a.visualizer != nil {
		onFrame = a.visualizer.OnFrame
	}
	a.analyzer.Start(onBeat, onFrame)
}

// State returns the playback state machine.
func (a *Application) State() *service.PlayerState {
	return a.playerState
}

// Surface returns the player surface.
func (a *Application) Surface() *service.Surface {
	return a.surface
}

// Scanner returns the library scanner.
func (a *Application) Scanner() *library.Scanner {
	return a.scanner
}

// EventBus returns the engine event bus.
func (a *Application) EventBus() ports.EventBus {
	return a.eventBus
}

// Graph returns the audio graph.
func (a *Application) Graph() ports.AudioGraph {
	return a.audioGraph
}

// FyneApp returns the underlying fyne application.
func (a *Application) FyneApp() fyne.App {
	return a.fyneApp
}

// Logger returns the root logger.
func (a *Application) Logger() *slog.Logger {
	return a.logger
}

// Shutdown gracefully releases everything, in reverse order of creation.
// Safe to call more than once.
func (a *Application) Shutdown() {
	a.shutdownOnce.Do(func() {
		a.logger.Info("shutting down application")

		a.analyzer.Stop()
		a.surface.Shutdown()

		if err := a.mediaSession.Close(); err != nil {
			a.logger.Warn("failed to close media session", slog.Any("error", err))
		}
		if err := a.eventBus.Close(); err != nil {
			a.logger.Warn("failed to close event bus", slog.Any("error", err))
		}

		a.logger.Info("application shutdown complete")
	})
}

// liveSource adapts the graph's per-session analysis tap into a stable
// FrequencySource, so one long-lived analyzer survives session rebuilds.
// Between sessions it reports silence, which the analyzer treats as no beat.
type liveSource struct {
	graph ports.AudioGraph
}

func (s *liveSource) BinCount() int {
	if a := s.graph.Analyser(); a != nil {
		return a.BinCount()
	}
	return domain.WaveformSamples / 2
}

func (s *liveSource) ByteFrequencyData(dst []byte) int {
	if a := s.graph.Analyser(); a != nil {
		return a.ByteFrequencyData(dst)
	}
	for i := range dst {
		dst[i] = 0
	}
	return len(dst)
}

var _ ports.FrequencySource = (*liveSource)(nil)
