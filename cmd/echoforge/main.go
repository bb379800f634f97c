// Package main is the entry point for the EchoForge demo player.
//
// EchoForge is a beat-reactive audio playback engine. The demo player
// scans a music directory into the queue, opens a visualizer window and
// exposes the usual media keys over MPRIS.
//
// Build:
//
//	go build -o build/echoforge ./cmd/echoforge
//
// Run:
//
//	./build/echoforge --library ~/Music
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"github.com/spf13/cobra"

	"github.com/echoforge/echoforge/internal/app"
	"github.com/echoforge/echoforge/internal/visual"
)

var (
	// Version is set via ldflags at build time.
	Version = "dev"

	config struct {
		library        string
		mockGraph      bool
		noMediaSession bool
		verbose        bool
	}
)

var rootCmd = &cobra.Command{
	Use:     "echoforge",
	Short:   "Beat-reactive audio player",
	Long:    "EchoForge plays a folder of audio files with a beat-reactive visualizer,\npersistent queue state and OS media controls.",
	Version: Version,
	RunE:    run,
}

func init() {
	rootCmd.Flags().StringVarP(&config.library, "library", "l", "",
		"directory of audio files to load into the queue")
	rootCmd.Flags().BoolVar(&config.mockGraph, "mock-graph", false,
		"use the simulated audio graph (no audio device required)")
	rootCmd.Flags().BoolVar(&config.noMediaSession, "no-media-session", false,
		"skip the MPRIS media session export")
	rootCmd.Flags().BoolVarP(&config.verbose, "verbose", "v", false,
		"enable debug logging")
}

func run(cmd *cobra.Command, args []string) error {
	cfg := app.DefaultConfig()
	cfg.UseMockGraph = config.mockGraph
	cfg.DisableMediaSession = config.noMediaSession
	if config.verbose {
		cfg.LogLevel = slog.LevelDebug
	}

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer application.Shutdown()

	if config.library != "" {
		count, err := application.LoadLibrary(cmd.Context(), config.library)
		if err != nil {
			return err
		}
		application.Logger().Info("library loaded", "dir", config.library, "tracks", count)
	}

	window := buildWindow(application)
	window.ShowAndRun()

	return nil
}

// buildWindow assembles the visualizer window and starts the analysis loop.
func buildWindow(application *app.Application) fyne.Window {
	window := application.FyneApp().NewWindow("EchoForge")
	window.Resize(fyne.NewSize(640, 360))

	visualizer := application.Visualizer()
	window.SetContent(container.NewStack(visualizer))

	// Beats briefly mark the window title.
	pulse := visual.NewPulseTrigger(
		func(float64) { fyne.Do(func() { window.SetTitle("EchoForge ●") }) },
		func() { fyne.Do(func() { window.SetTitle("EchoForge") }) },
	)
	application.StartAnalysis(pulse.OnBeat)

	window.SetCloseIntercept(func() {
		pulse.Stop()
		window.Close()
	})

	// Start the queue where the last session left off.
	if current := application.State().CurrentTrack(); current != nil {
		application.State().PlayTrack(*current)
	} else if playlist := application.State().Playlist(); len(playlist) > 0 {
		application.State().PlayTrack(playlist[0])
	}

	return window
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
