package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig() Config {
	config := DefaultConfig()
	config.UseMockGraph = true
	config.DisableMediaSession = true
	config.TestFyneApp = test.NewApp()
	return config
}

func TestNewApplication(t *testing.T) {
	application, err := NewApplication(newTestConfig())
	require.NoError(t, err)
	require.NotNil(t, application)

	assert.NotNil(t, application.State())
	assert.NotNil(t, application.Surface())
	assert.NotNil(t, application.Scanner())
	assert.NotNil(t, application.EventBus())
	assert.NotNil(t, application.Graph())
	assert.NotNil(t, application.FyneApp())
	assert.NotNil(t, application.Logger())

	application.Shutdown()
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "com.echoforge.app", config.AppID)
	assert.Equal(t, "EchoForge", config.AppName)
	assert.False(t, config.UseMockGraph)
	assert.False(t, config.DisableMediaSession)
}

func TestApplicationLifecycle(t *testing.T) {
	application, err := NewApplication(newTestConfig())
	require.NoError(t, err)

	application.Shutdown()

	// Shutdown again should not panic.
	application.Shutdown()
}

func TestApplicationLoadLibrary(t *testing.T) {
	application, err := NewApplication(newTestConfig())
	require.NoError(t, err)
	defer application.Shutdown()

	dir := t.TempDir()
	for _, name := range []string{"one.mp3", "two.flac", "notes.txt"} {
		f, err := os.Create(filepath.Join(dir, name))
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}

	count, err := application.LoadLibrary(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Len(t, application.State().Playlist(), 2)
}

func TestApplicationVisualizerBuiltOnce(t *testing.T) {
	application, err := NewApplication(newTestConfig())
	require.NoError(t, err)
	defer application.Shutdown()

	first := application.Visualizer()
	second := application.Visualizer()
	assert.Same(t, first, second)
}

func TestLiveSourceSilentWithoutSession(t *testing.T) {
	application, err := NewApplication(newTestConfig())
	require.NoError(t, err)
	defer application.Shutdown()

	src := &liveSource{graph: application.Graph()}
	dst := make([]byte, src.BinCount())
	dst[0] = 99

	n := src.ByteFrequencyData(dst)
	assert.Equal(t, len(dst), n)
	for _, v := range dst {
		assert.Zero(t, v)
	}
}
