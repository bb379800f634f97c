package prefs

import (
	"testing"

	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echoforge/echoforge/internal/domain"
)

func newTestRepository(t *testing.T) *StateRepository {
	t.Helper()
	return NewStateRepository(test.NewApp().Preferences())
}

func TestLoadWithoutSavedState(t *testing.T) {
	repo := newTestRepository(t)

	snap, err := repo.Load()

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultVolume, snap.Volume)
	assert.False(t, snap.Shuffle)
	assert.Equal(t, domain.RepeatOff, snap.Repeat)
	assert.Empty(t, snap.Playlist)
	assert.Nil(t, snap.CurrentTrack)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	repo := newTestRepository(t)

	current := domain.Track{
		ID:           "t2",
		Title:        "Second",
		Artist:       "Artist",
		AudioURL:     "https://cdn.example.com/t2.mp3",
		WaveformData: []float64{0.1, 0.9, 0.4},
	}
	saved := domain.PlayerSnapshot{
		Volume:  0.35,
		Shuffle: true,
		Repeat:  domain.RepeatAll,
		Playlist: []domain.Track{
			{ID: "t1", Title: "First", AudioURL: "https://cdn.example.com/t1.mp3"},
			current,
		},
		CurrentTrack: &current,
	}

	require.NoError(t, repo.Save(saved))

	loaded, err := repo.Load()
	require.NoError(t, err)
	assert.Equal(t, saved.Volume, loaded.Volume)
	assert.Equal(t, saved.Shuffle, loaded.Shuffle)
	assert.Equal(t, saved.Repeat, loaded.Repeat)
	assert.Equal(t, saved.Playlist, loaded.Playlist)
	require.NotNil(t, loaded.CurrentTrack)
	assert.Equal(t, current, *loaded.CurrentTrack)
}

func TestSaveReplacesPreviousSnapshot(t *testing.T) {
	repo := newTestRepository(t)

	track := domain.Track{ID: "t1", AudioURL: "a.mp3"}
	require.NoError(t, repo.Save(domain.PlayerSnapshot{
		Volume:       0.9,
		Playlist:     []domain.Track{track},
		CurrentTrack: &track,
		Repeat:       domain.RepeatOne,
	}))
	require.NoError(t, repo.Save(domain.PlayerSnapshot{Volume: 0.1, Repeat: domain.RepeatOff}))

	loaded, err := repo.Load()
	require.NoError(t, err)
	assert.Equal(t, 0.1, loaded.Volume)
	assert.Equal(t, domain.RepeatOff, loaded.Repeat)
	assert.Empty(t, loaded.Playlist)
	assert.Nil(t, loaded.CurrentTrack)
}

func TestLoadRejectsCorruptRepeatMode(t *testing.T) {
	app := test.NewApp()
	app.Preferences().SetString(keyRepeat, "sideways")
	repo := NewStateRepository(app.Preferences())

	loaded, err := repo.Load()

	require.NoError(t, err)
	assert.Equal(t, domain.RepeatOff, loaded.Repeat)
}

func TestLoadCorruptPlaylistJSON(t *testing.T) {
	app := test.NewApp()
	app.Preferences().SetString(keyPlaylist, "{not json")
	repo := NewStateRepository(app.Preferences())

	_, err := repo.Load()

	var storeErr *domain.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "load", storeErr.Op)
}

func TestClear(t *testing.T) {
	repo := newTestRepository(t)

	track := domain.Track{ID: "t1", AudioURL: "a.mp3"}
	require.NoError(t, repo.Save(domain.PlayerSnapshot{
		Volume:       0.2,
		Shuffle:      true,
		Playlist:     []domain.Track{track},
		CurrentTrack: &track,
	}))
	require.NoError(t, repo.Clear())

	loaded, err := repo.Load()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultVolume, loaded.Volume)
	assert.False(t, loaded.Shuffle)
	assert.Empty(t, loaded.Playlist)
	assert.Nil(t, loaded.CurrentTrack)
}
