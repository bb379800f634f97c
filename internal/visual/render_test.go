package visual

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func framePixels(t *testing.T, img image.Image) *image.RGBA {
	t.Helper()
	rgba, ok := img.(*image.RGBA)
	require.True(t, ok)
	return rgba
}

func TestRenderStoppedIsStaticBackground(t *testing.T) {
	r := NewRenderer()
	r.SetPlaying(false)

	img := framePixels(t, r.Render(16, 16))

	for y := range 16 {
		for x := range 16 {
			assert.Equal(t, Background, img.RGBAAt(x, y))
		}
	}
}

func TestRenderPlayingWithoutDataIsStatic(t *testing.T) {
	r := NewRenderer()
	r.SetPlaying(true)

	img := framePixels(t, r.Render(8, 8))

	assert.Equal(t, Background, img.RGBAAt(4, 4))
}

func TestRenderDrawsBarsForActiveBins(t *testing.T) {
	r := NewRenderer()
	r.SetPlaying(true)

	bins := make([]byte, 64)
	for i := range bins {
		bins[i] = 200
	}
	r.SetFrame(bins)

	img := framePixels(t, r.Render(64, 64))

	// Hot bins with a 3x boost fill full-height columns; the bottom rows
	// must no longer be the plain background.
	changed := 0
	for x := range 64 {
		if img.RGBAAt(x, 63) != Background {
			changed++
		}
	}
	assert.Greater(t, changed, 32)
}

func TestRenderSilentBinsLeaveBackground(t *testing.T) {
	r := NewRenderer()
	r.SetPlaying(true)
	r.SetFrame(make([]byte, 64))

	img := framePixels(t, r.Render(32, 32))

	for y := range 32 {
		for x := range 32 {
			assert.Equal(t, Background, img.RGBAAt(x, y))
		}
	}
}

func TestStopPlayingDropsTrail(t *testing.T) {
	r := NewRenderer()
	r.SetPlaying(true)
	bins := make([]byte, 64)
	bins[0] = 255
	r.SetFrame(bins)
	_ = r.Render(32, 32)

	r.SetPlaying(false)
	img := framePixels(t, r.Render(32, 32))

	for y := range 32 {
		for x := range 32 {
			assert.Equal(t, Background, img.RGBAAt(x, y))
		}
	}
}

func TestRenderZeroSizeDoesNotPanic(t *testing.T) {
	r := NewRenderer()
	r.SetPlaying(true)
	r.SetFrame([]byte{255})

	assert.NotPanics(t, func() {
		r.Render(0, 0)
		r.Render(-1, 10)
	})
}

func TestHSLConversionEndpoints(t *testing.T) {
	white := hslToRGB(0, 0, 1)
	assert.EqualValues(t, 255, white.R)
	assert.EqualValues(t, 255, white.G)
	assert.EqualValues(t, 255, white.B)

	red := hslToRGB(0, 1, 0.5)
	assert.EqualValues(t, 255, red.R)
	assert.EqualValues(t, 0, red.G)
	assert.EqualValues(t, 0, red.B)

	blue := hslToRGB(240, 1, 0.5)
	assert.EqualValues(t, 0, blue.R)
	assert.EqualValues(t, 255, blue.B)
}
