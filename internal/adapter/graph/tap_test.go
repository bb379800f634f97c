package graph

import (
	"math"
	"testing"

	"github.com/gopxl/beep/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sineStreamer produces a tone completing cycles full periods per fftSize
// samples, so its energy lands in FFT bin cycles.
func sineStreamer(cycles int) beep.Streamer {
	n := 0
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			v := math.Sin(2 * math.Pi * float64(cycles) * float64(n) / fftSize)
			samples[i][0] = v
			samples[i][1] = v
			n++
		}
		return len(samples), true
	})
}

func drain(t *testing.T, s beep.Streamer, samples int) {
	t.Helper()
	buf := make([][2]float64, samples)
	n, ok := s.Stream(buf)
	require.True(t, ok)
	require.Equal(t, samples, n)
}

func TestTapSilentSourceYieldsZeroBins(t *testing.T) {
	tap := newAnalysisTap(beep.Silence(-1))
	drain(t, tap, fftSize)

	bins := make([]byte, tap.BinCount())
	n := tap.ByteFrequencyData(bins)

	require.Equal(t, fftSize/2, n)
	for _, b := range bins {
		assert.Zero(t, b)
	}
}

func TestTapToneEnergyLandsInMatchingBin(t *testing.T) {
	const toneBin = 32

	tap := newAnalysisTap(sineStreamer(toneBin))
	drain(t, tap, fftSize)

	bins := make([]byte, tap.BinCount())
	// Repeat polls so temporal smoothing converges toward the live frame.
	for range 8 {
		tap.ByteFrequencyData(bins)
	}

	peak := 0
	for i, b := range bins {
		if b > bins[peak] {
			peak = i
		}
	}

	assert.Equal(t, toneBin, peak)
	assert.Greater(t, bins[toneBin], byte(150))
	// Bins far from the tone stay quiet.
	assert.Less(t, bins[toneBin+40], bins[toneBin])
}

func TestTapPassesSamplesThroughUnchanged(t *testing.T) {
	tap := newAnalysisTap(sineStreamer(10))
	direct := sineStreamer(10)

	got := make([][2]float64, 256)
	want := make([][2]float64, 256)
	tap.Stream(got)
	direct.Stream(want)

	assert.Equal(t, want, got)
}

func TestTapSmoothsAcrossPolls(t *testing.T) {
	const toneBin = 16

	tap := newAnalysisTap(sineStreamer(toneBin))
	drain(t, tap, fftSize)

	first := make([]byte, tap.BinCount())
	second := make([]byte, tap.BinCount())
	tap.ByteFrequencyData(first)
	tap.ByteFrequencyData(second)

	// The smoothed magnitude keeps rising toward the steady-state value.
	assert.GreaterOrEqual(t, second[toneBin], first[toneBin])
	assert.Greater(t, second[toneBin], byte(0))
}

func TestTapShortDestination(t *testing.T) {
	tap := newAnalysisTap(beep.Silence(-1))
	drain(t, tap, fftSize)

	bins := make([]byte, 10)
	n := tap.ByteFrequencyData(bins)

	assert.Equal(t, 10, n)
}

func TestMagnitudeToByte(t *testing.T) {
	assert.Equal(t, byte(0), magnitudeToByte(0))
	// Full-scale magnitude (0 dB) exceeds the -10 dB ceiling.
	assert.Equal(t, byte(255), magnitudeToByte(1.0))
	// Below the -90 dB floor.
	assert.Equal(t, byte(0), magnitudeToByte(1e-6))
	// -50 dB sits exactly mid-range.
	mid := magnitudeToByte(math.Pow(10, -50.0/20))
	assert.InDelta(t, 127, int(mid), 1)
}
