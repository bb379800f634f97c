package analyzer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echoforge/echoforge/internal/logger"
	"github.com/echoforge/echoforge/internal/testutil"
)

// fakeSource serves a fixed frame of bins.
type fakeSource struct {
	bins []byte
}

func (f *fakeSource) BinCount() int { return len(f.bins) }

func (f *fakeSource) ByteFrequencyData(dst []byte) int {
	return copy(dst, f.bins)
}

func newSilentSource(binCount int) *fakeSource {
	return &fakeSource{bins: make([]byte, binCount)}
}

func TestBeatIntensityAllZeroIsZero(t *testing.T) {
	assert.Zero(t, BeatIntensity(make([]byte, 256)))
	assert.Zero(t, BeatIntensity(nil))
}

func TestBeatIntensityKickPeakDominates(t *testing.T) {
	bins := make([]byte, 256)
	bins[0] = 51 // 0.2 of full scale

	// Raw intensity 0.2, scaled by 3.0.
	assert.InDelta(t, 0.6, BeatIntensity(bins), 0.01)
}

func TestBeatIntensitySnareBandWeighted(t *testing.T) {
	bins := make([]byte, 256)
	bins[10] = 102 // 0.4 in the snare band, weighted 0.7

	assert.InDelta(t, 0.4*0.7*3.0, BeatIntensity(bins), 0.01)
}

func TestBeatIntensitySustainedBassViaAverage(t *testing.T) {
	bins := make([]byte, 256)
	for i := range 8 {
		bins[i] = 128 // ~0.5 across the whole kick range
	}

	// Average path: 0.5 * 1.8 = 0.9 beats the 0.5 peak; scaled clamps to 1.
	assert.InDelta(t, 1.0, BeatIntensity(bins), 0.01)
}

func TestBeatIntensityClampedToOne(t *testing.T) {
	bins := make([]byte, 256)
	bins[0] = 255

	assert.Equal(t, 1.0, BeatIntensity(bins))
}

func TestStepFiresBeatAboveThresholdOnly(t *testing.T) {
	quiet := make([]byte, 256)
	quiet[0] = 10 // raw ~0.039, below the 0.05 threshold

	src := &fakeSource{bins: quiet}
	a := New(logger.NewTestLogger(), src)

	beats := 0
	a.onBeat = func(float64) { beats++ }

	now := time.Now()
	a.step(now)
	assert.Zero(t, beats)

	src.bins[0] = 64 // raw ~0.25, above threshold
	a.step(now.Add(time.Second))
	assert.Equal(t, 1, beats)
}

func TestStepThrottlesBeats(t *testing.T) {
	bins := make([]byte, 256)
	bins[0] = 255

	a := New(logger.NewTestLogger(), &fakeSource{bins: bins})

	beats := 0
	a.onBeat = func(float64) { beats++ }

	start := time.Now()
	a.step(start)
	a.step(start.Add(10 * time.Millisecond)) // inside throttle window
	a.step(start.Add(20 * time.Millisecond)) // still inside
	a.step(start.Add(45 * time.Millisecond)) // past it

	assert.Equal(t, 2, beats)
}

func TestStepFrameCallbackFiresEvenWhenSilent(t *testing.T) {
	a := New(logger.NewTestLogger(), newSilentSource(256))

	frames := 0
	beats := 0
	a.onFrame = func(bins []byte) {
		frames++
		assert.Len(t, bins, 256)
	}
	a.onBeat = func(float64) { beats++ }

	now := time.Now()
	a.step(now)
	a.step(now.Add(FrameInterval))

	assert.Equal(t, 2, frames)
	assert.Zero(t, beats)
}

func TestStartStopLifecycle(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	a := New(logger.NewTestLogger(), newSilentSource(256))

	var frames atomic.Int64
	a.Start(nil, func([]byte) { frames.Add(1) })

	require.Eventually(t, func() bool {
		return frames.Load() > 0
	}, time.Second, 5*time.Millisecond)

	a.Stop()
	after := frames.Load()
	time.Sleep(5 * FrameInterval)

	assert.Equal(t, after, frames.Load(), "no frame callback may fire after Stop")
}

func TestStopWithoutStartIsSafe(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	a := New(logger.NewTestLogger(), newSilentSource(256))
	a.Stop()
	a.Stop()
}

func TestStartTwiceKeepsOneLoop(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	a := New(logger.NewTestLogger(), newSilentSource(256))
	a.Start(nil, nil)
	a.Start(nil, nil)
	a.Stop()
}
