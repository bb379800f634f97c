// Package analyzer polls the audio graph's analysis tap on a frame clock,
// derives a beat-intensity scalar from the frequency bins and pushes both
// to registered callbacks. It owns no audio resources: the tap belongs to
// the graph session and the analyzer merely reads from it.
package analyzer

import (
	"log/slog"
	"sync"
	"time"

	"github.com/echoforge/echoforge/internal/ports"
)

// Tuning constants for beat detection. The bin ranges assume a 512-point
// FFT at a typical 44.1kHz rate, where the lowest 8 bins (~0-690Hz) carry
// sub-bass and kick energy and the next 12 the snare/percussion band.
const (
	// FrameInterval approximates a 60fps animation-frame clock.
	FrameInterval = 16 * time.Millisecond

	// BeatThreshold is the raw intensity above which a beat fires.
	// Deliberately low: any meaningful audio activity should register.
	BeatThreshold = 0.05

	// BeatThrottle bounds how often the beat callback fires, so a single
	// perceptual beat does not retrigger every frame.
	BeatThrottle = 30 * time.Millisecond

	kickBinEnd    = 8
	snareBinEnd   = 20
	kickAvgBoost  = 1.8
	snareWeight   = 0.7
	energyWeight  = 0.5
	intensityGain = 3.0
)

// BeatFunc receives the scaled beat intensity in [0,1].
type BeatFunc func(intensity float64)

// FrameFunc receives the raw frequency bins (0-255 each) every frame.
// The slice is reused between frames; callbacks must copy if they retain it.
type FrameFunc func(bins []byte)

// Analyzer runs the per-frame analysis loop against a FrequencySource.
// One analyzer serves one source; Stop before switching sources.
type Analyzer struct {
	logger *slog.Logger

	mu       sync.Mutex
	source   ports.FrequencySource
	onBeat   BeatFunc
	onFrame  FrameFunc
	bins     []byte
	lastBeat time.Time

	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New creates an analyzer reading from source.
func New(logger *slog.Logger, source ports.FrequencySource) *Analyzer {
	return &Analyzer{
		logger: logger,
		source: source,
		bins:   make([]byte, source.BinCount()),
	}
}

// Start begins the frame loop. onBeat fires when the combined intensity
// crosses BeatThreshold, at most once per BeatThrottle; onFrame fires every
// frame regardless. Either callback may be nil. Start on a running
// analyzer is a no-op.
func (a *Analyzer) Start(onBeat BeatFunc, onFrame FrameFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return
	}
	a.onBeat = onBeat
	a.onFrame = onFrame
	a.running = true
	a.stop = make(chan struct{})

	a.wg.Add(1)
	go a.loop(a.stop)
}

// Stop cancels the frame loop and waits for it to exit. No callback fires
// after Stop returns. Safe to call repeatedly and on a never-started
// analyzer.
func (a *Analyzer) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	close(a.stop)
	a.mu.Unlock()

	a.wg.Wait()

	a.mu.Lock()
	a.onBeat = nil
	a.onFrame = nil
	a.mu.Unlock()
}

func (a *Analyzer) loop(stop chan struct{}) {
	defer a.wg.Done()

	ticker := time.NewTicker(FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			a.step(time.Now())
		}
	}
}

// step runs a single analysis frame. Split out from the loop so tests can
// drive it with a deterministic clock.
func (a *Analyzer) step(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stop != nil && !a.running {
		// Stop won the race against one last ticker fire.
		return
	}

	n := a.source.ByteFrequencyData(a.bins)
	bins := a.bins[:n]

	if a.onFrame != nil {
		a.onFrame(bins)
	}

	raw := rawIntensity(bins)
	if raw <= BeatThreshold {
		return
	}
	if now.Sub(a.lastBeat) < BeatThrottle {
		return
	}
	a.lastBeat = now

	if a.onBeat != nil {
		a.onBeat(scale(raw))
	}
}

// BeatIntensity computes the scaled beat intensity in [0,1] for a frame of
// byte frequency bins. An all-zero (or empty) buffer yields 0.
func BeatIntensity(bins []byte) float64 {
	return scale(rawIntensity(bins))
}

// rawIntensity combines kick peak, sustained-bass average, snare peak and
// overall energy into one unscaled beat measure.
func rawIntensity(bins []byte) float64 {
	if len(bins) == 0 {
		return 0
	}

	kickEnd := min(kickBinEnd, len(bins))
	snareEnd := min(snareBinEnd, len(bins))

	var kickPeak, kickSum float64
	for _, b := range bins[:kickEnd] {
		v := float64(b) / 255
		kickSum += v
		if v > kickPeak {
			kickPeak = v
		}
	}
	kickAvg := kickSum / float64(kickEnd)

	var snarePeak float64
	for _, b := range bins[kickEnd:snareEnd] {
		if v := float64(b) / 255; v > snarePeak {
			snarePeak = v
		}
	}

	var total float64
	for _, b := range bins {
		total += float64(b) / 255
	}
	energy := total / float64(len(bins))

	return max(kickPeak, kickAvg*kickAvgBoost, snarePeak*snareWeight, energy*energyWeight)
}

func scale(raw float64) float64 {
	return min(raw*intensityGain, 1.0)
}
