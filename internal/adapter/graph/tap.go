package graph

import (
	"math"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

const (
	// fftSize is the number of time-domain samples per analysis frame.
	// Half of it becomes the usable frequency bin count.
	fftSize = 512

	// smoothing is the weight of the previous frame when averaging
	// magnitudes over time. Lower values react faster to transients.
	smoothing = 0.3

	// minDB and maxDB bound the decibel range mapped onto byte values.
	minDB = -90.0
	maxDB = -10.0
)

// analysisTap sits inline in the playback chain, copying samples into a
// ring buffer as they pass through on their way to the output. It never
// modifies the signal.
//
// Stream is called from the speaker's mixer goroutine while
// ByteFrequencyData is polled from the analyzer's frame loop, so both
// sides go through the mutex.
type analysisTap struct {
	inner beep.Streamer

	mu       sync.Mutex
	ring     [fftSize]float64
	pos      int
	smoothed [fftSize / 2]float64
}

func newAnalysisTap(inner beep.Streamer) *analysisTap {
	return &analysisTap{inner: inner}
}

// Stream passes samples through unchanged while recording a mono mix of
// the most recent fftSize samples.
func (t *analysisTap) Stream(samples [][2]float64) (int, bool) {
	n, ok := t.inner.Stream(samples)

	t.mu.Lock()
	for i := range n {
		t.ring[t.pos] = (samples[i][0] + samples[i][1]) / 2
		t.pos = (t.pos + 1) % fftSize
	}
	t.mu.Unlock()

	return n, ok
}

// Err reports the wrapped streamer's error.
func (t *analysisTap) Err() error {
	return t.inner.Err()
}

// BinCount returns the number of frequency bins.
func (t *analysisTap) BinCount() int {
	return fftSize / 2
}

// ByteFrequencyData runs a Hann-windowed FFT over the most recent samples,
// smooths the magnitudes against the previous frame and writes them to dst
// as bytes mapped from the [minDB, maxDB] decibel range.
func (t *analysisTap) ByteFrequencyData(dst []byte) int {
	frame := make([]float64, fftSize)

	t.mu.Lock()
	for i := range fftSize {
		frame[i] = t.ring[(t.pos+i)%fftSize]
	}
	t.mu.Unlock()

	window.Apply(frame, window.Hann)
	spectrum := fft.FFTReal(frame)

	n := min(len(dst), fftSize/2)

	t.mu.Lock()
	for i := range fftSize / 2 {
		re := real(spectrum[i])
		im := imag(spectrum[i])
		mag := 2 * math.Sqrt(re*re+im*im) / fftSize

		t.smoothed[i] = smoothing*t.smoothed[i] + (1-smoothing)*mag
		if i < n {
			dst[i] = magnitudeToByte(t.smoothed[i])
		}
	}
	t.mu.Unlock()

	return n
}

// magnitudeToByte converts a linear magnitude to the 0-255 byte scale via
// decibels, clamped at the range bounds. Zero magnitude maps to zero.
func magnitudeToByte(mag float64) byte {
	if mag <= 0 {
		return 0
	}

	db := 20 * math.Log10(mag)
	scaled := (db - minDB) / (maxDB - minDB) * 255

	if scaled <= 0 {
		return 0
	}
	if scaled >= 255 {
		return 255
	}
	return byte(scaled)
}
