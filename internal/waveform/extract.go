// Package waveform extracts fixed-length peak amplitude arrays from audio
// files for static thumbnail rendering. Extraction is one-shot: it decodes,
// buckets and returns without holding any live audio resources.
package waveform

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"

	"github.com/echoforge/echoforge/internal/domain"
)

// Format identifies the container format of the audio being decoded.
type Format string

// Supported container formats.
const (
	FormatMP3  Format = "mp3"
	FormatWAV  Format = "wav"
	FormatFLAC Format = "flac"
	FormatOGG  Format = "ogg"
)

// FormatForPath guesses the container format from a file extension.
// Returns domain.ErrUnsupportedFormat for anything the decoders cannot
// handle.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return FormatMP3, nil
	case ".wav":
		return FormatWAV, nil
	case ".flac":
		return FormatFLAC, nil
	case ".ogg", ".oga":
		return FormatOGG, nil
	default:
		return "", domain.ErrUnsupportedFormat
	}
}

// Extract decodes r as the given format and reduces its first channel to
// a peak array of length samples (domain.WaveformSamples when <= 0), each
// entry normalized to [0,1] relative to the global maximum. A silent file
// yields an all-zero array.
func Extract(r io.Reader, format Format, samples int) ([]float64, error) {
	if samples <= 0 {
		samples = domain.WaveformSamples
	}

	streamer, err := decode(r, format)
	if err != nil {
		return nil, domain.NewGraphError("decode", "", err.Error(), domain.ErrDecodeFailed)
	}
	defer func() { _ = streamer.Close() }()

	channel, err := readFirstChannel(streamer)
	if err != nil {
		return nil, domain.NewGraphError("decode", "", err.Error(), domain.ErrDecodeFailed)
	}

	return Peaks(channel, samples), nil
}

// ExtractFile is Extract for a local file, guessing the format from the
// file extension.
func ExtractFile(path string, samples int) ([]float64, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, domain.NewGraphError("decode", path, err.Error(), domain.ErrDecodeFailed)
	}
	defer func() { _ = f.Close() }()

	return Extract(f, format, samples)
}

// Peaks partitions the sample array into n contiguous blocks of size
// floor(len/n), takes the maximum absolute amplitude per block, and
// normalizes by the overall maximum. A zero overall maximum leaves the
// values untouched, so silence stays all-zero instead of dividing by zero.
func Peaks(channel []float64, n int) []float64 {
	peaks := make([]float64, n)
	blockSize := len(channel) / n

	for i := range n {
		start := i * blockSize
		end := start + blockSize
		var peak float64
		for j := start; j < end && j < len(channel); j++ {
			if abs := math.Abs(channel[j]); abs > peak {
				peak = abs
			}
		}
		peaks[i] = peak
	}

	var maxPeak float64
	for _, p := range peaks {
		if p > maxPeak {
			maxPeak = p
		}
	}
	if maxPeak == 0 {
		return peaks
	}

	for i := range peaks {
		peaks[i] /= maxPeak
	}
	return peaks
}

func decode(r io.Reader, format Format) (beep.StreamSeekCloser, error) {
	rc := io.NopCloser(r)

	switch format {
	case FormatMP3:
		s, _, err := mp3.Decode(rc)
		return s, err
	case FormatWAV:
		s, _, err := wav.Decode(rc)
		return s, err
	case FormatFLAC:
		s, _, err := flac.Decode(rc)
		return s, err
	case FormatOGG:
		s, _, err := vorbis.Decode(rc)
		return s, err
	default:
		return nil, domain.ErrUnsupportedFormat
	}
}

// readFirstChannel drains the streamer, keeping only the left channel.
func readFirstChannel(streamer beep.Streamer) ([]float64, error) {
	var channel []float64
	buf := make([][2]float64, 4096)

	for {
		n, ok := streamer.Stream(buf)
		for i := range n {
			channel = append(channel, buf[i][0])
		}
		if !ok {
			break
		}
	}

	if err := streamer.Err(); err != nil {
		return nil, err
	}
	return channel, nil
}
