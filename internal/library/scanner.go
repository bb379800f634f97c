// Package library turns directories of audio files into playable tracks.
// It is the catalog side of the engine: the playback queue only ever sees
// the Track values produced here.
package library

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dhowden/tag"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/echoforge/echoforge/internal/domain"
)

// ErrScanInProgress is returned when a scan is started while another one
// is still running.
var ErrScanInProgress = errors.New("library scan already in progress")

// Scanner walks directories for audio files and extracts tag metadata.
//
// Thread-safety: all operations are safe for concurrent use, but at most
// one scan runs at a time.
type Scanner struct {
	logger *slog.Logger

	mu       sync.Mutex
	scanning bool
}

// supportedExts lists the container formats the audio graph can decode.
var supportedExts = []string{".mp3", ".wav", ".flac", ".ogg", ".oga"}

// NewScanner creates a library scanner.
func NewScanner(logger *slog.Logger) *Scanner {
	return &Scanner{
		logger: logger.With("component", "library"),
	}
}

// Scan walks root recursively and returns a track for every supported
// audio file found. Files whose tags cannot be read still produce a track
// with metadata derived from the filename. Unreadable directory entries
// are skipped, not fatal.
func (s *Scanner) Scan(ctx context.Context, root string) ([]domain.Track, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()

	files := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			s.logger.Debug("skipping unreadable entry", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if s.IsSupported(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	tracks := make([]domain.Track, 0, len(files))
	for _, path := range files {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return tracks, ctxErr
		}
		tracks = append(tracks, s.readTrack(path))
	}

	s.logger.Info("library scan finished", "root", root, "tracks", len(tracks))
	return tracks, nil
}

// ScanFiles reads the given files directly, skipping unsupported ones.
func (s *Scanner) ScanFiles(ctx context.Context, paths []string) ([]domain.Track, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()

	tracks := make([]domain.Track, 0, len(paths))
	for _, path := range paths {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return tracks, ctxErr
		}
		if !s.IsSupported(path) {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			s.logger.Debug("skipping missing file", "path", path, "error", err)
			continue
		}
		tracks = append(tracks, s.readTrack(path))
	}

	return tracks, nil
}

// IsSupported reports whether the file extension is one the graph decodes.
func (s *Scanner) IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return lo.Contains(supportedExts, ext)
}

// SupportedExtensions returns the recognized file extensions.
func (s *Scanner) SupportedExtensions() []string {
	exts := make([]string, len(supportedExts))
	copy(exts, supportedExts)
	return exts
}

// begin claims the single scan slot.
func (s *Scanner) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scanning {
		return ErrScanInProgress
	}
	s.scanning = true
	return nil
}

func (s *Scanner) end() {
	s.mu.Lock()
	s.scanning = false
	s.mu.Unlock()
}

// IsScanning reports whether a scan is currently running.
func (s *Scanner) IsScanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanning
}

// readTrack builds a Track from a file's tags, falling back to the
// filename when the file carries none.
func (s *Scanner) readTrack(path string) domain.Track {
	track := domain.Track{
		ID:       uuid.NewString(),
		AudioURL: path,
	}

	if abs, err := filepath.Abs(path); err == nil {
		track.AudioURL = abs
	}

	title, artist := metadataFromFilename(path)
	track.Title = title
	track.Artist = artist

	f, err := os.Open(path)
	if err != nil {
		s.logger.Debug("tag read skipped", "path", path, "error", err)
		return track
	}
	defer func() { _ = f.Close() }()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		// Untagged files are common; the filename fallback stands.
		return track
	}

	if t := strings.TrimSpace(meta.Title()); t != "" {
		track.Title = t
	}
	if a := strings.TrimSpace(meta.Artist()); a != "" {
		track.Artist = a
	}

	return track
}

// metadataFromFilename derives title and artist from a file name,
// honoring the common "Artist - Title" naming convention.
func metadataFromFilename(path string) (title, artist string) {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	if before, after, found := strings.Cut(name, " - "); found {
		artist = strings.TrimSpace(before)
		title = strings.TrimSpace(after)
		if title != "" && artist != "" {
			return title, artist
		}
	}

	return name, ""
}
