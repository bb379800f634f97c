package graph

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"

	"github.com/echoforge/echoforge/internal/domain"
	"github.com/echoforge/echoforge/internal/waveform"
)

// load fetches the media behind rawURL into memory and decodes it into a
// seekable streamer. Buffering the whole body keeps seeking cheap and
// independent of the transport.
func load(ctx context.Context, rawURL string) (beep.StreamSeekCloser, beep.Format, error) {
	format, err := waveform.FormatForPath(mediaPath(rawURL))
	if err != nil {
		return nil, beep.Format{}, domain.NewGraphError("load", rawURL, "unrecognized media format", err)
	}

	data, err := fetch(ctx, rawURL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, beep.Format{}, domain.NewGraphError("load", rawURL, "media fetch timed out", domain.ErrLoadTimeout)
		}
		return nil, beep.Format{}, domain.NewGraphError("load", rawURL, err.Error(), domain.ErrDecodeFailed)
	}

	streamer, beepFormat, err := decodeBuffer(data, format)
	if err != nil {
		return nil, beep.Format{}, domain.NewGraphError("decode", rawURL, err.Error(), domain.ErrDecodeFailed)
	}

	return streamer, beepFormat, nil
}

// fetch returns the raw media bytes, over HTTP for http(s) URLs and from
// the local filesystem for everything else.
func fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %s", resp.Status)
		}

		return io.ReadAll(resp.Body)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return os.ReadFile(strings.TrimPrefix(rawURL, "file://"))
}

// mediaPath strips query and fragment noise so format detection sees a
// clean filename.
func mediaPath(rawURL string) string {
	if strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://") {
		if u, err := url.Parse(rawURL); err == nil {
			return u.Path
		}
	}
	return strings.TrimPrefix(rawURL, "file://")
}

func decodeBuffer(data []byte, format waveform.Format) (beep.StreamSeekCloser, beep.Format, error) {
	r := nopCloser{bytes.NewReader(data)}

	switch format {
	case waveform.FormatMP3:
		return mp3.Decode(r)
	case waveform.FormatWAV:
		return wav.Decode(r)
	case waveform.FormatFLAC:
		return flac.Decode(r)
	case waveform.FormatOGG:
		return vorbis.Decode(r)
	default:
		return nil, beep.Format{}, domain.ErrUnsupportedFormat
	}
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
