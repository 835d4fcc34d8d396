package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrSourceExhausted marks the normal end of a finite file source.
	ErrSourceExhausted = errors.New("source exhausted")
	// ErrSourceUnavailable marks a source that cannot be opened or read.
	ErrSourceUnavailable = errors.New("source unavailable")
)

// FrameSource yields encoded frames from one camera input until the
// context is cancelled or the source ends.
type FrameSource interface {
	// Next returns the next encoded frame. It fails with
	// ErrSourceExhausted at the normal end of a file source and with
	// ErrSourceUnavailable when a network source breaks.
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// OpenFunc opens a frame source for a locator. Controllers take one so
// tests can substitute fakes.
type OpenFunc func(ctx context.Context, locator string, loop bool) (FrameSource, error)

// OpenSource opens the appropriate source for a locator: http(s)
// locators are MJPEG network streams, everything else is a frame file
// or a directory of frame files. Looping only applies to file sources
// (simulated camera mode).
func OpenSource(ctx context.Context, locator string, loop bool) (FrameSource, error) {
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		return openMJPEG(ctx, locator)
	}
	return openFiles(locator, loop)
}

// fileSource replays an ordered set of encoded frame files, optionally
// in a loop.
type fileSource struct {
	frames []string
	next   int
	loop   bool
}

var frameExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

func openFiles(path string, loop bool) (FrameSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	var frames []string
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		for _, e := range entries {
			if e.IsDir() || !frameExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
				continue
			}
			frames = append(frames, filepath.Join(path, e.Name()))
		}
		sort.Strings(frames)
	} else {
		frames = []string{path}
	}

	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no frames in %s", ErrSourceUnavailable, path)
	}
	return &fileSource{frames: frames, loop: loop}, nil
}

func (s *fileSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.frames) {
		if !s.loop {
			return nil, ErrSourceExhausted
		}
		s.next = 0
	}
	data, err := os.ReadFile(s.frames[s.next])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	s.next++
	return data, nil
}

func (s *fileSource) Close() error { return nil }

// mjpegSource reads JPEG parts from a multipart/x-mixed-replace HTTP
// stream.
type mjpegSource struct {
	body   io.ReadCloser
	reader *multipart.Reader
}

func openMJPEG(ctx context.Context, url string) (FrameSource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: stream returned status %d", ErrSourceUnavailable, resp.StatusCode)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: not an MJPEG stream (content-type %q)", ErrSourceUnavailable, resp.Header.Get("Content-Type"))
	}

	return &mjpegSource{
		body:   resp.Body,
		reader: multipart.NewReader(resp.Body, params["boundary"]),
	}, nil
}

func (s *mjpegSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	part, err := s.reader.NextPart()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// EOF on a network stream means the feed broke, not a clean end.
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer part.Close()

	frame, err := io.ReadAll(part)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return frame, nil
}

func (s *mjpegSource) Close() error { return s.body.Close() }
