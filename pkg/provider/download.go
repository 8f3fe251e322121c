package provider

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

var downloadClient = &http.Client{Timeout: 10 * time.Minute}

// fetchToFile downloads a locator into the OS temp dir, reporting
// progress as bytes arrive. A 403 or 410 response surfaces as a
// StatusError so callers can treat it as an expiry signal.
func fetchToFile(ctx context.Context, locator *Locator, prefix string, headers map[string]string, progress ProgressFunc) (*Artifact, error) {
	if locator.Expired() {
		return nil, ErrLocatorExpired
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator.URL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build download request")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := downloadClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "download request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, URL: locator.URL}
	}

	ext := locator.Format
	if ext == "" {
		ext = "bin"
	}
	out, err := os.CreateTemp("", prefix+"-*."+ext)
	if err != nil {
		return nil, errors.Wrap(err, "create artifact file")
	}

	written, err := copyWithProgress(ctx, out, resp.Body, resp.ContentLength, progress)
	closeErr := out.Close()
	if err != nil {
		os.Remove(out.Name())
		return nil, err
	}
	if closeErr != nil {
		os.Remove(out.Name())
		return nil, errors.Wrap(closeErr, "close artifact file")
	}

	return &Artifact{
		Path:   filepath.Clean(out.Name()),
		Size:   written,
		Format: locator.Format,
	}, nil
}

func copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, total int64, progress ProgressFunc) (int64, error) {
	buf := make([]byte, 64*1024)
	var written int64

	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return written, errors.Wrap(writeErr, "write artifact")
			}
			written += int64(n)
			if progress != nil {
				progress(written, total)
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, errors.Wrap(readErr, "read download stream")
		}
	}
}
