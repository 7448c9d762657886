// Package fetch downloads generated images and decodes them into raw pixels.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"spritegen/internal/domain"
	"spritegen/internal/imaging"
	"spritegen/internal/infra"
)

const (
	// DefaultMaxBytes bounds a single download.
	DefaultMaxBytes int64 = 64 << 20
	// DefaultMaxPixels bounds the decoded size of a download (32 Mpx).
	DefaultMaxPixels int64 = 32 << 20
)

type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	MaxBytes   int64
	MaxPixels  int64
	Logger     *infra.Logger
}

// permanentError marks failures that repeating the same request cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return &permanentError{err: err} }

// IsPermanent reports whether err came from a Fetch failure that will recur
// on retry: a bad URL, a client error status, an oversized or undecodable
// payload. Transport errors and 408/429/5xx responses are not permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Fetcher retrieves result images. It performs exactly one transfer per call;
// retrying is left to the caller.
type Fetcher struct {
	httpClient *http.Client
	maxBytes   int64
	maxPixels  int64
	logger     *infra.Logger
}

func New(opts Options) *Fetcher {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	maxPixels := opts.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Fetcher{httpClient: client, maxBytes: maxBytes, maxPixels: maxPixels, logger: logger}
}

// Fetch downloads rawURL and decodes it. Every failure is reported as
// domain.ErrDownloadFailed.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*imaging.RawImage, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, permanent(fmt.Errorf("%w: invalid image url %q", domain.ErrDownloadFailed, rawURL))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, permanent(fmt.Errorf("%w: build request: %v", domain.ErrDownloadFailed, err))
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("%w: status %d", domain.ErrDownloadFailed, resp.StatusCode)
		if !retryableStatus(resp.StatusCode) {
			err = permanent(err)
		}
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrDownloadFailed, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, permanent(fmt.Errorf("%w: payload exceeds %d bytes", domain.ErrDownloadFailed, f.maxBytes))
	}
	img, format, err := imaging.DecodeLimited(data, f.maxPixels)
	if err != nil {
		return nil, permanent(fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err))
	}
	f.logger.Debug().
		Str("url", parsed.Redacted()).
		Str("format", format).
		Int("width", img.Width).
		Int("height", img.Height).
		Int("bytes", len(data)).
		Msg("fetch: image downloaded")
	return img, nil
}

func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500
}
