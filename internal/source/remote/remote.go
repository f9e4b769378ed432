// Package remote downloads workbooks over HTTP.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"path"
	"time"

	"tracker/internal/core"
	"tracker/internal/source"
	"tracker/internal/workbook"
)

// DefaultMaxBytes bounds the size of a downloaded workbook.
const DefaultMaxBytes int64 = 50 << 20

// Loader issues a single GET per load. Only HTTP 200 is a success.
type Loader struct {
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
}

var _ source.Loader = (*Loader)(nil)

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.client = c }
}

// WithMaxBytes bounds the response body.
func WithMaxBytes(n int64) Option {
	return func(l *Loader) {
		if n > 0 {
			l.maxBytes = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func New(timeout time.Duration, opts ...Option) *Loader {
	l := &Loader{
		client:   newHTTPClient(timeout),
		maxBytes: DefaultMaxBytes,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// newHTTPClient returns a client with connection pooling and bounded timeouts.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

func (l *Loader) Load(ctx context.Context, rawURL string) (core.Workbook, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", core.ErrLoadFailed, err)
	}

	start := time.Now()
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %w", core.ErrLoadFailed, redact(rawURL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("%w: %w", core.ErrLoadFailed,
			&source.StatusError{Location: redact(rawURL), StatusCode: resp.StatusCode})
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", core.ErrLoadFailed, err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", core.ErrLoadFailed, l.maxBytes)
	}

	name := fileName(rawURL, resp.Header.Get("Content-Disposition"))
	wb, err := workbook.Decode(name, data)
	if err != nil {
		if errors.Is(err, core.ErrUnsupportedFormat) {
			l.logger.WarnContext(ctx, "Download is not a workbook, check that the link is a direct download",
				"url", redact(rawURL),
				"content_type", resp.Header.Get("Content-Type"))
		}
		return nil, fmt.Errorf("%w: decode %s: %w", core.ErrLoadFailed, name, err)
	}

	l.logger.InfoContext(ctx, "Workbook downloaded",
		"url", redact(rawURL),
		"bytes", len(data),
		"sheets", len(wb.SheetNames()),
		"duration_ms", time.Since(start).Milliseconds())
	return wb, nil
}

func (l *Loader) Describe() string {
	return "remote"
}

// fileName prefers the attachment name sent by the server over the URL path.
func fileName(rawURL, disposition string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil && params["filename"] != "" {
			return params["filename"]
		}
	}
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			return base
		}
	}
	return "download"
}

// redact strips the query string, which often carries share tokens.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
