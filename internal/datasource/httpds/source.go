// Package httpds reads the badge export over HTTP(S) with retry and
// exponential backoff on transient failures.
package httpds

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"time"
)

// Config configures a Source. Zero values get defaults: 5m timeout, 3
// retries, 200ms initial backoff, 5s max backoff.
type Config struct {
	URL     string
	Headers http.Header

	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	InsecureSkipVerify bool
	// Transport replaces the default transport, mostly in tests.
	Transport http.RoundTripper
}

// Source downloads one URL. It implements datasource.Buffered.
type Source struct {
	url            string
	headers        http.Header
	client         *http.Client
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// New returns a Source for cfg.URL.
func New(cfg Config) *Source {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	tr := cfg.Transport
	if tr == nil {
		tr = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}, //nolint:gosec // opt-in
		}
	}
	return &Source{
		url:            cfg.URL,
		headers:        cfg.Headers.Clone(),
		client:         &http.Client{Timeout: cfg.Timeout, Transport: tr},
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
	}
}

// Name returns the URL.
func (s *Source) Name() string { return s.url }

// Open issues the GET and returns the response body. Transport errors, 429
// and 5xx are retried; 404 and 410 wrap fs.ErrNotExist.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	if s.url == "" {
		return nil, fmt.Errorf("httpds: url must not be empty")
	}
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, backoff(s.initialBackoff, attempt-1, s.maxBackoff)); err != nil {
				return nil, err
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
		if err != nil {
			return nil, fmt.Errorf("httpds: build request: %w", err)
		}
		for k, vs := range s.headers {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := s.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("httpds: GET %s: %w", s.url, err)
			continue
		}
		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp.Body, nil
		case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
			resp.Body.Close()
			return nil, fmt.Errorf("httpds: GET %s: %s: %w", s.url, resp.Status, fs.ErrNotExist)
		case retryable(resp.StatusCode):
			resp.Body.Close()
			lastErr = fmt.Errorf("httpds: GET %s: %s", s.url, resp.Status)
		default:
			resp.Body.Close()
			return nil, fmt.Errorf("httpds: GET %s: %s", s.url, resp.Status)
		}
	}
	return nil, lastErr
}

// ReadAll downloads the whole body.
func (s *Source) ReadAll(ctx context.Context) ([]byte, error) {
	rc, err := s.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("httpds: read %s: %w", s.url, err)
	}
	return b, nil
}

// retryable treats 429 and 5xx as transient.
func retryable(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

// backoff is initial * 2^retry, clamped to max.
func backoff(initial time.Duration, retry int, max time.Duration) time.Duration {
	if retry > 30 {
		return max
	}
	d := initial << retry
	if d <= 0 || d > max {
		return max
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
