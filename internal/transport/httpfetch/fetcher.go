// Package httpfetch retrieves wiki pages over HTTP for the crawler.
package httpfetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nooikko/nightreign-query/internal/domain"
)

const (
	defaultUserAgent = "nightreign-query/1.0 (+wiki crawler)"
	defaultTimeout   = 30 * time.Second
	defaultMaxBytes  = 10 << 20
)

// Config holds fetcher parameters. Zero values fall back to defaults.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	MaxBytes  int64
	Client    *http.Client
	Logger    *zap.Logger
}

// Fetcher downloads HTML documents.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	logger    *zap.Logger
}

// New creates a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Fetcher{
		client:    client,
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBytes,
		logger:    cfg.Logger,
	}
}

// Fetch performs a GET and returns the body of a 2xx HTML response.
// Every failure wraps domain.ErrFetchFailure.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (domain.FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return domain.FetchResult{}, fmt.Errorf("create request: %w: %w", domain.ErrFetchFailure, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.FetchResult{}, fmt.Errorf("get %s: %w: %w", rawURL, domain.ErrFetchFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return domain.FetchResult{StatusCode: resp.StatusCode}, domain.NewFetchError(rawURL, resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !isHTML(ct) {
		return domain.FetchResult{StatusCode: resp.StatusCode},
			fmt.Errorf("unexpected content type %q for %s: %w", ct, rawURL, domain.ErrFetchFailure)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return domain.FetchResult{StatusCode: resp.StatusCode},
			fmt.Errorf("read body: %w: %w", domain.ErrFetchFailure, err)
	}
	if int64(len(body)) > f.maxBytes {
		return domain.FetchResult{StatusCode: resp.StatusCode},
			fmt.Errorf("body of %s exceeds %d bytes: %w", rawURL, f.maxBytes, domain.ErrFetchFailure)
	}

	f.logger.Debug("fetched page",
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
	)

	return domain.FetchResult{
		HTML:       string(body),
		StatusCode: resp.StatusCode,
	}, nil
}

func isHTML(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(strings.ToLower(contentType), "html")
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}
