package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidURL signals an URL that cannot be parsed or is not http(s).
	ErrInvalidURL = errors.New("invalid url")
	// ErrFetchFailure signals a network, timeout or non-success fetch outcome.
	ErrFetchFailure = errors.New("fetch failure")
	// ErrCacheMiss signals that no page is cached under the given URL.
	ErrCacheMiss = errors.New("page not cached")
	// ErrEmbeddingDimensionMismatch signals a vector whose length differs from the configured dimension.
	ErrEmbeddingDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrEmbeddingUnavailable signals that the embedding collaborator could not be initialized.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrIndexQueryFailure signals that the document index could not answer a query.
	ErrIndexQueryFailure = errors.New("index query failure")
	// ErrEmptyQuery signals a blank query text.
	ErrEmptyQuery = errors.New("empty query")
	// ErrRateLimited signals a rate limit hit on an upstream provider.
	ErrRateLimited = errors.New("rate limited")
)

// FetchError carries the HTTP status of a failed fetch.
type FetchError struct {
	URL        string
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s returned status %d", ErrFetchFailure.Error(), e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error { return ErrFetchFailure }

// NewFetchError creates a fetch error for a non-success HTTP status.
func NewFetchError(url string, status int) error {
	return &FetchError{URL: url, StatusCode: status}
}
