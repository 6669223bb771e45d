package domain

import "time"

// CachedPage is a fetched page body stored under its normalized URL.
// A re-fetch overwrites the whole record.
type CachedPage struct {
	URL       string    `json:"url"`
	HTML      string    `json:"html"`
	FetchedAt time.Time `json:"fetched_at"`
}

// FetchResult is what the fetch collaborator returns for one URL.
type FetchResult struct {
	HTML       string
	StatusCode int
	// Cached reports that the fetcher served the body from its own cache.
	Cached bool
}
