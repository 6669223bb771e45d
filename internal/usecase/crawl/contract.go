package crawl

import (
	"context"

	"github.com/nooikko/nightreign-query/internal/domain"
)

// Fetcher downloads a page over the network.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (domain.FetchResult, error)
}

// LinkExtractor returns the normalized outgoing links of a page.
type LinkExtractor interface {
	ExtractLinks(html, baseURL string) []string
}

// PageCache persists fetched HTML keyed by normalized URL.
type PageCache interface {
	Get(ctx context.Context, url string) (domain.CachedPage, error)
	Set(ctx context.Context, url, html string) error
	ListKeys(ctx context.Context) ([]string, error)
}

// Normalizer canonicalizes URLs and decides crawl scope.
type Normalizer interface {
	Normalize(raw string) (string, error)
	IsInScope(raw string) bool
}
