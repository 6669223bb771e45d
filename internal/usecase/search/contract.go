package search

import (
	"context"

	"github.com/nooikko/nightreign-query/internal/domain/search/filter"
	"github.com/nooikko/nightreign-query/internal/domain/search/result"
)

// Index is the read side of the document index.
type Index interface {
	LexicalQuery(ctx context.Context, query string, filters filter.Filters, topK int) ([]result.Hit, error)
	VectorQuery(ctx context.Context, vector []float32, filters filter.Filters, topK int) ([]result.Hit, error)
}

// QueryEmbedder turns query text into a vector.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
