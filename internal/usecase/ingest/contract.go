package ingest

import (
	"context"

	"github.com/nooikko/nightreign-query/internal/domain"
	domchunk "github.com/nooikko/nightreign-query/internal/domain/chunk"
)

// PageSource reads cached pages.
type PageSource interface {
	ListKeys(ctx context.Context) ([]string, error)
	Get(ctx context.Context, url string) (domain.CachedPage, error)
}

// ChunkWriter persists chunks into the document index.
type ChunkWriter interface {
	EnsureIndex(ctx context.Context) error
	UpsertBatch(ctx context.Context, chunks []domchunk.Chunk) error
	PruneFrom(ctx context.Context, url string, ordinal int) (int, error)
}
