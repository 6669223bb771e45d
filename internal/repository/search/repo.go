package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/nooikko/nightreign-query/internal/db"
	"github.com/nooikko/nightreign-query/internal/domain"
	"github.com/nooikko/nightreign-query/internal/domain/category"
	"github.com/nooikko/nightreign-query/internal/domain/search/filter"
	"github.com/nooikko/nightreign-query/internal/domain/search/result"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// displayFields are returned by both retrieval paths.
var displayFields = []string{db.FieldURL, db.FieldTitle, db.FieldCategory, db.FieldContent}

// Repo implements usecase/search.Index over the chunk index.
type Repo struct {
	store store
	index string
}

// New creates a search repository.
func New(s store) *Repo {
	return &Repo{store: s, index: domain.ChunkIndexName}
}

// VectorQuery runs a KNN search with category pre-filtering.
// Scores are cosine similarities, higher is better.
func (r *Repo) VectorQuery(
	ctx context.Context, vector []float32, filters filter.Filters, topK int,
) ([]result.Hit, error) {
	q := &db.KNNQuery{
		IndexName:    r.index,
		Filters:      filters,
		Vector:       vector,
		K:            topK,
		ReturnFields: append(append([]string{}, displayFields...), db.FieldVectorScore),
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	return parseHits(sr), nil
}

// LexicalQuery runs a BM25 search over chunk titles and content.
func (r *Repo) LexicalQuery(
	ctx context.Context, query string, filters filter.Filters, topK int,
) ([]result.Hit, error) {
	q := &db.TextQuery{
		IndexName:    r.index,
		Query:        query,
		Filters:      filters,
		TopK:         topK,
		ReturnFields: displayFields,
	}

	sr, err := r.store.SearchBM25(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("lexical query: %w", err)
	}
	return parseHits(sr), nil
}

func parseHits(sr *db.SearchResult) []result.Hit {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}

	hits := make([]result.Hit, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		id := strings.TrimPrefix(entry.Key, domain.ChunkKeyPrefix)
		hits = append(hits, result.New(
			id,
			entry.Score,
			entry.Fields[db.FieldURL],
			entry.Fields[db.FieldTitle],
			category.ParseLenient(entry.Fields[db.FieldCategory]),
			entry.Fields[db.FieldContent],
		))
	}
	return hits
}
