package search

import (
	"context"
	"testing"

	"github.com/nooikko/nightreign-query/internal/db"
)

// fakeIndex answers searches with the configured functions, or empty results.
type fakeIndex struct {
	knn  func(*db.KNNQuery) (*db.SearchResult, error)
	bm25 func(*db.TextQuery) (*db.SearchResult, error)
}

func (f *fakeIndex) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if f.knn == nil {
		return &db.SearchResult{}, nil
	}
	return f.knn(q)
}

func (f *fakeIndex) SearchBM25(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if f.bm25 == nil {
		return &db.SearchResult{}, nil
	}
	return f.bm25(q)
}

func newTestRepo(t *testing.T) (*Repo, *fakeIndex) {
	t.Helper()
	idx := &fakeIndex{}
	return New(idx), idx
}

func testVector() []float32 { return []float32{0.1, 0.1, 0.1, 0.1} }
