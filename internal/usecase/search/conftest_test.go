package search

import (
	"context"
	"sync"

	"github.com/nooikko/nightreign-query/internal/domain/category"
	"github.com/nooikko/nightreign-query/internal/domain/search/filter"
	"github.com/nooikko/nightreign-query/internal/domain/search/result"
)

// mockIndex implements Index for tests.
type mockIndex struct {
	mu        sync.Mutex
	lexicalFn func(ctx context.Context, query string, f filter.Filters, topK int) ([]result.Hit, error)
	vectorFn  func(ctx context.Context, vec []float32, f filter.Filters, topK int) ([]result.Hit, error)

	lexicalCalls int
	vectorCalls  int
	lexicalTopK  int
	vectorTopK   int
	lastFilters  filter.Filters
}

func (m *mockIndex) LexicalQuery(ctx context.Context, query string, f filter.Filters, topK int) ([]result.Hit, error) {
	m.mu.Lock()
	m.lexicalCalls++
	m.lexicalTopK = topK
	m.lastFilters = f
	m.mu.Unlock()
	if m.lexicalFn != nil {
		return m.lexicalFn(ctx, query, f, topK)
	}
	return nil, nil
}

func (m *mockIndex) VectorQuery(ctx context.Context, vec []float32, f filter.Filters, topK int) ([]result.Hit, error) {
	m.mu.Lock()
	m.vectorCalls++
	m.vectorTopK = topK
	m.mu.Unlock()
	if m.vectorFn != nil {
		return m.vectorFn(ctx, vec, f, topK)
	}
	return nil, nil
}

// mockEmbedder implements QueryEmbedder for tests.
type mockEmbedder struct {
	vec      []float32
	err      error
	lastText string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.lastText = text
	if m.err != nil {
		return nil, m.err
	}
	return m.vec, nil
}

func hit(id string, score float64) result.Hit {
	return result.New(id, score, "https://wiki.test/"+id, id, category.Boss, "content of "+id)
}

func hits(pairs ...any) []result.Hit {
	out := make([]result.Hit, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, hit(pairs[i].(string), pairs[i+1].(float64)))
	}
	return out
}

func ids(rs []result.Scored) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}
