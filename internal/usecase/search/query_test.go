package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nooikko/nightreign-query/internal/domain"
	"github.com/nooikko/nightreign-query/internal/domain/search/filter"
	"github.com/nooikko/nightreign-query/internal/domain/search/mode"
	"github.com/nooikko/nightreign-query/internal/domain/search/result"
)

func hybridIndex() *mockIndex {
	return &mockIndex{
		lexicalFn: func(context.Context, string, filter.Filters, int) ([]result.Hit, error) {
			return hits("a", 1.0), nil
		},
		vectorFn: func(context.Context, []float32, filter.Filters, int) ([]result.Hit, error) {
			return hits("a", 0.5), nil
		},
	}
}

func TestQuery_EmbedsAndRunsHybrid(t *testing.T) {
	idx := hybridIndex()
	emb := &mockEmbedder{vec: []float32{0.1, 0.2}}
	svc := NewService(newEngine(idx), emb, nil)

	resp, err := svc.Query(context.Background(), "  Gladius weakness ", filter.Filters{}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Mode != mode.Hybrid {
		t.Errorf("expected hybrid, got %s", resp.Mode)
	}
	if emb.lastText != "Gladius weakness" {
		t.Errorf("expected trimmed query to be embedded, got %q", emb.lastText)
	}
	if idx.lexicalTopK != 20 {
		t.Errorf("default limit should ask for 20 candidates, got %d", idx.lexicalTopK)
	}
}

func TestQuery_EmbeddingFailureFallsBackToFulltext(t *testing.T) {
	cases := []error{
		fmt.Errorf("got 3: %w", domain.ErrEmbeddingDimensionMismatch),
		fmt.Errorf("init: %w", domain.ErrEmbeddingUnavailable),
		context.DeadlineExceeded,
	}
	for _, embErr := range cases {
		t.Run(embErr.Error(), func(t *testing.T) {
			idx := hybridIndex()
			svc := NewService(newEngine(idx), &mockEmbedder{err: embErr}, nil)

			resp, err := svc.Query(context.Background(), "gladius", filter.Filters{}, 5)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Mode != mode.Fulltext {
				t.Errorf("expected fulltext, got %s", resp.Mode)
			}
			if idx.vectorCalls != 0 {
				t.Errorf("vector path must not run without a vector")
			}
		})
	}
}

func TestQuery_NilEmbedder(t *testing.T) {
	idx := hybridIndex()
	resp, err := NewService(newEngine(idx), nil, nil).Query(context.Background(), "gladius", filter.Filters{}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Mode != mode.Fulltext {
		t.Errorf("expected fulltext, got %s", resp.Mode)
	}
}

func TestQuery_EmptyText(t *testing.T) {
	idx := hybridIndex()
	emb := &mockEmbedder{vec: []float32{1}}
	_, err := NewService(newEngine(idx), emb, nil).Query(context.Background(), "   ", filter.Filters{}, 5)
	if !errors.Is(err, domain.ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
	if idx.lexicalCalls != 0 || emb.lastText != "" {
		t.Errorf("nothing should run for an empty query")
	}
}
