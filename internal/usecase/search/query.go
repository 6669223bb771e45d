package search

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/nooikko/nightreign-query/internal/domain"
	"github.com/nooikko/nightreign-query/internal/domain/search/filter"
	"github.com/nooikko/nightreign-query/internal/domain/search/request"
)

// Service answers natural-language queries. It embeds the query and falls
// back to fulltext search whenever no vector can be obtained.
type Service struct {
	engine   *Engine
	embedder QueryEmbedder
	logger   *zap.Logger
}

// NewService creates a query service. A nil embedder means fulltext only.
func NewService(engine *Engine, embedder QueryEmbedder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{engine: engine, embedder: embedder, logger: logger}
}

// Query validates the input, obtains a query vector and runs the engine.
func (s *Service) Query(ctx context.Context, text string, filters filter.Filters, limit int) (Response, error) {
	req, err := request.New(text, nil, filters, limit)
	if err != nil {
		return Response{}, err
	}

	if vec := s.embed(ctx, req.Query()); vec != nil {
		req, err = request.New(text, vec, filters, limit)
		if err != nil {
			return Response{}, err
		}
	}

	return s.engine.Search(ctx, &req)
}

func (s *Service) embed(ctx context.Context, text string) []float32 {
	if s.embedder == nil {
		return nil
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err == nil {
		return vec
	}

	if errors.Is(err, domain.ErrEmbeddingDimensionMismatch) || errors.Is(err, domain.ErrEmbeddingUnavailable) {
		s.logger.Error("query embedding failed, falling back to fulltext", zap.Error(err))
	} else {
		s.logger.Warn("query embedding failed, falling back to fulltext", zap.Error(err))
	}
	return nil
}
