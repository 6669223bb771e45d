package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nooikko/nightreign-query/internal/domain"
	"github.com/nooikko/nightreign-query/internal/domain/search/mode"
	"github.com/nooikko/nightreign-query/internal/domain/search/request"
	"github.com/nooikko/nightreign-query/internal/domain/search/result"
	"github.com/nooikko/nightreign-query/internal/metrics"
)

// Response is a ranked result set and the mode that produced it.
type Response struct {
	Results []result.Scored `json:"results"`
	Mode    mode.Mode       `json:"mode"`
}

// Config holds engine settings.
type Config struct {
	Weights Weights
	// IndexTimeout bounds each index query. Zero means no extra bound.
	IndexTimeout time.Duration
}

// Engine fuses lexical and vector retrieval. It holds no mutable state and is
// safe for concurrent use.
type Engine struct {
	index  Index
	cfg    Config
	logger *zap.Logger
}

// NewEngine creates a hybrid search engine.
func NewEngine(index Index, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{index: index, cfg: cfg, logger: logger}
}

// Search runs a fulltext search when req has no vector and a hybrid search
// otherwise. A hybrid search degrades to the path that succeeded; only when
// every path fails is domain.ErrIndexQueryFailure returned.
func (e *Engine) Search(ctx context.Context, req *request.Request) (Response, error) {
	start := time.Now()
	resp, err := e.search(ctx, req)
	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return Response{}, err
	}
	metrics.SearchRequestsTotal.WithLabelValues(string(resp.Mode)).Inc()
	return resp, nil
}

func (e *Engine) search(ctx context.Context, req *request.Request) (Response, error) {
	if !req.HasVector() {
		hits, err := e.lexical(ctx, req)
		if err != nil {
			return Response{}, fmt.Errorf("%w: %w", domain.ErrIndexQueryFailure, err)
		}
		return Response{Results: rank(rawLexical(hits), req.Limit()), Mode: mode.Fulltext}, nil
	}

	var (
		g                errgroup.Group
		lexHits, vecHits []result.Hit
		lexErr, vecErr   error
	)
	// Failures are kept per path so one path never cancels the other.
	g.Go(func() error {
		lexHits, lexErr = e.lexical(ctx, req)
		return nil
	})
	g.Go(func() error {
		vecHits, vecErr = e.vector(ctx, req)
		return nil
	})
	_ = g.Wait()

	switch {
	case lexErr != nil && vecErr != nil:
		return Response{}, fmt.Errorf("%w: %w", domain.ErrIndexQueryFailure, errors.Join(lexErr, vecErr))
	case vecErr != nil:
		e.logger.Warn("vector query failed, serving fulltext results", zap.Error(vecErr))
		return Response{Results: rank(rawLexical(lexHits), req.Limit()), Mode: mode.Fulltext}, nil
	case lexErr != nil:
		e.logger.Warn("lexical query failed, serving semantic results", zap.Error(lexErr))
		return Response{Results: rank(rawVector(vecHits), req.Limit()), Mode: mode.Semantic}, nil
	}

	return Response{Results: rank(fuse(lexHits, vecHits, e.cfg.Weights), req.Limit()), Mode: mode.Hybrid}, nil
}

func (e *Engine) lexical(ctx context.Context, req *request.Request) ([]result.Hit, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	hits, err := e.index.LexicalQuery(ctx, req.Query(), req.Filters(), req.Candidates())
	if err != nil {
		metrics.IndexQueryErrorsTotal.WithLabelValues("lexical").Inc()
		return nil, fmt.Errorf("lexical: %w", err)
	}
	return hits, nil
}

func (e *Engine) vector(ctx context.Context, req *request.Request) ([]result.Hit, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	hits, err := e.index.VectorQuery(ctx, req.Vector(), req.Filters(), req.Candidates())
	if err != nil {
		metrics.IndexQueryErrorsTotal.WithLabelValues("vector").Inc()
		return nil, fmt.Errorf("vector: %w", err)
	}
	return hits, nil
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.IndexTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.cfg.IndexTimeout)
}
