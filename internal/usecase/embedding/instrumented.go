// Package embedding decorates a provider embedder with request splitting,
// vector length checks and logging.
package embedding

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/nooikko/nightreign-query/internal/domain"
)

// DefaultMaxAPIBatchSize caps the number of texts sent in one provider call.
const DefaultMaxAPIBatchSize = 256

// InstrumentedEmbedder sits directly on the provider. Transport metrics are
// recorded by the provider itself.
type InstrumentedEmbedder struct {
	inner     domain.Embedder
	provider  string
	dimension int
	maxBatch  int
	log       *zap.Logger
}

// NewInstrumentedEmbedder wraps inner. A dimension of zero disables the
// vector length check.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string, dimension int, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:     inner,
		provider:  provider,
		dimension: dimension,
		maxBatch:  DefaultMaxAPIBatchSize,
		log:       logger.With(zap.String("provider", provider), zap.String("model", model)),
	}
}

// WithMaxBatch overrides the per-call batch size. Non-positive n is ignored.
func (e *InstrumentedEmbedder) WithMaxBatch(n int) *InstrumentedEmbedder {
	if n > 0 {
		e.maxBatch = n
	}
	return e
}

// Embed embeds one text.
func (e *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	res, err := e.inner.Embed(ctx, text)
	if err != nil {
		e.log.Error("Embedding request failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	if err := e.checkDim(res.Embedding); err != nil {
		return domain.EmbeddingResult{}, err
	}
	e.log.Debug("Embedded text",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res, nil
}

// BatchEmbed sends texts in calls of at most maxBatch and returns the
// vectors in input order. An empty input makes no call.
func (e *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	var out domain.BatchEmbeddingResult
	if len(texts) == 0 {
		return out, nil
	}

	start := time.Now()
	offset := 0
	for part := range slices.Chunk(texts, e.maxBatch) {
		res, err := domain.BatchEmbed(ctx, e.inner, part)
		if err != nil {
			e.log.Error("Batch embedding request failed",
				zap.Int("offset", offset), zap.Int("size", len(part)), zap.Error(err))
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}
		if len(res.Embeddings) != len(part) {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("%w: %d embeddings for %d texts",
				domain.ErrEmbeddingProviderError, len(res.Embeddings), len(part))
		}
		for i, vec := range res.Embeddings {
			if err := e.checkDim(vec); err != nil {
				return domain.BatchEmbeddingResult{}, fmt.Errorf("text %d: %w", offset+i, err)
			}
		}
		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
		offset += len(part)
	}

	e.log.Debug("Embedded batch",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("texts", len(texts)),
		zap.Int("total_tokens", out.TotalTokens),
	)
	return out, nil
}

// HealthCheck probes the provider when inner supports it.
func (e *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	hc, ok := e.inner.(domain.HealthChecker)
	if !ok {
		return nil
	}
	if err := hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%s health: %w", e.provider, err)
	}
	return nil
}

func (e *InstrumentedEmbedder) checkDim(vec []float32) error {
	if e.dimension == 0 || len(vec) == e.dimension {
		return nil
	}
	e.log.Error("Embedding has the wrong dimension", zap.Int("want", e.dimension), zap.Int("got", len(vec)))
	return fmt.Errorf("%w: expected %d, got %d", domain.ErrEmbeddingDimensionMismatch, e.dimension, len(vec))
}
