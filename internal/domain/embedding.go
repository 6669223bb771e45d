package domain

import (
	"context"
	"fmt"
)

// Embedder turns one text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder is implemented by embedders that vectorize many texts per
// provider call.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker is implemented by embedders that can probe their provider.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult is one vector and the tokens spent on it.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult holds vectors in input order and the summed usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

func (b *BatchEmbeddingResult) add(r EmbeddingResult) {
	b.Embeddings = append(b.Embeddings, r.Embedding)
	b.PromptTokens += r.PromptTokens
	b.TotalTokens += r.TotalTokens
}

// BatchFallback embeds texts one Embed call at a time and stops at the
// first failure.
func BatchFallback(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	out := BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	for i, text := range texts {
		r, err := e.Embed(ctx, text)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("text %d of %d: %w", i+1, len(texts), err)
		}
		out.add(r)
	}
	return out, nil
}

// BatchEmbed prefers e's own BatchEmbed and falls back to BatchFallback.
func BatchEmbed(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	if b, ok := e.(BatchEmbedder); ok {
		return b.BatchEmbed(ctx, texts)
	}
	return BatchFallback(ctx, e, texts)
}

// InstructionEmbedder prefixes every text with a model instruction, such as
// "query: " or "passage: " for asymmetric retrieval models.
type InstructionEmbedder struct {
	inner  Embedder
	prefix string
}

// NewInstructionEmbedder wraps inner.
func NewInstructionEmbedder(inner Embedder, instruction string) *InstructionEmbedder {
	return &InstructionEmbedder{inner: inner, prefix: instruction}
}

// Embed embeds the prefixed text.
func (e *InstructionEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	r, err := e.inner.Embed(ctx, e.prefix+text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("embed with instruction: %w", err)
	}
	return r, nil
}

// BatchEmbed embeds the prefixed texts, batched when inner supports it.
func (e *InstructionEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	withPrefix := make([]string, 0, len(texts))
	for _, t := range texts {
		withPrefix = append(withPrefix, e.prefix+t)
	}
	r, err := BatchEmbed(ctx, e.inner, withPrefix)
	if err != nil {
		return BatchEmbeddingResult{}, fmt.Errorf("batch embed with instruction: %w", err)
	}
	return r, nil
}

// HealthCheck forwards to inner when it can check its provider.
func (e *InstructionEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
