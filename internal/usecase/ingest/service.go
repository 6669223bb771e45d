package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nooikko/nightreign-query/internal/domain"
	domchunk "github.com/nooikko/nightreign-query/internal/domain/chunk"
	"github.com/nooikko/nightreign-query/internal/parser"
)

// Config holds ingestion settings.
type Config struct {
	ChunkSize int
	// BatchSize is the number of chunks embedded per provider call.
	BatchSize int
}

// PageError is a page that could not be ingested.
type PageError struct {
	URL string
	Err error
}

// Result summarizes an ingestion run.
type Result struct {
	Pages    int
	Indexed  int
	Chunks   int
	Pruned   int
	Tokens   int
	Errors   []PageError
	Duration time.Duration
}

// Service turns cached pages into embedded, indexed chunks.
type Service struct {
	pages      PageSource
	writer     ChunkWriter
	embedder   domain.Embedder
	chunker    *Chunker
	classifier *Classifier
	batchSize  int
	logger     *zap.Logger
}

// New creates an ingestion service.
func New(
	pages PageSource, writer ChunkWriter, embedder domain.Embedder,
	classifier *Classifier, cfg Config, logger *zap.Logger,
) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if classifier == nil {
		classifier = NewClassifier(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		pages:      pages,
		writer:     writer,
		embedder:   embedder,
		chunker:    NewChunker(cfg.ChunkSize),
		classifier: classifier,
		batchSize:  cfg.BatchSize,
		logger:     logger,
	}
}

// Run ingests every cached page. A failing page is recorded and skipped.
// Only a failure to prepare the index or enumerate the cache aborts the run.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	if err := s.writer.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("ensure index: %w", err)
	}
	keys, err := s.pages.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cached pages: %w", err)
	}

	res := &Result{}
	for i, url := range keys {
		if err := ctx.Err(); err != nil {
			res.Duration = time.Since(start)
			return res, err
		}
		res.Pages++

		n, tokens, err := s.ingestPage(ctx, url)
		if err != nil {
			res.Errors = append(res.Errors, PageError{URL: url, Err: err})
			s.logger.Warn("page ingestion failed", zap.String("url", url), zap.Error(err))
			continue
		}
		res.Indexed++
		res.Chunks += n
		res.Tokens += tokens

		pruned, err := s.writer.PruneFrom(ctx, url, n)
		if err != nil {
			s.logger.Warn("prune stale chunks", zap.String("url", url), zap.Error(err))
		}
		res.Pruned += pruned

		if (i+1)%50 == 0 {
			s.logger.Info("ingest progress",
				zap.Int("pages", i+1),
				zap.Int("total", len(keys)),
				zap.Int("chunks", res.Chunks),
			)
		}
	}

	res.Duration = time.Since(start)
	s.logger.Info("ingest finished",
		zap.Int("pages", res.Pages),
		zap.Int("indexed", res.Indexed),
		zap.Int("chunks", res.Chunks),
		zap.Int("pruned", res.Pruned),
		zap.Int("errors", len(res.Errors)),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

func (s *Service) ingestPage(ctx context.Context, url string) (int, int, error) {
	page, err := s.pages.Get(ctx, url)
	if err != nil {
		return 0, 0, fmt.Errorf("read cache: %w", err)
	}
	doc, err := parser.ToMarkdown(page.HTML, url)
	if err != nil {
		return 0, 0, err
	}
	texts := s.chunker.Split(doc.Markdown)
	if len(texts) == 0 {
		return 0, 0, nil
	}

	cat := s.classifier.Classify(url)
	tokens := 0
	for off := 0; off < len(texts); off += s.batchSize {
		end := min(off+s.batchSize, len(texts))
		batch := texts[off:end]

		emb, err := domain.BatchEmbed(ctx, s.embedder, embeddingInputs(doc.Title, batch))
		if err != nil {
			return 0, tokens, fmt.Errorf("embed chunks %d-%d: %w", off, end-1, err)
		}
		if len(emb.Embeddings) != len(batch) {
			return 0, tokens, fmt.Errorf("embed chunks %d-%d: got %d vectors: %w",
				off, end-1, len(emb.Embeddings), domain.ErrEmbeddingProviderError)
		}
		tokens += emb.TotalTokens

		chunks := make([]domchunk.Chunk, len(batch))
		for i, text := range batch {
			ord := off + i
			chunks[i] = domchunk.Chunk{
				ID:       domchunk.NewID(url, ord),
				URL:      url,
				Title:    doc.Title,
				Category: cat,
				Ordinal:  ord,
				Content:  text,
				Vector:   emb.Embeddings[i],
			}
		}
		if err := s.writer.UpsertBatch(ctx, chunks); err != nil {
			return 0, tokens, fmt.Errorf("store chunks %d-%d: %w", off, end-1, err)
		}
	}
	return len(texts), tokens, nil
}

// embeddingInputs prefixes each chunk with the page title so short chunks
// keep their subject.
func embeddingInputs(title string, texts []string) []string {
	if title == "" {
		return texts
	}
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = title + "\n\n" + t
	}
	return out
}
