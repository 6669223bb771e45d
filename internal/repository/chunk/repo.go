package chunk

import (
	"context"
	"errors"
	"fmt"

	"github.com/nooikko/nightreign-query/internal/db"
	"github.com/nooikko/nightreign-query/internal/domain"
	domchunk "github.com/nooikko/nightreign-query/internal/domain/chunk"
)

// store is the consumer interface for chunks (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo writes chunks into the document index.
type Repo struct {
	store     store
	dimension int
	hnsw      HNSWConfig
}

// New creates a chunk repository for vectors of the given dimension.
func New(s store, dimension int) *Repo {
	return &Repo{store: s, dimension: dimension, hnsw: HNSWConfig{M: 16, EFConstruct: 200}}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// EnsureIndex creates the chunk index unless it already exists.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, domain.ChunkIndexName)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		return nil
	}

	def, err := buildIndex(r.dimension, r.hnsw)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// DropIndex removes the index definition. Chunk hashes stay in place.
func (r *Repo) DropIndex(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, domain.ChunkIndexName); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index: %w", err)
	}
	return nil
}

// Upsert stores a single chunk.
func (r *Repo) Upsert(ctx context.Context, c *domchunk.Chunk) error {
	return r.UpsertBatch(ctx, []domchunk.Chunk{*c})
}

// UpsertBatch stores chunks in one pipelined round-trip.
func (r *Repo) UpsertBatch(ctx context.Context, chunks []domchunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, 0, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		if c.ID == "" {
			return fmt.Errorf("chunk %d of %s has no id", c.Ordinal, c.URL)
		}
		if len(c.Vector) != r.dimension {
			return fmt.Errorf("chunk %s: got %d dimensions, want %d: %w",
				c.ID, len(c.Vector), r.dimension, domain.ErrEmbeddingDimensionMismatch)
		}
		items = append(items, db.HashSetItem{Key: chunkKey(c.ID), Fields: buildHashFields(c)})
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset %d chunks: %w", len(items), err)
	}
	return nil
}

// Get returns a chunk by ID.
func (r *Repo) Get(ctx context.Context, id string) (domchunk.Chunk, error) {
	m, err := r.store.HGetAll(ctx, chunkKey(id))
	if err != nil {
		return domchunk.Chunk{}, fmt.Errorf("hgetall %s: %w", id, err)
	}
	return parseHashFields(id, m), nil
}

// PruneFrom deletes the chunks of url at ordinal and above. A page that
// shrank on re-ingestion leaves no stale tail behind.
func (r *Repo) PruneFrom(ctx context.Context, url string, ordinal int) (int, error) {
	removed := 0
	for i := ordinal; ; i++ {
		key := chunkKey(domchunk.NewID(url, i))
		exists, err := r.store.Exists(ctx, key)
		if err != nil {
			return removed, fmt.Errorf("check exists %s: %w", key, err)
		}
		if !exists {
			return removed, nil
		}
		if err := r.store.Del(ctx, key); err != nil {
			return removed, fmt.Errorf("del %s: %w", key, err)
		}
		removed++
	}
}

// Count returns the number of indexed chunks.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, domain.ChunkIndexName, "*")
	if err != nil {
		return 0, fmt.Errorf("search count: %w", err)
	}
	return n, nil
}

func chunkKey(id string) string {
	return domain.ChunkKeyPrefix + id
}
